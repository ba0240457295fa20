package prober

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
	"h12.io/socks"

	"proxybench/proxypool/model"
)

// TransportFactory 为一个代理构建 RoundTripper。握手由各自的客户端库完成。
type TransportFactory func(p model.ProxyRecord, timeout time.Duration) (*http.Transport, error)

// DefaultTransports 是协议到传输层实现的查找表。
func DefaultTransports() map[model.Scheme]TransportFactory {
	return map[model.Scheme]TransportFactory{
		model.SchemeHTTP:   httpTransport,
		model.SchemeSOCKS4: socks4Transport,
		model.SchemeSOCKS5: socks5Transport,
	}
}

func baseTransport(timeout time.Duration) *http.Transport {
	return &http.Transport{
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
		TLSHandshakeTimeout:   timeout / 2,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       timeout,
		ExpectContinueTimeout: 1 * time.Second,
		DisableKeepAlives:     true,
		// Range 请求的计时需要原始字节数
		DisableCompression: true,
	}
}

// httpTransport 通过 HTTP 代理访问目标（https 目标走 CONNECT）。
func httpTransport(p model.ProxyRecord, timeout time.Duration) (*http.Transport, error) {
	proxyURL, err := url.Parse("http://" + p.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP proxy URL: %w", err)
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	t := baseTransport(timeout)
	t.Proxy = http.ProxyURL(proxyURL)
	t.DialContext = dialer.DialContext
	return t, nil
}

// socks5Transport 使用 golang.org/x/net/proxy 的 SOCKS5 拨号器。
func socks5Transport(p model.ProxyRecord, timeout time.Duration) (*http.Transport, error) {
	d, err := proxy.SOCKS5("tcp", p.Address, nil, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("SOCKS5 dialer for %s does not support contexts", p.Address)
	}
	t := baseTransport(timeout)
	t.DialContext = cd.DialContext
	return t, nil
}

// socks4Transport 使用 h12.io/socks，该库的拨号函数不接受 context，
// 超时通过 URI 参数传入，整体截止时间仍由请求 context 控制。
func socks4Transport(p model.ProxyRecord, timeout time.Duration) (*http.Transport, error) {
	dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", p.Address, timeout))
	t := baseTransport(timeout)
	t.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		type dialResult struct {
			conn net.Conn
			err  error
		}
		ch := make(chan dialResult, 1)
		go func() {
			c, err := dial(network, addr)
			ch <- dialResult{c, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			go func() {
				if r := <-ch; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		}
	}
	return t, nil
}
