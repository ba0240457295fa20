package prober

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

const (
	bytesPerMB       = 1024 * 1024
	defaultSmoothing = 0.01
	userAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"
)

// Options 描述一次探测的固定参数。
type Options struct {
	TestURL    string
	ByteBudget int64         // B
	Timeout    time.Duration // T
	Smoothing  float64       // ε
}

// Prober 通过代理下载测试文件的前 B 字节，测量延迟和吞吐量。
// 它不持有任何共享的可变状态，可以被多个 goroutine 并发使用。
type Prober struct {
	opts       Options
	transports map[model.Scheme]TransportFactory
	now        func() time.Time
}

func New(opts Options) *Prober {
	if opts.Smoothing < 0 {
		opts.Smoothing = defaultSmoothing
	}
	return &Prober{
		opts:       opts,
		transports: DefaultTransports(),
		now:        time.Now,
	}
}

// WithTransport 替换某个协议的传输层实现。
func (p *Prober) WithTransport(s model.Scheme, f TransportFactory) *Prober {
	p.transports[s] = f
	return p
}

// Score = throughput / (latency + ε)，throughput 单位 MB/s，latency 单位秒。
func Score(throughput float64, latency time.Duration, smoothing float64) float64 {
	d := latency.Seconds() + smoothing
	if d <= 0 || throughput <= 0 {
		return 0
	}
	return throughput / d
}

// Probe 对单个代理执行一次测试。任何失败都体现在返回值中，不会 panic 或返回 error。
func (p *Prober) Probe(ctx context.Context, rec model.ProxyRecord) model.ProbeResult {
	start := p.now()

	factory, ok := p.transports[rec.Scheme]
	if !ok {
		return model.Failed(rec, start, model.ErrConfig, fmt.Errorf("no transport for scheme %q", rec.Scheme))
	}
	transport, err := factory(rec, p.opts.Timeout)
	if err != nil {
		return model.Failed(rec, start, model.ErrConfig, err)
	}
	defer transport.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.opts.TestURL, nil)
	if err != nil {
		return model.Failed(rec, start, model.ErrConfig, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", p.opts.ByteBudget-1))

	client := &http.Client{Transport: transport}
	resp, err := client.Do(req)
	if err != nil {
		return model.Failed(rec, start, classify(ctx, err, model.ErrConnect), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return model.Failed(rec, start, model.ErrStatus, fmt.Errorf("received non-successful status code: %d", resp.StatusCode))
	}
	latency := p.now().Sub(start)

	n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, p.opts.ByteBudget))
	if err != nil {
		return model.Failed(rec, start, classify(ctx, err, model.ErrRead), err)
	}
	if n == 0 {
		return model.Failed(rec, start, model.ErrEmpty, errors.New("no data received"))
	}

	elapsed := p.now().Sub(start)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}
	throughput := float64(n) / elapsed.Seconds() / bytesPerMB
	score := Score(throughput, latency, p.opts.Smoothing)

	l := logger.WithComponent("ProxyBench/Prober")
	l.Debug().
		Str("proxy", rec.Key()).
		Dur("latency", latency).
		Int64("bytes", n).
		Float64("speed_mb_s", throughput).
		Float64("score", score).
		Msg("Probe succeeded.")

	return model.ProbeResult{
		Proxy:      rec,
		Timestamp:  start,
		Success:    true,
		Latency:    &latency,
		Throughput: &throughput,
		Score:      score,
		Bytes:      n,
	}
}

// classify 把超时和父 context 取消归为 timeout，其余归为 fallback。
func classify(ctx context.Context, err error, fallback model.ErrorKind) model.ErrorKind {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return model.ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.ErrTimeout
	}
	return fallback
}
