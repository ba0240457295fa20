package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"proxybench/proxypool/model"
)

// RemoteSource 通过 HTTP 下载纯文本代理列表，格式与 FileSource 相同。
type RemoteSource struct {
	URL    string
	Scheme model.Scheme
	Ports  PortSchemes
	client *retryablehttp.Client
}

// NewRemoteSource 创建一个新的实例
func NewRemoteSource(url string, scheme model.Scheme, ports PortSchemes) *RemoteSource {
	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = 15 * time.Second
	client.RetryMax = 3
	client.Logger = nil
	return &RemoteSource{URL: url, Scheme: scheme, Ports: ports, client: client}
}

func (s *RemoteSource) Name() string {
	return "remote:" + s.URL
}

func (s *RemoteSource) Fetch(ctx context.Context) ([]model.ProxyRecord, error) {
	req, err := retryablehttp.NewRequest(http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch list from %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}
	return parseList(ctx, resp.Body, s.Scheme, s.Ports, s.Name())
}
