package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/108.0.0.0 Safari/537.36"

// HTMLTableSource 从代理列表网页的表格中抓取 ip/port。
type HTMLTableSource struct {
	URL         string
	RowSelector string // e.g. "table#example1 tbody#tabli tr"
	IPColumn    int
	PortColumn  int
	Scheme      model.Scheme
	client      *http.Client
}

// NewHTMLTableSource 创建一个新的实例
func NewHTMLTableSource(url, rowSelector string, ipCol, portCol int, scheme model.Scheme) *HTMLTableSource {
	if rowSelector == "" {
		rowSelector = "table tbody tr"
	}
	return &HTMLTableSource{
		URL:         url,
		RowSelector: rowSelector,
		IPColumn:    ipCol,
		PortColumn:  portCol,
		Scheme:      scheme,
		client: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (s *HTMLTableSource) Name() string {
	return "html:" + s.URL
}

func (s *HTMLTableSource) Fetch(ctx context.Context) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyBench/Source")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", s.Name(), err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page for %s: %w", s.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code (%d) from %s", resp.StatusCode, s.Name())
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML for %s: %w", s.Name(), err)
	}

	records := make([]model.ProxyRecord, 0)
	doc.Find(s.RowSelector).Each(func(_ int, sel *goquery.Selection) {
		cells := sel.Find("td")
		ip := strings.TrimSpace(cells.Eq(s.IPColumn).Text())
		portStr := strings.TrimSpace(cells.Eq(s.PortColumn).Text())
		if ip == "" || portStr == "" {
			return
		}
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			l.Warn().Str("ip", ip).Str("port", portStr).Msg("Failed to parse port, skipping.")
			return
		}
		records = append(records, model.ProxyRecord{
			Address: net.JoinHostPort(ip, strconv.Itoa(port)),
			Scheme:  s.Scheme,
		})
	})

	l.Info().Int("count", len(records)).Str("source", s.Name()).Msg("Scrape finished.")
	return records, nil
}
