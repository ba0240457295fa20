package manager

import (
	"fmt"
	"io"
	"strings"
	"time"

	"proxybench/internal/shared/logger"
	"proxybench/internal/shared/types"
	"proxybench/proxypool/history"
	"proxybench/proxypool/model"
	"proxybench/proxypool/prober"
	"proxybench/proxypool/report"
	"proxybench/proxypool/scheduler"
	"proxybench/proxypool/selector"
	"proxybench/proxypool/source"
	"proxybench/proxypool/storage"
)

// Build 根据配置组装全部组件。返回的 io.Closer 负责关闭存储后端。
func Build(cfg *types.Config) (*Manager, io.Closer, error) {
	backend, closer, err := openStorage(cfg.HistoryConf)
	if err != nil {
		return nil, nil, err
	}

	p := prober.New(prober.Options{
		TestURL:    cfg.TestURL,
		ByteBudget: cfg.ByteBudget,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		Smoothing:  cfg.Smoothing,
	})
	sched := scheduler.New(p, cfg.Concurrency).OnProgress(ProgressLogger())

	m := NewManager(
		Sources(cfg),
		sched,
		history.NewStore(backend, cfg.Capacity),
		report.NewWriter(report.PathsFromConf(cfg.OutputConf)),
		selector.Options{TopN: cfg.TopN, FailThreshold: cfg.FailThreshold},
		time.Duration(cfg.IntervalMinutes)*time.Minute,
	)
	return m, closer, nil
}

// Sources 按配置顺序构建代理来源：http、socks5、socks4 文件（与最初脚本顺序一致），
// 然后是混合文件、远程列表和网页表格。
func Sources(cfg *types.Config) []source.Source {
	l := logger.WithComponent("ProxyBench/Manager")
	ports := source.NewPortSchemes(cfg.PortSchemes)

	var out []source.Source
	if cfg.HTTPFile != "" {
		out = append(out, source.NewFileSource(cfg.HTTPFile, "", ports))
	}
	if cfg.SOCKS5File != "" {
		out = append(out, source.NewFileSource(cfg.SOCKS5File, model.SchemeSOCKS5, ports))
	}
	if cfg.SOCKS4File != "" {
		out = append(out, source.NewFileSource(cfg.SOCKS4File, model.SchemeSOCKS4, ports))
	}
	if cfg.MixedFile != "" {
		out = append(out, source.NewFileSource(cfg.MixedFile, "", ports))
	}
	for _, u := range cfg.RemoteURLs {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, source.NewRemoteSource(u, "", ports))
		}
	}
	if cfg.HTMLURL != "" {
		scheme, err := model.ParseScheme(cfg.HTMLScheme)
		if err != nil {
			l.Warn().Err(err).Str("url", cfg.HTMLURL).Msg("Invalid html_scheme, defaulting to http.")
			scheme = model.SchemeHTTP
		}
		out = append(out, source.NewHTMLTableSource(cfg.HTMLURL, cfg.HTMLRowSelector, cfg.HTMLIPColumn, cfg.HTMLPortColumn, scheme))
	}
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStorage(c types.HistoryConf) (storage.Storage, io.Closer, error) {
	switch c.Backend {
	case "", "file":
		return storage.NewFileStorage(c.Path), nopCloser{}, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend %q", c.Backend)
	}
}
