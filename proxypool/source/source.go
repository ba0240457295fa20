package source

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

// Source 接口定义了获取待测代理列表的行为。
type Source interface {
	// Fetch 返回按原始顺序排列的代理，只负责读取和解析，不做验证。
	Fetch(ctx context.Context) ([]model.ProxyRecord, error)

	// Name 返回来源名称，用于日志记录。
	Name() string
}

// PortSchemes 是按端口推断协议的查找表，未命中时为 http。
type PortSchemes map[string]model.Scheme

// NewPortSchemes 从配置中的 port -> scheme 映射构建查找表，非法条目被跳过。
func NewPortSchemes(raw map[string]string) PortSchemes {
	l := logger.WithComponent("ProxyBench/Source")
	t := make(PortSchemes, len(raw))
	for port, name := range raw {
		s, err := model.ParseScheme(name)
		if err != nil {
			l.Warn().Str("port", port).Str("scheme", name).Msg("Ignoring invalid scheme_ports entry.")
			continue
		}
		t[port] = s
	}
	return t
}

// Detect 按端口推断协议。
func (t PortSchemes) Detect(port string) model.Scheme {
	if s, ok := t[port]; ok {
		return s
	}
	return model.SchemeHTTP
}

// ParseLine 解析一行 "host:port" 或 "scheme://host:port"。
// fallback 非空时优先于端口推断。
func ParseLine(line string, fallback model.Scheme, ports PortSchemes) (model.ProxyRecord, error) {
	line = strings.TrimSpace(line)
	var scheme model.Scheme
	addr := line
	if prefix, rest, ok := strings.Cut(line, "://"); ok {
		s, err := model.ParseScheme(prefix)
		if err != nil {
			return model.ProxyRecord{}, err
		}
		scheme, addr = s, rest
	}
	addr = strings.TrimSuffix(addr, "/")

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return model.ProxyRecord{}, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if host == "" {
		return model.ProxyRecord{}, fmt.Errorf("invalid address %q: empty host", addr)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
		return model.ProxyRecord{}, fmt.Errorf("invalid port in %q", addr)
	}

	if scheme == "" {
		if fallback != "" {
			scheme = fallback
		} else {
			scheme = ports.Detect(port)
		}
	}
	return model.ProxyRecord{Address: net.JoinHostPort(host, port), Scheme: scheme}, nil
}

// Collect 按来源顺序合并所有代理并按身份去重。
// 单个来源失败只记录日志，不影响其它来源。
func Collect(ctx context.Context, sources ...Source) []model.ProxyRecord {
	l := logger.WithComponent("ProxyBench/Source")
	seen := mapset.NewThreadUnsafeSet[model.ProxyRecord]()
	out := make([]model.ProxyRecord, 0)

	for _, s := range sources {
		records, err := s.Fetch(ctx)
		if err != nil {
			l.Warn().Err(err).Str("source", s.Name()).Msg("Source failed, treating it as empty.")
			continue
		}
		added := 0
		for _, r := range records {
			if seen.Add(r) {
				out = append(out, r)
				added++
			}
		}
		l.Info().Str("source", s.Name()).Int("count", len(records)).Int("new", added).Msg("Source loaded.")
	}
	return out
}
