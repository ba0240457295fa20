package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Scheme 是代理协议族。
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeSOCKS4 Scheme = "socks4"
	SchemeSOCKS5 Scheme = "socks5"
)

// ParseScheme 解析协议名，"https" 视为 http 代理。
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "http", "https":
		return SchemeHTTP, nil
	case "socks4", "socks4a":
		return SchemeSOCKS4, nil
	case "socks5", "socks5h":
		return SchemeSOCKS5, nil
	default:
		return "", fmt.Errorf("unsupported proxy scheme %q", s)
	}
}

// ProxyRecord 是一个待测代理。身份由 (Address, Scheme) 决定，加载后不可变。
type ProxyRecord struct {
	Address string // host:port
	Scheme  Scheme
}

// Key 返回代理的唯一标识 "scheme://host:port"，用于历史记录和输出文件。
func (p ProxyRecord) Key() string {
	return string(p.Scheme) + "://" + p.Address
}

func (p ProxyRecord) String() string {
	return p.Key()
}

// ParseKey 是 Key 的逆操作。
func ParseKey(key string) (ProxyRecord, error) {
	scheme, addr, ok := strings.Cut(key, "://")
	if !ok || addr == "" {
		return ProxyRecord{}, fmt.Errorf("invalid proxy key %q", key)
	}
	s, err := ParseScheme(scheme)
	if err != nil {
		return ProxyRecord{}, err
	}
	return ProxyRecord{Address: addr, Scheme: s}, nil
}

// ErrorKind 对一次失败的探测进行分类。
type ErrorKind string

const (
	ErrNone    ErrorKind = ""
	ErrTimeout ErrorKind = "timeout"
	ErrConnect ErrorKind = "connect"
	ErrStatus  ErrorKind = "status"
	ErrRead    ErrorKind = "read"
	ErrEmpty   ErrorKind = "empty"
	ErrConfig  ErrorKind = "config"
)

// ProbeError 携带失败类别，只影响单个代理。
type ProbeError struct {
	Kind ErrorKind
	Err  error
}

func (e *ProbeError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *ProbeError) Unwrap() error { return e.Err }

// KindOf 返回 err 中的失败类别，非 ProbeError 归为 connect。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrNone
	}
	var pe *ProbeError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrConnect
}

// ProbeResult 是一次探测的结果。失败时 Latency/Throughput 为 nil，Score 为 0。
type ProbeResult struct {
	Proxy      ProxyRecord
	Timestamp  time.Time
	Success    bool
	Latency    *time.Duration
	Throughput *float64 // MB/s
	Score      float64
	Bytes      int64
	Err        error
}

// Kind 返回失败类别，成功时为 ErrNone。
func (r ProbeResult) Kind() ErrorKind {
	if r.Success {
		return ErrNone
	}
	return KindOf(r.Err)
}

// Point 把结果投影为可持久化的历史点。
func (r ProbeResult) Point() HistoryPoint {
	score := r.Score
	if !r.Success || score < 0 {
		score = 0
	}
	return HistoryPoint{Timestamp: r.Timestamp, Score: score, Success: r.Success}
}

// Failed 构造一个失败结果。
func Failed(p ProxyRecord, ts time.Time, kind ErrorKind, err error) ProbeResult {
	return ProbeResult{
		Proxy:     p,
		Timestamp: ts,
		Err:       &ProbeError{Kind: kind, Err: err},
	}
}
