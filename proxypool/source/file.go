package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

// FileSource 从文本文件读取代理，每行一个。
// Scheme 非空时，未写协议前缀的行使用该协议。
type FileSource struct {
	Path   string
	Scheme model.Scheme
	Ports  PortSchemes
}

// NewFileSource 创建一个新的 FileSource 实例。
func NewFileSource(path string, scheme model.Scheme, ports PortSchemes) *FileSource {
	return &FileSource{Path: path, Scheme: scheme, Ports: ports}
}

func (s *FileSource) Name() string {
	return "file:" + s.Path
}

// Fetch 读取文件。文件不存在时返回空列表而不是错误。
func (s *FileSource) Fetch(ctx context.Context) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyBench/Source")

	file, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.Info().Str("path", s.Path).Msg("Proxy list file not found, no candidates from it.")
			return []model.ProxyRecord{}, nil
		}
		return nil, err
	}
	defer file.Close()

	return parseList(ctx, file, s.Scheme, s.Ports, s.Name())
}

// parseList 逐行解析代理列表，空行和 # 注释被跳过，非法行记录警告。
func parseList(ctx context.Context, r io.Reader, scheme model.Scheme, ports PortSchemes, name string) ([]model.ProxyRecord, error) {
	l := logger.WithComponent("ProxyBench/Source")

	records := make([]model.ProxyRecord, 0)
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// 兼容 "host:port  # 注释" 这种行尾注释
		if i := strings.IndexAny(line, " \t"); i > 0 {
			line = line[:i]
		}

		rec, err := ParseLine(line, scheme, ports)
		if err != nil {
			l.Warn().Str("source", name).Int("line", lineNum).Err(err).Msg("Skipping malformed proxy line.")
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
