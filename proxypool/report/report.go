package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"proxybench/internal/shared/logger"
	"proxybench/internal/shared/types"
	"proxybench/proxypool/model"
	"proxybench/proxypool/selector"
	"proxybench/proxypool/storage"
)

// Header 是结果表的表头。
var Header = []string{
	"Proxy", "Protocol", "Latency (s)", "Speed (MB/s)",
	"Current Score", "Long-Term Score", "Response Rate (%)", "Response AVG",
}

// Paths 是各个输出文件的位置，空字符串表示不写该文件。
type Paths struct {
	Report    string
	Top       string
	Rotation  string
	Failed    string
	Responded string
	Working   string
	Bad       string
}

// PathsFromConf 把配置中的文件名解析到输出目录下。
func PathsFromConf(c types.OutputConf) Paths {
	join := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(c.Dir, name)
	}
	return Paths{
		Report:    join(c.Report),
		Top:       join(c.Top),
		Rotation:  join(c.Rotation),
		Failed:    join(c.Failed),
		Responded: join(c.Responded),
		Working:   join(c.Working),
		Bad:       join(c.Bad),
	}
}

// Writer 把 Selection 写成报告和各类列表文件。
type Writer struct {
	paths Paths
}

func NewWriter(paths Paths) *Writer {
	return &Writer{paths: paths}
}

// Write 写出全部文件。单个文件失败不影响其它文件，最后返回第一个错误。
func (w *Writer) Write(sel selector.Selection) error {
	l := logger.WithComponent("ProxyBench/Report")

	var working, bad []model.ProxyRecord
	for _, c := range sel.Ranked {
		if c.Current.Success {
			working = append(working, c.Proxy)
		} else {
			bad = append(bad, c.Proxy)
		}
	}
	top := make([]model.ProxyRecord, 0, len(sel.TopN))
	for _, c := range sel.TopN {
		top = append(top, c.Proxy)
	}

	outputs := []struct {
		path string
		data func() ([]byte, error)
	}{
		{w.paths.Report, func() ([]byte, error) { return Table(sel.Ranked) }},
		{w.paths.Top, func() ([]byte, error) { return SchemeList(top), nil }},
		{w.paths.Rotation, func() ([]byte, error) { return SchemeList(sel.Rotation), nil }},
		{w.paths.Failed, func() ([]byte, error) { return AddressList(sel.Failed), nil }},
		{w.paths.Responded, func() ([]byte, error) { return AddressList(sel.Responded), nil }},
		{w.paths.Working, func() ([]byte, error) { return AddressList(working), nil }},
		{w.paths.Bad, func() ([]byte, error) { return AddressList(bad), nil }},
	}

	var firstErr error
	for _, o := range outputs {
		if o.path == "" {
			continue
		}
		data, err := o.data()
		if err == nil {
			err = storage.WriteFileAtomic(o.path, data)
		}
		if err != nil {
			l.Error().Err(err).Str("path", o.path).Msg("Failed to write output file.")
			if firstErr == nil {
				firstErr = fmt.Errorf("write %s: %w", o.path, err)
			}
			continue
		}
		l.Debug().Str("path", o.path).Msg("Output file written.")
	}
	return firstErr
}

// Table 生成 CSV 报告，行顺序即 ranked 的顺序。
func Table(ranked []selector.Candidate) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(Header); err != nil {
		return nil, err
	}
	for _, c := range ranked {
		if err := cw.Write(Row(c)); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	return buf.Bytes(), cw.Error()
}

// Row 格式化一行。缺失的延迟和速度留空。
func Row(c selector.Candidate) []string {
	latency, speed := "", ""
	if c.Current.Latency != nil {
		latency = formatFloat(c.Current.Latency.Seconds(), 3)
	}
	if c.Current.Throughput != nil {
		speed = formatFloat(*c.Current.Throughput, 2)
	}
	return []string{
		c.Proxy.Address,
		string(c.Proxy.Scheme),
		latency,
		speed,
		formatFloat(c.Current.Score, 2),
		formatFloat(c.Stats.LongTermScore, 2),
		formatFloat(c.Stats.ResponseRate, 1),
		formatFloat(c.Stats.ResponseAvg, 2),
	}
}

// SchemeList 每行一个 scheme://host:port。
func SchemeList(records []model.ProxyRecord) []byte {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Key())
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// AddressList 每行一个 host:port。
func AddressList(records []model.ProxyRecord) []byte {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Address)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
