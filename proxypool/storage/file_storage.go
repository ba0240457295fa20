package storage

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

var header = []string{"Proxy", "Timestamp", "Score", "Success"}

// Storage 接口定义了历史数据持久化的行为。
// 键为 ProxyRecord.Key()，值按时间从旧到新排列。
type Storage interface {
	Load() (map[string][]model.HistoryPoint, error)
	Save(history map[string][]model.HistoryPoint) error
}

// FileStorage 实现了 Storage 接口，使用 CSV 文件进行持久化。
type FileStorage struct {
	filePath string
	mu       sync.RWMutex
}

// NewFileStorage 创建一个新的 FileStorage 实例。
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Load 从 CSV 文件加载历史数据。文件不存在时返回空历史。
func (fs *FileStorage) Load() (map[string][]model.HistoryPoint, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	l := logger.WithComponent("ProxyBench/Storage")

	file, err := os.Open(fs.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.Info().Str("path", fs.filePath).Msg("History file not found, starting with empty history.")
			return make(map[string][]model.HistoryPoint), nil
		}
		return nil, err
	}
	defer file.Close()

	history := make(map[string][]model.HistoryPoint)
	// 逐行解析：一行损坏（例如多余的引号）只跳过该行，不影响其它记录
	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r := csv.NewReader(strings.NewReader(line))
		r.FieldsPerRecord = -1
		fields, err := r.Read()
		if err != nil {
			l.Warn().Int("line", lineNum).Err(err).Msg("Skipping unparsable line in history file.")
			continue
		}
		if lineNum == 1 && len(fields) > 0 && fields[0] == header[0] {
			continue
		}
		if len(fields) != len(header) {
			l.Warn().Int("line", lineNum).Int("expected", len(header)).Int("got", len(fields)).Msg("Skipping malformed line in history file.")
			continue
		}

		key, p, err := parsePoint(fields)
		if err != nil {
			l.Warn().Int("line", lineNum).Err(err).Msg("Failed to parse history point from line, skipping.")
			continue
		}
		history[key] = append(history[key], p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", fs.filePath, err)
	}

	for _, pts := range history {
		sort.SliceStable(pts, func(i, j int) bool { return pts[i].Timestamp.Before(pts[j].Timestamp) })
	}

	l.Info().Int("proxies", len(history)).Msg("Successfully loaded history from file.")
	return history, nil
}

// Save 把完整历史写入临时文件后原子替换，读者不会看到写了一半的文件。
func (fs *FileStorage) Save(history map[string][]model.HistoryPoint) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyBench/Storage")

	keys := make([]string, 0, len(history))
	for k := range history {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return err
	}
	rows := 0
	for _, k := range keys {
		for _, p := range history[k] {
			if err := w.Write(formatPoint(k, p)); err != nil {
				return err
			}
			rows++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if err := WriteFileAtomic(fs.filePath, []byte(sb.String())); err != nil {
		return err
	}

	l.Info().Int("proxies", len(keys)).Int("rows", rows).Msg("Successfully saved history to file.")
	return nil
}

// WriteFileAtomic 先写同目录下的临时文件，再 rename 覆盖目标。
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// formatPoint 将一条历史格式化为 CSV 字段。时间戳为 Unix 毫秒。
func formatPoint(key string, p model.HistoryPoint) []string {
	return []string{
		key,
		strconv.FormatInt(p.Timestamp.UnixMilli(), 10),
		strconv.FormatFloat(p.Score, 'f', -1, 64),
		strconv.FormatBool(p.Success),
	}
}

// parsePoint 从 CSV 字段解析出一条历史。
func parsePoint(fields []string) (string, model.HistoryPoint, error) {
	key := strings.TrimSpace(fields[0])
	if _, err := model.ParseKey(key); err != nil {
		return "", model.HistoryPoint{}, err
	}

	ms, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", model.HistoryPoint{}, fmt.Errorf("invalid timestamp: %w", err)
	}

	score, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return "", model.HistoryPoint{}, fmt.Errorf("invalid score: %w", err)
	}
	if score < 0 {
		score = 0
	}

	success, err := strconv.ParseBool(fields[3])
	if err != nil {
		return "", model.HistoryPoint{}, fmt.Errorf("invalid success flag: %w", err)
	}

	return key, model.HistoryPoint{
		Timestamp: time.UnixMilli(ms),
		Score:     score,
		Success:   success,
	}, nil
}
