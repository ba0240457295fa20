package history

import (
	"sync"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
	"proxybench/proxypool/storage"
)

// Store 在内存中维护每个代理的有界历史，并通过 storage.Storage 持久化。
// 所有方法都在同一把锁下串行执行。
type Store struct {
	backend  storage.Storage
	capacity int
	mu       sync.Mutex
	entries  map[string]*model.HistoryEntry

	// degraded 在 Load 失败后置位，本轮不再写回后端，避免用残缺的内存状态覆盖旧历史。
	degraded bool
}

// NewStore 创建历史存储，capacity 即每个代理保留的最大记录数 N。
func NewStore(backend storage.Storage, capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		backend:  backend,
		capacity: capacity,
		entries:  make(map[string]*model.HistoryEntry),
	}
}

// Load 从后端读取历史。读取失败时内存状态为空，错误返回给调用方用于报告。
func (s *Store) Load() error {
	l := logger.WithComponent("ProxyBench/History")

	raw, err := s.backend.Load()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*model.HistoryEntry)
	s.degraded = err != nil
	if err != nil {
		l.Error().Err(err).Msg("Failed to load history. Continuing without history for this cycle.")
		return err
	}
	for key, pts := range raw {
		e := &model.HistoryEntry{Proxy: key}
		for _, p := range pts {
			e.Append(p, 0)
		}
		e.Trim(s.capacity)
		s.entries[key] = e
	}
	l.Debug().Int("proxies", len(s.entries)).Int("capacity", s.capacity).Msg("History loaded.")
	return nil
}

// Merge 把本轮每个结果追加到对应代理的历史，超出容量时淘汰最旧的记录。
func (s *Store) Merge(results []model.ProbeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		key := r.Proxy.Key()
		e, ok := s.entries[key]
		if !ok {
			e = &model.HistoryEntry{Proxy: key}
			s.entries[key] = e
		}
		e.Append(r.Point(), s.capacity)
	}
}

// Save 持久化全部历史。失败只记录并返回，内存状态保持不变。
// 上一次 Load 失败时跳过写入，后端中的旧历史保持原样。
func (s *Store) Save() error {
	l := logger.WithComponent("ProxyBench/History")

	s.mu.Lock()
	if s.degraded {
		s.mu.Unlock()
		l.Warn().Msg("History was not loaded in this cycle; skipping save to keep the stored history intact.")
		return nil
	}
	snapshot := make(map[string][]model.HistoryPoint, len(s.entries))
	for k, e := range s.entries {
		snapshot[k] = e.Clone().Points
	}
	s.mu.Unlock()

	if err := s.backend.Save(snapshot); err != nil {
		l.Error().Err(err).Msg("Failed to save history. In-memory history is kept for this run.")
		return err
	}
	return nil
}

// Entry 返回某个代理历史的副本，不存在时返回空历史。
func (s *Store) Entry(key string) model.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e.Clone()
	}
	return model.HistoryEntry{Proxy: key}
}

// Degraded 报告最近一次 Load 是否失败。
func (s *Store) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Len 返回有历史记录的代理数量。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
