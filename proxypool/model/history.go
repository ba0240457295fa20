package model

import "time"

// HistoryPoint 是持久化的一条历史记录: Proxy,Timestamp,Score,Success。
type HistoryPoint struct {
	Timestamp time.Time
	Score     float64
	Success   bool
}

// HistoryEntry 是单个代理的有界历史，按时间从旧到新排列。
type HistoryEntry struct {
	Proxy  string
	Points []HistoryPoint
}

// Append 追加一个点并按 FIFO 淘汰超过 capacity 的最旧记录。
// 与最后一个点时间戳相同的点会替换它，而不是重复追加。
func (h *HistoryEntry) Append(p HistoryPoint, capacity int) {
	if n := len(h.Points); n > 0 && h.Points[n-1].Timestamp.Equal(p.Timestamp) {
		h.Points[n-1] = p
	} else {
		h.Points = append(h.Points, p)
	}
	h.Trim(capacity)
}

// Trim 只保留最新的 capacity 条记录。
func (h *HistoryEntry) Trim(capacity int) {
	if capacity <= 0 || len(h.Points) <= capacity {
		return
	}
	kept := make([]HistoryPoint, capacity)
	copy(kept, h.Points[len(h.Points)-capacity:])
	h.Points = kept
}

// Clone 返回深拷贝，调用方可以安全持有。
func (h HistoryEntry) Clone() HistoryEntry {
	pts := make([]HistoryPoint, len(h.Points))
	copy(pts, h.Points)
	return HistoryEntry{Proxy: h.Proxy, Points: pts}
}

// RecentFailures 报告最近 m 条记录是否存在且全部失败。
func (h HistoryEntry) RecentFailures(m int) bool {
	if m <= 0 || len(h.Points) < m {
		return false
	}
	for _, p := range h.Points[len(h.Points)-m:] {
		if p.Success {
			return false
		}
	}
	return true
}

// EverResponded 报告历史中是否有过成功记录。
func (h HistoryEntry) EverResponded() bool {
	for _, p := range h.Points {
		if p.Success {
			return true
		}
	}
	return false
}

// AggregateStats 由历史派生，不持久化。
type AggregateStats struct {
	LongTermScore float64
	ResponseRate  float64 // 0..100
	ResponseAvg   float64
	Samples       int
}
