package selector

import (
	"sort"

	"proxybench/proxypool/model"
)

// Candidate 是参与排序的一个代理，Order 为其在来源中的原始位置。
type Candidate struct {
	Proxy   model.ProxyRecord
	Order   int
	Current model.ProbeResult
	History model.HistoryEntry
	Stats   model.AggregateStats
}

// Options 控制筛选参数。
type Options struct {
	TopN          int
	FailThreshold int // M
}

// Selection 是全部的筛选输出。
type Selection struct {
	Ranked    []Candidate         // 按长期得分降序
	TopN      []Candidate         // Ranked 的前 N 个
	Rotation  []model.ProxyRecord // 完整轮换顺序
	Failed    []model.ProxyRecord // 最近 M 次全部失败，按来源顺序
	Responded []model.ProxyRecord // 历史中至少成功过一次，按来源顺序
}

// Select 按长期得分降序排列候选代理，得分相同时保持来源顺序。
func Select(candidates []Candidate, opts Options) Selection {
	bySource := make([]Candidate, len(candidates))
	copy(bySource, candidates)
	sort.SliceStable(bySource, func(i, j int) bool { return bySource[i].Order < bySource[j].Order })

	ranked := make([]Candidate, len(bySource))
	copy(ranked, bySource)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Stats.LongTermScore > ranked[j].Stats.LongTermScore
	})

	n := opts.TopN
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}

	sel := Selection{
		Ranked:    ranked,
		TopN:      ranked[:n],
		Rotation:  make([]model.ProxyRecord, 0, len(ranked)),
		Failed:    make([]model.ProxyRecord, 0),
		Responded: make([]model.ProxyRecord, 0),
	}
	for _, c := range ranked {
		sel.Rotation = append(sel.Rotation, c.Proxy)
	}
	for _, c := range bySource {
		if c.History.RecentFailures(opts.FailThreshold) {
			sel.Failed = append(sel.Failed, c.Proxy)
		}
		if c.History.EverResponded() {
			sel.Responded = append(sel.Responded, c.Proxy)
		}
	}
	return sel
}
