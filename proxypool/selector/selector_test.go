package selector

import (
	"fmt"
	"testing"
	"time"

	"proxybench/proxypool/model"
)

func candidate(order int, score float64, flags ...bool) Candidate {
	p := model.ProxyRecord{Address: fmt.Sprintf("10.0.0.%d:8080", order), Scheme: model.SchemeHTTP}
	h := model.HistoryEntry{Proxy: p.Key()}
	for i, ok := range flags {
		h.Points = append(h.Points, model.HistoryPoint{Timestamp: time.Unix(int64(i), 0), Success: ok})
	}
	return Candidate{
		Proxy:   p,
		Order:   order,
		History: h,
		Stats:   model.AggregateStats{LongTermScore: score},
	}
}

func TestSelect_RanksDescendingStableOnTies(t *testing.T) {
	// 输入顺序被打乱，Order 决定并列时的先后
	cands := []Candidate{
		candidate(3, 5),
		candidate(0, 1),
		candidate(1, 5),
		candidate(2, 9),
	}
	sel := Select(cands, Options{TopN: 2, FailThreshold: 3})

	wantOrder := []int{2, 1, 3, 0}
	for i, c := range sel.Ranked {
		if c.Order != wantOrder[i] {
			t.Errorf("rank %d: expected order %d, got %d", i, wantOrder[i], c.Order)
		}
	}
	if len(sel.TopN) != 2 || sel.TopN[0].Order != 2 || sel.TopN[1].Order != 1 {
		t.Errorf("Unexpected top-N: %+v", sel.TopN)
	}
	if len(sel.Rotation) != 4 {
		t.Fatalf("Expected full rotation of 4, got %d", len(sel.Rotation))
	}
	for i, p := range sel.Rotation {
		if p != sel.Ranked[i].Proxy {
			t.Errorf("rotation %d = %v, expected ranked %v", i, p, sel.Ranked[i].Proxy)
		}
	}
}

func TestSelect_TopNLargerThanPool(t *testing.T) {
	sel := Select([]Candidate{candidate(0, 1)}, Options{TopN: 150, FailThreshold: 3})
	if len(sel.TopN) != 1 {
		t.Errorf("Expected top-N clipped to pool size, got %d", len(sel.TopN))
	}
}

func TestSelect_FailedAndResponded(t *testing.T) {
	cands := []Candidate{
		candidate(0, 0, false, false),              // 记录不足 M
		candidate(1, 0, false, false, false),       // 连续 M 次失败
		candidate(2, 3, true, false, false, false), // 曾经成功，最近 M 次失败
		candidate(3, 4, false, true, false),        // 最近有成功
		candidate(4, 0),                            // 没有历史
	}
	sel := Select(cands, Options{TopN: 10, FailThreshold: 3})

	if len(sel.Failed) != 2 || sel.Failed[0] != cands[1].Proxy || sel.Failed[1] != cands[2].Proxy {
		t.Errorf("Unexpected failed set: %v", sel.Failed)
	}
	if len(sel.Responded) != 2 || sel.Responded[0] != cands[2].Proxy || sel.Responded[1] != cands[3].Proxy {
		t.Errorf("Unexpected responded set: %v", sel.Responded)
	}
}

func TestSelect_DoesNotMutateInput(t *testing.T) {
	cands := []Candidate{candidate(0, 1), candidate(1, 2)}
	Select(cands, Options{TopN: 1, FailThreshold: 1})
	if cands[0].Order != 0 || cands[1].Order != 1 {
		t.Error("Select must not reorder the caller's slice")
	}
}
