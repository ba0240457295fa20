package scorer

import (
	"math"
	"testing"
	"time"

	"proxybench/proxypool/model"
)

func pts(scores ...float64) []model.HistoryPoint {
	out := make([]model.HistoryPoint, len(scores))
	for i, s := range scores {
		out[i] = model.HistoryPoint{Timestamp: time.Unix(int64(i), 0), Score: s, Success: s > 0}
	}
	return out
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregate_Means(t *testing.T) {
	got := Aggregate(pts(10, 0, 20, 0), nil)
	if !almost(got.LongTermScore, 7.5) {
		t.Errorf("Expected long-term score 7.5, got %v", got.LongTermScore)
	}
	if !almost(got.ResponseRate, 50) {
		t.Errorf("Expected response rate 50, got %v", got.ResponseRate)
	}
	if !almost(got.ResponseAvg, 15) {
		t.Errorf("Expected response avg 15, got %v", got.ResponseAvg)
	}
	if got.Samples != 4 {
		t.Errorf("Expected 4 samples, got %d", got.Samples)
	}
}

func TestAggregate_AllFailures(t *testing.T) {
	got := Aggregate(pts(0, 0, 0), nil)
	if got.LongTermScore != 0 || got.ResponseRate != 0 || got.ResponseAvg != 0 {
		t.Errorf("Expected all-zero stats, got %+v", got)
	}
}

func TestAggregate_EmptyHistoryFallsBackToCurrent(t *testing.T) {
	cur := model.ProbeResult{Success: true, Score: 90.9}
	got := Aggregate(nil, &cur)
	if got.LongTermScore != 90.9 || got.ResponseRate != 100 {
		t.Errorf("Expected fallback to current success, got %+v", got)
	}

	failed := model.Failed(model.ProxyRecord{}, time.Now(), model.ErrTimeout, nil)
	got = Aggregate(nil, &failed)
	if got.LongTermScore != 0 || got.ResponseRate != 0 || got.ResponseAvg != 0 {
		t.Errorf("Expected zero stats for failed first probe, got %+v", got)
	}

	if got := Aggregate(nil, nil); got != (model.AggregateStats{}) {
		t.Errorf("Expected zero stats with no data, got %+v", got)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	h := pts(3, 0, 4.25, 8)
	a := Aggregate(h, nil)
	b := Aggregate(h, nil)
	if a != b {
		t.Errorf("Expected identical stats, got %+v and %+v", a, b)
	}
}

func TestAggregate_RateBounds(t *testing.T) {
	for _, h := range [][]model.HistoryPoint{pts(1, 2, 3), pts(0), pts(5, 0)} {
		r := Aggregate(h, nil).ResponseRate
		if r < 0 || r > 100 {
			t.Errorf("Response rate %v out of [0,100]", r)
		}
	}
}
