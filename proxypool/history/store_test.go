package history

import (
	"errors"
	"testing"
	"time"

	"proxybench/proxypool/model"
)

// memStorage is an in-memory storage.Storage for tests.
type memStorage struct {
	data    map[string][]model.HistoryPoint
	loadErr error
	saveErr error
	saves   int
}

func (m *memStorage) Load() (map[string][]model.HistoryPoint, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make(map[string][]model.HistoryPoint, len(m.data))
	for k, v := range m.data {
		out[k] = append([]model.HistoryPoint(nil), v...)
	}
	return out, nil
}

func (m *memStorage) Save(h map[string][]model.HistoryPoint) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = h
	return nil
}

var p1 = model.ProxyRecord{Address: "1.1.1.1:8080", Scheme: model.SchemeHTTP}

func result(ts time.Time, ok bool, score float64) model.ProbeResult {
	if !ok {
		return model.Failed(p1, ts, model.ErrTimeout, nil)
	}
	return model.ProbeResult{Proxy: p1, Timestamp: ts, Success: true, Score: score}
}

func TestStore_CapacityAcrossRuns(t *testing.T) {
	backend := &memStorage{}
	base := time.Unix(1700000000, 0)

	for run := 0; run < 25; run++ {
		s := NewStore(backend, 10)
		if err := s.Load(); err != nil {
			t.Fatalf("Load() returned an error: %v", err)
		}
		s.Merge([]model.ProbeResult{result(base.Add(time.Duration(run)*time.Hour), run%2 == 0, float64(run))})
		if err := s.Save(); err != nil {
			t.Fatalf("Save() returned an error: %v", err)
		}
		if n := len(s.Entry(p1.Key()).Points); n > 10 {
			t.Fatalf("run %d: history length %d exceeds capacity", run, n)
		}
	}

	pts := backend.data[p1.Key()]
	if len(pts) != 10 {
		t.Fatalf("Expected 10 persisted points, got %d", len(pts))
	}
	if pts[0].Score != 0 || pts[9].Score != 24 {
		t.Errorf("Expected runs 15..24 retained (failures score 0), got first=%v last=%v", pts[0], pts[9])
	}
}

func TestStore_LoadTrimsOversizedHistory(t *testing.T) {
	base := time.Unix(1700000000, 0)
	var pts []model.HistoryPoint
	for i := 0; i < 8; i++ {
		pts = append(pts, model.HistoryPoint{Timestamp: base.Add(time.Duration(i) * time.Minute), Score: float64(i)})
	}
	s := NewStore(&memStorage{data: map[string][]model.HistoryPoint{p1.Key(): pts}}, 3)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	got := s.Entry(p1.Key()).Points
	if len(got) != 3 || got[0].Score != 5 {
		t.Errorf("Expected newest 3 points retained, got %+v", got)
	}
}

func TestStore_LoadFailureDegradesToEmpty(t *testing.T) {
	s := NewStore(&memStorage{loadErr: errors.New("disk on fire")}, 10)
	if err := s.Load(); err == nil {
		t.Fatal("Expected Load() to report the error")
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty history after failed load, got %d", s.Len())
	}
	s.Merge([]model.ProbeResult{result(time.Now(), true, 5)})
	if len(s.Entry(p1.Key()).Points) != 1 {
		t.Error("Expected merges to keep working after a failed load")
	}
}

func TestStore_SaveSkippedAfterFailedLoad(t *testing.T) {
	old := []model.HistoryPoint{{Timestamp: time.Unix(1, 0), Score: 7, Success: true}}
	backend := &memStorage{data: map[string][]model.HistoryPoint{"http://9.9.9.9:80": old}, loadErr: errors.New("corrupt")}
	s := NewStore(backend, 10)
	_ = s.Load()
	if !s.Degraded() {
		t.Fatal("Expected the store to be degraded after a failed load")
	}
	s.Merge([]model.ProbeResult{result(time.Unix(2, 0), true, 5)})
	if err := s.Save(); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	if backend.saves != 0 {
		t.Errorf("Expected no backend writes after a failed load, got %d", backend.saves)
	}
	if len(backend.data["http://9.9.9.9:80"]) != 1 {
		t.Error("Stored history was overwritten")
	}

	backend.loadErr = nil
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if s.Degraded() {
		t.Error("Expected a successful load to clear the degraded state")
	}
	s.Merge([]model.ProbeResult{result(time.Unix(3, 0), true, 5)})
	if err := s.Save(); err != nil || backend.saves != 1 {
		t.Errorf("Expected one backend write after recovery, got saves=%d err=%v", backend.saves, err)
	}
	if len(backend.data["http://9.9.9.9:80"]) != 1 || len(backend.data[p1.Key()]) != 1 {
		t.Errorf("Expected old and new history to be saved together, got %+v", backend.data)
	}
}

func TestStore_SaveFailureKeepsMemory(t *testing.T) {
	backend := &memStorage{saveErr: errors.New("read-only fs")}
	s := NewStore(backend, 10)
	_ = s.Load()
	s.Merge([]model.ProbeResult{result(time.Unix(1, 0), true, 5), result(time.Unix(2, 0), false, 0)})

	if err := s.Save(); err == nil {
		t.Fatal("Expected Save() to report the error")
	}
	e := s.Entry(p1.Key())
	if len(e.Points) != 2 || !e.Points[0].Success || e.Points[1].Success {
		t.Errorf("In-memory history changed after failed save: %+v", e.Points)
	}
}

func TestStore_EntryIsACopy(t *testing.T) {
	s := NewStore(&memStorage{}, 10)
	_ = s.Load()
	s.Merge([]model.ProbeResult{result(time.Unix(1, 0), true, 5)})

	e := s.Entry(p1.Key())
	e.Points[0].Score = 999
	if s.Entry(p1.Key()).Points[0].Score != 5 {
		t.Error("Mutating a returned entry must not affect the store")
	}
	if got := s.Entry("http://9.9.9.9:1").Points; len(got) != 0 {
		t.Errorf("Expected empty entry for unknown proxy, got %v", got)
	}
}
