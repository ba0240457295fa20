package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"proxybench/proxypool/model"
)

func sampleHistory() map[string][]model.HistoryPoint {
	base := time.UnixMilli(1700000000000)
	return map[string][]model.HistoryPoint{
		"http://1.1.1.1:8080": {
			{Timestamp: base, Score: 12.5, Success: true},
			{Timestamp: base.Add(time.Hour), Score: 0, Success: false},
		},
		"socks5://2.2.2.2:1080": {
			{Timestamp: base, Score: 90.90909, Success: true},
		},
	}
}

func assertHistoryEqual(t *testing.T, got, want map[string][]model.HistoryPoint) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %d proxies, got %d", len(want), len(got))
	}
	for k, wpts := range want {
		gpts := got[k]
		if len(gpts) != len(wpts) {
			t.Errorf("%s: expected %d points, got %d", k, len(wpts), len(gpts))
			continue
		}
		for i := range wpts {
			if !gpts[i].Timestamp.Equal(wpts[i].Timestamp) || gpts[i].Score != wpts[i].Score || gpts[i].Success != wpts[i].Success {
				t.Errorf("%s[%d]: got %+v, want %+v", k, i, gpts[i], wpts[i])
			}
		}
	}
}

func TestFileStorage_MissingFileIsEmpty(t *testing.T) {
	fs := NewFileStorage(filepath.Join(t.TempDir(), "history.csv"))
	h, err := fs.Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	if len(h) != 0 {
		t.Errorf("Expected empty history, got %d entries", len(h))
	}
}

func TestFileStorage_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	fs := NewFileStorage(path)
	if err := fs.Save(sampleHistory()); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := string(data[:len("Proxy,Timestamp,Score,Success")]); got != "Proxy,Timestamp,Score,Success" {
		t.Errorf("Expected CSV header, got %q", got)
	}

	h, err := NewFileStorage(path).Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	assertHistoryEqual(t, h, sampleHistory())
}

func TestFileStorage_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	content := "Proxy,Timestamp,Score,Success\n" +
		"http://1.1.1.1:8080,1700000000000,3.5,true\n" +
		"http://1.1.1.1:8080,not-a-time,3.5,true\n" +
		"garbage\n" +
		"1.1.1.1:8080,1700000000000,3.5,true\n" +
		"http://1.1.1.1:8080,1699999999000,1,false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := NewFileStorage(path).Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	pts := h["http://1.1.1.1:8080"]
	if len(pts) != 2 {
		t.Fatalf("Expected 2 valid points, got %d", len(pts))
	}
	if pts[0].Success || !pts[1].Success {
		t.Errorf("Expected points sorted oldest first, got %+v", pts)
	}
}

func TestFileStorage_SkipsLinesWithBrokenQuotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	content := "Proxy,Timestamp,Score,Success\n" +
		"http://1.1.1.1:8080,1700000000000,3.5,true\n" +
		"http://1.1.1.1:8080,17000\"00001000,3.5,true\n" +
		"\"http://1.1.1.1:8080,1700000002000,3.5,true\n" +
		"http://1.1.1.1:8080,1700000003000,2,false\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	h, err := NewFileStorage(path).Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	pts := h["http://1.1.1.1:8080"]
	if len(pts) != 2 {
		t.Fatalf("Expected the 2 intact points to survive, got %d", len(pts))
	}
	if pts[1].Timestamp.UnixMilli() != 1700000003000 {
		t.Errorf("Expected the line after the broken ones to be read, got %+v", pts)
	}
}

func TestFileStorage_SaveFailureLeavesOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.csv")
	fs := NewFileStorage(path)
	if err := fs.Save(sampleHistory()); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(path)

	bad := NewFileStorage(filepath.Join(dir, "missing-dir", "history.csv"))
	if err := bad.Save(sampleHistory()); err == nil {
		t.Fatal("Expected Save() into a missing directory to fail")
	}
	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("Existing history file changed after an unrelated failed save")
	}
}

func TestSQLiteStorage_SaveLoad(t *testing.T) {
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage() returned an error: %v", err)
	}
	defer s.Close()

	empty, err := s.Load()
	if err != nil || len(empty) != 0 {
		t.Fatalf("Expected empty history from a fresh db, got %v, %v", empty, err)
	}

	if err := s.Save(sampleHistory()); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	h, err := s.Load()
	if err != nil {
		t.Fatalf("Load() returned an error: %v", err)
	}
	assertHistoryEqual(t, h, sampleHistory())

	// 第二次保存替换而不是追加
	trimmed := map[string][]model.HistoryPoint{"http://1.1.1.1:8080": sampleHistory()["http://1.1.1.1:8080"][1:]}
	if err := s.Save(trimmed); err != nil {
		t.Fatalf("Save() returned an error: %v", err)
	}
	h, _ = s.Load()
	assertHistoryEqual(t, h, trimmed)
}
