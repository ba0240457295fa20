package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"proxybench/internal/shared/logger"
	"proxybench/proxypool/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS history (
	proxy     TEXT    NOT NULL,
	ts        INTEGER NOT NULL,
	score     REAL    NOT NULL,
	success   INTEGER NOT NULL,
	PRIMARY KEY (proxy, ts)
)`

// SQLiteStorage 把历史保存在 SQLite 表中，与 FileStorage 可互换。
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage 打开（必要时创建）数据库文件并建表。
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// sqlite 单写者
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history table: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) Load() (map[string][]model.HistoryPoint, error) {
	rows, err := s.db.Query(`SELECT proxy, ts, score, success FROM history ORDER BY proxy, ts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := make(map[string][]model.HistoryPoint)
	for rows.Next() {
		var (
			key     string
			ms      int64
			score   float64
			success bool
		)
		if err := rows.Scan(&key, &ms, &score, &success); err != nil {
			return nil, err
		}
		history[key] = append(history[key], model.HistoryPoint{
			Timestamp: time.UnixMilli(ms),
			Score:     score,
			Success:   success,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	l := logger.WithComponent("ProxyBench/Storage")
	l.Info().Int("proxies", len(history)).Msg("Successfully loaded history from sqlite.")
	return history, nil
}

// Save 在一个事务中替换全部历史，失败时回滚，旧数据保持不变。
func (s *SQLiteStorage) Save(history map[string][]model.HistoryPoint) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM history`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO history (proxy, ts, score, success) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	rows := 0
	for key, pts := range history {
		for _, p := range pts {
			if _, err = stmt.Exec(key, p.Timestamp.UnixMilli(), p.Score, p.Success); err != nil {
				return err
			}
			rows++
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	l := logger.WithComponent("ProxyBench/Storage")
	l.Info().Int("proxies", len(history)).Int("rows", rows).Msg("Successfully saved history to sqlite.")
	return nil
}
