// Package store persists search history and saved monitors in Postgres.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SearchRecord is one completed search run kept for history.
type SearchRecord struct {
	ID         string
	UserID     string
	Query      string
	Sources    []models.Platform
	Sort       models.Sort
	TotalPosts int
	Summary    models.Summary
	Warnings   []string
	DurationMS int64
	CreatedAt  time.Time
}

// Monitor is a saved query re-run on a cron schedule.
type Monitor struct {
	ID           string
	UserID       string
	Name         string
	Query        string
	Sources      []models.Platform
	TimeFilter   string
	ScheduleCron string
	LastRunAt    *time.Time
	CreatedAt    time.Time
}

func (s *Store) SaveSearch(ctx context.Context, rec SearchRecord) (string, error) {
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return "", fmt.Errorf("encode summary: %w", err)
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return "", fmt.Errorf("encode sources: %w", err)
	}
	warnings, err := json.Marshal(rec.Warnings)
	if err != nil {
		return "", fmt.Errorf("encode warnings: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO searches (user_id, query, sources, sort, total_posts, summary, warnings, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`, nullIfEmpty(rec.UserID), rec.Query, sources, string(rec.Sort), rec.TotalPosts, summary, warnings, rec.DurationMS).Scan(&id)
	return id, err
}

func (s *Store) ListSearches(ctx context.Context, userID string, limit int) ([]SearchRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, COALESCE(user_id::text,''), query, sources, sort, total_posts, summary, warnings, duration_ms, created_at
FROM searches
WHERE $1 = '' OR user_id::text = $1
ORDER BY created_at DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SearchRecord
	for rows.Next() {
		var rec SearchRecord
		var sortName string
		var sources, summary, warnings []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &sources, &sortName, &rec.TotalPosts, &summary, &warnings, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Sort = models.Sort(sortName)
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(summary, &rec.Summary); err != nil {
			return nil, fmt.Errorf("decode summary for %s: %w", rec.ID, err)
		}
		if len(warnings) > 0 {
			if err := json.Unmarshal(warnings, &rec.Warnings); err != nil {
				return nil, fmt.Errorf("decode warnings for %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) CreateMonitor(ctx context.Context, m Monitor) (string, error) {
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return "", fmt.Errorf("encode sources: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx, `
INSERT INTO monitors (user_id, name, query, sources, time_filter, schedule_cron)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, nullIfEmpty(m.UserID), m.Name, m.Query, sources, m.TimeFilter, m.ScheduleCron).Scan(&id)
	return id, err
}

func (s *Store) ListMonitors(ctx context.Context, userID string) ([]Monitor, error) {
	return s.queryMonitors(ctx, `
SELECT id, COALESCE(user_id::text,''), name, query, sources, time_filter, schedule_cron, last_run_at, created_at
FROM monitors
WHERE user_id::text = $1
ORDER BY created_at DESC
`, userID)
}

// ListAllMonitors returns every monitor regardless of owner, for the
// scheduler sweep.
func (s *Store) ListAllMonitors(ctx context.Context) ([]Monitor, error) {
	return s.queryMonitors(ctx, `
SELECT id, COALESCE(user_id::text,''), name, query, sources, time_filter, schedule_cron, last_run_at, created_at
FROM monitors
ORDER BY created_at DESC
`)
}

func (s *Store) queryMonitors(ctx context.Context, query string, args ...interface{}) ([]Monitor, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Monitor
	for rows.Next() {
		var m Monitor
		var sources []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.Query, &sources, &m.TimeFilter, &m.ScheduleCron, &m.LastRunAt, &m.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(sources, &m.Sources); err != nil {
			return nil, fmt.Errorf("decode sources for %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMonitor(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM monitors WHERE id=$1 AND user_id::text=$2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Store) MarkMonitorRun(ctx context.Context, id string, at time.Time) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE monitors SET last_run_at=$2 WHERE id=$1`, id, at)
	return err
}

func nullIfEmpty(s string) driver.Value {
	if s == "" {
		return nil
	}
	return s
}
