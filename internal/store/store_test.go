package store

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/kromahlusenii-ops/civic-voices-sub003/models"
)

func TestSaveSearch(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	query := regexp.QuoteMeta(`
INSERT INTO searches (user_id, query, sources, sort, total_posts, summary, warnings, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`)
	mock.ExpectQuery(query).
		WithArgs("user-1", "climate protest", sqlmock.AnyArg(), "relevance", 12, sqlmock.AnyArg(), sqlmock.AnyArg(), int64(4321)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("search-1"))

	id, err := st.SaveSearch(context.Background(), SearchRecord{
		UserID:     "user-1",
		Query:      "climate protest",
		Sources:    []models.Platform{models.PlatformX, models.PlatformBluesky},
		Sort:       models.SortRelevance,
		TotalPosts: 12,
		Summary:    models.Summary{TotalPosts: 12},
		Warnings:   []string{"TikTok search failed: no provider registered"},
		DurationMS: 4321,
	})
	if err != nil {
		t.Fatalf("SaveSearch: %v", err)
	}
	if id != "search-1" {
		t.Fatalf("unexpected id %q", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveSearchAnonymousUserStoresNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectQuery("INSERT INTO searches").
		WithArgs(nil, "transit", sqlmock.AnyArg(), "recent", 0, sqlmock.AnyArg(), sqlmock.AnyArg(), int64(10)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("search-2"))

	if _, err := st.SaveSearch(context.Background(), SearchRecord{
		Query:      "transit",
		Sort:       models.SortRecent,
		DurationMS: 10,
	}); err != nil {
		t.Fatalf("SaveSearch: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSearches(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery("SELECT id, COALESCE\\(user_id::text,''\\), query, sources").
		WithArgs("user-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "query", "sources", "sort", "total_posts", "summary", "warnings", "duration_ms", "created_at",
		}).AddRow(
			"search-1", "user-1", "climate protest", []byte(`["x","bluesky"]`), "relevance", 12,
			[]byte(`{"totalPosts":12,"platforms":{"x":9,"bluesky":3},"sentiment":{"positive":5,"neutral":5,"negative":2},"timeRange":{"start":"2026-08-18T00:00:00Z","end":"2026-08-20T00:00:00Z"},"credibility":{"averageScore":0.42,"tier1Count":1,"verifiedCount":3}}`),
			[]byte(`[]`), int64(4321), now,
		))

	recs, err := st.ListSearches(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("ListSearches: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	rec := recs[0]
	if rec.Query != "climate protest" || rec.Summary.TotalPosts != 12 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if len(rec.Sources) != 2 || rec.Sources[0] != models.PlatformX {
		t.Fatalf("sources not decoded: %v", rec.Sources)
	}
	if rec.Summary.Platforms[models.PlatformX] != 9 {
		t.Fatalf("summary platforms not decoded: %+v", rec.Summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMonitorLifecycle(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	now := time.Now()

	mock.ExpectQuery("INSERT INTO monitors").
		WithArgs("user-1", "water rates", "water rate hike", sqlmock.AnyArg(), "24h", "0 * * * *").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("mon-1"))

	id, err := st.CreateMonitor(context.Background(), Monitor{
		UserID:       "user-1",
		Name:         "water rates",
		Query:        "water rate hike",
		Sources:      []models.Platform{models.PlatformX},
		TimeFilter:   "24h",
		ScheduleCron: "0 * * * *",
	})
	if err != nil {
		t.Fatalf("CreateMonitor: %v", err)
	}
	if id != "mon-1" {
		t.Fatalf("unexpected id %q", id)
	}

	mock.ExpectQuery("SELECT id, COALESCE\\(user_id::text,''\\), name, query, sources").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "name", "query", "sources", "time_filter", "schedule_cron", "last_run_at", "created_at",
		}).AddRow("mon-1", "user-1", "water rates", "water rate hike", []byte(`["x"]`), "24h", "0 * * * *", nil, now))

	monitors, err := st.ListMonitors(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListMonitors: %v", err)
	}
	if len(monitors) != 1 || monitors[0].ScheduleCron != "0 * * * *" {
		t.Fatalf("unexpected monitors: %+v", monitors)
	}
	if monitors[0].LastRunAt != nil {
		t.Fatalf("fresh monitor must have nil last run")
	}

	mock.ExpectExec("DELETE FROM monitors").
		WithArgs("mon-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := st.DeleteMonitor(context.Background(), "mon-1", "user-1"); err != nil {
		t.Fatalf("DeleteMonitor: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDeleteMonitorMissingRowsReportsNoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec("DELETE FROM monitors").
		WithArgs("mon-404", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := st.DeleteMonitor(context.Background(), "mon-404", "user-1"); err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
