package database

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/domain"
	"github.com/phrazzld/miniminder/internal/platform/clock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// openSQLite opens a migrated SQLite database under t.TempDir().
func openSQLite(t *testing.T) *sql.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver: string(DialectSQLite),
		URL:    "file:" + filepath.Join(t.TempDir(), "test.sqlite"),
	}
	db, dialect, err := Open(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	m, err := NewMigrator(db, dialect, testLogger())
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))

	return db
}

type fixture struct {
	db    *sql.DB
	clock *clock.MockClock
	subs  *SubscriptionStore
	sched *ScheduleStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := openSQLite(t)
	clk := clock.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		db:    db,
		clock: clk,
		subs:  NewSubscriptionStore(db, DialectSQLite, testLogger()),
		sched: NewScheduleStore(db, DialectSQLite, clk, domain.DefaultGuardMargin, testLogger()),
	}
}

func (f *fixture) subscription(t *testing.T, endpoint string) int64 {
	t.Helper()

	sub, err := domain.NewSubscription(endpoint, "p256dh-key", "auth-key", f.clock.Now())
	require.NoError(t, err)
	id, err := f.subs.Upsert(context.Background(), sub)
	require.NoError(t, err)
	return id
}

func (f *fixture) schedule(t *testing.T, subID int64, taskID string, in time.Duration) int64 {
	t.Helper()

	now := f.clock.Now()
	sch, err := domain.NewSchedule(subID, taskID, "title "+taskID, "", now.Add(in), now, domain.DefaultGuardMargin)
	require.NoError(t, err)
	id, err := f.sched.Insert(context.Background(), sch)
	require.NoError(t, err)
	return id
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
