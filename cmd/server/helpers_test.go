package main

import (
	"bytes"
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/miniminder/internal/config"
	"github.com/phrazzld/miniminder/internal/platform/database"
	"github.com/phrazzld/miniminder/internal/push"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testConfig returns a push-disabled configuration backed by a SQLite file
// in a fresh temporary directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			LogLevel:        "debug",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			URL:    "file:" + filepath.Join(t.TempDir(), "miniminder.sqlite"),
		},
		Push: config.PushConfig{
			Subscriber: "mailto:test@example.com",
			TTLSeconds: 60,
			Timeout:    2 * time.Second,
		},
		Scheduler: config.SchedulerConfig{
			GuardMargin:     time.Second,
			DeliveryWorkers: 2,
			QueueSize:       16,
			MaxSleep:        50 * time.Millisecond,
		},
	}
}

func enablePush(t *testing.T, cfg *config.Config) push.VAPIDKeys {
	t.Helper()
	keys, err := push.GenerateVAPIDKeys()
	require.NoError(t, err)
	cfg.Push.VAPIDPublicKey = keys.PublicKey
	cfg.Push.VAPIDPrivateKey = keys.PrivateKey
	return keys
}

// newTestApp opens and migrates the configured database and wires an
// application with a private metrics registry. It is not started.
func newTestApp(t *testing.T, cfg *config.Config) *application {
	t.Helper()

	ctx := context.Background()
	log := testLogger()

	db, dialect, err := database.Open(ctx, cfg.Database, log)
	require.NoError(t, err)

	m, err := database.NewMigrator(db, dialect, log)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx))

	app, err := newApplication(cfg, log, db, dialect, appOptions{registry: prometheus.NewRegistry()})
	require.NoError(t, err)
	return app
}

// browserKeys returns client key material that payload encryption accepts.
func browserKeys(t *testing.T) (p256dh, auth string) {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	secret := make([]byte, 16)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		base64.RawURLEncoding.EncodeToString(secret)
}

// call sends a JSON request and decodes a JSON object response.
func call(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func countSchedules(t *testing.T, app *application) int {
	t.Helper()
	var n int
	require.NoError(t, app.db.QueryRow("SELECT COUNT(*) FROM schedules").Scan(&n))
	return n
}
