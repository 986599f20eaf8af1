package app

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ErronZrz/rank-poll/internal/config"
	"github.com/ErronZrz/rank-poll/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"),
	)
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		Addr:                "127.0.0.1:0",
		Store:               config.DriverFile,
		DataDir:             t.TempDir(),
		WALGroupCommitEvery: time.Millisecond,
		WALGroupBatch:       8,
		SnapshotInterval:    time.Hour,
		SSEHeartbeat:        time.Hour,
		ServiceName:         "rank-poll-test",
	}
}

func TestNewApp_UnreachablePostgres(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store = config.DriverPostgres
	cfg.PostgresDSN = "host=127.0.0.1 port=1 user=none dbname=none sslmode=disable connect_timeout=1"

	_, err := NewApp(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestRun_ServesAndSnapshotsOnExit(t *testing.T) {
	cfg := testConfig(t)
	a, err := NewApp(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Store.Upsert(context.Background(), core.Item{ID: 1, Title: "one"}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// an open event stream must not hold up shutdown
	resp, err = client.Get(base + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "event:"), line)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("run did not return")
	}

	_, err = os.Stat(filepath.Join(cfg.DataDir, "snapshot.json"))
	assert.NoError(t, err)
	client.CloseIdleConnections()
}
