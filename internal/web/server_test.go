package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/metrics"
	"github.com/KevinTCoughlin/spud/internal/platform"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testWorld = "WebWorld"
	testPID   = int32(4711)
	listing   = "There is a screen on:\n\t999.WebWorld\t(Detached)\n1 Socket in /run/screen/S-test.\n"
)

var fixedNow = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

type fixture struct {
	cfg    *config.ServerConfig
	runner *platform.MockRunner
	table  *process.FakeTable
	srv    *Server

	mu    sync.Mutex
	stops int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ServerDir = filepath.Join(root, "server")
	cfg.BackupDir = filepath.Join(root, "backups")
	cfg.WorldName = testWorld
	cfg.ScreenName = testWorld
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ServerDir, testWorld), 0o755))
	require.NoError(t, os.MkdirAll(cfg.BackupDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ServerDir, testWorld, "level.dat"), []byte("level"), 0o644))

	f := &fixture{
		cfg:    cfg,
		runner: platform.NewMockRunner(),
		table:  process.NewFakeTable(),
	}
	f.runner.ExistsMap["screen"] = true
	f.runner.ExistsMap["java"] = true
	f.runner.OnRun = f.onRun

	m := metrics.New()
	ctl := management.NewController(cfg, management.Deps{
		Runner:  f.runner,
		Table:   f.table,
		Metrics: m,
	})
	ctl.PollInterval = 0
	orch := management.NewOrchestrator(ctl)
	orch.SettleDelay = 0

	srv, err := New(Options{
		Controller:   ctl,
		Orchestrator: orch,
		Metrics:      m,
		Runner:       f.runner,
		Now:          func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	f.srv = srv
	return f
}

// onRun kills the fake JVM when it is told to stop.
func (f *fixture) onRun(cmd platform.MockCommand) {
	if cmd.Name != "screen" || len(cmd.Args) == 0 {
		return
	}
	if cmd.Args[len(cmd.Args)-1] == "stop\r" {
		f.mu.Lock()
		f.stops++
		f.mu.Unlock()
		f.table.Kill(testPID)
	}
}

func (f *fixture) running() *fixture {
	f.runner.SetOutput("screen", []string{"-ls", testWorld}, []byte(listing))
	f.table.Add(testPID, process.FakeProcess{
		Name:    "java",
		Cwd:     f.cfg.ServerDir,
		Exe:     "/usr/bin/java",
		Started: fixedNow.Add(-time.Hour),
	})
	return f
}

func (f *fixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func (f *fixture) job(t *testing.T, w *httptest.ResponseRecorder) Job {
	t.Helper()
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var accepted struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accepted))
	require.NotEmpty(t, accepted.ID)

	f.srv.Wait()
	res := f.do(http.MethodGet, "/api/jobs/"+accepted.ID)
	require.Equal(t, http.StatusOK, res.Code)
	var job Job
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &job))
	assert.Equal(t, accepted.ID, job.ID)
	return job
}

func TestStatus_NotRunning(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, false, body["running"])
	assert.Equal(t, testWorld, body["world_name"])
	cfg, ok := body["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, f.cfg.ServerDir, cfg["server_dir"])
}

func TestStatus_Running(t *testing.T) {
	f := newFixture(t).running()

	w := f.do(http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, true, body["running"])
	assert.Equal(t, float64(testPID), body["pid"])
	assert.Equal(t, "999."+testWorld, body["session"])
}

func TestStop_Job(t *testing.T) {
	f := newFixture(t).running()

	job := f.job(t, f.do(http.MethodPost, "/api/stop"))
	assert.Equal(t, JobSucceeded, job.State, job.Error)
	assert.Equal(t, "stop", job.Kind)
	require.NotNil(t, job.Finished)
	assert.Equal(t, 1, f.stops)
}

func TestStop_NotRunningFailsJob(t *testing.T) {
	f := newFixture(t)

	job := f.job(t, f.do(http.MethodPost, "/api/stop"))
	assert.Equal(t, JobFailed, job.State)
	assert.Contains(t, job.Error, "not running")
}

func TestBackup_Offline(t *testing.T) {
	f := newFixture(t)

	job := f.job(t, f.do(http.MethodPost, "/api/backup?scope=world"))
	require.Equal(t, JobSucceeded, job.State, job.Error)

	want := filepath.Join(f.cfg.BackupDir, management.BackupFileName(testWorld, management.ScopeWorldOnly, "gz", fixedNow))
	assert.FileExists(t, want)
	result, ok := job.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, want, result["path"])

	again := f.job(t, f.do(http.MethodPost, "/api/backup?scope=world"))
	assert.Equal(t, JobFailed, again.State)
	assert.Contains(t, again.Error, "exists")

	forced := f.job(t, f.do(http.MethodPost, "/api/backup?scope=world&force=true"))
	assert.Equal(t, JobSucceeded, forced.State, forced.Error)
}

func TestBackup_BadQuery(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/backup?scope=everything",
		"/api/backup?offline=maybe",
		"/api/backup?force=sometimes",
	} {
		t.Run(path, func(t *testing.T) {
			w := f.do(http.MethodPost, path)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
}

func TestJob_NotFound(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/jobs/does-not-exist")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStart_NoJar(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/start")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "error")
}

func TestStart_AlreadyRunning(t *testing.T) {
	f := newFixture(t).running()
	jar := filepath.Join(f.cfg.ServerDir, server.JarName(f.cfg))
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))

	w := f.do(http.MethodPost, "/api/start")
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/api/start")

	w := f.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `spud_lifecycle_operations_total{op="start",result="error"} 1`)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/live").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/ready").Code)

	f.runner.ExistsMap["screen"] = false
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/ready").Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/live").Code)
}

func TestNew_InvalidSchedule(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ServerDir = t.TempDir()
	cfg.BackupDir = t.TempDir()
	cfg.BackupSchedule = "every tuesday"
	ctl := management.NewController(cfg, management.Deps{
		Runner: platform.NewMockRunner(),
		Table:  process.NewFakeTable(),
	})

	_, err := New(Options{Controller: ctl})
	require.ErrorIs(t, err, config.ErrInvalidSetting)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", management.ErrAlreadyRunning), http.StatusConflict},
		{fmt.Errorf("x: %w", management.ErrNotRunning), http.StatusConflict},
		{fmt.Errorf("x: %w", management.ErrBackupExists), http.StatusConflict},
		{fmt.Errorf("x: %w", management.ErrBusy), http.StatusConflict},
		{fmt.Errorf("x: %w", config.ErrInvalidMemoryBounds), http.StatusBadRequest},
		{fmt.Errorf("x: %w", config.ErrNoDirectoryFound), http.StatusBadRequest},
		{fmt.Errorf("x: %w", server.ErrUnsupportedVersion), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(requestLogger())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusTeapot, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping?x=1", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "pong"))
}
