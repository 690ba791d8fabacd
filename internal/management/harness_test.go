package management

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/metrics"
	"github.com/KevinTCoughlin/spud/internal/platform"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
	"github.com/KevinTCoughlin/spud/internal/ui"
)

const (
	testWorld     = "TestWorld"
	testPID       = int32(31337)
	screenListing = "There is a screen on:\n\t4242.TestWorld\t(Detached)\n1 Socket in /run/screen/S-test.\n"
)

type fakeFetcher struct {
	mu    sync.Mutex
	count int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, dest string) error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return os.WriteFile(dest, []byte("jar"), 0o644)
}

func (f *fakeFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

type staticResolver struct{}

func (staticResolver) DownloadURL(context.Context, string) (string, error) {
	return "https://example.test/server.jar", nil
}

// harness wires a Controller to in-memory fakes. Dispatched console commands
// are observed through the mock runner; stop dispatches can kill the fake
// JVM after a set count.
type harness struct {
	t       *testing.T
	cfg     *config.ServerConfig
	runner  *platform.MockRunner
	table   *process.FakeTable
	fetcher *fakeFetcher
	metrics *metrics.Metrics
	ctl     *Controller
	orch    *Orchestrator
	out     *bytes.Buffer

	mu           sync.Mutex
	stops        int
	killAfter    int
	onDispatched func(cmd string)
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.ServerDir = filepath.Join(root, "server")
	cfg.BackupDir = filepath.Join(root, "backups")
	cfg.WorldName = testWorld
	cfg.ScreenName = testWorld
	cfg.MemMin = "512"
	cfg.MemMax = "1024"

	h := &harness{
		t:       t,
		cfg:     cfg,
		runner:  platform.NewMockRunner(),
		table:   process.NewFakeTable(),
		fetcher: &fakeFetcher{},
		metrics: metrics.New(),
		out:     &bytes.Buffer{},
	}
	h.runner.ExistsMap["screen"] = true
	h.runner.ExistsMap["java"] = true
	h.runner.OnRun = h.onRun

	h.ctl = NewController(cfg, Deps{
		Runner:   h.runner,
		Table:    h.table,
		Fetcher:  h.fetcher,
		Resolver: staticResolver{},
		Metrics:  h.metrics,
		Output:   ui.NewWriter(h.out, false),
	})
	h.ctl.PollInterval = 0
	h.orch = NewOrchestrator(h.ctl)
	h.orch.SettleDelay = 0
	return h
}

func (h *harness) onRun(cmd platform.MockCommand) {
	if cmd.Name != "screen" {
		return
	}
	if len(cmd.Args) >= 2 && cmd.Args[0] == "-dmS" {
		h.runner.SetOutput("screen", []string{"-ls", cmd.Args[1]}, []byte(screenListing))
		return
	}
	text, ok := stuffed(cmd)
	if !ok {
		return
	}
	h.mu.Lock()
	hook := h.onDispatched
	if text == CmdStop {
		h.stops++
		if h.killAfter > 0 && h.stops >= h.killAfter {
			h.table.Kill(testPID)
		}
	}
	h.mu.Unlock()
	if hook != nil {
		hook(text)
	}
}

func stuffed(cmd platform.MockCommand) (string, bool) {
	n := len(cmd.Args)
	if n < 2 || cmd.Args[n-2] != "stuff" {
		return "", false
	}
	return strings.TrimSuffix(cmd.Args[n-1], "\r"), true
}

// created makes the server directory look like a finished create.
func (h *harness) created() *harness {
	h.t.Helper()
	_, err := h.ctl.Create(context.Background(), false)
	require.NoError(h.t, err)
	h.runner.Reset()
	return h
}

// withSession makes the screen session exist.
func (h *harness) withSession() *harness {
	h.runner.SetOutput("screen", []string{"-ls", testWorld}, []byte(screenListing))
	return h
}

// running registers the JVM. killAfter > 0 makes it exit once that many
// stop commands have been dispatched.
func (h *harness) running(killAfter int) *harness {
	h.withSession()
	h.table.Add(testPID, process.FakeProcess{Name: "java", Cwd: h.cfg.ServerDir, Exe: "/usr/bin/java"})
	h.mu.Lock()
	h.killAfter = killAfter
	h.mu.Unlock()
	return h
}

// dispatched lists the console commands typed into the session.
func (h *harness) dispatched() []string {
	var out []string
	for _, cmd := range h.runner.Recorded() {
		if text, ok := stuffed(cmd); ok {
			out = append(out, text)
		}
	}
	return out
}

func (h *harness) launchCommand() string {
	return server.LaunchCommand(h.cfg)
}

func (h *harness) writeWorld(files map[string]string) {
	h.t.Helper()
	for name, body := range files {
		path := filepath.Join(h.cfg.ServerDir, name)
		require.NoError(h.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(h.t, os.WriteFile(path, []byte(body), 0o644))
	}
}
