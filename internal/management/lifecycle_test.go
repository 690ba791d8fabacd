package management

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/server"
)

func TestCreate_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.ctl.Create(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, CreateResult{Downloaded: true, EULAWritten: true, PropertiesWritten: true}, first)

	props1, err := os.ReadFile(filepath.Join(h.cfg.ServerDir, "server.properties"))
	require.NoError(t, err)
	eula1, err := os.ReadFile(filepath.Join(h.cfg.ServerDir, "eula.txt"))
	require.NoError(t, err)

	second, err := h.ctl.Create(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, CreateResult{}, second)
	assert.Equal(t, 1, h.fetcher.calls(), "second create must not download")

	props2, _ := os.ReadFile(filepath.Join(h.cfg.ServerDir, "server.properties"))
	eula2, _ := os.ReadFile(filepath.Join(h.cfg.ServerDir, "eula.txt"))
	assert.Equal(t, props1, props2)
	assert.Equal(t, eula1, eula2)
	assert.DirExists(t, h.cfg.BackupDir)
}

func TestCreate_Force(t *testing.T) {
	h := newHarness(t).created()

	res, err := h.ctl.Create(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Downloaded && res.EULAWritten && res.PropertiesWritten)
	assert.Equal(t, 2, h.fetcher.calls())
}

func TestCreate_RewritesStaleProperties(t *testing.T) {
	h := newHarness(t).created()
	h.cfg.LevelSeed = "8675309"

	res, err := h.ctl.Create(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Downloaded)
	assert.True(t, res.PropertiesWritten)
}

func TestCreate_AlreadyRunning(t *testing.T) {
	h := newHarness(t).created().running(0)

	_, err := h.ctl.Create(context.Background(), false)
	require.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestCreate_InvalidMemory(t *testing.T) {
	h := newHarness(t)
	h.cfg.MemMin = "4096"

	_, err := h.ctl.Create(context.Background(), false)
	require.ErrorIs(t, err, config.ErrInvalidMemoryBounds)
	assert.NoDirExists(t, h.cfg.ServerDir)
}

func TestCreate_MissingScreen(t *testing.T) {
	h := newHarness(t)
	h.runner.ExistsMap["screen"] = false

	_, err := h.ctl.Create(context.Background(), false)
	require.ErrorIs(t, err, ErrMissingDependency)
	assert.NoDirExists(t, h.cfg.ServerDir)
}

func TestStart(t *testing.T) {
	h := newHarness(t).created()

	require.NoError(t, h.ctl.Start(context.Background()))

	cmds := h.runner.Recorded()
	var created bool
	for _, c := range cmds {
		if c.Name == "screen" && len(c.Args) == 2 && c.Args[0] == "-dmS" && c.Args[1] == testWorld {
			created = true
			assert.Equal(t, h.cfg.ServerDir, c.Dir)
		}
	}
	assert.True(t, created, "expected a screen session named after the screen name")
	assert.Equal(t, []string{"java -Xms512M -Xmx1024M -jar minecraft_server.1.10.2.jar nogui"}, h.dispatched())
}

func TestStart_AlreadyRunning(t *testing.T) {
	h := newHarness(t).created().running(0)

	for i := 0; i < 3; i++ {
		err := h.ctl.Start(context.Background())
		require.ErrorIs(t, err, ErrAlreadyRunning)
		assert.Contains(t, err.Error(), strconv.Itoa(int(testPID)))
	}
	assert.Empty(t, h.dispatched(), "no launch command may be sent")
}

func TestStart_Preflight(t *testing.T) {
	t.Run("missing directories", func(t *testing.T) {
		h := newHarness(t)
		require.ErrorIs(t, h.ctl.Start(context.Background()), config.ErrNoDirectoryFound)
	})

	t.Run("missing jar", func(t *testing.T) {
		h := newHarness(t).created()
		require.NoError(t, os.Remove(server.JarPath(h.cfg)))
		require.ErrorIs(t, h.ctl.Start(context.Background()), server.ErrNoJarFound)
	})

	t.Run("missing java", func(t *testing.T) {
		h := newHarness(t).created()
		h.runner.ExistsMap["java"] = false
		require.ErrorIs(t, h.ctl.Start(context.Background()), ErrMissingDependency)
		assert.Empty(t, h.runner.Recorded())
	})
}

func TestStop_NotRunning(t *testing.T) {
	h := newHarness(t).created().withSession()

	err := h.ctl.Stop(context.Background())
	require.ErrorIs(t, err, ErrNotRunning)
	assert.Empty(t, h.runner.Recorded(), "stop on an absent server must send nothing")
}

func TestStop(t *testing.T) {
	h := newHarness(t).created().running(3)

	require.NoError(t, h.ctl.Stop(context.Background()))
	assert.Equal(t, []string{CmdStop, CmdStop, CmdStop, CmdExit}, h.dispatched())

	n, err := testutil.GatherAndCount(h.metrics.Registry(), "spud_lifecycle_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n, "create and stop series")
}

func TestRestart(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		h := newHarness(t).created().running(2)
		require.NoError(t, h.ctl.Restart(context.Background()))
		assert.Equal(t, []string{CmdStop, CmdStop, h.launchCommand()}, h.dispatched())
	})

	t.Run("stopped", func(t *testing.T) {
		h := newHarness(t).created()
		require.NoError(t, h.ctl.Restart(context.Background()))
		assert.Equal(t, []string{h.launchCommand()}, h.dispatched())
	})
}

// A JVM that ignores stop keeps WaitForShutdown polling until the caller's
// context ends; there is no built-in ceiling.
func TestStop_NeverExits(t *testing.T) {
	h := newHarness(t).created()
	require.NoError(t, h.ctl.Start(context.Background()))
	h.running(0)
	h.ctl.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := h.ctl.Stop(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var stops int
	for _, c := range h.dispatched() {
		if c == CmdStop {
			stops++
		}
	}
	assert.Greater(t, stops, 1, "stop must be re-sent while the process lives")
	assert.NotContains(t, h.dispatched(), CmdExit)
}

func TestLifecycle_Busy(t *testing.T) {
	h := newHarness(t).created().running(0)

	release, err := h.ctl.lock.TryAcquire()
	require.NoError(t, err)
	defer release()

	require.ErrorIs(t, h.ctl.Start(context.Background()), ErrBusy)
	require.ErrorIs(t, h.ctl.Stop(context.Background()), ErrBusy)
	assert.Empty(t, h.dispatched())
}

// Run with -race: lifecycle calls and status encoding share one config.
func TestLifecycle_ConcurrentConfigReads(t *testing.T) {
	h := newHarness(t).created().running(0)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			err := h.ctl.Start(ctx)
			assert.True(t, errors.Is(err, ErrAlreadyRunning) || errors.Is(err, ErrBusy), "start: %v", err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.ctl.Status(ctx)
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := json.Marshal(h.ctl.Config())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, testWorld, h.cfg.ScreenName)
}

func TestStatus(t *testing.T) {
	h := newHarness(t).created()
	ctx := context.Background()

	st, err := h.ctl.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Running)

	h.running(0)
	st, err = h.ctl.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.Equal(t, testPID, st.PID)
	assert.Equal(t, "4242.TestWorld", st.Session)
}

func TestSayAndSaveAll(t *testing.T) {
	h := newHarness(t).created()
	ctx := context.Background()

	require.ErrorIs(t, h.ctl.Say(ctx, "hi"), ErrNotRunning)

	h.running(0)
	require.NoError(t, h.ctl.Say(ctx, "hello there"))
	require.NoError(t, h.ctl.SaveAll(ctx))
	require.NoError(t, h.ctl.Send(ctx, "time set day"))
	assert.Equal(t, []string{"say hello there", CmdSaveAll, "time set day"}, h.dispatched())
}

func TestListPlayers(t *testing.T) {
	tests := []struct {
		name  string
		lines string
		want  PlayerList
	}{
		{
			name:  "legacy format",
			lines: "[12:00:00] [Server thread/INFO]: There are 2/20 players online:\n[12:00:00] [Server thread/INFO]: alice, bob\n",
			want:  PlayerList{Online: 2, Max: 20, Names: []string{"alice", "bob"}},
		},
		{
			name:  "modern format",
			lines: "[12:00:00] [Server thread/INFO]: There are 1 of a max of 20 players online: carol\n",
			want:  PlayerList{Online: 1, Max: 20, Names: []string{"carol"}},
		},
		{
			name:  "nobody online",
			lines: "[12:00:00] [Server thread/INFO]: There are 0/20 players online:\n[12:00:00] [Server thread/INFO]: \n",
			want:  PlayerList{Online: 0, Max: 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t).created().running(0)
			logPath := filepath.Join(h.cfg.ServerDir, "logs", "latest.log")
			require.NoError(t, os.MkdirAll(filepath.Dir(logPath), 0o755))
			old := "[11:00:00] [Server thread/INFO]: There are 9/20 players online:\n[11:00:00] [Server thread/INFO]: stale\n"
			require.NoError(t, os.WriteFile(logPath, []byte(old), 0o644))

			h.onDispatched = func(cmd string) {
				if cmd != CmdList {
					return
				}
				f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
				if err == nil {
					_, _ = f.WriteString(tt.lines)
					f.Close()
				}
			}

			got, err := h.ctl.ListPlayers(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListPlayers_NoReply(t *testing.T) {
	h := newHarness(t).created().running(0)

	_, err := h.ctl.ListPlayers(context.Background())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "latest.log"))
	assert.False(t, errors.Is(err, ErrNotRunning))
}
