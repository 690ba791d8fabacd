package management

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/metrics"
	"github.com/KevinTCoughlin/spud/internal/platform"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
	"github.com/KevinTCoughlin/spud/internal/ui"
)

// DefaultPollInterval is how often WaitForShutdown re-checks the process
// and re-sends stop.
const DefaultPollInterval = time.Second

var errStillRunning = errors.New("server still running")

// Deps are the collaborators a Controller talks to.
type Deps struct {
	Runner   platform.CommandRunner
	Table    process.ProcessTable
	Fetcher  server.Fetcher
	Resolver server.URLResolver
	Metrics  *metrics.Metrics
	Output   *ui.UI
}

// Controller drives one server directory through create, start, stop and
// restart.
type Controller struct {
	cfg      *config.ServerConfig
	runner   platform.CommandRunner
	locator  *process.Locator
	sessions *SessionManager
	channel  *CommandChannel
	lock     *DirLock
	fetcher  server.Fetcher
	resolver server.URLResolver
	metrics  *metrics.Metrics
	output   *ui.UI

	// PollInterval is the WaitForShutdown interval.
	PollInterval time.Duration
}

// NewController wires a Controller for cfg.
func NewController(cfg *config.ServerConfig, deps Deps) *Controller {
	output := deps.Output
	if output == nil {
		output = ui.Default()
	}
	return &Controller{
		cfg:          cfg,
		runner:       deps.Runner,
		locator:      process.NewLocator(deps.Table, cfg.JavaPath),
		sessions:     NewSessionManager(deps.Runner),
		channel:      NewCommandChannel(deps.Runner),
		lock:         NewDirLock(cfg.ServerDir),
		fetcher:      deps.Fetcher,
		resolver:     deps.Resolver,
		metrics:      deps.Metrics,
		output:       output,
		PollInterval: DefaultPollInterval,
	}
}

// Config returns the controller's configuration.
func (c *Controller) Config() *config.ServerConfig { return c.cfg }

// Locator returns the process locator.
func (c *Controller) Locator() *process.Locator { return c.locator }

// Channel returns the command channel.
func (c *Controller) Channel() *CommandChannel { return c.channel }

// Sessions returns the session manager.
func (c *Controller) Sessions() *SessionManager { return c.sessions }

func (c *Controller) validate(needDirs bool) error {
	if err := c.cfg.Validate(); err != nil {
		return err
	}
	if needDirs {
		return c.cfg.ValidateDirectories()
	}
	return nil
}

// locate returns the running server, or ok=false when none is found.
func (c *Controller) locate(ctx context.Context) (process.Identity, bool, error) {
	id, err := c.locator.Locate(ctx, c.cfg.ServerDir)
	if errors.Is(err, process.ErrNotFound) {
		return process.Identity{}, false, nil
	}
	if err != nil {
		return process.Identity{}, false, err
	}
	return id, true, nil
}

func (c *Controller) observe(op string, err error) {
	c.metrics.ObserveLifecycle(op, err)
}

// CreateResult reports which create steps wrote something.
type CreateResult struct {
	Downloaded        bool `json:"downloaded"`
	EULAWritten       bool `json:"eula_written"`
	PropertiesWritten bool `json:"properties_written"`
}

// Create prepares the directories, jar, eula.txt and server.properties.
// Each step is skipped when already done unless force is set.
func (c *Controller) Create(ctx context.Context, force bool) (res CreateResult, err error) {
	defer func() { c.observe("create", err) }()
	if err := c.validate(false); err != nil {
		return res, err
	}
	if err := platform.RequireCommands(c.runner, "screen", c.cfg.JavaPath); err != nil {
		return res, err
	}
	release, err := c.lock.TryAcquire()
	if err != nil {
		return res, err
	}
	defer release()

	if id, running, err := c.locate(ctx); err != nil {
		return res, err
	} else if running {
		return res, alreadyRunning(id)
	}

	for _, dir := range []string{c.cfg.BackupDir, c.cfg.ServerDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if res.Downloaded, err = server.InstallJar(ctx, c.cfg, c.fetcher, c.resolver, force); err != nil {
		return res, fmt.Errorf("installing server jar: %w", err)
	}
	if res.EULAWritten, err = server.AcceptEULA(c.cfg.ServerDir, force); err != nil {
		return res, fmt.Errorf("writing eula.txt: %w", err)
	}
	if res.PropertiesWritten, err = server.WriteProperties(c.cfg, force); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Controller) preflight() error {
	if err := c.validate(true); err != nil {
		return err
	}
	if err := server.CheckJar(c.cfg); err != nil {
		return err
	}
	return platform.RequireCommands(c.runner, "screen", c.cfg.JavaPath)
}

// Start launches the server in its screen session without waiting for it
// to come up.
func (c *Controller) Start(ctx context.Context) (err error) {
	defer func() { c.observe("start", err) }()
	if err := c.preflight(); err != nil {
		return err
	}
	release, err := c.lock.TryAcquire()
	if err != nil {
		return err
	}
	defer release()
	return c.start(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	sess, err := c.sessions.Ensure(ctx, c.cfg.ScreenName, c.cfg.ServerDir)
	if err != nil {
		return err
	}
	if id, running, err := c.locate(ctx); err != nil {
		return err
	} else if running {
		return alreadyRunning(id)
	}
	return c.launch(ctx, sess)
}

func (c *Controller) launch(ctx context.Context, sess Session) error {
	cmd := server.LaunchCommand(c.cfg)
	slog.Info("launching server", "session", sess.ID, "cmd", cmd)
	if err := c.channel.Dispatch(ctx, sess, cmd); err != nil {
		return fmt.Errorf("sending launch command: %w", err)
	}
	return nil
}

// Stop asks the server to stop, waits until the process is gone and then
// closes the screen session.
func (c *Controller) Stop(ctx context.Context) (err error) {
	defer func() { c.observe("stop", err) }()
	if err := c.validate(true); err != nil {
		return err
	}
	release, err := c.lock.TryAcquire()
	if err != nil {
		return err
	}
	defer release()

	id, running, err := c.locate(ctx)
	if err != nil {
		return err
	}
	if !running {
		return fmt.Errorf("%w in %s", ErrNotRunning, c.cfg.ServerDir)
	}
	sess, err := c.sessions.Find(ctx, c.cfg.ScreenName)
	if err != nil {
		return err
	}

	c.output.Info("Stopping server (pid %d)...", id.PID)
	if err := c.WaitForShutdown(ctx, sess, id); err != nil {
		return err
	}
	if err := c.channel.Dispatch(ctx, sess, CmdExit); err != nil {
		slog.Warn("closing screen session failed", "session", sess.ID, "err", err)
	}
	return nil
}

// Restart stops the server if it is running and launches it again.
func (c *Controller) Restart(ctx context.Context) (err error) {
	defer func() { c.observe("restart", err) }()
	if err := c.preflight(); err != nil {
		return err
	}
	release, err := c.lock.TryAcquire()
	if err != nil {
		return err
	}
	defer release()

	sess, err := c.sessions.Ensure(ctx, c.cfg.ScreenName, c.cfg.ServerDir)
	if err != nil {
		return err
	}
	id, running, err := c.locate(ctx)
	if err != nil {
		return err
	}
	if running {
		c.output.Info("Stopping server (pid %d) for restart...", id.PID)
		if err := c.WaitForShutdown(ctx, sess, id); err != nil {
			return err
		}
	}
	return c.launch(ctx, sess)
}

// WaitForShutdown sends stop and then, every PollInterval while the process
// is alive, sends it again. It has no deadline of its own and returns only
// when the process is gone or ctx ends.
func (c *Controller) WaitForShutdown(ctx context.Context, sess Session, id process.Identity) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := c.channel.Dispatch(ctx, sess, CmdStop); err != nil {
			// The poll decides; a lost stop is expected.
			slog.Warn("sending stop failed", "session", sess.ID, "err", err)
		}
		alive, err := c.locator.Alive(ctx, id)
		if err != nil {
			return backoff.Permanent(err)
		}
		if alive {
			slog.Debug("waiting for server to exit", "pid", id.PID, "attempt", attempt)
			return errStillRunning
		}
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(c.PollInterval), ctx)
	return backoff.Retry(op, b)
}
