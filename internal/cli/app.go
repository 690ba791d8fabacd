package cli

import (
	"net/http"
	"time"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/metrics"
	"github.com/KevinTCoughlin/spud/internal/platform"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
	"github.com/KevinTCoughlin/spud/internal/ui"
)

// App bundles the host-facing collaborators every command needs. Tests
// swap in fakes.
type App struct {
	Runner   platform.CommandRunner
	Table    process.ProcessTable
	Fetcher  server.Fetcher
	Resolver server.URLResolver
	Metrics  *metrics.Metrics
	Output   *ui.UI

	// PollInterval overrides the controller's shutdown poll when set.
	PollInterval time.Duration
	// SettleDelay overrides the online backup settle delay when set.
	SettleDelay time.Duration
	// Now is the clock used for backup names.
	Now func() time.Time
}

// NewApp wires an App against the real host.
func NewApp(output *ui.UI) *App {
	client := &http.Client{Timeout: 10 * time.Minute}
	return &App{
		Runner:   platform.NewOSCommandRunner(),
		Table:    process.NewSystemTable(),
		Fetcher:  &server.HTTPFetcher{Client: client},
		Resolver: server.NewVanillaResolver("", client),
		Metrics:  metrics.New(),
		Output:   output,
		Now:      time.Now,
	}
}

// Controller builds a management controller for cfg.
func (a *App) Controller(cfg *config.ServerConfig) *management.Controller {
	ctl := management.NewController(cfg, management.Deps{
		Runner:   a.Runner,
		Table:    a.Table,
		Fetcher:  a.Fetcher,
		Resolver: a.Resolver,
		Metrics:  a.Metrics,
		Output:   a.Output,
	})
	if a.PollInterval > 0 {
		ctl.PollInterval = a.PollInterval
	}
	return ctl
}

// Orchestrator builds a backup orchestrator around ctl.
func (a *App) Orchestrator(ctl *management.Controller) *management.Orchestrator {
	o := management.NewOrchestrator(ctl)
	if a.SettleDelay > 0 {
		o.SettleDelay = a.SettleDelay
	}
	return o
}

func (a *App) now() time.Time {
	if a.Now == nil {
		return time.Now()
	}
	return a.Now()
}
