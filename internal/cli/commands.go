package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/console"
	"github.com/KevinTCoughlin/spud/internal/logging"
	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/server"
	"github.com/KevinTCoughlin/spud/internal/ui"
	"github.com/KevinTCoughlin/spud/internal/web"
)

// CreateCmd prepares a new server directory.
type CreateCmd struct {
	Force bool `help:"Re-download the jar and rewrite eula.txt and server.properties."`
}

// Run creates the server.
func (cmd *CreateCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	cfg := globals.ServerConfig()
	res, err := app.Controller(cfg).Create(ctx, cmd.Force)
	if err != nil {
		return err
	}
	output.PrintCreateSummary(&ui.CreateSummary{
		ServerDir:  cfg.ServerDir,
		BackupDir:  cfg.BackupDir,
		WorldName:  cfg.WorldName,
		Session:    cfg.ScreenName,
		Jar:        server.JarName(cfg),
		Port:       cfg.Port,
		Memory:     fmt.Sprintf("%s-%s %s", cfg.MemMin, cfg.MemMax, cfg.MemFormat),
		Downloaded: res.Downloaded,
	})
	return nil
}

// StartCmd starts the server in a screen session.
type StartCmd struct{}

// Run starts the server.
func (cmd *StartCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	cfg := globals.ServerConfig()
	if err := app.Controller(cfg).Start(ctx); err != nil {
		return err
	}
	output.Success("Server starting in screen session %s", cfg.ScreenName)
	output.Info("")
	output.Info("  Attach to console:   screen -r %s", cfg.ScreenName)
	output.Info("  Detach from console: Ctrl+A then D")
	output.Info("  Stop server:         spud stop")
	output.Info("")
	return nil
}

// StopCmd stops the server and waits for the JVM to exit.
type StopCmd struct{}

// Run stops the server.
func (cmd *StopCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	ctx, cancel := globals.withStopTimeout(ctx)
	defer cancel()
	if err := app.Controller(globals.ServerConfig()).Stop(ctx); err != nil {
		return err
	}
	output.Success("Server stopped")
	return nil
}

// RestartCmd stops the server if needed and starts it again.
type RestartCmd struct{}

// Run restarts the server.
func (cmd *RestartCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	ctx, cancel := globals.withStopTimeout(ctx)
	defer cancel()
	if err := app.Controller(globals.ServerConfig()).Restart(ctx); err != nil {
		return err
	}
	output.Success("Server restarting")
	return nil
}

// BackupCmd archives the server or part of it.
type BackupCmd struct {
	Offline    bool `help:"Stop the server for the backup and start it again afterwards."`
	WorldOnly  bool `help:"Only archive the world directory." xor:"scope" name:"world-only"`
	PlayerData bool `help:"Only archive player data." xor:"scope" name:"player-data"`
	Force      bool `help:"Overwrite today's backup if it exists."`
}

func (cmd *BackupCmd) scope() management.Scope {
	switch {
	case cmd.WorldOnly:
		return management.ScopeWorldOnly
	case cmd.PlayerData:
		return management.ScopePlayerData
	default:
		return management.ScopeFull
	}
}

// Run takes the backup.
func (cmd *BackupCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	cfg := globals.ServerConfig()
	job, err := management.NewBackupJob(cfg, cmd.scope(), cmd.Force, app.now())
	if err != nil {
		return err
	}
	if cmd.Offline {
		var cancel context.CancelFunc
		ctx, cancel = globals.withStopTimeout(ctx)
		defer cancel()
	}
	res, err := app.Orchestrator(app.Controller(cfg)).Backup(ctx, job, cmd.Offline)
	if err != nil {
		return err
	}
	for _, removed := range res.Removed {
		output.Info("Removed old backup %s", removed)
	}
	return nil
}

// SayCmd broadcasts a chat message.
type SayCmd struct {
	Text []string `arg:"" help:"Message text."`
}

// Run sends the message.
func (cmd *SayCmd) Run(ctx context.Context, globals *Globals, app *App) error {
	return app.Controller(globals.ServerConfig()).Say(ctx, strings.Join(cmd.Text, " "))
}

// SaveAllCmd flushes the world to disk.
type SaveAllCmd struct{}

// Run sends save-all.
func (cmd *SaveAllCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	if err := app.Controller(globals.ServerConfig()).SaveAll(ctx); err != nil {
		return err
	}
	output.Success("World saved")
	return nil
}

// ListCmd prints the players currently online.
type ListCmd struct{}

// Run lists players.
func (cmd *ListCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	list, err := app.Controller(globals.ServerConfig()).ListPlayers(ctx)
	if err != nil {
		return err
	}
	output.Info("%d/%d players online", list.Online, list.Max)
	for _, name := range list.Names {
		fmt.Fprintf(output.Out(), "  %s\n", name)
	}
	return nil
}

// UptimeCmd prints how long the server has been up.
type UptimeCmd struct{}

// Run prints the uptime.
func (cmd *UptimeCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	up, err := app.Controller(globals.ServerConfig()).Uptime(ctx)
	if err != nil {
		return err
	}
	output.Info("Server up for %s", up.Round(time.Second))
	return nil
}

// StatusCmd reports whether the server is running.
type StatusCmd struct {
	JSON  bool `help:"Print status and configuration as JSON." name:"json"`
	Fancy bool `help:"Indent the JSON output."`
}

// statusReport is the JSON shape of status.
type statusReport struct {
	management.Status
	Config *config.ServerConfig `json:"config"`
}

// Run prints the status.
func (cmd *StatusCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	cfg := globals.ServerConfig()
	st, err := app.Controller(cfg).Status(ctx)
	if err != nil {
		return err
	}

	if cmd.JSON {
		enc := json.NewEncoder(output.Out())
		if cmd.Fancy {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(statusReport{Status: st, Config: cfg})
	}

	if !st.Running {
		output.Warn("Server is not running (%s)", cfg.ServerDir)
		return nil
	}
	output.Success("Server is running")
	output.Info("  PID:     %d", st.PID)
	output.Info("  Session: %s", st.Session)
	output.Info("  Uptime:  %s", st.Uptime.Round(time.Second))
	output.Info("  World:   %s", st.WorldName)
	return nil
}

// GenconfCmd writes the effective configuration as YAML.
type GenconfCmd struct {
	Output string `help:"Write to this file instead of stdout." short:"o" type:"path"`
}

// Run writes the config.
func (cmd *GenconfCmd) Run(globals *Globals, output *ui.UI) error {
	cfg := globals.ServerConfig()
	if cmd.Output != "" {
		if err := cfg.Save(cmd.Output); err != nil {
			return err
		}
		output.Success("Wrote %s", cmd.Output)
		return nil
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = output.Out().Write(data)
	return err
}

// ServeCmd runs the HTTP API with metrics, health probes and the backup
// schedule until interrupted.
type ServeCmd struct {
	Listen string `help:"Address to listen on (default: all interfaces on --webui-port)."`
}

// Run serves until ctx is cancelled.
func (cmd *ServeCmd) Run(ctx context.Context, globals *Globals, app *App, output *ui.UI) error {
	cfg := globals.ServerConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctl := app.Controller(cfg)
	srv, err := web.New(web.Options{
		Controller:   ctl,
		Orchestrator: app.Orchestrator(ctl),
		Metrics:      app.Metrics,
		Runner:       app.Runner,
		Now:          app.now,
	})
	if err != nil {
		return err
	}

	addr := cmd.Listen
	if addr == "" {
		addr = fmt.Sprintf(":%d", cfg.WebUIPort)
	}
	output.Info("Serving %s on %s", cfg.WorldName, addr)
	if cfg.BackupSchedule != "" {
		output.Info("Backups scheduled: %s", cfg.BackupSchedule)
	}
	return srv.Run(ctx, addr)
}

// ConsoleCmd opens the interactive console.
type ConsoleCmd struct{}

// Run shows the console. Messages that would print to the terminal while
// the console owns it are discarded.
func (cmd *ConsoleCmd) Run(ctx context.Context, globals *Globals, app *App) error {
	cfg := globals.ServerConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}
	// The TUI owns the terminal; diagnostics go to --log-file only.
	_, closer := logging.Init(logging.Options{Debug: globals.Debug, File: globals.LogFile, Writer: io.Discard})
	if closer != nil {
		defer closer.Close()
	}

	quiet := *app
	quiet.Output = app.Output.Quiet(true)
	ctl := quiet.Controller(cfg)
	return console.Run(ctx, &console.Options{
		Controller:   ctl,
		Orchestrator: quiet.Orchestrator(ctl),
		Now:          app.now,
	})
}
