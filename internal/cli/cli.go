package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/logging"
	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/process"
	"github.com/KevinTCoughlin/spud/internal/server"
	"github.com/KevinTCoughlin/spud/internal/ui"
)

// Globals holds flags shared by all subcommands. Every server setting can
// also come from the YAML file given by --conf or the per-user default.
type Globals struct {
	Conf kong.ConfigFlag `help:"YAML config file." short:"c" type:"path"`

	ServerDir      string   `help:"Server directory." short:"d" type:"path" name:"server-dir"`
	BackupDir      string   `help:"Backup directory." short:"b" type:"path" name:"backup-dir"`
	WorldName      string   `help:"World name." short:"w" default:"${world_name}" name:"world-name"`
	ScreenName     string   `help:"Screen session name (default: world name)." short:"s" name:"screen-name"`
	Port           int      `help:"Server port." short:"p" default:"${port}"`
	LevelSeed      string   `help:"Level seed for new worlds." name:"level-seed"`
	MCVersion      string   `help:"Minecraft version." short:"V" default:"${mc_version}" name:"mc-version"`
	Forge          string   `help:"Forge version, e.g. 1.7.10-10.13.4.1614-1.7.10." short:"f"`
	JavaPath       string   `help:"Java executable." default:"java" name:"java-path"`
	MemMin         string   `help:"Minimum heap." default:"${mem_min}" name:"mem-min"`
	MemMax         string   `help:"Maximum heap." default:"${mem_max}" name:"mem-max"`
	MemFormat      string   `help:"Heap unit." enum:"MB,GB" default:"${mem_format}" name:"mem-format"`
	PermGen        string   `help:"MaxPermSize in MB (Forge only)." short:"P" default:"${permgen}" name:"permgen"`
	Compression    string   `help:"Backup compression." enum:"gz,bz2,xz" default:"${compression}"`
	ExcludeFiles   []string `help:"File names or globs left out of backups." default:"level.dat_new" name:"exclude-files"`
	MaxBackups     int      `help:"Backups kept per world (0 keeps all)." default:"0" name:"max-backups"`
	WebUIPort      int      `help:"Port for serve." default:"${webui_port}" name:"webui-port"`
	BackupSchedule string   `help:"Cron schedule for backups while serving." name:"backup-schedule"`

	StopTimeout time.Duration    `help:"Give up waiting for the server to exit after this long (0 waits forever)." default:"0" name:"stop-timeout"`
	Quiet       bool             `help:"Print nothing; the exit code still reports the outcome." short:"q"`
	Debug       bool             `help:"Enable debug logging."`
	LogFile     string           `help:"Also write logs to this file." type:"path" name:"log-file"`
	Version     kong.VersionFlag `help:"Print version." hidden:""`
}

// ServerConfig converts the flags into a normalized ServerConfig.
func (g *Globals) ServerConfig() *config.ServerConfig {
	cfg := &config.ServerConfig{
		ServerDir:      g.ServerDir,
		BackupDir:      g.BackupDir,
		WorldName:      g.WorldName,
		ScreenName:     g.ScreenName,
		Port:           g.Port,
		LevelSeed:      g.LevelSeed,
		MCVersion:      g.MCVersion,
		Forge:          g.Forge,
		JavaPath:       g.JavaPath,
		MemMin:         g.MemMin,
		MemMax:         g.MemMax,
		MemFormat:      g.MemFormat,
		PermGen:        g.PermGen,
		Compression:    g.Compression,
		ExcludeFiles:   g.ExcludeFiles,
		MaxBackups:     g.MaxBackups,
		WebUIPort:      g.WebUIPort,
		BackupSchedule: g.BackupSchedule,
	}
	cfg.Normalize()
	return cfg
}

// withStopTimeout bounds ctx when --stop-timeout is set.
func (g *Globals) withStopTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.StopTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.StopTimeout)
}

// CLI is the top-level command tree parsed by Kong.
type CLI struct {
	Globals

	Create  CreateCmd  `cmd:"" help:"Create the server directory, jar, eula.txt and server.properties"`
	Start   StartCmd   `cmd:"" help:"Start the server in a screen session"`
	Stop    StopCmd    `cmd:"" help:"Stop the server and wait for it to exit"`
	Restart RestartCmd `cmd:"" help:"Restart the server, starting it if it is down"`
	Backup  BackupCmd  `cmd:"" help:"Back up the server or its world"`
	Say     SayCmd     `cmd:"" help:"Broadcast a message to players"`
	SaveAll SaveAllCmd `cmd:"save-all" help:"Flush the world to disk"`
	List    ListCmd    `cmd:"" help:"List online players"`
	Uptime  UptimeCmd  `cmd:"" help:"Show how long the server has been running"`
	Status  StatusCmd  `cmd:"" help:"Show server status"`
	Console ConsoleCmd `cmd:"" help:"Interactive console with live server log"`
	Genconf GenconfCmd `cmd:"" help:"Write the effective configuration as YAML"`
	Serve   ServeCmd   `cmd:"" help:"Serve the HTTP API, metrics and scheduled backups"`
}

// Vars are the defaults interpolated into flag tags.
func Vars() kong.Vars {
	return kong.Vars{
		"world_name":  config.DefaultWorldName,
		"port":        strconv.Itoa(config.DefaultPort),
		"mc_version":  config.DefaultMCVersion,
		"mem_min":     config.DefaultMemMin,
		"mem_max":     config.DefaultMemMax,
		"mem_format":  config.DefaultMemFormat,
		"permgen":     config.DefaultPermGen,
		"compression": config.DefaultCompression,
		"webui_port":  strconv.Itoa(config.DefaultWebUIPort),
	}
}

// Options are the Kong options shared by main and tests.
func Options(version string) []kong.Option {
	opts := []kong.Option{
		kong.Name("spud"),
		kong.Description("Manage a Minecraft server running in GNU screen."),
		kong.UsageOnError(),
		Vars(),
		kong.Vars{"version": version},
	}
	if path := config.DefaultPath(); path != "" {
		opts = append(opts, kong.Configuration(YAMLLoader, path))
	} else {
		opts = append(opts, kong.Configuration(YAMLLoader))
	}
	return opts
}

var errUsage = errors.New("usage")

// Main parses args, runs the command and returns the process exit code.
func Main(args []string, version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExitCode(Execute(ctx, args, NewApp(ui.Default()), Options(version)...))
}

// Execute parses args and runs the selected command against app. Errors
// are reported through app.Output before they are returned.
func Execute(ctx context.Context, args []string, app *App, opts ...kong.Option) error {
	var c CLI
	parser, err := kong.New(&c, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	_, closer := logging.Init(logging.Options{Debug: c.Debug, Quiet: c.Quiet, File: c.LogFile})
	if closer != nil {
		defer closer.Close()
	}

	app.Output = app.Output.Quiet(c.Quiet)
	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&c.Globals, app, app.Output); err != nil {
		app.Output.Error("%v", err)
		return err
	}
	return nil
}

// Exit codes. Each failure kind gets its own code so scripts can react.
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitAlreadyRunning
	exitNotRunning
	exitBackupExists
	exitMissingDependency
	exitNoDirectory
	exitInvalidConfig
	exitUnsupportedVersion
	exitNoJar
	exitBusy
	exitInterrupted
)

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, management.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.Is(err, management.ErrNotRunning), errors.Is(err, process.ErrNotFound):
		return exitNotRunning
	case errors.Is(err, management.ErrBackupExists):
		return exitBackupExists
	case errors.Is(err, management.ErrMissingDependency):
		return exitMissingDependency
	case errors.Is(err, config.ErrNoDirectoryFound):
		return exitNoDirectory
	case errors.Is(err, config.ErrMissingSetting),
		errors.Is(err, config.ErrInvalidSetting),
		errors.Is(err, config.ErrInvalidMemoryBounds):
		return exitInvalidConfig
	case errors.Is(err, server.ErrUnsupportedVersion):
		return exitUnsupportedVersion
	case errors.Is(err, server.ErrNoJarFound):
		return exitNoJar
	case errors.Is(err, management.ErrBusy):
		return exitBusy
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return exitInterrupted
	default:
		return exitFailure
	}
}
