package management

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KevinTCoughlin/spud/internal/archive"
	"github.com/KevinTCoughlin/spud/internal/config"
	"github.com/KevinTCoughlin/spud/internal/process"
)

// Scope selects which part of the server directory a backup covers.
type Scope int

// Backup scopes.
const (
	ScopeFull Scope = iota
	ScopeWorldOnly
	ScopePlayerData
)

func (s Scope) String() string {
	switch s {
	case ScopeWorldOnly:
		return "world"
	case ScopePlayerData:
		return "playerdata"
	default:
		return "full"
	}
}

// ParseScope accepts "full", "world" or "playerdata".
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(s) {
	case "", "full":
		return ScopeFull, nil
	case "world", "world-only", "world_only":
		return ScopeWorldOnly, nil
	case "playerdata", "player-data", "players":
		return ScopePlayerData, nil
	}
	return ScopeFull, fmt.Errorf("%w: backup scope %q: must be full, world, or playerdata", config.ErrInvalidSetting, s)
}

// DefaultSettleDelay is how long an online backup waits after save-all
// before pausing saves, giving the server time to flush.
const DefaultSettleDelay = 3 * time.Second

// BackupJob describes one backup. Build it with NewBackupJob.
type BackupJob struct {
	Timestamp       time.Time
	WorldName       string
	ServerDir       string
	BackupDir       string
	Compression     archive.Kind
	Scope           Scope
	ExcludePatterns []string
	DestinationPath string
	Force           bool
}

// BackupFileName is the archive name for a world, scope and day. Full and
// world-only backups share a name, so they collide with each other and rotate
// as one series; player-data backups get their own. A second backup with the
// same name on the same day needs force.
func BackupFileName(world string, scope Scope, kind archive.Kind, t time.Time) string {
	name := t.Format("2006-01-02") + "_" + world
	if scope == ScopePlayerData {
		name += "_playerdata"
	}
	return name + kind.Ext()
}

// NewBackupJob builds a job from cfg. A compression kind this build cannot
// write falls back to gz, and the file name follows the kind actually used.
func NewBackupJob(cfg *config.ServerConfig, scope Scope, force bool, now time.Time) (BackupJob, error) {
	kind, err := archive.ParseKind(cfg.Compression)
	if err != nil {
		return BackupJob{}, fmt.Errorf("%w: %v", config.ErrInvalidSetting, err)
	}
	kind = archive.Resolve(kind)

	return BackupJob{
		Timestamp:       now,
		WorldName:       cfg.WorldName,
		ServerDir:       filepath.Clean(cfg.ServerDir),
		BackupDir:       filepath.Clean(cfg.BackupDir),
		Compression:     kind,
		Scope:           scope,
		ExcludePatterns: append([]string(nil), cfg.ExcludeFiles...),
		DestinationPath: filepath.Join(cfg.BackupDir, BackupFileName(cfg.WorldName, scope, kind, now)),
		Force:           force,
	}, nil
}

// BackupResult describes a finished backup.
type BackupResult struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration_ns"`
	Mode     string        `json:"mode"`
	Removed  []string      `json:"removed,omitempty"`
}

// Orchestrator takes backups, pausing saves or stopping the server around
// the archive step.
type Orchestrator struct {
	ctl *Controller

	// SettleDelay separates save-all from save-off in online backups.
	SettleDelay time.Duration
}

// NewOrchestrator creates an Orchestrator that uses ctl for process and
// session access.
func NewOrchestrator(ctl *Controller) *Orchestrator {
	return &Orchestrator{ctl: ctl, SettleDelay: DefaultSettleDelay}
}

// Backup validates the configuration, finds the server and runs the job
// while holding the directory lock.
func (o *Orchestrator) Backup(ctx context.Context, job BackupJob, offline bool) (BackupResult, error) {
	if err := o.ctl.validate(true); err != nil {
		return BackupResult{}, err
	}
	release, err := o.ctl.lock.TryAcquire()
	if err != nil {
		return BackupResult{}, err
	}
	defer release()

	id, running, err := o.ctl.locate(ctx)
	if err != nil {
		return BackupResult{}, err
	}
	var current *process.Identity
	if running {
		current = &id
	}
	return o.Run(ctx, job, current, offline)
}

// Run executes job against the server state given by running (nil when the
// server is down). The destination collision check happens before any
// command reaches the server.
func (o *Orchestrator) Run(ctx context.Context, job BackupJob, running *process.Identity, offline bool) (res BackupResult, err error) {
	start := time.Now()
	res.Path = job.DestinationPath
	res.Mode = "offline"
	if running != nil && !offline {
		res.Mode = "online"
	}
	defer func() {
		o.ctl.metrics.ObserveBackup(job.Scope.String(), res.Mode, res.Duration, res.Size, err)
	}()

	if _, statErr := os.Stat(job.DestinationPath); statErr == nil && !job.Force {
		return res, fmt.Errorf("%w: %s", ErrBackupExists, job.DestinationPath)
	}
	if err := os.MkdirAll(job.BackupDir, 0o755); err != nil {
		return res, fmt.Errorf("creating backup dir: %w", err)
	}

	if running != nil {
		sess, err := o.ctl.sessions.Find(ctx, o.ctl.cfg.ScreenName)
		if err != nil {
			return res, err
		}
		if offline {
			err = o.offline(ctx, sess, *running, job)
		} else {
			err = o.online(ctx, sess, job)
		}
		if err != nil {
			return res, err
		}
	} else if err := o.writeArchive(ctx, job); err != nil {
		return res, err
	}

	res.Duration = time.Since(start)
	if info, err := os.Stat(job.DestinationPath); err == nil {
		res.Size = info.Size()
	}
	if keep := o.ctl.cfg.MaxBackups; keep > 0 {
		res.Removed = rotateBackups(job.BackupDir, job.WorldName, job.Scope, keep)
	}
	o.ctl.output.Success("Backup complete: %s (%s)", res.Path, formatSize(res.Size))
	return res, nil
}

func (o *Orchestrator) send(ctx context.Context, sess Session, cmd string) {
	if err := o.ctl.channel.Dispatch(ctx, sess, cmd); err != nil {
		slog.Warn("dispatch failed", "session", sess.ID, "command", cmd, "err", err)
	}
}

// online brackets the archive with save-off/save-on. save-on is sent even
// when archiving fails so the server never stays paused.
func (o *Orchestrator) online(ctx context.Context, sess Session, job BackupJob) error {
	o.send(ctx, sess, CmdSaveAll)
	if err := Sleep(ctx, o.SettleDelay); err != nil {
		return err
	}
	o.send(ctx, sess, CmdSaveOff)
	o.send(ctx, sess, "say Server backing up now")

	archiveErr := o.writeArchive(ctx, job)

	// The bracket must close even if ctx was cancelled mid-archive.
	closeCtx := context.WithoutCancel(ctx)
	o.send(closeCtx, sess, CmdSaveOn)
	if archiveErr != nil {
		o.send(closeCtx, sess, "say Backup failed")
		return archiveErr
	}
	o.send(closeCtx, sess, "say Backup complete")
	return nil
}

// offline stops the server, archives, and launches it again whatever the
// archive outcome.
func (o *Orchestrator) offline(ctx context.Context, sess Session, id process.Identity, job BackupJob) error {
	o.ctl.output.Info("Stopping server (pid %d) for offline backup...", id.PID)
	if err := o.ctl.WaitForShutdown(ctx, sess, id); err != nil {
		return err
	}
	archiveErr := o.writeArchive(ctx, job)
	launchErr := o.ctl.launch(context.WithoutCancel(ctx), sess)
	return errors.Join(archiveErr, launchErr)
}

func (o *Orchestrator) roots(job BackupJob) []string {
	switch job.Scope {
	case ScopeWorldOnly:
		return []string{job.WorldName}
	case ScopePlayerData:
		return []string{
			filepath.Join(job.WorldName, "playerdata"),
			filepath.Join(job.WorldName, "players"),
		}
	default:
		return []string{""}
	}
}

func (o *Orchestrator) writeArchive(ctx context.Context, job BackupJob) error {
	o.ctl.output.Info("Creating backup: %s", job.DestinationPath)
	w, err := archive.Create(job.DestinationPath, job.Compression)
	if err != nil {
		return fmt.Errorf("creating backup archive: %w", err)
	}

	skip := excludeFilter(job)
	for _, root := range o.roots(job) {
		err := w.AddTree(ctx, job.ServerDir, root, skip)
		if errors.Is(err, fs.ErrNotExist) && job.Scope != ScopeFull {
			slog.Debug("backup root missing, skipping", "root", root)
			continue
		}
		if err != nil {
			// The partial archive stays on disk.
			_ = w.Close()
			return fmt.Errorf("writing backup archive: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing backup archive: %w", err)
	}
	return nil
}

// excludeFilter skips entries whose base name matches an exclude pattern,
// plus the destination and backup directory when they sit inside the
// server directory.
func excludeFilter(job BackupJob) archive.SkipFunc {
	dest := filepath.Clean(job.DestinationPath)
	return func(rel string, d fs.DirEntry) bool {
		abs := filepath.Join(job.ServerDir, rel)
		if abs == dest || abs == job.BackupDir {
			return true
		}
		return matchesAny(d.Name(), job.ExcludePatterns)
	}
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
		if ok, err := filepath.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}
