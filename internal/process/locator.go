package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// ErrNotFound means no server process runs from the directory.
var ErrNotFound = errors.New("no server process found")

// Identity describes a running server process. It is recomputed on each
// lookup and never cached.
type Identity struct {
	WorkingDir string `json:"working_dir"`
	Exe        string `json:"exe"`
	PID        int32  `json:"pid"`
}

// Locator finds the JVM whose working directory is a given server directory.
type Locator struct {
	table ProcessTable
	name  string
}

// NewLocator returns a Locator matching processes named after javaPath's
// base name (usually "java").
func NewLocator(table ProcessTable, javaPath string) *Locator {
	name := filepath.Base(javaPath)
	if javaPath == "" {
		name = "java"
	}
	return &Locator{table: table, name: name}
}

// Locate returns the first process whose working directory equals dir.
// Candidates that disappear or cannot be read are skipped.
func (l *Locator) Locate(ctx context.Context, dir string) (Identity, error) {
	want := filepath.Clean(dir)

	pids, err := l.table.PIDs(ctx, l.name)
	if err != nil {
		return Identity{}, err
	}
	for _, pid := range pids {
		cwd, exe, err := l.table.Inspect(ctx, pid)
		if err != nil {
			slog.Debug("skipping process", "pid", pid, "err", err)
			continue
		}
		if filepath.Clean(cwd) == want {
			return Identity{WorkingDir: want, Exe: exe, PID: pid}, nil
		}
	}
	return Identity{}, fmt.Errorf("%w in %s", ErrNotFound, want)
}

// Alive reports whether the process is still present.
func (l *Locator) Alive(ctx context.Context, id Identity) (bool, error) {
	return l.table.Alive(ctx, id.PID)
}

// Uptime returns how long the process has been running.
func (l *Locator) Uptime(ctx context.Context, id Identity) (time.Duration, error) {
	started, err := l.table.StartTime(ctx, id.PID)
	if err != nil {
		return 0, err
	}
	return time.Since(started).Truncate(time.Second), nil
}
