// Package process finds the server's JVM by asking the operating system
// which processes are running and where they were started.
package process

import (
	"context"
	"fmt"
	"time"

	gops "github.com/shirou/gopsutil/v3/process"
)

// ProcessTable is the OS process listing as seen by the locator.
type ProcessTable interface {
	// PIDs lists processes whose executable name is exactly name.
	PIDs(ctx context.Context, name string) ([]int32, error)
	// Inspect returns the working directory and executable path of pid.
	Inspect(ctx context.Context, pid int32) (cwd, exe string, err error)
	// Alive reports whether pid still exists.
	Alive(ctx context.Context, pid int32) (bool, error)
	// StartTime returns when pid was created.
	StartTime(ctx context.Context, pid int32) (time.Time, error)
}

// SystemTable reads the live process table through gopsutil.
type SystemTable struct{}

// NewSystemTable returns a ProcessTable backed by the host OS.
func NewSystemTable() *SystemTable {
	return &SystemTable{}
}

// PIDs enumerates processes named name. gopsutil has no lookup by name, so
// this reads the name of every process on the host.
func (SystemTable) PIDs(ctx context.Context, name string) ([]int32, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing processes: %w", err)
	}
	var pids []int32
	for _, p := range procs {
		// Processes can exit or deny access between listing and reading.
		n, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		if n == name {
			pids = append(pids, p.Pid)
		}
	}
	return pids, nil
}

// Inspect reads the cwd and exe of pid.
func (SystemTable) Inspect(ctx context.Context, pid int32) (string, string, error) {
	p, err := gops.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", "", err
	}
	cwd, err := p.CwdWithContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("reading cwd of %d: %w", pid, err)
	}
	exe, err := p.ExeWithContext(ctx)
	if err != nil {
		return "", "", fmt.Errorf("reading exe of %d: %w", pid, err)
	}
	return cwd, exe, nil
}

// Alive reports whether pid exists.
func (SystemTable) Alive(ctx context.Context, pid int32) (bool, error) {
	return gops.PidExistsWithContext(ctx, pid)
}

// StartTime returns the creation time of pid.
func (SystemTable) StartTime(ctx context.Context, pid int32) (time.Time, error) {
	p, err := gops.NewProcessWithContext(ctx, pid)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("reading start time of %d: %w", pid, err)
	}
	return time.UnixMilli(ms), nil
}
