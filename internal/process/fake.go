package process

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FakeProcess is one entry in a FakeTable.
type FakeProcess struct {
	Name    string
	Cwd     string
	Exe     string
	Started time.Time
	// Unreadable makes Inspect fail, as for a process that exited after
	// being listed.
	Unreadable bool
}

// FakeTable is an in-memory ProcessTable for tests.
// It is safe for concurrent use.
type FakeTable struct {
	mu    sync.Mutex
	procs map[int32]FakeProcess
}

// NewFakeTable creates an empty FakeTable.
func NewFakeTable() *FakeTable {
	return &FakeTable{procs: make(map[int32]FakeProcess)}
}

// Add registers a process.
func (f *FakeTable) Add(pid int32, p FakeProcess) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs[pid] = p
}

// Kill removes a process.
func (f *FakeTable) Kill(pid int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.procs, pid)
}

// PIDs lists matching processes in ascending order.
func (f *FakeTable) PIDs(_ context.Context, name string) ([]int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pids []int32
	for pid, p := range f.procs {
		if p.Name == name {
			pids = append(pids, pid)
		}
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids, nil
}

// Inspect returns the recorded cwd and exe.
func (f *FakeTable) Inspect(_ context.Context, pid int32) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[pid]
	if !ok || p.Unreadable {
		return "", "", fmt.Errorf("process %d: no such process", pid)
	}
	return p.Cwd, p.Exe, nil
}

// Alive reports whether pid is registered.
func (f *FakeTable) Alive(_ context.Context, pid int32) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.procs[pid]
	return ok, nil
}

// StartTime returns the recorded start time.
func (f *FakeTable) StartTime(_ context.Context, pid int32) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.procs[pid]
	if !ok {
		return time.Time{}, fmt.Errorf("process %d: no such process", pid)
	}
	return p.Started, nil
}
