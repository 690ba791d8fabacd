package platform

import (
	"context"
	"fmt"
	"sync"
)

// MockRunner records commands for testing without executing them.
// It is safe for concurrent use.
type MockRunner struct {
	mu        sync.Mutex
	Commands  []MockCommand
	OutputMap map[string][]byte
	ErrorMap  map[string]error
	ExistsMap map[string]bool

	// OnRun, when set, is called after a command is recorded. Tests use it
	// to change simulated process state in reaction to injected commands.
	OnRun func(cmd MockCommand)
}

// MockCommand records a single command invocation.
type MockCommand struct {
	Name string
	Args []string
	Dir  string
}

// NewMockRunner creates a MockRunner with empty state.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		OutputMap: make(map[string][]byte),
		ErrorMap:  make(map[string]error),
		ExistsMap: make(map[string]bool),
	}
}

// Key returns the map key used for OutputMap / ErrorMap lookups.
func (m *MockRunner) Key(name string, args ...string) string {
	return fmt.Sprintf("%s %v", name, args)
}

func (m *MockRunner) record(cmd MockCommand) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	hook := m.OnRun
	m.mu.Unlock()
	if hook != nil {
		hook(cmd)
	}
}

func (m *MockRunner) lookup(name string, args []string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.Key(name, args...)
	return m.OutputMap[key], m.ErrorMap[key]
}

// Run records the command and returns any preconfigured error.
func (m *MockRunner) Run(_ context.Context, name string, args ...string) error {
	m.record(MockCommand{Name: name, Args: args})
	_, err := m.lookup(name, args)
	return err
}

// RunInDir records the command with its working directory.
func (m *MockRunner) RunInDir(_ context.Context, dir, name string, args ...string) error {
	m.record(MockCommand{Name: name, Args: args, Dir: dir})
	_, err := m.lookup(name, args)
	return err
}

// RunWithOutput records the command and returns preconfigured output and error.
// Both may be set, mirroring a command that prints and exits non-zero.
func (m *MockRunner) RunWithOutput(_ context.Context, name string, args ...string) ([]byte, error) {
	m.record(MockCommand{Name: name, Args: args})
	return m.lookup(name, args)
}

// CommandExists returns the preconfigured existence value for the given command.
func (m *MockRunner) CommandExists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if exists, ok := m.ExistsMap[name]; ok {
		return exists
	}
	return false
}

// Recorded returns a snapshot of the recorded commands.
func (m *MockRunner) Recorded() []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCommand, len(m.Commands))
	copy(out, m.Commands)
	return out
}

// Reset forgets recorded commands but keeps configured outputs.
func (m *MockRunner) Reset() {
	m.mu.Lock()
	m.Commands = nil
	m.mu.Unlock()
}

// SetOutput sets the output returned for a command, under the lock.
func (m *MockRunner) SetOutput(name string, args []string, out []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutputMap[m.Key(name, args...)] = out
}
