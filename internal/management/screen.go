package management

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/KevinTCoughlin/spud/internal/platform"
)

// Session is a GNU screen session. ID is screen's "<pid>.<name>" form,
// which addresses one session even when several share a name.
type Session struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// screen -ls prints one "\t<pid>.<name>\t(<date>)\t(<state>)" line per session.
var screenLine = regexp.MustCompile(`^\s*(\d+)\.(\S+)\s`)

// SessionManager finds and creates screen sessions.
type SessionManager struct {
	runner platform.CommandRunner
}

// NewSessionManager creates a SessionManager.
func NewSessionManager(runner platform.CommandRunner) *SessionManager {
	return &SessionManager{runner: runner}
}

// Find returns the session whose name is exactly name. screen -ls matches
// by prefix, so "mc" would also list "mc2"; only exact names qualify.
func (s *SessionManager) Find(ctx context.Context, name string) (Session, error) {
	// screen -ls exits non-zero both when nothing is listed and, on many
	// builds, when sessions are listed; the output is what matters.
	out, err := s.runner.RunWithOutput(ctx, "screen", "-ls", name)
	if err != nil && len(out) == 0 {
		if !s.runner.CommandExists("screen") {
			return Session{}, fmt.Errorf("%w: screen", ErrMissingDependency)
		}
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	}

	matches := parseScreenList(out, name)
	switch len(matches) {
	case 0:
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
	case 1:
	default:
		slog.Warn("several screen sessions share a name, using the first", "name", name, "sessions", matches)
	}
	return matches[0], nil
}

func parseScreenList(out []byte, name string) []Session {
	var sessions []Session
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		m := screenLine.FindStringSubmatch(sc.Text() + " ")
		if m == nil || m[2] != name {
			continue
		}
		sessions = append(sessions, Session{Name: name, ID: m[1] + "." + m[2]})
	}
	return sessions
}

// Create starts a detached session whose shell runs in dir. Callers check
// Find first; Ensure does both.
func (s *SessionManager) Create(ctx context.Context, name, dir string) (Session, error) {
	if !s.runner.CommandExists("screen") {
		return Session{}, fmt.Errorf("%w: screen", ErrMissingDependency)
	}
	if err := s.runner.RunInDir(ctx, dir, "screen", "-dmS", name); err != nil {
		return Session{}, fmt.Errorf("creating screen session %s: %w", name, err)
	}
	return s.Find(ctx, name)
}

// Ensure returns the existing session named name or creates one in dir.
func (s *SessionManager) Ensure(ctx context.Context, name, dir string) (Session, error) {
	sess, err := s.Find(ctx, name)
	if err == nil {
		return sess, nil
	}
	if !isNotFound(err) {
		return Session{}, err
	}
	slog.Debug("creating screen session", "name", name, "dir", dir)
	return s.Create(ctx, name, dir)
}

// Sleep pauses for d, respecting context cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
