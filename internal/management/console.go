package management

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/KevinTCoughlin/spud/internal/process"
)

// running returns the session and process of a running server, or
// ErrNotRunning.
func (c *Controller) running(ctx context.Context) (Session, process.Identity, error) {
	if err := c.validate(true); err != nil {
		return Session{}, process.Identity{}, err
	}
	id, running, err := c.locate(ctx)
	if err != nil {
		return Session{}, process.Identity{}, err
	}
	if !running {
		return Session{}, process.Identity{}, fmt.Errorf("%w in %s", ErrNotRunning, c.cfg.ServerDir)
	}
	sess, err := c.sessions.Find(ctx, c.cfg.ScreenName)
	if err != nil {
		return Session{}, process.Identity{}, err
	}
	return sess, id, nil
}

// Say broadcasts text to everyone on the server.
func (c *Controller) Say(ctx context.Context, text string) error {
	sess, _, err := c.running(ctx)
	if err != nil {
		return err
	}
	return c.channel.Say(ctx, sess, text)
}

// Send types an arbitrary console line into the running server.
func (c *Controller) Send(ctx context.Context, line string) error {
	sess, _, err := c.running(ctx)
	if err != nil {
		return err
	}
	return c.channel.Dispatch(ctx, sess, line)
}

// SaveAll asks the server to flush the world to disk.
func (c *Controller) SaveAll(ctx context.Context) error {
	sess, _, err := c.running(ctx)
	if err != nil {
		return err
	}
	return c.channel.Dispatch(ctx, sess, CmdSaveAll)
}

// Status is a point-in-time view of the server.
type Status struct {
	Running   bool          `json:"running"`
	PID       int32         `json:"pid,omitempty"`
	Session   string        `json:"session,omitempty"`
	Uptime    time.Duration `json:"uptime_ns,omitempty"`
	WorldName string        `json:"world_name"`
	ServerDir string        `json:"server_dir"`
}

// Status reports whether the server runs and for how long. It never
// fails because the server is down.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	st := Status{WorldName: c.cfg.WorldName, ServerDir: c.cfg.ServerDir}
	if sess, err := c.sessions.Find(ctx, c.cfg.ScreenName); err == nil {
		st.Session = sess.ID
	}
	id, running, err := c.locate(ctx)
	if err != nil || !running {
		return st, err
	}
	st.Running = true
	st.PID = id.PID
	if up, err := c.locator.Uptime(ctx, id); err == nil {
		st.Uptime = up
	}
	return st, nil
}

// Uptime returns how long the server process has been running.
func (c *Controller) Uptime(ctx context.Context) (time.Duration, error) {
	_, id, err := c.running(ctx)
	if err != nil {
		return 0, err
	}
	return c.locator.Uptime(ctx, id)
}

// PlayerList is the server's answer to the list command.
type PlayerList struct {
	Online int      `json:"online"`
	Max    int      `json:"max"`
	Names  []string `json:"names"`
}

var (
	// 1.7 to 1.12: "There are 1/20 players online:" with names on the next line.
	listLegacy = regexp.MustCompile(`There are (\d+)/(\d+) players online:(.*)$`)
	// 1.13 and later: "There are 1 of a max of 20 players online: alice".
	listModern = regexp.MustCompile(`There are (\d+) of a max(?: of)? (\d+) players online:(.*)$`)
)

// ListPlayers sends list and reads the reply from logs/latest.log. Only
// log lines written after the command was sent are considered.
func (c *Controller) ListPlayers(ctx context.Context) (PlayerList, error) {
	sess, _, err := c.running(ctx)
	if err != nil {
		return PlayerList{}, err
	}

	logPath := filepath.Join(c.cfg.ServerDir, "logs", "latest.log")
	var offset int64
	if info, err := os.Stat(logPath); err == nil {
		offset = info.Size()
	}

	if err := c.channel.Dispatch(ctx, sess, CmdList); err != nil {
		return PlayerList{}, err
	}

	var list PlayerList
	op := func() error {
		var err error
		list, err = readPlayerList(logPath, offset)
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.PollInterval), 10), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return PlayerList{}, fmt.Errorf("reading player list from %s: %w", logPath, err)
	}
	return list, nil
}

var errNoListReply = errors.New("no list reply in log yet")

func readPlayerList(path string, offset int64) (PlayerList, error) {
	f, err := os.Open(path)
	if err != nil {
		return PlayerList{}, err
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil && info.Size() < offset {
		// Log rotated since the command was sent.
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return PlayerList{}, err
	}

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		m := listModern.FindStringSubmatch(line)
		if m == nil {
			m = listLegacy.FindStringSubmatch(line)
		}
		if m == nil {
			continue
		}
		online, _ := strconv.Atoi(m[1])
		maxPlayers, _ := strconv.Atoi(m[2])
		names := strings.TrimSpace(m[3])
		if names == "" && online > 0 && sc.Scan() {
			if _, rest, ok := strings.Cut(sc.Text(), "]: "); ok {
				names = strings.TrimSpace(rest)
			}
		}
		return PlayerList{Online: online, Max: maxPlayers, Names: splitNames(names)}, nil
	}
	if err := sc.Err(); err != nil {
		return PlayerList{}, err
	}
	return PlayerList{}, errNoListReply
}

func splitNames(s string) []string {
	var names []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
