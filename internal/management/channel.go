package management

import (
	"context"
	"log/slog"

	"github.com/KevinTCoughlin/spud/internal/platform"
)

// Console commands understood by the server.
const (
	CmdSaveAll = "save-all"
	CmdSaveOff = "save-off"
	CmdSaveOn  = "save-on"
	CmdStop    = "stop"
	CmdList    = "list"
	CmdExit    = "exit"
)

// CommandChannel types text into a screen session. Delivery is not
// acknowledged: a nil error means screen accepted the keystrokes, not that
// the server ran the command. Confirm effects by polling the process table.
type CommandChannel struct {
	runner platform.CommandRunner
}

// NewCommandChannel creates a CommandChannel.
func NewCommandChannel(runner platform.CommandRunner) *CommandChannel {
	return &CommandChannel{runner: runner}
}

// Dispatch stuffs command followed by a carriage return into the session.
func (c *CommandChannel) Dispatch(ctx context.Context, sess Session, command string) error {
	slog.Debug("dispatch", "session", sess.ID, "command", command)
	return c.runner.Run(ctx, "screen", "-S", sess.ID, "-p", "0", "-X", "stuff", command+"\r")
}

// Say broadcasts a chat message.
func (c *CommandChannel) Say(ctx context.Context, sess Session, text string) error {
	return c.Dispatch(ctx, sess, "say "+text)
}
