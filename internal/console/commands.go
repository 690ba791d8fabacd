package console

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KevinTCoughlin/spud/internal/management"
	"github.com/KevinTCoughlin/spud/internal/ui"
)

// clearSentinel tells the model to empty the viewport.
const clearSentinel = "\x00CLEAR"

// dispatch runs one console line and returns its output and whether the
// console should quit.
func dispatch(ctx context.Context, input string, opts *Options) (string, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false
	}
	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var buf bytes.Buffer
	output := ui.NewWriter(&buf, false)
	ctl := opts.Controller

	switch cmd {
	case "start":
		if err := ctl.Start(ctx); err != nil {
			output.Warn("Starting server: %s", err)
		} else {
			output.Success("Server starting")
		}

	case "stop":
		if err := ctl.Stop(ctx); err != nil {
			output.Warn("%s", err)
		} else {
			output.Success("Server stopped")
		}

	case "restart":
		if err := ctl.Restart(ctx); err != nil {
			output.Warn("%s", err)
		} else {
			output.Success("Server restarting")
		}

	case "status":
		st, err := ctl.Status(ctx)
		switch {
		case err != nil:
			output.Warn("%s", err)
		case st.Running:
			output.Success("Running (pid %d, up %s)", st.PID, st.Uptime.Round(time.Second))
		default:
			output.Info("Not running")
		}

	case "backup":
		backup(ctx, args, opts, output)

	case "list":
		list, err := ctl.ListPlayers(ctx)
		if err != nil {
			output.Warn("%s", err)
			break
		}
		output.Info("%d/%d players online: %s", list.Online, list.Max, strings.Join(list.Names, ", "))

	case "save-all":
		if err := ctl.SaveAll(ctx); err != nil {
			output.Warn("%s", err)
		} else {
			output.Success("World saved")
		}

	case "say":
		if len(args) == 0 {
			output.Warn("Usage: say <message>")
			break
		}
		msg := strings.Join(args, " ")
		if err := ctl.Say(ctx, msg); err != nil {
			output.Warn("%s", err)
		} else {
			output.Success("Sent: say %s", msg)
		}

	case "cmd":
		if len(args) == 0 {
			output.Warn("Usage: cmd <raw minecraft command>")
			break
		}
		raw := strings.Join(args, " ")
		if err := ctl.Send(ctx, raw); err != nil {
			output.Warn("%s", err)
		} else {
			output.Success("Sent: %s", raw)
		}

	case "help":
		return helpText(), false

	case "clear":
		return clearSentinel, false

	case "exit", "quit":
		return "", true

	default:
		return fmt.Sprintf("Unknown command: %s (type 'help' for available commands)", cmd), false
	}

	return strings.TrimRight(buf.String(), "\n"), false
}

// backup handles "backup [world|playerdata] [offline] [force]".
func backup(ctx context.Context, args []string, opts *Options, output *ui.UI) {
	scope := management.ScopeFull
	var offline, force bool
	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "offline":
			offline = true
		case "force":
			force = true
		default:
			s, err := management.ParseScope(arg)
			if err != nil {
				output.Warn("%s", err)
				return
			}
			scope = s
		}
	}

	job, err := management.NewBackupJob(opts.Controller.Config(), scope, force, opts.now())
	if err != nil {
		output.Warn("%s", err)
		return
	}
	if _, err := opts.Orchestrator.Backup(ctx, job, offline); err != nil {
		output.Warn("Backup failed: %s", err)
	}
}

func helpText() string {
	return `Available commands:
  start                  Start the server
  stop                   Stop the server and wait for it to exit
  restart                Restart the server
  status                 Show whether the server is running
  backup [world|playerdata] [offline] [force]
                         Back up the server or its world
  list                   List online players
  save-all               Flush the world to disk
  say <msg>              Broadcast a message to players
  cmd <raw>              Send a raw command to the server console
  clear                  Clear the console
  help                   Show this help
  exit / quit            Leave the console (the server keeps running)`
}
