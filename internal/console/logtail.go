package console

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// logLineMsg carries one log line and where the next read starts.
type logLineMsg struct {
	line   string
	offset int64
}

const (
	scanBufInitial = 64 * 1024
	scanBufMax     = 1024 * 1024
	tailPoll       = 200 * time.Millisecond
)

// tailLog starts following path from its current end. The file may not
// exist yet; the server creates logs/latest.log on first start.
func tailLog(ctx context.Context, path string) tea.Cmd {
	return func() tea.Msg {
		var offset int64
		if info, err := os.Stat(path); err == nil {
			offset = info.Size()
		}
		return waitLine(ctx, path, offset)
	}
}

// nextLogLine continues following path at offset.
func nextLogLine(ctx context.Context, path string, offset int64) tea.Cmd {
	return func() tea.Msg {
		return waitLine(ctx, path, offset)
	}
}

// waitLine polls until a complete line is available at offset. It returns
// nil once ctx is done, which ends the tail.
func waitLine(ctx context.Context, path string, offset int64) tea.Msg {
	for {
		line, next, err := readLine(path, offset)
		if err == nil {
			return logLineMsg{line: line, offset: next}
		}
		offset = next
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(tailPoll):
		}
	}
}

var errNoLine = errors.New("no complete line")

// readLine reads the line starting at offset. When the file shrank below
// offset (the server rolled latest.log) reading restarts at zero. A
// trailing line without a newline is left for the next poll.
func readLine(path string, offset int64) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", offset, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", offset, err
	}
	if info.Size() < offset {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", offset, err
	}

	r := bufio.NewReaderSize(f, scanBufInitial)
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil:
			next := offset + int64(len(line))
			return trimEOL(line), next, nil
		case errors.Is(err, bufio.ErrBufferFull) && len(line) < scanBufMax:
			continue
		case errors.Is(err, bufio.ErrBufferFull):
			// Overlong line: hand it over in pieces.
			return string(line), offset + int64(len(line)), nil
		default:
			return "", offset, errNoLine
		}
	}
}

func trimEOL(b []byte) string {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
	}
	if n > 0 && b[n-1] == '\r' {
		n--
	}
	return string(b[:n])
}
