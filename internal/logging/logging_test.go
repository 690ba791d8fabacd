package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := Init(Options{Writer: &buf})
	if closer != nil {
		t.Fatal("expected no closer without a log file")
	}

	logger.Debug("hidden")
	logger.Info("shown", "world", "Overworld")
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug message logged at info level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "Overworld") {
		t.Errorf("info message missing: %q", out)
	}
}

func TestInit_Debug(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := Init(Options{Writer: &buf, Debug: true})

	logger.Debug("exec", "cmd", "screen")
	if !strings.Contains(buf.String(), "exec") {
		t.Errorf("debug message missing: %q", buf.String())
	}
}

func TestInit_File(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "spud.log")
	logger, closer := Init(Options{Writer: &buf, File: path})
	if closer == nil {
		t.Fatal("expected a closer for the log file")
	}

	logger.Warn("backup slow")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "backup slow") {
		t.Errorf("log file = %q", data)
	}
}

func TestInit_Quiet(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := Init(Options{Writer: &buf, Quiet: true})

	logger.Warn("dropped")
	logger.Error("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "kept") {
		t.Errorf("quiet logging kept the wrong records: %q", out)
	}
}
