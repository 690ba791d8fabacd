package server

import (
	"bytes"
	"os"
	"path/filepath"
)

// AcceptEULA writes eula.txt accepting the Minecraft EULA. An eula.txt that
// already agrees is left alone unless force is set. It reports whether the
// file was written.
func AcceptEULA(serverDir string, force bool) (bool, error) {
	path := filepath.Join(serverDir, "eula.txt")
	if !force {
		if data, err := os.ReadFile(path); err == nil && bytes.Contains(data, []byte("eula=true")) {
			return false, nil
		}
	}
	if err := os.WriteFile(path, []byte("eula=true\n"), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
