package server

import (
	"bufio"
	"bytes"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/template"

	"golang.org/x/mod/semver"

	"github.com/KevinTCoughlin/spud/internal/config"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// ErrUnsupportedVersion means no server.properties template exists for the
// requested Minecraft version.
var ErrUnsupportedVersion = errors.New("unsupported minecraft version")

const (
	oldestSupported = "v1.7.10"
	modernFrom      = "v1.8"
)

// propertiesTemplate picks the template for a Minecraft version.
func propertiesTemplate(version string) (string, error) {
	v := "v" + strings.TrimPrefix(version, "v")
	if !semver.IsValid(v) || semver.Compare(v, oldestSupported) < 0 {
		return "", fmt.Errorf("%w: cannot generate server.properties for %q", ErrUnsupportedVersion, version)
	}
	if semver.Compare(v, modernFrom) < 0 {
		return "server-1.7.properties.tmpl", nil
	}
	return "server.properties.tmpl", nil
}

// RenderProperties returns the server.properties body for cfg.
func RenderProperties(cfg *config.ServerConfig) ([]byte, error) {
	name, err := propertiesTemplate(cfg.MCVersion)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = templates.ExecuteTemplate(&buf, name, map[string]string{
		"World": cfg.WorldName,
		"Port":  strconv.Itoa(cfg.Port),
		"Seed":  cfg.LevelSeed,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// WriteProperties writes server.properties when it is missing, when its
// level-name, server-port or level-seed differ from cfg, or when force is
// set. It reports whether the file was written.
func WriteProperties(cfg *config.ServerConfig, force bool) (bool, error) {
	path := filepath.Join(cfg.ServerDir, "server.properties")
	if !force && propertiesCurrent(path, cfg) {
		return false, nil
	}
	body, err := RenderProperties(cfg)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}

func propertiesCurrent(path string, cfg *config.ServerConfig) bool {
	props, err := ReadProperties(path)
	if err != nil {
		return false
	}
	return props["level-name"] == cfg.WorldName &&
		props["server-port"] == strconv.Itoa(cfg.Port) &&
		props["level-seed"] == cfg.LevelSeed
}

// ReadProperties parses a Java properties file of key=value lines.
func ReadProperties(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	props := make(map[string]string)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return props, sc.Err()
}
