package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/KevinTCoughlin/spud/internal/config"
)

// ErrNoJarFound means the server directory has no jar to launch.
var ErrNoJarFound = errors.New("server jar not found")

func forgeJarName(forgeVersion string) string {
	return fmt.Sprintf("forge-%s-universal.jar", forgeVersion)
}

// JarName is the jar file the server directory is expected to hold.
func JarName(cfg *config.ServerConfig) string {
	if cfg.IsForge() {
		return forgeJarName(cfg.Forge)
	}
	return fmt.Sprintf("minecraft_server.%s.jar", cfg.MCVersion)
}

// JarPath is JarName inside the server directory.
func JarPath(cfg *config.ServerConfig) string {
	return filepath.Join(cfg.ServerDir, JarName(cfg))
}

// CheckJar returns ErrNoJarFound when the jar is missing.
func CheckJar(cfg *config.ServerConfig) error {
	if _, err := os.Stat(JarPath(cfg)); err != nil {
		return fmt.Errorf("%w: %s (do you need to run create?)", ErrNoJarFound, JarPath(cfg))
	}
	return nil
}

// LaunchCommand is the console line that starts the JVM inside the session.
// The session's working directory is the server directory, so the jar is
// referenced by name.
func LaunchCommand(cfg *config.ServerConfig) string {
	unit := cfg.MemUnit()
	java := cfg.JavaPath
	if java == "" {
		java = "java"
	}
	parts := []string{
		java,
		"-Xms" + cfg.MemMin + unit,
		"-Xmx" + cfg.MemMax + unit,
	}
	if cfg.IsForge() && cfg.PermGen != "" {
		parts = append(parts, "-XX:MaxPermSize="+cfg.PermGen+"M")
	}
	parts = append(parts, "-jar", JarName(cfg), "nogui")
	return strings.Join(parts, " ")
}

// URLResolver finds the vanilla jar URL for a Minecraft version.
type URLResolver interface {
	DownloadURL(ctx context.Context, version string) (string, error)
}

// InstallJar downloads the jar unless it is already present. force
// replaces an existing jar. It reports whether a download happened.
func InstallJar(ctx context.Context, cfg *config.ServerConfig, fetcher Fetcher, resolver URLResolver, force bool) (bool, error) {
	dest := JarPath(cfg)
	if _, err := os.Stat(dest); err == nil && !force {
		return false, nil
	}

	var url string
	if cfg.IsForge() {
		url = ForgeDownloadURL(cfg.Forge)
	} else {
		var err error
		if url, err = resolver.DownloadURL(ctx, cfg.MCVersion); err != nil {
			return false, err
		}
	}

	if err := fetcher.Fetch(ctx, url, dest); err != nil {
		return false, err
	}
	return true, nil
}
