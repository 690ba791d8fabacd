package management

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
)

// rotateBackups keeps the newest maxBackups archives of one world and scope
// and returns the paths it removed. Names start with the date, so sorting
// by name sorts by age.
func rotateBackups(backupDir, world string, scope Scope, maxBackups int) []string {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil
	}

	suffix := ""
	if scope == ScopePlayerData {
		suffix = "_playerdata"
	}
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_` + regexp.QuoteMeta(world+suffix) + `\.tar\.(gz|bz2|xz)$`)

	var backups []string
	for _, e := range entries {
		if !e.IsDir() && pattern.MatchString(e.Name()) {
			backups = append(backups, filepath.Join(backupDir, e.Name()))
		}
	}
	if len(backups) <= maxBackups {
		return nil
	}

	sort.Strings(backups)
	toRemove := backups[:len(backups)-maxBackups]
	var removed []string
	for _, f := range toRemove {
		if err := os.Remove(f); err != nil {
			slog.Warn("removing old backup failed", "path", f, "err", err)
			continue
		}
		removed = append(removed, f)
	}
	slog.Info("rotated old backups", "kept", maxBackups, "removed", len(removed))
	return removed
}
