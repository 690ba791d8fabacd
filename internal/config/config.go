package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Defaults used when a setting is not given on the command line or in the
// config file.
const (
	DefaultWorldName   = "SweetpotatoWorld"
	DefaultPort        = 25565
	DefaultWebUIPort   = 8080
	DefaultMCVersion   = "1.10.2"
	DefaultMemMin      = "1024"
	DefaultMemMax      = "1024"
	DefaultMemFormat   = "MB"
	DefaultPermGen     = "256"
	DefaultCompression = "gz"
)

// Validation errors.
var (
	ErrMissingSetting      = errors.New("missing required setting")
	ErrInvalidSetting      = errors.New("invalid setting")
	ErrInvalidMemoryBounds = errors.New("invalid memory bounds")
	ErrNoDirectoryFound    = errors.New("directory not found")
)

// ServerConfig holds the settings for one managed server directory.
type ServerConfig struct {
	ServerDir      string   `json:"server_dir" yaml:"server_dir"`
	BackupDir      string   `json:"backup_dir" yaml:"backup_dir"`
	WorldName      string   `json:"world_name" yaml:"world_name"`
	ScreenName     string   `json:"screen_name" yaml:"screen_name"`
	Port           int      `json:"port" yaml:"port"`
	LevelSeed      string   `json:"level_seed" yaml:"level_seed"`
	MCVersion      string   `json:"mc_version" yaml:"mc_version"`
	Forge          string   `json:"forge,omitempty" yaml:"forge,omitempty"`
	JavaPath       string   `json:"java_path" yaml:"java_path"`
	MemMin         string   `json:"mem_min" yaml:"mem_min"`
	MemMax         string   `json:"mem_max" yaml:"mem_max"`
	MemFormat      string   `json:"mem_format" yaml:"mem_format"`
	PermGen        string   `json:"permgen" yaml:"permgen"`
	Compression    string   `json:"compression" yaml:"compression"`
	ExcludeFiles   []string `json:"exclude_files" yaml:"exclude_files"`
	MaxBackups     int      `json:"max_backups" yaml:"max_backups"`
	WebUIPort      int      `json:"webui_port" yaml:"webui_port"`
	BackupSchedule string   `json:"backup_schedule,omitempty" yaml:"backup_schedule,omitempty"`
}

// DefaultConfig returns a ServerConfig with every optional field filled in.
// ServerDir and BackupDir have no defaults.
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		WorldName:    DefaultWorldName,
		ScreenName:   DefaultWorldName,
		Port:         DefaultPort,
		MCVersion:    DefaultMCVersion,
		JavaPath:     "java",
		MemMin:       DefaultMemMin,
		MemMax:       DefaultMemMax,
		MemFormat:    DefaultMemFormat,
		PermGen:      DefaultPermGen,
		Compression:  DefaultCompression,
		ExcludeFiles: []string{"level.dat_new"},
		WebUIPort:    DefaultWebUIPort,
	}
}

var (
	validCompression = map[string]bool{"gz": true, "bz2": true, "xz": true}
	validMemFormats  = map[string]bool{"MB": true, "GB": true}
)

// Validate checks that all config values are usable. It only reads c, so
// it is safe on a config shared between goroutines. It does not touch the
// filesystem; see ValidateDirectories.
func (c *ServerConfig) Validate() error {
	if c.ServerDir == "" {
		return fmt.Errorf("%w: server directory must be set", ErrMissingSetting)
	}
	if c.BackupDir == "" {
		return fmt.Errorf("%w: backup directory must be set", ErrMissingSetting)
	}
	if c.WorldName == "" {
		return fmt.Errorf("%w: world name must be set", ErrMissingSetting)
	}
	if c.ScreenName == "" {
		return fmt.Errorf("%w: screen name must be set", ErrMissingSetting)
	}
	if strings.ContainsAny(c.ScreenName, ". \t") {
		return fmt.Errorf("%w: screen name %q must not contain dots or spaces", ErrInvalidSetting, c.ScreenName)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d: must be 1-65535", ErrInvalidSetting, c.Port)
	}
	if !validCompression[c.Compression] {
		return fmt.Errorf("%w: compression %q: must be gz, bz2, or xz", ErrInvalidSetting, c.Compression)
	}
	if !validMemFormats[strings.ToUpper(c.MemFormat)] {
		return fmt.Errorf("%w: memory format %q: must be MB or GB", ErrInvalidSetting, c.MemFormat)
	}
	if c.MaxBackups < 0 {
		return fmt.Errorf("%w: max backups %d: must be >= 0", ErrInvalidSetting, c.MaxBackups)
	}
	return ValidateMemory(c.MemMin, c.MemMax)
}

// ValidateMemory checks that both bounds are non-negative integers and
// min does not exceed max.
func ValidateMemory(minMem, maxMem string) error {
	lo, err := strconv.Atoi(minMem)
	if err != nil || lo < 0 {
		return fmt.Errorf("%w: minimum memory %q is not a non-negative integer", ErrInvalidMemoryBounds, minMem)
	}
	hi, err := strconv.Atoi(maxMem)
	if err != nil || hi < 0 {
		return fmt.Errorf("%w: maximum memory %q is not a non-negative integer", ErrInvalidMemoryBounds, maxMem)
	}
	if lo > hi {
		return fmt.Errorf("%w: minimum memory %d exceeds maximum %d", ErrInvalidMemoryBounds, lo, hi)
	}
	return nil
}

// ValidateDirectories checks that the server and backup directories exist.
func (c *ServerConfig) ValidateDirectories() error {
	for _, dir := range []struct{ label, path string }{
		{"server", c.ServerDir},
		{"backup", c.BackupDir},
	} {
		info, err := os.Stat(dir.path)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("%w: %s directory %s (do you need to run create?)", ErrNoDirectoryFound, dir.label, dir.path)
		}
	}
	return nil
}

// MemUnit is the single-letter JVM unit suffix for MemFormat.
func (c *ServerConfig) MemUnit() string {
	if c.MemFormat == "" {
		return "M"
	}
	return strings.ToUpper(c.MemFormat[:1])
}

// IsForge reports whether the server runs a Forge build.
func (c *ServerConfig) IsForge() bool {
	return c.Forge != ""
}

// Normalize cleans path fields so directory comparisons are stable, defaults
// the screen name to the world name, upper-cases MemFormat and derives
// MCVersion from a Forge version such as "1.7.10-10.13.4.1614-1.7.10".
// Call it once, before the config is shared.
func (c *ServerConfig) Normalize() {
	if c.ScreenName == "" {
		c.ScreenName = c.WorldName
	}
	c.MemFormat = strings.ToUpper(c.MemFormat)
	if c.Forge != "" {
		c.MCVersion, _, _ = strings.Cut(c.Forge, "-")
	}
	if c.ServerDir != "" {
		c.ServerDir = filepath.Clean(c.ServerDir)
	}
	if c.BackupDir != "" {
		c.BackupDir = filepath.Clean(c.BackupDir)
	}
}
