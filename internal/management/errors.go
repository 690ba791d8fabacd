package management

import (
	"errors"

	"github.com/KevinTCoughlin/spud/internal/platform"
)

// Operation errors. Callers match them with errors.Is.
var (
	ErrAlreadyRunning    = errors.New("server is already running")
	ErrNotRunning        = errors.New("server is not running")
	ErrBackupExists      = errors.New("backup file already exists")
	ErrSessionNotFound   = errors.New("screen session not found")
	ErrBusy              = errors.New("another operation is in progress for this server directory")
	ErrMissingDependency = platform.ErrMissingDependency
)
