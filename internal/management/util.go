package management

import (
	"errors"
	"fmt"

	"github.com/KevinTCoughlin/spud/internal/process"
)

func isNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

func alreadyRunning(id process.Identity) error {
	return fmt.Errorf("%w (pid %d in %s)", ErrAlreadyRunning, id.PID, id.WorkingDir)
}

func formatSize(bytes int64) string {
	const mb = 1024 * 1024
	if bytes >= mb {
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	}
	return fmt.Sprintf("%.1f KB", float64(bytes)/1024)
}
