package platform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingDependency reports that a required executable is not on PATH.
var ErrMissingDependency = errors.New("missing dependency")

// RequireCommands checks that every named executable can be found.
func RequireCommands(runner CommandRunner, names ...string) error {
	var missing []string
	for _, name := range names {
		if name == "" {
			continue
		}
		if !runner.CommandExists(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s not found on PATH", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}
