//go:build !unix

package management

// lockFile is a no-op where flock(2) is unavailable; the in-process lock
// still applies.
func lockFile(string) (func(), error) {
	return func() {}, nil
}
