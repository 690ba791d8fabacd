package management

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// inProcess holds one mutex per cleaned server directory.
var inProcess sync.Map

// DirLock serializes lifecycle and backup operations on one server
// directory, within this process and across spud processes.
type DirLock struct {
	dir      string
	lockPath string
}

// NewDirLock returns the lock for dir. The lock file lives in the temp
// directory so read-only server trees can still be managed.
func NewDirLock(dir string) *DirLock {
	clean := filepath.Clean(dir)
	sum := sha256.Sum256([]byte(clean))
	return &DirLock{
		dir:      clean,
		lockPath: filepath.Join(os.TempDir(), "spud-"+hex.EncodeToString(sum[:8])+".lock"),
	}
}

// TryAcquire takes the lock without waiting. It returns ErrBusy when
// another operation holds it.
func (l *DirLock) TryAcquire() (release func(), err error) {
	v, _ := inProcess.LoadOrStore(l.dir, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	if !mu.TryLock() {
		return nil, fmt.Errorf("%w: %s", ErrBusy, l.dir)
	}

	unlockFile, err := lockFile(l.lockPath)
	if err != nil {
		mu.Unlock()
		return nil, fmt.Errorf("%w: %s: %v", ErrBusy, l.dir, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockFile()
			mu.Unlock()
		})
	}, nil
}
