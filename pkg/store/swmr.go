package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Single-writer enforcement. A dataset directory holds at most one live
// writer session, marked by a lock file created with O_EXCL. Readers never
// touch the lock; they coordinate with the writer only through published
// superblocks.
//
// A session left behind by a crashed process keeps the dataset locked until
// the lock file is removed; the published state is unaffected either way.
type sessionLock struct {
	path string
	id   string
}

// acquireSessionLock claims the writer role for a dataset directory.
func acquireSessionLock(dir string) (*sessionLock, error) {
	path := filepath.Join(dir, writerLockFile)

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyOpen
		}
		return nil, fmt.Errorf("failed to create writer lock: %w", err)
	}

	id := uuid.NewString()
	_, werr := fmt.Fprintf(file, "%s\n%d\n", id, os.Getpid())
	cerr := file.Close()
	if werr != nil || cerr != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write writer lock: %w", firstErr(werr, cerr))
	}

	return &sessionLock{path: path, id: id}, nil
}

// Release gives up the writer role.
func (l *sessionLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove writer lock: %w", err)
	}
	return nil
}

// lockHolder reports the session ID recorded in a dataset's writer lock, if
// any. Diagnostic only; the O_EXCL create is what enforces exclusivity.
func lockHolder(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, writerLockFile))
	if err != nil {
		return "", false
	}
	id, _, _ := strings.Cut(string(data), "\n")
	return id, true
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
