package scheduler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"mvsync/internal/services"
)

// Lock guards a single video root against concurrent runs.
type Lock struct {
	root string
	path string
	lock *flock.Flock
}

// LockPath returns the lock file used for root inside stateDir.
func LockPath(stateDir, root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(stateDir, "locks", "reconcile-"+hex.EncodeToString(sum[:8])+".lock")
}

// NewLock constructs an unacquired lock for root.
func NewLock(stateDir, root string) *Lock {
	path := LockPath(stateDir, root)
	return &Lock{root: root, path: path, lock: flock.New(path)}
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// TryAcquire takes the lock without blocking. It returns an error wrapping
// services.ErrLocked when another process holds it.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return services.Wrap(services.ErrLocked, "schedule", "acquire lock",
			fmt.Sprintf("another reconcile run is active for %s", l.root), nil)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil || !l.lock.Locked() {
		return nil
	}
	return l.lock.Unlock()
}
