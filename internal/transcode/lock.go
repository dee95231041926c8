package transcode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

type destLock struct {
	lock *flock.Flock
}

func (l *destLock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if !l.lock.Locked() {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("unlock destination lock: %w", err)
	}
	return nil
}

// acquireDestLock takes an advisory lock keyed by the destination path so two
// runs never write into the same directory at once. The lock file lives
// outside destDir. Only ErrDestinationBusy means another run holds the lock;
// any other error means the lock could not be set up at all.
func acquireDestLock(lockDir string, destDir string) (*destLock, error) {
	if lockDir == "" {
		lockDir = defaultLockDir()
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	sum := sha256.Sum256([]byte(destDir))
	f := flock.New(filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock"))
	locked, err := f.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire destination lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrDestinationBusy, destDir)
	}
	return &destLock{lock: f}, nil
}

func defaultLockDir() string {
	root, err := os.UserCacheDir()
	if err != nil {
		root = os.TempDir()
	}
	return filepath.Join(root, "png2lvgl", "locks")
}
