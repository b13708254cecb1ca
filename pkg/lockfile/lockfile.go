// Package lockfile serializes runs that modify the same instant client.
package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/crypto/blake2b"
)

// PathFor returns the lock file used for runs against dir, placed in the
// temp directory so read-only install directories can still be locked.
func PathFor(dir string) string {
	sum := blake2b.Sum256([]byte(filepath.Clean(dir)))
	return filepath.Join(os.TempDir(), "fix-oralib-"+base58.Encode(sum[:12])+".lock")
}

// Take creates path exclusively, polling every interval until it can or ctx
// is canceled. waiting is called each time the lock is found held. The lock
// holds the owner's pid; a lock whose owner no longer runs is removed. The
// returned func releases the lock.
func Take(ctx context.Context, path string, interval time.Duration, waiting func()) (func(), error) {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	var (
		f   *os.File
		err error
	)

	for {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			break
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if stale(path) {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, errors.Wrapf(err, "removing stale lock %s", path)
			}

			continue
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// ok
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err = f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	f.Close()

	if err != nil {
		os.Remove(path)
		return nil, errors.Wrapf(err, "writing lock %s", path)
	}

	closer := func() {
		os.Remove(path)
	}

	return closer, nil
}

// Owner returns the pid recorded in the lock at path.
func Owner(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.Wrapf(err, "lock %s has no owner", path)
	}

	return pid, nil
}

// stale reports whether the lock's owner is known to be gone. A lock that
// can't be read or has no pid yet is treated as held.
func stale(path string) bool {
	pid, err := Owner(path)
	if err != nil || pid <= 0 {
		return false
	}

	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}

	return !alive
}
