package lockfile

import (
	"context"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockfile(t *testing.T) {
	dir, err := ioutil.TempDir("", "lockfile")
	require.NoError(t, err)

	defer os.RemoveAll(dir)

	t.Run("derives a stable path per directory", func(t *testing.T) {
		a := PathFor("/opt/instantclient_11_2")
		b := PathFor("/opt/instantclient_11_2/")
		c := PathFor("/opt/instantclient_19_8")

		assert.Equal(t, a, b)
		assert.NotEqual(t, a, c)
		assert.True(t, strings.HasPrefix(filepath.Base(a), "fix-oralib-"))
		assert.Equal(t, os.TempDir(), filepath.Dir(a))
	})

	t.Run("takes and releases the lock", func(t *testing.T) {
		path := filepath.Join(dir, "a.lock")

		release, err := Take(context.Background(), path, time.Millisecond, nil)
		require.NoError(t, err)

		pid, err := Owner(path)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)

		release()

		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("waits for a held lock until canceled", func(t *testing.T) {
		path := filepath.Join(dir, "b.lock")

		release, err := Take(context.Background(), path, time.Millisecond, nil)
		require.NoError(t, err)

		defer release()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		var waits int

		_, err = Take(ctx, path, time.Millisecond, func() { waits++ })
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Greater(t, waits, 0)
	})

	t.Run("reclaims a lock whose owner has exited", func(t *testing.T) {
		path := filepath.Join(dir, "d.lock")

		gone := exec.Command("true")
		require.NoError(t, gone.Run())

		require.NoError(t, ioutil.WriteFile(path, []byte(strconv.Itoa(gone.Process.Pid)+"\n"), 0644))

		var waits int

		release, err := Take(context.Background(), path, time.Millisecond, func() { waits++ })
		require.NoError(t, err)

		defer release()

		assert.Equal(t, 0, waits)

		pid, err := Owner(path)
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("keeps waiting on a lock without an owner", func(t *testing.T) {
		path := filepath.Join(dir, "e.lock")
		require.NoError(t, ioutil.WriteFile(path, nil, 0644))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		_, err := Take(ctx, path, time.Millisecond, nil)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("fails when the lock directory doesn't exist", func(t *testing.T) {
		_, err := Take(context.Background(), filepath.Join(dir, "missing", "c.lock"), time.Millisecond, nil)
		require.Error(t, err)
	})
}
