package ops

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileFix(t *testing.T) {
	root, err := ioutil.TempDir("", "fix")
	require.NoError(t, err)

	defer os.RemoveAll(root)

	ctx := context.Background()

	mkfile := func(name string, mode os.FileMode) string {
		t.Helper()

		path := filepath.Join(root, name)
		require.NoError(t, ioutil.WriteFile(path, []byte("binary"), 0644))
		require.NoError(t, os.Chmod(path, mode))

		return path
	}

	perm := func(path string) os.FileMode {
		t.Helper()

		fi, err := os.Stat(path)
		require.NoError(t, err)

		return fi.Mode().Perm()
	}

	fullPlan := &FixPlan{
		AddRPath:  true,
		RPath:     "/opt/instantclient",
		RewriteID: true,
		ID:        Rewrite{From: "/ade/libocci.dylib.11.1", To: "@rpath/libocci.dylib.11.1"},
		Dependencies: []Rewrite{
			{From: "/ade/libclntsh.dylib.11.1", To: "@rpath/libclntsh.dylib.11.1"},
			{From: "/ade/libnnz11.dylib", To: "@rpath/libnnz11.dylib"},
		},
	}

	t.Run("applies changes in order", func(t *testing.T) {
		path := mkfile("ordered", 0644)

		var (
			m   fakeMutator
			out recordingReporter
		)

		f := &FileFix{Mutator: &m, Out: &out}

		applied, err := f.Apply(ctx, path, fullPlan)
		require.NoError(t, err)

		assert.Equal(t, []string{"add_rpath", "id", "change", "change"}, m.ops())
		assert.Equal(t, []string{"/opt/instantclient"}, m.calls[0].args)
		assert.Equal(t, []string{"@rpath/libocci.dylib.11.1"}, m.calls[1].args)
		assert.Equal(t, []string{"/ade/libclntsh.dylib.11.1", "@rpath/libclntsh.dylib.11.1"}, m.calls[2].args)
		assert.Equal(t, []string{"/ade/libnnz11.dylib", "@rpath/libnnz11.dylib"}, m.calls[3].args)

		assert.Len(t, applied, 4)
		assert.Equal(t, applied, out.changes)
		assert.Equal(t, []string{path}, out.done)
	})

	t.Run("makes a read-only file writable and restores it", func(t *testing.T) {
		path := mkfile("readonly", 0555)

		var m fakeMutator

		f := &FileFix{Mutator: &m}

		_, err := f.Apply(ctx, path, fullPlan)
		require.NoError(t, err)

		for _, c := range m.calls {
			assert.Equal(t, os.FileMode(0755), c.mode)
		}

		assert.Equal(t, os.FileMode(0555), perm(path))
	})

	t.Run("restores permissions when a change fails", func(t *testing.T) {
		path := mkfile("failing", 0444)

		m := fakeMutator{failOn: "id"}

		var out recordingReporter

		f := &FileFix{Mutator: &m, Out: &out}

		applied, err := f.Apply(ctx, path, fullPlan)
		require.Error(t, err)

		assert.ErrorIs(t, err, ErrMutationFailed)

		var me *MutationError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, path, me.File)
		assert.Contains(t, me.Op, "change identification name")

		assert.Equal(t, []string{"add_rpath", "id"}, m.ops())
		assert.Len(t, applied, 1)
		assert.Len(t, out.changes, 2)
		assert.Empty(t, out.done)

		assert.Equal(t, os.FileMode(0444), perm(path))
	})

	t.Run("dry run reports without touching the file", func(t *testing.T) {
		path := mkfile("dry", 0444)

		var (
			m   fakeMutator
			out recordingReporter
			s   fakeSigner
		)

		f := &FileFix{Mutator: &m, Signer: &s, Out: &out, DryRun: true}

		applied, err := f.Apply(ctx, path, fullPlan)
		require.NoError(t, err)

		assert.Empty(t, m.calls)
		assert.Empty(t, s.signed)
		assert.Len(t, applied, 4)
		assert.Len(t, out.changes, 4)
		assert.Equal(t, os.FileMode(0444), perm(path))
	})

	t.Run("never touches a file for an empty plan", func(t *testing.T) {
		path := filepath.Join(root, "does-not-exist")

		var m fakeMutator

		f := &FileFix{Mutator: &m}

		applied, err := f.Apply(ctx, path, &FixPlan{})
		require.NoError(t, err)

		assert.Empty(t, applied)
		assert.Empty(t, m.calls)
	})

	t.Run("signs after all changes succeed", func(t *testing.T) {
		path := mkfile("signed", 0555)

		var (
			m fakeMutator
			s fakeSigner
		)

		f := &FileFix{Mutator: &m, Signer: &s}

		_, err := f.Apply(ctx, path, fullPlan)
		require.NoError(t, err)

		assert.Equal(t, []string{path}, s.signed)
		assert.Equal(t, os.FileMode(0555), perm(path))
	})

	t.Run("a signing failure fails the file", func(t *testing.T) {
		path := mkfile("badsign", 0644)

		var m fakeMutator

		s := fakeSigner{err: os.ErrPermission}

		f := &FileFix{Mutator: &m, Signer: &s}

		_, err := f.Apply(ctx, path, fullPlan)
		assert.ErrorIs(t, err, ErrMutationFailed)

		var me *MutationError
		require.ErrorAs(t, err, &me)
		assert.Equal(t, "codesign", me.Op)
	})

	t.Run("fails without mutating when the file is missing", func(t *testing.T) {
		var m fakeMutator

		f := &FileFix{Mutator: &m}

		_, err := f.Apply(ctx, filepath.Join(root, "missing"), fullPlan)
		require.Error(t, err)

		assert.Empty(t, m.calls)
	})
}
