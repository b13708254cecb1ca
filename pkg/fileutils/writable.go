package fileutils

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

const ownerWrite os.FileMode = 0200

const modeBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

// Writable grants the owner write permission on Path for the span of a set
// of modifications. Ensure may be called before every modification; only the
// first call inspects the file. Restore puts the original mode back at most
// once, and only if Ensure had to change it.
type Writable struct {
	Path string
	L    hclog.Logger

	checked  bool
	changed  bool
	restored bool
	orig     os.FileMode
}

func (w *Writable) Ensure() error {
	if w.checked {
		return nil
	}

	if w.L == nil {
		w.L = hclog.L()
	}

	fi, err := os.Stat(w.Path)
	if err != nil {
		return errors.Wrapf(err, "checking mode of %s", w.Path)
	}

	w.checked = true
	w.orig = fi.Mode() & modeBits

	if w.orig&ownerWrite != 0 {
		return nil
	}

	w.L.Debug("adding owner write permission", "path", w.Path, "mode", w.orig.String())

	err = os.Chmod(w.Path, w.orig|ownerWrite)
	if err != nil {
		return errors.Wrapf(err, "making %s writable", w.Path)
	}

	w.changed = true

	return nil
}

// Changed reports whether Ensure added the write bit.
func (w *Writable) Changed() bool {
	return w.changed
}

func (w *Writable) Restore() error {
	if !w.changed || w.restored {
		return nil
	}

	w.restored = true

	w.L.Debug("restoring file mode", "path", w.Path, "mode", w.orig.String())

	return errors.Wrapf(os.Chmod(w.Path, w.orig), "restoring mode of %s", w.Path)
}
