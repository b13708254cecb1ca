package ops

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"lab47.dev/fixoralib/pkg/registry"
)

// DirResolve finds the instant client directory, the directory that holds
// the primary client library.
type DirResolve struct {
	common

	Registry *registry.Registry

	// Getwd and Executable default to os.Getwd and os.Executable.
	Getwd      func() (string, error)
	Executable func() (string, error)
}

// Resolve returns the absolute instant client directory. An explicit
// directory must qualify; otherwise the working directory and then the
// directory of the running program are tried.
func (d *DirResolve) Resolve(explicit string) (string, error) {
	if explicit != "" {
		dir, err := homedir.Expand(explicit)
		if err != nil {
			return "", track(err)
		}

		dir, err = filepath.Abs(dir)
		if err != nil {
			return "", track(err)
		}

		if !d.IsInstallDir(dir) {
			return "", &DirError{Kind: NotInstantClientDirectory, Dir: dir}
		}

		return dir, nil
	}

	for _, candidate := range d.candidates() {
		d.L().Trace("checking for instant client", "dir", candidate)

		if d.IsInstallDir(candidate) {
			return candidate, nil
		}
	}

	return "", &DirError{Kind: InstantClientNotFound}
}

func (d *DirResolve) candidates() []string {
	var dirs []string

	getwd := d.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}

	if wd, err := getwd(); err == nil {
		dirs = append(dirs, wd)
	}

	executable := d.Executable
	if executable == nil {
		executable = os.Executable
	}

	if exe, err := executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(exe); err == nil {
			exe = resolved
		}

		if abs, err := filepath.Abs(filepath.Dir(exe)); err == nil {
			dirs = append(dirs, abs)
		}
	}

	return dirs
}

// IsInstallDir reports whether dir has an entry matching the primary
// registry pattern.
func (d *DirResolve) IsInstallDir(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	primary := d.Registry.Primary()

	for _, ent := range entries {
		if primary.Match(ent.Name()) {
			return true
		}
	}

	return false
}
