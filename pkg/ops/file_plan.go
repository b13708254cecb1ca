package ops

import (
	"os"
	"path/filepath"

	"lab47.dev/fixoralib/pkg/machoinfo"
)

const (
	// LoaderPath makes dyld search the directory of the loading binary.
	LoaderPath = "@loader_path"

	// RPathPrefix makes dyld search the binary's rpaths.
	RPathPrefix = "@rpath"
)

type Rewrite struct {
	From string
	To   string
}

// FixPlan is the set of changes a file needs.
type FixPlan struct {
	AddRPath bool
	RPath    string

	RewriteID bool
	ID        Rewrite

	Dependencies []Rewrite
}

func (p *FixPlan) Empty() bool {
	return !p.AddRPath && !p.RewriteID && len(p.Dependencies) == 0
}

// Changes lists the plan in the order it has to be applied.
func (p *FixPlan) Changes() []Change {
	var changes []Change

	if p.AddRPath {
		changes = append(changes, Change{Kind: AddRPath, To: p.RPath})
	}

	if p.RewriteID {
		changes = append(changes, Change{Kind: SetID, From: p.ID.From, To: p.ID.To})
	}

	for _, rw := range p.Dependencies {
		changes = append(changes, Change{Kind: ChangeDependency, From: rw.From, To: rw.To})
	}

	return changes
}

type FilePlan struct {
	common

	// Absolute rewrites paths to the install directory itself rather
	// than to @rpath.
	Absolute bool

	// Force adds the rpath to any file that has dependencies.
	Force bool
}

// Plan calculates the changes path needs so the client libraries it
// references resolve from installDir. Files without dependencies never
// need changes.
func (p *FilePlan) Plan(path string, md *machoinfo.Metadata, cls Classification, installDir string) *FixPlan {
	plan := &FixPlan{}

	if len(md.Dependencies) == 0 {
		return plan
	}

	oraclePath := installDir
	if sameDir(installDir, filepath.Dir(path)) {
		oraclePath = LoaderPath
	}

	libdir := RPathPrefix
	if p.Absolute {
		libdir = installDir
	}

	var wantRPath bool

	if p.Absolute {
		wantRPath = cls.IsPrimaryLibrary
	} else {
		wantRPath = len(cls.VendorDependencies) > 0
	}

	if (wantRPath || p.Force) && !md.HasRPath(oraclePath) {
		plan.AddRPath = true
		plan.RPath = oraclePath
	}

	if cls.IsVendorLibrary {
		if want := canonical(libdir, md.ID); md.ID != want {
			plan.RewriteID = true
			plan.ID = Rewrite{From: md.ID, To: want}
		}
	}

	for _, dep := range cls.VendorDependencies {
		if want := canonical(libdir, dep); dep != want {
			plan.Dependencies = append(plan.Dependencies, Rewrite{From: dep, To: want})
		}
	}

	p.L().Trace("planned changes", "path", path, "rpath", plan.RPath, "id", plan.ID.To, "dependencies", len(plan.Dependencies))

	return plan
}

func canonical(libdir, path string) string {
	return libdir + "/" + filepath.Base(path)
}

// sameDir compares directory entries rather than names, so links to the
// same directory are equal.
func sameDir(a, b string) bool {
	ai, err := os.Stat(a)
	if err != nil {
		return false
	}

	bi, err := os.Stat(b)
	if err != nil {
		return false
	}

	return os.SameFile(ai, bi)
}
