package ops

import (
	"context"
	"fmt"

	"lab47.dev/fixoralib/pkg/fileutils"
	"lab47.dev/fixoralib/pkg/nametool"
)

type ChangeKind int

const (
	AddRPath ChangeKind = iota
	SetID
	ChangeDependency
)

// Change is a single modification to a file's load commands. From is empty
// for AddRPath.
type Change struct {
	Kind ChangeKind
	From string
	To   string
}

func (c Change) String() string {
	switch c.Kind {
	case AddRPath:
		return fmt.Sprintf("add rpath %s", c.To)
	case SetID:
		return fmt.Sprintf("change identification name from %s to %s", c.From, c.To)
	default:
		return fmt.Sprintf("change install name from %s to %s", c.From, c.To)
	}
}

// Reporter is told about each change before it is made, and when all the
// changes to a file went through.
type Reporter interface {
	Change(file string, c Change)
	Done(file string)
}

type FileFix struct {
	common

	Mutator nametool.Mutator

	// Signer, when set, re-signs each file after its changes are made.
	Signer nametool.Signer

	// DryRun reports the changes without making them.
	DryRun bool

	Out Reporter
}

// Apply makes the changes in plan to path, in plan order. The first failing
// change stops the rest. If the file had to be made writable, its mode is
// restored before returning.
func (f *FileFix) Apply(ctx context.Context, path string, plan *FixPlan) (applied []Change, err error) {
	if plan.Empty() {
		return nil, nil
	}

	w := &fileutils.Writable{Path: path, L: f.L()}

	defer func() {
		if w.Changed() {
			f.L().Debug("restoring file mode", "path", path)
		}

		rerr := w.Restore()
		if rerr != nil && err == nil {
			err = rerr
		}
	}()

	for _, c := range plan.Changes() {
		if !f.DryRun {
			if err := w.Ensure(); err != nil {
				return applied, err
			}
		}

		if f.Out != nil {
			f.Out.Change(path, c)
		}

		if !f.DryRun {
			if err := f.mutate(ctx, path, c); err != nil {
				return applied, &MutationError{File: path, Op: c.String(), Err: err}
			}
		}

		applied = append(applied, c)
	}

	if f.Signer != nil && !f.DryRun {
		f.L().Debug("re-signing", "path", path)

		if err := f.Signer.Sign(ctx, path); err != nil {
			return applied, &MutationError{File: path, Op: "codesign", Err: err}
		}
	}

	if f.Out != nil {
		f.Out.Done(path)
	}

	return applied, nil
}

func (f *FileFix) mutate(ctx context.Context, path string, c Change) error {
	switch c.Kind {
	case AddRPath:
		return f.Mutator.AddRPath(ctx, path, c.To)
	case SetID:
		return f.Mutator.SetID(ctx, path, c.To)
	default:
		return f.Mutator.ChangeDependency(ctx, path, c.From, c.To)
	}
}
