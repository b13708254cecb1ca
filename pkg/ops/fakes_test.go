package ops

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"lab47.dev/fixoralib/pkg/machoinfo"
)

type call struct {
	op   string
	file string
	args []string
	mode os.FileMode
}

type fakeMutator struct {
	calls  []call
	failOn string
}

func (m *fakeMutator) record(op, file string, args ...string) error {
	var mode os.FileMode
	if fi, err := os.Stat(file); err == nil {
		mode = fi.Mode().Perm()
	}

	m.calls = append(m.calls, call{op: op, file: file, args: args, mode: mode})

	if op == m.failOn {
		return errors.New("exit status 1")
	}

	return nil
}

func (m *fakeMutator) AddRPath(ctx context.Context, file, rpath string) error {
	return m.record("add_rpath", file, rpath)
}

func (m *fakeMutator) SetID(ctx context.Context, file, id string) error {
	return m.record("id", file, id)
}

func (m *fakeMutator) ChangeDependency(ctx context.Context, file, from, to string) error {
	return m.record("change", file, from, to)
}

func (m *fakeMutator) ops() []string {
	var out []string
	for _, c := range m.calls {
		out = append(out, c.op)
	}
	return out
}

type fakeSigner struct {
	signed []string
	err    error
}

func (s *fakeSigner) Sign(ctx context.Context, file string) error {
	s.signed = append(s.signed, file)
	return s.err
}

type fakeReader map[string]*machoinfo.Metadata

func (r fakeReader) Read(ctx context.Context, path string) (*machoinfo.Metadata, error) {
	md, ok := r[path]
	if !ok {
		return &machoinfo.Metadata{}, nil
	}

	return md, nil
}

type recordingReporter struct {
	changes []Change
	done    []string
}

func (r *recordingReporter) Change(file string, c Change) {
	r.changes = append(r.changes, c)
}

func (r *recordingReporter) Done(file string) {
	r.done = append(r.done, file)
}

func mustMetadata(recs ...machoinfo.Record) *machoinfo.Metadata {
	md, err := machoinfo.Build(recs...)
	if err != nil {
		panic(err)
	}

	return md
}

func rpath(p string) machoinfo.Record { return machoinfo.Record{Kind: machoinfo.RPath, Path: p} }
func id(p string) machoinfo.Record    { return machoinfo.Record{Kind: machoinfo.SelfID, Path: p} }
func dep(p string) machoinfo.Record   { return machoinfo.Record{Kind: machoinfo.Dependency, Path: p} }

// applyPlan returns the metadata a file would have after plan was applied.
func applyPlan(md *machoinfo.Metadata, plan *FixPlan) *machoinfo.Metadata {
	var recs []machoinfo.Record

	for _, r := range md.RPaths {
		recs = append(recs, rpath(r))
	}

	if plan.AddRPath {
		recs = append(recs, rpath(plan.RPath))
	}

	if md.HasID() {
		if plan.RewriteID {
			recs = append(recs, id(plan.ID.To))
		} else {
			recs = append(recs, id(md.ID))
		}
	}

outer:
	for _, d := range md.Dependencies {
		for _, rw := range plan.Dependencies {
			if rw.From == d {
				recs = append(recs, dep(rw.To))
				continue outer
			}
		}

		recs = append(recs, dep(d))
	}

	return mustMetadata(recs...)
}
