package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"lab47.dev/fixoralib/pkg/machoinfo"
	"lab47.dev/fixoralib/pkg/progress"
)

// FileError records a file that could not be processed.
type FileError struct {
	Path string
	Err  error
}

type Summary struct {
	Scanned  int
	Fixed    int
	Changes  int
	Failures []FileError
}

// FileProcess runs the read, classify, plan and fix steps over files, one
// file at a time.
type FileProcess struct {
	common

	Reader   machoinfo.Reader
	Classify *FileClassify
	Plan     *FilePlan
	Fix      *FileFix

	// InstallDir is the resolved instant client directory.
	InstallDir string
}

// Process handles a single file, returning the changes made to it.
func (p *FileProcess) Process(ctx context.Context, path string) ([]Change, error) {
	md, err := p.Reader.Read(ctx, path)
	if err != nil {
		return nil, err
	}

	if p.L().IsTrace() {
		p.L().Trace("read metadata", "path", path, "metadata", spew.Sdump(md.Records()))
	}

	cls := p.Classify.Inspect(md)

	plan := p.Plan.Plan(path, md, cls, p.InstallDir)
	if plan.Empty() {
		p.L().Debug("nothing to fix", "path", path)
		return nil, nil
	}

	return p.Fix.Apply(ctx, path, plan)
}

// Run processes files in order. A failure only stops work on the file it
// happened on.
func (p *FileProcess) Run(ctx context.Context, files []string) *Summary {
	var sum Summary

	bar := progress.Count(ctx, int64(len(files)), "fixing")
	defer bar.Close()

	for _, path := range files {
		if ctx.Err() != nil {
			p.L().Warn("run canceled", "remaining", len(files)-sum.Scanned)
			break
		}

		bar.On(path)

		sum.Scanned++

		changes, err := p.Process(ctx, path)

		sum.Changes += len(changes)

		if err != nil {
			p.L().Error("unable to fix file", "path", path, "error", err)
			sum.Failures = append(sum.Failures, FileError{Path: path, Err: err})
		} else if len(changes) > 0 {
			sum.Fixed++
		}

		bar.Tick()
	}

	return &sum
}

// DefaultFiles lists the regular, non-hidden files of dir in name order.
// With dir "." the names are returned as-is.
func DefaultFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, track(err)
	}

	var files []string

	for _, ent := range entries {
		if strings.HasPrefix(ent.Name(), ".") {
			continue
		}

		path := ent.Name()
		if dir != "." {
			path = filepath.Join(dir, path)
		}

		fi, err := os.Stat(path)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}

		files = append(files, path)
	}

	return files, nil
}
