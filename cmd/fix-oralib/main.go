package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	"lab47.dev/fixoralib/pkg/cmd"
	"lab47.dev/fixoralib/pkg/config"
	"lab47.dev/fixoralib/pkg/lockfile"
	"lab47.dev/fixoralib/pkg/machoinfo"
	"lab47.dev/fixoralib/pkg/nametool"
	"lab47.dev/fixoralib/pkg/ops"
	"lab47.dev/fixoralib/pkg/progress"
	"lab47.dev/fixoralib/pkg/report"
)

type fixOpts struct {
	ICDir      string `short:"d" long:"ic_dir" value-name:"DIRECTORY" description:"Oracle instant client directory (default: current directory or program directory)"`
	Absolute   bool   `short:"a" long:"absolute-path" description:"use the absolute path of the instant client directory instead of @rpath"`
	NoAbsolute bool   `long:"no-absolute-path" description:"use @rpath for rewritten paths"`
	DryRun     bool   `short:"n" long:"dry-run" description:"perform a trial run with no changes made"`
	NoDryRun   bool   `long:"no-dry-run" description:"make the changes"`
	Force      bool   `short:"f" long:"force" description:"add the rpath to any file with dependencies"`
	Legacy     bool   `long:"legacy" description:"only recognize the 11.1 client libraries"`
	Native     bool   `long:"native" description:"read load commands directly instead of running otool"`
	Color      bool   `long:"color" description:"highlight file names in the output"`
	Progress   bool   `long:"progress" description:"show a progress bar on stderr"`
	Verbose    bool   `short:"v" long:"verbose" description:"log debug information"`
	Trace      bool   `long:"trace" description:"log in trace mode"`
	Config     string `long:"config" value-name:"FILE" description:"read settings from FILE"`

	Args struct {
		Files []string `positional-arg-name:"file"`
	} `positional-args:"yes"`
}

type settings struct {
	icDir    string
	absolute bool
	dryRun   bool
	native   bool
}

// merge applies the command line over the config file; a --no- flag wins
// over its positive form.
func merge(opts fixOpts, cfg *config.Config) settings {
	s := settings{
		icDir:    cfg.ICDir,
		absolute: cfg.AbsolutePath,
		native:   opts.Native || cfg.Reader == config.ReaderNative,
	}

	if opts.ICDir != "" {
		s.icDir = opts.ICDir
	}

	if opts.Absolute {
		s.absolute = true
	}

	if opts.NoAbsolute {
		s.absolute = false
	}

	s.dryRun = opts.DryRun && !opts.NoDryRun

	return s
}

func main() {
	c := cmd.New(
		"fix-oralib",
		"Fix the library paths of Oracle instant client binaries",
		fixF,
	)

	os.Exit(c.Run(os.Args[1:]))
}

func fixF(ctx context.Context, opts fixOpts) error {
	level := hclog.Warn

	switch {
	case opts.Trace:
		level = hclog.Trace
	case opts.Verbose:
		level = hclog.Debug
	}

	L := hclog.New(&hclog.LoggerOptions{
		Name:   "fix-oralib",
		Level:  level,
		Output: os.Stderr,
	})

	hclog.SetDefault(L)

	var (
		cfg *config.Config
		err error
	)

	if opts.Config != "" {
		cfg, err = config.LoadFile(opts.Config)
	} else {
		cfg, err = config.LoadConfig()
	}

	if err != nil {
		return err
	}

	if opts.Legacy {
		cfg.Legacy = true
	}

	reg, err := cfg.Registry()
	if err != nil {
		return err
	}

	L.Trace("recognized libraries", "matchers", reg.Matchers())

	s := merge(opts, cfg)

	dr := &ops.DirResolve{Registry: reg}
	dr.SetLogger(L)

	icDir, err := dr.Resolve(s.icDir)
	if err != nil {
		return cmd.WithStatus(1, err)
	}

	L.Debug("using instant client", "dir", icDir, "config", cfg.Path())

	files := opts.Args.Files
	if len(files) == 0 {
		files, err = ops.DefaultFiles(".")
		if err != nil {
			return err
		}
	}

	var reader machoinfo.Reader = &machoinfo.Otool{L: L}

	if s.native {
		reader = &machoinfo.Native{L: L}
	} else if _, err := exec.LookPath("otool"); err != nil {
		L.Warn("otool not found, reading load commands directly")
		reader = &machoinfo.Native{L: L}
	}

	fix := &ops.FileFix{
		Mutator: &nametool.InstallNameTool{L: L},
		DryRun:  s.dryRun,
		Out:     &report.Printer{W: os.Stdout, Color: opts.Color},
	}
	fix.SetLogger(L)

	if !s.dryRun {
		sign, err := cfg.RequireCodeSign()
		if err != nil {
			L.Warn("unable to detect platform, not re-signing", "error", err)
		}

		if sign {
			fix.Signer = &nametool.Codesign{L: L}
		}

		var showLock bool

		release, err := lockfile.Take(ctx, lockfile.PathFor(icDir), time.Second, func() {
			if !showLock {
				fmt.Fprintf(os.Stderr, "Lock detected, waiting...\n")
				showLock = true
			}
		})
		if err != nil {
			return err
		}

		defer release()
	}

	plan := &ops.FilePlan{Absolute: s.absolute, Force: opts.Force}
	plan.SetLogger(L)

	proc := &ops.FileProcess{
		Reader:     reader,
		Classify:   &ops.FileClassify{Registry: reg},
		Plan:       plan,
		Fix:        fix,
		InstallDir: icDir,
	}
	proc.SetLogger(L)

	if opts.Progress {
		ctx = progress.Open(ctx, os.Stderr)
	}

	sum := proc.Run(ctx, files)

	L.Debug("run complete", "scanned", sum.Scanned, "fixed", sum.Fixed, "changes", sum.Changes, "failed", len(sum.Failures))

	if len(sum.Failures) > 0 {
		return cmd.WithStatus(2, fmt.Errorf("%d of %d files could not be fixed", len(sum.Failures), sum.Scanned))
	}

	return ctx.Err()
}
