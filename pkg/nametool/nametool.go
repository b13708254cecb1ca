// Package nametool rewrites Mach-O load command paths with the Xcode
// command line tools.
package nametool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Mutator changes the path metadata of a file in place.
type Mutator interface {
	AddRPath(ctx context.Context, file, rpath string) error
	SetID(ctx context.Context, file, id string) error
	ChangeDependency(ctx context.Context, file, from, to string) error
}

// Signer re-signs a modified file.
type Signer interface {
	Sign(ctx context.Context, file string) error
}

// InstallNameTool runs install_name_tool.
type InstallNameTool struct {
	// Path to install_name_tool, looked up in PATH when empty.
	Path string
	L    hclog.Logger
}

func (t *InstallNameTool) AddRPath(ctx context.Context, file, rpath string) error {
	return t.run(ctx, "-add_rpath", rpath, file)
}

func (t *InstallNameTool) SetID(ctx context.Context, file, id string) error {
	return t.run(ctx, "-id", id, file)
}

func (t *InstallNameTool) ChangeDependency(ctx context.Context, file, from, to string) error {
	return t.run(ctx, "-change", from, to, file)
}

func (t *InstallNameTool) run(ctx context.Context, args ...string) error {
	bin := t.Path
	if bin == "" {
		bin = "install_name_tool"
	}

	return runTool(ctx, t.logger(), bin, args...)
}

func (t *InstallNameTool) logger() hclog.Logger {
	if t.L == nil {
		t.L = hclog.L()
	}

	return t.L
}

// Codesign applies an ad-hoc signature, which arm64 macOS requires for any
// binary whose load commands were changed.
type Codesign struct {
	Path string
	L    hclog.Logger
}

func (c *Codesign) Sign(ctx context.Context, file string) error {
	bin := c.Path
	if bin == "" {
		bin = "codesign"
	}

	L := c.L
	if L == nil {
		L = hclog.L()
	}

	return runTool(ctx, L, bin, "--sign", "-", "--force",
		"--preserve-metadata=entitlements,requirements,flags,runtime",
		file)
}

func runTool(ctx context.Context, L hclog.Logger, bin string, args ...string) error {
	L.Debug("running tool", "tool", bin, "args", args)

	var stderr bytes.Buffer

	c := exec.CommandContext(ctx, bin, args...)
	c.Stderr = &stderr

	_, err := c.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrapf(err, "%s: %s", bin, msg)
		}

		return errors.Wrapf(err, "running %s", bin)
	}

	return nil
}
