package machoinfo

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Otool reads metadata from the output of `otool -l`.
type Otool struct {
	// Path to the otool binary, "otool" when empty.
	Path string
	L    hclog.Logger
}

func (o *Otool) Read(ctx context.Context, path string) (*Metadata, error) {
	if o.L == nil {
		o.L = hclog.L()
	}

	bin := o.Path
	if bin == "" {
		bin = "otool"
	}

	var stdout, stderr bytes.Buffer

	c := exec.CommandContext(ctx, bin, "-l", path)
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	if err != nil {
		// otool exits non-zero for non-object files, which Parse turns into
		// empty metadata through the header check.
		var ee *exec.ExitError
		if !errors.As(err, &ee) {
			return nil, errors.Wrapf(err, "running %s", bin)
		}

		o.L.Debug("otool reported failure", "path", path, "status", ee.ExitCode(), "stderr", strings.TrimSpace(stderr.String()))
	}

	return Parse(&stdout, path)
}

type parseState int

const (
	stateHeader parseState = iota
	stateScan
	stateValue
)

var commandKinds = map[string]Kind{
	"LC_RPATH":      RPath,
	"LC_ID_DYLIB":   SelfID,
	"LC_LOAD_DYLIB": Dependency,
}

// valueKey is the key of the value line that follows each command.
func (k Kind) valueKey() string {
	if k == RPath {
		return "path"
	}

	return "name"
}

// Parse reads `otool -l` output for filename. Output that doesn't start
// with the "<filename>:" header yields empty metadata.
func Parse(r io.Reader, filename string) (*Metadata, error) {
	var (
		md     Metadata
		state  = stateHeader
		kind   Kind
		lineNo int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		lineNo++
		raw := sc.Text()

		switch state {
		case stateHeader:
			if raw != filename+":" {
				return &Metadata{}, nil
			}

			state = stateScan
		case stateScan:
			key, val := splitField(raw)
			if key != "cmd" {
				continue
			}

			k, ok := commandKinds[val]
			if !ok {
				continue
			}

			kind = k
			state = stateValue
		case stateValue:
			key, val := splitField(raw)
			if key == "cmdsize" {
				continue
			}

			if key != kind.valueKey() {
				return nil, errors.Wrapf(ErrMalformedMetadata,
					"line %d: expected %s value for %s, got %q", lineNo, kind.valueKey(), kind, raw)
			}

			path, ok := trimOffset(val)
			if !ok {
				return nil, errors.Wrapf(ErrMalformedMetadata,
					"line %d: missing offset in %s value %q", lineNo, kind, raw)
			}

			if err := md.add(Record{Kind: kind, Path: path}); err != nil {
				return nil, err
			}

			state = stateScan
		}
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "reading load commands of %s", filename)
	}

	if state == stateValue {
		return nil, errors.Wrapf(ErrMalformedMetadata, "%s command without a value at end of input", kind)
	}

	return &md, nil
}

// splitField splits an otool line into its key and the rest.
func splitField(line string) (string, string) {
	line = strings.TrimSpace(line)

	idx := strings.IndexAny(line, " \t")
	if idx == -1 {
		return line, ""
	}

	return line[:idx], strings.TrimSpace(line[idx+1:])
}

// trimOffset strips the trailing " (offset N)" from a value.
func trimOffset(val string) (string, bool) {
	if !strings.HasSuffix(val, ")") {
		return "", false
	}

	idx := strings.LastIndex(val, " (")
	if idx == -1 {
		return "", false
	}

	return val[:idx], true
}
