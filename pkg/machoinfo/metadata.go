// Package machoinfo extracts the path-carrying load commands (LC_RPATH,
// LC_ID_DYLIB and LC_LOAD_DYLIB) from Mach-O binaries.
package machoinfo

import (
	"context"

	"github.com/pkg/errors"
)

// ErrMalformedMetadata is returned when the load commands of a file can't
// be interpreted, for instance a binary with two LC_ID_DYLIB commands.
var ErrMalformedMetadata = errors.New("malformed load command metadata")

type Kind int

const (
	RPath Kind = iota
	SelfID
	Dependency
)

func (k Kind) String() string {
	switch k {
	case RPath:
		return "LC_RPATH"
	case SelfID:
		return "LC_ID_DYLIB"
	case Dependency:
		return "LC_LOAD_DYLIB"
	default:
		return "unknown"
	}
}

// Record is a single path taken from a load command.
type Record struct {
	Kind Kind
	Path string
}

// Metadata is the snapshot of a file's path records. The zero value means
// no metadata was available.
type Metadata struct {
	RPaths       []string
	ID           string
	Dependencies []string

	hasID bool
}

// Reader produces the Metadata for a file.
type Reader interface {
	Read(ctx context.Context, path string) (*Metadata, error)
}

func (m *Metadata) HasID() bool {
	return m.hasID
}

func (m *Metadata) HasRPath(path string) bool {
	for _, p := range m.RPaths {
		if p == path {
			return true
		}
	}

	return false
}

// Records returns the records in kind order: rpaths, id, dependencies.
func (m *Metadata) Records() []Record {
	var recs []Record

	for _, p := range m.RPaths {
		recs = append(recs, Record{Kind: RPath, Path: p})
	}

	if m.hasID {
		recs = append(recs, Record{Kind: SelfID, Path: m.ID})
	}

	for _, p := range m.Dependencies {
		recs = append(recs, Record{Kind: Dependency, Path: p})
	}

	return recs
}

func (m *Metadata) add(rec Record) error {
	switch rec.Kind {
	case RPath:
		m.RPaths = append(m.RPaths, rec.Path)
	case SelfID:
		if m.hasID {
			return errors.Wrapf(ErrMalformedMetadata, "second %s %q (already have %q)", rec.Kind, rec.Path, m.ID)
		}

		m.ID = rec.Path
		m.hasID = true
	case Dependency:
		m.Dependencies = append(m.Dependencies, rec.Path)
	}

	return nil
}

// Build constructs Metadata from records in order of appearance.
func Build(recs ...Record) (*Metadata, error) {
	var md Metadata

	for _, rec := range recs {
		if err := md.add(rec); err != nil {
			return nil, err
		}
	}

	return &md, nil
}
