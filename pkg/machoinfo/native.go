package machoinfo

import (
	"bytes"
	"context"
	"debug/macho"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// debug/macho has no constant for LC_ID_DYLIB and leaves it as raw bytes.
const loadCmdIDDylib macho.LoadCmd = 0xd

// Native reads metadata straight from the file with debug/macho instead of
// shelling out to otool.
type Native struct {
	L hclog.Logger
}

func (n *Native) Read(ctx context.Context, path string) (*Metadata, error) {
	if n.L == nil {
		n.L = hclog.L()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := macho.Open(path)
	if err == nil {
		defer f.Close()
		return fromFile(f)
	}

	ff, ferr := macho.OpenFat(path)
	if ferr != nil {
		n.L.Trace("not a mach-o file", "path", path, "error", err)
		return &Metadata{}, nil
	}

	defer ff.Close()

	if len(ff.Arches) == 0 {
		return &Metadata{}, nil
	}

	n.L.Trace("universal file, using first slice", "path", path, "cpu", ff.Arches[0].Cpu.String())

	return fromFile(ff.Arches[0].File)
}

func fromFile(f *macho.File) (*Metadata, error) {
	var md Metadata

	for _, l := range f.Loads {
		var rec Record

		switch l := l.(type) {
		case *macho.Rpath:
			rec = Record{Kind: RPath, Path: l.Path}
		case *macho.Dylib:
			rec = Record{Kind: Dependency, Path: l.Name}
		case macho.LoadBytes:
			name, ok, err := idDylibName(f, l)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			rec = Record{Kind: SelfID, Path: name}
		default:
			continue
		}

		if err := md.add(rec); err != nil {
			return nil, err
		}
	}

	return &md, nil
}

// idDylibName decodes the name of an LC_ID_DYLIB command, laid out like a
// dylib_command: cmd, cmdsize, name offset, timestamp, versions.
func idDylibName(f *macho.File, raw macho.LoadBytes) (string, bool, error) {
	if len(raw) < 12 {
		return "", false, nil
	}

	if macho.LoadCmd(f.ByteOrder.Uint32(raw[0:4])) != loadCmdIDDylib {
		return "", false, nil
	}

	off := f.ByteOrder.Uint32(raw[8:12])
	if off >= uint32(len(raw)) {
		return "", false, errors.Wrapf(ErrMalformedMetadata, "LC_ID_DYLIB name offset %d out of range", off)
	}

	name := raw[off:]
	if i := bytes.IndexByte(name, 0); i != -1 {
		name = name[:i]
	}

	return string(name), true, nil
}
