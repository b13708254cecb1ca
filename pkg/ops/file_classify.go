package ops

import (
	"lab47.dev/fixoralib/pkg/machoinfo"
	"lab47.dev/fixoralib/pkg/registry"
)

// Classification describes how a file relates to the instant client.
type Classification struct {
	// The file's own id is a known client library.
	IsVendorLibrary bool

	// The file's own id is the primary client library.
	IsPrimaryLibrary bool

	// Dependencies that are client libraries, in load command order.
	VendorDependencies []string
}

type FileClassify struct {
	Registry *registry.Registry
}

// Classify reports whether md identifies a client library under mode, and
// which of its dependencies are client libraries.
func (c *FileClassify) Classify(md *machoinfo.Metadata, mode registry.MatchMode) (bool, []string) {
	isVendor := md.HasID() && c.Registry.Match(md.ID, mode)

	var deps []string

	for _, dep := range md.Dependencies {
		if c.Registry.Match(dep, registry.MatchAny) {
			deps = append(deps, dep)
		}
	}

	return isVendor, deps
}

func (c *FileClassify) Inspect(md *machoinfo.Metadata) Classification {
	isVendor, deps := c.Classify(md, registry.MatchAny)

	return Classification{
		IsVendorLibrary:    isVendor,
		IsPrimaryLibrary:   md.HasID() && c.Registry.Match(md.ID, registry.MatchPrimary),
		VendorDependencies: deps,
	}
}
