package ops

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"lab47.dev/fixoralib/pkg/registry"
)

func TestFileClassify(t *testing.T) {
	c := &FileClassify{Registry: registry.Default()}

	t.Run("recognizes the file itself by its id", func(t *testing.T) {
		md := mustMetadata(id("/ade/b/libocci.dylib.12.1"), dep("/usr/lib/libSystem.B.dylib"))

		cls := c.Inspect(md)

		assert.True(t, cls.IsVendorLibrary)
		assert.False(t, cls.IsPrimaryLibrary)
		assert.Empty(t, cls.VendorDependencies)
	})

	t.Run("primary mode only matches the reference library", func(t *testing.T) {
		md := mustMetadata(id("/ade/b/libclntsh.dylib.12.1"))

		isVendor, _ := c.Classify(md, registry.MatchPrimary)
		assert.True(t, isVendor)

		md = mustMetadata(id("/ade/b/libnnz12.dylib"))

		isVendor, _ = c.Classify(md, registry.MatchPrimary)
		assert.False(t, isVendor)

		isVendor, _ = c.Classify(md, registry.MatchAny)
		assert.True(t, isVendor)
	})

	t.Run("files without an id are not vendor libraries", func(t *testing.T) {
		md := mustMetadata(dep("/ade/b/libclntsh.dylib.12.1"))

		cls := c.Inspect(md)

		assert.False(t, cls.IsVendorLibrary)
		assert.False(t, cls.IsPrimaryLibrary)
	})

	t.Run("selects vendor dependencies in order", func(t *testing.T) {
		md := mustMetadata(
			dep("/ade/b/libnnz12.dylib"),
			dep("/usr/lib/libSystem.B.dylib"),
			dep("/ade/b/libclntsh.dylib.12.1"),
			dep("@rpath/libociei.dylib"),
		)

		_, deps := c.Classify(md, registry.MatchPrimary)

		assert.Equal(t, []string{
			"/ade/b/libnnz12.dylib",
			"/ade/b/libclntsh.dylib.12.1",
			"@rpath/libociei.dylib",
		}, deps)
	})
}
