package gvfs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/filesetio/gvfs/meta"
)

// Scheme is the URI scheme of virtual paths.
const Scheme = "gvfs"

// VirtualPrefixRoot is the scheme-qualified root all virtual paths hang
// off: gvfs://fileset/<catalog>/<schema>/<fileset>/...
const VirtualPrefixRoot = Scheme + "://fileset"

// identifierPattern matches virtual paths with or without the scheme
// prefix:
//
//	gvfs://fileset/catalog/schema/fileset1/file.txt
//	/catalog/schema/fileset1/sub_dir/
var identifierPattern = regexp.MustCompile(`^(?:` + VirtualPrefixRoot + `)?/([^/]+)/([^/]+)/([^/]+)(?:/[^/]+)*/?$`)

// ExtractIdentifier parses the fileset identifier out of a virtual path.
func ExtractIdentifier(path string) (meta.Identifier, error) {
	if strings.TrimSpace(path) == "" {
		return meta.Identifier{}, fmt.Errorf("%w: empty path", ErrMalformedPath)
	}
	m := identifierPattern.FindStringSubmatch(path)
	if m == nil {
		return meta.Identifier{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	return meta.Identifier{Catalog: m[1], Schema: m[2], Name: m[3]}, nil
}

// VirtualPrefix reconstructs the canonical virtual-path prefix for an
// identifier, optionally scheme-qualified. It is the inverse of
// ExtractIdentifier for the leading three segments.
func VirtualPrefix(id meta.Identifier, withScheme bool) string {
	prefix := ""
	if withScheme {
		prefix = VirtualPrefixRoot
	}
	return fmt.Sprintf("%s/%s/%s/%s", prefix, id.Catalog, id.Schema, id.Name)
}
