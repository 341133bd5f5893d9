// Package meta talks to the fileset metadata service. It supplies the
// mapping from a logical fileset identifier to the fileset's physical
// storage location and layout properties.
package meta

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when the metadata service does not know the
// requested fileset.
var ErrNotFound = errors.New("fileset not found")

// Identifier names a fileset as a (catalog, schema, name) triple.
// It is comparable and used as a cache key.
type Identifier struct {
	Catalog string
	Schema  string
	Name    string
}

func (id Identifier) String() string {
	return id.Catalog + "." + id.Schema + "." + id.Name
}

// Well-known fileset property keys understood by the client.
const (
	PropertyPrefixPattern = "fileset.prefix.pattern"
	PropertyDirMaxLevel   = "fileset.dir.max.level"
)

// Fileset is an immutable metadata snapshot for one fileset. It may go
// stale relative to the metadata service; the staleness window is bounded
// by the resolution cache TTL.
type Fileset struct {
	Name            string            `json:"name"`
	Comment         string            `json:"comment,omitempty"`
	StorageLocation string            `json:"storageLocation"`
	Properties      map[string]string `json:"properties"`
}

// Property returns the named property, or "" when unset.
func (f *Fileset) Property(key string) string {
	if f.Properties == nil {
		return ""
	}
	return f.Properties[key]
}

// Client loads fileset metadata. Implementations must be safe for
// concurrent use.
type Client interface {
	LoadFileset(ctx context.Context, id Identifier) (*Fileset, error)
	Close() error
}

func validIdentifier(id Identifier) error {
	if id.Catalog == "" || id.Schema == "" || id.Name == "" {
		return fmt.Errorf("incomplete fileset identifier: %q", id)
	}
	return nil
}
