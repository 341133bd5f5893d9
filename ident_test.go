package gvfs

import (
	"errors"
	"testing"

	"github.com/filesetio/gvfs/meta"
)

func TestExtractIdentifier(t *testing.T) {
	tests := []struct {
		path string
		want meta.Identifier
	}{
		{"gvfs://fileset/catalog1/schema1/fileset1", meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}},
		{"gvfs://fileset/catalog1/schema1/fileset1/", meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}},
		{"gvfs://fileset/catalog1/schema1/fileset1/dir/file.txt", meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}},
		{"/catalog1/schema1/fileset1", meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}},
		{"/catalog1/schema1/fileset1/sub_dir/", meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}},
		{"/c/s/f/year=2024/month=05/data.csv", meta.Identifier{Catalog: "c", Schema: "s", Name: "f"}},
	}
	for _, tt := range tests {
		got, err := ExtractIdentifier(tt.path)
		if err != nil {
			t.Errorf("ExtractIdentifier(%q): %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ExtractIdentifier(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestExtractIdentifierMalformed(t *testing.T) {
	paths := []string{
		"",
		"   ",
		"/",
		"/catalog1",
		"/catalog1/schema1",
		"/catalog1/schema1/",
		"gvfs://fileset/catalog1/schema1",
		"gvfs://other/catalog1/schema1/fileset1",
		"catalog1/schema1/fileset1",
		"s3://bucket/catalog1/schema1/fileset1",
	}
	for _, path := range paths {
		if _, err := ExtractIdentifier(path); !errors.Is(err, ErrMalformedPath) {
			t.Errorf("ExtractIdentifier(%q) err = %v, want ErrMalformedPath", path, err)
		}
	}
}

func TestVirtualPrefixRoundTrip(t *testing.T) {
	id := meta.Identifier{Catalog: "catalog1", Schema: "schema1", Name: "fileset1"}

	withScheme := VirtualPrefix(id, true)
	if withScheme != "gvfs://fileset/catalog1/schema1/fileset1" {
		t.Errorf("VirtualPrefix(id, true) = %q", withScheme)
	}
	withoutScheme := VirtualPrefix(id, false)
	if withoutScheme != "/catalog1/schema1/fileset1" {
		t.Errorf("VirtualPrefix(id, false) = %q", withoutScheme)
	}

	// Both prefix forms, with or without a sub-path, parse back to the
	// same identifier.
	for _, path := range []string{
		withScheme,
		withoutScheme,
		withScheme + "/sub/dir/file.parquet",
		withoutScheme + "/sub/dir/file.parquet",
	} {
		got, err := ExtractIdentifier(path)
		if err != nil {
			t.Fatalf("ExtractIdentifier(%q): %v", path, err)
		}
		if got != id {
			t.Errorf("ExtractIdentifier(%q) = %v, want %v", path, got, id)
		}
	}
}
