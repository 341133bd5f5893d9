package gvfs

import "errors"

// Sentinel errors classifying failures of the virtual filesystem layer.
// Backend-native I/O errors are passed through unwrapped.
var (
	// ErrMalformedPath marks virtual paths that do not match the
	// /<catalog>/<schema>/<fileset>[/...] grammar.
	ErrMalformedPath = errors.New("malformed virtual path")

	// ErrResolution marks failures to resolve an identifier to fileset
	// metadata plus a live backend handle.
	ErrResolution = errors.New("fileset resolution failed")

	// ErrPathPolicy marks sub-paths that violate the fileset's declared
	// directory prefix pattern or maximum depth.
	ErrPathPolicy = errors.New("path violates fileset directory policy")

	// ErrNotSupported marks structurally disallowed operations, such as
	// renaming a fileset that mounts a single file.
	ErrNotSupported = errors.New("operation not supported")

	// ErrCrossFileset marks renames whose source and destination resolve
	// to different filesets.
	ErrCrossFileset = errors.New("rename across filesets")

	// ErrInvalidArgument marks virtual paths that cannot be translated,
	// such as a sub-path under a single-file mount.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConfiguration marks missing or invalid settings at startup.
	ErrConfiguration = errors.New("invalid configuration")
)
