package gvfs

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/filesetio/gvfs/backend"
	"github.com/filesetio/gvfs/meta"
)

// Defaults for the resolution cache and metadata client.
const (
	DefaultCacheMaxCapacity      = 20
	DefaultCacheEvictAfterAccess = time.Hour
	DefaultMetadataTimeout       = 30 * time.Second
)

// Config configures a FileSystem. It is immutable once passed to New.
type Config struct {
	// ServerURI and Metalake locate the metadata service; required unless
	// Client is set.
	ServerURI string
	Metalake  string
	Auth      meta.AuthConfig

	// Client overrides the REST metadata client. Tests inject stubs here.
	Client meta.Client

	// Registry supplies backend drivers by storage scheme; required.
	Registry *backend.Registry

	// CacheMaxCapacity bounds the number of resolved filesets held at
	// once; least-recently-used entries are evicted beyond it.
	CacheMaxCapacity int

	// CacheEvictAfterAccess evicts entries idle longer than this.
	CacheEvictAfterAccess time.Duration

	// MetadataTimeout bounds each metadata fetch during resolution.
	MetadataTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.CacheMaxCapacity == 0 {
		out.CacheMaxCapacity = DefaultCacheMaxCapacity
	}
	if out.CacheEvictAfterAccess == 0 {
		out.CacheEvictAfterAccess = DefaultCacheEvictAfterAccess
	}
	if out.MetadataTimeout == 0 {
		out.MetadataTimeout = DefaultMetadataTimeout
	}
	if out.Logger == nil {
		out.Logger = slog.Default()
	}
	return out
}

func (c *Config) validate() error {
	if c.CacheMaxCapacity < 0 {
		return fmt.Errorf("%w: cache max capacity must not be negative", ErrConfiguration)
	}
	if c.CacheEvictAfterAccess < 0 {
		return fmt.Errorf("%w: cache eviction duration must not be negative", ErrConfiguration)
	}
	if c.Registry == nil {
		return fmt.Errorf("%w: a backend driver registry is required", ErrConfiguration)
	}
	if c.Client == nil {
		if c.ServerURI == "" {
			return fmt.Errorf("%w: metadata server uri is required", ErrConfiguration)
		}
		if c.Metalake == "" {
			return fmt.Errorf("%w: metalake name is required", ErrConfiguration)
		}
		if err := c.Auth.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrConfiguration, err)
		}
	}
	return nil
}
