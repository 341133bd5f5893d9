package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
)

// ErrUnsupportedScheme is returned when no driver is registered for the
// scheme of a storage-location URI.
var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// Driver constructs a live backend handle rooted at a storage location.
type Driver interface {
	New(ctx context.Context, location string) (FS, error)
}

// DriverFunc adapts a function to the Driver interface.
type DriverFunc func(ctx context.Context, location string) (FS, error)

func (f DriverFunc) New(ctx context.Context, location string) (FS, error) {
	return f(ctx, location)
}

// Registry maps storage-URI schemes to drivers. Registration is expected
// during setup; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Driver
}

func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Driver)}
}

// Register installs the driver for a URI scheme, replacing any previous
// driver for the same scheme.
func (r *Registry) Register(scheme string, d Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drivers[scheme] = d
}

// Schemes lists the registered schemes.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for s := range r.drivers {
		out = append(out, s)
	}
	return out
}

// New constructs a backend handle for the given storage location, selecting
// the driver by the location's URI scheme.
func (r *Registry) New(ctx context.Context, location string) (FS, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse storage location %q: %w", location, err)
	}
	scheme := u.Scheme
	if scheme == "" {
		// Bare paths are served by the local driver.
		scheme = "file"
	}

	r.mu.RLock()
	d, ok := r.drivers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q for location %q", ErrUnsupportedScheme, scheme, location)
	}

	fsys, err := d.New(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("construct %s backend for %q: %w", scheme, location, err)
	}
	return fsys, nil
}
