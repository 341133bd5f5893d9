package backend

import (
	"context"
	"errors"
	"testing"
)

type nopFS struct{ FS }

func TestRegistrySelectsByScheme(t *testing.T) {
	r := NewRegistry()
	want := &nopFS{}
	r.Register("mem", DriverFunc(func(ctx context.Context, location string) (FS, error) {
		if location != "mem://bucket/data" {
			t.Errorf("driver got location %q", location)
		}
		return want, nil
	}))

	got, err := r.New(context.Background(), "mem://bucket/data")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got != want {
		t.Errorf("New returned %v, want the driver's handle", got)
	}
}

func TestRegistryBarePathUsesFileScheme(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register("file", DriverFunc(func(ctx context.Context, location string) (FS, error) {
		called = true
		return &nopFS{}, nil
	}))

	if _, err := r.New(context.Background(), "/warehouse/fileset1"); err != nil {
		t.Fatalf("New: %v", err)
	}
	if !called {
		t.Error("bare path did not select the file driver")
	}
}

func TestRegistryUnsupportedScheme(t *testing.T) {
	r := NewRegistry()
	_, err := r.New(context.Background(), "ftp://elsewhere/data")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Fatalf("New err = %v, want ErrUnsupportedScheme", err)
	}
}

func TestRegistrySchemes(t *testing.T) {
	r := NewRegistry()
	r.Register("file", DriverFunc(func(ctx context.Context, location string) (FS, error) { return nil, nil }))
	r.Register("s3", DriverFunc(func(ctx context.Context, location string) (FS, error) { return nil, nil }))

	schemes := r.Schemes()
	if len(schemes) != 2 {
		t.Fatalf("Schemes() = %v", schemes)
	}
}
