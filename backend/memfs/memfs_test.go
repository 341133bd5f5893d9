package memfs

import (
	"context"
	"io"
	"testing"
)

func TestDriverRequiresBucket(t *testing.T) {
	d := NewDriver()
	if _, err := d.New(context.Background(), "mem://"); err == nil {
		t.Fatal("location without a bucket should be rejected")
	}
}

func TestBucketsAreShared(t *testing.T) {
	d := NewDriver()
	ctx := context.Background()

	a, err := d.New(ctx, "mem://bucket/data")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := d.New(ctx, "mem://bucket/other")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	w, err := a.Create(ctx, "mem://bucket/data/a.txt", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	io.WriteString(w, "shared")
	w.Close()

	// Handles onto one bucket see the same content.
	f, err := b.Open(ctx, "mem://bucket/data/a.txt")
	if err != nil {
		t.Fatalf("Open via second handle: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "shared" {
		t.Errorf("content = %q", data)
	}

	// Distinct buckets are isolated.
	other, err := d.New(ctx, "mem://elsewhere/data")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := other.Open(ctx, "mem://elsewhere/data/a.txt"); err == nil {
		t.Error("file leaked across buckets")
	}
}

func TestDeleteSemantics(t *testing.T) {
	d := NewDriver()
	ctx := context.Background()
	fsys, err := d.New(ctx, "mem://bucket/data")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	removed, err := fsys.Delete(ctx, "mem://bucket/data/missing", false)
	if err != nil || removed {
		t.Fatalf("Delete of missing path = %v, %v", removed, err)
	}

	if err := fsys.Mkdirs(ctx, "mem://bucket/data/dir", 0o755); err != nil {
		t.Fatalf("Mkdirs: %v", err)
	}
	w, err := fsys.Create(ctx, "mem://bucket/data/dir/a.txt", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Close()

	if _, err := fsys.Delete(ctx, "mem://bucket/data/dir", false); err == nil {
		t.Error("non-recursive Delete of a non-empty directory should fail")
	}
	removed, err = fsys.Delete(ctx, "mem://bucket/data/dir", true)
	if err != nil || !removed {
		t.Fatalf("recursive Delete = %v, %v", removed, err)
	}
}

func TestListPaths(t *testing.T) {
	d := NewDriver()
	ctx := context.Background()
	fsys, err := d.New(ctx, "mem://bucket/data")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, name := range []string{"a.txt", "b.txt"} {
		w, err := fsys.Create(ctx, "mem://bucket/data/sub/"+name, true)
		if err != nil {
			t.Fatalf("Create %s: %v", name, err)
		}
		w.Close()
	}

	statuses, err := fsys.List(ctx, "mem://bucket/data/sub")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("listed %d entries, want 2", len(statuses))
	}
	for _, st := range statuses {
		if st.Path != "mem://bucket/data/sub/"+st.Name() {
			t.Errorf("listed path = %q", st.Path)
		}
	}
}
