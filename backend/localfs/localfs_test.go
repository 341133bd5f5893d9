package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func testFS(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	fsys, err := Driver().New(context.Background(), "file://"+root)
	if err != nil {
		t.Fatalf("Driver().New: %v", err)
	}
	return fsys.(*FS), root
}

func TestDriverRejectsRelativeLocation(t *testing.T) {
	if _, err := Driver().New(context.Background(), "warehouse/fileset1"); err == nil {
		t.Fatal("relative storage location should be rejected")
	}
}

func TestCreateOpenAppend(t *testing.T) {
	fsys, root := testFS(t)
	ctx := context.Background()
	name := "file://" + root + "/sub/dir/data.txt"

	w, err := fsys.Create(ctx, name, false)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	io.WriteString(w, "one\n")
	w.Close()

	// Exclusive create fails once the file exists.
	if _, err := fsys.Create(ctx, name, false); err == nil {
		t.Error("exclusive Create over an existing file should fail")
	}

	a, err := fsys.Append(ctx, name)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	io.WriteString(a, "two\n")
	a.Close()

	f, err := fsys.Open(ctx, name)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("content = %q", data)
	}
}

func TestStatAndList(t *testing.T) {
	fsys, root := testFS(t)
	ctx := context.Background()

	if err := fsys.Mkdirs(ctx, "file://"+root+"/dir", 0o755); err != nil {
		t.Fatalf("Mkdirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "dir", "a.txt"), []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := fsys.Stat(ctx, "file://"+root+"/dir/a.txt")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if st.IsDir() || st.Size != 3 || st.Name() != "a.txt" {
		t.Errorf("status = %+v", st)
	}
	if st.Path != "file://"+root+"/dir/a.txt" {
		t.Errorf("status path = %q", st.Path)
	}

	statuses, err := fsys.List(ctx, "file://"+root+"/dir")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(statuses) != 1 || statuses[0].Name() != "a.txt" {
		t.Errorf("listed %+v", statuses)
	}
}

func TestRenameAndDelete(t *testing.T) {
	fsys, root := testFS(t)
	ctx := context.Background()

	w, err := fsys.Create(ctx, "file://"+root+"/a.txt", true)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w.Close()

	if err := fsys.Rename(ctx, "file://"+root+"/a.txt", "file://"+root+"/b.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "b.txt")); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}

	removed, err := fsys.Delete(ctx, "file://"+root+"/b.txt", false)
	if err != nil || !removed {
		t.Fatalf("Delete = %v, %v", removed, err)
	}
	removed, err = fsys.Delete(ctx, "file://"+root+"/b.txt", false)
	if err != nil || removed {
		t.Fatalf("Delete of missing file = %v, %v", removed, err)
	}

	// Non-empty directories need recursive.
	if err := fsys.Mkdirs(ctx, "file://"+root+"/dir/inner", 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := fsys.Delete(ctx, "file://"+root+"/dir", false); err == nil {
		t.Error("non-recursive Delete of a non-empty directory should fail")
	}
	removed, err = fsys.Delete(ctx, "file://"+root+"/dir", true)
	if err != nil || !removed {
		t.Fatalf("recursive Delete = %v, %v", removed, err)
	}
}
