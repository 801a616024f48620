package outdir

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
)

func TestClear_KeepsListedEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".gitignore", "build.zip", "stale.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "build", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "build", "deep", "x"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Clear(context.Background(), dir, ".gitignore"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{".gitignore"}, names); diff != "" {
		t.Fatalf("remaining (-want +got):\n%s", diff)
	}
}

func TestClear_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ephemeral")
	if err := Clear(context.Background(), dir); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("dir not created: %v", err)
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	if err := Write(root, "icons/favicon.ico", []byte("ico")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "icons", "favicon.ico"))
	if err != nil || string(got) != "ico" {
		t.Fatalf("read back %q, %v", got, err)
	}

	for _, bad := range []string{"../escape", "/abs", ""} {
		if err := Write(root, bad, nil); err == nil {
			t.Errorf("Write(%q) should fail", bad)
		}
	}
}

func TestCopy_ReturnsHash(t *testing.T) {
	src := filepath.Join(t.TempDir(), "module.wasm")
	data := []byte("\x00asm\x01\x00\x00\x00")
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	n, sum, err := Copy(src, root, "module-x.wasm")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if n != int64(len(data)) || sum != contenthash.Sum(data) {
		t.Fatalf("Copy = %d, %s", n, sum)
	}
	got, _ := os.ReadFile(filepath.Join(root, "module-x.wasm"))
	if string(got) != string(data) {
		t.Fatal("copied bytes differ")
	}
}

func TestCopy_HashMatchesDestination(t *testing.T) {
	src := filepath.Join(t.TempDir(), "level.pak")
	data := bytes.Repeat([]byte("\x00asm-level-data"), 64<<10) // several copy buffers
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}
	root := t.TempDir()
	n, sum, err := Copy(src, root, "levels/level.pak")
	if err != nil {
		t.Fatalf("Copy: %v", err)
	}
	onDisk, err := contenthash.SumFile(filepath.Join(root, "levels", "level.pak"))
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(data)) || sum != onDisk {
		t.Fatalf("Copy = %d, %s; destination hashes to %s", n, sum, onDisk)
	}
}

func TestCopy_MissingSource(t *testing.T) {
	_, _, err := Copy(filepath.Join(t.TempDir(), "nope"), t.TempDir(), "x")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v", err)
	}
}

func TestFiles_Sorted(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"z.js", "a/b.png", "index.html"} {
		if err := Write(root, n, nil); err != nil {
			t.Fatal(err)
		}
	}
	got, err := Files(root)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a/b.png", "index.html", "z.js"}, got); diff != "" {
		t.Fatalf("files (-want +got):\n%s", diff)
	}
}
