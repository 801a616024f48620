package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer r.Close()
	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		out[f.Name] = string(b)
	}
	return out
}

// ---------------------------------------------------------------------------
// New
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	a, err := New("", "")
	if err != nil || a.Name() != KindBuiltin {
		t.Fatalf("default: %v, %v", a, err)
	}
	a, err = New(Kind7za, "/usr/bin/7za")
	if err != nil || a.Name() != Kind7za {
		t.Fatalf("7za: %v, %v", a, err)
	}
	if _, err := New(Kind7za, ""); err == nil {
		t.Fatal("7za without a path should fail")
	}
	if _, err := New("tar", ""); err == nil {
		t.Fatal("unknown kind should fail")
	}
}

// ---------------------------------------------------------------------------
// Zip
// ---------------------------------------------------------------------------

func TestZip_Contents(t *testing.T) {
	files := map[string]string{
		"index.html":        "<!doctype html>",
		"module-abc.wasm":   strings.Repeat("\x00asm", 500),
		"icons/favicon.ico": "ico",
	}
	dir := writeTree(t, files)
	dest := filepath.Join(t.TempDir(), "build.zip")

	if err := (&Zip{}).Archive(context.Background(), dir, dest); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if diff := cmp.Diff(files, readZip(t, dest)); diff != "" {
		t.Fatalf("archive contents mismatch (-want +got):\n%s", diff)
	}
}

func TestZip_Deterministic(t *testing.T) {
	dir := writeTree(t, map[string]string{"a.txt": "alpha", "b/c.txt": "gamma"})
	out := t.TempDir()
	a := filepath.Join(out, "a.zip")
	b := filepath.Join(out, "b.zip")

	if err := (&Zip{}).Archive(context.Background(), dir, a); err != nil {
		t.Fatal(err)
	}
	// touch the sources so only mtimes differ
	later := epoch.AddDate(40, 0, 0)
	if err := os.Chtimes(filepath.Join(dir, "a.txt"), later, later); err != nil {
		t.Fatal(err)
	}
	if err := (&Zip{}).Archive(context.Background(), dir, b); err != nil {
		t.Fatal(err)
	}

	ab, _ := os.ReadFile(a)
	bb, _ := os.ReadFile(b)
	if !bytes.Equal(ab, bb) {
		t.Fatal("archives of identical trees differ")
	}
}

func TestZip_SortedEntries(t *testing.T) {
	dir := writeTree(t, map[string]string{"z": "1", "a": "2", "m/x": "3"})
	dest := filepath.Join(t.TempDir(), "s.zip")
	if err := (&Zip{}).Archive(context.Background(), dir, dest); err != nil {
		t.Fatal(err)
	}
	r, err := zip.OpenReader(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
		if f.Method != zip.Deflate {
			t.Errorf("%s method = %d, want deflate", f.Name, f.Method)
		}
	}
	if diff := cmp.Diff([]string{"a", "m/x", "z"}, names); diff != "" {
		t.Fatalf("entry order (-want +got):\n%s", diff)
	}
}

func TestZip_RejectsDestInsideDir(t *testing.T) {
	dir := writeTree(t, map[string]string{"a": "1"})
	if err := (&Zip{}).Archive(context.Background(), dir, filepath.Join(dir, "self.zip")); err == nil {
		t.Fatal("expected error for archive inside its own source")
	}
}

func TestZip_MissingDir(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "x.zip")
	err := (&Zip{}).Archive(context.Background(), filepath.Join(t.TempDir(), "nope"), dest)
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
	if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("failed archive should not leave a file behind")
	}
}

func TestZip_Canceled(t *testing.T) {
	dir := writeTree(t, map[string]string{"a": "1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := (&Zip{}).Archive(ctx, dir, filepath.Join(t.TempDir(), "x.zip"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// Exec
// ---------------------------------------------------------------------------

func TestExec_Args(t *testing.T) {
	got := (&Exec{Path: "7za"}).Args(filepath.Join("ephemeral", "build"), filepath.Join("ephemeral", "build.zip"))
	want := []string{"a", "-mm=Deflate", "-mfb=258", "-mpass=15", "-r",
		filepath.Join("ephemeral", "build.zip"), filepath.Join("ephemeral", "build", "*")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("args (-want +got):\n%s", diff)
	}
}

// fakeTool writes a shell script without execute bits. It records its
// arguments next to itself and exits with code.
func fakeTool(t *testing.T, code string) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	dir := t.TempDir()
	bin = filepath.Join(dir, "7za")
	argsFile = filepath.Join(dir, "args")
	script := "#!/bin/sh\nprintf '%s\\n' \"$@\" > '" + argsFile + "'\necho 'boom from tool' >&2\nexit " + code + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	return bin, argsFile
}

func TestExec_FixesPermissionsAndRuns(t *testing.T) {
	bin, argsFile := fakeTool(t, "0")

	err := (&Exec{Path: bin}).Archive(context.Background(), "/out/build", "/out/build.zip")
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}

	info, err := os.Stat(bin)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&executeBits != executeBits {
		t.Fatalf("mode = %v, want execute bits set", info.Mode())
	}

	got, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatal(err)
	}
	want := "a\n-mm=Deflate\n-mfb=258\n-mpass=15\n-r\n/out/build.zip\n/out/build/*\n"
	if string(got) != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestExec_NonZeroExitIsFatal(t *testing.T) {
	bin, _ := fakeTool(t, "2")

	err := (&Exec{Path: bin}).Archive(context.Background(), "/out/build", "/out/build.zip")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want *ExitError", err)
	}
	if exitErr.Code != 2 {
		t.Errorf("code = %d, want 2", exitErr.Code)
	}
	if exitErr.Stderr != "boom from tool" {
		t.Errorf("stderr = %q", exitErr.Stderr)
	}
	if !strings.Contains(err.Error(), "exit code 2") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestExec_MissingBinary(t *testing.T) {
	err := (&Exec{Path: filepath.Join(t.TempDir(), "7za")}).Archive(context.Background(), "a", "b")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want ErrNotExist", err)
	}
}

func TestEnsureExecutable_LeavesExecutableAlone(t *testing.T) {
	p := filepath.Join(t.TempDir(), "tool")
	if err := os.WriteFile(p, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ensureExecutable(p); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(p)
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("mode changed to %v", info.Mode().Perm())
	}
}
