package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func buildWithManifest(t *testing.T) (*fixture, *Result) {
	t.Helper()
	f := newFixture(t)
	f.in.WriteManifest = true
	res, err := Run(context.Background(), f.in)
	if err != nil {
		t.Fatal(err)
	}
	return f, res
}

func TestOpen_PreviousBuild(t *testing.T) {
	f, res := buildWithManifest(t)

	got, err := Open(f.ephemeral)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got.BuildDir != res.BuildDir || got.ArchivePath != res.ArchivePath || got.ManifestPath != res.ManifestPath {
		t.Fatalf("paths: got %+v want %+v", got, res)
	}
	if diff := cmp.Diff(res.Manifest, got.Manifest); diff != "" {
		t.Fatalf("manifest (-want +got):\n%s", diff)
	}
	if got.ModuleHash() != res.ModuleHash() || got.CacheNamespace() != res.CacheNamespace() {
		t.Fatal("preview labels differ from the build")
	}
}

func TestOpen_TamperedFile(t *testing.T) {
	f, res := buildWithManifest(t)
	mustWrite(t, filepath.Join(res.BuildDir, "index.html"), []byte("<p>edited</p>"))

	_, err := Open(f.ephemeral)
	if err == nil || !strings.Contains(err.Error(), "index.html changed") {
		t.Fatalf("want changed-file error, got %v", err)
	}
}

func TestOpen_DeletedFile(t *testing.T) {
	f, res := buildWithManifest(t)
	if err := os.Remove(filepath.Join(res.BuildDir, res.Manifest.ServiceWorkerPath)); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(f.ephemeral); err == nil {
		t.Fatal("want error for a missing build file")
	}
}

func TestOpen_ManifestMissingModule(t *testing.T) {
	f, res := buildWithManifest(t)
	m := res.Manifest
	var kept []File
	for _, e := range m.Files {
		if e.Path != m.ModulePath {
			kept = append(kept, e)
		}
	}
	m.Files = kept
	if err := writeManifest(res.ManifestPath, &m); err != nil {
		t.Fatal(err)
	}

	_, err := Open(f.ephemeral)
	if err == nil || !strings.Contains(err.Error(), "not listed") {
		t.Fatalf("want not-listed error, got %v", err)
	}
}

func TestOpen_NoManifest(t *testing.T) {
	f := newFixture(t)
	if _, err := Run(context.Background(), f.in); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(f.ephemeral); err == nil {
		t.Fatal("want error when the build wrote no manifest")
	}
}
