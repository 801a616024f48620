package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/version"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// File is one emitted artifact.
type File struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest describes one build. Files are sorted by path and list exactly
// what the archive holds.
type Manifest struct {
	ModulePath        string       `json:"module_path"`
	ModuleSHA256      string       `json:"module_sha256"`
	ServiceWorkerPath string       `json:"service_worker_path"`
	ServiceWorkerHash string       `json:"service_worker_sha256"`
	CacheNamespace    string       `json:"cache_namespace"`
	Archive           File         `json:"archive"`
	BuiltAt           time.Time    `json:"built_at"`
	Version           version.Info `json:"version"`
	Files             []File       `json:"files"`
}

// TotalBytes sums the sizes of Files.
func (m *Manifest) TotalBytes() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

// Lookup returns the entry for path.
func (m *Manifest) Lookup(path string) (File, bool) {
	for _, f := range m.Files {
		if f.Path == path {
			return f, true
		}
	}
	return File{}, false
}

func writeManifest(path string, m *Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return xerrors.Wrap(err, "encode manifest")
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return xerrors.Wrapf(err, "write %s", path)
	}
	return nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, xerrors.Wrapf(err, "decode %s", path)
	}
	return &m, nil
}
