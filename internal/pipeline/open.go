package pipeline

import (
	"path/filepath"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Open loads the build a previous run left in ephemeralDir. The run must
// have written its manifest, and every file it lists must still hash to
// the recorded digest.
func Open(ephemeralDir string) (*Result, error) {
	manifestPath := filepath.Join(ephemeralDir, ManifestName)
	m, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	buildDir := filepath.Join(ephemeralDir, BuildDirName)

	for _, p := range []string{m.ModulePath, m.ServiceWorkerPath, "index.html"} {
		if _, ok := m.Lookup(p); !ok {
			return nil, xerrors.Newf("%s: %q not listed", manifestPath, p)
		}
	}
	for _, f := range m.Files {
		sum, err := contenthash.SumFile(filepath.Join(buildDir, filepath.FromSlash(f.Path)))
		if err != nil {
			return nil, err
		}
		if sum != f.SHA256 {
			return nil, xerrors.Newf("%s changed since the build (sha256 %s, manifest %s)", f.Path, sum, f.SHA256)
		}
	}

	return &Result{
		BuildDir:     buildDir,
		ArchivePath:  filepath.Join(ephemeralDir, m.Archive.Path),
		ManifestPath: manifestPath,
		Manifest:     *m,
	}, nil
}
