package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/archive"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/icons"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/version"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

const (
	BuildDirName       = "build"
	ManifestName       = "build-manifest.json"
	DefaultModuleName  = "module.wasm"
	DefaultArchiveName = "build.zip"
	GitIgnoreName      = ".gitignore"
)

// IconGenerator renders one icon set. *icons.Generator satisfies it.
type IconGenerator interface {
	Generate(ctx context.Context, set icons.Set) (*icons.Result, error)
}

// Minifier shrinks emitted text and post-processes generated files.
// *minify.Minifier satisfies it.
type Minifier interface {
	JS(b []byte) ([]byte, error)
	HTML(b []byte) ([]byte, error)
	File(name string, b []byte) ([]byte, error)
}

// Recorder receives build measurements. *metrics.BuildMetrics satisfies it.
type Recorder interface {
	ObserveStage(stage string, d time.Duration, err error)
	SetArtifactBytes(kind string, n int64)
	SetFilesWritten(n int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, time.Duration, error) {}
func (nopRecorder) SetArtifactBytes(string, int64)            {}
func (nopRecorder) SetFilesWritten(int)                       {}

// Inputs is everything a run reads. Nothing else is consulted.
type Inputs struct {
	// ModuleDir holds ModuleName plus the companion files copied verbatim.
	ModuleDir  string
	ModuleName string

	// EphemeralDir is cleared on every run, keeping the names in Keep. The
	// site is written to EphemeralDir/build and the archive beside it.
	EphemeralDir string
	ArchiveName  string
	Keep         []string

	ServiceWorkerTemplate string
	HTMLTemplate          string

	CachePrefix   string
	StoragePrefix string

	Icons    IconGenerator
	Minifier Minifier
	Archiver archive.Archiver
	Metrics  Recorder

	// NewBuster returns the per-build cache buster. Defaults to a random UUID.
	NewBuster func() string
	Now       func() time.Time
	Version   version.Info

	OfflineCheck  bool
	WriteManifest bool
}

func (in Inputs) withDefaults() Inputs {
	if in.ModuleName == "" {
		in.ModuleName = DefaultModuleName
	}
	if in.ArchiveName == "" {
		in.ArchiveName = DefaultArchiveName
	}
	if in.Keep == nil {
		in.Keep = []string{GitIgnoreName}
	}
	if in.Metrics == nil {
		in.Metrics = nopRecorder{}
	}
	if in.NewBuster == nil {
		in.NewBuster = uuid.NewString
	}
	if in.Now == nil {
		in.Now = time.Now
	}
	return in
}

func (in Inputs) validate() error {
	switch {
	case in.ModuleDir == "":
		return xerrors.New("module dir is required")
	case in.EphemeralDir == "":
		return xerrors.New("ephemeral dir is required")
	case in.ServiceWorkerTemplate == "":
		return xerrors.New("service worker template is empty")
	case in.HTMLTemplate == "":
		return xerrors.New("html template is empty")
	case in.CachePrefix == "" || in.StoragePrefix == "":
		return xerrors.New("cache and storage prefixes are required")
	case in.Icons == nil || in.Minifier == nil || in.Archiver == nil:
		return xerrors.New("icons, minifier and archiver are required")
	}
	if in.ArchiveName == BuildDirName || in.ArchiveName == ManifestName {
		return xerrors.Newf("archive name %q collides with build output", in.ArchiveName)
	}
	return nil
}
