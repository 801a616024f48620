// Package archive bundles a finished output directory into a single zip.
//
// Two implementations exist: Exec drives a 7za-compatible binary with fixed
// deflate settings, and Zip writes a deterministic archive in-process.
package archive

import (
	"context"
	"fmt"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Archiver packs every file under dir into the archive at dest.
type Archiver interface {
	Archive(ctx context.Context, dir, dest string) error
	Name() string
}

const (
	KindBuiltin = "builtin"
	Kind7za     = "7za"
)

// New returns the archiver for kind. binPath is only used by Kind7za.
func New(kind, binPath string) (Archiver, error) {
	switch kind {
	case KindBuiltin, "":
		return &Zip{}, nil
	case Kind7za:
		if binPath == "" {
			return nil, xerrors.New("7za archiver requires a binary path")
		}
		return &Exec{Path: binPath}, nil
	default:
		return nil, xerrors.Newf("unknown archiver %q", kind)
	}
}

// ExitError reports a non-zero exit from an external archiver.
type ExitError struct {
	Tool   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("failed to zip; %s exit code %d", e.Tool, e.Code)
	}
	return fmt.Sprintf("failed to zip; %s exit code %d: %s", e.Tool, e.Code, e.Stderr)
}
