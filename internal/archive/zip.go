package archive

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// epoch is the earliest timestamp a zip header can express. Every entry gets
// it so identical trees produce identical archives.
var epoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Zip writes archives in-process at maximum deflate effort.
type Zip struct{}

func (z *Zip) Name() string { return KindBuiltin }

// Archive writes dest atomically: entries go to a temp file beside dest which
// is renamed into place on success.
func (z *Zip) Archive(ctx context.Context, dir, dest string) error {
	if rel, err := filepath.Rel(dir, dest); err == nil && filepath.IsLocal(rel) {
		return xerrors.Newf("archive %s would be written inside %s", dest, dir)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".archive-*")
	if err != nil {
		return xerrors.Wrap(err, "create temp archive")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := writeZip(ctx, tmp, dir); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Wrap(err, "close temp archive")
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return xerrors.Wrapf(err, "rename archive to %s", dest)
	}
	return nil
}

func writeZip(ctx context.Context, w io.Writer, dir string) error {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	// WalkDir visits entries in lexical order
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		return addFile(zw, p, filepath.ToSlash(rel))
	})
	if err != nil {
		return xerrors.Wrapf(err, "archive %s", dir)
	}
	if err := zw.Close(); err != nil {
		return xerrors.Wrap(err, "finish zip")
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: epoch,
	}
	hdr.SetMode(0o644)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}
