// Package outdir prepares and populates the build output directory.
package outdir

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/pathutil"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Clear removes every entry of dir except the names in keep, then returns.
// dir is created when missing. Entries are removed concurrently.
func Clear(ctx context.Context, dir string, keep ...string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return xerrors.Wrapf(err, "create %s", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return xerrors.Wrapf(err, "read %s", dir)
	}

	eg, ctx := errgroup.WithContext(ctx)
	for _, e := range entries {
		if slices.Contains(keep, e.Name()) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := os.RemoveAll(p); err != nil {
				return xerrors.Wrapf(err, "remove %s", p)
			}
			return nil
		})
	}
	return eg.Wait()
}

// Write stores data at root/name, creating parent directories. name is a
// slash-separated artifact path.
func Write(root, name string, data []byte) error {
	if err := pathutil.ArtifactName(name); err != nil {
		return xerrors.WithStack(err)
	}
	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return xerrors.Wrapf(err, "create parent of %s", name)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return xerrors.Wrapf(err, "write %s", name)
	}
	return nil
}

// Copy streams src to root/name and returns the bytes written with their
// SHA-256.
func Copy(src, root, name string) (int64, string, error) {
	if err := pathutil.ArtifactName(name); err != nil {
		return 0, "", xerrors.WithStack(err)
	}
	in, err := os.Open(src)
	if err != nil {
		return 0, "", xerrors.Wrapf(err, "open %s", src)
	}
	defer in.Close()

	p := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, "", xerrors.Wrapf(err, "create parent of %s", name)
	}
	out, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, "", xerrors.Wrapf(err, "create %s", name)
	}

	// the digest is taken over exactly the bytes handed to out
	sum, n, err := contenthash.SumReader(io.TeeReader(in, out))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, "", xerrors.Wrapf(err, "copy %s", name)
	}
	return n, sum, nil
}

// Files lists regular files below dir as sorted slash-separated paths.
func Files(dir string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "list %s", dir)
	}
	return out, nil
}
