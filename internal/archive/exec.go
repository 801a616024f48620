package archive

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// executeBits is u+x, g+x and o+x.
const executeBits os.FileMode = 0o111

// Exec runs a 7za-compatible archiver.
type Exec struct {
	Path string
}

func (e *Exec) Name() string { return Kind7za }

// Args returns the argument vector passed to the tool. The trailing wildcard
// is expanded by the tool itself, not by a shell.
func (e *Exec) Args(dir, dest string) []string {
	return []string{
		"a",
		"-mm=Deflate",
		"-mfb=258",
		"-mpass=15",
		"-r",
		dest,
		filepath.Join(dir, "*"),
	}
}

// Archive makes sure the tool is executable, then runs it. A non-zero exit is
// returned as *ExitError.
func (e *Exec) Archive(ctx context.Context, dir, dest string) error {
	if err := ensureExecutable(e.Path); err != nil {
		return err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, e.Args(dir, dest)...)
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return xerrors.WithStack(&ExitError{
			Tool:   filepath.Base(e.Path),
			Code:   exitErr.ExitCode(),
			Stderr: strings.TrimSpace(stderr.String()),
		})
	}
	if ctx.Err() != nil {
		return xerrors.Wrap(ctx.Err(), "archiver interrupted")
	}
	return xerrors.Wrapf(err, "run %s", e.Path)
}

// ensureExecutable sets every execute bit on path when any is missing. Some
// package managers unpack bundled binaries without them.
func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return xerrors.Wrapf(err, "stat archiver %s", path)
	}
	mode := info.Mode().Perm()
	if mode&executeBits == executeBits {
		return nil
	}
	if err := os.Chmod(path, mode|executeBits); err != nil {
		return xerrors.Wrapf(err, "chmod archiver %s", path)
	}
	return nil
}
