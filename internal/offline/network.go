package offline

import (
	"context"
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Network fetches a request key from the origin. A returned error is a
// network failure; HTTP error statuses come back as a Response.
type Network interface {
	Fetch(ctx context.Context, key string) (*Response, error)
}

// NetworkFunc adapts a function to Network.
type NetworkFunc func(ctx context.Context, key string) (*Response, error)

func (f NetworkFunc) Fetch(ctx context.Context, key string) (*Response, error) {
	return f(ctx, key)
}

// FSNetwork serves keys from a file tree the way a static host would:
// "/" maps to index.html and missing files are 404s.
type FSNetwork struct {
	FS fs.FS
}

func (n FSNetwork) Fetch(ctx context.Context, key string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(key, "/")
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "" || strings.HasSuffix(name, "/") {
		name += "index.html"
	}
	if !fs.ValidPath(name) {
		return &Response{Status: http.StatusBadRequest, Header: http.Header{}}, nil
	}

	body, err := fs.ReadFile(n.FS, name)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &Response{Status: http.StatusNotFound, Header: http.Header{}}, nil
	case err != nil:
		// a directory without index.html reads as an error too
		if info, statErr := fs.Stat(n.FS, name); statErr == nil && info.IsDir() {
			return &Response{Status: http.StatusNotFound, Header: http.Header{}}, nil
		}
		return nil, xerrors.Wrapf(err, "fetch %s", key)
	}

	h := http.Header{}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		h.Set("Content-Type", ct)
	}
	return &Response{Status: http.StatusOK, Header: h, Body: body}, nil
}
