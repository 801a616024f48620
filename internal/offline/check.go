package offline

import (
	"context"
	"io/fs"
	"sync/atomic"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Check installs and activates a worker for cfg against fsys, then confirms
// every precached path is answered from cache without touching the network.
//
// The build runs it over the freshly written output directory, so a precache
// entry that names a file the build did not emit fails the build instead of
// failing in the browser.
func Check(ctx context.Context, fsys fs.FS, cfg Config) error {
	if len(cfg.Precache) == 0 {
		return xerrors.New("offline check: empty precache list")
	}

	var calls atomic.Int64
	backing := FSNetwork{FS: fsys}
	network := NetworkFunc(func(ctx context.Context, key string) (*Response, error) {
		calls.Add(1)
		return backing.Fetch(ctx, key)
	})

	w, err := NewWorker(cfg, NewCacheStorage(), network)
	if err != nil {
		return err
	}
	if err := w.Install(ctx); err != nil {
		return xerrors.Wrap(err, "offline check: install")
	}
	if _, err := w.Activate(ctx); err != nil {
		return xerrors.Wrap(err, "offline check: activate")
	}

	before := calls.Load()
	for _, p := range cfg.Precache {
		resp, err := w.Fetch(ctx, "GET", p)
		if err != nil {
			return xerrors.Wrapf(err, "offline check: fetch %s", p)
		}
		if !resp.OK() {
			return xerrors.Newf("offline check: %s answered %d", p, resp.Status)
		}
	}
	if n := calls.Load() - before; n != 0 {
		return xerrors.Newf("offline check: %d precached requests went to the network", n)
	}
	return nil
}
