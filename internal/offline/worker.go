package offline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync/atomic"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// State is the lifecycle phase of a Worker.
type State int32

const (
	StateInstalling State = iota
	StateActive
	StateUpdating
)

func (s State) String() string {
	switch s {
	case StateInstalling:
		return "installing"
	case StateActive:
		return "active"
	case StateUpdating:
		return "updating"
	default:
		return "unknown"
	}
}

var (
	// ErrNotActive is returned by Fetch before the first activation.
	ErrNotActive = errors.New("offline: worker is not active")
	// ErrWrongState is returned when a transition is not valid from the
	// current state.
	ErrWrongState = errors.New("offline: invalid state transition")
)

// PrecacheError reports a precache entry that did not resolve to a 2xx.
type PrecacheError struct {
	Key    string
	Status int
}

func (e *PrecacheError) Error() string {
	return fmt.Sprintf("precache %s: status %d", e.Key, e.Status)
}

// Namespace joins a cache prefix and a per-build buster.
func Namespace(prefix, buster string) string {
	return prefix + "-" + buster
}

// Key normalizes an asset path into the cache key used for lookups.
// Relative paths resolve against the worker scope "/".
func Key(p string) string {
	q := ""
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p, q = p[:i], p[i:]
	}
	return path.Clean("/"+p) + q
}

// Config describes one build generation of the handler.
type Config struct {
	Prefix   string
	Buster   string
	Precache []string
}

// Worker is one offline cache handler instance. Install, Activate and Update
// are driven by a single caller; Fetch may be called concurrently once active.
type Worker struct {
	storage *CacheStorage
	network Network

	prefix    string
	namespace atomic.Pointer[string] // generation being installed or activated
	serving   atomic.Pointer[string] // generation answering fetches
	precache  []string
	state     atomic.Int32
}

// NewWorker returns a worker in StateInstalling.
func NewWorker(cfg Config, storage *CacheStorage, network Network) (*Worker, error) {
	if cfg.Prefix == "" || cfg.Buster == "" {
		return nil, xerrors.New("offline: prefix and buster are required")
	}
	if storage == nil || network == nil {
		return nil, xerrors.New("offline: storage and network are required")
	}
	w := &Worker{
		storage:  storage,
		network:  network,
		prefix:   cfg.Prefix,
		precache: normalize(cfg.Precache),
	}
	ns := Namespace(cfg.Prefix, cfg.Buster)
	w.namespace.Store(&ns)
	w.state.Store(int32(StateInstalling))
	return w, nil
}

func normalize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, Key(p))
	}
	return out
}

// State returns the current lifecycle phase.
func (w *Worker) State() State { return State(w.state.Load()) }

// Namespace returns the bucket name of the generation being installed, or of
// the active one once activation completed.
func (w *Worker) Namespace() string { return *w.namespace.Load() }

// Serving returns the bucket name fetches are answered from, or "" before the
// first activation.
func (w *Worker) Serving() string {
	if p := w.serving.Load(); p != nil {
		return *p
	}
	return ""
}

// Install opens the namespace bucket and fills it with every precache path.
// Like Cache.addAll it is all-or-nothing: entries are only stored after every
// fetch succeeded with a 2xx.
func (w *Worker) Install(ctx context.Context) error {
	if s := w.State(); s != StateInstalling && s != StateUpdating {
		return xerrors.Wrapf(ErrWrongState, "install from %s", s)
	}

	fetched := make([]*Response, len(w.precache))
	for i, key := range w.precache {
		resp, err := w.network.Fetch(ctx, key)
		if err != nil {
			return xerrors.Wrapf(err, "precache %s", key)
		}
		if !resp.OK() {
			return xerrors.WithStack(&PrecacheError{Key: key, Status: resp.Status})
		}
		fetched[i] = resp
	}

	bucket := w.storage.Open(w.Namespace())
	for i, key := range w.precache {
		bucket.Put(key, fetched[i])
	}
	// skip waiting: activation follows immediately, whatever clients are open
	return nil
}

// Activate purges every bucket that shares the prefix but is not the current
// namespace, then starts serving. It returns the deleted bucket names.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	if s := w.State(); s != StateInstalling && s != StateUpdating {
		return nil, xerrors.Wrapf(ErrWrongState, "activate from %s", s)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	current := w.Namespace()
	match := w.prefix + "-"
	var purged []string
	for _, name := range w.storage.Keys() {
		if strings.HasPrefix(name, match) && name != current {
			if w.storage.Delete(name) {
				purged = append(purged, name)
			}
		}
	}
	w.serving.Store(&current)
	w.state.Store(int32(StateActive))
	return purged, nil
}

// Update moves an active worker to a new generation. The old namespace keeps
// serving until the following Install and Activate complete.
func (w *Worker) Update(buster string, precache []string) error {
	if buster == "" {
		return xerrors.New("offline: buster is required")
	}
	if !w.state.CompareAndSwap(int32(StateActive), int32(StateUpdating)) {
		return xerrors.Wrapf(ErrWrongState, "update from %s", w.State())
	}
	w.precache = normalize(precache)
	ns := Namespace(w.prefix, buster)
	w.namespace.Store(&ns)
	return nil
}

// Fetch answers a request cache-first. A miss goes to the network exactly
// once and successful responses are stored for later requests. Only GET is
// cached; every other method goes straight to the network.
func (w *Worker) Fetch(ctx context.Context, method, url string) (*Response, error) {
	serving := w.Serving()
	if serving == "" {
		return nil, ErrNotActive
	}
	key := Key(url)
	if method != "" && method != http.MethodGet {
		return w.network.Fetch(ctx, key)
	}

	bucket := w.storage.Open(serving)
	if cached, ok := bucket.Match(key); ok {
		return cached, nil
	}

	resp, err := w.network.Fetch(ctx, key)
	if err != nil {
		return nil, xerrors.Wrapf(err, "fetch %s", key)
	}
	if resp.OK() {
		bucket.Put(key, resp)
	}
	return resp, nil
}
