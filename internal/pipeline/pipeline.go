package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/contenthash"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/icons"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/inject"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/offline"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/outdir"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/webassets"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Result is what a successful run produced.
type Result struct {
	BuildDir     string
	ArchivePath  string
	ManifestPath string // empty unless Inputs.WriteManifest
	Buster       string
	Manifest     Manifest
}

// ModuleHash and CacheNamespace let a Result label preview responses.
func (r *Result) ModuleHash() string     { return r.Manifest.ModuleSHA256 }
func (r *Result) CacheNamespace() string { return r.Manifest.CacheNamespace }

// run carries the intermediate values between stages. Each field is written
// by exactly one stage and read only by later ones.
type run struct {
	in       Inputs
	L        log.Logger
	buildDir string

	moduleHash string
	iconSet    *icons.Result
	logoSet    *icons.Result

	buster    string
	namespace string

	modulePath string
	swPath     string
	swHash     string
	swSource   string // injected, before minification
	sw         []byte
	htmlSource string
	html       []byte

	mu    sync.Mutex
	files []File
}

// Run executes one build.
func Run(ctx context.Context, in Inputs) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, xerrors.Wrap(err, "pipeline inputs")
	}
	in = in.withDefaults()

	r := &run{
		in:       in,
		L:        log.FromContext(ctx),
		buildDir: filepath.Join(in.EphemeralDir, BuildDirName),
	}

	ctx, end := otelx.Stage(ctx, "build", attribute.String("webbuild.ephemeral_dir", in.EphemeralDir))
	res, err := r.exec(ctx)
	end(err)
	return res, err
}

func (r *run) exec(ctx context.Context) (*Result, error) {
	if err := r.stage(ctx, StageClear, r.clear); err != nil {
		return nil, err
	}

	// module hash and icon sets are independent; everything after needs both
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.stage(gctx, StageHashModule, r.hashModule) })
	g.Go(func() error { return r.stage(gctx, StageIcons, r.generateIcons) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{StageServiceWorker, r.serviceWorker},
		{StageHTML, r.index},
		{StageWrite, r.write},
		{StageOfflineCheck, r.offlineCheck},
	}
	for _, s := range steps {
		if s.name == StageOfflineCheck && !r.in.OfflineCheck {
			r.L.Warn(ctx, "offline check disabled")
			continue
		}
		if err := r.stage(ctx, s.name, s.fn); err != nil {
			return nil, err
		}
	}

	res := &Result{
		BuildDir:    r.buildDir,
		ArchivePath: filepath.Join(r.in.EphemeralDir, r.in.ArchiveName),
		Buster:      r.buster,
	}
	if err := r.stage(ctx, StageArchive, func(ctx context.Context) error {
		return r.archive(ctx, res)
	}); err != nil {
		return nil, err
	}

	if r.in.WriteManifest {
		res.ManifestPath = filepath.Join(r.in.EphemeralDir, ManifestName)
		if err := r.stage(ctx, StageManifest, func(context.Context) error {
			return writeManifest(res.ManifestPath, &res.Manifest)
		}); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// stage runs fn as one named step: a span, a duration observation, a log
// line, and a *StageError on failure.
func (r *run) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: name, Err: xerrors.WithStack(err)}
	}

	start := time.Now()
	ctx, end := otelx.Stage(ctx, name)
	err := fn(ctx)
	end(err)
	d := time.Since(start)
	r.in.Metrics.ObserveStage(name, d, err)

	if err != nil {
		return &StageError{Stage: name, Err: xerrors.EnsureTrace(err)}
	}
	r.L.Info(ctx, "stage complete", "stage", name, "duration", d.Round(time.Millisecond).String())
	return nil
}

func (r *run) clear(ctx context.Context) error {
	if err := outdir.Clear(ctx, r.in.EphemeralDir, r.in.Keep...); err != nil {
		return err
	}
	if err := os.MkdirAll(r.buildDir, 0o755); err != nil {
		return xerrors.Wrapf(err, "create %s", r.buildDir)
	}
	return nil
}

func (r *run) hashModule(context.Context) error {
	p := filepath.Join(r.in.ModuleDir, r.in.ModuleName)
	f, err := os.Open(p)
	if err != nil {
		return xerrors.Wrapf(err, "open module %s", p)
	}
	defer f.Close()

	sum, n, err := contenthash.SumReader(f)
	if err != nil {
		return xerrors.Wrapf(err, "hash module %s", p)
	}
	r.moduleHash = sum
	r.modulePath = contenthash.Name("module", sum, ".wasm")
	r.in.Metrics.SetArtifactBytes("module", n)
	return nil
}

func (r *run) generateIcons(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.in.Icons.Generate(ctx, icons.SetIcons)
		if err != nil {
			return xerrors.Wrap(err, "generate icons")
		}
		r.iconSet = res
		return nil
	})
	g.Go(func() error {
		res, err := r.in.Icons.Generate(ctx, icons.SetLogos)
		if err != nil {
			return xerrors.Wrap(err, "generate logos")
		}
		r.logoSet = res
		return nil
	})
	return g.Wait()
}

func (r *run) serviceWorker(context.Context) error {
	r.buster = r.in.NewBuster()
	if r.buster == "" {
		return xerrors.New("empty cache buster")
	}
	r.namespace = offline.Namespace(r.in.CachePrefix, r.buster)

	r.swSource = inject.Apply(r.in.ServiceWorkerTemplate,
		inject.ReplaceAll(webassets.TokenModulePath, r.modulePath),
		inject.ReplaceAll(webassets.TokenCachePrefix, r.in.CachePrefix),
		inject.ReplaceAll(webassets.TokenCacheBuster, r.buster),
	)
	js, err := r.in.Minifier.JS([]byte(r.swSource))
	if err != nil {
		return xerrors.Wrap(err, "minify service worker")
	}
	r.sw = js
	r.swHash = contenthash.Sum(js)
	r.swPath = contenthash.Name("service-worker", r.swHash, ".js")
	r.in.Metrics.SetArtifactBytes("service_worker", int64(len(js)))
	return nil
}

// markup is the logo set's HTML followed by the icon set's.
func (r *run) markup() string {
	var b strings.Builder
	for _, set := range []*icons.Result{r.logoSet, r.iconSet} {
		for _, h := range set.HTML {
			b.WriteString(h)
		}
	}
	return b.String()
}

func (r *run) index(context.Context) error {
	r.htmlSource = inject.Apply(r.in.HTMLTemplate,
		inject.ReplaceFirst(webassets.TokenFavicons, r.markup()),
		inject.ReplaceFirst(webassets.TokenModulePath, r.modulePath),
		inject.ReplaceFirst(webassets.TokenServiceWorker, r.swPath),
		inject.ReplaceAll(webassets.TokenStoragePrefix, r.in.StoragePrefix),
	)
	page, err := r.in.Minifier.HTML([]byte(r.htmlSource))
	if err != nil {
		return xerrors.Wrap(err, "minify html")
	}
	r.html = page
	r.in.Metrics.SetArtifactBytes("html", int64(len(page)))
	return nil
}

// output is one file of the site: either bytes in memory or a file to
// stream from src.
type output struct {
	name string
	data []byte
	src  string
	post bool // run through Minifier.File before writing
}

func (r *run) plan(ctx context.Context) ([]output, error) {
	outs := []output{
		{name: r.modulePath, src: filepath.Join(r.in.ModuleDir, r.in.ModuleName)},
		{name: r.swPath, data: r.sw},
		{name: webassets.IndexName, data: r.html},
	}

	entries, err := os.ReadDir(r.in.ModuleDir)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read module dir %s", r.in.ModuleDir)
	}
	for _, e := range entries {
		if e.Name() == r.in.ModuleName {
			continue
		}
		if !e.Type().IsRegular() {
			r.L.Debug(ctx, "skipping non-regular companion entry", "name", e.Name())
			continue
		}
		outs = append(outs, output{name: e.Name(), src: filepath.Join(r.in.ModuleDir, e.Name())})
	}

	for _, set := range []*icons.Result{r.iconSet, r.logoSet} {
		for _, a := range slices.Concat(set.Images, set.Files) {
			outs = append(outs, output{name: a.Name, data: a.Contents, post: true})
		}
	}

	seen := make(map[string]bool, len(outs))
	for _, o := range outs {
		if seen[o.name] {
			return nil, xerrors.Newf("output %s is produced twice", o.name)
		}
		seen[o.name] = true
	}
	return outs, nil
}

func (r *run) write(ctx context.Context) error {
	outs, err := r.plan(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, o := range outs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return r.writeOne(o)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slices.SortFunc(r.files, func(a, b File) int { return strings.Compare(a.Path, b.Path) })
	r.in.Metrics.SetFilesWritten(len(r.files))
	return nil
}

func (r *run) writeOne(o output) error {
	if o.src != "" {
		n, sum, err := outdir.Copy(o.src, r.buildDir, o.name)
		if err != nil {
			return err
		}
		if o.name == r.modulePath && !contenthash.Equal(sum, r.moduleHash) {
			return xerrors.Newf("module %s changed during the build", o.src)
		}
		r.record(File{Path: o.name, SHA256: sum, Size: n})
		return nil
	}

	data := o.data
	if o.post {
		var err error
		if data, err = r.in.Minifier.File(o.name, data); err != nil {
			return err
		}
	}
	if err := outdir.Write(r.buildDir, o.name, data); err != nil {
		return err
	}
	r.record(File{Path: o.name, SHA256: contenthash.Sum(data), Size: int64(len(data))})
	return nil
}

func (r *run) record(f File) {
	r.mu.Lock()
	r.files = append(r.files, f)
	r.mu.Unlock()
}

// offlineCheck fails the build when a placeholder survived injection or when
// the precache list names something the output does not serve.
func (r *run) offlineCheck(ctx context.Context) error {
	tokens := webassets.Tokens()
	if left := inject.Remaining(r.swSource, tokens...); left != nil {
		return xerrors.Newf("service worker still contains %s", strings.Join(left, ", "))
	}
	if left := inject.Remaining(r.htmlSource, tokens...); left != nil {
		return xerrors.Newf("%s still contains %s", webassets.IndexName, strings.Join(left, ", "))
	}
	return offline.Check(ctx, os.DirFS(r.buildDir), offline.Config{
		Prefix:   r.in.CachePrefix,
		Buster:   r.buster,
		Precache: []string{r.modulePath},
	})
}

func (r *run) archive(ctx context.Context, res *Result) error {
	if err := r.in.Archiver.Archive(ctx, r.buildDir, res.ArchivePath); err != nil {
		return xerrors.Wrapf(err, "archive with %s", r.in.Archiver.Name())
	}

	f, err := os.Open(res.ArchivePath)
	if err != nil {
		return xerrors.Wrapf(err, "open archive %s", res.ArchivePath)
	}
	defer f.Close()
	sum, n, err := contenthash.SumReader(f)
	if err != nil {
		return xerrors.Wrapf(err, "hash archive %s", res.ArchivePath)
	}
	r.in.Metrics.SetArtifactBytes("archive", n)

	res.Manifest = Manifest{
		ModulePath:        r.modulePath,
		ModuleSHA256:      r.moduleHash,
		ServiceWorkerPath: r.swPath,
		ServiceWorkerHash: r.swHash,
		CacheNamespace:    r.namespace,
		Archive:           File{Path: r.in.ArchiveName, SHA256: sum, Size: n},
		BuiltAt:           r.in.Now().UTC(),
		Version:           r.in.Version,
		Files:             r.files,
	}
	return nil
}
