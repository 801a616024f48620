// Package icons renders the favicon, home-screen and startup-image sets for
// the web shell from a single source logo, together with the manifests and
// the HTML markup that references them.
package icons

import (
	"context"
	"image"
	"image/color"
	_ "image/gif" // registers the GIF decoder for logo sources
	_ "image/png"
	"io"
	"os"
	"runtime"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// Set picks which family of outputs Generate renders.
type Set int

const (
	// SetIcons covers android, apple touch icons, favicons, windows tiles
	// and the yandex widget.
	SetIcons Set = iota
	// SetLogos covers apple startup images.
	SetLogos
)

func (s Set) String() string {
	switch s {
	case SetIcons:
		return "icons"
	case SetLogos:
		return "logos"
	default:
		return "unknown"
	}
}

// Asset is a generated file, named relative to the output root.
type Asset struct {
	Name     string
	Contents []byte
}

// Result is everything one set produces.
type Result struct {
	Images []Asset
	Files  []Asset
	HTML   []string
}

// Generator renders sets from one decoded source image.
type Generator struct {
	src    image.Image
	cfg    Config
	bg     color.NRGBA
	scaler draw.Scaler
}

// Load decodes a GIF or PNG logo from path. Animated GIFs use their first frame.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Wrapf(err, "open icon source %s", path)
	}
	defer f.Close()
	img, err := Decode(f)
	if err != nil {
		return nil, xerrors.Wrapf(err, "icon source %s", path)
	}
	return img, nil
}

// Decode decodes a GIF or PNG logo.
func Decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, xerrors.Wrap(err, "decode icon source")
	}
	if format != "gif" && format != "png" {
		return nil, xerrors.Newf("icon source format %q not supported", format)
	}
	return img, nil
}

// NewGenerator validates cfg and returns a Generator for src.
func NewGenerator(src image.Image, cfg Config) (*Generator, error) {
	if src == nil {
		return nil, xerrors.New("icons: nil source image")
	}
	if b := src.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, xerrors.New("icons: empty source image")
	}
	bg, err := ParseColor(cfg.Background)
	if err != nil {
		return nil, xerrors.Wrap(err, "icons: background")
	}
	if _, err := ParseColor(cfg.ThemeColor); err != nil {
		return nil, xerrors.Wrap(err, "icons: theme colour")
	}
	var scaler draw.Scaler = draw.CatmullRom
	if cfg.PixelArt {
		scaler = draw.NearestNeighbor
	}
	return &Generator{src: src, cfg: cfg, bg: bg, scaler: scaler}, nil
}

// Generate renders set. Rasters are produced concurrently; the returned
// slices are in a fixed order independent of scheduling.
func (g *Generator) Generate(ctx context.Context, set Set) (*Result, error) {
	switch set {
	case SetIcons:
		return g.icons(ctx)
	case SetLogos:
		return g.logos(ctx)
	default:
		return nil, xerrors.Newf("icons: unknown set %d", int(set))
	}
}

func (g *Generator) rasterize(ctx context.Context, targets []target) ([]Asset, error) {
	out := make([]Asset, len(targets))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, t := range targets {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := encodePNG(render(g.src, t, g.bg, g.scaler))
			if err != nil {
				return xerrors.Wrapf(err, "render %s", t.name)
			}
			out[i] = Asset{Name: t.name, Contents: b}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Generator) icons(ctx context.Context) (*Result, error) {
	var targets []target
	targets = append(targets, androidTargets()...)
	targets = append(targets, appleIconTargets()...)
	nFav := len(targets)
	targets = append(targets, faviconTargets()...)
	targets = append(targets, windowsTargets()...)
	targets = append(targets, yandexTargets()...)

	images, err := g.rasterize(ctx, targets)
	if err != nil {
		return nil, err
	}

	entries := make([]icoEntry, 0, len(faviconSizes))
	for i, s := range faviconSizes {
		entries = append(entries, icoEntry{size: s, png: images[nFav+i].Contents})
	}
	ico, err := encodeICO(entries)
	if err != nil {
		return nil, xerrors.Wrap(err, "favicon.ico")
	}
	images = append(images, Asset{Name: faviconICO, Contents: ico})

	android, err := androidManifestJSON(g.cfg)
	if err != nil {
		return nil, xerrors.Wrap(err, androidManifest)
	}
	yandex, err := yandexManifestJSON(g.cfg)
	if err != nil {
		return nil, xerrors.Wrap(err, yandexManifest)
	}

	var markup []string
	markup = append(markup, androidHTML(g.cfg)...)
	markup = append(markup, appleIconHTML(g.cfg)...)
	markup = append(markup, faviconHTML(g.cfg)...)
	markup = append(markup, windowsHTML(g.cfg)...)
	markup = append(markup, yandexHTML(g.cfg)...)

	return &Result{
		Images: images,
		Files: []Asset{
			{Name: androidManifest, Contents: android},
			{Name: browserConfig, Contents: browserConfigXML(g.cfg)},
			{Name: yandexManifest, Contents: yandex},
		},
		HTML: markup,
	}, nil
}

func (g *Generator) logos(ctx context.Context) (*Result, error) {
	starts := startupTargets(g.cfg.Orientation)
	targets := make([]target, len(starts))
	markup := make([]string, len(starts))
	for i, s := range starts {
		targets[i] = s.target
		markup[i] = startupHTML(g.cfg, s)
	}
	images, err := g.rasterize(ctx, targets)
	if err != nil {
		return nil, err
	}
	return &Result{Images: images, HTML: markup}, nil
}
