package icons

import "fmt"

// target is one raster output.
type target struct {
	name    string
	w, h    int
	opaque  bool    // flatten onto the background colour
	padding float64 // fraction of the shorter side left empty around the logo
}

func sq(prefix string, size int) target {
	return target{name: fmt.Sprintf("%s-%dx%d.png", prefix, size, size), w: size, h: size}
}

var (
	androidSizes    = []int{36, 48, 72, 96, 144, 192, 256, 384, 512}
	appleIconSizes  = []int{57, 60, 72, 76, 114, 120, 144, 152, 167, 180, 1024}
	faviconSizes    = []int{16, 32, 48}
	mstileSquares   = []int{70, 144, 150, 310}
	androidManifest = "manifest.webmanifest"
	yandexManifest  = "yandex-browser-manifest.json"
	browserConfig   = "browserconfig.xml"
	faviconICO      = "favicon.ico"
)

func androidTargets() []target {
	out := make([]target, 0, len(androidSizes))
	for _, s := range androidSizes {
		out = append(out, sq("android-chrome", s))
	}
	return out
}

func appleIconTargets() []target {
	out := make([]target, 0, len(appleIconSizes)+2)
	for _, s := range appleIconSizes {
		t := sq("apple-touch-icon", s)
		t.opaque = true
		out = append(out, t)
	}
	out = append(out,
		target{name: "apple-touch-icon.png", w: 180, h: 180, opaque: true},
		target{name: "apple-touch-icon-precomposed.png", w: 180, h: 180, opaque: true},
	)
	return out
}

func faviconTargets() []target {
	out := make([]target, 0, len(faviconSizes))
	for _, s := range faviconSizes {
		out = append(out, sq("favicon", s))
	}
	return out
}

func windowsTargets() []target {
	out := make([]target, 0, len(mstileSquares)+1)
	for _, s := range mstileSquares {
		t := sq("mstile", s)
		t.padding = 0.2
		out = append(out, t)
	}
	return append(out, target{name: "mstile-310x150.png", w: 310, h: 150, padding: 0.2})
}

func yandexTargets() []target {
	t := sq("yandex-browser", 50)
	t.opaque = true
	return []target{t}
}

// device is an Apple screen in CSS pixels.
type device struct {
	w, h int
	dpr  int
}

var appleDevices = []device{
	{320, 568, 2},
	{375, 667, 2},
	{375, 812, 3},
	{390, 844, 3},
	{393, 852, 3},
	{414, 736, 3},
	{414, 896, 2},
	{414, 896, 3},
	{428, 926, 3},
	{430, 932, 3},
	{744, 1133, 2},
	{768, 1024, 2},
	{810, 1080, 2},
	{820, 1180, 2},
	{834, 1112, 2},
	{834, 1194, 2},
	{1024, 1366, 2},
}

type startup struct {
	target
	media string
}

func startupTargets(orientation string) []startup {
	var out []startup
	for _, d := range appleDevices {
		pw, ph := d.w*d.dpr, d.h*d.dpr
		if orientation != "landscape" {
			out = append(out, startup{
				target: target{name: fmt.Sprintf("apple-touch-startup-image-%dx%d.png", pw, ph), w: pw, h: ph, opaque: true, padding: 0.3},
				media:  deviceMedia(d, "portrait"),
			})
		}
		if orientation != "portrait" {
			out = append(out, startup{
				target: target{name: fmt.Sprintf("apple-touch-startup-image-%dx%d.png", ph, pw), w: ph, h: pw, opaque: true, padding: 0.3},
				media:  deviceMedia(d, "landscape"),
			})
		}
	}
	return out
}

func deviceMedia(d device, orientation string) string {
	return fmt.Sprintf("(device-width: %dpx) and (device-height: %dpx) and (-webkit-device-pixel-ratio: %d) and (orientation: %s)",
		d.w, d.h, d.dpr, orientation)
}
