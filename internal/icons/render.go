package icons

import (
	"bytes"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

// render scales src into a w x h canvas, centred and aspect-preserving.
func render(src image.Image, t target, bg color.NRGBA, scaler draw.Scaler) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, t.w, t.h))
	if t.opaque {
		opaque := bg
		opaque.A = 0xff
		draw.Draw(dst, dst.Bounds(), image.NewUniform(opaque), image.Point{}, draw.Src)
	}

	short := min(t.w, t.h)
	box := short - int(float64(short)*t.padding)
	if box < 1 {
		box = 1
	}

	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return dst
	}
	fw, fh := box, box
	if sw > sh {
		fh = max(1, box*sh/sw)
	} else if sh > sw {
		fw = max(1, box*sw/sh)
	}

	x0 := (t.w - fw) / 2
	y0 := (t.h - fh) / 2
	scaler.Scale(dst, image.Rect(x0, y0, x0+fw, y0+fh), src, sb, draw.Over, nil)
	return dst
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, xerrors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}
