// Package minify shrinks build outputs before they are hashed and written.
//
// Text formats go through tdewolff/minify; PNGs are re-encoded at best
// compression and only kept when smaller.
package minify

import (
	"bytes"
	"encoding/json"
	"image/png"
	"path"
	"regexp"
	"strings"

	tdminify "github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	tdjson "github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/xml"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/xerrors"
)

const (
	mimeHTML = "text/html"
	mimeCSS  = "text/css"
	mimeJS   = "application/javascript"
	mimeJSON = "application/json"
	mimeXML  = "application/xml"
)

var (
	reJS   = regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`)
	reJSON = regexp.MustCompile(`[/+]json$`)
	reXML  = regexp.MustCompile(`[/+]xml$`)
)

// Minifier is safe for concurrent use once built.
type Minifier struct {
	m *tdminify.M
}

// New returns a Minifier configured for the web shell: HTML with optional
// tags, quotes and comments removed, inline scripts and styles minified.
func New() *Minifier {
	m := tdminify.New()
	m.Add(mimeHTML, &html.Minifier{
		KeepDocumentTags:    false,
		KeepEndTags:         false,
		KeepQuotes:          false,
		KeepWhitespace:      false,
		KeepDefaultAttrVals: false,
		KeepComments:        false,
	})
	m.AddFunc(mimeCSS, css.Minify)
	m.AddRegexp(reJS, &js.Minifier{KeepVarNames: false})
	m.AddFuncRegexp(reJSON, tdjson.Minify)
	m.AddFuncRegexp(reXML, xml.Minify)
	return &Minifier{m: m}
}

// JS minifies a script. Syntax errors are returned.
func (x *Minifier) JS(b []byte) ([]byte, error) {
	out, err := x.m.Bytes(mimeJS, b)
	if err != nil {
		return nil, xerrors.Wrap(err, "minify js")
	}
	return out, nil
}

// HTML minifies a document including its inline <script> and <style> blocks.
func (x *Minifier) HTML(b []byte) ([]byte, error) {
	out, err := x.m.Bytes(mimeHTML, b)
	if err != nil {
		return nil, xerrors.Wrap(err, "minify html")
	}
	return out, nil
}

// JSON re-serializes b compactly. Invalid JSON is an error.
func (x *Minifier) JSON(b []byte) ([]byte, error) {
	if !json.Valid(b) {
		return nil, xerrors.New("minify json: invalid document")
	}
	out, err := x.m.Bytes(mimeJSON, b)
	if err != nil {
		return nil, xerrors.Wrap(err, "minify json")
	}
	return out, nil
}

// XML minifies b.
func (x *Minifier) XML(b []byte) ([]byte, error) {
	out, err := x.m.Bytes(mimeXML, b)
	if err != nil {
		return nil, xerrors.Wrap(err, "minify xml")
	}
	return out, nil
}

// PNG re-encodes b at best compression and returns whichever of the two
// encodings is smaller.
func PNG(b []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, xerrors.Wrap(err, "decode png")
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, xerrors.Wrap(err, "encode png")
	}
	if buf.Len() < len(b) {
		return buf.Bytes(), nil
	}
	return b, nil
}

// File minifies b according to the extension of name. Unknown types are
// returned unchanged.
func (x *Minifier) File(name string, b []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		out, err = PNG(b)
	case ".json", ".webmanifest":
		out, err = x.JSON(b)
	case ".xml":
		out, err = x.XML(b)
	case ".js":
		out, err = x.JS(b)
	case ".html", ".htm":
		out, err = x.HTML(b)
	default:
		return b, nil
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "minify %s", name)
	}
	return out, nil
}
