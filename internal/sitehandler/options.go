package sitehandler

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/cachepolicy"
	"github.com/keithlinneman/linnemanlabs-webbuild/internal/log"
)

var ErrInvalidOptions = errors.New("sitehandler: invalid options")

type Options struct {
	Logger log.Logger
	// Site is the built output directory.
	Site fs.FS

	// NotFoundFile is served with status 404 when present in Site.
	NotFoundFile string // default: "404.html"

	// Cache is applied per file name.
	Cache cachepolicy.Policy
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	if o.NotFoundFile == "" {
		o.NotFoundFile = "404.html"
	}
}

func (o *Options) validate() error {
	if o.Site == nil {
		return fmt.Errorf("%w: Site is nil", ErrInvalidOptions)
	}
	// a build without its shell is mispackaged; fail on start
	if !existsFile(o.Site, "index.html") {
		return fmt.Errorf("%w: missing %q in site FS", ErrInvalidOptions, "index.html")
	}
	return nil
}
