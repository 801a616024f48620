package sitehandler

import (
	"io/fs"
	"path"
	"strings"

	"github.com/keithlinneman/linnemanlabs-webbuild/internal/pathutil"
)

// resolution is where a request path lands. At most one field is set; both
// empty means not found.
type resolution struct {
	file     string // relative to the site root, no leading slash
	redirect string // canonical URL path to redirect to
}

// resolve maps a URL path onto the site. The build output is flat apart from
// optional companion subdirectories, so only three shapes are accepted: the
// root, a file, and a directory with an index.html.
func resolve(urlPath string, site fs.FS) resolution {
	p := urlPath
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	// reject ambiguous/unsafe paths before cleaning hides them
	if strings.ContainsAny(p, "\x00\\") || strings.Contains(p, "..") || pathutil.HasDotSegments(p) {
		return resolution{}
	}

	dir := strings.HasSuffix(p, "/")
	clean := strings.TrimPrefix(path.Clean(p), "/")

	// dotfiles (.gitignore and friends) are never part of the site
	if strings.Contains("/"+clean, "/.") {
		return resolution{}
	}

	switch {
	case clean == "":
		return found(site, "index.html")
	case dir:
		return found(site, clean+"/index.html")
	case existsFile(site, clean):
		return resolution{file: clean}
	case path.Ext(clean) == "" && existsFile(site, clean+"/index.html"):
		return resolution{redirect: "/" + clean + "/"}
	default:
		return resolution{}
	}
}

func found(site fs.FS, name string) resolution {
	if existsFile(site, name) {
		return resolution{file: name}
	}
	return resolution{}
}

func existsFile(fsys fs.FS, name string) bool {
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	info, err := fs.Stat(fsys, name)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
