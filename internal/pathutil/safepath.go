package pathutil

import (
	"fmt"
	"strings"
)

// HasDotSegments reports whether any path segment is "." or "..".
func HasDotSegments(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if seg == "." || seg == ".." {
			return true
		}
	}
	return false
}

// ArtifactName validates a slash-separated output path relative to the build
// root: non-empty, not absolute, no backslashes, no empty or dot segments.
func ArtifactName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("artifact name is empty")
	case strings.HasPrefix(name, "/"):
		return fmt.Errorf("artifact name %q is absolute", name)
	case strings.ContainsRune(name, '\\'):
		return fmt.Errorf("artifact name %q contains a backslash", name)
	case strings.Contains(name, "//") || strings.HasSuffix(name, "/"):
		return fmt.Errorf("artifact name %q has an empty segment", name)
	case HasDotSegments(name):
		return fmt.Errorf("artifact name %q has a dot segment", name)
	}
	return nil
}
