package icons

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Config carries the application metadata written into manifests and markup.
type Config struct {
	Path                string // URL prefix every generated href starts with
	AppName             string
	AppShortName        string
	AppDescription      string
	DeveloperName       string
	DeveloperURL        string
	Dir                 string
	Lang                string
	Background          string // CSS hex colour
	ThemeColor          string // CSS hex colour
	AppleStatusBarStyle string
	Display             string
	Orientation         string // "landscape", "portrait" or "any"
	Scope               string
	StartURL            string
	Version             string
	PixelArt            bool // nearest-neighbour scaling
}

// DefaultConfig returns the settings the web runtime ships with.
func DefaultConfig() Config {
	return Config{
		Path:                "/",
		AppName:             "Indifference Engine",
		AppShortName:        "Indifference Engine",
		AppDescription:      "Small-scale, long-lived retro game engine.",
		DeveloperName:       "siliconspecter",
		DeveloperURL:        "https://siliconspecter.github.io/indifference-engine/",
		Dir:                 "auto",
		Lang:                "en-US",
		Background:          "#000",
		ThemeColor:          "#000",
		AppleStatusBarStyle: "black-translucent",
		Display:             "standalone",
		Orientation:         "landscape",
		Scope:               "/",
		StartURL:            "/",
		Version:             "1.0",
		PixelArt:            true,
	}
}

func (c Config) href(name string) string {
	p := c.Path
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p + name
}

// ParseColor parses #rgb, #rrggbb or #rrggbbaa.
func ParseColor(s string) (color.NRGBA, error) {
	h, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("colour %q: missing leading #", s)
	}
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.NRGBA{}, fmt.Errorf("colour %q: want 3, 6 or 8 hex digits", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
