package icons

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

type webManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose"`
}

type webManifest struct {
	Name                      string            `json:"name"`
	ShortName                 string            `json:"short_name"`
	Description               string            `json:"description"`
	Dir                       string            `json:"dir"`
	Lang                      string            `json:"lang"`
	Display                   string            `json:"display"`
	Orientation               string            `json:"orientation"`
	Scope                     string            `json:"scope"`
	StartURL                  string            `json:"start_url"`
	BackgroundColor           string            `json:"background_color"`
	ThemeColor                string            `json:"theme_color"`
	PreferRelatedApplications bool              `json:"prefer_related_applications"`
	Icons                     []webManifestIcon `json:"icons"`
}

func androidManifestJSON(c Config) ([]byte, error) {
	m := webManifest{
		Name:            c.AppName,
		ShortName:       c.AppShortName,
		Description:     c.AppDescription,
		Dir:             c.Dir,
		Lang:            c.Lang,
		Display:         c.Display,
		Orientation:     c.Orientation,
		Scope:           c.Scope,
		StartURL:        c.StartURL,
		BackgroundColor: c.Background,
		ThemeColor:      c.ThemeColor,
	}
	for _, t := range androidTargets() {
		m.Icons = append(m.Icons, webManifestIcon{
			Src:     c.href(t.name),
			Sizes:   fmt.Sprintf("%dx%d", t.w, t.h),
			Type:    "image/png",
			Purpose: "any",
		})
	}
	return json.MarshalIndent(m, "", "  ")
}

type yandexLayout struct {
	Logo      string `json:"logo"`
	Color     string `json:"color"`
	ShowTitle bool   `json:"show_title"`
}

type yandexManifestDoc struct {
	Version    string       `json:"version"`
	APIVersion int          `json:"api_version"`
	Layout     yandexLayout `json:"layout"`
}

func yandexManifestJSON(c Config) ([]byte, error) {
	return json.MarshalIndent(yandexManifestDoc{
		Version:    c.Version,
		APIVersion: 1,
		Layout: yandexLayout{
			Logo:      c.href(yandexTargets()[0].name),
			Color:     c.Background,
			ShowTitle: true,
		},
	}, "", "  ")
}

func browserConfigXML(c Config) []byte {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"utf-8\"?>\n<browserconfig>\n  <msapplication>\n    <tile>\n")
	for _, t := range windowsTargets() {
		var tag string
		switch {
		case t.w == 310 && t.h == 150:
			tag = "wide310x150logo"
		case t.w == 144:
			continue // referenced from the TileImage meta tag instead
		default:
			tag = fmt.Sprintf("square%dx%dlogo", t.w, t.h)
		}
		fmt.Fprintf(&b, "      <%s src=\"%s\"/>\n", tag, html.EscapeString(c.href(t.name)))
	}
	fmt.Fprintf(&b, "      <TileColor>%s</TileColor>\n", html.EscapeString(c.Background))
	b.WriteString("    </tile>\n  </msapplication>\n</browserconfig>\n")
	return []byte(b.String())
}

func attr(s string) string { return html.EscapeString(s) }

func androidHTML(c Config) []string {
	return []string{
		fmt.Sprintf(`<link rel="manifest" href="%s">`, attr(c.href(androidManifest))),
		`<meta name="mobile-web-app-capable" content="yes">`,
		fmt.Sprintf(`<meta name="theme-color" content="%s">`, attr(c.ThemeColor)),
		fmt.Sprintf(`<meta name="application-name" content="%s">`, attr(c.AppShortName)),
	}
}

func appleIconHTML(c Config) []string {
	var out []string
	for _, s := range appleIconSizes {
		out = append(out, fmt.Sprintf(`<link rel="apple-touch-icon" sizes="%dx%d" href="%s">`,
			s, s, attr(c.href(fmt.Sprintf("apple-touch-icon-%dx%d.png", s, s)))))
	}
	return append(out,
		`<meta name="apple-mobile-web-app-capable" content="yes">`,
		fmt.Sprintf(`<meta name="apple-mobile-web-app-status-bar-style" content="%s">`, attr(c.AppleStatusBarStyle)),
		fmt.Sprintf(`<meta name="apple-mobile-web-app-title" content="%s">`, attr(c.AppShortName)),
	)
}

func faviconHTML(c Config) []string {
	out := []string{fmt.Sprintf(`<link rel="icon" type="image/x-icon" href="%s">`, attr(c.href(faviconICO)))}
	for _, s := range faviconSizes {
		out = append(out, fmt.Sprintf(`<link rel="icon" type="image/png" sizes="%dx%d" href="%s">`,
			s, s, attr(c.href(fmt.Sprintf("favicon-%dx%d.png", s, s)))))
	}
	return out
}

func windowsHTML(c Config) []string {
	return []string{
		fmt.Sprintf(`<meta name="msapplication-TileColor" content="%s">`, attr(c.Background)),
		fmt.Sprintf(`<meta name="msapplication-TileImage" content="%s">`, attr(c.href("mstile-144x144.png"))),
		fmt.Sprintf(`<meta name="msapplication-config" content="%s">`, attr(c.href(browserConfig))),
	}
}

func yandexHTML(c Config) []string {
	return []string{fmt.Sprintf(`<link rel="yandex-tableau-widget" href="%s">`, attr(c.href(yandexManifest)))}
}

func startupHTML(c Config, s startup) string {
	return fmt.Sprintf(`<link rel="apple-touch-startup-image" media="%s" href="%s">`, attr(s.media), attr(c.href(s.name)))
}
