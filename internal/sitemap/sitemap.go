package sitemap

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// Page is one entry of the site manifest.
type Page struct {
	Path       string
	ChangeFreq string
	Priority   string
}

// staticPages lists the fixed marketing routes of the site.
var staticPages = []Page{
	{Path: "/", ChangeFreq: "daily", Priority: "1.0"},
	{Path: "/tools", ChangeFreq: "daily", Priority: "0.9"},
	{Path: "/about", ChangeFreq: "monthly", Priority: "0.5"},
	{Path: "/contact", ChangeFreq: "monthly", Priority: "0.5"},
	{Path: "/privacy", ChangeFreq: "yearly", Priority: "0.3"},
	{Path: "/terms", ChangeFreq: "yearly", Priority: "0.3"},
}

// toolRoutes lists the conversion tool pages.
var toolRoutes = []string{
	"pdf-to-word",
	"word-to-pdf",
	"merge-pdf",
	"split-pdf",
	"compress-pdf",
	"jpg-to-png",
	"png-to-jpg",
	"compress-image",
	"mp4-to-mp3",
	"audio-converter",
}

type urlEntry struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

type urlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr"`
	URLs    []urlEntry `xml:"url"`
}

// Pages returns the full manifest: static routes followed by tool routes.
func Pages() []Page {
	pages := make([]Page, 0, len(staticPages)+len(toolRoutes))
	pages = append(pages, staticPages...)
	for _, tool := range toolRoutes {
		pages = append(pages, Page{
			Path:       "/tools/" + tool,
			ChangeFreq: "weekly",
			Priority:   "0.8",
		})
	}
	return pages
}

// Generate renders the sitemap XML for the manifest. Output is deterministic
// for a given base URL and date.
func Generate(baseURL string, date time.Time) (string, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	lastMod := date.UTC().Format("2006-01-02")

	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, page := range Pages() {
		set.URLs = append(set.URLs, urlEntry{
			Loc:        baseURL + page.Path,
			LastMod:    lastMod,
			ChangeFreq: page.ChangeFreq,
			Priority:   page.Priority,
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal sitemap: %w", err)
	}
	return xml.Header + string(body) + "\n", nil
}
