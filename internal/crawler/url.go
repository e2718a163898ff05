package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultIgnoredExtensions lists asset suffixes that are never rendered.
var DefaultIgnoredExtensions = []string{".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg"}

// Scope decides which URLs belong to a run. It is immutable once built.
type Scope struct {
	baseOrigin string
	docsPath   string
	host       string
	ignored    []string
}

// NewScope validates the base URL and returns the scope for a run.
// A trailing slash on baseURL is dropped.
func NewScope(baseURL, docsPath string, ignoredExtensions []string) (Scope, error) {
	origin := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	parsed, err := url.Parse(origin)
	if err != nil {
		return Scope{}, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return Scope{}, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	if ignoredExtensions == nil {
		ignoredExtensions = DefaultIgnoredExtensions
	}
	ignored := make([]string, 0, len(ignoredExtensions))
	for _, ext := range ignoredExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" {
			ignored = append(ignored, ext)
		}
	}
	return Scope{
		baseOrigin: origin,
		docsPath:   docsPath,
		host:       parsed.Host,
		ignored:    ignored,
	}, nil
}

// BaseOrigin returns the normalized base URL.
func (s Scope) BaseOrigin() string { return s.baseOrigin }

// Host returns the host[:port] of the base URL.
func (s Scope) Host() string { return s.host }

// Seed is the single URL the frontier starts from.
func (s Scope) Seed() string {
	return s.baseOrigin + s.docsPath
}

// Allows reports whether rawURL starts with the base origin and does not end
// with an ignored extension.
func (s Scope) Allows(rawURL string) bool {
	if !strings.HasPrefix(rawURL, s.baseOrigin) {
		return false
	}
	lower := strings.ToLower(rawURL)
	for _, ext := range s.ignored {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return true
}

// FileName maps a URL to its PDF file name: the part after the base origin with
// slashes replaced by underscores, or "index" when nothing is left.
func (s Scope) FileName(rawURL string) string {
	name := strings.TrimPrefix(rawURL, s.baseOrigin)
	name = strings.Trim(strings.ReplaceAll(name, "/", "_"), "_")
	if name == "" {
		name = "index"
	}
	return name + ".pdf"
}

// IsCandidateLink rejects empty hrefs, in-page anchors, and mail/phone links.
func IsCandidateLink(href string) bool {
	if href == "" {
		return false
	}
	for _, prefix := range []string{"#", "mailto:", "tel:"} {
		if strings.HasPrefix(href, prefix) {
			return false
		}
	}
	return true
}

// NormalizeURL resolves href against currentURL and returns scheme://host/path
// without query, fragment, or trailing slash. Unparseable input falls back to a
// string-level cleanup so the result is always usable as a key.
func NormalizeURL(href, currentURL string) string {
	base, err := url.Parse(currentURL)
	if err != nil {
		return stripURL(href)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return stripURL(href)
	}
	abs := base.ResolveReference(ref)
	return strings.TrimRight(abs.Scheme+"://"+abs.Host+abs.EscapedPath(), "/")
}

func stripURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}
