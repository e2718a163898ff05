package crawler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustScope(t *testing.T, base, docs string) Scope {
	t.Helper()
	scope, err := NewScope(base, docs, nil)
	require.NoError(t, err)
	return scope
}

func TestNewScope(t *testing.T) {
	t.Parallel()

	scope := mustScope(t, "https://x.com/", "/docs")
	assert.Equal(t, "https://x.com", scope.BaseOrigin())
	assert.Equal(t, "x.com", scope.Host())
	assert.Equal(t, "https://x.com/docs", scope.Seed())

	_, err := NewScope("not a url", "/", nil)
	assert.Error(t, err)
	_, err = NewScope("/relative/only", "/", nil)
	assert.Error(t, err)
}

func TestScopeAllows(t *testing.T) {
	t.Parallel()

	scope := mustScope(t, "https://x.com", "/docs")
	testCases := []struct {
		name string
		url  string
		want bool
	}{
		{"seed", "https://x.com/docs", true},
		{"outside docs path is still under origin", "https://x.com/blog", true},
		{"other origin", "https://other.com/docs", false},
		{"other scheme", "http://x.com/docs", false},
		{"css", "https://x.com/docs/site.css", false},
		{"js", "https://x.com/docs/app.js", false},
		{"png", "https://x.com/docs/a.png", false},
		{"jpg", "https://x.com/docs/a.jpg", false},
		{"jpeg upper", "https://x.com/docs/A.JPEG", false},
		{"gif", "https://x.com/docs/a.gif", false},
		{"svg", "https://x.com/docs/a.svg", false},
		{"html page", "https://x.com/docs/page.html", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, scope.Allows(tc.url))
		})
	}
}

func TestScopeCustomExtensions(t *testing.T) {
	t.Parallel()

	scope, err := NewScope("https://x.com", "/", []string{" .PDF ", ""})
	require.NoError(t, err)
	assert.False(t, scope.Allows("https://x.com/manual.pdf"))
	assert.True(t, scope.Allows("https://x.com/style.css"))
}

func TestScopeFileName(t *testing.T) {
	t.Parallel()

	scope := mustScope(t, "https://x.com", "/docs")
	assert.Equal(t, "docs.pdf", scope.FileName("https://x.com/docs"))
	assert.Equal(t, "docs_a.pdf", scope.FileName("https://x.com/docs/a"))
	assert.Equal(t, "api_v1_ref.pdf", scope.FileName("https://x.com/api/v1/ref/"))
	assert.Equal(t, "index.pdf", scope.FileName("https://x.com"))
	assert.Equal(t, "index.pdf", scope.FileName("https://x.com/"))
}

func TestIsCandidateLink(t *testing.T) {
	t.Parallel()

	assert.False(t, IsCandidateLink(""))
	assert.False(t, IsCandidateLink("#section"))
	assert.False(t, IsCandidateLink("mailto:team@x.com"))
	assert.False(t, IsCandidateLink("tel:+15555555"))
	assert.True(t, IsCandidateLink("/docs/a"))
	assert.True(t, IsCandidateLink("https://x.com/docs"))
	assert.True(t, IsCandidateLink("page.html#frag"))
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		href    string
		current string
		want    string
	}{
		{"absolute path resolved against base", "/a/b/", "https://x.com/base/", "https://x.com/a/b"},
		{"relative sibling", "c", "https://x.com/docs/a/b", "https://x.com/docs/a/c"},
		{"relative child of directory", "c/", "https://x.com/docs/a/", "https://x.com/docs/a/c"},
		{"parent", "../up", "https://x.com/docs/a/b", "https://x.com/docs/up"},
		{"query and fragment stripped", "/p?q=1#top", "https://x.com/", "https://x.com/p"},
		{"absolute other host kept", "https://other.com/x/", "https://x.com/", "https://other.com/x"},
		{"root collapses to origin", "/", "https://x.com/docs", "https://x.com"},
		{"bad base falls back", "/a/?q#f", "http://[::1", "/a"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.href, tc.current))
		})
	}
}

func FuzzNormalizeURL(f *testing.F) {
	for _, seed := range []string{"/a/b/", "../x", "https://x.com/y?z#w", "%zz", ""} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, href string) {
		got := NormalizeURL(href, "https://x.com/docs/")
		if len(got) > 0 && got[len(got)-1] == '/' {
			t.Errorf("NormalizeURL(%q) kept a trailing slash: %q", href, got)
		}
	})
}
