package addons_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/vmfa-addons/internal/addons"
)

const releaseURL = "https://api.github.com/repos/soderlind/vmfa-rules-engine/releases/latest"

func rulesEngine(t *testing.T) addons.Entry {
	t.Helper()
	e, ok := addons.Get("vmfa-rules-engine")
	require.True(t, ok)
	return e
}

func TestLatestRelease(t *testing.T) {
	e := rulesEngine(t)

	t.Run("fetches and caches tag", func(t *testing.T) {
		cache := newMemoryCache()
		doer := newStubDoer()
		doer.on(releaseURL, http.StatusOK, `{"tag_name":" v1.5.0\n","name":"1.5.0"}`)
		f := addons.NewFetcher(cache, doer, addons.FetcherOptions{}, nil)

		tag, ok := f.LatestRelease(context.Background(), e)
		require.True(t, ok)
		assert.Equal(t, "v1.5.0", tag)

		cached, found := cache.Get("vmfa_addon_release_vmfa-rules-engine")
		assert.True(t, found)
		assert.Equal(t, "v1.5.0", cached)
	})

	t.Run("cache hit skips the network", func(t *testing.T) {
		cache := newMemoryCache()
		require.NoError(t, cache.Set("vmfa_addon_release_vmfa-rules-engine", "v2.0.0", 0))
		doer := newStubDoer()
		f := addons.NewFetcher(cache, doer, addons.FetcherOptions{}, nil)

		tag, ok := f.LatestRelease(context.Background(), e)
		require.True(t, ok)
		assert.Equal(t, "v2.0.0", tag)
		assert.Equal(t, 0, doer.callCount())
	})

	t.Run("non-200 is unknown", func(t *testing.T) {
		doer := newStubDoer()
		doer.on(releaseURL, http.StatusForbidden, `{"message":"rate limited"}`)
		f := addons.NewFetcher(newMemoryCache(), doer, addons.FetcherOptions{}, nil)

		_, ok := f.LatestRelease(context.Background(), e)
		assert.False(t, ok)
	})

	t.Run("malformed body is unknown", func(t *testing.T) {
		doer := newStubDoer()
		doer.on(releaseURL, http.StatusOK, `not json`)
		f := addons.NewFetcher(newMemoryCache(), doer, addons.FetcherOptions{}, nil)

		_, ok := f.LatestRelease(context.Background(), e)
		assert.False(t, ok)
	})

	t.Run("missing tag is unknown and not cached", func(t *testing.T) {
		cache := newMemoryCache()
		doer := newStubDoer()
		doer.on(releaseURL, http.StatusOK, `{"tag_name":""}`)
		f := addons.NewFetcher(cache, doer, addons.FetcherOptions{}, nil)

		_, ok := f.LatestRelease(context.Background(), e)
		assert.False(t, ok)
		_, found := cache.Get("vmfa_addon_release_vmfa-rules-engine")
		assert.False(t, found)
	})

	t.Run("sends identifying headers", func(t *testing.T) {
		var got *http.Request
		doer := doerFunc(func(req *http.Request) (*http.Response, error) {
			got = req
			return nil, assert.AnError
		})
		f := addons.NewFetcher(newMemoryCache(), doer, addons.FetcherOptions{}, nil)

		_, ok := f.LatestRelease(context.Background(), e)
		assert.False(t, ok)
		require.NotNil(t, got)
		assert.Equal(t, "Virtual-Media-Folders", got.Header.Get("User-Agent"))
		assert.Equal(t, "application/vnd.github+json", got.Header.Get("Accept"))
	})
}

func TestReadme(t *testing.T) {
	e := rulesEngine(t)

	t.Run("fetches parses and caches", func(t *testing.T) {
		cache := newMemoryCache()
		doer := newStubDoer()
		doer.on(e.ReadmeURL, http.StatusOK, sampleReadme)
		f := addons.NewFetcher(cache, doer, addons.FetcherOptions{}, nil)

		doc := f.Readme(context.Background(), e)
		assert.Equal(t, "1.4.0", doc.StableTag)

		raw, found := cache.Get("vmfa_readme_vmfa-rules-engine")
		require.True(t, found)
		var cached addons.ReadmeDocument
		require.NoError(t, json.Unmarshal([]byte(raw), &cached))
		assert.Equal(t, doc, cached)

		// Second read is served from the cache.
		again := f.Readme(context.Background(), e)
		assert.Equal(t, doc, again)
		assert.Equal(t, 1, doer.callCount())
	})

	t.Run("failure yields empty document", func(t *testing.T) {
		cache := newMemoryCache()
		doer := newStubDoer()
		doer.on(e.ReadmeURL, http.StatusInternalServerError, "")
		f := addons.NewFetcher(cache, doer, addons.FetcherOptions{}, nil)

		doc := f.Readme(context.Background(), e)
		assert.True(t, doc.IsEmpty())
		assert.NotNil(t, doc.Sections)
		_, found := cache.Get("vmfa_readme_vmfa-rules-engine")
		assert.False(t, found)
	})

	t.Run("empty body yields empty document", func(t *testing.T) {
		doer := newStubDoer()
		doer.on(e.ReadmeURL, http.StatusOK, "  ")
		f := addons.NewFetcher(newMemoryCache(), doer, addons.FetcherOptions{}, nil)

		assert.True(t, f.Readme(context.Background(), e).IsEmpty())
	})
}

func TestClearReleaseCache(t *testing.T) {
	cache := newMemoryCache()
	f := addons.NewFetcher(cache, newStubDoer(), addons.FetcherOptions{Namespace: "test"}, nil)

	for _, slug := range addons.Slugs() {
		require.NoError(t, cache.Set(f.ReleaseKey(slug), "1.0.0", 0))
		require.NoError(t, cache.Set(f.ReadmeKey(slug), "{}", 0))
	}

	f.ClearReleaseCache()

	for _, slug := range addons.Slugs() {
		_, found := cache.Get("test_addon_release_" + slug)
		assert.False(t, found)
		_, found = cache.Get("test_readme_" + slug)
		assert.True(t, found)
	}
}

type doerFunc func(*http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}
