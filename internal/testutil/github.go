package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeGitHub answers the release API, raw readme and release download
// requests the add-on manager makes, without touching the network.
type FakeGitHub struct {
	t *testing.T

	mu       sync.Mutex
	releases map[string]string
	readmes  map[string]string
	packages map[string][]byte
	hits     map[string]int
}

// NewFakeGitHub returns an empty fake. Unknown resources answer 404.
func NewFakeGitHub(t *testing.T) *FakeGitHub {
	return &FakeGitHub{
		t:        t,
		releases: map[string]string{},
		readmes:  map[string]string{},
		packages: map[string][]byte{},
		hits:     map[string]int{},
	}
}

// SetRelease publishes tag as the latest release of slug.
func (g *FakeGitHub) SetRelease(slug, tag string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases[slug] = tag
}

// SetReadme serves contents as the readme.txt of slug.
func (g *FakeGitHub) SetReadme(slug, contents string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.readmes[slug] = contents
}

// SetPackage serves a release zip of slug declaring version.
func (g *FakeGitHub) SetPackage(slug, version string) {
	data := CreatePluginZip(g.t, slug, version)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.packages[slug] = data
}

// Hits returns how many requests reached host+path, e.g.
// "api.github.com/repos/soderlind/vmfa-rules-engine/releases/latest".
func (g *FakeGitHub) Hits(hostPath string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hits[hostPath]
}

// Client returns an HTTP client whose requests are served by g.
func (g *FakeGitHub) Client() *http.Client {
	return &http.Client{Transport: handlerTransport{g}}
}

func (g *FakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hits[r.URL.Host+r.URL.Path]++

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch r.URL.Host {
	case "api.github.com":
		// /repos/<owner>/<slug>/releases/latest
		if len(parts) == 5 && parts[0] == "repos" && parts[3] == "releases" && parts[4] == "latest" {
			if tag, ok := g.releases[parts[2]]; ok {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]string{"tag_name": tag})
				return
			}
		}
	case "raw.githubusercontent.com":
		// /<owner>/<slug>/main/readme.txt
		if len(parts) == 4 && parts[3] == "readme.txt" {
			if body, ok := g.readmes[parts[1]]; ok {
				_, _ = w.Write([]byte(body))
				return
			}
		}
	case "github.com":
		// /<owner>/<slug>/releases/latest/download/<slug>.zip
		if len(parts) == 6 && parts[4] == "download" {
			if data, ok := g.packages[parts[1]]; ok {
				w.Header().Set("Content-Type", "application/zip")
				_, _ = w.Write(data)
				return
			}
		}
	}
	http.NotFound(w, r)
}

type handlerTransport struct {
	handler http.Handler
}

func (h handlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	res := rec.Result()
	res.Request = req
	return res, nil
}
