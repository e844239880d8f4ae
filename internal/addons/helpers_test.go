package addons_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/vrsandeep/vmfa-addons/internal/addons"
)

// memoryCache is an in-memory KeyValueCache that ignores TTLs.
type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}}
}

func (c *memoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *memoryCache) Set(key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

func (c *memoryCache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.values, key)
	return nil
}

// stubDoer answers requests from a URL-keyed table and counts calls.
type stubDoer struct {
	mu        sync.Mutex
	responses map[string]stubResponse
	calls     []string
}

type stubResponse struct {
	status int
	body   string
	err    error
}

func newStubDoer() *stubDoer {
	return &stubDoer{responses: map[string]stubResponse{}}
}

func (d *stubDoer) on(url string, status int, body string) {
	d.responses[url] = stubResponse{status: status, body: body}
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, req.URL.String())

	r, ok := d.responses[req.URL.String()]
	if !ok {
		r = stubResponse{status: http.StatusNotFound}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Header:     http.Header{},
		Body:       io.NopCloser(strings.NewReader(r.body)),
		Request:    req,
	}, nil
}

func (d *stubDoer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// MockPluginHost is a mock implementation of addons.PluginHost.
type MockPluginHost struct {
	mock.Mock
}

func (m *MockPluginHost) Exists(pluginFile string) bool {
	return m.Called(pluginFile).Bool(0)
}

func (m *MockPluginHost) IsActive(pluginFile string) bool {
	return m.Called(pluginFile).Bool(0)
}

func (m *MockPluginHost) ReadHeader(pluginFile string) (addons.PluginHeader, error) {
	args := m.Called(pluginFile)
	return args.Get(0).(addons.PluginHeader), args.Error(1)
}

func (m *MockPluginHost) Activate(pluginFile string) error {
	return m.Called(pluginFile).Error(0)
}

func (m *MockPluginHost) Deactivate(pluginFile string, networkWide bool) error {
	return m.Called(pluginFile, networkWide).Error(0)
}

func (m *MockPluginHost) Delete(pluginFile string) (bool, error) {
	args := m.Called(pluginFile)
	return args.Bool(0), args.Error(1)
}

func (m *MockPluginHost) CleanCache() {
	m.Called()
}

// MockInstaller is a mock implementation of addons.PackageInstaller.
type MockInstaller struct {
	mock.Mock
}

func (m *MockInstaller) Install(ctx context.Context, packageURL string, overwrite bool) (bool, error) {
	args := m.Called(ctx, packageURL, overwrite)
	return args.Bool(0), args.Error(1)
}

type staticReleases map[string]string

func (s staticReleases) LatestRelease(_ context.Context, e addons.Entry) (string, bool) {
	tag, ok := s[e.Slug]
	return tag, ok
}

type staticReadmes map[string]addons.ReadmeDocument

func (s staticReadmes) Readme(_ context.Context, e addons.Entry) addons.ReadmeDocument {
	if doc, ok := s[e.Slug]; ok {
		return doc
	}
	return addons.EmptyReadme()
}

type releaseCacheSpy struct {
	cleared int
}

func (r *releaseCacheSpy) ClearReleaseCache() {
	r.cleared++
}

type tokenStub struct {
	valid string
}

func (t tokenStub) Verify(_, action, token string) bool {
	return action == addons.TokenAction && token != "" && token == t.valid
}

type eventRecorder struct {
	events []addons.ActionEvent
}

func (r *eventRecorder) Notify(e addons.ActionEvent) {
	r.events = append(r.events, e)
}
