package addons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

const (
	DefaultNamespace    = "vmfa"
	DefaultCacheTTL     = 6 * time.Hour
	DefaultFetchTimeout = 10 * time.Second
	DefaultAPIBase      = "https://api.github.com"
	DefaultUserAgent    = "Virtual-Media-Folders"

	// maxReadmeBytes bounds how much of a remote readme is read.
	maxReadmeBytes = 1 << 20
)

// FetcherOptions configures a Fetcher. Zero values fall back to the defaults.
type FetcherOptions struct {
	Namespace string
	TTL       time.Duration
	Timeout   time.Duration
	APIBase   string
	UserAgent string
}

func (o FetcherOptions) withDefaults() FetcherOptions {
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.TTL <= 0 {
		o.TTL = DefaultCacheTTL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultFetchTimeout
	}
	if o.APIBase == "" {
		o.APIBase = DefaultAPIBase
	}
	o.APIBase = strings.TrimRight(o.APIBase, "/")
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Fetcher retrieves release tags and readme documents and caches both.
// Network and decoding failures degrade to "unknown" and are only logged.
type Fetcher struct {
	cache  KeyValueCache
	client HTTPDoer
	opts   FetcherOptions
	logger *zap.Logger
}

// NewFetcher creates a Fetcher. A nil client uses http.DefaultClient and a
// nil logger discards output.
func NewFetcher(cache KeyValueCache, client HTTPDoer, opts FetcherOptions, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cache:  cache,
		client: client,
		opts:   opts.withDefaults(),
		logger: logger.Named("fetcher"),
	}
}

// ReleaseKey is the cache key holding the latest release tag of slug.
func (f *Fetcher) ReleaseKey(slug string) string {
	return f.opts.Namespace + "_addon_release_" + slug
}

// ReadmeKey is the cache key holding the parsed readme of slug.
func (f *Fetcher) ReadmeKey(slug string) string {
	return f.opts.Namespace + "_readme_" + slug
}

type releasePayload struct {
	TagName string `json:"tag_name"`
}

// LatestRelease returns the tag name of the most recent published release.
// ok is false whenever the tag could not be determined.
func (f *Fetcher) LatestRelease(ctx context.Context, e Entry) (string, bool) {
	key := f.ReleaseKey(e.Slug)
	if cached, found := f.cache.Get(key); found && cached != "" {
		return cached, true
	}

	body, err := f.get(ctx, f.releaseURL(e), "application/vnd.github+json")
	if err != nil {
		f.logger.Debug("latest release unavailable", zap.String("slug", e.Slug), zap.Error(err))
		return "", false
	}

	var payload releasePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		f.logger.Debug("malformed release payload", zap.String("slug", e.Slug), zap.Error(err))
		return "", false
	}

	tag := sanitizeText(payload.TagName)
	if tag == "" {
		return "", false
	}

	if err := f.cache.Set(key, tag, f.opts.TTL); err != nil {
		f.logger.Warn("failed to cache release tag", zap.String("slug", e.Slug), zap.Error(err))
	}
	return tag, true
}

// Readme returns the parsed readme of the add-on, or an empty document when
// it cannot be retrieved or parsed. Empty results are not cached.
func (f *Fetcher) Readme(ctx context.Context, e Entry) ReadmeDocument {
	key := f.ReadmeKey(e.Slug)
	if cached, found := f.cache.Get(key); found && cached != "" {
		var doc ReadmeDocument
		if err := json.Unmarshal([]byte(cached), &doc); err == nil {
			if doc.Sections == nil {
				doc.Sections = map[string]string{}
			}
			return doc
		}
		f.logger.Debug("discarding undecodable cached readme", zap.String("slug", e.Slug))
	}

	body, err := f.get(ctx, e.ReadmeURL, "")
	if err != nil {
		f.logger.Debug("readme unavailable", zap.String("slug", e.Slug), zap.Error(err))
		return EmptyReadme()
	}
	if strings.TrimSpace(string(body)) == "" {
		return EmptyReadme()
	}

	doc, ok := ParseReadme(string(body))
	if !ok {
		return EmptyReadme()
	}

	encoded, err := json.Marshal(doc)
	if err == nil {
		err = f.cache.Set(key, string(encoded), f.opts.TTL)
	}
	if err != nil {
		f.logger.Warn("failed to cache readme", zap.String("slug", e.Slug), zap.Error(err))
	}
	return doc
}

// ClearReleaseCache drops the cached release tag of every catalog entry.
// Readme entries are left to expire on their own.
func (f *Fetcher) ClearReleaseCache() {
	for _, slug := range Slugs() {
		if err := f.cache.Delete(f.ReleaseKey(slug)); err != nil {
			f.logger.Warn("failed to clear release cache", zap.String("slug", slug), zap.Error(err))
		}
	}
}

func (f *Fetcher) releaseURL(e Entry) string {
	repo := strings.TrimPrefix(e.RepoURL, "https://github.com/")
	return f.opts.APIBase + "/repos/" + repo + "/releases/latest"
}

func (f *Fetcher) get(ctx context.Context, url, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReadmeBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}

// sanitizeText trims a single-line value and removes control characters
// and markup brackets.
func sanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '<' || r == '>' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
