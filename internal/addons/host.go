package addons

import (
	"context"
	"net/http"
	"time"
)

// KeyValueCache is an expiring string store, the equivalent of the host's
// transient API.
type KeyValueCache interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration) error
	Delete(key string) error
}

// HTTPDoer issues outbound requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PluginHeader is the metadata block declared at the top of a plugin's
// main file.
type PluginHeader struct {
	Name            string `json:"name"`
	Version         string `json:"version"`
	Description     string `json:"description"`
	Author          string `json:"author"`
	RequiresAtLeast string `json:"requires_at_least"`
	RequiresPHP     string `json:"requires_php"`
}

// PluginHost exposes the host's local plugin state. Paths are plugin files
// relative to the plugin directory, e.g. "vmfa-rules-engine/vmfa-rules-engine.php".
type PluginHost interface {
	Exists(pluginFile string) bool
	IsActive(pluginFile string) bool
	ReadHeader(pluginFile string) (PluginHeader, error)
	Activate(pluginFile string) error
	Deactivate(pluginFile string, networkWide bool) error
	// Delete removes the plugin. It reports false without an error when
	// nothing was removed.
	Delete(pluginFile string) (bool, error)
	// CleanCache drops any cached plugin metadata.
	CleanCache()
}

// PackageInstaller installs a plugin from a package archive URL. With
// overwrite set an existing destination folder is replaced. A false result
// without an error means the installer failed without saying why.
type PackageInstaller interface {
	Install(ctx context.Context, packageURL string, overwrite bool) (bool, error)
}

// TokenVerifier validates anti-forgery tokens bound to a session and an
// action name.
type TokenVerifier interface {
	Verify(session, action, token string) bool
}

// Notifier receives one event per dispatched action.
type Notifier interface {
	Notify(event ActionEvent)
}
