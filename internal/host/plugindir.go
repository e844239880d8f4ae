// Package host implements the add-on host primitives over a plugin
// directory on disk: plugin headers, activation state, deletion and
// package installation.
package host

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/util"
	"go.uber.org/zap"
)

// Activation scopes.
const (
	ScopeSite    = "site"
	ScopeNetwork = "network"
)

// ActiveStore persists which plugins are active.
type ActiveStore interface {
	IsPluginActive(pluginFile string) (bool, error)
	ActivatePlugin(pluginFile, scope string) error
	DeactivatePlugin(pluginFile string, scopes ...string) error
}

// Options tunes a PluginDir.
type Options struct {
	// Multisite activates plugins network-wide.
	Multisite bool
	// InstallTimeout bounds a whole package installation.
	InstallTimeout time.Duration
	// MaxPackageBytes bounds the downloaded archive size.
	MaxPackageBytes int64
}

// PluginDir is a plugin directory on disk. It implements
// addons.PluginHost and addons.PackageInstaller.
type PluginDir struct {
	root   string
	active ActiveStore
	client *http.Client
	opts   Options
	logger *zap.Logger

	mu      sync.RWMutex
	headers map[string]addons.PluginHeader
}

var (
	_ addons.PluginHost       = (*PluginDir)(nil)
	_ addons.PackageInstaller = (*PluginDir)(nil)
)

// NewPluginDir creates a PluginDir rooted at root, creating it if needed.
func NewPluginDir(root string, active ActiveStore, client *http.Client, opts Options, logger *zap.Logger) (*PluginDir, error) {
	if err := util.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("invalid plugin directory: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if client == nil {
		client = http.DefaultClient
	}
	if opts.InstallTimeout <= 0 {
		opts.InstallTimeout = 5 * time.Minute
	}
	if opts.MaxPackageBytes <= 0 {
		opts.MaxPackageBytes = 64 << 20
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PluginDir{
		root:    abs,
		active:  active,
		client:  client,
		opts:    opts,
		logger:  logger.Named("host"),
		headers: make(map[string]addons.PluginHeader),
	}, nil
}

// Root returns the absolute plugin directory.
func (p *PluginDir) Root() string {
	return p.root
}

func (p *PluginDir) path(pluginFile string) (string, error) {
	if err := util.ValidatePluginFile(pluginFile); err != nil {
		return "", err
	}
	return util.SafeJoin(p.root, pluginFile)
}

// Exists reports whether the plugin's main file is present.
func (p *PluginDir) Exists(pluginFile string) bool {
	path, err := p.path(pluginFile)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// ReadHeader returns the plugin's header, cached until CleanCache.
func (p *PluginDir) ReadHeader(pluginFile string) (addons.PluginHeader, error) {
	p.mu.RLock()
	h, ok := p.headers[pluginFile]
	p.mu.RUnlock()
	if ok {
		return h, nil
	}

	path, err := p.path(pluginFile)
	if err != nil {
		return addons.PluginHeader{}, err
	}
	h, err = readHeader(path)
	if err != nil {
		return addons.PluginHeader{}, fmt.Errorf("failed to read plugin header: %w", err)
	}

	p.mu.Lock()
	p.headers[pluginFile] = h
	p.mu.Unlock()
	return h, nil
}

// CleanCache drops every cached plugin header.
func (p *PluginDir) CleanCache() {
	p.mu.Lock()
	p.headers = make(map[string]addons.PluginHeader)
	p.mu.Unlock()
}

// IsActive reports whether the plugin is active in any scope.
func (p *PluginDir) IsActive(pluginFile string) bool {
	active, err := p.active.IsPluginActive(pluginFile)
	if err != nil {
		p.logger.Warn("failed to read activation state", zap.String("plugin", pluginFile), zap.Error(err))
		return false
	}
	return active
}

// Activate marks the plugin active after validating its main file.
func (p *PluginDir) Activate(pluginFile string) error {
	if !p.Exists(pluginFile) {
		return addons.NewHostError("plugin_not_found", "Plugin file does not exist.")
	}
	header, err := p.ReadHeader(pluginFile)
	if err != nil || header.Name == "" {
		return addons.NewHostError("no_plugin_header", "The plugin does not have a valid header.")
	}

	scope := ScopeSite
	if p.opts.Multisite {
		scope = ScopeNetwork
	}
	if err := p.active.ActivatePlugin(pluginFile, scope); err != nil {
		return addons.NewHostError("activation_failed", "Plugin could not be activated.").Wrap(err)
	}
	p.logger.Info("plugin activated", zap.String("plugin", pluginFile), zap.String("scope", scope))
	return nil
}

// Deactivate clears the plugin's site activation and, with networkWide set,
// its network activation too.
func (p *PluginDir) Deactivate(pluginFile string, networkWide bool) error {
	scopes := []string{ScopeSite}
	if networkWide {
		scopes = append(scopes, ScopeNetwork)
	}
	if err := p.active.DeactivatePlugin(pluginFile, scopes...); err != nil {
		return addons.NewHostError("deactivation_failed", "Plugin could not be deactivated.").Wrap(err)
	}
	p.logger.Info("plugin deactivated", zap.String("plugin", pluginFile), zap.Bool("network_wide", networkWide))
	return nil
}

// Delete removes the plugin's folder. It reports false when the folder does
// not exist.
func (p *PluginDir) Delete(pluginFile string) (bool, error) {
	if err := util.ValidatePluginFile(pluginFile); err != nil {
		return false, nil
	}
	folder := strings.Split(pluginFile, "/")[0]
	dir, err := util.SafeJoin(p.root, folder)
	if err != nil {
		return false, nil
	}

	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return false, addons.NewHostError("could_not_remove_plugin",
			fmt.Sprintf("Could not fully remove the plugin %s.", pluginFile)).Wrap(err)
	}

	p.CleanCache()
	p.logger.Info("plugin deleted", zap.String("plugin", pluginFile))
	return true, nil
}
