package addons

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Action verbs accepted by the dispatcher.
const (
	ActionInstall      = "install"
	ActionUpdate       = "update"
	ActionActivate     = "activate"
	ActionDeactivate   = "deactivate"
	ActionDelete       = "delete"
	ActionCheckUpdates = "check_updates"
)

var actionLabels = map[string]string{
	ActionInstall:    "installed",
	ActionUpdate:     "updated",
	ActionActivate:   "activated",
	ActionDeactivate: "deactivated",
	ActionDelete:     "deleted",
}

// Host error codes produced by the manager itself.
const (
	CodeAlreadyInstalled = "vmfa_addon_installed"
	CodeInstallFailed    = "vmfa_addon_install_failed"
	CodeDeleteFailed     = "vmfa_addon_delete_failed"
)

// ReleaseCache is the part of the fetcher the manager invalidates.
type ReleaseCache interface {
	ClearReleaseCache()
}

// Manager performs lifecycle actions against the host primitives.
type Manager struct {
	host      PluginHost
	installer PackageInstaller
	releases  ReleaseCache
	logger    *zap.Logger
}

// NewManager creates a Manager.
func NewManager(host PluginHost, installer PackageInstaller, releases ReleaseCache, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		host:      host,
		installer: installer,
		releases:  releases,
		logger:    logger.Named("manager"),
	}
}

// Label returns the past-tense label of verb, or false when the verb is not
// a per-add-on action.
func Label(verb string) (string, bool) {
	label, ok := actionLabels[verb]
	return label, ok
}

// CheckUpdates forgets every cached release tag.
func (m *Manager) CheckUpdates() {
	m.releases.ClearReleaseCache()
}

// Run executes verb against e and returns the past-tense label on success.
// On success the host's plugin metadata cache is invalidated.
func (m *Manager) Run(ctx context.Context, verb string, e Entry) (string, error) {
	label, ok := Label(verb)
	if !ok {
		return "", ErrUnsupportedAction
	}

	var err error
	switch verb {
	case ActionInstall:
		err = m.Install(ctx, e)
	case ActionUpdate:
		err = m.Update(ctx, e)
	case ActionActivate:
		err = m.Activate(e)
	case ActionDeactivate:
		err = m.Deactivate(e)
	case ActionDelete:
		err = m.Delete(e)
	}
	if err != nil {
		m.logger.Warn("add-on action failed",
			zap.String("action", verb), zap.String("slug", e.Slug), zap.Error(err))
		return "", err
	}

	m.host.CleanCache()
	return label, nil
}

// Install installs the latest release package. It refuses when the plugin
// file is already present.
func (m *Manager) Install(ctx context.Context, e Entry) error {
	if m.host.Exists(e.PluginFile) {
		return NewHostError(CodeAlreadyInstalled, "Add-on is already installed.")
	}
	return m.install(ctx, e, false)
}

// Update reinstalls the latest release package over the existing folder.
func (m *Manager) Update(ctx context.Context, e Entry) error {
	return m.install(ctx, e, true)
}

func (m *Manager) install(ctx context.Context, e Entry, overwrite bool) error {
	ok, err := m.installer.Install(ctx, e.ZipURL, overwrite)
	if err != nil {
		return err
	}
	if !ok {
		return NewHostError(CodeInstallFailed, "Unable to install the add-on.")
	}
	return nil
}

// Activate activates the add-on network-wide.
func (m *Manager) Activate(e Entry) error {
	return m.host.Activate(e.PluginFile)
}

// Deactivate deactivates the add-on network-wide.
func (m *Manager) Deactivate(e Entry) error {
	return m.host.Deactivate(e.PluginFile, true)
}

// Delete deactivates the add-on when active and removes it. A failed
// deactivation aborts the deletion. Nothing is rolled back on a later failure.
func (m *Manager) Delete(e Entry) error {
	if m.host.IsActive(e.PluginFile) {
		if err := m.host.Deactivate(e.PluginFile, true); err != nil {
			return err
		}
	}

	deleted, err := m.host.Delete(e.PluginFile)
	if err != nil {
		var hostErr *HostError
		if errors.As(err, &hostErr) && hostErr.Message != "" {
			return hostErr
		}
		return NewHostError(CodeDeleteFailed, "Unable to delete the add-on.").Wrap(err)
	}
	if !deleted {
		return NewHostError(CodeDeleteFailed, "Unable to delete the add-on.")
	}
	return nil
}

// describe renders the success notice for a completed action.
func describe(e Entry, label string) string {
	return fmt.Sprintf("%s %s successfully.", e.Title, label)
}
