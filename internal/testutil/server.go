package testutil

import (
	"testing"

	"go.uber.org/zap"

	"github.com/vrsandeep/vmfa-addons/internal/api"
	"github.com/vrsandeep/vmfa-addons/internal/config"
	"github.com/vrsandeep/vmfa-addons/internal/core"
)

// TestConfig returns the default configuration with a fresh plugin
// directory and a fixed token secret.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}
	cfg.Database.Path = ":memory:"
	cfg.Plugins.Path = t.TempDir()
	cfg.Auth.Secret = "test-secret"
	return cfg
}

// SetupTestApp builds a core.App over an in-memory database. Every
// outbound request is answered by the returned FakeGitHub.
func SetupTestApp(t *testing.T) (*core.App, *FakeGitHub) {
	t.Helper()
	gh := NewFakeGitHub(t)
	app, err := core.NewApp(TestConfig(t), SetupTestDB(t), zap.NewNop(),
		core.WithHTTPClient(gh.Client()),
		core.WithVersion("test"),
	)
	if err != nil {
		t.Fatalf("Failed to create test app: %v", err)
	}
	t.Cleanup(app.Close)
	return app, gh
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *core.App, *FakeGitHub) {
	t.Helper()
	app, gh := SetupTestApp(t)
	return api.NewServer(app), app, gh
}
