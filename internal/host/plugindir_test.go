package host_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/vmfa-addons/internal/addons"
	"github.com/vrsandeep/vmfa-addons/internal/host"
	"github.com/vrsandeep/vmfa-addons/internal/testutil"
)

const rulesFile = "vmfa-rules-engine/vmfa-rules-engine.php"

type memoryActive struct {
	mu     sync.Mutex
	scopes map[string]map[string]bool
	err    error
}

func newMemoryActive() *memoryActive {
	return &memoryActive{scopes: map[string]map[string]bool{}}
}

func (m *memoryActive) IsPluginActive(pluginFile string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return len(m.scopes[pluginFile]) > 0, nil
}

func (m *memoryActive) ActivatePlugin(pluginFile, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.scopes[pluginFile] == nil {
		m.scopes[pluginFile] = map[string]bool{}
	}
	m.scopes[pluginFile][scope] = true
	return nil
}

func (m *memoryActive) DeactivatePlugin(pluginFile string, scopes ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, s := range scopes {
		delete(m.scopes[pluginFile], s)
	}
	return nil
}

func newPluginDir(t *testing.T, opts host.Options) (*host.PluginDir, *memoryActive) {
	t.Helper()
	active := newMemoryActive()
	dir, err := host.NewPluginDir(t.TempDir(), active, nil, opts, nil)
	require.NoError(t, err)
	return dir, active
}

func TestPluginDirExistsAndHeader(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})

	assert.False(t, dir.Exists(rulesFile))
	assert.False(t, dir.Exists("../etc/passwd"))

	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.2.3")
	assert.True(t, dir.Exists(rulesFile))

	h, err := dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	assert.Equal(t, "vmfa-rules-engine", h.Name)
	assert.Equal(t, "1.2.3", h.Version)
	assert.Equal(t, "Test plugin.", h.Description)
	assert.Equal(t, "6.8", h.RequiresAtLeast)
	assert.Equal(t, "8.3", h.RequiresPHP)
}

func TestPluginDirHeaderCache(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})
	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.0.0")

	h, err := dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", h.Version)

	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "2.0.0")
	h, err = dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", h.Version, "header should be served from cache")

	dir.CleanCache()
	h, err = dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", h.Version)
}

func TestPluginDirActivation(t *testing.T) {
	t.Run("missing plugin", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		err := dir.Activate(rulesFile)
		require.Error(t, err)
		assert.Equal(t, "Plugin file does not exist.", err.Error())
	})

	t.Run("activate and deactivate", func(t *testing.T) {
		dir, active := newPluginDir(t, host.Options{Multisite: true})
		testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.0.0")

		require.NoError(t, dir.Activate(rulesFile))
		assert.True(t, dir.IsActive(rulesFile))
		assert.True(t, active.scopes[rulesFile][host.ScopeNetwork])

		require.NoError(t, dir.Deactivate(rulesFile, true))
		assert.False(t, dir.IsActive(rulesFile))
	})

	t.Run("site deactivation keeps network activation", func(t *testing.T) {
		dir, active := newPluginDir(t, host.Options{})
		require.NoError(t, active.ActivatePlugin(rulesFile, host.ScopeNetwork))

		require.NoError(t, dir.Deactivate(rulesFile, false))
		assert.True(t, dir.IsActive(rulesFile))
	})

	t.Run("store failure surfaces host message", func(t *testing.T) {
		dir, active := newPluginDir(t, host.Options{})
		active.err = errors.New("database is locked")

		err := dir.Deactivate(rulesFile, true)
		var hostErr *addons.HostError
		require.ErrorAs(t, err, &hostErr)
		assert.Equal(t, "Plugin could not be deactivated.", hostErr.Message)
		assert.False(t, dir.IsActive(rulesFile))
	})
}

func TestPluginDirDelete(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})

	deleted, err := dir.Delete(rulesFile)
	require.NoError(t, err)
	assert.False(t, deleted)

	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.0.0")
	deleted, err = dir.Delete(rulesFile)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoDirExists(t, filepath.Join(dir.Root(), "vmfa-rules-engine"))

	deleted, err = dir.Delete("../../outside/x.php")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func packageServer(t *testing.T, packages map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := packages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestInstall(t *testing.T) {
	srv := packageServer(t, map[string][]byte{
		"/v1.zip":    testutil.CreatePluginZip(t, "vmfa-rules-engine", "1.0.0"),
		"/v2.zip":    testutil.CreatePluginZip(t, "vmfa-rules-engine", "2.0.0"),
		"/empty.zip": testutil.CreateZip(t, map[string]string{"readme.txt": "nothing"}),
		"/nophp.zip": testutil.CreateZip(t, map[string]string{"thing/readme.txt": "nothing"}),
		"/junk.zip":  []byte("definitely not a zip archive"),
	})
	ctx := context.Background()

	t.Run("fresh install", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		ok, err := dir.Install(ctx, srv.URL+"/v1.zip", false)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, dir.Exists(rulesFile))
		assert.FileExists(t, filepath.Join(dir.Root(), "vmfa-rules-engine", "includes", "main.php"))

		h, err := dir.ReadHeader(rulesFile)
		require.NoError(t, err)
		assert.Equal(t, "1.0.0", h.Version)

		entries, err := os.ReadDir(dir.Root())
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".vmfa-staging-")
		}
	})

	t.Run("existing folder without overwrite", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "0.9.0")

		ok, err := dir.Install(ctx, srv.URL+"/v1.zip", false)
		assert.False(t, ok)
		require.Error(t, err)
		assert.Equal(t, "Destination folder already exists.", err.Error())
	})

	t.Run("overwrite replaces folder", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.0.0")
		_, err := dir.ReadHeader(rulesFile)
		require.NoError(t, err)

		ok, err := dir.Install(ctx, srv.URL+"/v2.zip", true)
		require.NoError(t, err)
		assert.True(t, ok)

		h, err := dir.ReadHeader(rulesFile)
		require.NoError(t, err)
		assert.Equal(t, "2.0.0", h.Version)
	})

	t.Run("download failure", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		_, err := dir.Install(ctx, srv.URL+"/missing.zip", false)
		require.Error(t, err)
		assert.Equal(t, "Download failed. Not Found", err.Error())
	})

	t.Run("package without plugin folder", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		for _, path := range []string{"/empty.zip", "/nophp.zip"} {
			_, err := dir.Install(ctx, srv.URL+path, false)
			require.Error(t, err)
			assert.Equal(t, "The package could not be installed. No valid plugins were found.", err.Error())
		}
	})

	t.Run("not an archive", func(t *testing.T) {
		dir, _ := newPluginDir(t, host.Options{})
		_, err := dir.Install(ctx, srv.URL+"/junk.zip", false)
		require.Error(t, err)
		var hostErr *addons.HostError
		assert.ErrorAs(t, err, &hostErr)
	})
}
