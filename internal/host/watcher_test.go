package host_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vrsandeep/vmfa-addons/internal/host"
	"github.com/vrsandeep/vmfa-addons/internal/testutil"
)

func TestWatcherStartStop(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})
	w := host.NewWatcher(dir, 0, nil, nil)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
}

func TestWatcherStopTwice(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})
	w := host.NewWatcher(dir, 0, nil, nil)

	require.NoError(t, w.Start())
	require.NoError(t, w.Stop())
	require.NotPanics(t, func() { _ = w.Stop() })
}

func TestWatcherFlushesHeaderCache(t *testing.T) {
	dir, _ := newPluginDir(t, host.Options{})
	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.0.0")

	h, err := dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", h.Version)

	changed := make(chan struct{}, 4)
	w := host.NewWatcher(dir, 50*time.Millisecond, func() { changed <- struct{}{} }, nil)
	require.NoError(t, w.Start())
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	testutil.WritePlugin(t, dir.Root(), "vmfa-rules-engine", "1.1.0")

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not report the change")
	}

	h, err = dir.ReadHeader(rulesFile)
	require.NoError(t, err)
	require.Equal(t, "1.1.0", h.Version)
}
