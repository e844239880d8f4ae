package testutil

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// PluginSource returns the main file contents of a test plugin.
func PluginSource(name, version string) string {
	return fmt.Sprintf("<?php\n/**\n * Plugin Name: %s\n * Description: Test plugin.\n * Version: %s\n * Author: Test\n * Requires at least: 6.8\n * Requires PHP: 8.3\n */\n", name, version)
}

// WritePlugin creates <root>/<slug>/<slug>.php declaring version.
func WritePlugin(t *testing.T, root, slug, version string) string {
	t.Helper()
	dir := filepath.Join(root, slug)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create plugin dir: %v", err)
	}
	path := filepath.Join(dir, slug+".php")
	if err := os.WriteFile(path, []byte(PluginSource(slug, version)), 0644); err != nil {
		t.Fatalf("Failed to write plugin file: %v", err)
	}
	return path
}

// CreateZip builds an in-memory zip archive from name/content pairs. Names
// ending in "/" become directory entries.
func CreateZip(t *testing.T, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry '%s' in zip: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("Failed to write entry '%s': %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to finalize zip: %v", err)
	}
	return buf.Bytes()
}

// CreatePluginZip builds the release package of slug at version.
func CreatePluginZip(t *testing.T, slug, version string) []byte {
	t.Helper()
	return CreateZip(t, map[string]string{
		slug + "/":                  "",
		slug + "/" + slug + ".php":  PluginSource(slug, version),
		slug + "/readme.txt":        "=== " + slug + " ===\nStable tag: " + version + "\n",
		slug + "/includes/main.php": "<?php\n",
	})
}
