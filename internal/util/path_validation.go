package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnsureDir creates dirPath when missing and checks that it is a writable
// directory.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return fmt.Errorf("folder path cannot be empty")
	}

	info, err := os.Stat(dirPath)
	switch {
	case err == nil && !info.IsDir():
		return fmt.Errorf("path exists but is not a directory: %s", dirPath)
	case os.IsNotExist(err):
		if err := os.MkdirAll(dirPath, 0755); err != nil {
			return fmt.Errorf("cannot create directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("cannot access path: %w", err)
	}

	if err := checkWritePermission(dirPath); err != nil {
		return fmt.Errorf("no write permission for directory: %w", err)
	}
	return nil
}

// checkWritePermission checks if we have write permission to a directory
func checkWritePermission(dirPath string) error {
	tempFile := filepath.Join(dirPath, ".vmfa_temp_check")
	file, err := os.Create(tempFile)
	if err != nil {
		return err
	}
	file.Close()

	os.Remove(tempFile)
	return nil
}

// SafeJoin joins an untrusted relative name onto base and rejects results
// that would escape base, such as "../x" or absolute names.
func SafeJoin(base, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid path %q", name)
	}

	cleanBase := filepath.Clean(base)
	joined := filepath.Join(cleanBase, filepath.FromSlash(name))
	rel, err := filepath.Rel(cleanBase, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes %s", name, base)
	}
	return joined, nil
}

// ValidatePluginFile checks that pluginFile has the "<dir>/<file>.php" form
// and contains no traversal components.
func ValidatePluginFile(pluginFile string) error {
	parts := strings.Split(pluginFile, "/")
	if len(parts) != 2 {
		return fmt.Errorf("plugin file %q must be <folder>/<file>.php", pluginFile)
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." || strings.ContainsAny(p, "\\\x00") {
			return fmt.Errorf("invalid plugin file %q", pluginFile)
		}
	}
	if !strings.HasSuffix(parts[1], ".php") {
		return fmt.Errorf("plugin file %q must end in .php", pluginFile)
	}
	return nil
}
