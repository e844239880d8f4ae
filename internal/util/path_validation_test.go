package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureDir(t *testing.T) {
	tempDir := t.TempDir()

	tests := []struct {
		name        string
		path        string
		expectError bool
		setup       func(path string)
	}{
		{
			name: "existing directory",
			path: filepath.Join(tempDir, "existing"),
			setup: func(path string) {
				os.MkdirAll(path, 0755)
			},
		},
		{
			name: "missing nested directory is created",
			path: filepath.Join(tempDir, "nested", "deep", "plugins"),
		},
		{
			name:        "empty path",
			path:        "",
			expectError: true,
		},
		{
			name:        "path is a file",
			path:        filepath.Join(tempDir, "file.txt"),
			expectError: true,
			setup: func(path string) {
				os.WriteFile(path, []byte("x"), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(tt.path)
			}
			err := EnsureDir(tt.path)
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error for %q", tt.path)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			info, err := os.Stat(tt.path)
			if err != nil || !info.IsDir() {
				t.Errorf("expected directory at %s", tt.path)
			}
			if _, err := os.Stat(filepath.Join(tt.path, ".vmfa_temp_check")); !os.IsNotExist(err) {
				t.Errorf("write check file was left behind")
			}
		})
	}
}

func TestSafeJoin(t *testing.T) {
	base := filepath.Join(t.TempDir(), "staging")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain file", "plugin/plugin.php", filepath.Join(base, "plugin", "plugin.php"), false},
		{"directory entry", "plugin/", filepath.Join(base, "plugin"), false},
		{"inner dot segments", "plugin/./a/../b.php", filepath.Join(base, "plugin", "b.php"), false},
		{"backslashes", "plugin\\inc\\a.php", filepath.Join(base, "plugin", "inc", "a.php"), false},
		{"parent traversal", "../evil.php", "", true},
		{"nested traversal", "plugin/../../evil.php", "", true},
		{"absolute", "/etc/passwd", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SafeJoin(base, tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafeJoin(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("SafeJoin(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidatePluginFile(t *testing.T) {
	valid := []string{
		"vmfa-rules-engine/vmfa-rules-engine.php",
		"a/b.php",
	}
	for _, p := range valid {
		if err := ValidatePluginFile(p); err != nil {
			t.Errorf("ValidatePluginFile(%q) unexpected error: %v", p, err)
		}
	}

	invalid := []string{
		"",
		"plugin.php",
		"../plugin/plugin.php",
		"a/b/c.php",
		"a/b.txt",
		"./b.php",
		"a\\x/b.php",
	}
	for _, p := range invalid {
		if err := ValidatePluginFile(p); err == nil {
			t.Errorf("ValidatePluginFile(%q) expected error", p)
		}
	}
}
