package store

import (
	"strings"
	"time"
)

// IsPluginActive reports whether pluginFile is active in any scope.
func (s *Store) IsPluginActive(pluginFile string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM active_plugins WHERE plugin_file = ?", pluginFile).Scan(&count)
	return count > 0, err
}

// ActivatePlugin records pluginFile as active in scope. Activating twice
// keeps the original timestamp.
func (s *Store) ActivatePlugin(pluginFile, scope string) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO active_plugins (plugin_file, scope, activated_at) VALUES (?, ?, ?)",
		pluginFile, scope, time.Now().UTC())
	return err
}

// DeactivatePlugin removes the activation of pluginFile in the given scopes.
// Without scopes every activation is removed.
func (s *Store) DeactivatePlugin(pluginFile string, scopes ...string) error {
	if len(scopes) == 0 {
		_, err := s.db.Exec("DELETE FROM active_plugins WHERE plugin_file = ?", pluginFile)
		return err
	}

	args := []interface{}{pluginFile}
	placeholders := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		placeholders = append(placeholders, "?")
		args = append(args, scope)
	}
	query := "DELETE FROM active_plugins WHERE plugin_file = ? AND scope IN (" + strings.Join(placeholders, ", ") + ")"
	_, err := s.db.Exec(query, args...)
	return err
}
