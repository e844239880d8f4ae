package store

import (
	"database/sql"
	"errors"
	"time"
)

// GetTransient returns the cached value under key. Expired rows are deleted
// on read and reported as missing.
func (s *Store) GetTransient(key string) (string, bool, error) {
	var value string
	var expiresAt sql.NullTime
	err := s.db.QueryRow("SELECT value, expires_at FROM transients WHERE key = ?", key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	if expiresAt.Valid && !time.Now().Before(expiresAt.Time) {
		_, err := s.db.Exec("DELETE FROM transients WHERE key = ?", key)
		return "", false, err
	}
	return value, true, nil
}

// SetTransient stores value under key for ttl. A ttl of zero never expires.
func (s *Store) SetTransient(key, value string, ttl time.Duration) error {
	now := time.Now().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}
	query := `
		INSERT INTO transients (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at;
	`
	_, err := s.db.Exec(query, key, value, expiresAt, now)
	return err
}

// DeleteTransient removes key. Missing keys are not an error.
func (s *Store) DeleteTransient(key string) error {
	_, err := s.db.Exec("DELETE FROM transients WHERE key = ?", key)
	return err
}

// PurgeExpiredTransients deletes every expired row and reports how many
// were removed.
func (s *Store) PurgeExpiredTransients() (int64, error) {
	res, err := s.db.Exec("DELETE FROM transients WHERE expires_at IS NOT NULL AND expires_at <= ?", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TransientCache adapts the transients table to the add-on cache interface.
type TransientCache struct {
	store *Store
	onErr func(op, key string, err error)
}

// Transients returns the transients table as a key/value cache. Read
// failures are reported to onErr, when set, and treated as misses.
func (s *Store) Transients(onErr func(op, key string, err error)) *TransientCache {
	return &TransientCache{store: s, onErr: onErr}
}

func (c *TransientCache) Get(key string) (string, bool) {
	value, ok, err := c.store.GetTransient(key)
	if err != nil {
		if c.onErr != nil {
			c.onErr("get", key, err)
		}
		return "", false
	}
	return value, ok
}

func (c *TransientCache) Set(key, value string, ttl time.Duration) error {
	return c.store.SetTransient(key, value, ttl)
}

func (c *TransientCache) Delete(key string) error {
	return c.store.DeleteTransient(key)
}
