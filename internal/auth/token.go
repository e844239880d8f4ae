package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// TokenLifetime is the length of one token tick. A token stays valid for
// the tick it was issued in and the one after it.
const TokenLifetime = 12 * time.Hour

// TokenIssuer issues and verifies anti-forgery tokens bound to a session
// and an action name.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer returns an issuer keyed with secret. An empty secret is
// replaced by random bytes, which invalidates tokens across restarts.
func NewTokenIssuer(secret string) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate token secret: %w", err)
		}
	}
	return &TokenIssuer{secret: key, now: time.Now}, nil
}

// WithClock replaces the time source. Used by tests.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) tick() int64 {
	return t.now().Unix() / int64(TokenLifetime/time.Second)
}

func (t *TokenIssuer) sign(tick int64, session, action string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(action))
	mac.Write([]byte{'|'})
	mac.Write([]byte(session))
	return hex.EncodeToString(mac.Sum(nil))[:20]
}

// Issue returns the token for session and action in the current tick.
func (t *TokenIssuer) Issue(session, action string) string {
	return t.sign(t.tick(), session, action)
}

// Verify reports whether token was issued for session and action within
// the current or the previous tick.
func (t *TokenIssuer) Verify(session, action, token string) bool {
	if token == "" || session == "" {
		return false
	}
	tick := t.tick()
	for _, candidate := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(t.sign(candidate, session, action))) {
			return true
		}
	}
	return false
}
