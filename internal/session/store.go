// Package session holds the authenticated session: the bearer token and the
// display name. Both live in memory and in a sealed file under the user
// config dir, so a session survives process restarts on the same machine.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionFile = "session.bin"
	keyFile     = "session.key"
)

type sessionFileData struct {
	AccessToken string    `json:"access_token"`
	UserName    string    `json:"user_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Store owns the session pair. Token and display name are always written and
// cleared together, never independently. The zero Dir disables persistence
// (in-memory only), which is how non-interactive contexts run.
type Store struct {
	Dir string

	token     string
	userName  string
	expiresAt time.Time
}

// DefaultDir returns the per-user config dir for the session file.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "incident-watch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "incident-watch")
}

// New builds a Store rooted at dir and hydrates it from disk. A missing or
// unreadable file is not an error: the store just starts logged out.
func New(dir string) *Store {
	s := &Store{Dir: dir}
	s.hydrate()
	return s
}

func (s *Store) sessionPath() string { return filepath.Join(s.Dir, sessionFile) }
func (s *Store) keyPath() string     { return filepath.Join(s.Dir, keyFile) }

func (s *Store) hydrate() {
	if s.Dir == "" {
		return
	}
	key, err := os.ReadFile(s.keyPath())
	if err != nil || len(key) != keyLen {
		return
	}
	blob, err := os.ReadFile(s.sessionPath())
	if err != nil {
		return
	}
	plain, err := open(key, blob)
	if err != nil {
		return
	}
	var data sessionFileData
	if err := json.Unmarshal(plain, &data); err != nil {
		return
	}
	s.token = data.AccessToken
	s.userName = data.UserName
	s.expiresAt = data.ExpiresAt
}

// loadOrCreateKey returns the per-install sealing key, creating it on first use.
func (s *Store) loadOrCreateKey() ([]byte, error) {
	if key, err := os.ReadFile(s.keyPath()); err == nil && len(key) == keyLen {
		return key, nil
	}
	key, err := randBytes(keyLen)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(s.keyPath(), key, 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// SetSession stores the token and display name in memory and on disk. The
// expiry comes from the token's JWT exp claim when present; opaque tokens
// never expire locally.
func (s *Store) SetSession(token, userName string) error {
	s.token = token
	s.userName = userName
	s.expiresAt = tokenExpiry(token)
	if s.Dir == "" {
		return nil
	}
	key, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}
	plain, err := json.Marshal(sessionFileData{
		AccessToken: token,
		UserName:    userName,
		ExpiresAt:   s.expiresAt,
	})
	if err != nil {
		return err
	}
	blob, err := seal(key, plain)
	if err != nil {
		return err
	}
	return os.WriteFile(s.sessionPath(), blob, 0o600)
}

// ClearSession removes both values from memory and disk.
func (s *Store) ClearSession() {
	s.token = ""
	s.userName = ""
	s.expiresAt = time.Time{}
	if s.Dir != "" {
		_ = os.Remove(s.sessionPath())
	}
}

// IsAuthenticated reports whether a usable token is held. A token whose JWT
// exp has passed counts as absent.
func (s *Store) IsAuthenticated() bool {
	if s.token == "" {
		return false
	}
	if !s.expiresAt.IsZero() && time.Now().After(s.expiresAt) {
		return false
	}
	return true
}

// Token returns the bearer token, or "" when logged out.
func (s *Store) Token() string {
	if !s.IsAuthenticated() {
		return ""
	}
	return s.token
}

// DisplayName returns the stored name, or "" when none is held.
func (s *Store) DisplayName() string { return s.userName }

// tokenExpiry parses the exp claim without signature validation; the server
// is the authority, this only avoids sending tokens we know are stale.
func tokenExpiry(token string) time.Time {
	var claims jwt.RegisteredClaims
	_, _ = jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) { return nil, nil },
		jwt.WithoutClaimsValidation(),
	)
	if claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Time{}
}
