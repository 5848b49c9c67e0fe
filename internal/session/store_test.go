package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := New(dir)
	if s.IsAuthenticated() {
		t.Fatal("fresh store should be logged out")
	}
	if err := s.SetSession("tok-123", "Alice"); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if !s.IsAuthenticated() || s.Token() != "tok-123" || s.DisplayName() != "Alice" {
		t.Fatalf("state after set: auth=%v token=%q name=%q", s.IsAuthenticated(), s.Token(), s.DisplayName())
	}

	// A second store over the same dir sees the persisted session.
	s2 := New(dir)
	if !s2.IsAuthenticated() || s2.Token() != "tok-123" || s2.DisplayName() != "Alice" {
		t.Fatalf("hydrate: auth=%v token=%q name=%q", s2.IsAuthenticated(), s2.Token(), s2.DisplayName())
	}
}

func TestClearSession(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	s := New(dir)
	if err := s.SetSession("tok", "Bob"); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	s.ClearSession()
	if s.IsAuthenticated() || s.Token() != "" || s.DisplayName() != "" {
		t.Fatal("clear did not empty the store")
	}

	// Both values go together: a reload sees nothing.
	s2 := New(dir)
	if s2.IsAuthenticated() || s2.DisplayName() != "" {
		t.Fatal("cleared session survived reload")
	}
}

func TestNoDirStoreStaysInMemory(t *testing.T) {
	t.Parallel()
	s := New("")
	if err := s.SetSession("tok", "Eve"); err != nil {
		t.Fatalf("SetSession without dir: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("in-memory session should authenticate")
	}
	s.ClearSession()
	if s.IsAuthenticated() {
		t.Fatal("clear failed")
	}
}

func TestCorruptSessionFileStartsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := New(dir)
	if err := s.SetSession("tok", "Mallory"); err != nil {
		t.Fatalf("SetSession: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, sessionFile), []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	s2 := New(dir)
	if s2.IsAuthenticated() {
		t.Fatal("corrupt file must not authenticate")
	}
}

func TestExpiredJWTIsNotAuthenticated(t *testing.T) {
	t.Parallel()

	mk := func(exp time.Time) string {
		claims := jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(exp),
		}
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := tok.SignedString([]byte("k"))
		if err != nil {
			t.Fatal(err)
		}
		return signed
	}

	s := New("")
	if err := s.SetSession(mk(time.Now().Add(-time.Minute)), "Old"); err != nil {
		t.Fatal(err)
	}
	if s.IsAuthenticated() || s.Token() != "" {
		t.Fatal("expired token must count as absent")
	}

	if err := s.SetSession(mk(time.Now().Add(time.Hour)), "Fresh"); err != nil {
		t.Fatal(err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("fresh token must authenticate")
	}
}

func TestSealRoundTrip(t *testing.T) {
	t.Parallel()
	key, err := randBytes(keyLen)
	if err != nil {
		t.Fatal(err)
	}
	blob, err := seal(key, []byte("payload"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := open(key, blob)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}

	other, _ := randBytes(keyLen)
	if _, err := open(other, blob); err == nil {
		t.Fatal("open with wrong key must fail")
	}
}
