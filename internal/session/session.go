// Package session persists the signed-in employee session between runs.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Session is the stored sign-in state. Token is the bearer credential the
// attendance API issued.
type Session struct {
	Token      string `json:"token"`
	EmployeeID string `json:"employee_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Store keeps the session in a JSON file under the data folder. All methods
// are safe for concurrent use.
type Store struct {
	path string

	// dirErr remembers a failed data dir creation so Save reports the real
	// cause instead of a write error on a missing directory.
	dirErr error

	mu  sync.Mutex
	cur *Session
}

// NewStore loads any existing session from dataDir. A file that is missing,
// unreadable, or holds an expired token loads as signed-out.
func NewStore(dataDir string) *Store {
	s := &Store{path: filepath.Join(dataDir, "session.json")}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		s.dirErr = fmt.Errorf("create data dir: %w", err)
		return s
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return s
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Token == "" {
		return s
	}
	if tokenExpired(sess.Token, time.Now()) {
		return s
	}
	s.cur = &sess
	return s
}

// Current returns the active session, or nil when signed out.
func (s *Store) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur == nil {
		return nil
	}
	if tokenExpired(s.cur.Token, time.Now()) {
		s.cur = nil
		return nil
	}
	c := *s.cur
	return &c
}

// Token returns the bearer credential, or "" when signed out. Suitable as an
// api.TokenSource.
func (s *Store) Token() string {
	if cur := s.Current(); cur != nil {
		return cur.Token
	}
	return ""
}

// Save stores a new session and persists it.
func (s *Store) Save(sess Session) error {
	if s.dirErr != nil {
		return s.dirErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = &sess

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Clear signs out: drops the in-memory session and removes the state file.
// Safe to call when already signed out.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = nil
	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// FromToken builds a session, filling the employee identity from the JWT
// claims when the token carries them. Opaque tokens yield a bare session.
func FromToken(token string) Session {
	sess := Session{Token: token}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return sess
	}
	if sub, ok := claims["sub"].(string); ok {
		sess.EmployeeID = sub
	}
	if name, ok := claims["name"].(string); ok {
		sess.Name = name
	}
	return sess
}

// tokenExpired decodes the JWT exp claim without verifying the signature.
// The server is the authority on validity; this only pre-empts a guaranteed
// 401 for a token that is already past its expiry. Tokens that do not parse
// as JWTs, or carry no exp claim, are left to the server to judge.
func tokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now)
}
