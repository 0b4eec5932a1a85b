package utils

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/expo25/eventpass/models"
)

// Session mirrors the state a browser tab holds for the duration of the event
// flow: the last-fetched user snapshot and the uploaded photo, if any. It is
// keyed by an opaque token handed out at registration and cleared on logout.
type Session struct {
	User      models.User `json:"user"`
	PhotoPath string      `json:"photo_path,omitempty"`
}

const sessionTTL = 12 * time.Hour

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

var (
	sessionStore   = map[string]sessionEntry{}
	sessionStoreMu sync.Mutex
)

func sessionKey(token string) string {
	return "session:" + token
}

// CreateSession stores a fresh session for the user and returns its token.
func CreateSession(user models.User) string {
	token := uuid.NewString()
	saveSession(token, Session{User: user})
	return token
}

// GetSession returns the session for a token, or false when the token is
// unknown or expired.
func GetSession(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	// Prefer Redis for distributed consistency
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if b, err := rc.Get(ctx, sessionKey(token)).Bytes(); err == nil {
			var s Session
			if json.Unmarshal(b, &s) == nil {
				return s, true
			}
		}
	}
	sessionStoreMu.Lock()
	entry, ok := sessionStore[token]
	if ok && time.Now().After(entry.expiresAt) {
		delete(sessionStore, token)
		ok = false
	}
	sessionStoreMu.Unlock()
	if !ok {
		return Session{}, false
	}
	return entry.session, true
}

// UpdateSessionUser mirrors a freshly persisted user record into the session.
func UpdateSessionUser(token string, user models.User) {
	s, ok := GetSession(token)
	if !ok {
		return
	}
	s.User = user
	saveSession(token, s)
}

// SetSessionPhoto records the uploaded photo path on the session.
func SetSessionPhoto(token, path string) {
	s, ok := GetSession(token)
	if !ok {
		return
	}
	s.PhotoPath = path
	saveSession(token, s)
}

// DeleteSession removes the session, returning the photo path that was
// attached so callers may clean the file up. Logout deletes no backend record.
func DeleteSession(token string) string {
	s, _ := GetSession(token)

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.Del(ctx, sessionKey(token)).Err()
	}
	sessionStoreMu.Lock()
	delete(sessionStore, token)
	sessionStoreMu.Unlock()

	return s.PhotoPath
}

func saveSession(token string, s Session) {
	// Prefer Redis; fall back to in-memory when unavailable (single-instance only)
	if rc := GetRedis(); rc != nil {
		if b, err := json.Marshal(s); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rc.Set(ctx, sessionKey(token), b, sessionTTL).Err(); err == nil {
				return
			}
		}
	}
	sessionStoreMu.Lock()
	sessionStore[token] = sessionEntry{session: s, expiresAt: time.Now().Add(sessionTTL)}
	sessionStoreMu.Unlock()
}
