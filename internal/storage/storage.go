// Package storage holds the editor's open draft sessions and the blob stores
// images are uploaded to.
package storage

import (
	"time"

	"github.com/larder-app/larder/internal/editor"
	"github.com/patrickmn/go-cache"
)

const (
	DefaultSessionTTL = 2 * time.Hour
	cleanupInterval   = 10 * time.Minute
)

// SessionStore keeps open draft sessions in memory. Sessions idle longer
// than the TTL are evicted and discarded.
type SessionStore struct {
	sessions *cache.Cache
	ttl      time.Duration
}

func New(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	c := cache.New(ttl, cleanupInterval)
	c.OnEvicted(func(_ string, v any) {
		if s, ok := v.(*editor.Session); ok {
			s.Discard()
		}
	})
	return &SessionStore{sessions: c, ttl: ttl}
}

// Get returns the session and refreshes its expiry.
func (s *SessionStore) Get(sessionID string) (*editor.Session, bool) {
	v, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	session := v.(*editor.Session)
	s.sessions.Set(sessionID, session, s.ttl)
	return session, true
}

func (s *SessionStore) Set(sessionID string, session *editor.Session) {
	s.sessions.Set(sessionID, session, s.ttl)
}

func (s *SessionStore) GetAll() map[string]*editor.Session {
	items := s.sessions.Items()
	result := make(map[string]*editor.Session, len(items))
	for k, item := range items {
		result[k] = item.Object.(*editor.Session)
	}
	return result
}

// Delete removes a session and discards it.
func (s *SessionStore) Delete(sessionID string) {
	s.sessions.Delete(sessionID)
}
