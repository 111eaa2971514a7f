// Package session stores opaque continuation tokens for persistent-capable
// providers, keyed by conversation. Tokens are provider-issued and never
// interpreted here.
package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultIdleTimeout expires a session after this much inactivity.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	ProviderID string    `json:"provider_id"`
	Token      string    `json:"token"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Store maps (conversationID, providerID) to a session token. Persisted so
// conversational continuity survives a restart.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[string]entry // keyed by conversation id
	idle    time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore loads persisted sessions from path. A missing or corrupt file
// starts empty.
func NewStore(path string, idle time.Duration, logger *zap.Logger) *Store {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	s := &Store{
		path:    path,
		entries: make(map[string]entry),
		idle:    idle,
		logger:  logger,
		now:     time.Now,
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &s.entries); err != nil {
			logger.Warn("session store corrupt, starting empty", zap.String("path", path))
			s.entries = make(map[string]entry)
		}
	}
	return s
}

// Token returns the continuation token for a conversation, or empty when
// none exists, the token has gone idle, or the conversation has switched
// to a different provider. Both invalidation cases drop the entry.
func (s *Store) Token(conversationID, providerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[conversationID]
	if !ok {
		return ""
	}
	if e.ProviderID != providerID || s.now().Sub(e.LastUsedAt) > s.idle {
		delete(s.entries, conversationID)
		s.persistLocked()
		return ""
	}
	return e.Token
}

// Put stores a token for a conversation, stamping activity time.
func (s *Store) Put(conversationID, providerID, token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[conversationID] = entry{
		ProviderID: providerID,
		Token:      token,
		LastUsedAt: s.now(),
	}
	s.persistLocked()
}

// Invalidate drops a conversation's session.
func (s *Store) Invalidate(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[conversationID]; ok {
		delete(s.entries, conversationID)
		s.persistLocked()
	}
}

// Flush persists the store.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

func (s *Store) persistLocked() {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		s.logger.Error("failed to marshal session store", zap.Error(err))
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		s.logger.Error("failed to create session store dir", zap.Error(err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		s.logger.Error("failed to write session store", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("failed to replace session store", zap.Error(err))
	}
}
