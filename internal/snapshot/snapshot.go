// Package snapshot maintains a read-only view of application state
// for tool handlers: the identity the session acts as, plus caches of
// chats and contacts refreshed from the messaging API. Handlers read
// the snapshot; only the refresher mutates it.
package snapshot

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alphahumanxyz/courier/internal/messenger"
)

// Store holds the current snapshot. All accessors are safe for
// concurrent use.
type Store struct {
	api    messenger.API
	logger *slog.Logger

	mu          sync.RWMutex
	me          *messenger.Profile
	chats       []messenger.Chat
	contacts    []messenger.Contact
	refreshedAt time.Time
}

// New creates a snapshot store backed by the given API.
func New(api messenger.API, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{api: api, logger: logger}
}

// Refresh reloads identity and caches from the messaging API. Partial
// failures keep the previous value for the failed section.
func (s *Store) Refresh(ctx context.Context) error {
	me, err := s.api.GetMe(ctx)
	if err != nil {
		return err
	}

	chats, err := s.api.ListChats(ctx, 200)
	if err != nil {
		s.logger.Warn("snapshot: list chats failed, keeping cache", "error", err)
	}
	contacts, err := s.api.ListContacts(ctx)
	if err != nil {
		s.logger.Warn("snapshot: list contacts failed, keeping cache", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.me = me
	if chats != nil {
		s.chats = chats
	}
	if contacts != nil {
		s.contacts = contacts
	}
	s.refreshedAt = time.Now()
	return nil
}

// Me returns the current user's profile, or nil before the first
// successful refresh.
func (s *Store) Me() *messenger.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.me
}

// Chats returns the cached chat list.
func (s *Store) Chats() []messenger.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]messenger.Chat, len(s.chats))
	copy(out, s.chats)
	return out
}

// Contacts returns the cached contact list.
func (s *Store) Contacts() []messenger.Contact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]messenger.Contact, len(s.contacts))
	copy(out, s.contacts)
	return out
}

// FindChatByTitle returns the first cached chat whose title matches
// case-insensitively, or nil.
func (s *Store) FindChatByTitle(title string) *messenger.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.chats {
		if strings.EqualFold(s.chats[i].Title, title) {
			chat := s.chats[i]
			return &chat
		}
	}
	return nil
}

// RefreshedAt returns when the snapshot was last reloaded.
func (s *Store) RefreshedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshedAt
}

// Seed installs a prebuilt snapshot. Intended for tests and for warm
// starts from persisted UI state.
func (s *Store) Seed(me *messenger.Profile, chats []messenger.Chat, contacts []messenger.Contact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.me = me
	s.chats = chats
	s.contacts = contacts
	s.refreshedAt = time.Now()
}
