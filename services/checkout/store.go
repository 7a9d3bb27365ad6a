package checkout

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one browser's checkout: its cart and its wizard.
type Session struct {
	ID        string
	CreatedAt time.Time
	Wizard    *Wizard

	mu   sync.Mutex
	cart Cart
}

func newSession(guest bool) *Session {
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		Wizard:    NewWizard(guest),
	}
}

// SetItem adds, updates or removes (quantity 0) a cart line.
func (s *Session) SetItem(item CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Set(item)
}

// RemoveItem drops a cart line.
func (s *Session) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cart.Remove(productID)
}

// ClearCart empties the cart and discards the wizard state.
func (s *Session) ClearCart() {
	s.mu.Lock()
	s.cart.Clear()
	s.mu.Unlock()
	s.Wizard.Reset()
}

// Items returns a copy of the cart lines.
func (s *Session) Items() []CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Items()
}

// Subtotal sums the cart.
func (s *Session) Subtotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Subtotal()
}

// storeEntry is a single session with its LRU bookkeeping.
type storeEntry struct {
	session    *Session
	lastAccess time.Time
	element    *list.Element
}

func (e *storeEntry) isExpired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.lastAccess) > ttl
}

// SessionStore is an in-memory LRU cache with a sliding TTL for checkout
// sessions. Nothing is persisted; a restart drops every checkout.
type SessionStore struct {
	mu      sync.Mutex
	entries map[string]*storeEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// StoreStats represents store statistics.
type StoreStats struct {
	Size      int
	MaxSize   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// NewSessionStore creates a store holding at most maxSize sessions, each
// expiring ttl after its last access.
func NewSessionStore(maxSize int, ttl time.Duration) *SessionStore {
	if maxSize <= 0 {
		maxSize = 10000
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &SessionStore{
		entries: make(map[string]*storeEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create starts a new session and stores it.
func (s *SessionStore) Create(guest bool) *Session {
	sess := newSession(guest)
	s.put(sess)
	return sess
}

// Get returns a live session or nil.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[id]
	now := s.now()
	if !exists || entry.isExpired(s.ttl, now) {
		s.misses++
		if exists {
			s.removeEntry(id)
		}
		return nil
	}

	entry.lastAccess = now
	s.lruList.MoveToFront(entry.element)
	s.hits++
	return entry.session
}

func (s *SessionStore) put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, exists := s.entries[sess.ID]; exists {
		entry.session = sess
		entry.lastAccess = s.now()
		s.lruList.MoveToFront(entry.element)
		return
	}

	if s.lruList.Len() >= s.maxSize {
		s.evictLRU()
	}

	entry := &storeEntry{session: sess, lastAccess: s.now()}
	entry.element = s.lruList.PushFront(sess.ID)
	s.entries[sess.ID] = entry
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeEntry(id)
}

// Len returns the number of stored sessions, expired ones included until
// they are cleaned up.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lruList.Len()
}

// Stats returns store statistics.
func (s *SessionStore) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StoreStats{
		Size:      s.lruList.Len(),
		MaxSize:   s.maxSize,
		Hits:      s.hits,
		Misses:    s.misses,
		Evictions: s.evictions,
	}
}

// removeEntry must be called with the lock held.
func (s *SessionStore) removeEntry(id string) {
	if entry, exists := s.entries[id]; exists {
		s.lruList.Remove(entry.element)
		delete(s.entries, id)
	}
}

// evictLRU must be called with the lock held.
func (s *SessionStore) evictLRU() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
	s.evictions++
}

// CleanupExpired removes all expired sessions and returns how many were dropped.
func (s *SessionStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	expired := make([]string, 0)
	for id, entry := range s.entries {
		if entry.isExpired(s.ttl, now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.removeEntry(id)
	}
	return len(expired)
}

// StartCleanupWorker periodically drops expired sessions until stopCh is closed.
func (s *SessionStore) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}, onCleanup func(removed, remaining int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.CleanupExpired()
			if onCleanup != nil {
				onCleanup(removed, s.Len())
			}
		case <-stopCh:
			return
		}
	}
}
