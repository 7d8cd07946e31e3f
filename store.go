package main

import (
	"sync"
	"time"
)

// sessionEntry pairs a session snapshot with the lock that serializes its
// writers. removed marks entries that were deleted while a writer waited,
// so a late Update cannot resurrect stale state.
type sessionEntry struct {
	mu         sync.Mutex
	session    *Session
	lastActive time.Time
	removed    bool
}

// SessionStore is the authoritative mapping from session id to session
// state, and the only writer of it. All mutation goes through Update,
// which holds a per-session lock and replaces the whole value atomically,
// so readers and subscribers only ever see complete snapshots. Operations
// on different sessions never contend beyond the brief map lookups.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

func newSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*sessionEntry),
	}
}

// Get returns the current snapshot, or ErrSessionNotFound. Not retryable;
// an unknown id is a client error.
func (st *SessionStore) Get(id string) (*Session, error) {
	st.mu.RLock()
	entry, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.removed {
		return nil, ErrSessionNotFound
	}
	return entry.session, nil
}

// Create stores fresh under id, or returns the existing session if the id
// is already present.
func (st *SessionStore) Create(id string, fresh *Session) *Session {
	for {
		st.mu.Lock()
		entry, ok := st.sessions[id]
		if !ok {
			entry = &sessionEntry{session: fresh, lastActive: time.Now()}
			st.sessions[id] = entry
			st.mu.Unlock()
			return fresh
		}
		st.mu.Unlock()

		entry.mu.Lock()
		if !entry.removed {
			existing := entry.session
			entry.mu.Unlock()
			return existing
		}
		entry.mu.Unlock()
		// Entry was reaped between lookup and lock; retry against the map.
	}
}

// Replace swaps in next as the session's snapshot.
func (st *SessionStore) Replace(id string, next *Session) error {
	_, err := st.Update(id, func(*Session) (*Session, error) {
		return next, nil
	})
	return err
}

// Update runs fn against the current snapshot under the session's write
// lock and stores the returned session. If fn errors, nothing changes. A
// session whose player set becomes empty is removed from the store rather
// than stored, so a later join with the same id starts from a fresh lobby.
// Returns the stored snapshot, or nil when the session was removed.
//
// Each stored snapshot is stamped with the next version in the session's
// sequence, still under the entry lock, so version order always equals
// commit order even though callers publish after the lock is released.
func (st *SessionStore) Update(id string, fn func(*Session) (*Session, error)) (*Session, error) {
	for {
		st.mu.RLock()
		entry, ok := st.sessions[id]
		st.mu.RUnlock()
		if !ok {
			return nil, ErrSessionNotFound
		}

		entry.mu.Lock()
		if entry.removed {
			entry.mu.Unlock()
			continue
		}

		next, err := fn(entry.session)
		if err != nil {
			entry.mu.Unlock()
			return nil, err
		}

		if next.PlayerCount() == 0 {
			entry.removed = true
			entry.mu.Unlock()
			st.mu.Lock()
			delete(st.sessions, id)
			st.mu.Unlock()
			return nil, nil
		}

		stamped := next.clone()
		stamped.seq = entry.session.seq + 1
		entry.session = stamped
		entry.lastActive = time.Now()
		entry.mu.Unlock()
		return stamped, nil
	}
}

// Remove deletes the session outright.
func (st *SessionStore) Remove(id string) {
	st.mu.Lock()
	entry, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.removed = true
	entry.mu.Unlock()
}

// Len reports the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Stale returns ids of sessions idle since before cutoff. Used by the
// reaper to clear sessions that were created but never progressed.
func (st *SessionStore) Stale(cutoff time.Time) []string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var ids []string
	for id, entry := range st.sessions {
		entry.mu.Lock()
		idle := entry.lastActive.Before(cutoff)
		entry.mu.Unlock()
		if idle {
			ids = append(ids, id)
		}
	}
	return ids
}
