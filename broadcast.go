package main

import (
	"sync"
)

// subscriptionBuffer bounds how far a subscriber may fall behind before it
// is treated as gone.
const subscriptionBuffer = 8

// Subscription is one listener's handle on a session's snapshot stream.
// The stream is lazy, infinite, and non-restartable: it yields every
// snapshot published after the subscription was taken, in publish order,
// until Cancel is called or the subscriber falls too far behind.
type Subscription struct {
	broadcaster *Broadcaster
	sessionID   string
	playerID    string
	ch          chan *Session

	cancelOnce sync.Once
	closeOnce  sync.Once
}

// Updates yields session snapshots in publish order. The channel is closed
// once the subscription is cancelled.
func (sub *Subscription) Updates() <-chan *Session {
	return sub.ch
}

// SessionID reports the session this subscription is attached to.
func (sub *Subscription) SessionID() string {
	return sub.sessionID
}

// Cancel detaches the subscription and runs the broadcaster's departure
// hook. Cancellation is deliberately not side-effect-free: dropping the
// stream is the one and only signal that a player has left the session.
// Safe to call more than once.
func (sub *Subscription) Cancel() {
	sub.cancelOnce.Do(func() {
		sub.broadcaster.detach(sub)
		sub.closeStream()
		if sub.broadcaster.onCancel != nil {
			sub.broadcaster.onCancel(sub.sessionID, sub.playerID)
		}
	})
}

func (sub *Subscription) closeStream() {
	sub.closeOnce.Do(func() {
		close(sub.ch)
	})
}

// Broadcaster fans session snapshots out to every subscriber of that
// session id, decoupling mutation from notification. Publishes for one
// session are observed by all its subscribers in the same total order;
// ordering across sessions is unspecified.
type Broadcaster struct {
	mu        sync.Mutex
	sessions  map[string]map[*Subscription]struct{}
	delivered map[string]uint64

	// onCancel is the departure hook run when a subscription is cancelled.
	onCancel func(sessionID, playerID string)
}

func newBroadcaster() *Broadcaster {
	return &Broadcaster{
		sessions:  make(map[string]map[*Subscription]struct{}),
		delivered: make(map[string]uint64),
	}
}

// Subscribe attaches a listener to the session's stream. Snapshots
// published before this call are not replayed.
func (b *Broadcaster) Subscribe(sessionID, playerID string) *Subscription {
	sub := &Subscription{
		broadcaster: b,
		sessionID:   sessionID,
		playerID:    playerID,
		ch:          make(chan *Session, subscriptionBuffer),
	}

	b.mu.Lock()
	if b.sessions[sessionID] == nil {
		b.sessions[sessionID] = make(map[*Subscription]struct{})
	}
	b.sessions[sessionID][sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers snap to all current subscribers of the session.
// Mutation and notification are not atomic, so two concurrent writers can
// issue their publishes in the opposite of commit order; the snapshot's
// store-assigned version settles it, and anything at or below the newest
// delivered version is dropped. A zero version predates the store and is
// always delivered. A subscriber whose buffer is full is cancelled rather
// than skipped: the stream either delivers every snapshot in order or
// ends, never gaps.
func (b *Broadcaster) Publish(sessionID string, snap *Session) {
	var stalled []*Subscription

	b.mu.Lock()
	if snap.seq != 0 {
		if snap.seq <= b.delivered[sessionID] {
			b.mu.Unlock()
			return
		}
		b.delivered[sessionID] = snap.seq
	}
	for sub := range b.sessions[sessionID] {
		select {
		case sub.ch <- snap:
		default:
			stalled = append(stalled, sub)
		}
	}
	b.mu.Unlock()

	// Cancellation runs the departure hook, which re-enters the session's
	// writer; it must happen off the publish path.
	for _, sub := range stalled {
		go sub.Cancel()
	}
}

// SubscriberCount reports the number of listeners on a session.
func (b *Broadcaster) SubscriberCount(sessionID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions[sessionID])
}

// CloseSession ends every remaining stream for the session without
// running departure hooks, for teardown after the session is gone.
func (b *Broadcaster) CloseSession(sessionID string) {
	b.mu.Lock()
	subs := b.sessions[sessionID]
	delete(b.sessions, sessionID)
	delete(b.delivered, sessionID)
	b.mu.Unlock()

	for sub := range subs {
		sub.cancelOnce.Do(func() {})
		sub.closeStream()
	}
}

func (b *Broadcaster) detach(sub *Subscription) {
	b.mu.Lock()
	subs := b.sessions[sub.sessionID]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.sessions, sub.sessionID)
	}
	b.mu.Unlock()
}
