package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Game composes the session store, the broadcaster, and the optional
// archival sink into the operation set everything else talks to: Join,
// Start, AnswerQuestion, RateAnswer, Subscribe. Every mutating operation
// either fully applies and publishes exactly one post-mutation snapshot,
// or fails with no visible state change.
type Game struct {
	cfg       *Config
	store     *SessionStore
	events    *Broadcaster
	archive   *Archiver
	questions []string

	lobbyMu       sync.Mutex
	publicLobbyID string
}

func newGame(cfg *Config, archive *Archiver, questions []string) *Game {
	g := &Game{
		cfg:       cfg,
		store:     newSessionStore(),
		events:    newBroadcaster(),
		archive:   archive,
		questions: questions,
	}
	g.events.onCancel = g.leave
	return g
}

// PublicLobbyID resolves the current public lobby session id, minting one
// if none is open. The session itself is created lazily on first join,
// and the id is consumed once that session starts.
func (g *Game) PublicLobbyID() string {
	g.lobbyMu.Lock()
	defer g.lobbyMu.Unlock()

	if g.publicLobbyID == "" {
		g.publicLobbyID = uuid.NewString()
	}
	return g.publicLobbyID
}

// consumePublicLobby forgets the public lobby id once its session has
// started or died, so the next public join opens a fresh lobby.
func (g *Game) consumePublicLobby(sessionID string) {
	g.lobbyMu.Lock()
	if g.publicLobbyID == sessionID {
		g.publicLobbyID = ""
	}
	g.lobbyMu.Unlock()
}

// Join admits a player into the session, creating it if needed; an empty
// sessionID resolves to the public lobby. Joining is idempotent by player
// id. Joining a session already past LOBBY is tolerated with a loud log
// rather than rejected; the late joiner holds no assignment and so cannot
// answer this round. Returns the published snapshot.
func (g *Game) Join(sessionID, playerID, politics string) *Session {
	if sessionID == "" {
		sessionID = g.PublicLobbyID()
	}

	var started bool

	for {
		g.store.Create(sessionID, newSession(sessionID, g.randomQuestion()))

		snap, err := g.store.Update(sessionID, func(s *Session) (*Session, error) {
			started = false

			if s.Phase() != PhaseLobby {
				log.Printf("%s | GAMES: Player %s joined session %s mid-round (phase %s)",
					time.Now().Format(logDate), playerID, sessionID, s.Phase())
			}
			if s.HasPlayer(playerID) {
				return s, nil
			}

			next := s.withPlayer(Player{ID: playerID, Politics: politics})

			if next.Phase() == PhaseLobby && g.cfg.autoStart > 0 && next.PlayerCount() >= g.cfg.autoStart {
				next = next.toAnswering(drawAssignments(next.Players()))
				started = true
			}

			return next, nil
		})
		if errors.Is(err, ErrSessionNotFound) {
			// Session was reaped between creation and update; start over.
			continue
		}

		if started {
			g.consumePublicLobby(sessionID)
			logf(g.cfg, "GAMES: Session %s auto-started with %d players", sessionID, snap.PlayerCount())
		} else {
			logf(g.cfg, "GAMES: Player %s joined session %s", playerID, sessionID)
		}

		g.events.Publish(sessionID, snap)
		return snap
	}
}

// Start begins the round: every current player draws a playingAs target
// uniformly at random, with replacement, from the current player set.
// Self-assignment is possible and intended. Legal only from LOBBY.
func (g *Game) Start(sessionID string) error {
	snap, err := g.store.Update(sessionID, func(s *Session) (*Session, error) {
		if s.Phase() != PhaseLobby {
			log.Printf("%s | GAMES: Start rejected for session %s in phase %s",
				time.Now().Format(logDate), sessionID, s.Phase())
			return nil, ErrInvalidPhase
		}
		return s.toAnswering(drawAssignments(s.Players())), nil
	})
	if err != nil {
		return err
	}

	g.consumePublicLobby(sessionID)
	logf(g.cfg, "GAMES: Session %s started with %d players", sessionID, snap.PlayerCount())

	g.events.Publish(sessionID, snap)
	return nil
}

// Subscribe opens the session's snapshot stream for a player. Cancelling
// the subscription is the player-leave signal; there is no separate leave
// call.
func (g *Game) Subscribe(sessionID, playerID string) (*Subscription, error) {
	if _, err := g.store.Get(sessionID); err != nil {
		return nil, err
	}
	return g.events.Subscribe(sessionID, playerID), nil
}

// leave is the departure hook run when a subscription is cancelled: the
// player is removed from the roster, the session is destroyed if that
// leaves it empty, and otherwise the reduced roster is published. A
// departure can also be what completes the current phase, when the leaver
// was the last player the round was waiting on, so both completion
// conditions are re-evaluated against the reduced roster.
func (g *Game) leave(sessionID, playerID string) {
	var scored bool

	snap, err := g.store.Update(sessionID, func(s *Session) (*Session, error) {
		scored = false

		next := s.withoutPlayer(playerID)

		if next.Phase() == PhaseAnswer && next.allAssignedAnswered() {
			next = next.toRating()
		}
		if next.Phase() == PhaseRate && next.allRatingsIn() {
			next = next.toScore(computeScores(next.answers))
			scored = true
		}

		return next, nil
	})
	if err != nil {
		// Session already gone; nothing to clean up.
		return
	}

	if snap == nil {
		g.consumePublicLobby(sessionID)
		g.events.CloseSession(sessionID)
		logf(g.cfg, "GAMES: Session %s emptied and was removed", sessionID)
		return
	}

	logf(g.cfg, "GAMES: Player %s left session %s (phase now %s)", playerID, sessionID, snap.Phase())
	g.events.Publish(sessionID, snap)

	if scored {
		g.archive.ArchiveScore(snap)
	}
}

// reapIdleSessions removes sessions idle past the configured timeout,
// along with any remaining subscriptions.
func (g *Game) reapIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.sessionTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-g.cfg.sessionTimeout)
			for _, id := range g.store.Stale(cutoff) {
				g.store.Remove(id)
				g.consumePublicLobby(id)
				g.events.CloseSession(id)
				logf(g.cfg, "GAMES: Idle session %s reaped (%d still live)", id, g.store.Len())
			}
		}
	}
}

func (g *Game) randomQuestion() string {
	if len(g.questions) == 0 {
		return ""
	}
	return g.questions[rand.Intn(len(g.questions))]
}

// drawAssignments picks each player's target independently, so nothing
// stops two players from impersonating the same person, or a player from
// drawing themselves.
func drawAssignments(players map[string]Player) map[string]Assignment {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}

	assignments := make(map[string]Assignment, len(ids))
	for _, id := range ids {
		assignments[id] = Assignment{PlayingAs: ids[rand.Intn(len(ids))]}
	}
	return assignments
}
