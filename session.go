package main

import (
	"github.com/segmentio/encoding/json"
)

// Phase tags a session's payload. Transitions are strictly
// LOBBY → ANSWER_QUESTION → RATE_ANSWERS → SCORE.
type Phase string

const (
	PhaseLobby  Phase = "LOBBY"
	PhaseAnswer Phase = "ANSWER_QUESTION"
	PhaseRate   Phase = "RATE_ANSWERS"
	PhaseScore  Phase = "SCORE"
)

// Player is created on join and immutable for the session's lifetime.
// Politics is the free-text self-description others must impersonate.
type Player struct {
	ID       string `json:"id"`
	Politics string `json:"politics"`
}

// Assignment is the secret identity a player answers as this round.
// Self-assignment is valid, and two players may share a target.
type Assignment struct {
	PlayingAs string `json:"playingAs"`
}

// Rating is one peer judgment of an answer, in [-2, 2].
type Rating struct {
	Rater  string `json:"rater"`
	Rating int    `json:"rating"`
}

const (
	RatingMin = -2
	RatingMax = 2
)

// PlayerAnswer merges a player's assignment with their submitted answer.
// Ratings accumulate in arrival order during RATE_ANSWERS.
type PlayerAnswer struct {
	PlayingAs string   `json:"playingAs"`
	Answer    string   `json:"answer"`
	Ratings   []Rating `json:"ratings"`
}

// Scoreboard holds the two scoring views plus their per-player sum.
type Scoreboard struct {
	AtImposing map[string]int `json:"atImposing"`
	AtGuessing map[string]int `json:"atGuessing"`
	Total      map[string]int `json:"total"`
}

// Session is the authoritative state of one game, a tagged union keyed by
// phase. Phase-specific payloads are unexported and only ever set by the
// transition constructors below, so a snapshot can never carry fields that
// are illegal for its phase. Values are immutable: every mutation produces
// a fresh Session, letting snapshots be handed to subscribers as-is.
type Session struct {
	id       string
	question string
	players  map[string]Player

	// seq is the store-assigned version, increasing with every stored
	// mutation. Zero marks a snapshot that has not been stored yet.
	seq uint64

	phase       Phase
	assignments map[string]Assignment   // ANSWER_QUESTION only
	answers     map[string]PlayerAnswer // ANSWER_QUESTION through SCORE
	scores      *Scoreboard             // SCORE only
}

func newSession(id, question string) *Session {
	return &Session{
		id:       id,
		question: question,
		players:  make(map[string]Player),
		phase:    PhaseLobby,
	}
}

func (s *Session) ID() string       { return s.id }
func (s *Session) Question() string { return s.question }
func (s *Session) Phase() Phase     { return s.phase }

// Players returns a copy of the roster.
func (s *Session) Players() map[string]Player {
	players := make(map[string]Player, len(s.players))
	for id, p := range s.players {
		players[id] = p
	}
	return players
}

func (s *Session) PlayerCount() int { return len(s.players) }

func (s *Session) HasPlayer(playerID string) bool {
	_, ok := s.players[playerID]
	return ok
}

// AssignmentFor reports a player's assignment; ok is false outside
// ANSWER_QUESTION or for players who joined after the round started.
func (s *Session) AssignmentFor(playerID string) (Assignment, bool) {
	if s.phase != PhaseAnswer {
		return Assignment{}, false
	}
	a, ok := s.assignments[playerID]
	return a, ok
}

// Answers returns a copy of the recorded answers; ok is false in LOBBY.
func (s *Session) Answers() (map[string]PlayerAnswer, bool) {
	if s.phase == PhaseLobby {
		return nil, false
	}
	answers := make(map[string]PlayerAnswer, len(s.answers))
	for id, a := range s.answers {
		ratings := make([]Rating, len(a.Ratings))
		copy(ratings, a.Ratings)
		a.Ratings = ratings
		answers[id] = a
	}
	return answers, true
}

// Scores reports the final scoreboard; ok is false before SCORE.
func (s *Session) Scores() (*Scoreboard, bool) {
	if s.phase != PhaseScore {
		return nil, false
	}
	return s.scores, true
}

// clone copies the session shallowly, deep-copying only the map that the
// caller is about to replace wholesale.
func (s *Session) clone() *Session {
	next := *s
	return &next
}

func (s *Session) withPlayer(p Player) *Session {
	next := s.clone()
	next.players = make(map[string]Player, len(s.players)+1)
	for id, existing := range s.players {
		next.players[id] = existing
	}
	next.players[p.ID] = p
	return next
}

func (s *Session) withoutPlayer(playerID string) *Session {
	next := s.clone()
	next.players = make(map[string]Player, len(s.players))
	for id, existing := range s.players {
		if id == playerID {
			continue
		}
		next.players[id] = existing
	}
	return next
}

// toAnswering transitions LOBBY → ANSWER_QUESTION with the drawn
// assignments and an empty answer set.
func (s *Session) toAnswering(assignments map[string]Assignment) *Session {
	next := s.clone()
	next.phase = PhaseAnswer
	next.assignments = assignments
	next.answers = make(map[string]PlayerAnswer)
	return next
}

func (s *Session) withAnswer(playerID string, answer PlayerAnswer) *Session {
	next := s.clone()
	next.answers = make(map[string]PlayerAnswer, len(s.answers)+1)
	for id, existing := range s.answers {
		next.answers[id] = existing
	}
	next.answers[playerID] = answer
	return next
}

// toRating transitions ANSWER_QUESTION → RATE_ANSWERS. Assignments are
// dropped; each answer already carries its playingAs.
func (s *Session) toRating() *Session {
	next := s.clone()
	next.phase = PhaseRate
	next.assignments = nil
	return next
}

func (s *Session) withRating(playerBeingRated string, r Rating) *Session {
	next := s.clone()
	next.answers = make(map[string]PlayerAnswer, len(s.answers))
	for id, existing := range s.answers {
		if id == playerBeingRated {
			ratings := make([]Rating, len(existing.Ratings), len(existing.Ratings)+1)
			copy(ratings, existing.Ratings)
			existing.Ratings = append(ratings, r)
		}
		next.answers[id] = existing
	}
	return next
}

// toScore transitions RATE_ANSWERS → SCORE. Terminal; scores are computed
// once and never revised.
func (s *Session) toScore(scores *Scoreboard) *Session {
	next := s.clone()
	next.phase = PhaseScore
	next.scores = scores
	return next
}

// MarshalJSON emits exactly the fields legal for the current phase, so the
// wire shape is the same discriminated union clients match on.
func (s *Session) MarshalJSON() ([]byte, error) {
	snapshot := map[string]any{
		"id":       s.id,
		"question": s.question,
		"players":  s.players,
		"phase":    s.phase,
	}

	switch s.phase {
	case PhaseAnswer:
		snapshot["assignments"] = s.assignments
		snapshot["playerAnswers"] = s.answers
	case PhaseRate:
		snapshot["playerAnswers"] = s.answers
	case PhaseScore:
		snapshot["playerAnswers"] = s.answers
		snapshot["scores"] = s.scores
	}

	return json.Marshal(snapshot)
}
