package main

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

var testQuestions = []string{"q1", "q2", "q3"}

func newTestGame(autoStart int) *Game {
	cfg := &Config{
		autoStart:      autoStart,
		sessionTimeout: time.Hour,
	}
	return newGame(cfg, nil, testQuestions)
}

func joinPlayers(g *Game, sessionID string, n int) {
	for i := 0; i < n; i++ {
		g.Join(sessionID, fmt.Sprintf("p%d", i), fmt.Sprintf("politics %d", i))
	}
}

func TestJoinCreatesLobbyWithDrawnQuestion(t *testing.T) {
	g := newTestGame(0)

	snap := g.Join("s1", "a", "left")

	if snap.Phase() != PhaseLobby {
		t.Errorf("phase = %s, want LOBBY", snap.Phase())
	}
	if !snap.HasPlayer("a") {
		t.Error("joining player missing from roster")
	}
	if !slices.Contains(testQuestions, snap.Question()) {
		t.Errorf("question %q not drawn from the prompt set", snap.Question())
	}

	stored, err := g.store.Get("s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored != snap {
		t.Error("returned snapshot is not the stored one")
	}
}

func TestJoinIsIdempotentByPlayerID(t *testing.T) {
	g := newTestGame(0)

	g.Join("s1", "a", "left")
	snap := g.Join("s1", "a", "something else entirely")

	if snap.PlayerCount() != 1 {
		t.Errorf("player count = %d, want 1", snap.PlayerCount())
	}
	if politics := snap.Players()["a"].Politics; politics != "left" {
		t.Errorf("rejoin overwrote politics: %q", politics)
	}
}

func TestStartAssignsEveryPlayerFromStartTimeRoster(t *testing.T) {
	g := newTestGame(0)
	joinPlayers(g, "s1", 4)

	if err := g.Start("s1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap, _ := g.store.Get("s1")
	if snap.Phase() != PhaseAnswer {
		t.Fatalf("phase = %s, want ANSWER_QUESTION", snap.Phase())
	}

	for id := range snap.Players() {
		assignment, ok := snap.AssignmentFor(id)
		if !ok {
			t.Errorf("player %s has no assignment", id)
			continue
		}
		if !snap.HasPlayer(assignment.PlayingAs) {
			t.Errorf("player %s assigned to %s, who is not in the session", id, assignment.PlayingAs)
		}
	}
}

func TestStartTwiceFailsWithInvalidPhase(t *testing.T) {
	g := newTestGame(0)
	joinPlayers(g, "s1", 3)

	if err := g.Start("s1"); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := g.Start("s1"); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("second Start = %v, want ErrInvalidPhase", err)
	}
}

func TestStartUnknownSessionFails(t *testing.T) {
	g := newTestGame(0)

	if err := g.Start("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Start = %v, want ErrSessionNotFound", err)
	}
}

func TestAutoStartAtThreshold(t *testing.T) {
	g := newTestGame(3)

	g.Join("s1", "a", "x")
	g.Join("s1", "b", "y")

	snap, _ := g.store.Get("s1")
	if snap.Phase() != PhaseLobby {
		t.Fatalf("phase = %s before threshold, want LOBBY", snap.Phase())
	}

	snap = g.Join("s1", "c", "z")
	if snap.Phase() != PhaseAnswer {
		t.Errorf("phase = %s at threshold, want ANSWER_QUESTION", snap.Phase())
	}
	for id := range snap.Players() {
		if _, ok := snap.AssignmentFor(id); !ok {
			t.Errorf("auto-start left player %s without an assignment", id)
		}
	}
}

func TestMidRoundJoinGetsNoAssignment(t *testing.T) {
	g := newTestGame(0)
	joinPlayers(g, "s1", 3)
	if err := g.Start("s1"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	snap := g.Join("s1", "late", "latecomer")

	if !snap.HasPlayer("late") {
		t.Error("late joiner missing from roster")
	}
	if _, ok := snap.AssignmentFor("late"); ok {
		t.Error("late joiner received an assignment")
	}

	if err := g.AnswerQuestion("s1", "late", "hot take"); !errors.Is(err, ErrPlayerNotAssigned) {
		t.Errorf("late answer = %v, want ErrPlayerNotAssigned", err)
	}
}

func TestLastUnsubscribeDestroysSession(t *testing.T) {
	g := newTestGame(0)

	g.Join("s1", "a", "left")
	sub, err := g.Subscribe("s1", "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	sub.Cancel()

	if _, err := g.store.Get("s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get after last unsubscribe = %v, want ErrSessionNotFound", err)
	}

	// A fresh join under the same id starts from a clean lobby.
	snap := g.Join("s1", "b", "right")
	if snap.Phase() != PhaseLobby || snap.PlayerCount() != 1 {
		t.Errorf("rejoined session: phase %s with %d players, want fresh LOBBY", snap.Phase(), snap.PlayerCount())
	}
}

func TestUnsubscribePublishesReducedRoster(t *testing.T) {
	g := newTestGame(0)

	g.Join("s1", "a", "left")
	g.Join("s1", "b", "right")

	watcher, err := g.Subscribe("s1", "b")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	leaver, err := g.Subscribe("s1", "a")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	leaver.Cancel()

	got := collect(t, watcher, 1)
	if got[0].HasPlayer("a") {
		t.Error("published roster still contains the departed player")
	}
	if !got[0].HasPlayer("b") {
		t.Error("published roster lost the remaining player")
	}
}

func TestDepartureDuringAnswerDoesNotGateCompletion(t *testing.T) {
	g := newTestGame(0)
	s := newSession("s1", "q1").
		withPlayer(Player{ID: "a", Politics: "l"}).
		withPlayer(Player{ID: "b", Politics: "r"}).
		withPlayer(Player{ID: "c", Politics: "m"}).
		toAnswering(map[string]Assignment{
			"a": {PlayingAs: "a"},
			"b": {PlayingAs: "b"},
			"c": {PlayingAs: "c"},
		})
	g.store.Create("s1", s)

	sub, err := g.Subscribe("s1", "c")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Cancel()

	if err := g.AnswerQuestion("s1", "a", "take a"); err != nil {
		t.Fatalf("answer a: %v", err)
	}
	if err := g.AnswerQuestion("s1", "b", "take b"); err != nil {
		t.Fatalf("answer b: %v", err)
	}

	snap, _ := g.store.Get("s1")
	if snap.Phase() != PhaseRate {
		t.Errorf("phase = %s with every remaining player answered, want RATE_ANSWERS", snap.Phase())
	}
}

func TestDepartureOfLastUnansweredPlayerCompletesAnswering(t *testing.T) {
	g := newTestGame(0)
	s := newSession("s1", "q1").
		withPlayer(Player{ID: "a", Politics: "l"}).
		withPlayer(Player{ID: "b", Politics: "r"}).
		withPlayer(Player{ID: "c", Politics: "m"}).
		toAnswering(map[string]Assignment{
			"a": {PlayingAs: "a"},
			"b": {PlayingAs: "b"},
			"c": {PlayingAs: "c"},
		})
	g.store.Create("s1", s)

	if err := g.AnswerQuestion("s1", "a", "take a"); err != nil {
		t.Fatalf("answer a: %v", err)
	}
	if err := g.AnswerQuestion("s1", "b", "take b"); err != nil {
		t.Fatalf("answer b: %v", err)
	}

	snap, _ := g.store.Get("s1")
	if snap.Phase() != PhaseAnswer {
		t.Fatalf("phase = %s before the last player left, want ANSWER_QUESTION", snap.Phase())
	}

	sub, err := g.Subscribe("s1", "c")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Cancel()

	snap, _ = g.store.Get("s1")
	if snap.Phase() != PhaseRate {
		t.Errorf("phase = %s after the last unanswered player left, want RATE_ANSWERS", snap.Phase())
	}
}

func TestDepartureOfLastOutstandingRaterCompletesRating(t *testing.T) {
	g := newTestGame(0)
	threePlayerRound(g)

	// Everything is rated except c's answer by b.
	ratings := []RatingSubmission{
		{Rater: "b", PlayerBeingRated: "a", Rating: 1},
		{Rater: "c", PlayerBeingRated: "a", Rating: -1},
		{Rater: "a", PlayerBeingRated: "b", Rating: 2},
		{Rater: "a", PlayerBeingRated: "c", Rating: 1},
	}
	for i, r := range ratings {
		if err := g.RateAnswer("s1", r); err != nil {
			t.Fatalf("rating %d: %v", i, err)
		}
	}

	snap, _ := g.store.Get("s1")
	if snap.Phase() != PhaseRate {
		t.Fatalf("phase = %s before the outstanding rater left, want RATE_ANSWERS", snap.Phase())
	}

	sub, err := g.Subscribe("s1", "b")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	sub.Cancel()

	snap, _ = g.store.Get("s1")
	if snap.Phase() != PhaseScore {
		t.Fatalf("phase = %s after the outstanding rater left, want SCORE", snap.Phase())
	}
	if _, ok := snap.Scores(); !ok {
		t.Error("departure-completed round has no scoreboard")
	}
}

func TestSubscribeUnknownSessionFails(t *testing.T) {
	g := newTestGame(0)

	if _, err := g.Subscribe("nope", "a"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Subscribe = %v, want ErrSessionNotFound", err)
	}
}

func TestPublicLobbyIsSingletonUntilStarted(t *testing.T) {
	g := newTestGame(0)

	first := g.Join("", "a", "left")
	second := g.Join("", "b", "right")

	if first.ID() != second.ID() {
		t.Fatalf("public joins landed in different sessions: %s vs %s", first.ID(), second.ID())
	}

	if err := g.Start(first.ID()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	third := g.Join("", "c", "centre")
	if third.ID() == first.ID() {
		t.Error("public lobby id was not consumed by start")
	}
	if third.Phase() != PhaseLobby {
		t.Errorf("new public lobby phase = %s, want LOBBY", third.Phase())
	}
}
