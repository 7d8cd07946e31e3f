package main

import "testing"

func TestComputeScoresRewardsImpostorsAndHonestJudges(t *testing.T) {
	// a answers as themself, b impersonates c.
	answers := map[string]PlayerAnswer{
		"a": {
			PlayingAs: "a",
			Answer:    "honest take",
			Ratings: []Rating{
				{Rater: "b", Rating: 2},
				{Rater: "c", Rating: 1},
			},
		},
		"b": {
			PlayingAs: "c",
			Answer:    "pretending to be c",
			Ratings: []Rating{
				{Rater: "c", Rating: -2},
				{Rater: "a", Rating: 1},
			},
		},
	}

	scores := computeScores(answers)

	if scores.AtImposing["a"] != 3 {
		t.Errorf("atImposing[a] = %d, want 3", scores.AtImposing["a"])
	}
	if scores.AtImposing["b"] != -1 {
		t.Errorf("atImposing[b] = %d, want -1", scores.AtImposing["b"])
	}

	// c panned the impostor, so the -2 flips to +2; c also gave the honest
	// answer +1.
	if scores.AtGuessing["c"] != 3 {
		t.Errorf("atGuessing[c] = %d, want 3", scores.AtGuessing["c"])
	}
	// a fell for the impostor: the +1 counts against them.
	if scores.AtGuessing["a"] != -1 {
		t.Errorf("atGuessing[a] = %d, want -1", scores.AtGuessing["a"])
	}
	// b rated only the honest answer, straightforwardly.
	if scores.AtGuessing["b"] != 2 {
		t.Errorf("atGuessing[b] = %d, want 2", scores.AtGuessing["b"])
	}

	want := map[string]int{"a": 2, "b": 1, "c": 3}
	for id, total := range want {
		if scores.Total[id] != total {
			t.Errorf("total[%s] = %d, want %d", id, scores.Total[id], total)
		}
	}
}

func TestComputeScoresListsUnratedAuthors(t *testing.T) {
	answers := map[string]PlayerAnswer{
		"a": {PlayingAs: "a", Answer: "nobody rated this", Ratings: []Rating{}},
	}

	scores := computeScores(answers)

	if n, ok := scores.AtImposing["a"]; !ok || n != 0 {
		t.Errorf("atImposing[a] = %d (present %v), want 0 and present", n, ok)
	}
	if n, ok := scores.Total["a"]; !ok || n != 0 {
		t.Errorf("total[a] = %d (present %v), want 0 and present", n, ok)
	}
}

func TestComputeScoresEmptyRound(t *testing.T) {
	scores := computeScores(map[string]PlayerAnswer{})

	if len(scores.AtImposing) != 0 || len(scores.AtGuessing) != 0 || len(scores.Total) != 0 {
		t.Errorf("empty round produced a non-empty scoreboard: %+v", scores)
	}
}
