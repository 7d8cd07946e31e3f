package main

// computeScores folds the round's answers into the final scoreboard. Pure:
// the result depends only on the answers passed in, and it runs exactly
// once, when the last expected rating lands.
//
// atImposing credits every rating an answer received to its author: high
// marks for a convincing turn, impostor or not. atGuessing credits each
// rater's judgment: a rating counts for the rater when the answer was
// honest and against them when its author was impersonating someone, so
// praising an impostor costs the rater what it pays the impostor.
func computeScores(answers map[string]PlayerAnswer) *Scoreboard {
	scores := &Scoreboard{
		AtImposing: make(map[string]int),
		AtGuessing: make(map[string]int),
		Total:      make(map[string]int),
	}

	for id, answer := range answers {
		wasImpostor := answer.PlayingAs != id

		// Every author appears on the board, even if nobody rated them.
		if _, ok := scores.AtImposing[id]; !ok {
			scores.AtImposing[id] = 0
		}

		for _, r := range answer.Ratings {
			scores.AtImposing[id] += r.Rating
			if wasImpostor {
				scores.AtGuessing[r.Rater] -= r.Rating
			} else {
				scores.AtGuessing[r.Rater] += r.Rating
			}
		}
	}

	for id, n := range scores.AtImposing {
		scores.Total[id] += n
	}
	for id, n := range scores.AtGuessing {
		scores.Total[id] += n
	}

	return scores
}
