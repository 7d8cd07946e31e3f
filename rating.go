package main

import (
	"log"
	"time"
)

// RatingSubmission is one player's judgment of another player's answer.
type RatingSubmission struct {
	Rater            string `json:"rater"`
	PlayerBeingRated string `json:"playerBeingRated"`
	Rating           int    `json:"rating"`
}

// AnswerQuestion records the player's answer in their assigned guise.
// Legal only during ANSWER_QUESTION; players without an assignment (late
// joiners) are rejected. Re-submission silently overwrites. Once every
// assigned player has answered, the session moves to RATE_ANSWERS on its
// own, and this call's single publish carries the transitioned state.
func (g *Game) AnswerQuestion(sessionID, playerID, answer string) error {
	snap, err := g.store.Update(sessionID, func(s *Session) (*Session, error) {
		if s.Phase() != PhaseAnswer {
			log.Printf("%s | GAMES: Answer rejected for session %s in phase %s",
				time.Now().Format(logDate), sessionID, s.Phase())
			return nil, ErrInvalidPhase
		}

		assignment, ok := s.AssignmentFor(playerID)
		if !ok {
			return nil, ErrPlayerNotAssigned
		}

		next := s.withAnswer(playerID, PlayerAnswer{
			PlayingAs: assignment.PlayingAs,
			Answer:    answer,
			Ratings:   []Rating{},
		})

		if next.allAssignedAnswered() {
			next = next.toRating()
			if next.allRatingsIn() {
				next = next.toScore(computeScores(next.answers))
			}
		}

		return next, nil
	})
	if err != nil {
		return err
	}

	logf(g.cfg, "GAMES: Player %s answered in session %s (phase now %s)", playerID, sessionID, snap.Phase())

	g.events.Publish(sessionID, snap)

	if snap.Phase() == PhaseScore {
		g.archive.ArchiveScore(snap)
	}

	return nil
}

// RateAnswer appends one rating to the rated player's answer. Legal only
// during RATE_ANSWERS; the rating must lie in [-2, 2] and a rater may rate
// a given answer only once. When every answer has collected its expected
// rating count, scoring runs and the published snapshot is the SCORE
// state; reaching SCORE also hands the final snapshot to the archival
// sink, off the broadcast path.
func (g *Game) RateAnswer(sessionID string, submission RatingSubmission) error {
	if submission.Rating < RatingMin || submission.Rating > RatingMax {
		return ErrInvalidRating
	}

	snap, err := g.store.Update(sessionID, func(s *Session) (*Session, error) {
		if s.Phase() != PhaseRate {
			log.Printf("%s | GAMES: Rating rejected for session %s in phase %s",
				time.Now().Format(logDate), sessionID, s.Phase())
			return nil, ErrInvalidPhase
		}

		answer, ok := s.answers[submission.PlayerBeingRated]
		if !ok {
			return nil, ErrUnknownAnswer
		}
		for _, r := range answer.Ratings {
			if r.Rater == submission.Rater {
				return nil, ErrAlreadyRated
			}
		}

		next := s.withRating(submission.PlayerBeingRated, Rating{
			Rater:  submission.Rater,
			Rating: submission.Rating,
		})

		if next.allRatingsIn() {
			next = next.toScore(computeScores(next.answers))
		}

		return next, nil
	})
	if err != nil {
		return err
	}

	logf(g.cfg, "GAMES: Player %s rated %s in session %s (phase now %s)",
		submission.Rater, submission.PlayerBeingRated, sessionID, snap.Phase())

	g.events.Publish(sessionID, snap)

	if snap.Phase() == PhaseScore {
		g.archive.ArchiveScore(snap)
	}

	return nil
}

// allAssignedAnswered reports whether every assigned player still in the
// session has an answer on record. Late joiners hold no assignment and
// departed players are no longer expected to answer, so neither can stall
// the round.
func (s *Session) allAssignedAnswered() bool {
	assigned := 0
	for id := range s.assignments {
		if !s.HasPlayer(id) {
			continue
		}
		assigned++
		if _, ok := s.answers[id]; !ok {
			return false
		}
	}
	return assigned > 0
}

// allRatingsIn reports whether every answer holds its expected rating
// count. The expected raters for an answer are every current player except
// its author, and except the impersonated target when the author played as
// someone else; the impersonated player does not rate their own impostor.
// Authors and targets who have since left the session are not counted.
func (s *Session) allRatingsIn() bool {
	for id, answer := range s.answers {
		expected := len(s.players)
		if s.HasPlayer(id) {
			expected--
		}
		if answer.PlayingAs != id && s.HasPlayer(answer.PlayingAs) {
			expected--
		}
		if len(answer.Ratings) < expected {
			return false
		}
	}
	return len(s.answers) > 0
}
