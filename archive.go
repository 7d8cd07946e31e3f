package main

import (
	"context"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/encoding/json"
)

const (
	archiveKeyPrefix = "soapbox:archive:"
	profileKeyPrefix = "soapbox:profile:"

	archiveTimeout = 5 * time.Second
)

// Profile is the per-player record kept across sessions, keyed by the
// opaque cookie id. Politics prefills the join form on the next visit.
type Profile struct {
	Name     string `json:"name"`
	Politics string `json:"politics"`
}

// Archiver is the optional redis collaborator: it receives terminal SCORE
// snapshots for analytics and stores player profiles. Every call is
// best-effort; failures are logged and never surfaced into game state. A
// nil Archiver is valid and does nothing.
type Archiver struct {
	cfg    *Config
	client *redis.Client
}

// newArchiver connects to the configured redis address, or returns nil
// when archival is disabled.
func newArchiver(cfg *Config) *Archiver {
	if cfg.archiveAddr == "" {
		return nil
	}

	return &Archiver{
		cfg: cfg,
		client: redis.NewClient(&redis.Options{
			Addr: cfg.archiveAddr,
		}),
	}
}

// ArchiveScore writes the final snapshot under the session's id,
// fire-and-forget: the write happens on its own goroutine and never gates
// or delays the score broadcast.
func (a *Archiver) ArchiveScore(snap *Session) {
	if a == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		payload, err := json.Marshal(snap)
		if err != nil {
			log.Printf("%s | ARCHIVE: Marshal failed for session %s: %v",
				time.Now().Format(logDate), snap.ID(), err)
			return
		}

		if err := a.client.Set(ctx, archiveKeyPrefix+snap.ID(), payload, 0).Err(); err != nil {
			log.Printf("%s | ARCHIVE: Write failed for session %s: %v",
				time.Now().Format(logDate), snap.ID(), err)
			return
		}

		logf(a.cfg, "ARCHIVE: Session %s score snapshot stored", snap.ID())
	}()
}

// Profile loads a stored player profile. Missing profiles come back empty
// without error.
func (a *Archiver) Profile(ctx context.Context, playerID string) (Profile, error) {
	var profile Profile
	if a == nil {
		return profile, nil
	}

	payload, err := a.client.Get(ctx, profileKeyPrefix+playerID).Result()
	if err == redis.Nil {
		return profile, nil
	}
	if err != nil {
		return profile, err
	}

	if err := json.Unmarshal([]byte(payload), &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// UpsertProfile stores a player's profile.
func (a *Archiver) UpsertProfile(ctx context.Context, playerID string, profile Profile) error {
	if a == nil {
		return nil
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, profileKeyPrefix+playerID, payload, 0).Err()
}

// Close releases the redis connection.
func (a *Archiver) Close() error {
	if a == nil {
		return nil
	}
	return a.client.Close()
}
