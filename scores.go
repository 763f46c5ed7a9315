// Personal best persistence for the single-player modes.
//
// Bests are keyed "{player}:{mode}:{charset}" and written only when a run
// beats one of them. The whole table lives in one JSON file rewritten via a
// temp file and rename, so a crash mid-write can never corrupt it.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// Bests holds the persistent counters for one player/mode/charset key.
type Bests struct {
	HighScore  int `json:"highScore"`
	BestStreak int `json:"bestStreak"`
}

type ScoreStore struct {
	mu    sync.Mutex
	path  string
	bests map[string]Bests
}

// NewScoreStore loads existing bests from path; a missing file is an empty
// store, a corrupted one is discarded with a warning.
func NewScoreStore(path string) *ScoreStore {
	s := &ScoreStore{
		path:  path,
		bests: make(map[string]Bests),
	}
	if path == "" {
		return s
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s
	}
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not read score file")
		return s
	}
	if err := json.Unmarshal(data, &s.bests); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("score file is corrupted, starting fresh")
		s.bests = make(map[string]Bests)
	}
	return s
}

func bestsKey(playerID, mode, charsetID string) string {
	return fmt.Sprintf("%s:%s:%s", playerID, mode, charsetID)
}

// Get returns the stored bests, zero-valued when the player has none yet.
func (s *ScoreStore) Get(playerID, mode, charsetID string) Bests {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bests[bestsKey(playerID, mode, charsetID)]
}

// Record updates the bests if score or maxStreak beat them, reporting which
// did. Disk is only touched on a new best.
func (s *ScoreStore) Record(playerID, mode, charsetID string, score, maxStreak int) (newHighScore, newBestStreak bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bestsKey(playerID, mode, charsetID)
	bests := s.bests[key]

	if score > bests.HighScore {
		bests.HighScore = score
		newHighScore = true
	}
	if maxStreak > bests.BestStreak {
		bests.BestStreak = maxStreak
		newBestStreak = true
	}
	if !newHighScore && !newBestStreak {
		return false, false
	}

	s.bests[key] = bests
	if err := s.saveLocked(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("could not persist bests")
	}
	return newHighScore, newBestStreak
}

func (s *ScoreStore) saveLocked() error {
	if s.path == "" {
		return nil
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(s.bests, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
