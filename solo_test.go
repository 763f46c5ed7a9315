package main

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSoloTest(t *testing.T, mode string) (*soloController, *clockwork.FakeClock, *[]any) {
	t.Helper()

	clock := clockwork.NewFakeClock()
	scores := NewScoreStore(filepath.Join(t.TempDir(), "scores.json"))

	var sent []any
	ctrl := newSoloController(clock, scores, "player-a", mode, "hiragana-basic", 60*time.Second, func(msg any) {
		sent = append(sent, msg)
	})
	return ctrl, clock, &sent
}

func TestSoloTimedWaitsForStart(t *testing.T) {
	ctrl, clock, _ := newSoloTest(t, modeTimed)

	assert.Equal(t, phaseLoading, ctrl.phase)
	ctrl.onGuess("ka")
	assert.Zero(t, ctrl.attempts)

	ctrl.onStart()
	assert.Equal(t, phasePlaying, ctrl.phase)
	assert.Equal(t, clock.Now().UnixMilli(), ctrl.startAt)
	assert.Len(t, ctrl.sequence, defaultSequenceLength)
}

func TestSoloTimedRun(t *testing.T) {
	ctrl, clock, sent := newSoloTest(t, modeTimed)
	ctrl.onStart()

	ctrl.onGuess(ctrl.sequence[0].Romaji)
	ctrl.onGuess("zzz")
	ctrl.onGuess(ctrl.sequence[2].Romaji)

	assert.Equal(t, 2, ctrl.score)
	assert.Equal(t, 1, ctrl.streak)
	assert.Equal(t, 1, ctrl.maxStreak)
	assert.Equal(t, 3, ctrl.attempts)

	clock.Advance(61 * time.Second)
	ctrl.onTick()
	assert.Equal(t, phaseEnded, ctrl.phase)

	var results []soloResultMessage
	for _, msg := range *sent {
		if res, ok := msg.(soloResultMessage); ok {
			results = append(results, res)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Score)
	assert.True(t, results[0].NewHighScore)
	assert.True(t, results[0].NewBestStreak)
	assert.Equal(t, 2, results[0].HighScore)

	// A second, worse run leaves the recorded bests alone.
	ctrl.onStart()
	require.Equal(t, phasePlaying, ctrl.phase)
	assert.Zero(t, ctrl.score)
	assert.Zero(t, ctrl.attempts)

	clock.Advance(61 * time.Second)
	ctrl.onTick()

	for _, msg := range *sent {
		if res, ok := msg.(soloResultMessage); ok {
			results = append(results, res)
		}
	}
	require.Len(t, results, 3) // first result re-collected plus the new one
	last := results[len(results)-1]
	assert.False(t, last.NewHighScore)
	assert.Equal(t, 2, last.HighScore)
}

func TestSoloPracticeStartsImmediately(t *testing.T) {
	ctrl, _, sent := newSoloTest(t, modePractice)

	// run() flips practice to playing before the loop; onStart must stay a
	// no-op so a stray "start" cannot reset an untimed session.
	ctrl.phase = phasePlaying
	ctrl.sendState()

	state, ok := (*sent)[len(*sent)-1].(soloStateMessage)
	require.True(t, ok)
	assert.Equal(t, phasePlaying, state.Phase)
	assert.Zero(t, state.TimeLeft)
	assert.NotEmpty(t, state.Prompt)

	before := ctrl.attempts
	ctrl.onStart()
	assert.Equal(t, phasePlaying, ctrl.phase)
	assert.Equal(t, before, ctrl.attempts)
}

func TestSoloPracticeSequenceExtends(t *testing.T) {
	ctrl, _, _ := newSoloTest(t, modePractice)
	ctrl.phase = phasePlaying

	ctrl.index = len(ctrl.sequence)
	ctrl.onGuess("ka")

	assert.Len(t, ctrl.sequence, 2*defaultSequenceLength)
	assert.Equal(t, len(ctrl.sequence)/2+1, ctrl.index)
}

func TestSoloTeardownOutracesQueuedWork(t *testing.T) {
	clock := clockwork.NewFakeClock()

	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		closed := false
		ctrl := newSoloController(clock, NewScoreStore(""), "player-a", modePractice, "hiragana", 60*time.Second, func(any) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				t.Error("message sent after teardown completed")
			}
		})

		go ctrl.run()

		ctrl.guesses <- "ka"
		close(ctrl.stop)
		<-ctrl.done

		mu.Lock()
		closed = true
		mu.Unlock()
	}
}

func TestSoloTickInertInPractice(t *testing.T) {
	ctrl, clock, sent := newSoloTest(t, modePractice)
	ctrl.phase = phasePlaying

	before := len(*sent)
	clock.Advance(2 * time.Minute)
	ctrl.onTick()
	assert.Equal(t, phasePlaying, ctrl.phase)
	assert.Equal(t, before, len(*sent))
}
