package main

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startedMatch creates a room, joins it, and returns a controller for the
// given slot with its outbound messages captured. Handlers are invoked
// directly; in production run() serializes them the same way.
func startedMatch(t *testing.T, slot Slot) (*controller, *RoomService, *MemoryStore, *clockwork.FakeClock, *[]any) {
	t.Helper()

	rooms, store, clock := newTestService(t)
	ctx := context.Background()

	code, err := rooms.CreateRoom(ctx, "hiragana")
	require.NoError(t, err)
	_, err = rooms.JoinRoom(ctx, code)
	require.NoError(t, err)

	var sent []any
	ctrl := newController(rooms, clock, code, slot, 60*time.Second, func(msg any) {
		sent = append(sent, msg)
	})

	room, err := store.Read(ctx, roomPath(code))
	require.NoError(t, err)
	ctrl.onRoomUpdate(room)
	require.Equal(t, phasePlaying, ctrl.phase)

	return ctrl, rooms, store, clock, &sent
}

func lastState(t *testing.T, sent []any) stateMessage {
	t.Helper()
	for i := len(sent) - 1; i >= 0; i-- {
		if msg, ok := sent[i].(stateMessage); ok {
			return msg
		}
	}
	t.Fatal("no state message sent")
	return stateMessage{}
}

func TestControllerStaysLoadingWhileWaiting(t *testing.T) {
	rooms, store, clock := newTestService(t)
	ctx := context.Background()

	code, err := rooms.CreateRoom(ctx, "hiragana")
	require.NoError(t, err)

	var sent []any
	ctrl := newController(rooms, clock, code, slotPlayer1, 60*time.Second, func(msg any) {
		sent = append(sent, msg)
	})

	room, err := store.Read(ctx, roomPath(code))
	require.NoError(t, err)
	ctrl.onRoomUpdate(room)
	assert.Equal(t, phaseLoading, ctrl.phase)

	// Guesses and ticks are inert until the match starts.
	ctrl.onGuess("ka")
	ctrl.onTick()
	assert.Zero(t, ctrl.attempts)

	// The join push flips the phase.
	_, err = rooms.JoinRoom(ctx, code)
	require.NoError(t, err)
	room, err = store.Read(ctx, roomPath(code))
	require.NoError(t, err)
	ctrl.onRoomUpdate(room)
	assert.Equal(t, phasePlaying, ctrl.phase)

	state := lastState(t, sent)
	assert.Equal(t, phasePlaying, state.Phase)
	assert.Equal(t, 60, state.TimeLeft)
	assert.NotEmpty(t, state.Prompt)
}

func TestControllerCorrectThenIncorrectGuess(t *testing.T) {
	ctrl, _, store, _, sent := startedMatch(t, slotPlayer1)
	ctx := context.Background()

	first := ctrl.room.Characters[0].Romaji
	ctrl.onGuess(first)

	assert.Equal(t, 1, ctrl.score)
	assert.Equal(t, 1, ctrl.streak)
	assert.Equal(t, 1, ctrl.maxStreak)
	assert.Equal(t, 1, ctrl.index)
	assert.Equal(t, 1, ctrl.attempts)

	// The wrong guess reveals the expected romaji and advances anyway.
	expected := ctrl.room.Characters[1].Romaji
	ctrl.onGuess("zzz")

	assert.Equal(t, 1, ctrl.score)
	assert.Zero(t, ctrl.streak)
	assert.Equal(t, 1, ctrl.maxStreak)
	assert.Equal(t, 2, ctrl.index)
	assert.Equal(t, 2, ctrl.attempts)

	var feedback []feedbackMessage
	for _, msg := range *sent {
		if fb, ok := msg.(feedbackMessage); ok {
			feedback = append(feedback, fb)
		}
	}
	require.Len(t, feedback, 2)
	assert.True(t, feedback[0].Correct)
	assert.Empty(t, feedback[0].Romaji)
	assert.False(t, feedback[1].Correct)
	assert.Equal(t, expected, feedback[1].Romaji)

	// Both guesses were pushed to the shared document.
	room, err := store.Read(ctx, roomPath(ctrl.code))
	require.NoError(t, err)
	assert.Equal(t, 1, room.Player1.Score)
	assert.Equal(t, 2, room.Player1.CurrentIndex)
	assert.Zero(t, room.Player1.Streak)
	assert.Equal(t, 1, room.Player1.MaxStreak)
	assert.Equal(t, 2, room.Player1.TotalAttempts)
}

func TestControllerGuessNormalization(t *testing.T) {
	ctrl, _, _, _, _ := startedMatch(t, slotPlayer1)

	ctrl.onGuess("  " + strings.ToUpper(ctrl.room.Characters[0].Romaji) + "  ")
	assert.Equal(t, 1, ctrl.score)

	// Blank input is ignored entirely, not counted as an attempt.
	ctrl.onGuess("   ")
	assert.Equal(t, 1, ctrl.attempts)
}

func TestControllerCountdownFromSharedStartTime(t *testing.T) {
	ctrl, _, _, clock, sent := startedMatch(t, slotPlayer1)

	clock.Advance(12 * time.Second)
	ctrl.onTick()
	assert.Equal(t, 48, lastState(t, *sent).TimeLeft)

	// Sub-second ticks do not spam state.
	before := len(*sent)
	ctrl.onTick()
	assert.Equal(t, before, len(*sent))
}

func TestControllerExpiryEndsGameForBoth(t *testing.T) {
	ctrl, rooms, store, clock, sent := startedMatch(t, slotPlayer1)
	ctx := context.Background()

	clock.Advance(61 * time.Second)
	ctrl.onTick()

	assert.Equal(t, phaseEnded, ctrl.phase)
	room, err := store.Read(ctx, roomPath(ctrl.code))
	require.NoError(t, err)
	assert.Equal(t, statusEnded, room.Status)

	var results []resultMessage
	for _, msg := range *sent {
		if res, ok := msg.(resultMessage); ok {
			results = append(results, res)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, "draw", results[0].Result)

	// The peer converges through the subscribed status change, without its
	// own countdown having expired.
	var peerSent []any
	peer := newController(rooms, clock, ctrl.code, slotPlayer2, 60*time.Second, func(msg any) {
		peerSent = append(peerSent, msg)
	})
	peer.onRoomUpdate(room)
	assert.Equal(t, phaseEnded, peer.phase)
}

func TestControllerOutcomeFromRoomDocument(t *testing.T) {
	ctrl, rooms, store, _, sent := startedMatch(t, slotPlayer1)
	ctx := context.Background()

	// Opponent pulls ahead through the store; own side never guessed.
	require.NoError(t, rooms.UpdatePlayerScore(ctx, ctrl.code, slotPlayer2, ScoreUpdate{
		Score: 5, CurrentIndex: 6, Streak: 2, MaxStreak: 4, TotalAttempts: 6,
	}))
	require.NoError(t, rooms.EndGame(ctx, ctrl.code))

	room, err := store.Read(ctx, roomPath(ctrl.code))
	require.NoError(t, err)
	ctrl.onRoomUpdate(room)

	var results []resultMessage
	for _, msg := range *sent {
		if res, ok := msg.(resultMessage); ok {
			results = append(results, res)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, "lose", results[0].Result)
	require.NotNil(t, results[0].Opponent)
	assert.Equal(t, 5, results[0].Opponent.Score)

	// Further ended pushes do not produce a second result.
	ctrl.onRoomUpdate(room)
	count := 0
	for _, msg := range *sent {
		if _, ok := msg.(resultMessage); ok {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestControllerSeesOpponentDisconnect(t *testing.T) {
	ctrl, rooms, store, _, _ := startedMatch(t, slotPlayer1)
	ctx := context.Background()

	require.NoError(t, rooms.ReconnectPlayer(ctx, ctrl.code, slotPlayer2, "peer-client"))
	rooms.Disconnected("peer-client")

	room, err := store.Read(ctx, roomPath(ctrl.code))
	require.NoError(t, err)
	ctrl.onRoomUpdate(room)

	opponent := ctrl.opponent()
	require.NotNil(t, opponent)
	assert.False(t, opponent.Connected)
	assert.True(t, opponent.Joined)
}

func TestControllerMissingRoom(t *testing.T) {
	rooms, _, clock := newTestService(t)

	var sent []any
	ctrl := newController(rooms, clock, "ZZZZ", slotPlayer1, 60*time.Second, func(msg any) {
		sent = append(sent, msg)
	})
	ctrl.onRoomUpdate(nil)

	require.Len(t, sent, 1)
	msg, ok := sent[0].(errorMessage)
	require.True(t, ok)
	assert.Contains(t, msg.Message, "no longer exists")
}

func TestPushUpdateDropsOldestWhenFull(t *testing.T) {
	rooms, _, clock := newTestService(t)
	ctrl := newController(rooms, clock, "AAAA", slotPlayer1, 60*time.Second, func(any) {})

	for i := 0; i < 20; i++ {
		ctrl.pushUpdate(&RoomData{CreatedAt: int64(i)})
	}

	// The newest snapshot is always retained.
	var last *RoomData
	for {
		select {
		case room := <-ctrl.updates:
			last = room
			continue
		default:
		}
		break
	}
	require.NotNil(t, last)
	assert.Equal(t, int64(19), last.CreatedAt)
}

func TestControllerTeardownOutracesQueuedWork(t *testing.T) {
	rooms, _, clock := newTestService(t)
	ctx := context.Background()

	code, err := rooms.CreateRoom(ctx, "hiragana")
	require.NoError(t, err)
	_, err = rooms.JoinRoom(ctx, code)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		var mu sync.Mutex
		closed := false
		ctrl := newController(rooms, clock, code, slotPlayer1, 60*time.Second, func(any) {
			mu.Lock()
			defer mu.Unlock()
			if closed {
				t.Error("message sent after teardown completed")
			}
		})

		go ctrl.run()

		// A guess queued right before stop must not reach send after the
		// run loop has been observed exiting; the websocket side closes
		// the outbound channel at exactly that point.
		ctrl.guesses <- "ka"
		close(ctrl.stop)
		<-ctrl.done

		mu.Lock()
		closed = true
		mu.Unlock()
	}
}

func TestControllerRunSignalsDoneOnEarlyExit(t *testing.T) {
	rooms, _, clock := newTestService(t)

	var sent []any
	var mu sync.Mutex
	ctrl := newController(rooms, clock, "ZZZZ", slotPlayer1, 60*time.Second, func(msg any) {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, msg)
	})

	go ctrl.run()

	select {
	case <-ctrl.done:
	case <-time.After(time.Second):
		t.Fatal("run did not signal done after failing to mount")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, sent, 1)
	_, ok := sent[0].(errorMessage)
	assert.True(t, ok)
}

func TestJoinErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, joinErrorStatus(ErrInvalidCode))
	assert.Equal(t, http.StatusNotFound, joinErrorStatus(ErrRoomNotFound))
	assert.Equal(t, http.StatusGone, joinErrorStatus(ErrRoomExpired))
	assert.Equal(t, http.StatusConflict, joinErrorStatus(ErrRoomFull))
	assert.Equal(t, http.StatusConflict, joinErrorStatus(ErrRoomAlreadyStarted))
	assert.Equal(t, http.StatusInternalServerError, joinErrorStatus(context.DeadlineExceeded))
}
