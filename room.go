// Room lifecycle for 1v1 matches.
//
// A room is one shared document under rooms/{code}. The creator writes it
// once; the second player's join is the single transition that starts the
// match (there is no ready handshake). Each player only ever writes their own
// player1/player2 subtree, so the two clients never race on the same fields;
// the only cross-player signals are the shared status, the immutable
// startTime both sides derive the countdown from, and the connected flags
// flipped by the store's disconnect actions.

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Room codes avoid visually confusable characters (0/O, 1/I).
const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	roomCodeLength     = 4
	defaultRoomTTL     = 30 * time.Minute
	createRoomAttempts = 5
)

var (
	ErrRoomCreationFailed = errors.New("failed to create room")
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomExpired        = errors.New("room has expired")
	ErrRoomFull           = errors.New("room is full")
	ErrRoomAlreadyStarted = errors.New("game already in progress")
	ErrInvalidCode        = errors.New("room code must be 4 characters")
)

// RoomStatus is monotonic: waiting -> playing -> ended, never backwards.
type RoomStatus string

const (
	statusWaiting RoomStatus = "waiting"
	statusPlaying RoomStatus = "playing"
	statusEnded   RoomStatus = "ended"
)

// Slot is one of the two fixed player positions in a room.
type Slot string

const (
	slotPlayer1 Slot = "player1"
	slotPlayer2 Slot = "player2"
)

func (s Slot) valid() bool {
	return s == slotPlayer1 || s == slotPlayer2
}

func (s Slot) opponent() Slot {
	if s == slotPlayer1 {
		return slotPlayer2
	}
	return slotPlayer1
}

// PlayerData is owned exclusively by the player it describes. Only that
// player's client writes it, except for the connected flag, which the
// store's disconnect action may flip to false.
type PlayerData struct {
	Joined        bool `json:"joined"`
	Score         int  `json:"score"`
	CurrentIndex  int  `json:"currentIndex"`
	Streak        int  `json:"streak"`
	MaxStreak     int  `json:"maxStreak"`
	TotalAttempts int  `json:"totalAttempts"`
	Connected     bool `json:"connected"`
}

func newPlayerData() PlayerData {
	return PlayerData{Joined: true, Connected: true}
}

// RoomData is the shared match document. Characters is written once at
// creation and never mutated, so both players answer the identical prompt
// order while tracking their own currentIndex independently.
// Timestamps are unix milliseconds.
type RoomData struct {
	Charset    string      `json:"charset"`
	Characters []KanaChar  `json:"characters"`
	CreatedAt  int64       `json:"createdAt"`
	Status     RoomStatus  `json:"status"`
	StartTime  int64       `json:"startTime,omitempty"`
	Player1    PlayerData  `json:"player1"`
	Player2    *PlayerData `json:"player2,omitempty"`
}

func (r *RoomData) clone() *RoomData {
	out := *r
	out.Characters = make([]KanaChar, len(r.Characters))
	copy(out.Characters, r.Characters)
	if r.Player2 != nil {
		p2 := *r.Player2
		out.Player2 = &p2
	}
	return &out
}

// player returns the data for a slot; nil for an unfilled player2.
func (r *RoomData) player(slot Slot) *PlayerData {
	if slot == slotPlayer1 {
		return &r.Player1
	}
	return r.Player2
}

// setField applies one slash-separated field path. Unknown paths are
// rejected so a typoed update can never silently vanish.
func (r *RoomData) setField(path string, value any) error {
	head, rest, _ := strings.Cut(path, "/")

	switch head {
	case "status":
		v, ok := value.(RoomStatus)
		if !ok {
			return fmt.Errorf("field %q: expected RoomStatus, got %T", path, value)
		}
		r.Status = v
	case "startTime":
		v, ok := value.(int64)
		if !ok {
			return fmt.Errorf("field %q: expected int64, got %T", path, value)
		}
		r.StartTime = v
	case "player1":
		if rest == "" {
			v, ok := value.(PlayerData)
			if !ok {
				return fmt.Errorf("field %q: expected PlayerData, got %T", path, value)
			}
			r.Player1 = v
			return nil
		}
		return r.Player1.setField(path, rest, value)
	case "player2":
		if rest == "" {
			v, ok := value.(PlayerData)
			if !ok {
				return fmt.Errorf("field %q: expected PlayerData, got %T", path, value)
			}
			r.Player2 = &v
			return nil
		}
		if r.Player2 == nil {
			return fmt.Errorf("field %q: player2 has not joined", path)
		}
		return r.Player2.setField(path, rest, value)
	default:
		return fmt.Errorf("unknown field %q", path)
	}
	return nil
}

func (p *PlayerData) setField(full, field string, value any) error {
	switch field {
	case "joined", "connected":
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("field %q: expected bool, got %T", full, value)
		}
		if field == "joined" {
			p.Joined = v
		} else {
			p.Connected = v
		}
	case "score", "currentIndex", "streak", "maxStreak", "totalAttempts":
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("field %q: expected int, got %T", full, value)
		}
		switch field {
		case "score":
			p.Score = v
		case "currentIndex":
			p.CurrentIndex = v
		case "streak":
			p.Streak = v
		case "maxStreak":
			p.MaxStreak = v
		case "totalAttempts":
			p.TotalAttempts = v
		}
	default:
		return fmt.Errorf("unknown field %q", full)
	}
	return nil
}

// ScoreUpdate carries the five per-guess fields a player pushes after each
// answer.
type ScoreUpdate struct {
	Score         int
	CurrentIndex  int
	Streak        int
	MaxStreak     int
	TotalAttempts int
}

func (u ScoreUpdate) validate() error {
	switch {
	case u.Score < 0 || u.CurrentIndex < 0 || u.Streak < 0 || u.MaxStreak < 0 || u.TotalAttempts < 0:
		return errors.New("score fields must be non-negative")
	case u.Score > u.TotalAttempts:
		return errors.New("score cannot exceed total attempts")
	case u.Streak > u.MaxStreak:
		return errors.New("streak cannot exceed max streak")
	}
	return nil
}

func roomPath(code string) string {
	return "rooms/" + code
}

// normalizeRoomCode upper-cases user input and enforces the local length
// check, which runs before any store round trip.
func normalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != roomCodeLength {
		return "", ErrInvalidCode
	}
	return code, nil
}

func newRoomCode() string {
	out := make([]byte, roomCodeLength)
	for i := range out {
		out[i] = roomCodeAlphabet[randIndex(len(roomCodeAlphabet))]
	}
	return string(out)
}

// RoomService coordinates the room lifecycle against a Store. Its API hands
// out per-slot write capabilities only: gameplay code passes its own slot and
// can never address the opponent's fields.
type RoomService struct {
	store    Store
	clock    clockwork.Clock
	ttl      time.Duration
	sequence int
}

func NewRoomService(store Store, clock clockwork.Clock, ttl time.Duration, sequenceLength int) *RoomService {
	if ttl <= 0 {
		ttl = defaultRoomTTL
	}
	if sequenceLength <= 0 {
		sequenceLength = defaultSequenceLength
	}
	return &RoomService{store: store, clock: clock, ttl: ttl, sequence: sequenceLength}
}

// CreateRoom generates the prompt sequence and writes the room document with
// the caller as player1. Returns the room code.
func (s *RoomService) CreateRoom(ctx context.Context, charsetID string) (string, error) {
	if !validCharset(charsetID) {
		return "", fmt.Errorf("%w: unknown charset %q", ErrRoomCreationFailed, charsetID)
	}

	room := &RoomData{
		Charset:    charsetID,
		Characters: generateSequence(charsetID, s.sequence),
		CreatedAt:  s.clock.Now().UnixMilli(),
		Status:     statusWaiting,
		Player1:    newPlayerData(),
	}

	// Codes are short, so retry a handful of times on collision.
	for attempt := 0; attempt < createRoomAttempts; attempt++ {
		code := newRoomCode()
		err := s.store.Create(ctx, roomPath(code), room)
		if errors.Is(err, errDocExists) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrRoomCreationFailed, err)
		}

		log.Info().Str("room", code).Str("charset", charsetID).Msg("room created")
		return code, nil
	}
	return "", fmt.Errorf("%w: could not find a free room code", ErrRoomCreationFailed)
}

// JoinRoom admits the caller as player2 and starts the match: player2,
// status=playing, and startTime are applied in one atomic update, so no
// subscriber can observe one without the others.
func (s *RoomService) JoinRoom(ctx context.Context, code string) (string, error) {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return "", err
	}

	room, err := s.store.Read(ctx, roomPath(code))
	if errors.Is(err, errDocNotFound) {
		return "", ErrRoomNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading room %s: %w", code, err)
	}

	switch {
	case s.clock.Now().UnixMilli()-room.CreatedAt > s.ttl.Milliseconds():
		return "", ErrRoomExpired
	case room.Player2 != nil:
		return "", ErrRoomFull
	case room.Status != statusWaiting:
		return "", ErrRoomAlreadyStarted
	}

	err = s.store.Update(ctx, roomPath(code), Fields{
		"player2":   newPlayerData(),
		"status":    statusPlaying,
		"startTime": s.clock.Now().UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("joining room %s: %w", code, err)
	}

	log.Info().Str("room", code).Msg("player2 joined, match started")
	return code, nil
}

// ReconnectPlayer marks the slot connected and freshly arms the disconnect
// action. Called on every (re)connect: the store's disconnect action is
// one-shot, so it must be re-armed each time the transport comes back.
func (s *RoomService) ReconnectPlayer(ctx context.Context, code string, slot Slot, clientID string) error {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return err
	}
	if !slot.valid() {
		return fmt.Errorf("invalid slot %q", slot)
	}

	connected := string(slot) + "/connected"
	if err := s.store.Update(ctx, roomPath(code), Fields{connected: true}); err != nil {
		return fmt.Errorf("reconnecting %s in room %s: %w", slot, code, err)
	}

	s.store.OnDisconnect(clientID, roomPath(code), Fields{connected: false})
	return nil
}

// UpdatePlayerScore pushes a player's own per-guess fields. The field set of
// a single call is applied atomically.
func (s *RoomService) UpdatePlayerScore(ctx context.Context, code string, slot Slot, update ScoreUpdate) error {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return err
	}
	if !slot.valid() {
		return fmt.Errorf("invalid slot %q", slot)
	}
	if err := update.validate(); err != nil {
		return err
	}

	prefix := string(slot) + "/"
	return s.store.Update(ctx, roomPath(code), Fields{
		prefix + "score":         update.Score,
		prefix + "currentIndex":  update.CurrentIndex,
		prefix + "streak":        update.Streak,
		prefix + "maxStreak":     update.MaxStreak,
		prefix + "totalAttempts": update.TotalAttempts,
	})
}

// EndGame marks the room ended. Either client may call it - whichever local
// countdown hits zero first - and calling it again is a no-op.
func (s *RoomService) EndGame(ctx context.Context, code string) error {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return err
	}
	return s.store.Update(ctx, roomPath(code), Fields{"status": statusEnded})
}

// Subscribe is a typed pass-through to the store's subscription.
func (s *RoomService) Subscribe(code string, fn func(*RoomData)) (Unsubscribe, error) {
	code, err := normalizeRoomCode(code)
	if err != nil {
		return nil, err
	}
	return s.store.Subscribe(roomPath(code), fn), nil
}

// Disconnected forwards a transport drop to the store so armed writes fire.
func (s *RoomService) Disconnected(clientID string) {
	s.store.Disconnected(clientID)
}

// CancelDisconnect discards armed writes after a clean teardown.
func (s *RoomService) CancelDisconnect(clientID string) {
	s.store.CancelDisconnect(clientID)
}
