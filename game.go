// Kanabox 1v1 Game
//
// Two players race through the same kana sequence for sixty seconds; most
// correct romanizations wins.
//
// Features:
// - Lobby creates a room with a 4-char code; joining a waiting room starts
//   the match immediately (no ready handshake)
// - Room document is the only shared state; each player writes only their
//   own slot, so the two sides never contend on the same fields
// - Per-connection game controller: one goroutine multiplexing subscription
//   pushes, countdown ticks, and guesses, mirroring a single-threaded client
// - Countdown is recomputed from the room's absolute startTime on every
//   tick, so a stalled tab cannot drift the two players apart
// - Own score rendered from local state, opponent's from the subscribed
//   room document
// - Disconnects flip the slot's connected flag server-side via the store's
//   armed disconnect write; the surviving peer shows a disconnected badge
// - In-browser QR code to share the join URL, backed by go-qrcode

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"
)

const (
	defaultGameDuration   = 60 * time.Second
	countdownPollInterval = 200 * time.Millisecond
	storeWriteTimeout     = 5 * time.Second
)

type gamePhase string

const (
	phaseLoading gamePhase = "loading"
	phasePlaying gamePhase = "playing"
	phaseEnded   gamePhase = "ended"
)

// Messages coming from clients
type clientMessage struct {
	Type  string `json:"type"`            // "guess"
	Guess string `json:"guess,omitempty"` // romaji attempt
}

// opponentView is the peer's data as observed through the room document.
type opponentView struct {
	Joined        bool `json:"joined"`
	Score         int  `json:"score"`
	Streak        int  `json:"streak"`
	MaxStreak     int  `json:"maxStreak"`
	TotalAttempts int  `json:"totalAttempts"`
	Connected     bool `json:"connected"`
}

// stateMessage is pushed whenever anything the client renders may have
// changed: phase transitions, countdown seconds, scores, opponent updates.
type stateMessage struct {
	Type         string        `json:"type"` // "state"
	Phase        gamePhase     `json:"phase"`
	Status       RoomStatus    `json:"status,omitempty"`
	Charset      string        `json:"charset,omitempty"`
	CharsetLabel string        `json:"charset_label,omitempty"`
	Code         string        `json:"code"`
	TimeLeft     int           `json:"time_left"`
	Prompt       string        `json:"prompt,omitempty"` // current kana, own cursor
	Score        int           `json:"score"`
	Streak       int           `json:"streak"`
	MaxStreak    int           `json:"max_streak"`
	Attempts     int           `json:"attempts"`
	Opponent     *opponentView `json:"opponent,omitempty"`
}

// feedbackMessage answers a single guess. Romaji is only set on a wrong
// guess, revealing the expected reading.
type feedbackMessage struct {
	Type    string `json:"type"` // "feedback"
	Correct bool   `json:"correct"`
	Romaji  string `json:"romaji,omitempty"`
}

// resultMessage closes out the match.
type resultMessage struct {
	Type     string        `json:"type"`   // "game_over"
	Result   string        `json:"result"` // "win", "lose", "draw"
	Score    int           `json:"score"`
	Streak   int           `json:"max_streak"`
	Attempts int           `json:"attempts"`
	Opponent *opponentView `json:"opponent,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// controller is the per-connection game state machine. Everything it owns is
// touched only from run's goroutine: subscription callbacks and the read pump
// communicate through channels, so handlers never run concurrently.
type controller struct {
	rooms    *RoomService
	clock    clockwork.Clock
	code     string
	slot     Slot
	clientID string
	duration time.Duration
	send     func(any)

	phase        gamePhase
	room         *RoomData
	lastTimeLeft int

	// Local score state: a player's own score renders from here for
	// immediate feedback, never from the store round trip.
	score     int
	index     int
	streak    int
	maxStreak int
	attempts  int

	updates chan *RoomData
	guesses chan string
	stop    chan struct{}
	done    chan struct{}
}

func newController(rooms *RoomService, clock clockwork.Clock, code string, slot Slot, duration time.Duration, send func(any)) *controller {
	if duration <= 0 {
		duration = defaultGameDuration
	}
	return &controller{
		rooms:    rooms,
		clock:    clock,
		code:     code,
		slot:     slot,
		clientID: uuid.NewString(),
		duration: duration,
		send:     send,
		phase:    phaseLoading,
		updates:  make(chan *RoomData, 16),
		guesses:  make(chan string, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// run drives the controller until the stop channel closes. It must be the
// only goroutine touching controller state, and done closing is the signal
// that no further c.send calls can happen.
func (c *controller) run() {
	defer close(c.done)

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	err := c.rooms.ReconnectPlayer(ctx, c.code, c.slot, c.clientID)
	cancel()
	if err != nil {
		c.send(errorMessage{Type: "error", Message: "Room not found."})
		return
	}

	unsub, err := c.rooms.Subscribe(c.code, c.pushUpdate)
	if err != nil {
		c.send(errorMessage{Type: "error", Message: "Room not found."})
		return
	}
	defer unsub()

	ticker := c.clock.NewTicker(countdownPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case room := <-c.updates:
			c.onRoomUpdate(room)
		case <-ticker.Chan():
			c.onTick()
		case guess := <-c.guesses:
			c.onGuess(guess)
		}
	}
}

// pushUpdate runs on the store's notification path; it must never block, so
// a full buffer drops the oldest snapshot (only the latest matters).
func (c *controller) pushUpdate(room *RoomData) {
	for {
		select {
		case c.updates <- room:
			return
		default:
			select {
			case <-c.updates:
			default:
			}
		}
	}
}

func (c *controller) onRoomUpdate(room *RoomData) {
	if room == nil {
		// Document missing: either a typo'd code or a reaped room.
		if c.phase != phaseEnded {
			c.send(errorMessage{Type: "error", Message: "Room no longer exists."})
		}
		return
	}

	c.room = room

	switch {
	case c.phase == phaseLoading && room.Status == statusPlaying:
		c.phase = phasePlaying
	case room.Status == statusEnded && c.phase != phaseEnded:
		c.finish()
		return
	}

	c.sendState()
}

// onTick recomputes remaining time from the shared absolute startTime.
func (c *controller) onTick() {
	if c.phase != phasePlaying || c.room == nil || c.room.StartTime == 0 {
		return
	}

	remaining := c.timeLeft()
	if remaining <= 0 {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		if err := c.rooms.EndGame(ctx, c.code); err != nil {
			log.Warn().Err(err).Str("room", c.code).Msg("end game write failed")
		}
		cancel()
		c.finish()
		return
	}

	if remaining != c.lastTimeLeft {
		c.sendState()
	}
}

func (c *controller) timeLeft() int {
	elapsed := (c.clock.Now().UnixMilli() - c.room.StartTime) / 1000
	remaining := int(c.duration.Seconds()) - int(elapsed)
	return max(remaining, 0)
}

func (c *controller) onGuess(guess string) {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess == "" || c.phase != phasePlaying || c.room == nil {
		return
	}
	if c.index >= len(c.room.Characters) {
		return
	}

	current := c.room.Characters[c.index]
	c.attempts++

	if guess == current.Romaji {
		c.score++
		c.streak++
		c.maxStreak = max(c.maxStreak, c.streak)
		c.send(feedbackMessage{Type: "feedback", Correct: true})
	} else {
		c.streak = 0
		c.send(feedbackMessage{Type: "feedback", Correct: false, Romaji: current.Romaji})
	}
	// The character is never repeated, right or wrong.
	c.index++

	ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
	err := c.rooms.UpdatePlayerScore(ctx, c.code, c.slot, ScoreUpdate{
		Score:         c.score,
		CurrentIndex:  c.index,
		Streak:        c.streak,
		MaxStreak:     c.maxStreak,
		TotalAttempts: c.attempts,
	})
	cancel()
	if err != nil {
		log.Warn().Err(err).Str("room", c.code).Str("slot", string(c.slot)).Msg("score push failed")
	}

	c.sendState()
}

func (c *controller) opponent() *opponentView {
	if c.room == nil {
		return nil
	}
	p := c.room.player(c.slot.opponent())
	if p == nil {
		return nil
	}
	return &opponentView{
		Joined:        p.Joined,
		Score:         p.Score,
		Streak:        p.Streak,
		MaxStreak:     p.MaxStreak,
		TotalAttempts: p.TotalAttempts,
		Connected:     p.Connected,
	}
}

func (c *controller) sendState() {
	msg := stateMessage{
		Type:      "state",
		Phase:     c.phase,
		Code:      c.code,
		Score:     c.score,
		Streak:    c.streak,
		MaxStreak: c.maxStreak,
		Attempts:  c.attempts,
		Opponent:  c.opponent(),
	}

	if c.room != nil {
		msg.Status = c.room.Status
		msg.Charset = c.room.Charset
		msg.CharsetLabel = charsetLabel(c.room.Charset)
		if c.phase == phasePlaying {
			msg.TimeLeft = c.timeLeft()
			c.lastTimeLeft = msg.TimeLeft
			if c.index < len(c.room.Characters) {
				msg.Prompt = c.room.Characters[c.index].Kana
			}
		}
	}

	c.send(msg)
}

// finish transitions to ended exactly once and reports the outcome. The
// opponent's final numbers come from the room document, the only place they
// are observable.
func (c *controller) finish() {
	if c.phase == phaseEnded {
		return
	}
	c.phase = phaseEnded

	opponent := c.opponent()
	opponentScore := 0
	if opponent != nil {
		opponentScore = opponent.Score
	}

	result := "draw"
	switch {
	case c.score > opponentScore:
		result = "win"
	case c.score < opponentScore:
		result = "lose"
	}

	c.send(resultMessage{
		Type:     "game_over",
		Result:   result,
		Score:    c.score,
		Streak:   c.maxStreak,
		Attempts: c.attempts,
		Opponent: opponent,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsClient struct {
	conn *websocket.Conn
	send chan any
}

func (c *wsClient) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// trySend queues a message for the client, dropping it if the client cannot
// keep up. Game state is resent continuously, so drops self-heal.
func (c *wsClient) trySend(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

// serveGameWS upgrades the connection and runs a controller for one player
// slot. The read pump doubles as the disconnect detector: when it returns,
// the armed connected=false write fires.
func serveGameWS(cfg *Config, rooms *RoomService, clock clockwork.Clock) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, err := normalizeRoomCode(ps.ByName("code"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		slot := Slot(r.URL.Query().Get("slot"))
		if !slot.valid() {
			http.Error(w, "invalid slot", http.StatusBadRequest)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan any, 32),
		}
		ctrl := newController(rooms, clock, code, slot, cfg.gameDuration, client.trySend)

		log.Debug().Str("room", code).Str("slot", string(slot)).Str("remote", realIP(r)).Msg("player connected")

		go client.writePump()
		go ctrl.run()

		// Read pump; returns when the connection drops.
		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			if msg.Type == "guess" {
				select {
				case ctrl.guesses <- msg.Guess:
				default:
				}
			}
		}

		// The controller is the only sender on client.send, so its exit
		// must be observed before the channel may close.
		close(ctrl.stop)
		<-ctrl.done
		close(client.send)
		_ = conn.Close()

		// Fire the dead-man's-switch: the peer observes connected=false
		// without any message from this side.
		rooms.Disconnected(ctrl.clientID)

		log.Debug().Str("room", code).Str("slot", string(slot)).Msg("player disconnected")
	}
}

type createRoomRequest struct {
	Charset string `json:"charset"`
}

type roomResponse struct {
	Code string `json:"code"`
	Slot Slot   `json:"slot"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// joinErrorStatus maps the join/create error taxonomy onto HTTP statuses.
// All of these are recoverable: the lobby shows the message and returns to
// its choice state.
func joinErrorStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidCode):
		return http.StatusBadRequest
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomExpired):
		return http.StatusGone
	case errors.Is(err, ErrRoomFull), errors.Is(err, ErrRoomAlreadyStarted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func createRoomHandler(cfg *Config, rooms *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createRoomRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorMessage{Type: "error", Message: "Invalid request."})
			return
		}

		code, err := rooms.CreateRoom(r.Context(), req.Charset)
		if err != nil {
			log.Error().Err(err).Msg("room creation failed")
			writeJSON(w, http.StatusInternalServerError, errorMessage{Type: "error", Message: "Failed to create room. Please try again."})
			return
		}

		writeJSON(w, http.StatusCreated, roomResponse{Code: code, Slot: slotPlayer1})
	}
}

func joinRoomHandler(cfg *Config, rooms *RoomService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, err := rooms.JoinRoom(r.Context(), ps.ByName("code"))
		if err != nil {
			status := joinErrorStatus(err)
			msg := err.Error()
			if status == http.StatusInternalServerError {
				msg = "Failed to join room. Please try again."
			}
			writeJSON(w, status, errorMessage{Type: "error", Message: msg})
			return
		}

		writeJSON(w, http.StatusOK, roomResponse{Code: code, Slot: slotPlayer2})
	}
}

// roomQRHandler renders a PNG QR code for the room's join URL.
func roomQRHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code, err := normalizeRoomCode(ps.ByName("code"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/1v1?join=" + code

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerKanaGame sets up routes so that:
//   - $path                        → game client (lobby + match screens)
//   - POST $path/rooms             → create a room (rate limited)
//   - POST $path/rooms/:code/join  → join a waiting room
//   - $path/rooms/:code/ws?slot=…  → per-player websocket
//   - $path/rooms/:code/qr        → PNG QR code for the join URL
func registerKanaGame(cfg *Config, rooms *RoomService, clock clockwork.Clock, path string, mux *httprouter.Router) {
	mux.GET(cfg.prefix+path, serveAppPage(cfg))

	mux.POST(cfg.prefix+path+"/rooms", rateLimited(cfg, createRoomHandler(cfg, rooms)))
	mux.POST(cfg.prefix+path+"/rooms/:code/join", joinRoomHandler(cfg, rooms))
	mux.GET(cfg.prefix+path+"/rooms/:code/ws", serveGameWS(cfg, rooms, clock))
	mux.GET(cfg.prefix+path+"/rooms/:code/qr", roomQRHandler(cfg))
}
