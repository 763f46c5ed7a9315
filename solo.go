// Single-player modes: untimed practice and the 60-second timed sprint.
//
// Same controller shape as the 1v1 game, minus the room fan-out: all state
// stays local to the connection, and the only thing that outlives it is the
// per-player personal best for the charset, written when a timed run sets a
// new one.

package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"
)

const (
	modePractice = "practice"
	modeTimed    = "timed"
)

type soloStateMessage struct {
	Type       string    `json:"type"` // "state"
	Mode       string    `json:"mode"`
	Phase      gamePhase `json:"phase"`
	Charset    string    `json:"charset"`
	TimeLeft   int       `json:"time_left,omitempty"`
	Prompt     string    `json:"prompt,omitempty"`
	Score      int       `json:"score"`
	Streak     int       `json:"streak"`
	MaxStreak  int       `json:"max_streak"`
	Attempts   int       `json:"attempts"`
	HighScore  int       `json:"high_score,omitempty"`
	BestStreak int       `json:"best_streak,omitempty"`
}

type soloResultMessage struct {
	Type          string `json:"type"` // "game_over"
	Score         int    `json:"score"`
	MaxStreak     int    `json:"max_streak"`
	Attempts      int    `json:"attempts"`
	HighScore     int    `json:"high_score"`
	BestStreak    int    `json:"best_streak"`
	NewHighScore  bool   `json:"new_high_score"`
	NewBestStreak bool   `json:"new_best_streak"`
}

type soloController struct {
	clock    clockwork.Clock
	scores   *ScoreStore
	playerID string
	mode     string
	charset  string
	duration time.Duration
	send     func(any)

	phase        gamePhase
	sequence     []KanaChar
	startAt      int64 // unix millis; 0 until the first start
	lastTimeLeft int

	score     int
	index     int
	streak    int
	maxStreak int
	attempts  int

	starts  chan struct{}
	guesses chan string
	stop    chan struct{}
	done    chan struct{}
}

func newSoloController(clock clockwork.Clock, scores *ScoreStore, playerID, mode, charset string, duration time.Duration, send func(any)) *soloController {
	if duration <= 0 {
		duration = defaultGameDuration
	}
	return &soloController{
		clock:    clock,
		scores:   scores,
		playerID: playerID,
		mode:     mode,
		charset:  charset,
		duration: duration,
		send:     send,
		phase:    phaseLoading,
		sequence: generateSequence(charset, defaultSequenceLength),
		starts:   make(chan struct{}, 1),
		guesses:  make(chan string, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *soloController) run() {
	defer close(c.done)

	// Practice needs no clock at all; it starts immediately.
	if c.mode == modePractice {
		c.phase = phasePlaying
	}
	c.sendState()

	ticker := c.clock.NewTicker(countdownPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-c.starts:
			c.onStart()
		case <-ticker.Chan():
			c.onTick()
		case guess := <-c.guesses:
			c.onGuess(guess)
		}
	}
}

// onStart begins (or restarts) a timed run.
func (c *soloController) onStart() {
	if c.mode != modeTimed {
		return
	}

	c.phase = phasePlaying
	c.startAt = c.clock.Now().UnixMilli()
	c.score, c.index, c.streak, c.maxStreak, c.attempts = 0, 0, 0, 0, 0
	c.sequence = generateSequence(c.charset, defaultSequenceLength)
	c.sendState()
}

func (c *soloController) timeLeft() int {
	elapsed := (c.clock.Now().UnixMilli() - c.startAt) / 1000
	return max(int(c.duration.Seconds())-int(elapsed), 0)
}

func (c *soloController) onTick() {
	if c.mode != modeTimed || c.phase != phasePlaying || c.startAt == 0 {
		return
	}

	remaining := c.timeLeft()
	if remaining <= 0 {
		c.finish()
		return
	}
	if remaining != c.lastTimeLeft {
		c.sendState()
	}
}

func (c *soloController) onGuess(guess string) {
	guess = strings.ToLower(strings.TrimSpace(guess))
	if guess == "" || c.phase != phasePlaying {
		return
	}

	// Practice runs indefinitely: extend the sequence with fresh shuffle
	// blocks as the cursor approaches the end.
	if c.index >= len(c.sequence) {
		c.sequence = append(c.sequence, generateSequence(c.charset, defaultSequenceLength)...)
	}

	current := c.sequence[c.index]
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
	c.index++

	c.sendState()
}

func (c *soloController) bests() Bests {
	if c.scores == nil {
		return Bests{}
	}
	return c.scores.Get(c.playerID, c.mode, c.charset)
}

func (c *soloController) sendState() {
	bests := c.bests()
	msg := soloStateMessage{
		Type:       "state",
		Mode:       c.mode,
		Phase:      c.phase,
		Charset:    c.charset,
		Score:      c.score,
		Streak:     c.streak,
		MaxStreak:  c.maxStreak,
		Attempts:   c.attempts,
		HighScore:  bests.HighScore,
		BestStreak: bests.BestStreak,
	}

	if c.phase == phasePlaying {
		if c.index < len(c.sequence) {
			msg.Prompt = c.sequence[c.index].Kana
		}
		if c.mode == modeTimed {
			msg.TimeLeft = c.timeLeft()
			c.lastTimeLeft = msg.TimeLeft
		}
	}

	c.send(msg)
}

func (c *soloController) finish() {
	if c.phase == phaseEnded {
		return
	}
	c.phase = phaseEnded

	var newHigh, newStreak bool
	if c.scores != nil {
		newHigh, newStreak = c.scores.Record(c.playerID, c.mode, c.charset, c.score, c.maxStreak)
	}
	bests := c.bests()

	c.send(soloResultMessage{
		Type:          "game_over",
		Score:         c.score,
		MaxStreak:     c.maxStreak,
		Attempts:      c.attempts,
		HighScore:     bests.HighScore,
		BestStreak:    bests.BestStreak,
		NewHighScore:  newHigh,
		NewBestStreak: newStreak,
	})
}

const playerCookieName = "kanabox_id"

// getOrSetPlayerID identifies a browser across sessions; personal bests key
// off it.
func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// serveSoloWS runs a practice or timed session over one websocket.
func serveSoloWS(cfg *Config, scores *ScoreStore, clock clockwork.Clock) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		mode := r.URL.Query().Get("mode")
		if mode != modePractice && mode != modeTimed {
			http.Error(w, "invalid mode", http.StatusBadRequest)
			return
		}

		charset := r.URL.Query().Get("charset")
		if !validCharset(charset) {
			charset = charsetHiragana
		}

		playerID := getOrSetPlayerID(w, r)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &wsClient{
			conn: conn,
			send: make(chan any, 32),
		}
		ctrl := newSoloController(clock, scores, playerID, mode, charset, cfg.gameDuration, client.trySend)

		log.Debug().Str("mode", mode).Str("charset", charset).Str("remote", realIP(r)).Msg("solo session started")

		go client.writePump()
		go ctrl.run()

		for {
			var msg clientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			switch msg.Type {
			case "start":
				select {
				case ctrl.starts <- struct{}{}:
				default:
				}
			case "guess":
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
	}
}

// registerSoloGame sets up routes so that:
//   - $path          → game client
//   - $path/ws?mode= → per-session websocket
func registerSoloGame(cfg *Config, scores *ScoreStore, clock clockwork.Clock, path string, mux *httprouter.Router) {
	mux.GET(cfg.prefix+path, serveAppPage(cfg))
	mux.GET(cfg.prefix+path+"/ws", serveSoloWS(cfg, scores, clock))
}
