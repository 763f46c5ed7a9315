// Redis-backed Store implementation.
//
// A room is one Redis hash whose field names are the same slash-separated
// paths the in-memory store accepts, with the prompt sequence stored as a
// JSON blob. A single HSET covers the whole field set of an Update, which is
// what gives per-call atomicity. Change pushes ride a pub/sub channel named
// after the room key; subscribers re-read the hash on every ping. Room keys
// carry a TTL matching the staleness window, so Redis itself garbage-collects
// abandoned rooms.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "kanabox:"

type RedisStore struct {
	client    *redis.Client
	retention time.Duration

	mu    sync.Mutex
	armed map[string][]armedWrite
}

func NewRedisStore(ctx context.Context, addr string, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}

	return &RedisStore{
		client:    client,
		retention: retention,
		armed:     make(map[string][]armedWrite),
	}, nil
}

func redisKey(path string) string {
	return redisKeyPrefix + path
}

func (s *RedisStore) Create(ctx context.Context, path string, room *RoomData) error {
	key := redisKey(path)

	// createdAt doubles as the existence guard: HSETNX loses against any
	// concurrent creator of the same code.
	ok, err := s.client.HSetNX(ctx, key, "createdAt", strconv.FormatInt(room.CreatedAt, 10)).Result()
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if !ok {
		return errDocExists
	}

	fields, err := encodeRoom(room)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if s.retention > 0 {
		pipe.Expire(ctx, key, s.retention)
	}
	pipe.Publish(ctx, key, "create")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, path string) (*RoomData, error) {
	raw, err := s.client.HGetAll(ctx, redisKey(path)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(raw) == 0 {
		return nil, errDocNotFound
	}
	return decodeRoom(raw)
}

func (s *RedisStore) Update(ctx context.Context, path string, fields Fields) error {
	key := redisKey(path)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	if exists == 0 {
		return errDocNotFound
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, encoded)
	pipe.Publish(ctx, key, "update")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("updating %s: %w", path, err)
	}
	return nil
}

func (s *RedisStore) Subscribe(path string, fn func(*RoomData)) Unsubscribe {
	ctx, cancel := context.WithCancel(context.Background())
	key := redisKey(path)

	// Initial synchronous delivery, matching the in-memory store.
	doc, err := s.Read(ctx, path)
	if err != nil {
		doc = nil
	}
	fn(doc)

	pubsub := s.client.Subscribe(ctx, key)
	go func() {
		for range pubsub.Channel() {
			doc, err := s.Read(ctx, path)
			if err != nil {
				doc = nil
			}
			fn(doc)
		}
	}()

	return func() {
		_ = pubsub.Close()
		cancel()
	}
}

func (s *RedisStore) OnDisconnect(clientID, path string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed[clientID] = append(s.armed[clientID], armedWrite{path: path, fields: fields})
}

func (s *RedisStore) CancelDisconnect(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.armed, clientID)
}

func (s *RedisStore) Disconnected(clientID string) {
	s.mu.Lock()
	writes := s.armed[clientID]
	delete(s.armed, clientID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, w := range writes {
		if err := s.Update(ctx, w.path, w.fields); err != nil {
			log.Warn().Err(err).Str("path", w.path).Msg("disconnect write failed")
		}
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// encodeFields flattens a partial update into hash fields. Whole-player
// values expand into their subfields so later per-field updates merge
// instead of clobbering.
func encodeFields(fields Fields) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for path, value := range fields {
		switch v := value.(type) {
		case RoomStatus:
			out[path] = string(v)
		case string:
			out[path] = v
		case bool:
			out[path] = strconv.FormatBool(v)
		case int:
			out[path] = strconv.Itoa(v)
		case int64:
			out[path] = strconv.FormatInt(v, 10)
		case PlayerData:
			out[path+"/joined"] = strconv.FormatBool(v.Joined)
			out[path+"/score"] = strconv.Itoa(v.Score)
			out[path+"/currentIndex"] = strconv.Itoa(v.CurrentIndex)
			out[path+"/streak"] = strconv.Itoa(v.Streak)
			out[path+"/maxStreak"] = strconv.Itoa(v.MaxStreak)
			out[path+"/totalAttempts"] = strconv.Itoa(v.TotalAttempts)
			out[path+"/connected"] = strconv.FormatBool(v.Connected)
		case []KanaChar:
			blob, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("encoding %q: %w", path, err)
			}
			out[path] = string(blob)
		default:
			return nil, fmt.Errorf("encoding %q: unsupported type %T", path, value)
		}
	}
	return out, nil
}

func encodeRoom(room *RoomData) (map[string]string, error) {
	fields := Fields{
		"charset":    room.Charset,
		"characters": room.Characters,
		"createdAt":  room.CreatedAt,
		"status":     room.Status,
		"player1":    room.Player1,
	}
	if room.StartTime != 0 {
		fields["startTime"] = room.StartTime
	}
	if room.Player2 != nil {
		fields["player2"] = *room.Player2
	}
	return encodeFields(fields)
}

func decodeRoom(raw map[string]string) (*RoomData, error) {
	room := &RoomData{}

	var err error
	parseInt := func(s string) int64 {
		if err != nil {
			return 0
		}
		var v int64
		v, err = strconv.ParseInt(s, 10, 64)
		return v
	}
	parseBool := func(s string) bool {
		if err != nil {
			return false
		}
		var v bool
		v, err = strconv.ParseBool(s)
		return v
	}

	players := map[Slot]*PlayerData{}
	playerFor := func(slot Slot) *PlayerData {
		if p, ok := players[slot]; ok {
			return p
		}
		p := &PlayerData{}
		players[slot] = p
		return p
	}

	for field, value := range raw {
		head, rest, _ := strings.Cut(field, "/")
		switch head {
		case "charset":
			room.Charset = value
		case "createdAt":
			room.CreatedAt = parseInt(value)
		case "startTime":
			room.StartTime = parseInt(value)
		case "status":
			room.Status = RoomStatus(value)
		case "characters":
			if jsonErr := json.Unmarshal([]byte(value), &room.Characters); jsonErr != nil {
				return nil, fmt.Errorf("decoding characters: %w", jsonErr)
			}
		case "player1", "player2":
			p := playerFor(Slot(head))
			switch rest {
			case "joined":
				p.Joined = parseBool(value)
			case "connected":
				p.Connected = parseBool(value)
			case "score":
				p.Score = int(parseInt(value))
			case "currentIndex":
				p.CurrentIndex = int(parseInt(value))
			case "streak":
				p.Streak = int(parseInt(value))
			case "maxStreak":
				p.MaxStreak = int(parseInt(value))
			case "totalAttempts":
				p.TotalAttempts = int(parseInt(value))
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decoding field %q=%q: %w", field, value, err)
		}
	}

	if p1, ok := players[slotPlayer1]; ok {
		room.Player1 = *p1
	}
	if p2, ok := players[slotPlayer2]; ok {
		room.Player2 = p2
	}
	return room, nil
}
