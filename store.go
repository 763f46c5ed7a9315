// Room document store.
//
// The store is the only shared surface between the two clients of a match:
// a small document store with atomic partial field updates, point reads,
// change subscriptions (the full document is pushed synchronously on
// subscribe and again after every mutation), and disconnect actions - writes
// armed by a client and applied by the store when that client's transport
// drops, without the client's cooperation.
//
// Guarantees are deliberately weak: a single Update is atomic across its own
// field set, updates eventually reach every subscriber, and nothing more.

package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	errDocNotFound = errors.New("document not found")
	errDocExists   = errors.New("document already exists")
)

// Fields is a partial document: slash-separated field paths relative to the
// document root ("status", "player1/connected") mapped to new values.
type Fields map[string]any

// Unsubscribe stops a subscription's deliveries and releases it.
type Unsubscribe func()

// Store is the room document store contract. Implementations must deliver
// the current document (nil if absent) synchronously from Subscribe, then
// push the full document after every mutation, including mutations made by
// other clients.
type Store interface {
	// Create writes a new document, failing with errDocExists if the path
	// is already occupied.
	Create(ctx context.Context, path string, room *RoomData) error

	// Read returns a snapshot of the document, or errDocNotFound.
	Read(ctx context.Context, path string) (*RoomData, error)

	// Update merges the given fields into the document atomically. Sibling
	// fields are left untouched.
	Update(ctx context.Context, path string, fields Fields) error

	// Subscribe registers fn for the document at path. fn is invoked
	// synchronously with the current state before Subscribe returns.
	Subscribe(path string, fn func(*RoomData)) Unsubscribe

	// OnDisconnect arms a write to be applied when Disconnected is called
	// for clientID. Re-arming is required after every reconnect; firing
	// consumes the armed writes.
	OnDisconnect(clientID, path string, fields Fields)

	// CancelDisconnect discards any writes armed for clientID.
	CancelDisconnect(clientID string)

	// Disconnected applies and consumes all writes armed for clientID.
	// Called by the transport layer when a client connection drops.
	Disconnected(clientID string)

	Close() error
}

type armedWrite struct {
	path   string
	fields Fields
}

type subscriber struct {
	path string
	fn   func(*RoomData)
}

// MemoryStore is the in-process Store implementation. Snapshots handed to
// subscribers are deep copies, so callbacks can never observe a half-applied
// update.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]*RoomData
	subs    map[int]*subscriber
	armed   map[string][]armedWrite
	nextSub int

	clock clockwork.Clock
	done  chan struct{}
	once  sync.Once
}

// NewMemoryStore returns a MemoryStore. If retention is positive, a reaper
// goroutine drops documents whose createdAt is older than retention,
// mirroring the TTL the Redis backend gets for free.
func NewMemoryStore(clock clockwork.Clock, retention time.Duration) *MemoryStore {
	s := &MemoryStore{
		docs:  make(map[string]*RoomData),
		subs:  make(map[int]*subscriber),
		armed: make(map[string][]armedWrite),
		clock: clock,
		done:  make(chan struct{}),
	}
	if retention > 0 {
		go s.reaperLoop(retention)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, path string, room *RoomData) error {
	s.mu.Lock()

	if _, ok := s.docs[path]; ok {
		s.mu.Unlock()
		return errDocExists
	}
	s.docs[path] = room.clone()

	notify := s.pendingNotifiesLocked(path)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, path string) (*RoomData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[path]
	if !ok {
		return nil, errDocNotFound
	}
	return doc.clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, path string, fields Fields) error {
	s.mu.Lock()

	doc, ok := s.docs[path]
	if !ok {
		s.mu.Unlock()
		return errDocNotFound
	}

	// Apply to a copy first so a bad field path cannot leave the stored
	// document half-updated.
	next := doc.clone()
	for field, value := range fields {
		if err := next.setField(field, value); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.docs[path] = next

	notify := s.pendingNotifiesLocked(path)
	s.mu.Unlock()

	notify()
	return nil
}

func (s *MemoryStore) Subscribe(path string, fn func(*RoomData)) Unsubscribe {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = &subscriber{path: path, fn: fn}

	var snapshot *RoomData
	if doc, ok := s.docs[path]; ok {
		snapshot = doc.clone()
	}
	s.mu.Unlock()

	// Initial synchronous delivery; nil means the document does not exist.
	fn(snapshot)

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) OnDisconnect(clientID, path string, fields Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.armed[clientID] = append(s.armed[clientID], armedWrite{path: path, fields: fields})
}

func (s *MemoryStore) CancelDisconnect(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.armed, clientID)
}

func (s *MemoryStore) Disconnected(clientID string) {
	s.mu.Lock()
	writes := s.armed[clientID]
	delete(s.armed, clientID)
	s.mu.Unlock()

	for _, w := range writes {
		if err := s.Update(context.Background(), w.path, w.fields); err != nil && !errors.Is(err, errDocNotFound) {
			log.Warn().Err(err).Str("path", w.path).Msg("disconnect write failed")
		}
	}
}

func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// pendingNotifiesLocked collects the callbacks and snapshots for path while
// the lock is held, and returns a func that invokes them after release, so
// subscriber code can call back into the store.
func (s *MemoryStore) pendingNotifiesLocked(path string) func() {
	doc := s.docs[path]

	var fns []func(*RoomData)
	for _, sub := range s.subs {
		if sub.path == path {
			fns = append(fns, sub.fn)
		}
	}
	if len(fns) == 0 {
		return func() {}
	}

	return func() {
		for _, fn := range fns {
			var snapshot *RoomData
			if doc != nil {
				snapshot = doc.clone()
			}
			fn(snapshot)
		}
	}
}

// reaperLoop periodically drops documents older than retention.
func (s *MemoryStore) reaperLoop(retention time.Duration) {
	ticker := s.clock.NewTicker(retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.Chan():
			cutoff := s.clock.Now().Add(-retention).UnixMilli()

			s.mu.Lock()
			for path, doc := range s.docs {
				if doc.CreatedAt < cutoff {
					delete(s.docs, path)
					log.Debug().Str("path", path).Msg("reaped stale room")
				}
			}
			s.mu.Unlock()
		}
	}
}
