package events

import (
	"context"
	"sync"

	"payway/core/types"
)

const defaultBacklog = 64

// Stream fans emitted events out to websocket subscribers while retaining a
// bounded backlog so late joiners can catch up. It implements Emitter and can
// be chained in front of another emitter.
type Stream struct {
	mu      sync.Mutex
	backlog []*types.Event
	limit   int
	nextID  uint64
	subs    map[uint64]chan *types.Event
}

// NewStream creates a stream retaining up to limit recent events. A
// non-positive limit selects the default backlog size.
func NewStream(limit int) *Stream {
	if limit <= 0 {
		limit = defaultBacklog
	}
	return &Stream{limit: limit, subs: make(map[uint64]chan *types.Event)}
}

// Emit implements the Emitter interface. Events that do not implement Wire or
// render to nil are dropped. Slow subscribers are skipped rather than blocked;
// they still observe the event through the backlog on reconnect.
func (s *Stream) Emit(event Event) {
	wire, ok := event.(Wire)
	if !ok {
		return
	}
	payload := wire.Event()
	if payload == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlog = append(s.backlog, payload)
	if len(s.backlog) > s.limit {
		s.backlog = s.backlog[len(s.backlog)-s.limit:]
	}
	for _, ch := range s.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel, a cancel
// function, and a snapshot of the current backlog. The channel is closed when
// the context is done or cancel is invoked.
func (s *Stream) Subscribe(ctx context.Context) (<-chan *types.Event, func(), []*types.Event) {
	ch := make(chan *types.Event, s.limit)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	backlog := append([]*types.Event(nil), s.backlog...)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel, backlog
}
