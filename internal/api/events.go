package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/parley/internal/metrics"
)

// SSEEvent is one server-sent event as delivered to subscribers.
type SSEEvent struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	Timestamp      string          `json:"timestamp"`
	ConversationID int64           `json:"conversation_id,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// EventFilter restricts which events a subscriber receives.
type EventFilter struct {
	Types         []string
	Conversations []int64
}

// Bus provides pub-sub event distribution for SSE subscribers.
// It maintains a ring buffer for replay on reconnect.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]subscriber
	nextID      uint64
	seq         atomic.Uint64

	ring     []SSEEvent
	ringSize int
	ringHead int
	ringMu   sync.RWMutex
}

type subscriber struct {
	ch     chan SSEEvent
	filter EventFilter
}

// NewBus creates an event bus with the given ring buffer size.
func NewBus(ringSize int) *Bus {
	return &Bus{
		subscribers: make(map[uint64]subscriber),
		ring:        make([]SSEEvent, ringSize),
		ringSize:    ringSize,
	}
}

// Subscribe registers a new subscriber and returns a channel and cancel function.
func (b *Bus) Subscribe(filter EventFilter) (<-chan SSEEvent, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan SSEEvent, 64)
	b.subscribers[id] = subscriber{ch: ch, filter: filter}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
	return ch, cancel
}

// ReplaySince returns buffered events since the given event ID.
func (b *Bus) ReplaySince(lastEventID string, filter EventFilter) []SSEEvent {
	b.ringMu.RLock()
	defer b.ringMu.RUnlock()

	var events []SSEEvent
	found := lastEventID == ""

	for i := 0; i < b.ringSize; i++ {
		idx := (b.ringHead + i) % b.ringSize
		e := b.ring[idx]
		if e.ID == "" {
			continue
		}
		if !found {
			if e.ID == lastEventID {
				found = true
			}
			continue
		}
		if matchesFilter(e, filter) {
			events = append(events, e)
		}
	}
	return events
}

// Publish sends an event to all matching subscribers and adds it to the
// ring buffer. Slow subscribers have events dropped, never block the
// publisher.
func (b *Bus) Publish(eventType string, conversationID int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	seq := b.seq.Add(1)
	event := SSEEvent{
		ID:             fmt.Sprintf("%d-%d", time.Now().UnixMilli(), seq),
		Type:           eventType,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
		ConversationID: conversationID,
		Data:           data,
	}

	b.ringMu.Lock()
	b.ring[b.ringHead] = event
	b.ringHead = (b.ringHead + 1) % b.ringSize
	b.ringMu.Unlock()

	metrics.SSEEventsPublishedTotal.Inc()

	b.mu.RLock()
	for _, sub := range b.subscribers {
		if matchesFilter(event, sub.filter) {
			select {
			case sub.ch <- event:
			default:
			}
		}
	}
	b.mu.RUnlock()
}

func matchesFilter(e SSEEvent, f EventFilter) bool {
	if len(f.Types) > 0 {
		match := false
		for _, t := range f.Types {
			if strings.TrimSpace(t) == e.Type {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if len(f.Conversations) > 0 && e.ConversationID != 0 {
		match := false
		for _, id := range f.Conversations {
			if id == e.ConversationID {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}

// StreamEvents opens an SSE connection and pushes filtered events.
func (s *Server) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	filter := EventFilter{
		Conversations: QueryInt64List(r, "conversations"),
	}
	if v, ok := QueryString(r, "types"); ok {
		filter.Types = strings.Split(v, ",")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Replay missed events if Last-Event-ID is provided
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID != "" {
		for _, e := range s.bus.ReplaySince(lastEventID, filter) {
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", e.ID, e.Type, e.Data)
		}
		flusher.Flush()
	}

	ch, cancel := s.bus.Subscribe(filter)
	defer cancel()

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	log := hlog.FromRequest(r)
	log.Info().Msg("SSE client connected")

	for {
		select {
		case <-r.Context().Done():
			log.Info().Msg("SSE client disconnected")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
