package services

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Event is one frame on a session's push channel
type Event struct {
	Type string
	Data interface{}
}

// ConnectedPayload acknowledges a newly opened stream
type ConnectedPayload struct {
	OK bool `json:"ok"`
}

// AlertPayload is the client-facing alert event
type AlertPayload struct {
	ID      uint   `json:"id"`
	Symbol  string `json:"symbol"`
	Message string `json:"message"`
}

// QuoteArchiver records successfully fetched quotes somewhere durable.
// Best effort, failures are the archiver's problem.
type QuoteArchiver interface {
	ArchiveQuote(ctx context.Context, quote Quote)
}

// QuoteBroadcaster fans a quote out to feed subscribers
type QuoteBroadcaster interface {
	BroadcastQuote(quote Quote)
}

// Session is one user's live stream: an event channel plus the polling
// task feeding it. At most one live Session per user.
type Session struct {
	userID    uint
	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events is the ordered push channel read by the transport handler
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is torn down or replaced
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// emit queues an event for delivery. Returns false once the session is
// closed so an in-flight tick stops writing. A full buffer drops the
// frame rather than blocking the tick; the stream makes no replay
// guarantee.
func (s *Session) emit(ev Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case <-s.done:
		return false
	case s.events <- ev:
		return true
	default:
		return true
	}
}

// StreamRegistry owns the table of live sessions and their polling tasks.
// It is the only structure mutated by multiple sessions' control flow.
type StreamRegistry struct {
	store    StreamStore
	fetcher  QuoteFetcher
	interval time.Duration

	// Optional collaborators, safe to leave nil
	Archive QuoteArchiver
	Feed    QuoteBroadcaster

	mu       sync.Mutex
	sessions map[uint]*Session
}

func NewStreamRegistry(store StreamStore, fetcher QuoteFetcher, interval time.Duration) *StreamRegistry {
	return &StreamRegistry{
		store:    store,
		fetcher:  fetcher,
		interval: interval,
		sessions: make(map[uint]*Session),
	}
}

// Open creates the session's push channel and starts its polling task. If
// the user already holds an open session it is replaced, never duplicated:
// the prior task is cancelled first so alerts cannot double-fire.
func (r *StreamRegistry) Open(userID uint) *Session {
	session := &Session{
		userID: userID,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	if old, ok := r.sessions[userID]; ok {
		old.close()
	}
	r.sessions[userID] = session
	r.mu.Unlock()

	session.emit(Event{Type: "connected", Data: ConnectedPayload{OK: true}})
	go r.poll(session)

	return session
}

// Close tears down the session: cancels its polling task and removes the
// registry entry. Idempotent, and a no-op for a session that has already
// been replaced.
func (r *StreamRegistry) Close(session *Session) {
	r.mu.Lock()
	if current, ok := r.sessions[session.userID]; ok && current == session {
		delete(r.sessions, session.userID)
	}
	r.mu.Unlock()
	session.close()
}

// CloseAll tears down every live session, used at shutdown
func (r *StreamRegistry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[uint]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Len reports the number of live sessions
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// poll runs the session's repeating task until the session is closed
func (r *StreamRegistry) poll(session *Session) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-session.done:
			return
		case <-ticker.C:
			r.tick(session)
		}
	}
}

// tick fetches quotes for the session's current watchlist, evaluates
// alerts and pushes events. A fetch failure skips that symbol for this
// tick only; the next tick retries.
func (r *StreamRegistry) tick(session *Session) {
	ctx := context.Background()

	symbols, err := r.store.WatchlistSymbols(ctx, session.userID)
	if err != nil {
		log.Printf("Watchlist read failed for user %d: %v", session.userID, err)
		return
	}

	for _, symbol := range symbols {
		select {
		case <-session.done:
			return
		default:
		}

		quote, err := r.fetcher.FetchQuote(ctx, symbol)
		if err != nil {
			var fetchErr *FetchError
			if errors.As(err, &fetchErr) && fetchErr.Kind == FetchConfigurationMissing {
				log.Printf("Quote provider not configured, all fetches will fail: %v", err)
			} else {
				log.Printf("Quote fetch failed for %s, retrying next tick: %v", symbol, err)
			}
			continue
		}

		if !session.emit(Event{Type: "quote", Data: quote}) {
			return
		}

		if r.Feed != nil {
			r.Feed.BroadcastQuote(quote)
		}
		if r.Archive != nil {
			r.Archive.ArchiveQuote(ctx, quote)
		}

		alerts, err := r.store.ActiveAlerts(ctx, session.userID, symbol)
		if err != nil {
			log.Printf("Alert read failed for user %d symbol %s: %v", session.userID, symbol, err)
			continue
		}

		for _, alert := range EvaluateAlerts(quote, alerts) {
			// Deactivate first; the event is only sent once the
			// one-shot transition is confirmed.
			flipped, err := r.store.DeactivateAlert(ctx, alert.ID)
			if err != nil {
				log.Printf("Alert %d deactivation failed, will re-evaluate next tick: %v", alert.ID, err)
				continue
			}
			if !flipped {
				continue
			}
			if !session.emit(Event{Type: "alert", Data: AlertPayload{
				ID:      alert.ID,
				Symbol:  symbol,
				Message: AlertMessage(alert),
			}}) {
				return
			}
		}
	}
}
