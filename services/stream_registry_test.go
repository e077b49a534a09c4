package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shantanubawankar/Stockpricetracker/models"
	"github.com/shantanubawankar/Stockpricetracker/services"
)

const testInterval = 10 * time.Millisecond

// fakeStore is an in-memory StreamStore that records calls
type fakeStore struct {
	mu             sync.Mutex
	symbols        map[uint][]string
	alerts         []models.Alert
	deactivated    map[uint]bool
	watchlistReads int
	deactivateErr  error // returned once, then cleared
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		symbols:     make(map[uint][]string),
		deactivated: make(map[uint]bool),
	}
}

func (f *fakeStore) WatchlistSymbols(ctx context.Context, userID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchlistReads++
	return append([]string(nil), f.symbols[userID]...), nil
}

func (f *fakeStore) ActiveAlerts(ctx context.Context, userID uint, symbol string) ([]models.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Alert
	for _, a := range f.alerts {
		if a.UserID == userID && a.Symbol == symbol && !f.deactivated[a.ID] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateAlert(ctx context.Context, id uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deactivateErr != nil {
		err := f.deactivateErr
		f.deactivateErr = nil
		return false, err
	}
	if f.deactivated[id] {
		return false, nil
	}
	f.deactivated[id] = true
	return true, nil
}

func (f *fakeStore) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watchlistReads
}

// fakeFetcher serves canned quotes or failures per symbol
type fakeFetcher struct {
	mu     sync.Mutex
	quotes map[string]services.Quote
	fails  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		quotes: make(map[string]services.Quote),
		fails:  make(map[string]error),
	}
}

func (f *fakeFetcher) FetchQuote(ctx context.Context, symbol string) (services.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fails[symbol]; ok {
		return services.Quote{}, err
	}
	q, ok := f.quotes[symbol]
	if !ok {
		return services.Quote{}, &services.FetchError{Kind: services.FetchUnreachable, Symbol: symbol}
	}
	return q, nil
}

func (f *fakeFetcher) setPrice(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quotes[symbol] = services.Quote{Symbol: symbol, Price: price, Time: "2024-05-01"}
}

func nextEvent(t *testing.T, session *services.Session, timeout time.Duration) (services.Event, bool) {
	t.Helper()
	select {
	case ev := <-session.Events():
		return ev, true
	case <-time.After(timeout):
		return services.Event{}, false
	}
}

func requireEvent(t *testing.T, session *services.Session, wantType string) services.Event {
	t.Helper()
	ev, ok := nextEvent(t, session, time.Second)
	require.True(t, ok, "timed out waiting for %q event", wantType)
	require.Equal(t, wantType, ev.Type)
	return ev
}

func TestStream_QuoteThenAlertThenOneShot(t *testing.T) {
	store := newFakeStore()
	store.symbols[7] = []string{"ACME"}
	store.alerts = []models.Alert{{
		ID:        1,
		UserID:    7,
		Symbol:    "ACME",
		Direction: models.DirectionAbove,
		Threshold: decimal.NewFromInt(100),
		Active:    true,
	}}

	fetcher := newFakeFetcher()
	fetcher.setPrice("ACME", 100.00)

	registry := services.NewStreamRegistry(store, fetcher, testInterval)
	session := registry.Open(7)
	defer registry.Close(session)

	requireEvent(t, session, "connected")

	quoteEv := requireEvent(t, session, "quote")
	quote, ok := quoteEv.Data.(services.Quote)
	require.True(t, ok)
	assert.Equal(t, "ACME", quote.Symbol)
	assert.Equal(t, 100.00, quote.Price)

	alertEv := requireEvent(t, session, "alert")
	payload, ok := alertEv.Data.(services.AlertPayload)
	require.True(t, ok)
	assert.Equal(t, uint(1), payload.ID)
	assert.Equal(t, "ACME", payload.Symbol)
	assert.Equal(t, "ACME reached ≥ 100", payload.Message)

	// Subsequent ticks keep satisfying the condition but the alert is
	// deactivated and must never fire again
	fetcher.setPrice("ACME", 101.00)
	deadline := time.After(8 * testInterval)
	for {
		select {
		case ev := <-session.Events():
			require.NotEqual(t, "alert", ev.Type, "one-shot alert fired twice")
		case <-deadline:
			return
		}
	}
}

func TestStream_OpenReplacesExistingSession(t *testing.T) {
	store := newFakeStore()
	store.symbols[7] = []string{"ACME"}
	fetcher := newFakeFetcher()
	fetcher.setPrice("ACME", 10)

	registry := services.NewStreamRegistry(store, fetcher, testInterval)

	first := registry.Open(7)
	second := registry.Open(7)
	defer registry.Close(second)

	require.Equal(t, 1, registry.Len(), "replace must not duplicate the session")

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("replaced session was not cancelled")
	}

	// With only one live polling task, tick count over a window stays
	// near one tick per interval, not two
	time.Sleep(3 * testInterval)
	before := store.reads()
	time.Sleep(10 * testInterval)
	delta := store.reads() - before
	assert.GreaterOrEqual(t, delta, 5)
	assert.LessOrEqual(t, delta, 14, "replaced session appears to still be ticking")
}

func TestStream_FetchFailureDoesNotBlockOtherSymbols(t *testing.T) {
	store := newFakeStore()
	store.symbols[7] = []string{"AAA", "BBB"}
	fetcher := newFakeFetcher()
	fetcher.fails["AAA"] = &services.FetchError{Kind: services.FetchRateLimited, Symbol: "AAA"}
	fetcher.setPrice("BBB", 42)

	registry := services.NewStreamRegistry(store, fetcher, testInterval)
	session := registry.Open(7)
	defer registry.Close(session)

	requireEvent(t, session, "connected")

	quoteEv := requireEvent(t, session, "quote")
	quote := quoteEv.Data.(services.Quote)
	assert.Equal(t, "BBB", quote.Symbol, "failing symbol must be skipped, not abort the tick")
}

func TestStream_CloseStopsTicks(t *testing.T) {
	store := newFakeStore()
	store.symbols[7] = []string{"ACME"}
	fetcher := newFakeFetcher()
	fetcher.setPrice("ACME", 10)

	registry := services.NewStreamRegistry(store, fetcher, testInterval)
	session := registry.Open(7)

	requireEvent(t, session, "connected")
	requireEvent(t, session, "quote")

	registry.Close(session)
	require.Equal(t, 0, registry.Len())

	// Allow any in-flight tick to finish, then assert silence
	time.Sleep(2 * testInterval)
	baseline := store.reads()
	time.Sleep(5 * testInterval)
	assert.Equal(t, baseline, store.reads(), "ticks continued after close")

	// Idempotent
	registry.Close(session)
	require.Equal(t, 0, registry.Len())
}

func TestStream_DeactivationFailureRetriesNextTick(t *testing.T) {
	store := newFakeStore()
	store.symbols[7] = []string{"ACME"}
	store.alerts = []models.Alert{{
		ID:        1,
		UserID:    7,
		Symbol:    "ACME",
		Direction: models.DirectionAbove,
		Threshold: decimal.NewFromInt(100),
		Active:    true,
	}}
	store.deactivateErr = fmt.Errorf("store unavailable")

	fetcher := newFakeFetcher()
	fetcher.setPrice("ACME", 150)

	registry := services.NewStreamRegistry(store, fetcher, testInterval)
	session := registry.Open(7)
	defer registry.Close(session)

	requireEvent(t, session, "connected")

	// First tick: quote but no alert, deactivation failed
	requireEvent(t, session, "quote")

	// The alert event arrives once the retry succeeds, and only once
	var alertCount int
	deadline := time.After(10 * testInterval)
	for alertCount == 0 {
		select {
		case ev := <-session.Events():
			if ev.Type == "alert" {
				alertCount++
			}
		case <-deadline:
			t.Fatal("alert was never re-attempted after deactivation failure")
		}
	}

	drain := time.After(5 * testInterval)
	for {
		select {
		case ev := <-session.Events():
			require.NotEqual(t, "alert", ev.Type, "alert fired more than once")
		case <-drain:
			require.Equal(t, 1, alertCount)
			return
		}
	}
}

func TestStream_CloseAll(t *testing.T) {
	store := newFakeStore()
	fetcher := newFakeFetcher()
	registry := services.NewStreamRegistry(store, fetcher, testInterval)

	a := registry.Open(1)
	b := registry.Open(2)
	require.Equal(t, 2, registry.Len())

	registry.CloseAll()
	require.Equal(t, 0, registry.Len())

	for _, s := range []*services.Session{a, b} {
		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session not cancelled by CloseAll")
		}
	}
}
