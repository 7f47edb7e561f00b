// Package clock provides the time source used by the session guard.
// Production code uses Real; tests drive a Manual clock forward explicitly.
package clock

import (
	"sync"
	"time"

	bclock "github.com/benbjohnson/clock"
)

// Clock provides the current time and periodic tickers.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until Stop is called.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

var system = bclock.New()

// Real provides actual system time.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time {
	return system.Now()
}

// NewTicker returns a wall-clock ticker.
func (Real) NewTicker(d time.Duration) Ticker {
	return &ticker{t: system.Ticker(d)}
}

type ticker struct {
	t *bclock.Ticker
}

func (t *ticker) C() <-chan time.Time { return t.t.C }
func (t *ticker) Stop()               { t.t.Stop() }

// Manual is a Clock whose time only moves when Set or Advance is called.
// Tickers created from it fire as the clock passes their deadlines and,
// like time.Ticker, drop ticks when the receiver falls behind.
type Manual struct {
	mock *bclock.Mock

	mu     sync.Mutex
	active int
}

// NewManual returns a Manual clock starting at t.
func NewManual(t time.Time) *Manual {
	mock := bclock.NewMock()
	mock.Set(t)
	return &Manual{mock: mock}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	return m.mock.Now()
}

// Advance moves the clock forward by d and fires any due tickers.
func (m *Manual) Advance(d time.Duration) {
	m.mock.Add(d)
}

// Set moves the clock to t. Moving backwards never fires tickers.
func (m *Manual) Set(t time.Time) {
	m.mock.Set(t)
}

// NewTicker returns a ticker that fires every d of manual time.
func (m *Manual) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	m.mu.Lock()
	m.active++
	m.mu.Unlock()

	return &manualTicker{ticker: ticker{t: m.mock.Ticker(d)}, owner: m}
}

// ActiveTickers reports how many tickers have not been stopped.
func (m *Manual) ActiveTickers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

type manualTicker struct {
	ticker
	owner *Manual
	once  sync.Once
}

func (t *manualTicker) Stop() {
	t.once.Do(func() {
		t.t.Stop()
		t.owner.mu.Lock()
		t.owner.active--
		t.owner.mu.Unlock()
	})
}
