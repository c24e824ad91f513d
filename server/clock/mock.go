package clock

import (
	"sync"
	"time"
)

// Mock is a Clock whose time only advances when Set or Add are called.
// Tickers created from it fire only via Tick.
type Mock struct {
	mu  sync.Mutex
	now time.Time
}

func NewMock(now time.Time) *Mock {
	return &Mock{now: now}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

func (m *Mock) Set(now time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

func (m *Mock) Add(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Mock) NewTicker(d time.Duration) Ticker {
	return &MockTicker{ch: make(chan time.Time, 1)}
}

type MockTicker struct {
	ch chan time.Time
}

// Tick fires the ticker once without blocking.
func (t *MockTicker) Tick(now time.Time) {
	select {
	case t.ch <- now:
	default:
	}
}

func (t *MockTicker) C() <-chan time.Time {
	return t.ch
}

func (t *MockTicker) Stop() {}
