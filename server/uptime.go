package server

import (
	"sync"
	"time"

	"github.com/wireline/wireline/server/clock"
)

// UptimeMonitor tracks how long the server has been running.
type UptimeMonitor struct {
	clock clock.Clock

	mu        sync.Mutex
	startedAt time.Time
	running   bool
}

func NewUptimeMonitor(clk clock.Clock) *UptimeMonitor {
	return &UptimeMonitor{clock: clk}
}

func (m *UptimeMonitor) Start() {
	m.mu.Lock()
	m.startedAt = m.clock.Now()
	m.running = true
	m.mu.Unlock()
}

func (m *UptimeMonitor) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Uptime returns the elapsed time since Start, or zero when stopped.
func (m *UptimeMonitor) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return 0
	}

	return m.clock.Now().Sub(m.startedAt)
}
