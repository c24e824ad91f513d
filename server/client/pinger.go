package client

import (
	"context"
	"time"

	"github.com/wireline/wireline/server/clock"
)

// Pinger sends pings on a regular interval and records incoming pongs.
// Its loop stops when ctx is done, which cancels the heartbeat timer on
// disconnect.
type Pinger struct {
	ticker clock.Ticker
	pongCh chan struct{}
	ping   func()
}

func NewPinger(ctx context.Context, clk clock.Clock, interval time.Duration, ping func()) *Pinger {
	p := &Pinger{
		ticker: clk.NewTicker(interval),
		pongCh: make(chan struct{}, 1),
		ping:   ping,
	}

	go p.run(ctx)

	return p
}

func (p *Pinger) run(ctx context.Context) {
	defer p.ticker.Stop()

	lastPongTime := time.Time{}

	for {
		select {
		case <-p.ticker.C():
			// TODO terminate the connection when no pong arrived within the
			// configured idle timeout. The timeout knob is accepted in the
			// config but enforcement is advisory for now.
			_ = lastPongTime

			p.ping()
		case <-p.pongCh:
			lastPongTime = time.Now()
		case <-ctx.Done():
			return
		}
	}
}

// ReceivePong notifies the loop of a pong without blocking.
func (p *Pinger) ReceivePong() {
	select {
	case p.pongCh <- struct{}{}:
	default: // An unprocessed pong is already queued.
	}
}
