package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	pingInterval = 30 * time.Minute
	pingTimeout  = 10 * time.Second
)

// Keepaliver tells the server this account is still active.
type Keepaliver interface {
	Ping(ctx context.Context) error
}

// pinger issues a keepalive on a background goroutine every interval,
// paced from the tick so it needs no timer goroutine of its own.
type pinger struct {
	log      zerolog.Logger
	client   Keepaliver
	last     time.Time
	inflight atomic.Bool
}

func newPinger(log zerolog.Logger, client Keepaliver) *pinger {
	return &pinger{log: log, client: client}
}

func (p *pinger) tick() {
	if !p.last.IsZero() && time.Since(p.last) < pingInterval {
		return
	}
	if !p.inflight.CompareAndSwap(false, true) {
		return
	}
	p.last = time.Now()

	go func() {
		defer p.inflight.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		if err := p.client.Ping(ctx); err != nil {
			p.log.Warn().Err(err).Msg("failed to ping")
		}
	}()
}
