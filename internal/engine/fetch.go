package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/metrics"
	"github.com/waymark-protocol/waymark/internal/models"
)

// fetchTimeout bounds one location fetch.
const fetchTimeout = 30 * time.Second

// Fetcher retrieves the authoritative message set for a location.
type Fetcher interface {
	LocationMessages(ctx context.Context, loc Location) ([]*models.Message, error)
}

// FetchCoordinator replaces the cache contents from the remote source in
// the background. Refreshes carry a monotonic generation so a slow stale
// response cannot clobber the result of a newer one.
type FetchCoordinator struct {
	log     zerolog.Logger
	client  Fetcher
	cache   *MessageCache
	markers *MarkerLifecycle

	gen       atomic.Uint64
	installMu sync.Mutex
}

// NewFetchCoordinator wires the coordinator to its cache and marker sink.
func NewFetchCoordinator(log zerolog.Logger, client Fetcher, cache *MessageCache, markers *MarkerLifecycle) *FetchCoordinator {
	return &FetchCoordinator{
		log:     log,
		client:  client,
		cache:   cache,
		markers: markers,
	}
}

// Refresh starts a background fetch for loc. Each call supersedes every
// earlier one; failures leave the existing cache untouched.
func (f *FetchCoordinator) Refresh(loc Location) {
	gen := f.gen.Add(1)
	go func() {
		if err := f.fetch(gen, loc); err != nil {
			metrics.FetchesTotal.WithLabelValues("error").Inc()
			f.log.Error().
				Err(err).
				Uint32("territory", loc.Territory).
				Msg("failed to get messages")
		}
	}()
}

func (f *FetchCoordinator) fetch(gen uint64, loc Location) error {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	msgs, err := f.client.LocationMessages(ctx, loc)
	if err != nil {
		return err
	}

	if !f.install(gen, msgs) {
		metrics.FetchesTotal.WithLabelValues("stale").Inc()
		f.log.Debug().
			Uint32("territory", loc.Territory).
			Msg("discarding superseded fetch result")
		return nil
	}

	metrics.FetchesTotal.WithLabelValues("ok").Inc()
	return nil
}

// install atomically swaps the cache to msgs and queues marker spawns,
// unless a newer refresh has started since gen.
func (f *FetchCoordinator) install(gen uint64, msgs []*models.Message) bool {
	f.installMu.Lock()
	defer f.installMu.Unlock()

	if f.gen.Load() != gen {
		return false
	}

	f.cache.Replace(msgs)
	for _, msg := range msgs {
		f.markers.RequestSpawn(msg)
	}
	return true
}
