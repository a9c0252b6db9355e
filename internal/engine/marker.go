package engine

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/metrics"
	"github.com/waymark-protocol/waymark/internal/models"
)

// markerStyles are the style resources a glyph selector maps to. The last
// entry ships with an expansion and may be missing from some
// installations, which is what the fallback below is for.
var markerStyles = []string{
	"bg/ffxiv/fst_f1/common/vfx/eff/b0941trp1a_o.avfx",
	"bg/ffxiv/fst_f1/common/vfx/eff/b0941trp1b_o.avfx",
	"bg/ffxiv/fst_f1/common/vfx/eff/b0941trp1c_o.avfx",
	"bg/ffxiv/fst_f1/common/vfx/eff/b0941trp1d_o.avfx",
	"bg/ffxiv/fst_f1/common/vfx/eff/b0941trp1e_o.avfx",
	"bg/ex2/02_est_e3/common/vfx/eff/b0941trp1f_o.avfx",
}

// MarkerLifecycle owns every spawned marker handle and the queue of
// pending spawn/despawn work. The registry is only touched from action
// runs and from the synchronous shutdown path, both in the tick context;
// the queue itself accepts pushes from background fetches.
type MarkerLifecycle struct {
	log      zerolog.Logger
	renderer MarkerRenderer
	queue    *RetryQueue
	spawned  map[uuid.UUID]MarkerHandle
}

// NewMarkerLifecycle creates a lifecycle with an empty registry.
func NewMarkerLifecycle(log zerolog.Logger, renderer MarkerRenderer) *MarkerLifecycle {
	return &MarkerLifecycle{
		log:      log,
		renderer: renderer,
		queue:    NewRetryQueue(log, "markers", RequeueTail),
		spawned:  make(map[uuid.UUID]MarkerHandle),
	}
}

// RequestSpawn queues native marker creation for msg. Safe to call from
// background goroutines.
func (l *MarkerLifecycle) RequestSpawn(msg *models.Message) {
	l.queue.Push(&spawnMarkerAction{lifecycle: l, msg: msg})
}

// RequestDespawn queues native destruction of the marker for id.
func (l *MarkerLifecycle) RequestDespawn(id uuid.UUID) {
	l.queue.Push(&despawnMarkerAction{lifecycle: l, id: id})
}

// ClearAll queues despawn for every currently registered marker. Called
// on context changes and on settings changes that hide markers. Must run
// in the tick context.
func (l *MarkerLifecycle) ClearAll() {
	for id := range l.spawned {
		l.RequestDespawn(id)
	}
}

// Tick attempts at most one queued action.
func (l *MarkerLifecycle) Tick() {
	l.queue.DrainOne()
}

// Spawned reports how many markers are currently registered.
func (l *MarkerLifecycle) Spawned() int {
	return len(l.spawned)
}

// Pending reports how many actions are waiting in the queue.
func (l *MarkerLifecycle) Pending() int {
	return l.queue.Len()
}

// Shutdown destroys every registered marker immediately, bypassing the
// per-tick cadence, and drops any pending work. Destruction failures at
// this point are logged and abandoned; the host is tearing us down.
func (l *MarkerLifecycle) Shutdown() {
	for id, handle := range l.spawned {
		if !handle.Remove() {
			l.log.Warn().Stringer("id", id).Msg("marker not destroyable at shutdown")
		}
	}
	l.spawned = make(map[uuid.UUID]MarkerHandle)
	l.queue.Clear()
}

// stylePath resolves a message's glyph selector to a resource path. An
// out-of-range selector maps to the first style; a known selector whose
// resource is missing falls back deterministically on the message id.
func (l *MarkerLifecycle) stylePath(msg *models.Message) string {
	glyph := msg.Glyph
	if glyph < 0 || glyph >= len(markerStyles) {
		return markerStyles[0]
	}

	path := markerStyles[glyph]
	if l.renderer.HasResource(path) {
		return path
	}
	// the first five styles ship with the base install
	return markerStyles[int(msg.ID[15])%5]
}

type spawnMarkerAction struct {
	lifecycle *MarkerLifecycle
	msg       *models.Message
}

func (a *spawnMarkerAction) Run() Outcome {
	l := a.lifecycle
	if _, ok := l.spawned[a.msg.ID]; ok {
		l.log.Debug().Stringer("id", a.msg.ID).Msg("marker already spawned")
		return Done
	}

	l.log.Debug().Stringer("id", a.msg.ID).Msg("spawning marker")
	handle := l.renderer.Spawn(l.stylePath(a.msg), a.msg.Position(), a.msg.Yaw)
	if handle == nil {
		metrics.MarkerRetries.Inc()
		return Retry
	}

	l.spawned[a.msg.ID] = handle
	metrics.MarkersSpawned.Inc()
	return Done
}

type despawnMarkerAction struct {
	lifecycle *MarkerLifecycle
	id        uuid.UUID
}

func (a *despawnMarkerAction) Run() Outcome {
	l := a.lifecycle
	handle, ok := l.spawned[a.id]
	if !ok {
		// already gone, or its spawn never succeeded
		return Done
	}

	if !handle.Remove() {
		metrics.MarkerRetries.Inc()
		return Retry
	}

	delete(l.spawned, a.id)
	return Done
}
