package engine

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/models"
)

// Tolerances for the nearby query, in world units.
const (
	nearbyVerticalTolerance = 1.0
	nearbyRadialTolerance   = 2.0
)

// Config wires an Engine to its collaborators. World, Client, Renderer,
// and Actors are required; Poses and Keepalive are optional.
type Config struct {
	Logger    zerolog.Logger
	World     World
	Client    Fetcher
	Renderer  MarkerRenderer
	Actors    ActorTable
	Poses     PoseLookup
	Keepalive Keepaliver
	Settings  *Settings
}

// Engine is the client core: it owns the message cache, the marker and
// actor lifecycles, and the background fetch coordinator. Tick must be
// called once per host frame from the cooperative tick context; that is
// the only context that touches native resources.
type Engine struct {
	log      zerolog.Logger
	world    World
	settings *Settings

	cache   *MessageCache
	markers *MarkerLifecycle
	actor   *ActorLifecycle
	fetch   *FetchCoordinator
	pinger  *pinger

	subs       []Subscription
	suppressed bool
}

// New assembles an engine. It performs no I/O; call Start to attach
// event subscriptions and Refresh (or wait for an event) to populate the
// cache.
func New(cfg Config) *Engine {
	settings := cfg.Settings
	if settings == nil {
		def := DefaultSettings()
		settings = &def
	}

	cache := NewMessageCache()
	markers := NewMarkerLifecycle(cfg.Logger, cfg.Renderer)

	e := &Engine{
		log:      cfg.Logger,
		world:    cfg.World,
		settings: settings,
		cache:    cache,
		markers:  markers,
		actor:    NewActorLifecycle(cfg.Logger, cfg.Actors, cfg.Poses),
		fetch:    NewFetchCoordinator(cfg.Logger, cfg.Client, cache, markers),
	}
	if cfg.Keepalive != nil {
		e.pinger = newPinger(cfg.Logger, cfg.Keepalive)
	}
	return e
}

// Start subscribes to host events. The subscriptions are held until
// Close so no callback can outlive the engine.
func (e *Engine) Start(events EventSource) {
	e.subs = append(e.subs,
		events.OnLogin(func() { e.Refresh() }),
		events.OnLogout(func() { e.clearLocation() }),
		events.OnLocationChanged(func(Location) { e.Refresh() }),
	)
	e.Refresh()
}

// Close detaches event handlers and forcibly tears down every owned
// native resource, bypassing the per-tick cadence.
func (e *Engine) Close() {
	for _, sub := range e.subs {
		sub.Close()
	}
	e.subs = nil

	e.actor.Shutdown()
	e.markers.Shutdown()
	e.cache.Clear()
}

// Tick is the per-frame entry point: it reconciles suppression state and
// performs at most one native operation per lifecycle queue.
func (e *Engine) Tick() {
	e.reconcileSuppression()
	e.markers.Tick()
	e.actor.Tick()
	if e.pinger != nil {
		e.pinger.tick()
	}
}

// Refresh re-evaluates visibility gates and, when markers should be
// shown here, tears down the previous set and fetches the authoritative
// one in the background. Must be called from the tick or event context.
func (e *Engine) Refresh() {
	loc := e.world.Location()
	if loc.Territory == 0 ||
		!e.settings.ShowMarkers ||
		e.settings.Banned(loc.Territory) ||
		e.world.Suppressed() {
		e.clearLocation()
		return
	}

	e.markers.ClearAll()
	e.fetch.Refresh(loc)
}

// clearLocation drops the cached set and queues teardown of all markers.
func (e *Engine) clearLocation() {
	e.cache.Clear()
	e.markers.ClearAll()
}

// reconcileSuppression hides or restores markers when the host enters or
// leaves a suppressed state.
func (e *Engine) reconcileSuppression() {
	now := e.world.Suppressed()
	if now == e.suppressed {
		return
	}
	e.suppressed = now

	if now {
		e.markers.ClearAll()
	} else {
		e.Refresh()
	}
}

// Nearby returns the cached messages close to the local player, sorted
// by identity for stable pagination. Without a local player it returns
// nothing.
func (e *Engine) Nearby() []*models.Message {
	pos, ok := e.world.PlayerPosition()
	if !ok {
		return nil
	}

	nearby := e.cache.Nearby(pos, nearbyVerticalTolerance, nearbyRadialTolerance)
	sort.Slice(nearby, func(i, j int) bool {
		return nearby[i].ID.String() < nearby[j].ID.String()
	})
	return nearby
}

// SetFocus tells the actor lifecycle which message the viewer is looking
// at, or nil for none. The gesture feature gate applies here.
func (e *Engine) SetFocus(msg *models.Message) {
	if msg != nil && !e.settings.ShowEmotes {
		msg = nil
	}
	e.actor.SetFocus(msg)
}

// Add installs a newly confirmed message and queues its marker. Used
// after a successful write.
func (e *Engine) Add(msg *models.Message) {
	e.cache.Upsert(msg)
	e.markers.RequestSpawn(msg)
}

// RemoveLocal drops a message from the cache and queues its marker's
// teardown. Used after a successful delete.
func (e *Engine) RemoveLocal(id uuid.UUID) {
	e.cache.Remove(id)
	e.markers.RequestDespawn(id)
}

// Cache exposes the message cache for read-side collaborators.
func (e *Engine) Cache() *MessageCache {
	return e.cache
}

// Markers exposes the marker lifecycle, mainly for inspection.
func (e *Engine) Markers() *MarkerLifecycle {
	return e.markers
}

// Actor exposes the actor lifecycle, mainly for inspection.
func (e *Engine) Actor() *ActorLifecycle {
	return e.actor
}
