package engine

import "github.com/waymark-protocol/waymark/internal/models"

// Location is the scope key for the authoritative message set: a
// territory plus optional housing subdivision.
type Location struct {
	Territory uint32
	Ward      *uint16
	Plot      *uint16
}

// World exposes the host's current location and player state. All
// methods are called from the tick or event context.
type World interface {
	// Location returns the current location key. A zero territory means
	// no usable location (character select, loading).
	Location() Location
	// PlayerPosition returns the local player position, or ok=false when
	// no local player exists.
	PlayerPosition() (pos models.Vec3, ok bool)
	// Suppressed reports host states during which markers should be
	// hidden (cutscene-like takeovers of the camera).
	Suppressed() bool
}

// Subscription is a live event registration. Close detaches the handler;
// it must be safe to call more than once.
type Subscription interface {
	Close()
}

// EventSource emits the host events that drive cache refreshes. Every
// subscription returned must be closed on engine teardown so no callback
// outlives the engine.
type EventSource interface {
	OnLogin(fn func()) Subscription
	OnLogout(fn func()) Subscription
	OnLocationChanged(fn func(Location)) Subscription
}

// Settings are the embedder-owned toggles consulted before fetching and
// spawning. The engine never mutates or persists them.
type Settings struct {
	// ShowMarkers gates the whole marker pipeline.
	ShowMarkers bool
	// ShowEmotes gates the avatar pipeline for focused messages.
	ShowEmotes bool
	// BannedTerritories suppresses fetching in specific territories.
	BannedTerritories map[uint32]bool
	// DefaultGlyph is the style selector used for newly written messages.
	DefaultGlyph int
}

// DefaultSettings returns the settings a fresh install starts with.
func DefaultSettings() Settings {
	return Settings{
		ShowMarkers:       true,
		ShowEmotes:        true,
		BannedTerritories: make(map[uint32]bool),
		DefaultGlyph:      3,
	}
}

// Banned reports whether a territory is suppressed by the user.
func (s *Settings) Banned(territory uint32) bool {
	return s.BannedTerritories[territory]
}
