package engine

import "github.com/waymark-protocol/waymark/internal/models"

// The native layer is the host's renderer and object table. Creating and
// destroying its resources is fallible and only legal from the tick
// context; the engine reaches it exclusively through these interfaces.

// MarkerHandle is the capability for one spawned world marker. Exactly
// one MarkerLifecycle owns each handle.
type MarkerHandle interface {
	// Remove destroys the marker. It returns false when the native layer
	// cannot destroy it yet; the caller should try again next tick.
	Remove() bool
}

// MarkerRenderer creates world-anchored visual markers.
type MarkerRenderer interface {
	// Spawn creates a marker from the style resource at path. It returns
	// nil when the native layer cannot allocate a resource right now;
	// that is a retry signal, not an owned handle.
	Spawn(path string, pos models.Vec3, yaw float32) MarkerHandle

	// HasResource reports whether a style resource exists in this
	// installation. Selector fallback relies on it.
	HasResource(path string) bool
}

// ActorIndex identifies a slot in the host's object table.
type ActorIndex uint32

// Actor is the capability for one spawned avatar. Any method may stop
// working if the host invalidates the object; Get reports that by
// returning nil on the next lookup.
type Actor interface {
	SetPosition(pos models.Vec3)
	SetYaw(yaw float32)
	// SetGhost renders the actor translucent at the given opacity.
	SetGhost(opacity float32)
	// ApplyAppearance copies a full appearance snapshot onto the actor.
	ApplyAppearance(emote *models.Emote)
	// LockPose freezes the actor's animation to one timeline.
	LockPose(timeline uint16)

	// Ready reports whether the actor has loaded enough to draw.
	Ready() bool
	EnableDraw()
	DisableDraw()
}

// ActorTable allocates and releases avatar slots.
type ActorTable interface {
	// Create allocates a new actor slot. ok is false when the table is
	// full or creation failed.
	Create() (idx ActorIndex, ok bool)
	// Get returns the actor at idx, or nil if the host discarded it.
	Get(idx ActorIndex) Actor
	// Delete releases the slot at idx. Deleting an absent slot is a
	// no-op.
	Delete(idx ActorIndex)
}

// PoseLookup resolves an emote action id to an animation timeline. The
// lookup may be nil or fail to resolve; both mean "no pose".
type PoseLookup func(action uint32) (timeline uint16, ok bool)
