package engine

import (
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/metrics"
	"github.com/waymark-protocol/waymark/internal/models"
)

// ghostOpacity is the translucency applied to gesture actors.
const ghostOpacity = 0.25

// ActorLifecycle manages the single ephemeral gesture avatar. Focus
// changes enqueue an ordered action sequence (spawn, enable once ready,
// disable, delete); the queue retries in place because the stages must
// run in order. The singleton slot is only touched from action runs and
// the synchronous shutdown path.
type ActorLifecycle struct {
	log   zerolog.Logger
	table ActorTable
	poses PoseLookup
	queue *RetryQueue

	idx      ActorIndex
	hasActor bool
}

// NewActorLifecycle creates a lifecycle with no actor spawned. poses may
// be nil when no pose lookup is available.
func NewActorLifecycle(log zerolog.Logger, table ActorTable, poses PoseLookup) *ActorLifecycle {
	return &ActorLifecycle{
		log:   log,
		table: table,
		poses: poses,
		queue: NewRetryQueue(log, "actor", RetryInPlace),
	}
}

// SetFocus reacts to the viewer focusing a message (or none): any owned
// actor is torn down, and a new one is queued when the focused message
// carries a gesture.
func (l *ActorLifecycle) SetFocus(msg *models.Message) {
	l.Despawn()

	if msg == nil || msg.Emote == nil {
		return
	}

	// the spawn runs after any queued teardown, so the singleton slot is
	// free again by the time it executes
	l.log.Debug().Stringer("id", msg.ID).Msg("queueing actor spawn")
	l.queue.Push(&spawnActorAction{lifecycle: l, msg: msg})
}

// Despawn queues teardown of the owned actor, if any.
func (l *ActorLifecycle) Despawn() {
	if !l.hasActor {
		return
	}

	l.queue.Push(&disableActorAction{lifecycle: l})
	l.queue.Push(&deleteActorAction{lifecycle: l})
}

// Tick attempts at most one queued action.
func (l *ActorLifecycle) Tick() {
	l.queue.DrainOne()
}

// HasActor reports whether an actor slot is currently owned.
func (l *ActorLifecycle) HasActor() bool {
	return l.hasActor
}

// Shutdown tears down the owned actor immediately, bypassing the
// per-tick cadence, so no native object outlives the subsystem.
func (l *ActorLifecycle) Shutdown() {
	l.queue.Clear()

	if !l.hasActor {
		return
	}
	if actor := l.table.Get(l.idx); actor != nil {
		actor.DisableDraw()
	}
	l.table.Delete(l.idx)
	l.hasActor = false
}

// actor returns the owned native actor, or nil when the slot is empty or
// the host discarded the object.
func (l *ActorLifecycle) actor() Actor {
	if !l.hasActor {
		l.log.Warn().Msg("tried to get actor but none is owned")
		return nil
	}

	actor := l.table.Get(l.idx)
	if actor == nil {
		l.log.Warn().Msg("tried to get actor but it was gone")
	}
	return actor
}

type spawnActorAction struct {
	lifecycle *ActorLifecycle
	msg       *models.Message
}

func (a *spawnActorAction) Run() Outcome {
	l := a.lifecycle
	if l.hasActor {
		l.log.Warn().Msg("refusing to spawn a second actor")
		return Done
	}

	idx, ok := l.table.Create()
	if !ok {
		l.log.Debug().Msg("actor could not be spawned")
		return GiveUp
	}

	actor := l.table.Get(idx)
	if actor == nil {
		// creation reported a slot but the object is already gone
		l.table.Delete(idx)
		l.log.Warn().Msg("created actor was immediately discarded")
		return GiveUp
	}

	l.idx = idx
	l.hasActor = true

	msg := a.msg
	actor.SetPosition(msg.Position())
	actor.SetYaw(msg.Yaw)
	actor.ApplyAppearance(msg.Emote)
	actor.SetGhost(ghostOpacity)
	if l.poses != nil {
		if timeline, ok := l.poses(msg.Emote.Action); ok {
			actor.LockPose(timeline)
		}
	}

	metrics.ActorsSpawned.Inc()
	l.queue.Push(&enableActorAction{lifecycle: l})
	return Done
}

type enableActorAction struct {
	lifecycle *ActorLifecycle
}

func (a *enableActorAction) Run() Outcome {
	actor := a.lifecycle.actor()
	if actor == nil {
		return Done
	}

	if !actor.Ready() {
		return Retry
	}

	actor.EnableDraw()
	return Done
}

type disableActorAction struct {
	lifecycle *ActorLifecycle
}

func (a *disableActorAction) Run() Outcome {
	actor := a.lifecycle.actor()
	if actor == nil {
		return Done
	}

	actor.DisableDraw()
	return Done
}

type deleteActorAction struct {
	lifecycle *ActorLifecycle
}

func (a *deleteActorAction) Run() Outcome {
	l := a.lifecycle
	if !l.hasActor {
		l.log.Warn().Msg("delete action but no actor is owned")
		return Done
	}

	if l.table.Get(l.idx) == nil {
		l.log.Warn().Msg("delete action but object was already gone")
	}
	l.table.Delete(l.idx)
	l.hasActor = false
	return Done
}
