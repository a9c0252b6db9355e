package engine

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/models"
)

type fakeWorld struct {
	loc        Location
	pos        models.Vec3
	noPlayer   bool
	suppressed bool
}

func (w *fakeWorld) Location() Location { return w.loc }
func (w *fakeWorld) PlayerPosition() (models.Vec3, bool) {
	return w.pos, !w.noPlayer
}
func (w *fakeWorld) Suppressed() bool { return w.suppressed }

type fakeSub struct{ closed int }

func (s *fakeSub) Close() { s.closed++ }

type fakeEvents struct {
	subs []*fakeSub
}

func (e *fakeEvents) sub() Subscription {
	s := &fakeSub{}
	e.subs = append(e.subs, s)
	return s
}

func (e *fakeEvents) OnLogin(func()) Subscription              { return e.sub() }
func (e *fakeEvents) OnLogout(func()) Subscription             { return e.sub() }
func (e *fakeEvents) OnLocationChanged(func(Location)) Subscription { return e.sub() }

func newTestEngine(world *fakeWorld, msgs []*models.Message, settings *Settings) *Engine {
	client := fetchFunc(func(ctx context.Context, loc Location) ([]*models.Message, error) {
		return msgs, nil
	})
	return New(Config{
		Logger:   zerolog.Nop(),
		World:    world,
		Client:   client,
		Renderer: &fakeRenderer{},
		Actors:   &fakeTable{},
		Settings: settings,
	})
}

func waitForCache(t *testing.T, e *Engine, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if e.Cache().Len() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("cache never reached %d messages (have %d)", want, e.Cache().Len())
}

func TestRefreshPopulatesCache(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, []*models.Message{msgAt(0, 0, 0)}, nil)

	e.Refresh()
	waitForCache(t, e, 1)
}

func TestRefreshGates(t *testing.T) {
	msgs := []*models.Message{msgAt(0, 0, 0)}

	t.Run("no territory", func(t *testing.T) {
		e := newTestEngine(&fakeWorld{}, msgs, nil)
		e.Refresh()
		time.Sleep(20 * time.Millisecond)
		if e.Cache().Len() != 0 {
			t.Fatal("fetched with no usable location")
		}
	})

	t.Run("markers disabled", func(t *testing.T) {
		settings := DefaultSettings()
		settings.ShowMarkers = false
		e := newTestEngine(&fakeWorld{loc: Location{Territory: 132}}, msgs, &settings)
		e.Refresh()
		time.Sleep(20 * time.Millisecond)
		if e.Cache().Len() != 0 {
			t.Fatal("fetched with markers disabled")
		}
	})

	t.Run("banned territory", func(t *testing.T) {
		settings := DefaultSettings()
		settings.BannedTerritories[132] = true
		e := newTestEngine(&fakeWorld{loc: Location{Territory: 132}}, msgs, &settings)
		e.Refresh()
		time.Sleep(20 * time.Millisecond)
		if e.Cache().Len() != 0 {
			t.Fatal("fetched in a banned territory")
		}
	})

	t.Run("suppressed", func(t *testing.T) {
		e := newTestEngine(&fakeWorld{loc: Location{Territory: 132}, suppressed: true}, msgs, nil)
		e.Refresh()
		time.Sleep(20 * time.Millisecond)
		if e.Cache().Len() != 0 {
			t.Fatal("fetched while suppressed")
		}
	})
}

func TestSuppressionEdgeClearsAndRestores(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, []*models.Message{msgAt(0, 0, 0)}, nil)

	e.Refresh()
	waitForCache(t, e, 1)
	for i := 0; i < 3; i++ {
		e.Tick()
	}
	if e.Markers().Spawned() != 1 {
		t.Fatalf("expected 1 marker, got %d", e.Markers().Spawned())
	}

	world.suppressed = true
	e.Tick() // edge: queue despawns
	e.Tick() // drain the despawn
	if e.Markers().Spawned() != 0 {
		t.Fatal("markers survived suppression")
	}

	world.suppressed = false
	e.Tick() // edge: refresh
	waitForCache(t, e, 1)
}

func TestNearbyRequiresPlayer(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}, noPlayer: true}
	e := newTestEngine(world, nil, nil)
	e.Cache().Upsert(msgAt(0, 0, 0))

	if got := e.Nearby(); got != nil {
		t.Fatalf("expected nil without a player, got %d messages", len(got))
	}
}

func TestNearbySortedByIdentity(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, nil, nil)
	for i := 0; i < 5; i++ {
		e.Cache().Upsert(msgAt(0, 0, 0))
	}

	nearby := e.Nearby()
	if len(nearby) != 5 {
		t.Fatalf("expected 5 nearby, got %d", len(nearby))
	}
	for i := 1; i < len(nearby); i++ {
		if nearby[i-1].ID.String() > nearby[i].ID.String() {
			t.Fatal("nearby result not sorted by identity")
		}
	}
}

func TestSetFocusHonorsEmoteGate(t *testing.T) {
	settings := DefaultSettings()
	settings.ShowEmotes = false
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, nil, &settings)

	e.SetFocus(emoteMsg())
	e.Tick()
	if e.Actor().HasActor() {
		t.Fatal("gesture gate ignored")
	}
}

func TestAddAndRemoveLocal(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, nil, nil)

	msg := msgAt(0, 0, 0)
	e.Add(msg)
	e.Tick()
	if e.Markers().Spawned() != 1 {
		t.Fatal("add did not spawn a marker")
	}

	e.RemoveLocal(msg.ID)
	e.Tick()
	if e.Cache().Len() != 0 || e.Markers().Spawned() != 0 {
		t.Fatal("remove left cache or marker state behind")
	}
}

func TestCloseTearsEverythingDown(t *testing.T) {
	world := &fakeWorld{loc: Location{Territory: 132}}
	e := newTestEngine(world, []*models.Message{msgAt(0, 0, 0)}, nil)
	events := &fakeEvents{}

	e.Start(events)
	waitForCache(t, e, 1)
	for i := 0; i < 3; i++ {
		e.Tick()
	}

	e.Close()
	if e.Cache().Len() != 0 || e.Markers().Spawned() != 0 {
		t.Fatal("close left resources behind")
	}
	for i, sub := range events.subs {
		if sub.closed == 0 {
			t.Fatalf("subscription %d not closed", i)
		}
	}
}
