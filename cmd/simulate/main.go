// Command simulate drives the client engine against an in-memory world:
// a canned message source, a fake renderer, and a fake actor table. It
// exercises the full fetch, marker, and avatar pipelines without a game
// host. With -server it fetches from a running waymark server instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/clients/go/waymark"
	"github.com/waymark-protocol/waymark/internal/engine"
	"github.com/waymark-protocol/waymark/internal/models"
)

func main() {
	server := flag.String("server", "", "Fetch messages from this waymark server instead of the canned set")
	ticks := flag.Int("ticks", 120, "Number of engine ticks to run")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	world := &fakeWorld{
		loc: engine.Location{Territory: 132},
		pos: models.Vec3{X: 10, Y: 0, Z: 10},
	}
	renderer := &fakeRenderer{log: logger}
	actors := &fakeActorTable{log: logger}

	var fetcher engine.Fetcher
	if *server != "" {
		client := waymark.NewClient(*server)
		if !client.Registered() {
			if _, err := client.Register(context.Background()); err != nil {
				logger.Fatal().Err(err).Msg("failed to register")
			}
		}
		fetcher = &remoteFetcher{client: client}
	} else {
		fetcher = cannedFetcher{}
	}

	eng := engine.New(engine.Config{
		Logger:   logger,
		World:    world,
		Client:   fetcher,
		Renderer: renderer,
		Actors:   actors,
		Poses: func(action uint32) (uint16, bool) {
			return uint16(action % 500), true
		},
	})

	events := &fakeEvents{}
	eng.Start(events)
	defer eng.Close()

	for i := 0; i < *ticks; i++ {
		eng.Tick()

		// focus a nearby message partway through to exercise the avatar
		// lifecycle, then clear the focus before shutdown
		if i == 40 {
			if nearby := eng.Nearby(); len(nearby) > 0 {
				logger.Info().Str("id", nearby[0].ID.String()).Msg("focusing message")
				eng.SetFocus(nearby[0])
			}
		}
		if i == 80 {
			eng.SetFocus(nil)
		}

		time.Sleep(16 * time.Millisecond)
	}

	fmt.Printf("cached=%d spawned=%d pending=%d\n",
		eng.Cache().Len(), eng.Markers().Spawned(), eng.Markers().Pending())
}

// fakeWorld is a stationary player in one territory.
type fakeWorld struct {
	mu  sync.Mutex
	loc engine.Location
	pos models.Vec3
}

func (w *fakeWorld) Location() engine.Location {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loc
}

func (w *fakeWorld) PlayerPosition() (models.Vec3, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos, true
}

func (w *fakeWorld) Suppressed() bool { return false }

// fakeRenderer allocates markers that occasionally fail to spawn, the
// way a busy native layer does.
type fakeRenderer struct {
	log   zerolog.Logger
	count int
}

type fakeMarker struct{}

func (fakeMarker) Remove() bool { return true }

func (r *fakeRenderer) Spawn(path string, pos models.Vec3, yaw float32) engine.MarkerHandle {
	r.count++
	// every third spawn fails once to exercise the retry path
	if r.count%3 == 0 {
		return nil
	}
	r.log.Debug().Str("path", path).Msg("spawned marker")
	return fakeMarker{}
}

func (r *fakeRenderer) HasResource(path string) bool { return true }

// fakeActorTable holds at most one actor that becomes ready after a few
// polls.
type fakeActorTable struct {
	log   zerolog.Logger
	used  bool
	actor *fakeActor
}

type fakeActor struct {
	polls int
}

func (a *fakeActor) SetPosition(models.Vec3)       {}
func (a *fakeActor) SetYaw(float32)                {}
func (a *fakeActor) SetGhost(float32)              {}
func (a *fakeActor) ApplyAppearance(*models.Emote) {}
func (a *fakeActor) LockPose(uint16)               {}
func (a *fakeActor) EnableDraw()                   {}
func (a *fakeActor) DisableDraw()                  {}

func (a *fakeActor) Ready() bool {
	a.polls++
	return a.polls > 3
}

func (t *fakeActorTable) Create() (engine.ActorIndex, bool) {
	if t.used {
		return 0, false
	}
	t.used = true
	t.actor = &fakeActor{}
	return 200, true
}

func (t *fakeActorTable) Get(idx engine.ActorIndex) engine.Actor {
	if !t.used || t.actor == nil {
		return nil
	}
	return t.actor
}

func (t *fakeActorTable) Delete(idx engine.ActorIndex) {
	t.used = false
	t.actor = nil
}

// fakeEvents never fires; the simulator drives refresh through Start.
type fakeEvents struct{}

type noopSub struct{}

func (noopSub) Close() {}

func (fakeEvents) OnLogin(func()) engine.Subscription  { return noopSub{} }
func (fakeEvents) OnLogout(func()) engine.Subscription { return noopSub{} }
func (fakeEvents) OnLocationChanged(func(engine.Location)) engine.Subscription {
	return noopSub{}
}

// cannedFetcher serves a fixed message set near the fake player.
type cannedFetcher struct{}

func (cannedFetcher) LocationMessages(ctx context.Context, loc engine.Location) ([]*models.Message, error) {
	return []*models.Message{
		{
			ID: uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
			X:  10.5, Y: 0.2, Z: 9.5,
			Text:  "Try jumping",
			Glyph: 1,
			Emote: &models.Emote{Action: 5},
		},
		{
			ID: uuid.MustParse("550e8400-e29b-41d4-a716-446655440000"),
			X:  11, Y: 0, Z: 11,
			Text:  "Beware of ambush ahead",
			Glyph: 3,
		},
		{
			ID: uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			X:  80, Y: 12, Z: 80,
			Text:  "Gorgeous view ahead",
			Glyph: 0,
		},
	}, nil
}

// remoteFetcher adapts the REST client to the engine's Fetcher.
type remoteFetcher struct {
	client *waymark.Client
}

func (f *remoteFetcher) LocationMessages(ctx context.Context, loc engine.Location) ([]*models.Message, error) {
	return f.client.Messages(ctx, loc.Territory, loc.Ward, loc.Plot)
}
