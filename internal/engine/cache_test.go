package engine

import (
	"testing"

	"github.com/google/uuid"

	"github.com/waymark-protocol/waymark/internal/models"
)

func msgAt(x, y, z float32) *models.Message {
	return &models.Message{ID: uuid.New(), X: x, Y: y, Z: z}
}

func TestReplaceSwapsWholeSet(t *testing.T) {
	c := NewMessageCache()
	old := msgAt(0, 0, 0)
	c.Replace([]*models.Message{old})

	next := msgAt(1, 0, 0)
	c.Replace([]*models.Message{next})

	if _, ok := c.Get(old.ID); ok {
		t.Fatal("old generation survived a replace")
	}
	if _, ok := c.Get(next.ID); !ok {
		t.Fatal("new generation missing after replace")
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 message, got %d", c.Len())
	}
}

func TestUpsertOverwritesByIdentity(t *testing.T) {
	c := NewMessageCache()
	msg := msgAt(0, 0, 0)
	c.Upsert(msg)

	updated := *msg
	updated.PositiveVotes = 3
	c.Upsert(&updated)

	got, _ := c.Get(msg.ID)
	if got.PositiveVotes != 3 {
		t.Fatalf("expected overwrite, got %d positive votes", got.PositiveVotes)
	}
	if c.Len() != 1 {
		t.Fatalf("upsert duplicated the entry, len=%d", c.Len())
	}
}

func TestRemoveAbsentIsNoop(t *testing.T) {
	c := NewMessageCache()
	c.Remove(uuid.New())
	if c.Len() != 0 {
		t.Fatal("remove of absent id changed the cache")
	}
}

func TestNearbyTolerances(t *testing.T) {
	c := NewMessageCache()
	origin := models.Vec3{}

	inside := msgAt(1, 0.5, 1)       // within both tolerances
	atVertEdge := msgAt(0, 1, 0)     // vertical exactly at tolerance
	tooHigh := msgAt(0, 1.5, 0)      // vertical out, radial in
	tooFar := msgAt(2, 0, 2)         // vertical in, radial out
	c.Replace([]*models.Message{inside, atVertEdge, tooHigh, tooFar})

	nearby := c.Nearby(origin, 1, 2)
	if len(nearby) != 2 {
		t.Fatalf("expected 2 nearby messages, got %d", len(nearby))
	}
	for _, msg := range nearby {
		if msg.ID == tooHigh.ID || msg.ID == tooFar.ID {
			t.Fatalf("message outside tolerance returned: %v", msg.ID)
		}
	}
}

func TestNearbyRadialEdgeInclusive(t *testing.T) {
	c := NewMessageCache()
	edge := msgAt(2, 0, 0) // distance exactly 2
	c.Replace([]*models.Message{edge})

	if got := c.Nearby(models.Vec3{}, 1, 2); len(got) != 1 {
		t.Fatalf("expected distance-2 message included, got %d", len(got))
	}
}
