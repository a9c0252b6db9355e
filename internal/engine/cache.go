package engine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/waymark-protocol/waymark/internal/models"
)

// MessageCache holds the messages for the player's current location. It
// is the one structure shared between background fetch goroutines and the
// tick context, so every operation takes its mutex; callers compute data
// off the lock and hold it only to install or read.
type MessageCache struct {
	mu      sync.Mutex
	current map[uuid.UUID]*models.Message
}

// NewMessageCache creates an empty cache.
func NewMessageCache() *MessageCache {
	return &MessageCache{current: make(map[uuid.UUID]*models.Message)}
}

// Replace atomically swaps the entire cached set for msgs. Readers never
// observe a mix of two generations.
func (c *MessageCache) Replace(msgs []*models.Message) {
	next := make(map[uuid.UUID]*models.Message, len(msgs))
	for _, msg := range msgs {
		next[msg.ID] = msg
	}

	c.mu.Lock()
	c.current = next
	c.mu.Unlock()
}

// Upsert inserts or overwrites one message by identity.
func (c *MessageCache) Upsert(msg *models.Message) {
	c.mu.Lock()
	c.current[msg.ID] = msg
	c.mu.Unlock()
}

// Remove deletes one message by identity; absent ids are a no-op.
func (c *MessageCache) Remove(id uuid.UUID) {
	c.mu.Lock()
	delete(c.current, id)
	c.mu.Unlock()
}

// Get looks up one message by identity.
func (c *MessageCache) Get(id uuid.UUID) (*models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	msg, ok := c.current[id]
	return msg, ok
}

// Len reports the cached message count.
func (c *MessageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.current)
}

// Clear empties the cache.
func (c *MessageCache) Clear() {
	c.mu.Lock()
	c.current = make(map[uuid.UUID]*models.Message)
	c.mu.Unlock()
}

// Nearby returns every message within vertTol vertical distance and
// radTol Euclidean distance of origin, in no particular order.
func (c *MessageCache) Nearby(origin models.Vec3, vertTol, radTol float32) []*models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var nearby []*models.Message
	for _, msg := range c.current {
		dy := msg.Y - origin.Y
		if dy < 0 {
			dy = -dy
		}
		if dy > vertTol {
			continue
		}
		if msg.Position().Distance(origin) > radTol {
			continue
		}
		nearby = append(nearby, msg)
	}
	return nearby
}
