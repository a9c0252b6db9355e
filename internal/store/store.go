package store

import (
	"context"
	"errors"

	"github.com/waymark-protocol/waymark/internal/models"
)

// Sentinel errors shared by all backends.
var (
	// ErrNotFound is returned when the referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCode is returned for an unknown or spent extra-slot code.
	ErrInvalidCode = errors.New("invalid extra code")
)

// DataStore defines the interface for persistent storage of accounts,
// messages, and votes. Both PostgresStore and SQLiteStore implement it.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// Account operations. Tokens are stored hashed; authHash is the hash.
	CreateAccount(ctx context.Context, authHash string) (int64, error)
	AccountByAuth(ctx context.Context, authHash string) (*models.Account, error)
	DeleteAccount(ctx context.Context, id int64) error
	TouchAccount(ctx context.Context, id int64) error
	ClaimExtra(ctx context.Context, id int64, code string) (int64, error)
	CreateExtraCode(ctx context.Context, code string, extra int64) error

	// Message operations. Message ids are UUIDs in compact hex form.
	InsertMessage(ctx context.Context, id string, user int64, req *models.MessageRequest, text string) error
	CountMessages(ctx context.Context, user int64) (int64, error)
	LocationMessages(ctx context.Context, user int64, territory uint32, ward, plot *uint16) ([]*models.Message, error)
	MessageByID(ctx context.Context, user int64, id string) (*models.OwnMessage, error)
	OwnMessages(ctx context.Context, user int64) ([]*models.OwnMessage, error)
	DeleteMessage(ctx context.Context, user int64, id string) error

	// Vote operations
	SetVote(ctx context.Context, user int64, messageID string, vote int) error
}
