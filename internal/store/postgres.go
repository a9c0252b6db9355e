package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/waymark-protocol/waymark/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		auth TEXT UNIQUE NOT NULL,
		extra BIGINT NOT NULL DEFAULT 0,
		last_seen TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		"user" BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		territory BIGINT NOT NULL,
		ward INT,
		plot INT,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		yaw REAL NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		glyph INT NOT NULL DEFAULT 3,
		emote TEXT,
		created TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS votes (
		"user" BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		message TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		vote INT NOT NULL,
		PRIMARY KEY ("user", message)
	);

	CREATE TABLE IF NOT EXISTS extra_tokens (
		id TEXT PRIMARY KEY,
		extra BIGINT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_territory ON messages(territory);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages("user");
	`

	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// CreateAccount inserts a new account with the given auth hash.
func (s *PostgresStore) CreateAccount(ctx context.Context, authHash string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (auth) VALUES ($1) RETURNING id
	`, authHash).Scan(&id)
	return id, err
}

// AccountByAuth looks up an account by auth hash.
func (s *PostgresStore) AccountByAuth(ctx context.Context, authHash string) (*models.Account, error) {
	account := &models.Account{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, extra, last_seen FROM users WHERE auth = $1
	`, authHash).Scan(&account.ID, &account.Extra, &account.LastSeen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account; its messages and votes cascade.
func (s *PostgresStore) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// TouchAccount updates an account's last-seen timestamp.
func (s *PostgresStore) TouchAccount(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_seen = now() WHERE id = $1`, id)
	return err
}

// ClaimExtra redeems a one-time code, raising the account's extra slot
// count, and returns the new count.
func (s *PostgresStore) ClaimExtra(ctx context.Context, id int64, code string) (int64, error) {
	var extra int64
	err := s.pool.QueryRow(ctx, `
		DELETE FROM extra_tokens WHERE id = $1 RETURNING extra
	`, code).Scan(&extra)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInvalidCode
		}
		return 0, err
	}

	_, err = s.pool.Exec(ctx, `UPDATE users SET extra = $1 WHERE id = $2`, extra, id)
	if err != nil {
		return 0, err
	}
	return extra, nil
}

// CreateExtraCode mints a one-time extra-slot code.
func (s *PostgresStore) CreateExtraCode(ctx context.Context, code string, extra int64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO extra_tokens (id, extra) VALUES ($1, $2)
	`, code, extra)
	return err
}

// InsertMessage stores a new message.
func (s *PostgresStore) InsertMessage(ctx context.Context, id string, user int64, req *models.MessageRequest, text string) error {
	emote, err := marshalEmote(req.Emote)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, "user", territory, ward, plot, x, y, z, yaw, message, glyph, emote)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, user, req.Territory, req.Ward, req.Plot, req.X, req.Y, req.Z, req.Yaw, text, req.Glyph, emote)
	return err
}

// CountMessages counts a user's messages.
func (s *PostgresStore) CountMessages(ctx context.Context, user int64) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE "user" = $1
	`, user).Scan(&count)
	return count, err
}

// LocationMessages returns the vote-aggregated messages for a location.
func (s *PostgresStore) LocationMessages(ctx context.Context, user int64, territory uint32, ward, plot *uint16) ([]*models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.x, m.y, m.z, m.yaw, m.message, m.glyph, m.emote,
		       COALESCE(SUM(CASE WHEN v.vote = 1 THEN 1 ELSE 0 END), 0)::int,
		       COALESCE(SUM(CASE WHEN v.vote = -1 THEN 1 ELSE 0 END), 0)::int,
		       COALESCE(v2.vote, 0),
		       m.created
		FROM messages m
		         LEFT JOIN votes v ON m.id = v.message
		         LEFT JOIN votes v2 ON m.id = v2.message AND v2."user" = $1
		WHERE m.territory = $2
		  AND m.ward IS NOT DISTINCT FROM $3
		  AND m.plot IS NOT DISTINCT FROM $4
		GROUP BY m.id, v2.vote
	`, user, territory, ward, plot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

const pgOwnMessageSelect = `
	SELECT m.id, m.territory, m.ward, m.plot, m.x, m.y, m.z, m.yaw,
	       m.message, m.glyph, m.emote,
	       COALESCE(SUM(CASE WHEN v.vote = 1 THEN 1 ELSE 0 END), 0)::int,
	       COALESCE(SUM(CASE WHEN v.vote = -1 THEN 1 ELSE 0 END), 0)::int,
	       COALESCE(v2.vote, 0),
	       m.created
	FROM messages m
	         LEFT JOIN votes v ON m.id = v.message
	         LEFT JOIN votes v2 ON m.id = v2.message AND v2."user" = $1
	`

// MessageByID returns one message with its territory, or nil.
func (s *PostgresStore) MessageByID(ctx context.Context, user int64, id string) (*models.OwnMessage, error) {
	rows, err := s.pool.Query(ctx, pgOwnMessageSelect+`
		WHERE m.id = $2
		GROUP BY m.id, v2.vote
	`, user, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanOwnMessage(rows)
}

// OwnMessages returns every message a user has placed, newest first.
func (s *PostgresStore) OwnMessages(ctx context.Context, user int64) ([]*models.OwnMessage, error) {
	rows, err := s.pool.Query(ctx, pgOwnMessageSelect+`
		WHERE m."user" = $2
		GROUP BY m.id, v2.vote
		ORDER BY m.created DESC
	`, user, user)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*models.OwnMessage
	for rows.Next() {
		msg, err := scanOwnMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// DeleteMessage removes a message if the user owns it.
func (s *PostgresStore) DeleteMessage(ctx context.Context, user int64, id string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM messages WHERE id = $1 AND "user" = $2
	`, id, user)
	return err
}

// SetVote inserts or updates a user's vote on a message.
func (s *PostgresStore) SetVote(ctx context.Context, user int64, messageID string, vote int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO votes ("user", message, vote) VALUES ($1, $2, $3)
		ON CONFLICT ("user", message) DO UPDATE SET vote = EXCLUDED.vote
	`, user, messageID, vote)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		// foreign key violation: no such message
		return ErrNotFound
	}
	return err
}
