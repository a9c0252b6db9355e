package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/waymark-protocol/waymark/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default
// backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/waymark.db".
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/waymark.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		auth TEXT UNIQUE NOT NULL,
		extra INTEGER NOT NULL DEFAULT 0,
		last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		territory INTEGER NOT NULL,
		ward INTEGER,
		plot INTEGER,
		x REAL NOT NULL,
		y REAL NOT NULL,
		z REAL NOT NULL,
		yaw REAL NOT NULL DEFAULT 0,
		message TEXT NOT NULL,
		glyph INTEGER NOT NULL DEFAULT 3,
		emote TEXT,
		created DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS votes (
		user INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		message TEXT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
		vote INTEGER NOT NULL,
		PRIMARY KEY (user, message)
	);

	CREATE TABLE IF NOT EXISTS extra_tokens (
		id TEXT PRIMARY KEY,
		extra INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_territory ON messages(territory);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateAccount inserts a new account with the given auth hash.
func (s *SQLiteStore) CreateAccount(ctx context.Context, authHash string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (auth, last_seen) VALUES (?, CURRENT_TIMESTAMP)
	`, authHash)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// AccountByAuth looks up an account by auth hash.
func (s *SQLiteStore) AccountByAuth(ctx context.Context, authHash string) (*models.Account, error) {
	account := &models.Account{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, extra, last_seen FROM users WHERE auth = ?
	`, authHash).Scan(&account.ID, &account.Extra, &account.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes an account; its messages and votes cascade.
func (s *SQLiteStore) DeleteAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}

// TouchAccount updates an account's last-seen timestamp.
func (s *SQLiteStore) TouchAccount(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET last_seen = CURRENT_TIMESTAMP WHERE id = ?
	`, id)
	return err
}

// ClaimExtra redeems a one-time code, raising the account's extra slot
// count, and returns the new count.
func (s *SQLiteStore) ClaimExtra(ctx context.Context, id int64, code string) (int64, error) {
	var extra int64
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM extra_tokens WHERE id = ? RETURNING extra
	`, code).Scan(&extra)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidCode
		}
		return 0, err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE users SET extra = ? WHERE id = ?`, extra, id)
	if err != nil {
		return 0, err
	}
	return extra, nil
}

// CreateExtraCode mints a one-time extra-slot code.
func (s *SQLiteStore) CreateExtraCode(ctx context.Context, code string, extra int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO extra_tokens (id, extra) VALUES (?, ?)
	`, code, extra)
	return err
}

// InsertMessage stores a new message.
func (s *SQLiteStore) InsertMessage(ctx context.Context, id string, user int64, req *models.MessageRequest, text string) error {
	emote, err := marshalEmote(req.Emote)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, user, territory, ward, plot, x, y, z, yaw, message, glyph, emote)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, user, req.Territory, nullableInt(req.Ward), nullableInt(req.Plot),
		req.X, req.Y, req.Z, req.Yaw, text, req.Glyph, emote)
	return err
}

// nullableInt converts an optional uint16 to a driver-friendly value.
func nullableInt(v *uint16) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// CountMessages counts a user's messages.
func (s *SQLiteStore) CountMessages(ctx context.Context, user int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE user = ?
	`, user).Scan(&count)
	return count, err
}

// LocationMessages returns the vote-aggregated messages for a location.
func (s *SQLiteStore) LocationMessages(ctx context.Context, user int64, territory uint32, ward, plot *uint16) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.id, m.x, m.y, m.z, m.yaw, m.message, m.glyph, m.emote,
		       COALESCE(SUM(CASE WHEN v.vote = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN v.vote = -1 THEN 1 ELSE 0 END), 0),
		       COALESCE(v2.vote, 0),
		       m.created
		FROM messages m
		         LEFT JOIN votes v ON m.id = v.message
		         LEFT JOIN votes v2 ON m.id = v2.message AND v2.user = ?
		WHERE m.territory = ? AND m.ward IS ? AND m.plot IS ?
		GROUP BY m.id, v2.vote
	`, user, territory, nullableInt(ward), nullableInt(plot))
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

// MessageByID returns one message with its territory, or nil.
func (s *SQLiteStore) MessageByID(ctx context.Context, user int64, id string) (*models.OwnMessage, error) {
	rows, err := s.db.QueryContext(ctx, ownMessageQuery(`m.id = ?`), user, id)
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
func (s *SQLiteStore) OwnMessages(ctx context.Context, user int64) ([]*models.OwnMessage, error) {
	rows, err := s.db.QueryContext(ctx, ownMessageQuery(`m.user = ?`)+` ORDER BY m.created DESC`, user, user)
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
func (s *SQLiteStore) DeleteMessage(ctx context.Context, user int64, id string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM messages WHERE id = ? AND user = ?
	`, id, user)
	return err
}

// SetVote inserts or updates a user's vote on a message.
func (s *SQLiteStore) SetVote(ctx context.Context, user int64, messageID string, vote int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO votes (user, message, vote) VALUES (?, ?, ?)
		ON CONFLICT (user, message) DO UPDATE SET vote = excluded.vote
	`, user, messageID, vote)
	if err != nil && strings.Contains(err.Error(), "FOREIGN KEY") {
		return ErrNotFound
	}
	return err
}

// ownMessageQuery builds the vote-aggregated query for own-message rows
// with the given where clause. The first bind parameter is always the
// caller's user id (for their own vote).
func ownMessageQuery(where string) string {
	return `
		SELECT m.id, m.territory, m.ward, m.plot, m.x, m.y, m.z, m.yaw,
		       m.message, m.glyph, m.emote,
		       COALESCE(SUM(CASE WHEN v.vote = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN v.vote = -1 THEN 1 ELSE 0 END), 0),
		       COALESCE(v2.vote, 0),
		       m.created
		FROM messages m
		         LEFT JOIN votes v ON m.id = v.message
		         LEFT JOIN votes v2 ON m.id = v2.message AND v2.user = ?
		WHERE ` + where + `
		GROUP BY m.id, v2.vote`
}

// rowScanner is satisfied by both *sql.Rows and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*models.Message, error) {
	var (
		msg   models.Message
		id    string
		emote sql.NullString
	)
	err := row.Scan(
		&id, &msg.X, &msg.Y, &msg.Z, &msg.Yaw, &msg.Text, &msg.Glyph, &emote,
		&msg.PositiveVotes, &msg.NegativeVotes, &msg.UserVote, &msg.Created,
	)
	if err != nil {
		return nil, err
	}

	if msg.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if msg.Emote, err = unmarshalEmote(emote); err != nil {
		return nil, err
	}
	return &msg, nil
}

func scanOwnMessage(row rowScanner) (*models.OwnMessage, error) {
	var (
		msg        models.OwnMessage
		id         string
		ward, plot sql.NullInt64
		emote      sql.NullString
	)
	err := row.Scan(
		&id, &msg.Territory, &ward, &plot,
		&msg.X, &msg.Y, &msg.Z, &msg.Yaw, &msg.Text, &msg.Glyph, &emote,
		&msg.PositiveVotes, &msg.NegativeVotes, &msg.UserVote,
		&msg.Created,
	)
	if err != nil {
		return nil, err
	}

	if msg.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if ward.Valid {
		w := uint16(ward.Int64)
		msg.Ward = &w
	}
	if plot.Valid {
		p := uint16(plot.Int64)
		msg.Plot = &p
	}
	if msg.Emote, err = unmarshalEmote(emote); err != nil {
		return nil, err
	}
	return &msg, nil
}

func marshalEmote(emote *models.Emote) (*string, error) {
	if emote == nil {
		return nil, nil
	}
	data, err := json.Marshal(emote)
	if err != nil {
		return nil, err
	}
	s := string(data)
	return &s, nil
}

func unmarshalEmote(emote sql.NullString) (*models.Emote, error) {
	if !emote.Valid {
		return nil, nil
	}
	var e models.Emote
	if err := json.Unmarshal([]byte(emote.String), &e); err != nil {
		return nil, err
	}
	return &e, nil
}
