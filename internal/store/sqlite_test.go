package store

import (
	"context"
	"errors"
	"testing"

	"github.com/waymark-protocol/waymark/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func createTestAccount(t *testing.T, s *SQLiteStore, auth string) int64 {
	t.Helper()
	id, err := s.CreateAccount(context.Background(), auth)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func writeTestMessage(t *testing.T, s *SQLiteStore, id string, user int64, req *models.MessageRequest) {
	t.Helper()
	if err := s.InsertMessage(context.Background(), id, user, req, "Beware of ambush ahead"); err != nil {
		t.Fatal(err)
	}
}

func plainRequest(territory uint32) *models.MessageRequest {
	return &models.MessageRequest{Territory: territory, X: 1, Y: 2, Z: 3, Glyph: 3}
}

func TestAccountLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := createTestAccount(t, s, "hash-a")

	account, err := s.AccountByAuth(ctx, "hash-a")
	if err != nil {
		t.Fatal(err)
	}
	if account == nil || account.ID != id {
		t.Fatalf("lookup returned %+v", account)
	}

	missing, err := s.AccountByAuth(ctx, "hash-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("unknown auth hash resolved to an account")
	}

	if err := s.DeleteAccount(ctx, id); err != nil {
		t.Fatal(err)
	}
	account, err = s.AccountByAuth(ctx, "hash-a")
	if err != nil {
		t.Fatal(err)
	}
	if account != nil {
		t.Fatal("account survived deletion")
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	voter := createTestAccount(t, s, "voter")
	writeTestMessage(t, s, "00000000000000000000000000000001", author, plainRequest(132))
	if err := s.SetVote(ctx, voter, "00000000000000000000000000000001", 1); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAccount(ctx, author); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.LocationMessages(ctx, voter, 132, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 0 {
		t.Fatal("messages survived account deletion")
	}
}

func TestClaimExtra(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := createTestAccount(t, s, "hash")
	if err := s.CreateExtraCode(ctx, "CODE", 10); err != nil {
		t.Fatal(err)
	}

	extra, err := s.ClaimExtra(ctx, id, "CODE")
	if err != nil {
		t.Fatal(err)
	}
	if extra != 10 {
		t.Fatalf("extra = %d, want 10", extra)
	}

	account, _ := s.AccountByAuth(ctx, "hash")
	if account.Extra != 10 {
		t.Fatalf("stored extra = %d", account.Extra)
	}

	// codes are single-use
	if _, err := s.ClaimExtra(ctx, id, "CODE"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("second claim: %v", err)
	}
	if _, err := s.ClaimExtra(ctx, id, "NOPE"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("unknown code: %v", err)
	}
}

func TestLocationMessagesAggregatesVotes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	up1 := createTestAccount(t, s, "up1")
	up2 := createTestAccount(t, s, "up2")
	down := createTestAccount(t, s, "down")

	const msgID = "00000000000000000000000000000001"
	writeTestMessage(t, s, msgID, author, plainRequest(132))

	for _, voter := range []int64{up1, up2} {
		if err := s.SetVote(ctx, voter, msgID, 1); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SetVote(ctx, down, msgID, -1); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.LocationMessages(ctx, down, 132, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	msg := msgs[0]
	if msg.PositiveVotes != 2 || msg.NegativeVotes != 1 {
		t.Fatalf("votes = %d/%d", msg.PositiveVotes, msg.NegativeVotes)
	}
	if msg.UserVote != -1 {
		t.Fatalf("caller vote = %d, want -1", msg.UserVote)
	}
}

func TestLocationMessagesScopedByWard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	ward := uint16(3)
	housingReq := plainRequest(339)
	housingReq.Ward = &ward
	writeTestMessage(t, s, "00000000000000000000000000000001", author, housingReq)
	writeTestMessage(t, s, "00000000000000000000000000000002", author, plainRequest(339))

	inWard, err := s.LocationMessages(ctx, author, 339, &ward, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(inWard) != 1 {
		t.Fatalf("ward query returned %d messages", len(inWard))
	}

	outside, err := s.LocationMessages(ctx, author, 339, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(outside) != 1 {
		t.Fatalf("unscoped query returned %d messages", len(outside))
	}
}

func TestCountAndOwnMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	other := createTestAccount(t, s, "other")
	writeTestMessage(t, s, "00000000000000000000000000000001", author, plainRequest(132))
	writeTestMessage(t, s, "00000000000000000000000000000002", author, plainRequest(148))
	writeTestMessage(t, s, "00000000000000000000000000000003", other, plainRequest(132))

	count, err := s.CountMessages(ctx, author)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d", count)
	}

	msgs, err := s.OwnMessages(ctx, author)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d own messages", len(msgs))
	}
	for _, msg := range msgs {
		if msg.Created.IsZero() {
			t.Fatal("created timestamp not populated")
		}
	}
}

func TestMessageByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	writeTestMessage(t, s, "00000000000000000000000000000001", author, plainRequest(132))

	msg, err := s.MessageByID(ctx, author, "00000000000000000000000000000001")
	if err != nil {
		t.Fatal(err)
	}
	if msg == nil || msg.Territory != 132 {
		t.Fatalf("got %+v", msg)
	}

	missing, err := s.MessageByID(ctx, author, "00000000000000000000000000000009")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Fatal("unknown id resolved to a message")
	}
}

func TestDeleteMessageRequiresOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	other := createTestAccount(t, s, "other")
	writeTestMessage(t, s, "00000000000000000000000000000001", author, plainRequest(132))

	if err := s.DeleteMessage(ctx, other, "00000000000000000000000000000001"); err != nil {
		t.Fatal(err)
	}
	if count, _ := s.CountMessages(ctx, author); count != 1 {
		t.Fatal("non-owner deleted the message")
	}

	if err := s.DeleteMessage(ctx, author, "00000000000000000000000000000001"); err != nil {
		t.Fatal(err)
	}
	if count, _ := s.CountMessages(ctx, author); count != 0 {
		t.Fatal("owner delete did not remove the message")
	}
}

func TestSetVoteUpsertsAndValidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	voter := createTestAccount(t, s, "voter")
	const msgID = "00000000000000000000000000000001"
	writeTestMessage(t, s, msgID, author, plainRequest(132))

	if err := s.SetVote(ctx, voter, msgID, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.SetVote(ctx, voter, msgID, -1); err != nil {
		t.Fatal(err)
	}

	msgs, _ := s.LocationMessages(ctx, voter, 132, nil, nil)
	if msgs[0].PositiveVotes != 0 || msgs[0].NegativeVotes != 1 {
		t.Fatalf("vote not replaced: %d/%d", msgs[0].PositiveVotes, msgs[0].NegativeVotes)
	}

	if err := s.SetVote(ctx, voter, "00000000000000000000000000000009", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("vote on unknown message: %v", err)
	}
}

func TestEmoteRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	author := createTestAccount(t, s, "author")
	req := plainRequest(132)
	req.Emote = &models.Emote{
		Action:    5,
		Customize: []byte{1, 2, 3},
		Equipment: []uint32{10, 20},
		Weapons:   []models.WeaponSlot{{ModelID: 7, Flags: 1}},
		HatHidden: true,
	}
	writeTestMessage(t, s, "00000000000000000000000000000001", author, req)

	msgs, err := s.LocationMessages(ctx, author, 132, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	emote := msgs[0].Emote
	if emote == nil || emote.Action != 5 || !emote.HatHidden || len(emote.Weapons) != 1 {
		t.Fatalf("emote did not round-trip: %+v", emote)
	}
}
