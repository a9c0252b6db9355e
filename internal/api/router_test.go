package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/models"
	"github.com/waymark-protocol/waymark/internal/packs"
	"github.com/waymark-protocol/waymark/internal/store"
)

const testPackID = "11111111-1111-1111-1111-111111111111"

const testPackYAML = `name: Standard
id: ` + testPackID + `
visible: true
order: 1
templates:
  - "Beware of {0}"
  - "Try jumping"
conjunctions:
  - "and then"
  - ","
words:
  - name: Creatures
    words:
      - ambush
      - morbol
`

type testServer struct {
	*httptest.Server
	db *store.SQLiteStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := store.NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(db.Close)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "standard.yaml"), []byte(testPackYAML), 0644); err != nil {
		t.Fatal(err)
	}
	registry, err := packs.NewRegistry(zerolog.Nop(), dir)
	if err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewRouter(zerolog.Nop(), db, registry, nil))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, db: db}
}

// do sends a request with an optional API key and returns the response.
func (s *testServer) do(t *testing.T, method, path, apiKey string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func errorCode(t *testing.T, resp *http.Response) int {
	t.Helper()
	var body struct {
		Code int `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	return body.Code
}

func register(t *testing.T, s *testServer) string {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/account", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register: status %d", resp.StatusCode)
	}
	token := readBody(t, resp)
	if len(token) != 32 {
		t.Fatalf("token %q has length %d", token, len(token))
	}
	return token
}

func writeRequest() *models.MessageRequest {
	return &models.MessageRequest{
		Territory: 132,
		X:         10, Y: 0, Z: 10,
		PackID:    uuid.MustParse(testPackID),
		Template1: 1,
		Glyph:     3,
	}
}

func writeMessage(t *testing.T, s *testServer, token string, req *models.MessageRequest) string {
	t.Helper()
	body, _ := json.Marshal(req)
	resp := s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("write: status %d: %s", resp.StatusCode, readBody(t, resp))
	}
	id := readBody(t, resp)
	if len(id) != 32 {
		t.Fatalf("message id %q has length %d", id, len(id))
	}
	return id
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" {
		t.Fatalf("status %q", health.Status)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/messages", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no key: status %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != 2 {
		t.Fatalf("no key: error code %d", code)
	}

	resp = s.do(t, http.MethodGet, "/messages", "wrong-key-wrong-key-wrong-key-wr", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad key: status %d", resp.StatusCode)
	}
}

func TestPacks(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/packs", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var list []*models.Pack
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "Standard" {
		t.Fatalf("got packs %+v", list)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)

	req := writeRequest()
	req.Template1 = 0
	list, word := 0, 1
	req.Word1List, req.Word1Word = &list, &word
	id := writeMessage(t, s, token, req)

	// territory fetch
	resp := s.do(t, http.MethodGet, "/messages/132", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("territory fetch: status %d", resp.StatusCode)
	}
	var msgs []*models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Text != "Beware of morbol" {
		t.Fatalf("composed text %q", msgs[0].Text)
	}

	// single message fetch by compact id
	resp = s.do(t, http.MethodGet, "/messages/"+id, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("id fetch: status %d", resp.StatusCode)
	}
	var own models.OwnMessage
	if err := json.NewDecoder(resp.Body).Decode(&own); err != nil {
		t.Fatal(err)
	}
	if own.Territory != 132 {
		t.Fatalf("territory %d", own.Territory)
	}

	// an empty territory answers with an empty array, not null
	resp = s.do(t, http.MethodGet, "/messages/148", token, nil)
	if body := readBody(t, resp); strings.TrimSpace(body) != "[]" {
		t.Fatalf("empty territory body %q", body)
	}
}

func TestWriteRejectsBadLocations(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)

	// housing zone without a ward
	req := writeRequest()
	req.Territory = 339
	body, _ := json.Marshal(req)
	resp := s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing ward: status %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != 5 {
		t.Fatalf("missing ward: error code %d", code)
	}

	// ward outside a housing zone
	req = writeRequest()
	ward := uint16(1)
	req.Ward = &ward
	body, _ = json.Marshal(req)
	resp = s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("stray ward: status %d", resp.StatusCode)
	}

	// glyph out of range
	req = writeRequest()
	req.Glyph = 6
	body, _ = json.Marshal(req)
	resp = s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad glyph: status %d", resp.StatusCode)
	}

	// unknown pack
	req = writeRequest()
	req.PackID = uuid.New()
	body, _ = json.Marshal(req)
	resp = s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown pack: status %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != 3 {
		t.Fatalf("unknown pack: error code %d", code)
	}
}

func TestWriteEnforcesSlotLimit(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)

	for i := 0; i < 10; i++ {
		writeMessage(t, s, token, writeRequest())
	}

	body, _ := json.Marshal(writeRequest())
	resp := s.do(t, http.MethodPost, "/messages", token, body)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("over limit: status %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != 4 {
		t.Fatalf("over limit: error code %d", code)
	}
}

func TestClaimRaisesSlotLimit(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)

	if err := s.db.CreateExtraCode(context.Background(), "GOLDEN", 2); err != nil {
		t.Fatal(err)
	}

	resp := s.do(t, http.MethodPost, "/claim", token, []byte("GOLDEN"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("claim: status %d", resp.StatusCode)
	}
	if body := readBody(t, resp); body != "2" {
		t.Fatalf("claim body %q", body)
	}

	for i := 0; i < 12; i++ {
		writeMessage(t, s, token, writeRequest())
	}

	// used codes stop working
	resp = s.do(t, http.MethodPost, "/claim", token, []byte("GOLDEN"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("reused code: status %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != 6 {
		t.Fatalf("reused code: error code %d", code)
	}
}

func TestVoting(t *testing.T) {
	s := newTestServer(t)
	author := register(t, s)
	voter := register(t, s)

	id := writeMessage(t, s, author, writeRequest())

	// any negative value is one vote down
	resp := s.do(t, http.MethodPatch, "/messages/"+id+"/votes", voter, []byte("-3"))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("vote: status %d", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/messages/132", author, nil)
	var msgs []*models.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if msgs[0].NegativeVotes != 1 || msgs[0].PositiveVotes != 0 {
		t.Fatalf("votes %d/%d", msgs[0].PositiveVotes, msgs[0].NegativeVotes)
	}

	// voting again replaces, not stacks
	resp = s.do(t, http.MethodPatch, "/messages/"+id+"/votes", voter, []byte("0"))
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revote: status %d", resp.StatusCode)
	}
	resp = s.do(t, http.MethodGet, "/messages/132", author, nil)
	msgs = nil
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		t.Fatal(err)
	}
	if msgs[0].NegativeVotes != 0 || msgs[0].PositiveVotes != 1 {
		t.Fatalf("after revote: votes %d/%d", msgs[0].PositiveVotes, msgs[0].NegativeVotes)
	}

	// votes on unknown messages are a 404
	ghost := strings.Repeat("0", 31) + "9"
	resp = s.do(t, http.MethodPatch, "/messages/"+ghost+"/votes", voter, []byte("1"))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("ghost vote: status %d", resp.StatusCode)
	}
}

func TestMineAndErase(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)
	id := writeMessage(t, s, token, writeRequest())

	resp := s.do(t, http.MethodGet, "/messages?v=2", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mine: status %d", resp.StatusCode)
	}
	var mine struct {
		Messages []*models.OwnMessage `json:"messages"`
		Extra    int64                `json:"extra"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mine); err != nil {
		t.Fatal(err)
	}
	if len(mine.Messages) != 1 || mine.Extra != 0 {
		t.Fatalf("mine: %d messages, extra %d", len(mine.Messages), mine.Extra)
	}
	if mine.Messages[0].IsHidden {
		t.Fatal("fresh message marked hidden")
	}

	resp = s.do(t, http.MethodDelete, "/messages/"+id, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("erase: status %d", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/messages/"+id, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("after erase: status %d", resp.StatusCode)
	}
}

func TestUnregisterRemovesEverything(t *testing.T) {
	s := newTestServer(t)
	token := register(t, s)
	writeMessage(t, s, token, writeRequest())

	resp := s.do(t, http.MethodDelete, "/account", token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("unregister: status %d", resp.StatusCode)
	}

	resp = s.do(t, http.MethodGet, "/messages", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("after unregister: status %d", resp.StatusCode)
	}
}
