package handlers

import (
	"encoding/hex"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/waymark-protocol/waymark/internal/api/middleware"
	"github.com/waymark-protocol/waymark/internal/crypto"
	"github.com/waymark-protocol/waymark/internal/metrics"
	"github.com/waymark-protocol/waymark/internal/models"
	"github.com/waymark-protocol/waymark/internal/store"
)

// baseMessageSlots is how many messages an account may have before any
// claimed extra slots.
const baseMessageSlots = 10

// voteThresholdHide is the appraisal score below which a message stops
// being shown, though it still counts against its author's slots.
const voteThresholdHide = -5

// glyphCount bounds the glyph index a writer may pick.
const glyphCount = 6

// housingZones are the territories where ward (and optionally plot)
// scoping applies. TerritoryIntendedUse 13 or 14.
var housingZones = map[uint32]bool{
	282: true, 283: true, 284: true,
	339: true, 340: true, 341: true, 342: true, 343: true, 344: true,
	345: true, 346: true, 347: true,
	384: true, 385: true, 386: true,
	423: true, 424: true, 425: true,
	573: true, 574: true, 575: true,
	608: true, 609: true, 610: true,
	641: true,
	649: true, 650: true, 651: true, 652: true, 653: true, 654: true, 655: true,
	979: true, 980: true, 981: true, 982: true, 983: true, 984: true, 985: true,
	999: true,
}

// Write places a new message, composing its text server-side from the
// requested pack indices. The new message id is the plain response body.
func (h *Handler) Write(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	var req models.MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return
	}

	housing := housingZones[req.Territory]
	if housing && req.Ward == nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidLocation, "ward is required in a housing zone")
		return
	}
	if !housing && (req.Ward != nil || req.Plot != nil) {
		h.Error(w, http.StatusBadRequest, CodeInvalidLocation, "ward and plot are only valid in housing zones")
		return
	}
	if req.Glyph < 0 || req.Glyph >= glyphCount {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "glyph out of range")
		return
	}

	text, ok := h.composeText(&req)
	if !ok {
		h.Error(w, http.StatusNotFound, CodeNotFound, "unknown pack or index out of range")
		return
	}

	count, err := h.db.CountMessages(r.Context(), account.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("account", account.ID).Msg("Failed to count messages")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}
	if count >= baseMessageSlots+account.Extra {
		h.Error(w, http.StatusUnprocessableEntity, CodeTooManyMessages, "message limit reached")
		return
	}

	id := crypto.NewMessageID()
	idStr := simpleUUID(id)
	if err := h.db.InsertMessage(r.Context(), idStr, account.ID, &req, text); err != nil {
		h.log.Error().Err(err).Int64("account", account.ID).Msg("Failed to insert message")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "failed to store message")
		return
	}

	metrics.MessagesWritten.Inc()
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(idStr))
}

// composeText formats the message text from the requested pack. It
// returns false when the pack is unknown or any index is out of range.
func (h *Handler) composeText(req *models.MessageRequest) (string, bool) {
	for _, pack := range h.packs.Packs() {
		if pack.ID != req.PackID {
			continue
		}
		return pack.Format(
			req.Template1,
			wordChoice(req.Word1List, req.Word1Word),
			req.Conjunction,
			req.Template2,
			wordChoice(req.Word2List, req.Word2Word),
		)
	}
	return "", false
}

func wordChoice(list, word *int) *models.WordChoice {
	if list == nil || word == nil {
		return nil
	}
	return &models.WordChoice{List: *list, Word: *word}
}

// GetMessages dispatches GET /messages/{key}: a numeric key is a
// territory fetch, anything else is a single message id.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if territory, err := strconv.ParseUint(key, 10, 32); err == nil {
		h.locationMessages(w, r, uint32(territory))
		return
	}
	h.messageByID(w, r, key)
}

func (h *Handler) locationMessages(w http.ResponseWriter, r *http.Request, territory uint32) {
	account := middleware.GetAccountFromContext(r.Context())

	ward, err := queryUint16(r, "ward")
	if err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid ward")
		return
	}
	plot, err := queryUint16(r, "plot")
	if err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid plot")
		return
	}

	msgs, err := h.db.LocationMessages(r.Context(), account.ID, territory, ward, plot)
	if err != nil {
		h.log.Error().Err(err).Uint32("territory", territory).Msg("Failed to fetch messages")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}

	if r.URL.Query().Has("filter") {
		msgs = filterMessages(msgs)
	}

	if msgs == nil {
		msgs = []*models.Message{}
	}
	h.JSON(w, http.StatusOK, msgs)
}

func (h *Handler) messageByID(w http.ResponseWriter, r *http.Request, id string) {
	account := middleware.GetAccountFromContext(r.Context())

	if !validMessageID(id) {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid message id")
		return
	}

	msg, err := h.db.MessageByID(r.Context(), account.ID, id)
	if err != nil {
		h.log.Error().Err(err).Str("message", id).Msg("Failed to fetch message")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}
	if msg == nil {
		h.Error(w, http.StatusNotFound, CodeNotFound, "no such message")
		return
	}

	h.JSON(w, http.StatusOK, msg)
}

// Mine lists the caller's messages newest-first. With ?v=2 the list is
// wrapped together with the account's extra slot count.
func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	msgs, err := h.db.OwnMessages(r.Context(), account.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("account", account.ID).Msg("Failed to list messages")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}

	for _, msg := range msgs {
		msg.IsHidden = msg.PositiveVotes-msg.NegativeVotes < voteThresholdHide
	}
	if msgs == nil {
		msgs = []*models.OwnMessage{}
	}

	if r.URL.Query().Get("v") != "2" {
		h.JSON(w, http.StatusOK, msgs)
		return
	}

	h.JSON(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"extra":    account.Extra,
	})
}

// Erase deletes one of the caller's messages.
func (h *Handler) Erase(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if !validMessageID(id) {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid message id")
		return
	}

	if err := h.db.DeleteMessage(r.Context(), account.ID, id); err != nil {
		h.log.Error().Err(err).Str("message", id).Msg("Failed to delete message")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}

	metrics.MessagesErased.Inc()
	w.WriteHeader(http.StatusNoContent)
}

// Vote casts the caller's vote on a message. The body is a bare JSON
// integer; any non-negative value counts as a vote up.
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	account := middleware.GetAccountFromContext(r.Context())

	id := chi.URLParam(r, "id")
	if !validMessageID(id) {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "invalid message id")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 32))
	if err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "failed to read body")
		return
	}
	way, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		h.Error(w, http.StatusBadRequest, CodeInvalidRequest, "body must be an integer")
		return
	}

	// signum: anything non-negative is a vote up
	direction := "up"
	if way < 0 {
		way = -1
		direction = "down"
	} else {
		way = 1
	}

	if err := h.db.SetVote(r.Context(), account.ID, id, way); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.Error(w, http.StatusNotFound, CodeNotFound, "no such message")
			return
		}
		h.log.Error().Err(err).Str("message", id).Msg("Failed to store vote")
		h.Error(w, http.StatusInternalServerError, CodeInternal, "database error")
		return
	}

	metrics.VotesCast.WithLabelValues(direction).Inc()
	w.WriteHeader(http.StatusNoContent)
}

// filterMessages thins dense clusters. Groups of three or fewer always
// show; in larger clusters a message's survival odds rise while it is
// new and with its appraisal score, and every score point extends its
// lifetime by a week.
func filterMessages(msgs []*models.Message) []*models.Message {
	now := time.Now().UTC()
	kept := msgs[:0]

	for _, a := range msgs {
		nearby := 0
		for _, b := range msgs {
			if a.ID == b.ID {
				continue
			}
			dx := float64(a.X - b.X)
			dy := float64(a.Y - b.Y)
			dz := float64(a.Z - b.Z)
			// 7.5 squared
			if dx*dx+dy*dy+dz*dz < 56.25 {
				nearby++
			}
		}

		if nearby <= 2 {
			kept = append(kept, a)
			continue
		}

		score := a.PositiveVotes - a.NegativeVotes
		if score < 0 {
			score = 0
		}

		age := now.Sub(a.Created) - time.Duration(score)*7*24*time.Hour
		if age > 7*24*time.Hour {
			continue
		}

		brandNew := age < 30*time.Minute
		fresh := age < 2*time.Hour

		numerator := 1
		if brandNew {
			numerator = nearby
		} else if fresh {
			extra := nearby / 3
			if extra > 1 {
				extra = 1
			}
			numerator += extra
		}

		if score > 0 {
			pad := int(float64(score)/float64(nearby) + 0.5)
			if half := nearby / 2; pad < half {
				pad = half
			}
			numerator += pad
		}

		if numerator > nearby {
			numerator = nearby
		}
		if rand.Intn(nearby*2) < numerator {
			kept = append(kept, a)
		}
	}

	return kept
}

// queryUint16 parses an optional numeric query parameter.
func queryUint16(r *http.Request, name string) (*uint16, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		return nil, err
	}
	out := uint16(v)
	return &out, nil
}

// validMessageID accepts the compact hyphenless UUID form used in paths.
func validMessageID(id string) bool {
	if len(id) != 32 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// simpleUUID renders a UUID without hyphens, the form ids take in paths
// and storage.
func simpleUUID(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}
