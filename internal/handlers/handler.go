package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/waymark-protocol/waymark/internal/packs"
	"github.com/waymark-protocol/waymark/internal/store"
)

// Error codes carried in the JSON error body alongside the HTTP status.
const (
	CodeInvalidRequest   = 1
	CodeUnauthorized     = 2
	CodeNotFound         = 3
	CodeTooManyMessages  = 4
	CodeInvalidLocation  = 5
	CodeInvalidExtraCode = 6
	CodeInternal         = 7
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	db    store.DataStore
	packs *packs.Registry
	log   zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(db store.DataStore, packs *packs.Registry, log zerolog.Logger) *Handler {
	return &Handler{db: db, packs: packs, log: log}
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status and error code.
func (h *Handler) Error(w http.ResponseWriter, status, code int, message string) {
	h.JSON(w, status, ErrorBody{Code: code, Message: message})
}

// decodeJSON decodes a JSON request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
