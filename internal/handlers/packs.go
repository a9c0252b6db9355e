package handlers

import "net/http"

// Packs lists the message packs available for composition.
func (h *Handler) Packs(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, h.packs.Packs())
}
