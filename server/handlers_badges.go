package server

import (
	"encoding/json"
	"net/http"
)

// HandleGlobalBadges serves the cached global chat badge sets.
func (h *Handlers) HandleGlobalBadges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sets := h.badges.GetGlobalChatBadges(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(sets)
}
