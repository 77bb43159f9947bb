package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type generateRequest struct {
	Description string `json:"description"`
}

// SessionGenerate kicks off background video generation from the
// extracted frame and the submitted description. It answers 202; the
// client polls the session for the outcome.
func (a *App) SessionGenerate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	snap, err := a.Sessions.StartGeneration(id, req.Description)
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to start generation")
		}
		return
	}
	a.json(w, http.StatusAccepted, sessionDTO(snap))
}
