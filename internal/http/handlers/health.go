package handlers

import (
	"net/http"
)

type healthResponse struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Sessions int    `json:"sessions"`
}

// Health reports liveness plus the number of registered sessions, which
// doubles as a cheap load indicator for dashboards.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Service:  "cleanreel",
		Sessions: a.Sessions.ActiveSessions(),
	})
}
