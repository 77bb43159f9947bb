package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cleanreel/internal/domain"
	"cleanreel/internal/session"
)

// App carries the dependencies handlers need.
type App struct {
	Sessions       *session.Controller
	MaxUploadBytes int64
}

func NewApp(sessions *session.Controller, maxUploadBytes int64) *App {
	return &App{Sessions: sessions, MaxUploadBytes: maxUploadBytes}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) error(w http.ResponseWriter, code int, codeStr, message string) {
	a.json(w, code, map[string]errorBody{"error": {Code: codeStr, Message: message}})
}

// domainError maps sentinel errors from the session layer onto HTTP
// responses shared by every endpoint.
func (a *App) domainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, domain.ErrSessionBusy):
		a.error(w, http.StatusConflict, "busy", "the session already has work in flight")
	case errors.Is(err, domain.ErrUnsupportedMedia):
		a.error(w, http.StatusUnsupportedMediaType, "unsupported_media", "only video/mp4 uploads are supported")
	case errors.Is(err, domain.ErrNoFrame):
		a.error(w, http.StatusConflict, "no_frame", "upload and analyze a video before generating")
	case errors.Is(err, domain.ErrEmptyDescription):
		a.error(w, http.StatusBadRequest, "bad_request", "description must not be empty")
	default:
		return false
	}
	return true
}
