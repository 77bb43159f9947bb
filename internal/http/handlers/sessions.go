package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cleanreel/internal/session"
)

type frameResponse struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspect_ratio"`
	// Preview carries a data-URI rendition of the frame. Only the upload
	// response fills it; polled snapshots stay small.
	Preview string `json:"preview,omitempty"`
}

type sessionResponse struct {
	ID          string         `json:"id"`
	State       string         `json:"state"`
	Progress    string         `json:"progress,omitempty"`
	Frame       *frameResponse `json:"frame,omitempty"`
	Description string         `json:"description,omitempty"`
	Error       string         `json:"error,omitempty"`
	ResultReady bool           `json:"result_ready"`
	ResultBytes int64          `json:"result_bytes,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func sessionDTO(snap session.Snapshot) sessionResponse {
	resp := sessionResponse{
		ID:          snap.ID,
		State:       string(snap.State),
		Progress:    progressMessage(snap),
		Description: snap.Description,
		Error:       snap.Error,
		ResultReady: snap.ResultReady,
		ResultBytes: snap.ResultBytes,
		CreatedAt:   snap.CreatedAt,
	}
	if snap.HasFrame {
		resp.Frame = &frameResponse{
			Width:       snap.FrameWidth,
			Height:      snap.FrameHeight,
			AspectRatio: string(snap.AspectRatio),
		}
	}
	return resp
}

// progressMessage turns the state into the status line a front end would
// show while polling. Errors carry their own text instead.
func progressMessage(snap session.Snapshot) string {
	switch snap.State {
	case session.StateAnalyzing:
		return "analyzing video"
	case session.StateGenerating:
		return "generating video, this can take a few minutes"
	case session.StateCompleted:
		return "video ready"
	case session.StateIdle:
		if snap.HasFrame {
			return "frame ready"
		}
	}
	return ""
}

func (a *App) SessionCreate(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusCreated, sessionDTO(a.Sessions.Create()))
}

func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Get(chi.URLParam(r, "session_id"))
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load session")
		}
		return
	}
	a.json(w, http.StatusOK, sessionDTO(snap))
}

func (a *App) SessionReset(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Sessions.Reset(chi.URLParam(r, "session_id"))
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to reset session")
		}
		return
	}
	a.json(w, http.StatusOK, sessionDTO(snap))
}

func (a *App) SessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.Remove(chi.URLParam(r, "session_id")); err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to delete session")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
