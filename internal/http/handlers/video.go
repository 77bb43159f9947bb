package handlers

import (
	"encoding/base64"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"cleanreel/internal/domain"
	"cleanreel/pkg/datauri"
)

// SessionUpload accepts a multipart video under the "video" field,
// spools it and runs frame extraction synchronously. The part is
// streamed straight into storage, so the request body is read at most
// once.
func (a *App) SessionUpload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "session_id")
	if a.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "expected a multipart/form-data upload")
		return
	}
	part, err := videoPart(mr)
	if err != nil {
		if isTooLarge(err) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "uploaded video exceeds the size limit")
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", `multipart field "video" is required`)
		return
	}
	defer part.Close()

	snap, err := a.Sessions.Analyze(r.Context(), id, part.Header.Get("Content-Type"), part)
	if err != nil {
		if isTooLarge(err) {
			a.error(w, http.StatusRequestEntityTooLarge, "too_large", "uploaded video exceeds the size limit")
			return
		}
		if !a.domainError(w, err) {
			a.error(w, http.StatusUnprocessableEntity, "analysis_failed", err.Error())
		}
		return
	}

	resp := sessionDTO(snap)
	if frame, err := a.Sessions.Frame(id); err == nil && resp.Frame != nil {
		resp.Frame.Preview = datauri.FromPayload(frame.MimeType, frame.Payload)
	}
	a.json(w, http.StatusOK, resp)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func videoPart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "video" {
			return part, nil
		}
		_ = part.Close()
	}
}

// SessionFrame serves the extracted frame as an image for preview.
func (a *App) SessionFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := a.Sessions.Frame(chi.URLParam(r, "session_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNoFrame) {
			a.error(w, http.StatusNotFound, "no_frame", "no extracted frame available")
			return
		}
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to load frame")
		}
		return
	}

	mimeType, payload := frame.MimeType, frame.Payload
	if mt, p, splitErr := datauri.Split(payload); splitErr == nil {
		payload = p
		if mt != "" {
			mimeType = mt
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "frame payload is corrupted")
		return
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// SessionDownload streams the generated video as an attachment.
func (a *App) SessionDownload(w http.ResponseWriter, r *http.Request) {
	f, art, err := a.Sessions.OpenResult(chi.URLParam(r, "session_id"))
	if err != nil {
		if !a.domainError(w, err) {
			a.error(w, http.StatusInternalServerError, "internal", "failed to open generated video")
		}
		return
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to stat generated video")
		return
	}
	w.Header().Set("Content-Type", art.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="clean-video.mp4"`)
	http.ServeContent(w, r, "clean-video.mp4", fi.ModTime(), f)
}
