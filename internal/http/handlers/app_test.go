package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"cleanreel/internal/domain"
	"cleanreel/internal/providers/video"
	"cleanreel/internal/session"
	"cleanreel/internal/storage"
)

type stubExtractor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (e *stubExtractor) Extract(ctx context.Context, path string) (*domain.ExtractedFrame, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return &domain.ExtractedFrame{
		Payload:  "ZnJhbWU=",
		MimeType: "image/jpeg",
		Width:    1920,
		Height:   1080,
	}, nil
}

func (e *stubExtractor) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type stubGenerator struct {
	mu    sync.Mutex
	err   error
	block chan struct{}
}

func (g *stubGenerator) Generate(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
	g.mu.Lock()
	block, genErr := g.block, g.err
	g.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if genErr != nil {
		return nil, genErr
	}
	return &video.Asset{Data: []byte("generated video"), MimeType: "video/mp4"}, nil
}

func newTestApp(t *testing.T) (*App, *stubExtractor, *stubGenerator) {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	ext := &stubExtractor{}
	gen := &stubGenerator{}
	ctrl, err := session.NewController(session.Options{
		Store:     store,
		Extractor: ext,
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return NewApp(ctrl, 64<<20), ext, gen
}

func withSessionID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("session_id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func createSession(t *testing.T, app *App) string {
	t.Helper()
	rr := httptest.NewRecorder()
	app.SessionCreate(rr, httptest.NewRequest(http.MethodPost, "/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected status code: got %d, want %d", rr.Code, http.StatusCreated)
	}
	var resp sessionResponse
	decodeBody(t, rr, &resp)
	if resp.ID == "" {
		t.Fatal("create response has no session id")
	}
	return resp.ID
}

func multipartVideo(t *testing.T, field, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="clip.mp4"`, field))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func uploadVideo(t *testing.T, app *App, id string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartVideo(t, "video", "video/mp4", []byte("fake mp4 bytes"))
	req := withSessionID(httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/video", body), id)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	app.SessionUpload(rr, req)
	return rr
}

func waitSessionState(t *testing.T, app *App, id string, want session.State) session.Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := app.Sessions.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if snap.State == want {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %s never reached state %q", id, want)
	return session.Snapshot{}
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var payload struct {
		Error errorBody `json:"error"`
	}
	decodeBody(t, rr, &payload)
	return payload.Error
}
