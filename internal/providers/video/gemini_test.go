package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cleanreel/internal/domain"
	"cleanreel/internal/providers/genai"
)

const testOpName = "models/veo-3.0-fast-generate-001/operations/op-9"

func testFrame() domain.ExtractedFrame {
	return domain.ExtractedFrame{
		Payload:  "ZnJhbWU=",
		MimeType: "image/jpeg",
		Width:    1024,
		Height:   512,
	}
}

func newTestGenerator(t *testing.T, srv *httptest.Server, apiKey string) *GeminiGenerator {
	t.Helper()
	client, err := genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    srv.URL,
		Model:      "veo-3.0-fast-generate-001",
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return NewGeminiGenerator(Options{Client: client, PollInterval: time.Millisecond})
}

func TestGenerate(t *testing.T) {
	resultBytes := []byte("clean video bytes")
	var (
		srv       *httptest.Server
		polls     int
		pollPaths []string
		captured  struct {
			Instances []struct {
				Prompt string `json:"prompt"`
				Image  *struct {
					BytesBase64Encoded string `json:"bytesBase64Encoded"`
					MimeType           string `json:"mimeType"`
				} `json:"image"`
			} `json:"instances"`
			Parameters struct {
				SampleCount int    `json:"sampleCount"`
				Resolution  string `json:"resolution"`
				AspectRatio string `json:"aspectRatio"`
			} `json:"parameters"`
		}
	)

	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/models/veo-3.0-fast-generate-001:predictLongRunning":
			if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
				t.Fatalf("decode submission: %v", err)
			}
			fmt.Fprintf(w, `{"name":%q}`, testOpName)
		case r.URL.Path == "/"+testOpName:
			polls++
			pollPaths = append(pollPaths, r.URL.Path)
			if polls < 6 {
				fmt.Fprintf(w, `{"name":%q,"done":false}`, testOpName)
				return
			}
			fmt.Fprintf(w, `{"name":%q,"done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"%s/files/result:download?alt=media"}}]}}}`, testOpName, srv.URL)
		case strings.HasPrefix(r.URL.Path, "/files/result"):
			w.Header().Set("Content-Type", "video/mp4")
			_, _ = w.Write(resultBytes)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	asset, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if string(asset.Data) != string(resultBytes) {
		t.Fatalf("asset data = %q", asset.Data)
	}
	if asset.MimeType != "video/mp4" {
		t.Fatalf("asset mime = %q, want video/mp4", asset.MimeType)
	}
	if polls != 6 {
		t.Fatalf("polls = %d, want 6 (five pending, one done)", polls)
	}
	for i, p := range pollPaths {
		if p != "/"+testOpName {
			t.Fatalf("poll %d hit %q, want the captured operation name", i+1, p)
		}
	}

	if len(captured.Instances) != 1 {
		t.Fatalf("instances = %d, want 1", len(captured.Instances))
	}
	inst := captured.Instances[0]
	wantPrompt := "a red car, " + stylePrompt
	if inst.Prompt != wantPrompt {
		t.Fatalf("prompt = %q, want %q", inst.Prompt, wantPrompt)
	}
	if inst.Image == nil || inst.Image.BytesBase64Encoded != "ZnJhbWU=" {
		t.Fatalf("image payload = %+v", inst.Image)
	}
	if inst.Image.MimeType != "image/jpeg" {
		t.Fatalf("image mime = %q", inst.Image.MimeType)
	}
	if captured.Parameters.AspectRatio != "16:9" {
		t.Fatalf("aspectRatio = %q, want 16:9 for a 1024x512 frame", captured.Parameters.AspectRatio)
	}
	if captured.Parameters.SampleCount != 1 {
		t.Fatalf("sampleCount = %d, want 1", captured.Parameters.SampleCount)
	}
	if captured.Parameters.Resolution != "720p" {
		t.Fatalf("resolution = %q, want 720p", captured.Parameters.Resolution)
	}
}

func TestGenerateWithoutCredential(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if !errors.Is(err, domain.ErrMissingCredential) {
		t.Fatalf("Generate() error = %v, want %v", err, domain.ErrMissingCredential)
	}
	if requests != 0 {
		t.Fatalf("server received %d requests, want 0", requests)
	}
}

func TestGenerateRejectsEmptyDescription(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "   ",
	})
	if !errors.Is(err, domain.ErrEmptyDescription) {
		t.Fatalf("Generate() error = %v, want %v", err, domain.ErrEmptyDescription)
	}
	if requests != 0 {
		t.Fatalf("server received %d requests, want 0", requests)
	}
}

func TestGenerateMissingOperationIdentifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if err == nil || !strings.Contains(err.Error(), "operation identifier") {
		t.Fatalf("Generate() error = %v, want missing-identifier failure", err)
	}
}

func TestGenerateOperationLost(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/veo-3.0-fast-generate-001:predictLongRunning" {
			fmt.Fprintf(w, `{"name":%q}`, testOpName)
			return
		}
		polls++
		if polls == 1 {
			fmt.Fprintf(w, `{"name":%q,"done":false}`, testOpName)
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Operation not found","status":"NOT_FOUND"}}`))
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if !errors.Is(err, domain.ErrOperationLost) {
		t.Fatalf("Generate() error = %v, want %v", err, domain.ErrOperationLost)
	}
	if polls != 2 {
		t.Fatalf("polls = %d, want exactly 2 (loop aborts on not-found)", polls)
	}
}

func TestGenerateNoVideoResult(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/veo-3.0-fast-generate-001:predictLongRunning" {
			fmt.Fprintf(w, `{"name":%q,"done":true,"response":{"generateVideoResponse":{"raiMediaFilteredReasons":["content filtered"]}}}`, testOpName)
			return
		}
		polls++
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if !errors.Is(err, domain.ErrNoVideoResult) {
		t.Fatalf("Generate() error = %v, want %v", err, domain.ErrNoVideoResult)
	}
	if !strings.Contains(err.Error(), "content filtered") {
		t.Fatalf("Generate() error = %v, want server-supplied failure message", err)
	}
	if polls != 0 {
		t.Fatalf("polls = %d, want 0 for an operation finished at submission", polls)
	}
}

func TestGenerateAbandonedOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/veo-3.0-fast-generate-001:predictLongRunning" {
			fmt.Fprintf(w, `{"name":%q}`, testOpName)
			cancel()
			return
		}
		polls++
	}))
	defer srv.Close()

	client, err := genai.NewClient(genai.Options{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	gen := NewGeminiGenerator(Options{Client: client, PollInterval: 50 * time.Millisecond})

	_, err = gen.Generate(ctx, GenerateRequest{
		Frame:       testFrame(),
		Description: "a red car",
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context cancellation", err)
	}
	if polls != 0 {
		t.Fatalf("polls = %d, want 0 after cancellation", polls)
	}
}

func TestGenerateStripsDataURIPrefix(t *testing.T) {
	var captured struct {
		Instances []struct {
			Image struct {
				BytesBase64Encoded string `json:"bytesBase64Encoded"`
				MimeType           string `json:"mimeType"`
			} `json:"image"`
		} `json:"instances"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode submission: %v", err)
		}
		fmt.Fprintf(w, `{"name":%q,"done":true}`, testOpName)
	}))
	defer srv.Close()

	gen := newTestGenerator(t, srv, "test-key")
	_, err := gen.Generate(context.Background(), GenerateRequest{
		Frame: domain.ExtractedFrame{
			Payload:  "data:image/png;base64,ZnJhbWU=",
			MimeType: "image/jpeg",
			Width:    1024,
			Height:   512,
		},
		Description: "a red car",
	})
	if !errors.Is(err, domain.ErrNoVideoResult) {
		t.Fatalf("Generate() error = %v, want %v", err, domain.ErrNoVideoResult)
	}

	if len(captured.Instances) != 1 {
		t.Fatalf("instances = %d, want 1", len(captured.Instances))
	}
	img := captured.Instances[0].Image
	if img.BytesBase64Encoded != "ZnJhbWU=" {
		t.Fatalf("submitted payload = %q, want the prefix stripped", img.BytesBase64Encoded)
	}
	if img.MimeType != "image/png" {
		t.Fatalf("submitted mime = %q, want the data URI's type", img.MimeType)
	}
}

func TestComposePrompt(t *testing.T) {
	if got := composePrompt("  a red car  "); got != "a red car, "+stylePrompt {
		t.Fatalf("composePrompt() = %q", got)
	}
	if got := composePrompt(""); got != stylePrompt {
		t.Fatalf("composePrompt(empty) = %q", got)
	}
}
