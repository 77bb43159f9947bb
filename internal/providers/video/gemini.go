package video

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cleanreel/internal/domain"
	"cleanreel/internal/infra"
	"cleanreel/internal/providers/genai"
	"cleanreel/pkg/datauri"
)

// stylePrompt is appended to every reconstruction prompt so the model keeps
// the scene while dropping overlays.
const stylePrompt = "cinematic, high quality, no watermarks, no overlay text, clean composition, photorealistic, preserve original scene structure"

const (
	defaultPollInterval = 5 * time.Second
	resolution720p      = "720p"
)

// Options configures the Gemini-backed generator.
type Options struct {
	Client       *genai.Client
	PollInterval time.Duration
	Logger       *infra.Logger
}

// GeminiGenerator drives one Veo long-running operation to completion:
// submit, poll by the captured identifier, download the first video. Errors
// are terminal for the attempt; there is no automatic retry.
type GeminiGenerator struct {
	client       *genai.Client
	pollInterval time.Duration
	logger       *infra.Logger
}

// NewGeminiGenerator constructs a generator around an API client.
func NewGeminiGenerator(opts Options) *GeminiGenerator {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &GeminiGenerator{
		client:       opts.Client,
		pollInterval: interval,
		logger:       logger,
	}
}

// Generate submits the frame-conditioned request and polls the operation
// until it finishes, then downloads the first generated video. The context
// bounds every wait; cancelling it abandons the local attempt without
// instructing the provider to abort.
func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if g.client == nil || !g.client.HasCredential() {
		return nil, fmt.Errorf("%w: set GEMINI_API_KEY to enable generation", domain.ErrMissingCredential)
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, domain.ErrEmptyDescription
	}
	if req.Frame.Payload == "" {
		return nil, domain.ErrNoFrame
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = req.Frame.AspectRatio()
	}

	// Frames captured through browser canvases arrive as data URIs; the
	// API wants the bare base64 payload.
	payload := req.Frame.Payload
	imageMIME := req.Frame.MimeType
	if mimeType, stripped, err := datauri.Split(payload); err == nil {
		payload = stripped
		if mimeType != "" {
			imageMIME = mimeType
		}
	}

	op, err := g.client.StartVideoGeneration(ctx, genai.VideoGenerationRequest{
		Prompt:      composePrompt(req.Description),
		ImageBase64: payload,
		ImageMIME:   imageMIME,
		AspectRatio: string(aspect),
		SampleCount: 1,
		Resolution:  resolution720p,
	})
	if err != nil {
		return nil, fmt.Errorf("submit generation: %w", err)
	}

	// The name string is the durable handle; the snapshot is replaced
	// wholesale on every poll and never sent back to the server.
	name := strings.TrimSpace(op.Name)
	if name == "" {
		return nil, errors.New("generation did not return an operation identifier")
	}

	g.logger.Info().
		Str("operation", name).
		Str("aspect_ratio", string(aspect)).
		Msg("video: generation started")

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		op, err = g.client.GetOperation(ctx, name)
		if err != nil {
			if genai.IsNotFound(err) {
				return nil, fmt.Errorf("%w: %v", domain.ErrOperationLost, err)
			}
			return nil, fmt.Errorf("poll operation: %w", err)
		}
	}

	uri := op.FirstVideoURI()
	if uri == "" {
		if msg := op.FailureMessage(); msg != "" {
			return nil, fmt.Errorf("%w: %s", domain.ErrNoVideoResult, msg)
		}
		return nil, domain.ErrNoVideoResult
	}

	data, mime, err := g.client.DownloadVideo(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	if mime == "" {
		mime = "video/mp4"
	}

	g.logger.Info().
		Str("operation", name).
		Int("bytes", len(data)).
		Msg("video: generation completed")

	return &Asset{Data: data, MimeType: mime, SourceURI: uri}, nil
}

func composePrompt(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return stylePrompt
	}
	return description + ", " + stylePrompt
}

var _ Generator = (*GeminiGenerator)(nil)
