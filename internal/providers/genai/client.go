package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cleanreel/internal/infra"
)

// Options controls how the Gemini video client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client is a thin facade over the Gemini API's long-running video
// generation surface: one submission call, snapshot fetches by operation
// name, and an authenticated download of the finished video. It never
// retries on its own; callers own the polling policy.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

// VideoGenerationRequest carries one frame-conditioned generation.
type VideoGenerationRequest struct {
	Prompt      string
	ImageBase64 string
	ImageMIME   string
	AspectRatio string
	SampleCount int
	Resolution  string
}

type inlineImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

type videoInstance struct {
	Prompt string       `json:"prompt"`
	Image  *inlineImage `json:"image,omitempty"`
}

type videoParameters struct {
	SampleCount int    `json:"sampleCount,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictLongRunningRequest struct {
	Instances  []videoInstance  `json:"instances"`
	Parameters *videoParameters `json:"parameters,omitempty"`
}

// Operation is a snapshot of the server-owned long-running job. Callers keep
// only Name as the durable handle and poll for fresh snapshots; a snapshot is
// never passed back to the server.
type Operation struct {
	Name     string             `json:"name"`
	Done     bool               `json:"done"`
	Error    *OperationError    `json:"error,omitempty"`
	Response *operationResponse `json:"response,omitempty"`
}

// OperationError carries the failure detail of a finished operation.
type OperationError struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Status  string `json:"status,omitempty"`
}

type operationResponse struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
	// some model versions inline the samples at the top level
	GeneratedSamples []generatedSample `json:"generatedSamples,omitempty"`
	GeneratedVideos  []generatedSample `json:"generatedVideos,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples        []generatedSample `json:"generatedSamples,omitempty"`
	GeneratedVideos         []generatedSample `json:"generatedVideos,omitempty"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type generatedSample struct {
	Video *videoRef `json:"video,omitempty"`
}

type videoRef struct {
	URI string `json:"uri,omitempty"`
}

// FirstVideoURI returns the locator of the first generated video, or "" when
// the operation finished without one.
func (o *Operation) FirstVideoURI() string {
	if o == nil || o.Response == nil {
		return ""
	}
	groups := make([][]generatedSample, 0, 4)
	if inner := o.Response.GenerateVideoResponse; inner != nil {
		groups = append(groups, inner.GeneratedSamples, inner.GeneratedVideos)
	}
	groups = append(groups, o.Response.GeneratedSamples, o.Response.GeneratedVideos)
	for _, samples := range groups {
		for _, sample := range samples {
			if sample.Video != nil && sample.Video.URI != "" {
				return sample.Video.URI
			}
		}
	}
	return ""
}

// FailureMessage surfaces whatever failure detail the server attached to a
// finished operation, including responsible-AI filter reasons.
func (o *Operation) FailureMessage() string {
	if o == nil {
		return ""
	}
	if o.Error != nil && o.Error.Message != "" {
		return o.Error.Message
	}
	if o.Response != nil && o.Response.GenerateVideoResponse != nil {
		if reasons := o.Response.GenerateVideoResponse.RAIMediaFilteredReasons; len(reasons) > 0 {
			return strings.Join(reasons, "; ")
		}
	}
	return ""
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
		Status  string `json:"status,omitempty"`
	} `json:"error"`
}

// APIError is a structured provider error decoded from the standard
// {"error": {...}} envelope.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gemini status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gemini status %d", e.StatusCode)
}

// IsNotFound reports whether err is a 404-class provider error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.Status == "NOT_FOUND")
}

// IsQuotaExhausted reports whether err is a quota or rate-limit provider error.
func IsQuotaExhausted(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED")
}

// NewClient constructs a Gemini video client with sane defaults. Callers may
// provide a nil HTTP client; a reusable one with sensible timeouts will be
// created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	model := opts.Model
	if model == "" {
		model = "veo-3.0-fast-generate-001"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: client,
		logger:     logger,
	}, nil
}

// Model returns the configured generation model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// StartVideoGeneration submits one generation request and returns the
// initial operation snapshot. Capture Name before doing anything else with
// the result; it is the only durable handle for subsequent polls.
func (c *Client) StartVideoGeneration(ctx context.Context, req VideoGenerationRequest) (*Operation, error) {
	if !c.HasCredential() {
		return nil, errors.New("genai: api key not configured")
	}

	sampleCount := req.SampleCount
	if sampleCount <= 0 {
		sampleCount = 1
	}
	payload := predictLongRunningRequest{
		Instances: []videoInstance{{Prompt: req.Prompt}},
		Parameters: &videoParameters{
			SampleCount: sampleCount,
			Resolution:  req.Resolution,
			AspectRatio: req.AspectRatio,
		},
	}
	if req.ImageBase64 != "" {
		payload.Instances[0].Image = &inlineImage{
			BytesBase64Encoded: req.ImageBase64,
			MimeType:           req.ImageMIME,
		}
	}

	var op Operation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.model))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &op); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("operation", op.Name).
		Str("model", c.model).
		Str("aspect_ratio", req.AspectRatio).
		Msg("genai: video generation submitted")

	return &op, nil
}

// GetOperation fetches a fresh snapshot of the operation identified by name.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("genai: operation name required")
	}
	var op Operation
	if err := c.invoke(ctx, http.MethodGet, "/"+strings.TrimLeft(name, "/"), nil, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// ModelInfo is the subset of model metadata the credential check needs.
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName,omitempty"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods,omitempty"`
}

// SupportsVideoGeneration reports whether the model lists the
// long-running predict method video generation runs on.
func (m *ModelInfo) SupportsVideoGeneration() bool {
	if m == nil {
		return false
	}
	for _, method := range m.SupportedGenerationMethods {
		if method == "predictLongRunning" {
			return true
		}
	}
	return false
}

// GetModel fetches metadata for the configured model. A not-found response
// here means the credential cannot see the model at all.
func (c *Client) GetModel(ctx context.Context) (*ModelInfo, error) {
	var info ModelInfo
	if err := c.invoke(ctx, http.MethodGet, fmt.Sprintf("/models/%s", url.PathEscape(c.model)), nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadVideo fetches the generated video bytes from a locator returned
// inside a finished operation, appending the API credential the way the
// provider's file endpoints require. Returns the bytes and the reported
// content type.
func (c *Client) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, "", errors.New("genai: download uri required")
	}
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if c.apiKey != "" {
		q := req.URL.Query()
		q.Set("key", c.apiKey)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download video: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, "", fmt.Errorf("download video: %w", decodeAPIError(resp))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read video: %w", err)
	}

	c.logger.Debug().
		Int("bytes", len(blob)).
		Msg("genai: downloaded generated video")

	return blob, resp.Header.Get("Content-Type"), nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload, out any) error {
	endpoint := strings.TrimRight(c.baseURL, "/") + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	q := req.URL.Query()
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	req.URL.RawQuery = q.Encode()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, _ := io.ReadAll(resp.Body)
	var envelope geminiErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Status = envelope.Error.Status
		return apiErr
	}
	if len(data) > 0 {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
