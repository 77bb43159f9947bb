package frame

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cleanreel/internal/domain"
	"cleanreel/internal/infra"
)

const (
	// maxFrameEdge bounds the longer side of the extracted frame to keep the
	// payload small enough for the generation API.
	maxFrameEdge = 1024
	// jpegQScale approximates an 85% quality JPEG (MJPEG qscale 2 is ~95%).
	jpegQScale = 4

	defaultTimeout = 15 * time.Second
	frameMimeType  = "image/jpeg"
)

// Options configures the Extractor. Zero values fall back to PATH lookups of
// the stock binaries and the default timeout.
type Options struct {
	FFmpegPath  string
	FFprobePath string
	Timeout     time.Duration
	Logger      *infra.Logger
}

// Extractor samples one representative frame from a video file by driving
// ffprobe and ffmpeg as subprocesses.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	timeout     time.Duration
	logger      *infra.Logger

	lookPath   func(string) (string, error)
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewExtractor constructs an Extractor with sane defaults.
func NewExtractor(opts Options) *Extractor {
	ffmpegPath := opts.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := opts.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Extractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		timeout:     timeout,
		logger:      logger,
		lookPath:    exec.LookPath,
		runCommand:  runExec,
	}
}

// Extract produces exactly one ExtractedFrame from the video at path, or a
// descriptive error. Probe and decode together are bounded by the configured
// timeout; expiry kills the subprocesses and releases the timer on every
// exit path.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.ExtractedFrame, error) {
	if _, err := e.lookPath(e.ffprobePath); err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrNoDecoder, e.ffprobePath)
	}
	if _, err := e.lookPath(e.ffmpegPath); err != nil {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrNoDecoder, e.ffmpegPath)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	meta, err := e.probe(ctx, path)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, e.deadlineError("reading video metadata", cerr)
		}
		return nil, fmt.Errorf("probe video: %w", err)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, domain.ErrZeroDimensions
	}

	width, height := TargetDimensions(meta.Width, meta.Height)
	seek := SeekPoint(meta.Duration)

	jpeg, err := e.decodeFrame(ctx, path, seek, width, height)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, e.deadlineError("decoding video frame", cerr)
		}
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(jpeg) == 0 {
		return nil, errors.New("decode frame: empty output")
	}

	e.logger.Debug().
		Int("source_width", meta.Width).
		Int("source_height", meta.Height).
		Int("width", width).
		Int("height", height).
		Float64("seek_seconds", seek).
		Msg("frame: extracted video frame")

	return &domain.ExtractedFrame{
		Payload:  base64.StdEncoding.EncodeToString(jpeg),
		MimeType: frameMimeType,
		Width:    width,
		Height:   height,
	}, nil
}

func (e *Extractor) deadlineError(stage string, cerr error) error {
	if errors.Is(cerr, context.DeadlineExceeded) {
		return fmt.Errorf("timed out %s after %s", stage, e.timeout)
	}
	return cerr
}

type probeResult struct {
	Width    int
	Height   int
	Duration float64
}

type ffprobeOutput struct {
	Streams []struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (e *Extractor) probe(ctx context.Context, path string) (probeResult, error) {
	out, err := e.runCommand(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return probeResult{}, err
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (probeResult, error) {
	var decoded ffprobeOutput
	if err := json.Unmarshal(out, &decoded); err != nil {
		return probeResult{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(decoded.Streams) == 0 {
		return probeResult{}, errors.New("no video stream found")
	}
	res := probeResult{
		Width:  decoded.Streams[0].Width,
		Height: decoded.Streams[0].Height,
	}
	// ffprobe reports "N/A" for some containers; treat as unknown.
	if d, err := strconv.ParseFloat(strings.TrimSpace(decoded.Format.Duration), 64); err == nil {
		res.Duration = d
	}
	return res, nil
}

func (e *Extractor) decodeFrame(ctx context.Context, path string, seek float64, width, height int) ([]byte, error) {
	return e.runCommand(ctx, e.ffmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", strconv.Itoa(jpegQScale),
		"pipe:1",
	)
}

// TargetDimensions downscales proportionally so the longer side equals
// maxFrameEdge, floor rounding; inputs already within the bound pass through
// unchanged.
func TargetDimensions(width, height int) (int, int) {
	if width <= maxFrameEdge && height <= maxFrameEdge {
		return width, height
	}
	if width >= height {
		h := height * maxFrameEdge / width
		if h < 1 {
			h = 1
		}
		return maxFrameEdge, h
	}
	w := width * maxFrameEdge / height
	if w < 1 {
		w = 1
	}
	return w, maxFrameEdge
}

// SeekPoint picks a timestamp clear of a black leading frame while
// tolerating very short clips: min(0.1s, half the duration). Unknown
// durations seek the first frame.
func SeekPoint(duration float64) float64 {
	const preferred = 0.1
	if duration <= 0 {
		return 0
	}
	if half := duration / 2; half < preferred {
		return half
	}
	return preferred
}

func runExec(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}
