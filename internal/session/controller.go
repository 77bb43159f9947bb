package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"cleanreel/internal/domain"
	"cleanreel/internal/infra"
	"cleanreel/internal/infra/metrics"
	"cleanreel/internal/providers/video"
	"cleanreel/internal/storage"
)

const (
	uploadFileName    = "upload.mp4"
	resultFilePattern = "clean-%d.mp4"

	defaultTTL    = 60 * time.Minute
	sweepInterval = time.Minute
)

// FrameExtractor pulls a representative still from a video file on
// disk.
type FrameExtractor interface {
	Extract(ctx context.Context, path string) (*domain.ExtractedFrame, error)
}

// Options configures a Controller.
type Options struct {
	Store     *storage.FileStore
	Extractor FrameExtractor
	Generator video.Generator
	TTL       time.Duration
	Logger    *infra.Logger
}

// Controller coordinates uploads, frame extraction and video generation
// across sessions. Each generation attempt runs in the background under
// its own cancellable context, writes to an epoch-scoped key and reports
// its outcome under the epoch it started with. A reset cancels the
// context; anything that still lands late is dropped along with its
// files.
type Controller struct {
	manager   *Manager
	store     *storage.FileStore
	extractor FrameExtractor
	generator video.Generator
	ttl       time.Duration
	logger    infra.Logger

	bgMu sync.Mutex
	bg   context.Context
}

func NewController(opts Options) (*Controller, error) {
	if opts.Store == nil {
		return nil, errors.New("session: file store is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("session: frame extractor is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("session: video generator is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Controller{
		manager:   NewManager(),
		store:     opts.Store,
		extractor: opts.Extractor,
		generator: opts.Generator,
		ttl:       ttl,
		logger:    logger,
	}, nil
}

// Create registers a new idle session.
func (c *Controller) Create() Snapshot {
	s := c.manager.Create(time.Now())
	metrics.ActiveSessions.Set(float64(c.manager.Len()))
	c.logger.Info().Str("session_id", s.id).Msg("session: created")
	return s.Snapshot()
}

// Get returns a snapshot of an existing session.
func (c *Controller) Get(id string) (Snapshot, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	return s.Snapshot(), nil
}

// ActiveSessions reports how many sessions are currently registered.
func (c *Controller) ActiveSessions() int {
	return c.manager.Len()
}

// Analyze spools an uploaded video to storage, extracts its
// representative frame and stores the frame on the session. The spooled
// upload is removed whether extraction succeeds or not. Media types
// other than video/mp4 are rejected before the session changes state.
func (c *Controller) Analyze(ctx context.Context, id, mimeType string, src io.Reader) (Snapshot, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	if !isMP4(mimeType) {
		return Snapshot{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedMedia, mimeType)
	}

	epoch, err := s.beginAnalyze(time.Now())
	if err != nil {
		return Snapshot{}, err
	}

	frame, size, err := c.extractFrame(ctx, s.id, src)
	if err != nil {
		metrics.FrameExtractionsTotal.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Str("session_id", s.id).Msg("session: frame extraction failed")
		_ = s.failAnalyze(epoch, err.Error(), time.Now())
		return Snapshot{}, err
	}

	metrics.FrameExtractionsTotal.WithLabelValues("ok").Inc()
	metrics.UploadBytesTotal.Add(float64(size))
	if err := s.completeAnalyze(epoch, frame, time.Now()); err != nil {
		// A reset raced the extraction; the reset wins and the frame is
		// dropped.
		return s.Snapshot(), nil
	}
	c.logger.Info().
		Str("session_id", s.id).
		Int("width", frame.Width).
		Int("height", frame.Height).
		Msg("session: frame extracted")
	return s.Snapshot(), nil
}

// extractFrame writes the upload into the session's storage directory,
// runs the extractor against it and removes the spooled file on every
// path out.
func (c *Controller) extractFrame(ctx context.Context, id string, src io.Reader) (*domain.ExtractedFrame, int64, error) {
	key := path.Join("sessions", id, uploadFileName)
	savedKey, size, err := c.store.WriteReader(ctx, key, src)
	if err != nil {
		return nil, 0, fmt.Errorf("spool upload: %w", err)
	}
	defer func() {
		if err := c.store.Remove(savedKey); err != nil {
			c.logger.Warn().Err(err).Str("session_id", id).Msg("session: remove spooled upload failed")
		}
	}()

	videoPath, err := c.store.Path(savedKey)
	if err != nil {
		return nil, 0, err
	}
	frame, err := c.extractor.Extract(ctx, videoPath)
	if err != nil {
		return nil, 0, err
	}
	return frame, size, nil
}

// StartGeneration validates the request, moves the session into
// generating and hands the job to a background goroutine. The goroutine
// runs under a per-attempt context that a reset cancels. The returned
// snapshot reflects the generating state.
func (c *Controller) StartGeneration(id, description string) (Snapshot, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctx, cancel := context.WithCancel(c.background())
	epoch, frame, err := s.beginGenerate(description, cancel, time.Now())
	if err != nil {
		cancel()
		return Snapshot{}, err
	}
	c.logger.Info().Str("session_id", s.id).Msg("session: generation started")
	go c.runGeneration(ctx, s, epoch, frame, strings.TrimSpace(description))
	return s.Snapshot(), nil
}

func (c *Controller) runGeneration(ctx context.Context, s *Session, epoch uint64, frame domain.ExtractedFrame, description string) {
	start := time.Now()
	asset, err := c.generator.Generate(ctx, video.GenerateRequest{
		Frame:       frame,
		Description: description,
		AspectRatio: frame.AspectRatio(),
	})
	metrics.VideoGenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Info().Str("session_id", s.id).Msg("session: generation cancelled")
			return
		}
		metrics.VideoGenerationsTotal.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Str("session_id", s.id).Msg("session: generation failed")
		_ = s.failGenerate(epoch, video.UserMessage(err), time.Now())
		return
	}

	savedKey, err := c.store.Write(ctx, resultKey(s.id, epoch), asset.Data)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Info().Str("session_id", s.id).Msg("session: generation cancelled")
			return
		}
		metrics.VideoGenerationsTotal.WithLabelValues("error").Inc()
		c.logger.Error().Err(err).Str("session_id", s.id).Msg("session: store generated video failed")
		_ = s.failGenerate(epoch, "could not store the generated video", time.Now())
		return
	}
	art := &domain.Artifact{
		StorageKey: savedKey,
		MimeType:   asset.MimeType,
		Bytes:      int64(len(asset.Data)),
		CreatedAt:  time.Now(),
	}
	if art.MimeType == "" {
		art.MimeType = "video/mp4"
	}
	if err := s.completeGenerate(epoch, art, time.Now()); err != nil {
		// A reset won the race; drop the orphaned file.
		if rmErr := c.store.Remove(savedKey); rmErr != nil {
			c.logger.Warn().Err(rmErr).Str("session_id", s.id).Msg("session: remove orphaned result failed")
		}
		return
	}
	metrics.VideoGenerationsTotal.WithLabelValues("ok").Inc()
	c.logger.Info().
		Str("session_id", s.id).
		Int("bytes", len(asset.Data)).
		Dur("took", time.Since(start)).
		Msg("session: generation completed")
}

// Frame returns the extracted frame for preview.
func (c *Controller) Frame(id string) (domain.ExtractedFrame, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return domain.ExtractedFrame{}, err
	}
	frame, ok := s.frameCopy(time.Now())
	if !ok {
		return domain.ExtractedFrame{}, domain.ErrNoFrame
	}
	return frame, nil
}

// OpenResult opens the generated video for streaming and describes it.
// The caller closes the returned file.
func (c *Controller) OpenResult(id string) (*os.File, domain.Artifact, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return nil, domain.Artifact{}, err
	}
	art, ok := s.result(time.Now())
	if !ok {
		return nil, domain.Artifact{}, fmt.Errorf("%w: no generated video", domain.ErrNotFound)
	}
	f, err := c.store.Open(art.StorageKey)
	if err != nil {
		return nil, domain.Artifact{}, fmt.Errorf("open result: %w", err)
	}
	return f, art, nil
}

// Reset returns the session to idle, discarding the frame, description
// and stored files. The in-flight generation is cancelled; anything it
// still reports is discarded when it lands.
func (c *Controller) Reset(id string) (Snapshot, error) {
	s, err := c.manager.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	s.reset(time.Now())
	c.removeFiles(s.id)
	c.logger.Info().Str("session_id", s.id).Msg("session: reset")
	return s.Snapshot(), nil
}

// Remove resets a session, deletes its files and drops it from the
// registry.
func (c *Controller) Remove(id string) error {
	s, err := c.manager.Get(id)
	if err != nil {
		return err
	}
	s.reset(time.Now())
	if c.manager.Delete(s.id) {
		metrics.ActiveSessions.Set(float64(c.manager.Len()))
	}
	c.removeFiles(s.id)
	c.logger.Info().Str("session_id", s.id).Msg("session: removed")
	return nil
}

// Run anchors the context used by background generations and evicts
// idle sessions until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	c.bgMu.Lock()
	c.bg = ctx
	c.bgMu.Unlock()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *Controller) sweep(now time.Time) {
	expired := c.manager.expired(now.Add(-c.ttl))
	for _, s := range expired {
		s.reset(now)
		c.removeFiles(s.id)
		c.logger.Info().Str("session_id", s.id).Msg("session: expired")
	}
	if len(expired) > 0 {
		metrics.ActiveSessions.Set(float64(c.manager.Len()))
	}
}

func (c *Controller) background() context.Context {
	c.bgMu.Lock()
	defer c.bgMu.Unlock()
	if c.bg == nil {
		return context.Background()
	}
	return c.bg
}

func (c *Controller) removeFiles(id string) {
	if err := c.store.RemoveAll(path.Join("sessions", id)); err != nil {
		c.logger.Warn().Err(err).Str("session_id", id).Msg("session: remove files failed")
	}
}

// resultKey names a generation attempt's output file. Scoping the key
// by epoch keeps a stale attempt from overwriting or deleting a newer
// attempt's artifact.
func resultKey(id string, epoch uint64) string {
	return path.Join("sessions", id, fmt.Sprintf(resultFilePattern, epoch))
}

func isMP4(mimeType string) bool {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt == "video/mp4"
}
