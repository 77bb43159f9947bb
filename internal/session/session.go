package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"cleanreel/internal/domain"
)

// State enumerates session lifecycle states.
type State string

const (
	StateIdle       State = "idle"
	StateAnalyzing  State = "analyzing"
	StateGenerating State = "generating"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// errStaleEpoch marks a completion that arrived after the session was
// reset. The result it carries must be discarded.
var errStaleEpoch = errors.New("stale session epoch")

// Session tracks a single upload-analyze-generate cycle. All mutation
// goes through its methods; long-running work happens outside the lock
// and reports back with the epoch it started under. A reset cancels the
// attempt's context and bumps the epoch, so outcomes from before the
// reset never land.
type Session struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	state       State
	epoch       uint64
	frame       *domain.ExtractedFrame
	description string
	artifact    *domain.Artifact
	userError   string
	// cancel aborts the in-flight generation attempt; nil when none is
	// running.
	cancel     context.CancelFunc
	lastActive time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:         id,
		createdAt:  now,
		state:      StateIdle,
		lastActive: now,
	}
}

// Snapshot is a point-in-time copy of session state, safe to hand to
// response encoders.
type Snapshot struct {
	ID           string
	State        State
	HasFrame     bool
	FrameWidth   int
	FrameHeight  int
	AspectRatio  domain.AspectRatio
	Description  string
	Error        string
	ResultReady  bool
	ResultBytes  int64
	CreatedAt    time.Time
	LastActiveAt time.Time
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:           s.id,
		State:        s.state,
		Description:  s.description,
		Error:        s.userError,
		CreatedAt:    s.createdAt,
		LastActiveAt: s.lastActive,
	}
	if s.state == StateCompleted && s.artifact != nil {
		snap.ResultReady = true
		snap.ResultBytes = s.artifact.Bytes
	}
	if s.frame != nil {
		snap.HasFrame = true
		snap.FrameWidth = s.frame.Width
		snap.FrameHeight = s.frame.Height
		snap.AspectRatio = s.frame.AspectRatio()
	}
	return snap
}

// beginAnalyze moves the session into analyzing and invalidates the
// previous frame and result. A new upload may start whenever no other
// work is in flight.
func (s *Session) beginAnalyze(now time.Time) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing || s.state == StateGenerating {
		return 0, domain.ErrSessionBusy
	}
	s.state = StateAnalyzing
	s.frame = nil
	s.artifact = nil
	s.userError = ""
	s.lastActive = now
	return s.epoch, nil
}

func (s *Session) completeAnalyze(epoch uint64, frame *domain.ExtractedFrame, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return errStaleEpoch
	}
	s.state = StateIdle
	s.frame = frame
	s.lastActive = now
	return nil
}

func (s *Session) failAnalyze(epoch uint64, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return errStaleEpoch
	}
	s.state = StateError
	s.frame = nil
	s.userError = message
	s.lastActive = now
	return nil
}

// beginGenerate moves the session into generating. It requires an
// extracted frame and a non-empty description and returns a copy of the
// frame for the background job. The cancel func is stored alongside the
// state change so a reset can abort the attempt; it is invoked and
// cleared when the attempt reports back under a matching epoch.
func (s *Session) beginGenerate(description string, cancel context.CancelFunc, now time.Time) (uint64, domain.ExtractedFrame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAnalyzing || s.state == StateGenerating {
		return 0, domain.ExtractedFrame{}, domain.ErrSessionBusy
	}
	if s.frame == nil {
		return 0, domain.ExtractedFrame{}, domain.ErrNoFrame
	}
	desc := strings.TrimSpace(description)
	if desc == "" {
		return 0, domain.ExtractedFrame{}, domain.ErrEmptyDescription
	}
	s.state = StateGenerating
	s.description = desc
	s.artifact = nil
	s.userError = ""
	s.cancel = cancel
	s.lastActive = now
	return s.epoch, *s.frame, nil
}

func (s *Session) completeGenerate(epoch uint64, art *domain.Artifact, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return errStaleEpoch
	}
	s.releaseAttempt()
	s.state = StateCompleted
	s.artifact = art
	s.lastActive = now
	return nil
}

func (s *Session) failGenerate(epoch uint64, message string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch {
		return errStaleEpoch
	}
	s.releaseAttempt()
	s.state = StateError
	s.userError = message
	s.lastActive = now
	return nil
}

// reset returns the session to idle unconditionally, discarding the
// frame, description, result and error. The in-flight attempt's context
// is cancelled and the epoch bump discards anything it still reports.
func (s *Session) reset(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseAttempt()
	s.epoch++
	s.state = StateIdle
	s.frame = nil
	s.description = ""
	s.artifact = nil
	s.userError = ""
	s.lastActive = now
}

// releaseAttempt cancels the per-attempt context, if any. Call with s.mu
// held.
func (s *Session) releaseAttempt() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// frameCopy returns the extracted frame, if any.
func (s *Session) frameCopy(now time.Time) (domain.ExtractedFrame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return domain.ExtractedFrame{}, false
	}
	s.lastActive = now
	return *s.frame, true
}

// result reports the stored artifact once generation has completed.
func (s *Session) result(now time.Time) (domain.Artifact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCompleted || s.artifact == nil {
		return domain.Artifact{}, false
	}
	s.lastActive = now
	return *s.artifact, true
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}
