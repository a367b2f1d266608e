package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/events"
)

// TimeoutHandler is invoked after the system stops a session that ran past its maximum duration.
type TimeoutHandler func(ctx context.Context, info Info, log action.Log)

// Service coordinates recording sessions.
//
// Admission is decided under a single service lock so at most one session
// records at a time. Appends and stops lock only the session they touch.
// When both locks are needed the session lock is taken first.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*Session
	active   string

	actionSeq atomic.Int64

	clockMu sync.Mutex
	lastTs  int64

	recentMu sync.Mutex
	recent   []action.RecordedAction
	recentN  int

	handlerMu sync.RWMutex
	onTimeout TimeoutHandler

	maxDuration time.Duration
	publisher   events.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new session service.
func NewService(opts Options, publisher events.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.RecentActions <= 0 {
		opts.RecentActions = DefaultRecentActions
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sessions:    make(map[string]*Session),
		recentN:     opts.RecentActions,
		maxDuration: opts.MaxDuration,
		publisher:   publisher,
		logger:      logger,
		now:         opts.Now,
	}
}

// SetTimeoutHandler registers the callback run after a system-initiated stop.
func (s *Service) SetTimeoutHandler(h TimeoutHandler) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.onTimeout = h
}

// Start opens a recording session for flowID.
func (s *Service) Start(ctx context.Context, flowID string) (Info, error) {
	flowID = strings.TrimSpace(flowID)
	if flowID == "" {
		return Info{}, ErrInvalidInput
	}

	sess := &Session{
		id:     uuid.NewString(),
		flowID: flowID,
		state:  StateIdle,
		log:    action.NewLog(),
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	s.mu.Lock()
	if s.active != "" {
		active := s.active
		s.mu.Unlock()
		return Info{}, fmt.Errorf("%w: session %s is recording", domain.ErrConflict, active)
	}
	sess.startedAt = s.now()
	sess.state = StateRecording
	s.sessions[sess.id] = sess
	s.active = sess.id
	s.mu.Unlock()

	if s.maxDuration > 0 {
		id := sess.id
		sess.timer = time.AfterFunc(s.maxDuration, func() { s.expire(id) })
	}
	info := sess.info(s.now())

	s.logger.Info("recording started", "session_id", sess.id, "flow_id", flowID)
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:      events.TypeSessionStarted,
		SessionID: sess.id,
		FlowID:    flowID,
	})
	return info, nil
}

// Append records an interaction in a recording session.
func (s *Service) Append(ctx context.Context, sessionID string, in action.Input) (action.RecordedAction, error) {
	if err := in.Validate(); err != nil {
		return action.RecordedAction{}, err
	}
	sess, err := s.lookup(sessionID)
	if err != nil {
		return action.RecordedAction{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateRecording {
		return action.RecordedAction{}, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sessionID, sess.state)
	}

	rec := action.RecordedAction{
		ID:          s.actionSeq.Add(1),
		TimestampMs: s.timestamp(),
		Locator:     in.Locator,
		Payload:     in.Payload,
		FlowID:      sess.flowID,
		Description: in.Description,
	}
	if err := sess.log.Append(rec); err != nil {
		return action.RecordedAction{}, fmt.Errorf("%w: %v", domain.ErrInvalidState, err)
	}
	s.remember(rec)

	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:      events.TypeActionAppended,
		SessionID: sessionID,
		FlowID:    sess.flowID,
		Data: map[string]any{
			"action_id": rec.ID,
			"kind":      string(rec.Kind()),
			"locator":   rec.Locator.Best().String(),
		},
	})
	return rec, nil
}

// Stop ends a recording at the user's request and returns the frozen log.
func (s *Service) Stop(ctx context.Context, sessionID string) (action.Log, error) {
	log, _, err := s.stop(ctx, sessionID, ReasonUser)
	return log, err
}

// Timeout ends a recording on the system's behalf. It behaves like Stop but
// records the timeout reason and then runs the registered timeout handler.
func (s *Service) Timeout(ctx context.Context, sessionID string) (action.Log, error) {
	log, info, err := s.stop(ctx, sessionID, ReasonTimeout)
	if err != nil {
		return log, err
	}

	s.handlerMu.RLock()
	h := s.onTimeout
	s.handlerMu.RUnlock()
	if h != nil {
		h(ctx, info, log)
	}
	return log, nil
}

func (s *Service) stop(ctx context.Context, sessionID string, reason StopReason) (action.Log, Info, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return action.Log{}, Info{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateRecording {
		return action.Log{}, Info{}, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sessionID, sess.state)
	}

	now := s.now()
	sess.state = StateStopped
	sess.stoppedAt = &now
	sess.reason = reason
	sess.log.Freeze()
	if sess.timer != nil {
		sess.timer.Stop()
	}

	s.mu.Lock()
	if s.active == sessionID {
		s.active = ""
	}
	s.mu.Unlock()

	log := sess.log.Snapshot()
	info := sess.info(now)

	s.logger.Info("recording stopped", "session_id", sessionID, "reason", reason, "actions", log.Len())
	events.Notify(ctx, s.publisher, s.logger, events.Event{
		Type:      events.TypeSessionStopped,
		SessionID: sessionID,
		FlowID:    sess.flowID,
		Data: map[string]any{
			"reason":  string(reason),
			"actions": log.Len(),
		},
	})
	return log, info, nil
}

func (s *Service) expire(sessionID string) {
	if _, err := s.Timeout(context.Background(), sessionID); err != nil {
		if errors.Is(err, domain.ErrInvalidState) || errors.Is(err, ErrSessionNotFound) {
			s.logger.Debug("timeout after stop ignored", "session_id", sessionID)
			return
		}
		s.logger.Error("session timeout failed", "session_id", sessionID, "error", err)
	}
}

// Get returns a snapshot of a session.
func (s *Service) Get(sessionID string) (Info, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return Info{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.info(s.now()), nil
}

// Log returns a frozen copy of a session's actions so far. Archived sessions
// no longer hold their actions.
func (s *Service) Log(sessionID string) (action.Log, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return action.Log{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.archived {
		return action.Log{}, fmt.Errorf("%w: session %s is archived", domain.ErrInvalidState, sessionID)
	}
	return sess.log.Snapshot(), nil
}

// Active returns the recording session, if any.
func (s *Service) Active() (Info, bool) {
	s.mu.Lock()
	id := s.active
	s.mu.Unlock()
	if id == "" {
		return Info{}, false
	}
	info, err := s.Get(id)
	if err != nil || info.State != StateRecording {
		return Info{}, false
	}
	return info, true
}

// Archive drops a stopped session's actions once its flow has been classified.
// The session stays addressable as stopped so late appends and stops still
// fail with domain.ErrInvalidState.
func (s *Service) Archive(sessionID string) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.state != StateStopped {
		return fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sessionID, sess.state)
	}
	if sess.archived {
		return nil
	}

	sess.actionCount = sess.log.Len()
	sess.log = action.NewLog()
	sess.log.Freeze()
	sess.archived = true
	return nil
}

// Recent returns up to n of the most recently appended actions across sessions, oldest first.
func (s *Service) Recent(n int) []action.RecordedAction {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	if n <= 0 || n > len(s.recent) {
		n = len(s.recent)
	}
	out := make([]action.RecordedAction, n)
	copy(out, s.recent[len(s.recent)-n:])
	return out
}

func (s *Service) lookup(sessionID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// timestamp returns wall-clock milliseconds that never go backwards.
func (s *Service) timestamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	ts := max(s.now().UnixMilli(), s.lastTs)
	s.lastTs = ts
	return ts
}

func (s *Service) remember(rec action.RecordedAction) {
	s.recentMu.Lock()
	defer s.recentMu.Unlock()
	s.recent = append(s.recent, rec)
	if over := len(s.recent) - s.recentN; over > 0 {
		s.recent = append(s.recent[:0], s.recent[over:]...)
	}
}
