package session

import (
	"sync"
	"time"

	"github.com/rpggio/flowscribe/internal/domain/action"
)

// State represents the lifecycle state of a recording session
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// StopReason records who ended a recording
type StopReason string

const (
	ReasonUser    StopReason = "user"
	ReasonTimeout StopReason = "timeout"
)

// Session is one capture. Its mutex serialises every writer of its log.
type Session struct {
	mu sync.Mutex

	id        string
	flowID    string
	state     State
	startedAt time.Time
	stoppedAt *time.Time
	reason    StopReason
	log       *action.Log
	timer     *time.Timer

	// archived sessions keep their identity and outcome but not their actions.
	archived    bool
	actionCount int
}

// Info is a read-only snapshot of a session
type Info struct {
	ID          string        `json:"session_id"`
	FlowID      string        `json:"flow_id"`
	State       State         `json:"state"`
	StartedAt   time.Time     `json:"started_at"`
	StoppedAt   *time.Time    `json:"stopped_at,omitempty"`
	StopReason  StopReason    `json:"stop_reason,omitempty"`
	ActionCount int           `json:"action_count"`
	Elapsed     time.Duration `json:"elapsed"`
	Archived    bool          `json:"archived,omitempty"`
}

// info must be called with s.mu held.
func (s *Session) info(now time.Time) Info {
	elapsed := now.Sub(s.startedAt)
	if s.stoppedAt != nil {
		elapsed = s.stoppedAt.Sub(s.startedAt)
	}
	count := s.log.Len()
	if s.archived {
		count = s.actionCount
	}
	return Info{
		ID:          s.id,
		FlowID:      s.flowID,
		State:       s.state,
		StartedAt:   s.startedAt,
		StoppedAt:   s.stoppedAt,
		StopReason:  s.reason,
		ActionCount: count,
		Elapsed:     max(elapsed, 0),
		Archived:    s.archived,
	}
}
