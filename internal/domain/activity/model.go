package activity

import (
	"time"

	"github.com/rpggio/flowscribe/internal/events"
)

// ActivityEntry is one row of the pipeline audit trail.
type ActivityEntry struct {
	ID           int64       `json:"id"`
	Seq          uint64      `json:"seq"`
	ActivityType events.Type `json:"type"`
	SessionID    *string     `json:"session_id,omitempty"`
	FlowID       *string     `json:"flow_id,omitempty"`
	ScriptID     *string     `json:"script_id,omitempty"`
	Summary      string      `json:"summary"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}
