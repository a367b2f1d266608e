package flow

import (
	"time"

	"github.com/rpggio/flowscribe/internal/domain/action"
)

// Status represents the recording lifecycle of a flow
type Status string

const (
	StatusPending   Status = "pending"
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
)

// Flow is a named user scenario and the actions last recorded for it
type Flow struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Description  string                  `json:"description,omitempty"`
	Actions      []action.RecordedAction `json:"actions"`
	Status       Status                  `json:"status"`
	Confidence   int                     `json:"confidence"`
	Assessment   *Assessment             `json:"assessment,omitempty"`
	SessionID    string                  `json:"session_id,omitempty"`
	ClassifiedAt *time.Time              `json:"classified_at,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

// Summary is a lightweight representation for listing
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
	Confidence  int    `json:"confidence"`
	ActionCount int    `json:"action_count"`
}

// Summarize returns the listing form of f.
func (f Flow) Summarize() Summary {
	return Summary{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Status:      f.Status,
		Confidence:  f.Confidence,
		ActionCount: len(f.Actions),
	}
}

// Catalog is the set of flows a fresh workspace starts with.
var Catalog = []CreateRequest{
	{ID: "registration", Name: "User Registration", Description: "Complete user signup and profile setup"},
	{ID: "messaging", Name: "Send Messages", Description: "Send and receive text messages"},
	{ID: "group-messaging", Name: "Group Messages", Description: "Create groups and send group messages"},
	{ID: "voice-call", Name: "1-to-1 Voice Call", Description: "Initiate and manage voice calls"},
	{ID: "video-call", Name: "1-to-1 Video Call", Description: "Start and control video calls"},
	{ID: "group-call", Name: "Group Calls", Description: "Multi-participant video conferences"},
}
