package activity

import "github.com/rpggio/flowscribe/internal/events"

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	FlowID       *string
	SessionID    *string
	ScriptID     *string
	ActivityType *events.Type
	Limit        int
	Offset       int
}
