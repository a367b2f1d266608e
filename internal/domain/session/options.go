package session

import "time"

// DefaultRecentActions is the size of the recent-actions ring when none is configured.
const DefaultRecentActions = 10

// Options configures a session Service.
type Options struct {
	// MaxDuration stops a recording on the system's behalf once exceeded. Zero disables it.
	MaxDuration time.Duration
	// RecentActions bounds the ring returned by Recent.
	RecentActions int
	// Now overrides the clock used for timestamps.
	Now func() time.Time
}
