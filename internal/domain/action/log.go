package action

// Log is the ordered record of one session's actions.
// It has a single writer, the owning session, which serialises access.
type Log struct {
	actions []RecordedAction
	frozen  bool
}

// NewLog returns an empty, writable log.
func NewLog() *Log {
	return &Log{}
}

// FrozenLog returns a read-only log holding a copy of actions.
func FrozenLog(actions []RecordedAction) Log {
	return Log{actions: cloneActions(actions), frozen: true}
}

// Append adds an action at the end of the log.
func (l *Log) Append(a RecordedAction) error {
	if l.frozen {
		return ErrLogFrozen
	}
	l.actions = append(l.actions, a)
	return nil
}

// Freeze stops further appends.
func (l *Log) Freeze() {
	l.frozen = true
}

// Frozen reports whether the log accepts appends.
func (l Log) Frozen() bool {
	return l.frozen
}

// Len returns the number of actions.
func (l Log) Len() int {
	return len(l.actions)
}

// Actions returns a copy of the actions in replay order.
func (l Log) Actions() []RecordedAction {
	return cloneActions(l.actions)
}

// Snapshot returns a frozen copy that shares nothing with l.
func (l Log) Snapshot() Log {
	return FrozenLog(l.actions)
}

func cloneActions(actions []RecordedAction) []RecordedAction {
	if actions == nil {
		return []RecordedAction{}
	}
	out := make([]RecordedAction, len(actions))
	copy(out, actions)
	return out
}
