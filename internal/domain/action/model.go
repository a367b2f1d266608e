package action

import (
	"encoding/json"
	"fmt"

	"github.com/rpggio/flowscribe/internal/domain/locator"
)

// Kind is the interaction recorded for an action.
type Kind string

const (
	KindTap       Kind = "tap"
	KindEnterText Kind = "enterText"
	KindSwipe     Kind = "swipe"
	KindWait      Kind = "wait"
	KindAssert    Kind = "assert"
)

// Direction is the direction of a swipe gesture.
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Condition is what an assertion checks about its element.
type Condition string

const (
	ConditionVisible    Condition = "visible"
	ConditionAbsent     Condition = "absent"
	ConditionTextEquals Condition = "textEquals"
)

// Payload carries the data relevant to one kind of action.
// The set of implementations is closed: Tap, EnterText, Swipe, Wait and Assert.
type Payload interface {
	Kind() Kind
	validate() error
}

// Tap presses an element.
type Tap struct{}

// EnterText types Text into an element.
type EnterText struct {
	Text string
}

// Swipe drags across an element.
type Swipe struct {
	Direction Direction
}

// Wait pauses until the next element is available, for at most TimeoutMs.
type Wait struct {
	TimeoutMs int64
}

// Assert verifies the state of an element.
type Assert struct {
	Condition Condition
	Expected  string
}

func (Tap) Kind() Kind       { return KindTap }
func (EnterText) Kind() Kind { return KindEnterText }
func (Swipe) Kind() Kind     { return KindSwipe }
func (Wait) Kind() Kind      { return KindWait }
func (Assert) Kind() Kind    { return KindAssert }

func (Tap) validate() error       { return nil }
func (EnterText) validate() error { return nil }

func (p Swipe) validate() error {
	switch p.Direction {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return nil
	}
	return fmt.Errorf("%w: swipe direction %q", ErrInvalidPayload, p.Direction)
}

func (p Wait) validate() error {
	if p.TimeoutMs <= 0 {
		return fmt.Errorf("%w: wait timeout must be positive, got %dms", ErrInvalidPayload, p.TimeoutMs)
	}
	return nil
}

func (p Assert) validate() error {
	switch p.Condition {
	case ConditionVisible, ConditionAbsent:
		return nil
	case ConditionTextEquals:
		if p.Expected == "" {
			return fmt.Errorf("%w: textEquals needs an expected value", ErrInvalidPayload)
		}
		return nil
	}
	return fmt.Errorf("%w: assert condition %q", ErrInvalidPayload, p.Condition)
}

// DefaultWaitTimeoutMs bounds explicit waits that were recorded without a budget.
const DefaultWaitTimeoutMs int64 = 10000

// Input is an interaction before the session assigns its identity.
type Input struct {
	Locator     locator.ElementLocator
	Payload     Payload
	Description string
}

// Validate checks the locator and payload.
func (in Input) Validate() error {
	if in.Payload == nil {
		return ErrMissingPayload
	}
	if err := in.Locator.Validate(); err != nil {
		return err
	}
	return in.Payload.validate()
}

// RecordedAction is an interaction appended to an action log.
type RecordedAction struct {
	ID          int64
	TimestampMs int64
	Locator     locator.ElementLocator
	Payload     Payload
	FlowID      string
	Description string
}

// Kind returns the kind of the action's payload.
func (a RecordedAction) Kind() Kind {
	if a.Payload == nil {
		return ""
	}
	return a.Payload.Kind()
}

type wireAction struct {
	ID          int64                  `json:"id"`
	TimestampMs int64                  `json:"timestamp_ms"`
	Kind        Kind                   `json:"kind"`
	Locator     locator.ElementLocator `json:"locator"`
	Text        string                 `json:"text,omitempty"`
	Direction   Direction              `json:"direction,omitempty"`
	TimeoutMs   int64                  `json:"timeout_ms,omitempty"`
	Condition   Condition              `json:"condition,omitempty"`
	Expected    string                 `json:"expected,omitempty"`
	FlowID      string                 `json:"flow_id"`
	Description string                 `json:"description,omitempty"`
}

// MarshalJSON flattens the payload next to the action fields.
func (a RecordedAction) MarshalJSON() ([]byte, error) {
	w := wireAction{
		ID:          a.ID,
		TimestampMs: a.TimestampMs,
		Kind:        a.Kind(),
		Locator:     a.Locator,
		FlowID:      a.FlowID,
		Description: a.Description,
	}
	switch p := a.Payload.(type) {
	case EnterText:
		w.Text = p.Text
	case Swipe:
		w.Direction = p.Direction
	case Wait:
		w.TimeoutMs = p.TimeoutMs
	case Assert:
		w.Condition = p.Condition
		w.Expected = p.Expected
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the typed payload from the flat form.
func (a *RecordedAction) UnmarshalJSON(data []byte) error {
	var w wireAction
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := NewPayload(w.Kind, w.Text, w.Direction, w.TimeoutMs, w.Condition, w.Expected)
	if err != nil {
		return err
	}
	*a = RecordedAction{
		ID:          w.ID,
		TimestampMs: w.TimestampMs,
		Locator:     w.Locator,
		Payload:     payload,
		FlowID:      w.FlowID,
		Description: w.Description,
	}
	return nil
}

// NewPayload builds the payload for kind, keeping only the fields that kind uses.
func NewPayload(kind Kind, text string, direction Direction, timeoutMs int64, condition Condition, expected string) (Payload, error) {
	switch kind {
	case KindTap:
		return Tap{}, nil
	case KindEnterText:
		return EnterText{Text: text}, nil
	case KindSwipe:
		return Swipe{Direction: direction}, nil
	case KindWait:
		if timeoutMs == 0 {
			timeoutMs = DefaultWaitTimeoutMs
		}
		return Wait{TimeoutMs: timeoutMs}, nil
	case KindAssert:
		if condition == "" {
			condition = ConditionVisible
		}
		return Assert{Condition: condition, Expected: expected}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
