package locator

import (
	"fmt"
	"strings"
)

// Strategy identifies how an element is re-found during script execution.
type Strategy string

const (
	StrategyStableKey      Strategy = "key"
	StrategySemanticsLabel Strategy = "semanticsLabel"
	StrategyDisplayText    Strategy = "text"
	StrategyElementType    Strategy = "type"
)

// ranking lists strategies most-specific first.
var ranking = []Strategy{
	StrategyStableKey,
	StrategySemanticsLabel,
	StrategyDisplayText,
	StrategyElementType,
}

// Stability returns the points a strategy contributes to flow confidence.
func (s Strategy) Stability() int {
	switch s {
	case StrategyStableKey:
		return 4
	case StrategySemanticsLabel:
		return 3
	case StrategyDisplayText:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	for _, known := range ranking {
		if s == known {
			return true
		}
	}
	return false
}

// ElementLocator describes how a UI element was identified when it was recorded.
type ElementLocator struct {
	ElementID      string `json:"element_id,omitempty"`
	ElementType    string `json:"element_type,omitempty"`
	DisplayText    string `json:"display_text,omitempty"`
	SemanticsLabel string `json:"semantics_label,omitempty"`
	StableKey      string `json:"stable_key,omitempty"`
}

// Selector is a strategy and value pair used in generated code.
type Selector struct {
	Strategy Strategy `json:"strategy"`
	Value    string   `json:"value"`
}

func (s Selector) String() string {
	return fmt.Sprintf("%s:%q", s.Strategy, s.Value)
}

// Validate checks that at least one identifying attribute is present.
func (l ElementLocator) Validate() error {
	if l.value(StrategyDisplayText) == "" &&
		l.value(StrategySemanticsLabel) == "" &&
		l.value(StrategyStableKey) == "" {
		return ErrUnidentifiable
	}
	return nil
}

// Ranked returns every available selector, most stable first.
func (l ElementLocator) Ranked() []Selector {
	var selectors []Selector
	for _, strategy := range ranking {
		if value := l.value(strategy); value != "" {
			selectors = append(selectors, Selector{Strategy: strategy, Value: value})
		}
	}
	return selectors
}

// Best returns the most stable available selector.
func (l ElementLocator) Best() Selector {
	selectors := l.Ranked()
	if len(selectors) == 0 {
		return Selector{Strategy: StrategyElementType}
	}
	return selectors[0]
}

// Stability returns the points of the best available strategy.
func (l ElementLocator) Stability() int {
	return l.Best().Strategy.Stability()
}

// HighStability reports whether the locator resolves by key or semantics label.
func (l ElementLocator) HighStability() bool {
	switch l.Best().Strategy {
	case StrategyStableKey, StrategySemanticsLabel:
		return true
	}
	return false
}

// Matches reports whether the selector re-identifies this element.
func (l ElementLocator) Matches(sel Selector) bool {
	return sel.Value != "" && l.value(sel.Strategy) == sel.Value
}

// value returns the trimmed attribute behind strategy; blank means absent.
func (l ElementLocator) value(strategy Strategy) string {
	var v string
	switch strategy {
	case StrategyStableKey:
		v = l.StableKey
	case StrategySemanticsLabel:
		v = l.SemanticsLabel
	case StrategyDisplayText:
		v = l.DisplayText
	case StrategyElementType:
		v = l.ElementType
	}
	return strings.TrimSpace(v)
}

// Parse builds a locator from the shorthand "strategy:value", e.g. key:signup_btn.
// Surrounding double quotes on the value are removed.
func Parse(s string) (ElementLocator, error) {
	strategy, value, ok := strings.Cut(s, ":")
	if !ok {
		return ElementLocator{}, fmt.Errorf("%w: %q", ErrInvalidShorthand, s)
	}
	value = strings.TrimSpace(value)
	if len(value) >= 2 && strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`) {
		value = value[1 : len(value)-1]
	}
	if value == "" {
		return ElementLocator{}, fmt.Errorf("%w: %q", ErrInvalidShorthand, s)
	}

	var loc ElementLocator
	switch Strategy(strings.TrimSpace(strategy)) {
	case StrategyStableKey:
		loc.StableKey = value
	case StrategySemanticsLabel:
		loc.SemanticsLabel = value
	case StrategyDisplayText:
		loc.DisplayText = value
	case StrategyElementType:
		// A bare type cannot identify an element on its own.
		return ElementLocator{}, ErrUnidentifiable
	default:
		return ElementLocator{}, fmt.Errorf("%w: unknown strategy %q", ErrInvalidShorthand, strategy)
	}
	return loc, nil
}
