package flow

import "github.com/rpggio/flowscribe/internal/domain/action"

// UsabilityThreshold is the confidence a flow needs before its scripts are worth running.
const UsabilityThreshold = 50

const (
	locatorWeight       = 70
	maxStability        = 4
	terminalAssertBonus = 20
	assertCoverageStep  = 5
	assertCoverageCap   = 2
)

// Assessment records the structural signals behind a confidence score.
type Assessment struct {
	Actions          int  `json:"actions"`
	HighStability    int  `json:"high_stability"`
	StabilityPoints  int  `json:"stability_points"`
	Assertions       int  `json:"assertions"`
	TerminalAssert   bool `json:"terminal_assert"`
	LocatorScore     int  `json:"locator_score"`
	AssertionScore   int  `json:"assertion_score"`
	Confidence       int  `json:"confidence"`
	CappedShortTrace bool `json:"capped_short_trace,omitempty"`
}

// Usable reports whether the score clears UsabilityThreshold.
func (a Assessment) Usable() bool {
	return a.Confidence >= UsabilityThreshold
}

// Score computes confidence from locator stability and assertions.
//
// The locator part averages the stability of every non-assert action, so
// making a locator more stable never lowers it and dropping an assertion
// never changes it. The assertion part rewards a closing assert and up to
// two assertions overall. Logs of one action or fewer stay below
// UsabilityThreshold.
func Score(actions []action.RecordedAction) Assessment {
	a := Assessment{Actions: len(actions)}
	if len(actions) == 0 {
		return a
	}

	interactions := 0
	for _, act := range actions {
		if act.Locator.HighStability() {
			a.HighStability++
		}
		if act.Kind() == action.KindAssert {
			a.Assertions++
			continue
		}
		interactions++
		a.StabilityPoints += act.Locator.Stability()
	}

	if interactions > 0 {
		a.LocatorScore = locatorWeight * a.StabilityPoints / (maxStability * interactions)
	}

	a.TerminalAssert = actions[len(actions)-1].Kind() == action.KindAssert
	if a.TerminalAssert {
		a.AssertionScore += terminalAssertBonus
	}
	a.AssertionScore += assertCoverageStep * min(a.Assertions, assertCoverageCap)

	a.Confidence = min(max(a.LocatorScore+a.AssertionScore, 0), 100)
	if len(actions) <= 1 && a.Confidence >= UsabilityThreshold {
		a.Confidence = UsabilityThreshold - 1
		a.CappedShortTrace = true
	}
	return a
}
