package pipeline_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rpggio/flowscribe/internal/domain"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/domain/session"
	"github.com/rpggio/flowscribe/internal/domain/validation"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/pipeline"
	"github.com/rpggio/flowscribe/internal/sqlite"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	studio   *pipeline.Studio
	bus      *events.Bus
	activity *activity.Service
}

func newFixture(t *testing.T, opts session.Options, timeouts pipeline.Timeouts, check validation.Checker) fixture {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations())
	t.Cleanup(func() { db.Close() })

	bus := events.NewBus(256, nil)
	audit := activity.NewService(sqlite.NewActivityRepository(db), nil)
	bus.Handle(audit.Record)
	t.Cleanup(bus.Close)

	lib := script.NewLibrary()
	studio := pipeline.New(
		session.NewService(opts, bus, nil),
		flow.NewService(sqlite.NewFlowRepository(db), bus, nil),
		script.NewService(lib, nil, bus, nil),
		validation.NewService(lib, check, bus, nil),
		timeouts,
		nil,
	)
	return fixture{studio: studio, bus: bus, activity: audit}
}

func signupInputs() []action.Input {
	return []action.Input{
		{Locator: locator.ElementLocator{StableKey: "signup_btn", ElementType: "ElevatedButton"}, Payload: action.Tap{}},
		{Locator: locator.ElementLocator{SemanticsLabel: "Email Address", ElementType: "TextFormField"}, Payload: action.EnterText{Text: "a@b.com"}},
		{Locator: locator.ElementLocator{DisplayText: "Create Account", ElementType: "Text"}, Payload: action.Tap{}},
	}
}

func activityTypes(entries []activity.ActivityEntry) []events.Type {
	out := make([]events.Type, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i].ActivityType)
	}
	return out
}

func TestStudio_SignupScenario(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	info, err := fx.studio.StartRecording(ctx, "signup")
	require.NoError(t, err)
	for _, in := range signupInputs() {
		_, err := fx.studio.Record(ctx, info.ID, in)
		require.NoError(t, err)
	}

	f, err := fx.studio.StopRecording(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, f.Status)
	require.Equal(t, 46, f.Confidence)
	require.Len(t, f.Actions, 3)
	require.Equal(t, info.ID, f.SessionID)

	stopped, err := fx.studio.Sessions().Get(info.ID)
	require.NoError(t, err)
	require.Equal(t, session.StateStopped, stopped.State)
	require.True(t, stopped.Archived)

	out, err := fx.studio.Synthesize(ctx, "signup", []script.Language{script.Java, script.Python})
	require.NoError(t, err)
	require.Empty(t, out.Failures)
	require.Len(t, out.Artifacts, 2)
	for _, a := range out.Artifacts {
		require.Equal(t, 46, a.Confidence)
		require.Equal(t, script.StateUnvalidated, a.Validation)
		require.False(t, a.DeviceReady)
	}

	validated, err := fx.studio.Validate(ctx, out.Artifacts[0].ID)
	require.NoError(t, err)
	require.Equal(t, script.StateValidated, validated.Validation)
	require.True(t, validated.DeviceReady)
	require.Equal(t, 46, validated.Confidence)

	fx.bus.Close()
	entries, err := fx.activity.GetRecentActivity(ctx, activity.ListActivityOptions{})
	require.NoError(t, err)
	require.Equal(t, []events.Type{
		events.TypeSessionStarted,
		events.TypeActionAppended,
		events.TypeActionAppended,
		events.TypeActionAppended,
		events.TypeSessionStopped,
		events.TypeFlowClassified,
		events.TypeScriptSynthesized,
		events.TypeScriptSynthesized,
		events.TypeValidationStarted,
		events.TypeValidationResolved,
	}, activityTypes(entries))
	for i := 1; i < len(entries); i++ {
		require.Greater(t, entries[i-1].Seq, entries[i].Seq)
	}
}

func TestStudio_StartWhileRecordingConflicts(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	first, err := fx.studio.StartRecording(ctx, "messaging")
	require.NoError(t, err)

	_, err = fx.studio.StartRecording(ctx, "video-call")
	require.ErrorIs(t, err, domain.ErrConflict)

	active, ok := fx.studio.Sessions().Active()
	require.True(t, ok)
	require.Equal(t, first.ID, active.ID)

	_, err = fx.studio.StopRecording(ctx, first.ID)
	require.NoError(t, err)
	_, err = fx.studio.StartRecording(ctx, "video-call")
	require.NoError(t, err)
}

func TestStudio_AppendAfterStopIsInvalidState(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	info, err := fx.studio.StartRecording(ctx, "login")
	require.NoError(t, err)
	_, err = fx.studio.Record(ctx, info.ID, signupInputs()[0])
	require.NoError(t, err)
	f, err := fx.studio.StopRecording(ctx, info.ID)
	require.NoError(t, err)

	_, err = fx.studio.Record(ctx, info.ID, signupInputs()[1])
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = fx.studio.StopRecording(ctx, info.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = fx.studio.Classify(ctx, info.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	got, err := fx.studio.Flows().Get(ctx, "login")
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)
	require.Equal(t, f.Confidence, got.Confidence)
}

func TestStudio_StaleSessionCannotClassify(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	old, err := fx.studio.StartRecording(ctx, "messaging")
	require.NoError(t, err)
	_, err = fx.studio.Record(ctx, old.ID, signupInputs()[2])
	require.NoError(t, err)
	_, err = fx.studio.Sessions().Stop(ctx, old.ID)
	require.NoError(t, err)

	current, err := fx.studio.StartRecording(ctx, "messaging")
	require.NoError(t, err)
	for _, in := range signupInputs() {
		_, err := fx.studio.Record(ctx, current.ID, in)
		require.NoError(t, err)
	}

	_, err = fx.studio.Classify(ctx, old.ID)
	require.ErrorIs(t, err, domain.ErrInvalidState)

	f, err := fx.studio.StopRecording(ctx, current.ID)
	require.NoError(t, err)
	require.Equal(t, current.ID, f.SessionID)
	require.Len(t, f.Actions, 3)
	require.Equal(t, 46, f.Confidence)
}

func TestStudio_RerecordingReplacesConfidence(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	f, err := fx.studio.Capture(ctx, "signup", signupInputs())
	require.NoError(t, err)
	require.Equal(t, 46, f.Confidence)

	inputs := append(signupInputs(), action.Input{
		Locator: locator.ElementLocator{DisplayText: "Welcome"},
		Payload: action.Assert{Condition: action.ConditionVisible},
	})
	f, err = fx.studio.Capture(ctx, "signup", inputs)
	require.NoError(t, err)
	require.Equal(t, 71, f.Confidence)
	require.Len(t, f.Actions, 4)
}

func TestStudio_TimeoutClassifiesFlow(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{MaxDuration: 100 * time.Millisecond}, pipeline.DefaultTimeouts(), nil)

	info, err := fx.studio.StartRecording(ctx, "voice-call")
	require.NoError(t, err)
	_, err = fx.studio.Record(ctx, info.ID, signupInputs()[0])
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		f, err := fx.studio.Flows().Get(ctx, "voice-call")
		return err == nil && f.Status == flow.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	_, ok := fx.studio.Sessions().Active()
	require.False(t, ok)

	_, err = fx.studio.Record(ctx, info.ID, signupInputs()[1])
	require.ErrorIs(t, err, domain.ErrInvalidState)

	stopped := events.TypeSessionStopped
	require.Eventually(t, func() bool {
		entries, err := fx.activity.GetRecentActivity(ctx, activity.ListActivityOptions{ActivityType: &stopped})
		if err != nil || len(entries) != 1 {
			return false
		}
		var details map[string]any
		if err := json.Unmarshal([]byte(entries[0].Details), &details); err != nil {
			return false
		}
		return details["reason"] == string(session.ReasonTimeout)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStudio_SynthesizeErrors(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	_, err := fx.studio.Synthesize(ctx, "missing", nil)
	require.ErrorIs(t, err, flow.ErrFlowNotFound)

	info, err := fx.studio.StartRecording(ctx, "signup")
	require.NoError(t, err)
	_, err = fx.studio.Synthesize(ctx, "signup", nil)
	require.ErrorIs(t, err, domain.ErrNotReady)

	for _, in := range signupInputs() {
		_, err := fx.studio.Record(ctx, info.ID, in)
		require.NoError(t, err)
	}
	_, err = fx.studio.StopRecording(ctx, info.ID)
	require.NoError(t, err)

	_, err = fx.studio.Synthesize(ctx, "signup", []script.Language{"cobol"})
	require.ErrorIs(t, err, domain.ErrUnsupportedLanguage)

	out, err := fx.studio.Synthesize(ctx, "signup", []script.Language{script.JavaScript, "cobol"})
	require.NoError(t, err)
	require.Len(t, out.Artifacts, 1)
	require.Equal(t, script.JavaScript, out.Artifacts[0].Language)
	require.ErrorIs(t, out.Failures["cobol"], domain.ErrUnsupportedLanguage)

	out, err = fx.studio.Synthesize(ctx, "signup", nil)
	require.NoError(t, err)
	require.Len(t, out.Artifacts, len(script.SupportedLanguages))
}

func TestStudio_ValidateTimeoutThenCancel(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	slow := func(ctx context.Context, a script.Artifact) validation.Outcome {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return validation.Check(a)
	}
	timeouts := pipeline.DefaultTimeouts()
	timeouts.Validate = 20 * time.Millisecond
	fx := newFixture(t, session.Options{}, timeouts, slow)
	defer close(release)

	_, err := fx.studio.Capture(ctx, "signup", signupInputs())
	require.NoError(t, err)
	out, err := fx.studio.Synthesize(ctx, "signup", []script.Language{script.Python})
	require.NoError(t, err)
	id := out.Artifacts[0].ID

	_, err = fx.studio.Validate(ctx, id)
	require.ErrorIs(t, err, domain.ErrTimeout)

	a, err := fx.studio.Scripts().Library().Get(id)
	require.NoError(t, err)
	require.Equal(t, script.StateValidating, a.Validation)

	a, err = fx.studio.CancelValidation(ctx, id)
	require.NoError(t, err)
	require.Equal(t, script.StateUnvalidated, a.Validation)
	require.False(t, a.DeviceReady)
}

func TestStudio_CaptureStopsOnInvalidInput(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, session.Options{}, pipeline.DefaultTimeouts(), nil)

	inputs := []action.Input{
		signupInputs()[0],
		{Payload: action.Tap{}},
	}
	_, err := fx.studio.Capture(ctx, "signup", inputs)
	require.Error(t, err)

	_, ok := fx.studio.Sessions().Active()
	require.False(t, ok)

	f, err := fx.studio.Flows().Get(ctx, "signup")
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, f.Status)
	require.Len(t, f.Actions, 1)
}
