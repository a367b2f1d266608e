package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/flowscribe/internal/app"
	"github.com/rpggio/flowscribe/internal/config"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/ingest"
)

const deviceLog = `{"flow":"registration","timestamp":1000,"interactionKind":"tap","elementDescriptor":{"key":"Key('signup_btn')","text":"Sign Up"}}
{"flow":"registration","timestamp":2000,"interactionKind":"enterText","elementDescriptor":{"semanticsLabel":"Email Address"},"payload":{"text":"a@b.com"}}
{"flow":"registration","timestamp":3000,"interactionKind":"tap","elementDescriptor":{"key":"create_account"}}
{"flow":"registration","timestamp":4000,"interactionKind":"assert","elementDescriptor":{"text":"Welcome"}}
{"flow":"messaging","timestamp":5000,"interactionKind":"tap","elementDescriptor":{"key":"chat_list"}}
{"flow":"messaging","timestamp":6000,"interactionKind":"swipe","elementDescriptor":{"text":"Chats"},"payload":{"direction":"left"}}
`

type testEnv struct {
	app *app.App
	cfg config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(t.TempDir(), "flowscribe.db")
	a, err := app.Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &testEnv{app: a, cfg: cfg}
}

func (e *testEnv) replay(t *testing.T, feed string) []*flow.Flow {
	t.Helper()
	decoder, err := ingest.NewDecoder()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "device.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(feed), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	raw, err := decoder.ReadAll(f)
	require.NoError(t, err)

	var out []*flow.Flow
	for _, batch := range ingest.GroupByFlow(raw, "unsorted") {
		inputs, err := ingest.Inputs(batch.Events)
		require.NoError(t, err)
		recorded, err := e.app.Studio.Capture(context.Background(), batch.Flow, inputs)
		require.NoError(t, err)
		out = append(out, recorded)
	}
	return out
}

func TestIntegration_DeviceLogToValidatedScripts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	flows := env.replay(t, deviceLog)
	require.Len(t, flows, 2)
	require.Equal(t, "registration", flows[0].ID)
	require.Equal(t, "messaging", flows[1].ID)
	require.True(t, flows[0].Assessment.Usable())
	require.True(t, flows[0].Assessment.TerminalAssert)
	require.Len(t, flows[1].Actions, 2)

	out, err := env.app.Studio.Synthesize(ctx, "registration", nil)
	require.NoError(t, err)
	require.Empty(t, out.Failures)
	require.Len(t, out.Artifacts, len(script.SupportedLanguages))

	for _, a := range out.Artifacts {
		validated, err := env.app.Studio.Validate(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, script.StateValidated, validated.Validation, "%s: %+v", a.Language, validated.Failure)
		require.True(t, validated.DeviceReady)
	}

	listed := env.app.Studio.Scripts().Library().List(script.Filter{FlowID: "registration", Validation: script.StateValidated})
	require.Len(t, listed, len(script.SupportedLanguages))
}

func TestIntegration_ActivityTrail(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.replay(t, deviceLog)

	flowID := "messaging"
	require.Eventually(t, func() bool {
		entries, err := env.app.Activity.GetRecentActivity(ctx, activity.ListActivityOptions{FlowID: &flowID})
		if err != nil {
			return false
		}
		seen := map[events.Type]bool{}
		for _, e := range entries {
			seen[e.ActivityType] = true
		}
		return seen[events.TypeSessionStarted] && seen[events.TypeActionAppended] && seen[events.TypeFlowClassified]
	}, 5*time.Second, 20*time.Millisecond)
}

func TestIntegration_RerecordReplacesActions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.replay(t, deviceLog)

	env.replay(t, `{"flow":"messaging","timestamp":1,"interactionKind":"tap","elementDescriptor":{"key":"compose"}}
`)
	got, err := env.app.Studio.Flows().Get(ctx, "messaging")
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, got.Status)
	require.Len(t, got.Actions, 1)
	require.Less(t, got.Confidence, flow.UsabilityThreshold)
}
