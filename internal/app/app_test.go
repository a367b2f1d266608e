package app_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rpggio/flowscribe/internal/app"
	"github.com/rpggio/flowscribe/internal/config"
	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/domain/locator"
	"github.com/rpggio/flowscribe/internal/domain/script"
	"github.com/stretchr/testify/require"
)

func TestOpen_PersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.DB.Path = filepath.Join(t.TempDir(), "data", "flowscribe.db")
	cfg.Synthesis.Languages = []string{"python"}

	a, err := app.Open(ctx, cfg, nil)
	require.NoError(t, err)

	flows, err := a.Studio.Flows().List(ctx)
	require.NoError(t, err)
	require.Len(t, flows, len(flow.Catalog))
	require.Equal(t, []script.Language{script.Python}, a.Studio.Scripts().Languages())

	f, err := a.Studio.Capture(ctx, "registration", []action.Input{
		{Locator: locator.ElementLocator{StableKey: "signup_btn"}, Payload: action.Tap{}},
		{Locator: locator.ElementLocator{SemanticsLabel: "Email Address"}, Payload: action.EnterText{Text: "a@b.com"}},
		{Locator: locator.ElementLocator{DisplayText: "Create Account"}, Payload: action.Tap{}},
	})
	require.NoError(t, err)
	require.Equal(t, 46, f.Confidence)
	require.NoError(t, a.Close())

	reopened, err := app.Open(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { reopened.Close() })

	got, err := reopened.Studio.Flows().Get(ctx, "registration")
	require.NoError(t, err)
	require.Equal(t, flow.StatusCompleted, got.Status)
	require.Equal(t, 46, got.Confidence)
	require.Len(t, got.Actions, 3)

	flowID := "registration"
	entries, err := reopened.Activity.GetRecentActivity(ctx, activity.ListActivityOptions{FlowID: &flowID})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestOpen_RejectsUnknownLanguage(t *testing.T) {
	cfg := config.Default()
	cfg.DB.Path = ":memory:"
	cfg.Synthesis.Languages = []string{"cobol"}

	_, err := app.Open(context.Background(), cfg, nil)
	require.Error(t, err)
}
