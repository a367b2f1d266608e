package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/stretchr/testify/require"
)

func TestActivityRepository_LogAndList(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	flowID := "login"
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	entry1 := &activity.ActivityEntry{
		Seq:          1,
		ActivityType: events.TypeSessionStarted,
		FlowID:       &flowID,
		Summary:      "recording started for flow login",
		CreatedAt:    base,
	}
	entry2 := &activity.ActivityEntry{
		Seq:          2,
		ActivityType: events.TypeSessionStopped,
		FlowID:       &flowID,
		Summary:      "recording stopped by timeout with 3 actions",
		Details:      `{"reason":"timeout","actions":3}`,
		CreatedAt:    base.Add(time.Second),
	}

	require.NoError(t, repo.Log(ctx, entry1))
	require.NoError(t, repo.Log(ctx, entry2))
	require.NotZero(t, entry1.ID)
	require.NotZero(t, entry2.ID)

	entries, err := repo.List(ctx, activity.ListActivityOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, entry2.ID, entries[0].ID)
	require.Equal(t, uint64(2), entries[0].Seq)
	require.Equal(t, `{"reason":"timeout","actions":3}`, entries[0].Details)
	require.Equal(t, "login", *entries[0].FlowID)
	require.Nil(t, entries[0].SessionID)
	require.Nil(t, entries[0].ScriptID)
	require.Equal(t, entry1.ID, entries[1].ID)
}

func TestActivityRepository_Filters(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	repo := NewActivityRepository(db)
	sessionID := "s1"
	flowID := "login"
	scriptID := "01JSCRIPT"
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		ActivityType: events.TypeActionAppended,
		SessionID:    &sessionID,
		FlowID:       &flowID,
		Summary:      "recorded tap action 1",
	}))
	require.NoError(t, repo.Log(ctx, &activity.ActivityEntry{
		ActivityType: events.TypeScriptSynthesized,
		FlowID:       &flowID,
		ScriptID:     &scriptID,
		Summary:      "synthesized java script",
	}))

	synthesized := events.TypeScriptSynthesized
	entries, err := repo.List(ctx, activity.ListActivityOptions{FlowID: &flowID, ActivityType: &synthesized})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, scriptID, *entries[0].ScriptID)

	entries, err = repo.List(ctx, activity.ListActivityOptions{SessionID: &sessionID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, events.TypeActionAppended, entries[0].ActivityType)

	entries, err = repo.List(ctx, activity.ListActivityOptions{ScriptID: &scriptID})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	other := "other"
	entries, err = repo.List(ctx, activity.ListActivityOptions{FlowID: &other})
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = repo.List(ctx, activity.ListActivityOptions{Offset: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestActivityRepository_RecordsBusEvents(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()

	svc := activity.NewService(NewActivityRepository(db), nil)
	svc.Record(ctx, events.Event{
		Seq:       7,
		Type:      events.TypeSessionStopped,
		SessionID: "s1",
		FlowID:    "login",
		At:        time.Now(),
		Data:      map[string]any{"reason": "timeout", "actions": 2},
	})

	stopped := events.TypeSessionStopped
	entries, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{ActivityType: &stopped})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(7), entries[0].Seq)
	require.Contains(t, entries[0].Summary, "timeout")
	require.JSONEq(t, `{"reason":"timeout","actions":2}`, entries[0].Details)
}
