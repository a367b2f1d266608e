package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/events"
	"github.com/rpggio/flowscribe/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestActivityService_LogAndList(t *testing.T) {
	ctx := context.Background()

	repo := &mocks.ActivityRepository{}
	entry := &activity.ActivityEntry{
		ActivityType: events.TypeSessionStarted,
		Summary:      "started",
	}
	flowID := "login"

	repo.On("Log", ctx, entry).Return(nil)
	repo.On("List", ctx, activity.ListActivityOptions{FlowID: &flowID}).Return([]activity.ActivityEntry{}, nil)

	svc := activity.NewService(repo, nil)
	require.NoError(t, svc.LogActivity(ctx, entry))
	require.False(t, entry.CreatedAt.IsZero())
	_, err := svc.GetRecentActivity(ctx, activity.ListActivityOptions{FlowID: &flowID})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestActivityService_LogRejectsEmpty(t *testing.T) {
	svc := activity.NewService(&mocks.ActivityRepository{}, nil)
	require.ErrorIs(t, svc.LogActivity(context.Background(), nil), activity.ErrInvalidInput)
	require.ErrorIs(t, svc.LogActivity(context.Background(), &activity.ActivityEntry{}), activity.ErrInvalidInput)
}

func TestActivityService_RecordKeepsStopReason(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	repo := &mocks.ActivityRepository{}
	repo.On("Log", ctx, mock.MatchedBy(func(e *activity.ActivityEntry) bool {
		return e.ActivityType == events.TypeSessionStopped &&
			e.Seq == 4 &&
			e.SessionID != nil && *e.SessionID == "s1" &&
			e.ScriptID == nil &&
			e.Summary == "recording stopped by timeout with 3 actions" &&
			e.Details == `{"actions":3,"reason":"timeout"}` &&
			e.CreatedAt.Equal(at)
	})).Return(nil)

	svc := activity.NewService(repo, nil)
	svc.Record(ctx, events.Event{
		Seq:       4,
		Type:      events.TypeSessionStopped,
		At:        at,
		SessionID: "s1",
		FlowID:    "login",
		Data:      map[string]any{"reason": "timeout", "actions": 3},
	})
	repo.AssertExpectations(t)
}
