package mocks

import (
	"context"

	"github.com/rpggio/flowscribe/internal/domain/activity"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/stretchr/testify/mock"
)

// FlowRepository is a mock for flow.Repository.
type FlowRepository struct {
	mock.Mock
}

func (m *FlowRepository) Create(ctx context.Context, f *flow.Flow) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *FlowRepository) Get(ctx context.Context, id string) (*flow.Flow, error) {
	args := m.Called(ctx, id)
	if f, ok := args.Get(0).(*flow.Flow); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *FlowRepository) Update(ctx context.Context, f *flow.Flow) error {
	args := m.Called(ctx, f)
	return args.Error(0)
}

func (m *FlowRepository) List(ctx context.Context) ([]flow.Summary, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]flow.Summary); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// ActivityRepository is a mock for activity.Repository.
type ActivityRepository struct {
	mock.Mock
}

func (m *ActivityRepository) Log(ctx context.Context, entry *activity.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *ActivityRepository) List(ctx context.Context, opts activity.ListActivityOptions) ([]activity.ActivityEntry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]activity.ActivityEntry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
