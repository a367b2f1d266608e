package flow

import "context"

// Repository provides persistence for flows.
type Repository interface {
	Create(ctx context.Context, f *Flow) error
	Get(ctx context.Context, id string) (*Flow, error)
	Update(ctx context.Context, f *Flow) error
	List(ctx context.Context) ([]Summary, error)
}
