package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/flowscribe/internal/domain/action"
	"github.com/rpggio/flowscribe/internal/domain/flow"
	"github.com/rpggio/flowscribe/internal/repository"
)

// FlowRepository implements flow.Repository for SQLite
type FlowRepository struct {
	db *DB
}

// NewFlowRepository creates a new FlowRepository
func NewFlowRepository(db *DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// Create inserts a new flow
func (r *FlowRepository) Create(ctx context.Context, f *flow.Flow) error {
	now := time.Now()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = f.CreatedAt
	}

	actions, assessment, err := encodeFlow(f)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO flows (
			id, name, description, status, confidence, assessment,
			actions, action_count, session_id, classified_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		f.ID,
		f.Name,
		f.Description,
		f.Status,
		f.Confidence,
		assessment,
		actions,
		len(f.Actions),
		nullString(f.SessionID),
		utcPtr(f.ClassifiedAt),
		f.CreatedAt.UTC(),
		f.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create flow: %w", err)
	}
	return nil
}

// Get retrieves a flow by ID
func (r *FlowRepository) Get(ctx context.Context, id string) (*flow.Flow, error) {
	query := `
		SELECT
			id, name, description, status, confidence, assessment,
			actions, session_id, classified_at, created_at, updated_at
		FROM flows
		WHERE id = ?
	`

	var (
		f            flow.Flow
		assessment   sql.NullString
		actions      string
		sessionID    sql.NullString
		classifiedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.Name,
		&f.Description,
		&f.Status,
		&f.Confidence,
		&assessment,
		&actions,
		&sessionID,
		&classifiedAt,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}

	if err := json.Unmarshal([]byte(actions), &f.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions of flow %s: %w", id, err)
	}
	if f.Actions == nil {
		f.Actions = []action.RecordedAction{}
	}
	if assessment.Valid && assessment.String != "" {
		f.Assessment = &flow.Assessment{}
		if err := json.Unmarshal([]byte(assessment.String), f.Assessment); err != nil {
			return nil, fmt.Errorf("failed to decode assessment of flow %s: %w", id, err)
		}
	}
	if sessionID.Valid {
		f.SessionID = sessionID.String
	}
	if classifiedAt.Valid {
		t := classifiedAt.Time
		f.ClassifiedAt = &t
	}
	return &f, nil
}

// Update replaces the mutable fields of a flow
func (r *FlowRepository) Update(ctx context.Context, f *flow.Flow) error {
	f.UpdatedAt = time.Now()

	actions, assessment, err := encodeFlow(f)
	if err != nil {
		return err
	}

	query := `
		UPDATE flows SET
			name = ?, description = ?, status = ?, confidence = ?, assessment = ?,
			actions = ?, action_count = ?, session_id = ?, classified_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		f.Name,
		f.Description,
		f.Status,
		f.Confidence,
		assessment,
		actions,
		len(f.Actions),
		nullString(f.SessionID),
		utcPtr(f.ClassifiedAt),
		f.UpdatedAt.UTC(),
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update flow: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// List returns summaries of every flow in creation order
func (r *FlowRepository) List(ctx context.Context) ([]flow.Summary, error) {
	query := `
		SELECT id, name, description, status, confidence, action_count
		FROM flows
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	summaries := []flow.Summary{}
	for rows.Next() {
		var s flow.Summary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Status, &s.Confidence, &s.ActionCount); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flow rows: %w", err)
	}
	return summaries, nil
}

func encodeFlow(f *flow.Flow) (string, sql.NullString, error) {
	actions := f.Actions
	if actions == nil {
		actions = []action.RecordedAction{}
	}
	encoded, err := json.Marshal(actions)
	if err != nil {
		return "", sql.NullString{}, fmt.Errorf("failed to encode actions: %w", err)
	}

	var assessment sql.NullString
	if f.Assessment != nil {
		data, err := json.Marshal(f.Assessment)
		if err != nil {
			return "", sql.NullString{}, fmt.Errorf("failed to encode assessment: %w", err)
		}
		assessment = sql.NullString{String: string(data), Valid: true}
	}
	return string(encoded), assessment, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
