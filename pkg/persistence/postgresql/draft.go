package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/persistence"
)

// DraftRepository handles draft-related database operations.
type DraftRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDraftRepository creates a new draft repository.
func NewDraftRepository(db *sql.DB, logger *slog.Logger) *DraftRepository {
	return &DraftRepository{db: db, logger: logger}
}

const draftColumns = `
	id
  , logical_name
  , display_name
  , description
  , trigger_type
  , trigger_entity_logical_name
  , trigger_cron_expression
  , steps
  , node_positions
  , max_attempts
  , is_enabled
  , created_at
  , updated_at
`

// GetAll returns all drafts, newest first.
func (r *DraftRepository) GetAll(ctx context.Context) ([]*models.WorkflowDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM workflow_drafts ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query drafts: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	drafts := make([]*models.WorkflowDraft, 0)

	for rows.Next() {
		draft, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}

		drafts = append(drafts, draft)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating drafts: %w", err)
	}

	return drafts, nil
}

// GetByID returns a draft by its ID.
func (r *DraftRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDraft, error) {
	query := `SELECT ` + draftColumns + ` FROM workflow_drafts WHERE id = $1`

	draft, err := scanDraft(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewDraftError("GetByID", id, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to fetch draft %s: %w", id, err)
	}

	return draft, nil
}

// Save upserts a draft, stamping timestamps.
func (r *DraftRepository) Save(ctx context.Context, draft *models.WorkflowDraft) error {
	if draft.ID == "" {
		return persistence.NewDraftError("Save", "", persistence.ErrDraftInvalid)
	}

	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}

	draft.UpdatedAt = now

	stepsJSON, err := json.Marshal(draft.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal draft steps: %w", err)
	}

	positionsJSON, err := json.Marshal(draft.NodePositions)
	if err != nil {
		return fmt.Errorf("failed to marshal node positions: %w", err)
	}

	query := `
		INSERT INTO workflow_drafts (
			id, logical_name, display_name, description,
			trigger_type, trigger_entity_logical_name, trigger_cron_expression,
			steps, node_positions, max_attempts, is_enabled,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			logical_name = EXCLUDED.logical_name,
			display_name = EXCLUDED.display_name,
			description = EXCLUDED.description,
			trigger_type = EXCLUDED.trigger_type,
			trigger_entity_logical_name = EXCLUDED.trigger_entity_logical_name,
			trigger_cron_expression = EXCLUDED.trigger_cron_expression,
			steps = EXCLUDED.steps,
			node_positions = EXCLUDED.node_positions,
			max_attempts = EXCLUDED.max_attempts,
			is_enabled = EXCLUDED.is_enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		draft.ID,
		draft.LogicalName,
		draft.DisplayName,
		draft.Description,
		string(draft.Trigger.Type),
		nullString(draft.Trigger.EntityLogicalName),
		nullString(draft.Trigger.CronExpression),
		stepsJSON,
		positionsJSON,
		draft.MaxAttempts,
		draft.IsEnabled,
		draft.CreatedAt,
		draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save draft %s: %w", draft.ID, err)
	}

	return nil
}

// Delete removes a draft by its ID. Deleting a missing draft is not an
// error.
func (r *DraftRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM workflow_drafts WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", id, err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDraft(row rowScanner) (*models.WorkflowDraft, error) {
	var (
		draft         models.WorkflowDraft
		triggerType   string
		triggerEntity sql.NullString
		triggerCron   sql.NullString
		stepsJSON     []byte
		positionsJSON []byte
	)

	err := row.Scan(
		&draft.ID,
		&draft.LogicalName,
		&draft.DisplayName,
		&draft.Description,
		&triggerType,
		&triggerEntity,
		&triggerCron,
		&stepsJSON,
		&positionsJSON,
		&draft.MaxAttempts,
		&draft.IsEnabled,
		&draft.CreatedAt,
		&draft.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	draft.Trigger = models.TriggerSummary{
		Type:              models.TriggerType(triggerType),
		EntityLogicalName: triggerEntity.String,
		CronExpression:    triggerCron.String,
	}

	err = json.Unmarshal(stepsJSON, &draft.Steps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft steps: %w", err)
	}

	err = json.Unmarshal(positionsJSON, &draft.NodePositions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal node positions: %w", err)
	}

	return &draft, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
