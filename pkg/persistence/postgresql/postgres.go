// Package postgresql provides PostgreSQL persistence for workflow
// drafts.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/persistence/sqlbase"
)

// Persistence implements draft storage on PostgreSQL.
type Persistence struct {
	db        *sql.DB
	logger    *slog.Logger
	draftRepo *DraftRepository
}

// NewPersistence connects to the database, runs pending migrations, and
// returns a ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:        database,
		logger:    logger,
		draftRepo: NewDraftRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Drafts returns all drafts, newest first.
func (p *Persistence) Drafts(ctx context.Context) ([]*models.WorkflowDraft, error) {
	return p.draftRepo.GetAll(ctx)
}

// DraftByID returns a draft by its ID.
func (p *Persistence) DraftByID(ctx context.Context, id string) (*models.WorkflowDraft, error) {
	return p.draftRepo.GetByID(ctx, id)
}

// SaveDraft upserts a draft.
func (p *Persistence) SaveDraft(ctx context.Context, draft *models.WorkflowDraft) error {
	return p.draftRepo.Save(ctx, draft)
}

// DeleteDraft removes a draft by its ID.
func (p *Persistence) DeleteDraft(ctx context.Context, id string) error {
	return p.draftRepo.Delete(ctx, id)
}
