// Package persistence provides the storage abstraction for workflow
// drafts edited on the canvas.
package persistence

import (
	"context"

	"github.com/appforge/flowcanvas/pkg/models"
)

type Persistence interface {
	Drafts(ctx context.Context) ([]*models.WorkflowDraft, error)
	SaveDraft(ctx context.Context, draft *models.WorkflowDraft) error
	DraftByID(ctx context.Context, id string) (*models.WorkflowDraft, error)
	DeleteDraft(ctx context.Context, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
