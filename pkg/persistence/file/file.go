// Package file provides file-based draft persistence, one JSON file per
// draft. Suitable for local development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/appforge/flowcanvas/pkg/models"
	"github.com/appforge/flowcanvas/pkg/persistence"
)

// Persistence stores drafts under <root>/drafts/<id>.json.
type Persistence struct {
	root string
}

// NewPersistence creates a file-based persistence layer rooted at the
// given directory.
func NewPersistence(root string) *Persistence {
	return &Persistence{root: root}
}

// Drafts returns every stored draft, newest first.
func (p *Persistence) Drafts(ctx context.Context) ([]*models.WorkflowDraft, error) {
	root := os.DirFS(p.draftsDir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list draft files: %w", err)
	}

	drafts := make([]*models.WorkflowDraft, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		draftID := file[:len(file)-len(".json")]

		draft, err := p.DraftByID(ctx, draftID)
		if err != nil {
			if persistence.IsDraftNotFound(err) {
				continue
			}

			return nil, err
		}

		drafts = append(drafts, draft)
	}

	sort.Slice(drafts, func(i, j int) bool {
		return drafts[i].CreatedAt.After(drafts[j].CreatedAt)
	})

	return drafts, nil
}

// DraftByID retrieves a draft from the file system.
func (p *Persistence) DraftByID(_ context.Context, draftID string) (*models.WorkflowDraft, error) {
	filePath := filepath.Clean(path.Join(p.draftsDir(), draftID+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewDraftError("DraftByID", draftID, persistence.ErrDraftNotFound)
		}

		return nil, fmt.Errorf("failed to read draft %s: %w", draftID, err)
	}

	var draft models.WorkflowDraft

	err = json.Unmarshal(body, &draft)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft %s: %w", draftID, err)
	}

	return &draft, nil
}

// SaveDraft writes a draft to the file system, stamping timestamps.
func (p *Persistence) SaveDraft(_ context.Context, draft *models.WorkflowDraft) error {
	if draft.ID == "" {
		return persistence.NewDraftError("SaveDraft", "", persistence.ErrDraftInvalid)
	}

	err := os.MkdirAll(p.draftsDir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create drafts directory: %w", err)
	}

	now := time.Now().UTC()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = now
	}

	draft.UpdatedAt = now

	data, err := json.MarshalIndent(draft, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal draft %s: %w", draft.ID, err)
	}

	filePath := path.Join(p.draftsDir(), draft.ID+".json")

	return os.WriteFile(filePath, data, 0600)
}

// DeleteDraft removes a draft by its ID. Deleting a missing draft is
// not an error.
func (p *Persistence) DeleteDraft(_ context.Context, draftID string) error {
	filePath := path.Join(p.draftsDir(), draftID+".json")

	err := os.Remove(filePath)
	if err != nil && os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to delete draft %s: %w", draftID, err)
	}

	return nil
}

// HealthCheck verifies the storage root is writable.
func (p *Persistence) HealthCheck(_ context.Context) error {
	err := os.MkdirAll(p.draftsDir(), 0750)
	if err != nil {
		return fmt.Errorf("draft storage root is not writable: %w", err)
	}

	return nil
}

// Close is a no-op for file-based storage.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

func (p *Persistence) draftsDir() string {
	return path.Join(p.root, "drafts")
}
