package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"melody-planner/internal/document"
	"melody-planner/internal/model"
)

// WorkspaceRepository is the remote store: one workspace document per user.
type WorkspaceRepository struct {
	db *gorm.DB
}

func NewWorkspaceRepository(db *gorm.DB) *WorkspaceRepository {
	return &WorkspaceRepository{db: db}
}

// Read loads the user's document. It returns ErrNotFound when none was written yet.
func (r *WorkspaceRepository) Read(ctx context.Context, userID string) (model.Workspace, error) {
	var rec model.WorkspaceRecord
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Workspace{}, ErrNotFound
	case err != nil:
		return model.Workspace{}, fmt.Errorf("read workspace: %w", err)
	}
	ws, err := document.Decode([]byte(rec.Document))
	if err != nil {
		return model.Workspace{}, fmt.Errorf("read workspace: %w", err)
	}
	if ws.LastUpdated == nil {
		at := rec.LastUpdated
		ws.LastUpdated = &at
	}
	return ws, nil
}

// Write replaces the user's document. ws.LastUpdated must be set by the caller.
func (r *WorkspaceRepository) Write(ctx context.Context, userID string, ws model.Workspace) error {
	if ws.LastUpdated == nil {
		return errors.New("write workspace: missing lastUpdated")
	}
	data, err := document.Encode(ws)
	if err != nil {
		return err
	}
	rec := model.WorkspaceRecord{
		UserID:      userID,
		Name:        ws.Name,
		Logo:        ws.Logo,
		Document:    string(data),
		LastUpdated: ws.LastUpdated.UTC(),
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "logo", "document", "last_updated", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("write workspace: %w", err)
	}
	return nil
}

// Since returns the user's document when it was updated strictly after since.
func (r *WorkspaceRepository) Since(ctx context.Context, userID string, since time.Time) (model.Workspace, bool, error) {
	var rec model.WorkspaceRecord
	err := r.db.WithContext(ctx).Select("user_id", "last_updated").Where("user_id = ?", userID).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Workspace{}, false, nil
	case err != nil:
		return model.Workspace{}, false, fmt.Errorf("poll workspace: %w", err)
	}
	if !rec.LastUpdated.After(since) {
		return model.Workspace{}, false, nil
	}
	ws, err := r.Read(ctx, userID)
	if err != nil {
		return model.Workspace{}, false, err
	}
	return ws, true, nil
}

// Delete drops the user's document.
func (r *WorkspaceRepository) Delete(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Delete(&model.WorkspaceRecord{}).Error; err != nil {
		return fmt.Errorf("delete workspace: %w", err)
	}
	return nil
}
