package repositories

import (
	"context"

	"github.com/HarshS16/VeilPlay/internal/models"
)

// VideoRepository exposes data access for the playback catalog.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	ListActive(ctx context.Context, limit int) ([]models.Video, error)
}
