package ports

import (
	"context"

	"github.com/calliope-audio/stemforge/internal/core/domain"
)

// ExportRepository persists export job records. List returns jobs for a
// project ordered newest-first, plus the total count for pagination.
type ExportRepository interface {
	Create(ctx context.Context, job domain.ExportJob) error
	Get(ctx context.Context, id string) (domain.ExportJob, error)
	Update(ctx context.Context, job domain.ExportJob) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, projectID string, limit, offset int) ([]domain.ExportJob, int, error)
}

// ProjectRepository resolves the tracks an export targets. An empty
// trackIDs slice means all tracks in the project, in project order.
type ProjectRepository interface {
	ResolveTracks(ctx context.Context, projectID string, trackIDs []string) ([]domain.Track, error)
}
