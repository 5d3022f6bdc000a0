package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmypidge/case-service/internal/domain"
)

// PhotoRepository persists photo metadata.
type PhotoRepository interface {
	Create(ctx context.Context, photo *domain.Photo) error
	ListByCase(ctx context.Context, caseID string) ([]domain.Photo, error)
}

type photoRepository struct {
	pool *pgxpool.Pool
}

// NewPhotoRepository constructs repository.
func NewPhotoRepository(pool *pgxpool.Pool) PhotoRepository {
	return &photoRepository{pool: pool}
}

func (r *photoRepository) Create(ctx context.Context, photo *domain.Photo) error {
	const query = `
        INSERT INTO case_photos (case_id, message_id, photo_url)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		photo.CaseID,
		photo.MessageID,
		photo.PhotoURL,
	).Scan(&photo.ID, &photo.CreatedAt)
}

func (r *photoRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Photo, error) {
	const query = `
        SELECT id, case_id, message_id, photo_url, created_at
        FROM case_photos WHERE case_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Photo
	for rows.Next() {
		var photo domain.Photo
		if err := rows.Scan(
			&photo.ID,
			&photo.CaseID,
			&photo.MessageID,
			&photo.PhotoURL,
			&photo.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, photo)
	}
	return result, rows.Err()
}
