package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmypidge/case-service/internal/domain"
)

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*domain.Case, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, user_id, title, description, latitude, longitude, address, status, category, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (user_id, title, description, latitude, longitude, address, status, category)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		c.UserID,
		c.Title,
		c.Description,
		c.Latitude,
		c.Longitude,
		c.Address,
		c.Status,
		c.Category,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	const query = `SELECT ` + caseColumns + ` FROM cases WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *caseRepository) GetByIDForUser(ctx context.Context, id, userID string) (*domain.Case, error) {
	// A hidden case and a missing case are indistinguishable to the caller.
	const query = `SELECT ` + caseColumns + ` FROM cases WHERE id=$1 AND user_id=$2`
	return r.fetchSingle(ctx, query, id, userID)
}

func (r *caseRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Case, error) {
	var c domain.Case
	if err := scanCase(r.pool.QueryRow(ctx, query, args...), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) ListByUser(ctx context.Context, userID string) ([]domain.Case, error) {
	const query = `SELECT ` + caseColumns + ` FROM cases WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := scanCase(rows, &c); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func scanCase(row pgx.Row, c *domain.Case) error {
	return row.Scan(
		&c.ID,
		&c.UserID,
		&c.Title,
		&c.Description,
		&c.Latitude,
		&c.Longitude,
		&c.Address,
		&c.Status,
		&c.Category,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}
