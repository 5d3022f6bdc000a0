package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmypidge/case-service/internal/domain"
)

// MessageRepository manages a case's append-only message thread.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByCase(ctx context.Context, caseID string) ([]domain.Message, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (case_id, content, sender_kind, sender_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		msg.CaseID,
		msg.Content,
		msg.SenderKind,
		msg.SenderID,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	const query = `
        SELECT id, case_id, content, sender_kind, sender_id, created_at
        FROM messages WHERE id=$1`
	var msg domain.Message
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.CaseID,
		&msg.Content,
		&msg.SenderKind,
		&msg.SenderID,
		&msg.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *messageRepository) ListByCase(ctx context.Context, caseID string) ([]domain.Message, error) {
	const query = `
        SELECT id, case_id, content, sender_kind, sender_id, created_at
        FROM messages WHERE case_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(
			&msg.ID,
			&msg.CaseID,
			&msg.Content,
			&msg.SenderKind,
			&msg.SenderID,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
