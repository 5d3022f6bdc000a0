package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fixmypidge/case-service/internal/domain"
)

// ErrInvalidTransition is returned when a status update would move a case
// backwards or out of the closed state.
var ErrInvalidTransition = errors.New("invalid status transition")

// InboundRepository applies automation-originated mutations. Message insertion
// and the accompanying status update commit in one transaction: if either
// fails, neither is applied.
type InboundRepository interface {
	ApplyExpertMessage(ctx context.Context, msg *domain.Message, statusUpdate *domain.CaseStatus) (domain.CaseStatus, error)
	ApplyStatusUpdate(ctx context.Context, caseID string, status domain.CaseStatus) (domain.CaseStatus, error)
}

type inboundRepository struct {
	pool *pgxpool.Pool
}

// NewInboundRepository constructs repository.
func NewInboundRepository(pool *pgxpool.Pool) InboundRepository {
	return &inboundRepository{pool: pool}
}

func (r *inboundRepository) ApplyExpertMessage(ctx context.Context, msg *domain.Message, statusUpdate *domain.CaseStatus) (domain.CaseStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := lockCaseStatus(ctx, tx, msg.CaseID)
	if err != nil {
		return "", err
	}

	const insertQuery = `
        INSERT INTO messages (case_id, content, sender_kind, sender_id)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insertQuery,
		msg.CaseID,
		msg.Content,
		msg.SenderKind,
		msg.SenderID,
	).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return "", err
	}

	final := current
	if statusUpdate != nil {
		if !domain.CanTransition(current, *statusUpdate) {
			return "", ErrInvalidTransition
		}
		if err := updateCaseStatus(ctx, tx, msg.CaseID, *statusUpdate); err != nil {
			return "", err
		}
		final = *statusUpdate
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return final, nil
}

func (r *inboundRepository) ApplyStatusUpdate(ctx context.Context, caseID string, status domain.CaseStatus) (domain.CaseStatus, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := lockCaseStatus(ctx, tx, caseID)
	if err != nil {
		return "", err
	}
	if !domain.CanTransition(current, status) {
		return "", ErrInvalidTransition
	}
	if err := updateCaseStatus(ctx, tx, caseID, status); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return status, nil
}

func lockCaseStatus(ctx context.Context, tx pgx.Tx, caseID string) (domain.CaseStatus, error) {
	var status domain.CaseStatus
	err := tx.QueryRow(ctx, `SELECT status FROM cases WHERE id=$1 FOR UPDATE`, caseID).Scan(&status)
	return status, err
}

func updateCaseStatus(ctx context.Context, tx pgx.Tx, caseID string, status domain.CaseStatus) error {
	_, err := tx.Exec(ctx, `UPDATE cases SET status=$1, updated_at=NOW() WHERE id=$2`, status, caseID)
	return err
}
