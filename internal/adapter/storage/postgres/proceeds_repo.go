package postgres

import (
	"context"
	"errors"
	"fmt"

	"nft-marketplace/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// ProceedsRepo implements ports.ProceedsRepository.
type ProceedsRepo struct {
	pool Pool
}

// NewProceedsRepo creates a new ProceedsRepo.
func NewProceedsRepo(pool Pool) *ProceedsRepo {
	return &ProceedsRepo{pool: pool}
}

// Get returns a seller's balance, zero if they have none.
func (r *ProceedsRepo) Get(ctx context.Context, seller domain.Address) (int64, error) {
	query := `SELECT amount FROM proceeds WHERE seller = $1`

	amount, err := scanAmount(r.pool.QueryRow(ctx, query, string(seller)))
	if err != nil {
		return 0, fmt.Errorf("get proceeds: %w", err)
	}
	return amount, nil
}

// GetForUpdate returns a seller's balance with pessimistic locking.
// This MUST be called within a transaction.
func (r *ProceedsRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, seller domain.Address) (int64, error) {
	query := `SELECT amount FROM proceeds WHERE seller = $1 FOR UPDATE`

	amount, err := scanAmount(tx.QueryRow(ctx, query, string(seller)))
	if err != nil {
		return 0, fmt.Errorf("get proceeds for update: %w", err)
	}
	return amount, nil
}

// Credit adds amount to a seller's balance, creating the row on first credit.
func (r *ProceedsRepo) Credit(ctx context.Context, tx pgx.Tx, seller domain.Address, amount int64) error {
	query := `INSERT INTO proceeds (seller, amount, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (seller)
		DO UPDATE SET amount = proceeds.amount + EXCLUDED.amount, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, string(seller), amount); err != nil {
		return fmt.Errorf("credit proceeds: %w", err)
	}
	return nil
}

// Reset zeroes a seller's balance. The row is kept.
func (r *ProceedsRepo) Reset(ctx context.Context, tx pgx.Tx, seller domain.Address) error {
	query := `UPDATE proceeds SET amount = 0, updated_at = NOW() WHERE seller = $1`

	tag, err := tx.Exec(ctx, query, string(seller))
	if err != nil {
		return fmt.Errorf("reset proceeds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proceeds not found: %s", seller)
	}
	return nil
}

func scanAmount(row pgx.Row) (int64, error) {
	var amount int64
	if err := row.Scan(&amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}
