package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddlekit/cashier/pkg/cashier"
)

type customers struct {
	pool *pgxpool.Pool
}

const customerColumns = `user_id, paddle_id, trial_ends_at, created_at, updated_at`

func (r customers) Get(ctx context.Context, userID uuid.UUID) (*cashier.Customer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE user_id = $1`,
		userID,
	)
	return scanCustomer(row)
}

func (r customers) ByPaddleID(ctx context.Context, paddleID string) (*cashier.Customer, error) {
	if paddleID == "" {
		return nil, cashier.ErrCustomerNotFound
	}
	row := r.pool.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE paddle_id = $1`,
		paddleID,
	)
	return scanCustomer(row)
}

func (r customers) Save(ctx context.Context, c *cashier.Customer) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO customers (user_id, paddle_id, trial_ends_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			paddle_id = EXCLUDED.paddle_id,
			trial_ends_at = EXCLUDED.trial_ends_at,
			updated_at = now()
		RETURNING created_at, updated_at`,
		c.UserID, c.PaddleID, c.TrialEndsAt,
	)
	if err := row.Scan(&c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("save customer: %w", err)
	}
	return nil
}

func scanCustomer(row rowScanner) (*cashier.Customer, error) {
	var c cashier.Customer
	err := row.Scan(&c.UserID, &c.PaddleID, &c.TrialEndsAt, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan customer: %w", err)
	}
	return &c, nil
}
