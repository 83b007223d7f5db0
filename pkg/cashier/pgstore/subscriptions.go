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

type subscriptions struct {
	pool *pgxpool.Pool
}

const subscriptionColumns = `id, user_id, name, paddle_id, paddle_plan_id,
	paddle_cancel_url, paddle_update_url, paddle_status, quantity,
	trial_ends_at, ends_at, created_at, updated_at`

func (r subscriptions) Create(ctx context.Context, sub *cashier.Subscription) error {
	// Upsert keyed by the provider subscription id: a redelivered creation
	// event converges on the existing row.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO subscriptions (
			user_id, name, paddle_id, paddle_plan_id,
			paddle_cancel_url, paddle_update_url, paddle_status, quantity,
			trial_ends_at, ends_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (paddle_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			paddle_plan_id = EXCLUDED.paddle_plan_id,
			paddle_cancel_url = EXCLUDED.paddle_cancel_url,
			paddle_update_url = EXCLUDED.paddle_update_url,
			paddle_status = EXCLUDED.paddle_status,
			quantity = EXCLUDED.quantity,
			trial_ends_at = EXCLUDED.trial_ends_at,
			ends_at = EXCLUDED.ends_at,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		sub.UserID, sub.Name, sub.PaddleID, sub.PaddlePlanID,
		sub.CancelURL, sub.UpdateURL, string(sub.Status), sub.Quantity,
		sub.TrialEndsAt, sub.EndsAt,
	)
	if err := row.Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r subscriptions) ByPaddleID(ctx context.Context, paddleID string) (*cashier.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE paddle_id = $1`,
		paddleID,
	)
	return scanSubscription(row)
}

func (r subscriptions) Current(ctx context.Context, userID uuid.UUID, name string) (*cashier.Subscription, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1 AND name = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		userID, name,
	)
	return scanSubscription(row)
}

func (r subscriptions) ListByUser(ctx context.Context, userID uuid.UUID) ([]*cashier.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*cashier.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (r subscriptions) Save(ctx context.Context, sub *cashier.Subscription) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions SET
			user_id = $2, name = $3, paddle_id = $4, paddle_plan_id = $5,
			paddle_cancel_url = $6, paddle_update_url = $7, paddle_status = $8,
			quantity = $9, trial_ends_at = $10, ends_at = $11, updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.UserID, sub.Name, sub.PaddleID, sub.PaddlePlanID,
		sub.CancelURL, sub.UpdateURL, string(sub.Status),
		sub.Quantity, sub.TrialEndsAt, sub.EndsAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cashier.ErrSubscriptionNotFound
	}
	return nil
}

func (r subscriptions) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cashier.ErrSubscriptionNotFound
	}
	return nil
}

func (r subscriptions) Mutate(ctx context.Context, paddleID string, fn func(*cashier.Subscription) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin mutate: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	// The row lock is the single-writer-per-key guarantee: concurrent
	// deliveries for one subscription queue up here.
	row := tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions
		 WHERE paddle_id = $1 FOR UPDATE`,
		paddleID,
	)
	sub, err := scanSubscription(row)
	if err != nil {
		return err
	}

	if err := fn(sub); err != nil {
		if errors.Is(err, cashier.ErrDropSubscription) {
			if _, err := tx.Exec(ctx, `DELETE FROM subscriptions WHERE id = $1`, sub.ID); err != nil {
				return fmt.Errorf("drop subscription: %w", err)
			}
			return tx.Commit(ctx)
		}
		return err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE subscriptions SET
			paddle_id = $2, paddle_plan_id = $3, paddle_cancel_url = $4,
			paddle_update_url = $5, paddle_status = $6, quantity = $7,
			trial_ends_at = $8, ends_at = $9, updated_at = now()
		WHERE id = $1`,
		sub.ID, sub.PaddleID, sub.PaddlePlanID, sub.CancelURL,
		sub.UpdateURL, string(sub.Status), sub.Quantity,
		sub.TrialEndsAt, sub.EndsAt,
	); err != nil {
		return fmt.Errorf("save mutated subscription: %w", err)
	}

	return tx.Commit(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*cashier.Subscription, error) {
	var (
		sub    cashier.Subscription
		status string
	)
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.Name, &sub.PaddleID, &sub.PaddlePlanID,
		&sub.CancelURL, &sub.UpdateURL, &status, &sub.Quantity,
		&sub.TrialEndsAt, &sub.EndsAt, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	sub.Status = cashier.Status(status)
	return &sub, nil
}
