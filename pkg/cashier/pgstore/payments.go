package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/paddlekit/cashier/pkg/cashier"
)

type payments struct {
	pool *pgxpool.Pool
}

// Amounts are stored as NUMERIC and exchanged with the database as text to
// keep exact decimal values end to end.
const paymentColumns = `id, subscription_id, user_id, paddle_order_id,
	paddle_receipt_url, plan_name, payment_method, coupon, country, currency,
	subtotal::text, tax::text, fee::text, total::text, quantity,
	processed_at, created_at, updated_at`

func (r payments) Upsert(ctx context.Context, p *cashier.Payment) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO subscription_payments (
			subscription_id, user_id, paddle_order_id, paddle_receipt_url,
			plan_name, payment_method, coupon, country, currency,
			subtotal, tax, fee, total, quantity, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (subscription_id, paddle_order_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			paddle_receipt_url = EXCLUDED.paddle_receipt_url,
			plan_name = EXCLUDED.plan_name,
			payment_method = EXCLUDED.payment_method,
			coupon = EXCLUDED.coupon,
			country = EXCLUDED.country,
			currency = EXCLUDED.currency,
			subtotal = EXCLUDED.subtotal,
			tax = EXCLUDED.tax,
			fee = EXCLUDED.fee,
			total = EXCLUDED.total,
			quantity = EXCLUDED.quantity,
			processed_at = EXCLUDED.processed_at,
			updated_at = now()
		RETURNING id, created_at, updated_at`,
		p.SubscriptionID, p.UserID, p.OrderID, p.ReceiptURL,
		p.PlanName, p.PaymentMethod, p.Coupon, p.Country, p.Currency,
		p.Subtotal.String(), p.Tax.String(), p.Fee.String(), p.Total.String(),
		p.Quantity, p.ProcessedAt,
	)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}
	return nil
}

func (r payments) Latest(ctx context.Context, subscriptionID int64) (*cashier.Payment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM subscription_payments
		 WHERE subscription_id = $1
		 ORDER BY processed_at DESC NULLS LAST, id DESC
		 LIMIT 1`,
		subscriptionID,
	)
	p, err := scanPayment(row)
	if errors.Is(err, cashier.ErrPaymentNotFound) {
		return nil, cashier.ErrPaymentNotFound
	}
	return p, err
}

func (r payments) ListBySubscription(ctx context.Context, subscriptionID int64) ([]*cashier.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM subscription_payments
		 WHERE subscription_id = $1
		 ORDER BY processed_at DESC NULLS LAST, id DESC`,
		subscriptionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var out []*cashier.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPayment(row rowScanner) (*cashier.Payment, error) {
	var (
		p                        cashier.Payment
		subtotal, tax, fee, total string
	)
	err := row.Scan(
		&p.ID, &p.SubscriptionID, &p.UserID, &p.OrderID,
		&p.ReceiptURL, &p.PlanName, &p.PaymentMethod, &p.Coupon, &p.Country, &p.Currency,
		&subtotal, &tax, &fee, &total, &p.Quantity,
		&p.ProcessedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, cashier.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment: %w", err)
	}

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
	}{
		{subtotal, &p.Subtotal},
		{tax, &p.Tax},
		{fee, &p.Fee},
		{total, &p.Total},
	} {
		d, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("parse payment amount %q: %w", field.raw, err)
		}
		*field.dest = d
	}

	return &p, nil
}
