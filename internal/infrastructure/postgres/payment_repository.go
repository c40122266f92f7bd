package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/storepay/internal/domain/errors"
	"github.com/cassiomorais/storepay/internal/domain/payment"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, order_id, receipt_id, payer_email, amount, status, method,
	order_name, buyer_name, raw_response, created_at, updated_at`

// PaymentRepository is the payment ledger on PostgreSQL. Uniqueness of
// receipt_id is enforced by the table, not by this code.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Record) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO payment_records
		 (order_id, receipt_id, payer_email, amount, status, method, order_name, buyer_name, raw_response, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		 RETURNING id`,
		p.OrderID, p.ReceiptID, p.PayerEmail, p.Amount, string(p.Status), p.Method,
		p.OrderName, p.BuyerName, p.RawResponse, p.CreatedAt, p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("receipt %s: %w", p.ReceiptID, domainErrors.ErrDuplicateReceipt)
		}
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByReceiptID(ctx context.Context, receiptID string) (*payment.Record, error) {
	return scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_records WHERE receipt_id = $1`, receiptID))
}

func (r *PaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*payment.Record, error) {
	return scanRecord(r.db(ctx).QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payment_records
		 WHERE order_id = $1 ORDER BY created_at DESC, id DESC LIMIT 1`, orderID))
}

func (r *PaymentRepository) ListByPayer(ctx context.Context, payerEmail string) ([]*payment.Record, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+paymentColumns+` FROM payment_records
		 WHERE payer_email = $1 ORDER BY created_at DESC, id DESC`, payerEmail)
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	defer rows.Close()

	var records []*payment.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update persists a status transition. Amount and receipt are immutable.
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Record) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE payment_records SET status = $1, raw_response = $2, updated_at = $3 WHERE id = $4`,
		string(p.Status), p.RawResponse, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPaymentNotFound
	}
	return nil
}

func scanRecord(row scanner) (*payment.Record, error) {
	p := &payment.Record{}
	var status string
	err := row.Scan(&p.ID, &p.OrderID, &p.ReceiptID, &p.PayerEmail, &p.Amount, &status, &p.Method,
		&p.OrderName, &p.BuyerName, &p.RawResponse, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment record: %w", err)
	}
	p.Status = payment.Status(status)
	return p, nil
}
