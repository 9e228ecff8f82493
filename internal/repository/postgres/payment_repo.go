package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

// PaymentRepository implements domain.PaymentRepository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

const paymentColumns = `
	id, batch_id, member_id, sequence_type, mandate_reference,
	collection_date, amount, state
`

// GetByBatch retrieves the payment lines of a batch
func (r *PaymentRepository) GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*domain.DirectDebitPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM debit_payments WHERE batch_id = $1 ORDER BY mandate_reference`

	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*domain.DirectDebitPayment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectDebitPayment, error) {
	query := `SELECT ` + paymentColumns + ` FROM debit_payments WHERE id = $1`

	payment, err := scanPayment(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// UpdateStatesByBatch moves every payment of the batch currently in the
// from state to the to state
func (r *PaymentRepository) UpdateStatesByBatch(ctx context.Context, batchID uuid.UUID, from, to domain.PaymentState) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE debit_payments SET state = $3 WHERE batch_id = $1 AND state = $2
	`, batchID, string(from), string(to))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// UpdateState applies a guarded state change to a single payment
func (r *PaymentRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.PaymentState) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE debit_payments SET state = $3 WHERE id = $1 AND state = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM debit_payments WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrPaymentNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.DirectDebitPayment, error) {
	var p domain.DirectDebitPayment
	var sequenceType, state string
	var collectionDate pgtype.Date
	var amount pgtype.Numeric

	err := row.Scan(
		&p.ID, &p.BatchID, &p.MemberID, &sequenceType, &p.MandateReference,
		&collectionDate, &amount, &state,
	)
	if err != nil {
		return nil, err
	}

	p.SequenceType = domain.SequenceType(sequenceType)
	p.State = domain.PaymentState(state)
	p.CollectionDate = collectionDate.Time
	p.Amount = numericToDecimal(amount)
	return &p, nil
}
