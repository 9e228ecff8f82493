package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

// BatchRepository implements domain.BatchRepository using PostgreSQL
type BatchRepository struct {
	pool *pgxpool.Pool
}

// NewBatchRepository creates a new BatchRepository
func NewBatchRepository(pool *pgxpool.Pool) *BatchRepository {
	return &BatchRepository{pool: pool}
}

const batchColumns = `
	id, created_at, multiple, cor1, payload, schema_descriptor,
	state, metadata, payment_count, total_amount
`

// CreateWithPayments writes the batch, its payment lines and the member
// notifications in a single transaction: a crash cannot leave payments
// without notifications or vice versa.
func (r *BatchRepository) CreateWithPayments(ctx context.Context, batch *domain.DirectDebitBatch, payments []*domain.DirectDebitPayment, notifications []*domain.Notification) error {
	metadata, err := json.Marshal(batch.Metadata)
	if err != nil {
		return err
	}
	totalAmount, err := decimalToNumeric(batch.TotalAmount)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO debit_batches (
			id, created_at, multiple, cor1, payload, schema_descriptor,
			state, metadata, payment_count, total_amount
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, batch.ID, batch.CreatedAt, batch.Multiple, batch.COR1, batch.Payload,
		batch.SchemaDescriptor, string(batch.State), metadata, batch.PaymentCount, totalAmount)
	if err != nil {
		return err
	}

	for _, payment := range payments {
		amount, err := decimalToNumeric(payment.Amount)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO debit_payments (
				id, batch_id, member_id, sequence_type, mandate_reference,
				collection_date, amount, state
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, payment.ID, payment.BatchID, payment.MemberID, string(payment.SequenceType),
			payment.MandateReference, payment.CollectionDate, amount, string(payment.State))
		if err != nil {
			return err
		}
	}

	for _, notification := range notifications {
		_, err = tx.Exec(ctx, `
			INSERT INTO notifications (id, member_id, subject, body, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, notification.ID, notification.MemberID, notification.Subject, notification.Body, notification.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a batch by its ID
func (r *BatchRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DirectDebitBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM debit_batches WHERE id = $1`

	batch, err := scanBatch(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

// GetAll retrieves every batch, newest first
func (r *BatchRepository) GetAll(ctx context.Context) ([]*domain.DirectDebitBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM debit_batches ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*domain.DirectDebitBatch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, rows.Err()
}

// UpdateState applies a guarded state change. The WHERE clause on the
// current state keeps the transition forward-only even under concurrent
// writers.
func (r *BatchRepository) UpdateState(ctx context.Context, id uuid.UUID, from, to domain.BatchState) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE debit_batches SET state = $3 WHERE id = $1 AND state = $2
	`, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM debit_batches WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrBatchNotFound
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func scanBatch(row pgx.Row) (*domain.DirectDebitBatch, error) {
	var b domain.DirectDebitBatch
	var state string
	var metadata []byte
	var totalAmount pgtype.Numeric

	err := row.Scan(
		&b.ID, &b.CreatedAt, &b.Multiple, &b.COR1, &b.Payload, &b.SchemaDescriptor,
		&state, &metadata, &b.PaymentCount, &totalAmount,
	)
	if err != nil {
		return nil, err
	}

	b.State = domain.BatchState(state)
	b.TotalAmount = numericToDecimal(totalAmount)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &b.Metadata); err != nil {
			return nil, err
		}
	}
	return &b, nil
}
