package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

// MemberRepository implements domain.MemberRepository using PostgreSQL
type MemberRepository struct {
	pool *pgxpool.Pool
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

const memberColumns = `
	id, number, name, email, balance,
	iban, bic, mandate_reference, mandate_date,
	direct_debit_enabled, mandate_rescinded, debit_bounced
`

// GetAll retrieves the full member population ordered by membership number
func (r *MemberRepository) GetAll(ctx context.Context) ([]*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members ORDER BY number`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

// GetByID retrieves a member by its ID
func (r *MemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	member, err := scanMember(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

// MandateReferenceExists checks the reference ledger, which keeps every
// assignment ever made regardless of member status.
func (r *MemberRepository) MandateReferenceExists(ctx context.Context, reference string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM mandate_references WHERE reference = $1)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, reference).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// AssignMandate stores the reference in the ledger, writes it onto the
// member profile and inserts the outbox notification, all in one
// transaction. The ledger's unique constraint is the backstop against
// concurrent allocations of the same reference.
func (r *MemberRepository) AssignMandate(ctx context.Context, memberID uuid.UUID, reference string, assignedAt time.Time, notification *domain.Notification) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO mandate_references (reference, member_id, assigned_at)
		VALUES ($1, $2, $3)
	`, reference, memberID, assignedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMandateReferenceTaken
		}
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE members
		SET mandate_reference = $2, mandate_date = $3
		WHERE id = $1 AND mandate_reference = ''
	`, memberID, reference, assignedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMandateAlreadyAssigned
	}

	if notification != nil {
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

func scanMember(row pgx.Row) (*domain.Member, error) {
	var m domain.Member
	var balance pgtype.Numeric
	var mandateDate pgtype.Date

	err := row.Scan(
		&m.ID, &m.Number, &m.Name, &m.Email, &balance,
		&m.Profile.IBAN, &m.Profile.BIC, &m.Profile.MandateReference, &mandateDate,
		&m.Profile.DirectDebitEnabled, &m.Profile.MandateRescinded, &m.Profile.DebitBounced,
	)
	if err != nil {
		return nil, err
	}

	m.Balance = numericToDecimal(balance)
	if mandateDate.Valid {
		t := mandateDate.Time
		m.Profile.MandateDate = &t
	}
	return &m, nil
}
