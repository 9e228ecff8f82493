package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DebitState classifies a member's readiness for SEPA direct debit.
// The states are mutually exclusive; EligibilityService assigns exactly one
// per member, checking profile defects in precedence order before looking at
// the balance.
type DebitState string

const (
	DebitStateInvalidIBAN        DebitState = "invalid_iban"
	DebitStateInvalidBIC         DebitState = "invalid_bic"
	DebitStateRescinded          DebitState = "rescinded"
	DebitStateBounced            DebitState = "bounced"
	DebitStateNoBIC              DebitState = "no_bic"
	DebitStateNoIBAN             DebitState = "no_iban"
	DebitStateNoMandateReference DebitState = "no_mandate_reference"
	DebitStateInactive           DebitState = "inactive"
	DebitStateOK                 DebitState = "ok"
)

// SepaProfile holds the per-member SEPA data maintained by the host
// application. The engine reads it for segmentation and writes only the
// mandate reference fields.
type SepaProfile struct {
	IBAN               string     `json:"iban"`
	BIC                string     `json:"bic"`
	MandateReference   string     `json:"mandateReference"`
	MandateDate        *time.Time `json:"mandateDate,omitempty"`
	DirectDebitEnabled bool       `json:"directDebitEnabled"`
	MandateRescinded   bool       `json:"mandateRescinded"`
	DebitBounced       bool       `json:"debitBounced"`
}

// Member is the read model of a member as far as the debit engine is
// concerned. Balance follows the host convention: negative means fees are
// due.
type Member struct {
	ID      uuid.UUID       `json:"id"`
	Number  string          `json:"number"`
	Name    string          `json:"name"`
	Email   string          `json:"email"`
	Balance decimal.Decimal `json:"balance"`
	Profile SepaProfile     `json:"profile"`
}

// HasDueBalance reports whether the member currently owes fees.
func (m *Member) HasDueBalance() bool {
	return m.Balance.IsNegative()
}

// MemberRepository is the read-mostly view of the member population the
// engine needs. AssignMandate is the single write: it stores the allocated
// reference together with the outbox notification in one transaction.
type MemberRepository interface {
	GetAll(ctx context.Context) ([]*Member, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)
	// MandateReferenceExists checks the reference against every assignment
	// ever made, including members that are no longer active.
	MandateReferenceExists(ctx context.Context, reference string) (bool, error)
	AssignMandate(ctx context.Context, memberID uuid.UUID, reference string, assignedAt time.Time, notification *Notification) error
}
