package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchState is the settlement state of a direct-debit batch. Transitions
// only move forward; see CanTransitionTo.
type BatchState string

const (
	BatchStateUnknown     BatchState = "unknown"
	BatchStateFailed      BatchState = "failed"
	BatchStateTransmitted BatchState = "transmitted"
	BatchStateExecuted    BatchState = "executed"
)

// CanTransitionTo reports whether the edge from s to target is a defined
// transition. unknown → {transmitted, failed}, transmitted → executed;
// everything else is illegal.
func (s BatchState) CanTransitionTo(target BatchState) bool {
	switch s {
	case BatchStateUnknown:
		return target == BatchStateTransmitted || target == BatchStateFailed
	case BatchStateTransmitted:
		return target == BatchStateExecuted
	default:
		return false
	}
}

// Metadata keys for the originating bank account reference stored on a
// batch. The transmission step needs these to address the right bank
// connection later.
const (
	MetaLoginID     = "login_id"
	MetaAccountIBAN = "account_iban"
	MetaAccountBIC  = "account_bic"
	MetaAccountName = "account_name"
)

// DirectDebitBatch is a prepared collection submission. Created once by the
// batch builder, mutated only by the transmission state machine afterwards,
// never deleted.
type DirectDebitBatch struct {
	ID               uuid.UUID         `json:"id"`
	CreatedAt        time.Time         `json:"createdAt"`
	Multiple         bool              `json:"multiple"`
	COR1             bool              `json:"cor1"`
	Payload          string            `json:"-"`
	SchemaDescriptor string            `json:"schemaDescriptor"`
	State            BatchState        `json:"state"`
	Metadata         map[string]string `json:"metadata"`
	PaymentCount     int               `json:"paymentCount"`
	TotalAmount      decimal.Decimal   `json:"totalAmount"`
}

// TransitionTo moves the batch along a defined edge or returns
// ErrInvalidTransition.
func (b *DirectDebitBatch) TransitionTo(target BatchState) error {
	if !b.State.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	b.State = target
	return nil
}

// BatchRepository persists batches. CreateWithPayments writes the batch, all
// payment lines and all member notifications in a single transaction.
// UpdateState applies a guarded state change and fails with
// ErrInvalidTransition when the stored state no longer matches from.
type BatchRepository interface {
	CreateWithPayments(ctx context.Context, batch *DirectDebitBatch, payments []*DirectDebitPayment, notifications []*Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*DirectDebitBatch, error)
	GetAll(ctx context.Context) ([]*DirectDebitBatch, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to BatchState) error
}
