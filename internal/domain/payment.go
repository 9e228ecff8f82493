package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SequenceType is the SEPA mandate usage category of a collection.
type SequenceType string

const (
	SequenceFirst     SequenceType = "FRST"
	SequenceRecurring SequenceType = "RCUR"
	SequenceFinal     SequenceType = "FNAL"
	SequenceOneOff    SequenceType = "OOFF"
)

// ValidSequenceType reports whether s is one of the four SEPA codes.
func ValidSequenceType(s SequenceType) bool {
	switch s {
	case SequenceFirst, SequenceRecurring, SequenceFinal, SequenceOneOff:
		return true
	}
	return false
}

// PaymentState is the settlement state of a single payment line.
type PaymentState string

const (
	PaymentStateUnknown     PaymentState = "unknown"
	PaymentStateTransmitted PaymentState = "transmitted"
	PaymentStateExecuted    PaymentState = "executed"
	PaymentStateBounced     PaymentState = "bounced"
)

// CanTransitionTo reports whether the edge from s to target is defined.
// Bounces arrive out-of-band from the bank, so transmitted → bounced is a
// legal edge alongside transmitted → executed.
func (s PaymentState) CanTransitionTo(target PaymentState) bool {
	switch s {
	case PaymentStateUnknown:
		return target == PaymentStateTransmitted
	case PaymentStateTransmitted:
		return target == PaymentStateExecuted || target == PaymentStateBounced
	default:
		return false
	}
}

// DirectDebitPayment is one collection line of a batch. Amount is frozen at
// build time: later balance changes on the member do not alter it. MemberID
// is nullable so member deletion is never blocked by the audit trail.
type DirectDebitPayment struct {
	ID               uuid.UUID       `json:"id"`
	BatchID          uuid.UUID       `json:"batchId"`
	MemberID         *uuid.UUID      `json:"memberId,omitempty"`
	SequenceType     SequenceType    `json:"sequenceType"`
	MandateReference string          `json:"mandateReference"`
	CollectionDate   time.Time       `json:"collectionDate"`
	Amount           decimal.Decimal `json:"amount"`
	State            PaymentState    `json:"state"`
}

// TransitionTo moves the payment along a defined edge or returns
// ErrInvalidTransition.
func (p *DirectDebitPayment) TransitionTo(target PaymentState) error {
	if !p.State.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	p.State = target
	return nil
}

// PaymentRepository persists payment lines. Lines are only ever created via
// BatchRepository.CreateWithPayments; these methods serve retrieval and the
// state machine.
type PaymentRepository interface {
	GetByBatch(ctx context.Context, batchID uuid.UUID) ([]*DirectDebitPayment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*DirectDebitPayment, error)
	// UpdateStatesByBatch moves every payment of the batch currently in the
	// from state to the to state and returns the number of rows changed.
	UpdateStatesByBatch(ctx context.Context, batchID uuid.UUID, from, to PaymentState) (int64, error)
	UpdateState(ctx context.Context, id uuid.UUID, from, to PaymentState) error
}
