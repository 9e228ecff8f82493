package domain

import "errors"

// Domain errors
var (
	ErrNotFound               = errors.New("resource not found")
	ErrMemberNotFound         = errors.New("member not found")
	ErrBatchNotFound          = errors.New("batch not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrConnectionNotFound     = errors.New("bank connection not found")
	ErrAllocationExhausted    = errors.New("mandate reference allocation retries exhausted")
	ErrMandateReferenceTaken  = errors.New("mandate reference already assigned")
	ErrMandateAlreadyAssigned = errors.New("member already has a mandate reference")
	ErrInvalidTransition      = errors.New("illegal state transition")
	ErrExportRejected         = errors.New("export payload rejected")
	ErrUnknownSchema          = errors.New("unsupported export schema")
	ErrInvalidFundingAccount  = errors.New("invalid funding account")
	ErrInvalidInput           = errors.New("invalid input")
	ErrTransmissionFailed     = errors.New("transmission failed")
	ErrBatchNotPending        = errors.New("batch is not awaiting transmission")
	ErrReferenceTooShort      = errors.New("mandate reference length too short for prefix and member number")
)

// Validation constants
const (
	// MaxPayloadBytes bounds the stored XML payload of a batch.
	MaxPayloadBytes = 16 << 20
	// MemberNumberDigits is the width of the zero-padded member number
	// field inside a mandate reference.
	MemberNumberDigits = 6
)
