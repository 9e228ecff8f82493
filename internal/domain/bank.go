package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// BankAccount is one account reachable through a bank connection.
type BankAccount struct {
	Name string `json:"name"`
	IBAN string `json:"iban"`
	BIC  string `json:"bic"`
}

// BankConnection is a configured online-banking login and the accounts it
// can operate on.
type BankConnection struct {
	LoginID      string        `json:"loginId"`
	Accounts     []BankAccount `json:"accounts"`
	Capabilities []string      `json:"capabilities"`
}

// DebitOrder is everything the bank needs to submit a prepared batch.
type DebitOrder struct {
	Payload          string
	Multiple         bool
	COR1             bool
	ControlSum       decimal.Decimal
	Currency         string
	SchemaDescriptor string
}

// InitiateStatus distinguishes the three possible outcomes of a debit
// submission or a challenge confirmation.
type InitiateStatus string

const (
	// InitiateCompleted means the bank accepted the order outright.
	InitiateCompleted InitiateStatus = "completed"
	// InitiateChallenge means strong authentication is required before the
	// order takes effect; the result carries the correlation token.
	InitiateChallenge InitiateStatus = "challenge"
	// InitiateFailed means the bank rejected the order or returned
	// something unrecognized.
	InitiateFailed InitiateStatus = "failed"
)

// InitiateResult is the typed outcome of InitiateDebit or ConfirmChallenge.
// Reason holds bank-side detail for server logs only; it must never be
// surfaced to end users.
type InitiateResult struct {
	Status         InitiateStatus
	ChallengeToken string
	Reason         string
}

// ChallengeForm is presentation metadata for a pending TAN challenge. The
// engine passes it through to the client verbatim.
type ChallengeForm map[string]any

// BankClient is the banking collaborator. Connection management and
// cryptographic authentication live behind this interface; the engine only
// drives the submit/confirm handshake.
type BankClient interface {
	ListConnections(ctx context.Context) (map[string]BankConnection, error)
	InitiateDebit(ctx context.Context, loginID, accountIBAN string, order DebitOrder) (*InitiateResult, error)
	ConfirmChallenge(ctx context.Context, loginID, token, tan string) (*InitiateResult, error)
	GetChallengeForm(ctx context.Context, loginID, token string) (ChallengeForm, error)
}
