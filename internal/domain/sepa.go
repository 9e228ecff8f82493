package domain

import "time"

// Supported export schema descriptors. pain.001 is a credit-transfer schema
// and deliberately not accepted for debit collections.
const (
	SchemaPain00800202 = "pain.008.002.02"
	SchemaPain00800302 = "pain.008.003.02"
)

// ValidSchema reports whether descriptor is one of the whitelisted pain.008
// variants.
func ValidSchema(descriptor string) bool {
	return descriptor == SchemaPain00800202 || descriptor == SchemaPain00800302
}

// Instrument codes for the SEPA debit lead-time variant.
const (
	InstrumentCore = "CORE"
	InstrumentCOR1 = "COR1"
)

// ExportPayment is one payment record handed to the export codec. Amounts
// are integer minor units (cents) as required by the XML schema.
type ExportPayment struct {
	Name             string
	IBAN             string
	BIC              string
	CollectionDate   time.Time
	AmountCents      int64
	SequenceType     SequenceType
	MandateReference string
	MandateDate      time.Time
	Description      string
	EndToEndID       string
}

// ExportBatch is the full input of the export codec.
type ExportBatch struct {
	CreditorName string
	CreditorIBAN string
	CreditorBIC  string
	CreditorID   string
	Currency     string
	Batch        bool
	Instrument   string
	Schema       string
	Payments     []ExportPayment
}

// Exporter is the SEPA XML codec collaborator: a pure function from a
// structured batch to validated XML bytes. A returned error means the
// payload was rejected (malformed IBAN, unsupported schema, amount
// mismatch) and nothing may be persisted.
type Exporter interface {
	Export(batch ExportBatch) ([]byte, error)
}
