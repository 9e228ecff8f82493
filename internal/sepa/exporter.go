// Package sepa renders prepared debit batches as ISO 20022 pain.008
// customer direct debit initiation documents.
package sepa

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

const (
	maxNameLen       = 70
	maxRemittanceLen = 140
)

// Exporter implements domain.Exporter for the whitelisted pain.008 schema
// variants. Export is a pure function of its input; it never touches
// storage, so a validation failure leaves no trace.
type Exporter struct{}

// NewExporter creates a new Exporter
func NewExporter() *Exporter {
	return &Exporter{}
}

// Export validates the batch and renders it as schema-conformant XML.
func (e *Exporter) Export(batch domain.ExportBatch) ([]byte, error) {
	if !domain.ValidSchema(batch.Schema) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownSchema, batch.Schema)
	}
	if err := validateCreditor(batch); err != nil {
		return nil, err
	}

	var totalCents int64
	for i, p := range batch.Payments {
		if err := validatePayment(p); err != nil {
			return nil, fmt.Errorf("payment %d (%s): %w", i, p.MandateReference, err)
		}
		totalCents += p.AmountCents
	}

	msgID := strings.ReplaceAll(uuid.NewString(), "-", "")
	doc := document{
		Namespace: "urn:iso:std:iso:20022:tech:xsd:" + batch.Schema,
		Initiation: initiation{
			GroupHeader: groupHeader{
				MessageID:      msgID,
				CreatedAt:      time.Now().UTC().Format("2006-01-02T15:04:05"),
				TxCount:        len(batch.Payments),
				ControlSum:     formatCents(totalCents),
				InitiatingName: sanitize(batch.CreditorName, maxNameLen),
			},
		},
	}

	for i, group := range groupPayments(batch.Payments) {
		info := paymentInfo{
			ID:             fmt.Sprintf("%s-%d", msgID[:24], i+1),
			Method:         "DD",
			BatchBooking:   batch.Batch,
			TxCount:        len(group.payments),
			ControlSum:     formatCents(sumCents(group.payments)),
			ServiceLevel:   codeBlock{Code: "SEPA"},
			Instrument:     codeBlock{Code: batch.Instrument},
			SequenceType:   string(group.sequenceType),
			CollectionDate: group.collectionDate.Format("2006-01-02"),
			Creditor:       party{Name: sanitize(batch.CreditorName, maxNameLen)},
			CreditorAcct:   account{ID: ibanID{IBAN: batch.CreditorIBAN}},
			CreditorAgent:  agent{Institution: institution{BIC: batch.CreditorBIC}},
			ChargeBearer:   "SLEV",
			CreditorScheme: schemeID{
				ID: schemePartyID{
					Other: schemeOther{
						ID:     batch.CreditorID,
						Scheme: schemeName{Proprietary: "SEPA"},
					},
				},
			},
		}
		for _, p := range group.payments {
			info.Transactions = append(info.Transactions, transaction{
				PaymentID: paymentID{EndToEndID: p.EndToEndID},
				Amount: amount{
					Currency: batch.Currency,
					Value:    formatCents(p.AmountCents),
				},
				MandateInfo: mandateInfo{
					Reference:     p.MandateReference,
					SignatureDate: p.MandateDate.Format("2006-01-02"),
				},
				DebtorAgent: agent{Institution: institution{BIC: p.BIC}},
				Debtor:      party{Name: sanitize(p.Name, maxNameLen)},
				DebtorAcct:  account{ID: ibanID{IBAN: p.IBAN}},
				Remittance:  remittance{Unstructured: sanitize(p.Description, maxRemittanceLen)},
			})
		}
		doc.Initiation.PaymentGroups = append(doc.Initiation.PaymentGroups, info)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func validateCreditor(batch domain.ExportBatch) error {
	if batch.CreditorName == "" {
		return fmt.Errorf("creditor name is empty")
	}
	if batch.CreditorID == "" {
		return fmt.Errorf("creditor identifier is empty")
	}
	if !domain.ValidIBAN(batch.CreditorIBAN) {
		return fmt.Errorf("creditor IBAN %q failed validation", batch.CreditorIBAN)
	}
	if !domain.ValidBIC(batch.CreditorBIC) {
		return fmt.Errorf("creditor BIC %q failed validation", batch.CreditorBIC)
	}
	if batch.Instrument != domain.InstrumentCore && batch.Instrument != domain.InstrumentCOR1 {
		return fmt.Errorf("unsupported local instrument %q", batch.Instrument)
	}
	if batch.Currency == "" {
		return fmt.Errorf("currency is empty")
	}
	return nil
}

func validatePayment(p domain.ExportPayment) error {
	if p.Name == "" {
		return fmt.Errorf("debtor name is empty")
	}
	if !domain.ValidIBAN(p.IBAN) {
		return fmt.Errorf("debtor IBAN %q failed validation", p.IBAN)
	}
	if !domain.ValidBIC(p.BIC) {
		return fmt.Errorf("debtor BIC %q failed validation", p.BIC)
	}
	if p.AmountCents <= 0 {
		return fmt.Errorf("amount must be positive, got %d cents", p.AmountCents)
	}
	if !domain.ValidSequenceType(p.SequenceType) {
		return fmt.Errorf("unknown sequence type %q", p.SequenceType)
	}
	if p.MandateReference == "" {
		return fmt.Errorf("mandate reference is empty")
	}
	if p.MandateDate.IsZero() {
		return fmt.Errorf("mandate date is missing")
	}
	if p.EndToEndID == "" {
		return fmt.Errorf("end-to-end id is empty")
	}
	return nil
}

// paymentGroup holds the transactions sharing one PmtInf block. The schema
// requires one block per sequence type and collection date.
type paymentGroup struct {
	sequenceType   domain.SequenceType
	collectionDate time.Time
	payments       []domain.ExportPayment
}

func groupPayments(payments []domain.ExportPayment) []paymentGroup {
	var groups []paymentGroup
	index := make(map[string]int)
	for _, p := range payments {
		key := string(p.SequenceType) + "|" + p.CollectionDate.Format("2006-01-02")
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, paymentGroup{
				sequenceType:   p.SequenceType,
				collectionDate: p.CollectionDate,
			})
		}
		groups[i].payments = append(groups[i].payments, p)
	}
	return groups
}

func sumCents(payments []domain.ExportPayment) int64 {
	var total int64
	for _, p := range payments {
		total += p.AmountCents
	}
	return total
}

// formatCents renders minor units as a decimal amount with two places, the
// only form the schema accepts.
func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

var charReplacer = strings.NewReplacer(
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ä", "ae", "ö", "oe", "ü", "ue",
	"ß", "ss", "&", "+",
)

// sanitize maps text into the EPC best-practice character set and enforces
// the schema's length limit.
func sanitize(s string, limit int) string {
	s = charReplacer.Replace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case strings.ContainsRune(" /-?:().,'+", r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	out := strings.TrimSpace(b.String())
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
