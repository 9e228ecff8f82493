package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/repository/storage"
	"github.com/kassenwart/kassenwart-backend/internal/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var decimalHundred = decimal.NewFromInt(100)

// BatchService builds direct-debit batches from the eligible member set and
// persists them together with their payment lines and member notifications.
type BatchService struct {
	batchRepo   domain.BatchRepository
	paymentRepo domain.PaymentRepository
	eligibility *EligibilityService
	exporter    domain.Exporter
	archive     storage.ExportArchive
	cfg         config.DebitConfig
	publisher   websocket.EventPublisher
	now         func() time.Time
}

// NewBatchService creates a new BatchService
func NewBatchService(batchRepo domain.BatchRepository, paymentRepo domain.PaymentRepository, eligibility *EligibilityService, exporter domain.Exporter, archive storage.ExportArchive, cfg config.DebitConfig) *BatchService {
	return &BatchService{
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		eligibility: eligibility,
		exporter:    exporter,
		archive:     archive,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *BatchService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.publisher = publisher
}

func (s *BatchService) publishEvent(event websocket.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// NumberRange is an inclusive membership-number range filter.
type NumberRange struct {
	Low  int64 `json:"low"`
	High int64 `json:"high"`
}

// PrepareInput describes a batch to build.
type PrepareInput struct {
	DueDate     time.Time
	Description string
	LoginID     string
	Account     domain.BankAccount
	Schema      string
	COR1        bool

	// CountryRestriction retains only members whose IBAN country matches
	// (or, with ExcludeCountry, does not match). Empty means no filter.
	CountryRestriction string
	ExcludeCountry     bool

	// NumberRanges retains only members whose numeric membership number
	// falls into any of the ranges. Empty means no filter.
	NumberRanges []NumberRange
}

// PrepareResult is a built batch with its payment lines. Warnings flag
// conditions the caller should surface but that do not fail the build.
type PrepareResult struct {
	Batch    *domain.DirectDebitBatch     `json:"batch"`
	Payments []*domain.DirectDebitPayment `json:"payments"`
	Warnings []string                     `json:"warnings,omitempty"`
}

// Prepare selects the eligible members, freezes one payment line per member,
// runs the export codec and persists batch, payment lines and member
// notifications in a single transaction. An export rejection aborts the
// whole operation with nothing persisted.
func (s *BatchService) Prepare(ctx context.Context, input PrepareInput) (*PrepareResult, error) {
	if err := validateFundingAccount(input.Account); err != nil {
		return nil, err
	}
	if !domain.ValidSchema(input.Schema) {
		return nil, domain.ErrUnknownSchema
	}

	members, err := s.eligibility.EligibleMembers(ctx)
	if err != nil {
		return nil, err
	}
	members = filterMembers(members, input)

	createdAt := s.now()
	batch := &domain.DirectDebitBatch{
		ID:               uuid.New(),
		CreatedAt:        createdAt,
		Multiple:         true,
		COR1:             input.COR1,
		SchemaDescriptor: input.Schema,
		State:            domain.BatchStateUnknown,
		Metadata: map[string]string{
			domain.MetaLoginID:     input.LoginID,
			domain.MetaAccountIBAN: input.Account.IBAN,
			domain.MetaAccountBIC:  input.Account.BIC,
			domain.MetaAccountName: input.Account.Name,
		},
	}

	payments := make([]*domain.DirectDebitPayment, 0, len(members))
	notifications := make([]*domain.Notification, 0, len(members))
	exportPayments := make([]domain.ExportPayment, 0, len(members))

	for _, member := range members {
		// The amount is the exact negation of the due balance, frozen now.
		// Later balance changes do not touch the payment line.
		amount := member.Balance.Neg().Round(2)
		if !amount.IsPositive() {
			// A due balance under half a cent rounds to zero; there is
			// nothing to collect.
			continue
		}

		memberID := member.ID
		payment := &domain.DirectDebitPayment{
			ID:               uuid.New(),
			BatchID:          batch.ID,
			MemberID:         &memberID,
			SequenceType:     s.sequenceType(),
			MandateReference: member.Profile.MandateReference,
			CollectionDate:   input.DueDate,
			Amount:           amount,
			State:            domain.PaymentStateUnknown,
		}
		payments = append(payments, payment)
		batch.TotalAmount = batch.TotalAmount.Add(amount)

		mandateDate := createdAt
		if member.Profile.MandateDate != nil {
			mandateDate = *member.Profile.MandateDate
		}

		exportPayments = append(exportPayments, domain.ExportPayment{
			Name:             member.Name,
			IBAN:             member.Profile.IBAN,
			BIC:              member.Profile.BIC,
			CollectionDate:   input.DueDate,
			AmountCents:      amount.Mul(decimalHundred).IntPart(),
			SequenceType:     payment.SequenceType,
			MandateReference: payment.MandateReference,
			MandateDate:      mandateDate,
			Description:      input.Description,
			EndToEndID:       payment.ID.String(),
		})

		notifications = append(notifications, s.renderDebitNotice(member, payment, input.Description))
	}
	batch.PaymentCount = len(payments)

	payload, err := s.exporter.Export(domain.ExportBatch{
		CreditorName: input.Account.Name,
		CreditorIBAN: input.Account.IBAN,
		CreditorBIC:  input.Account.BIC,
		CreditorID:   s.cfg.CreditorID,
		Currency:     s.cfg.Currency,
		Batch:        true,
		Instrument:   instrument(input.COR1),
		Schema:       input.Schema,
		Payments:     exportPayments,
	})
	if err != nil {
		// Full detail stays in the server log; callers only see the
		// typed rejection.
		log.Error().
			Err(err).
			Str("schema", input.Schema).
			Int("payment_count", len(payments)).
			Msg("Export codec rejected batch payload")
		return nil, domain.ErrExportRejected
	}
	batch.Payload = string(payload)

	if err := s.batchRepo.CreateWithPayments(ctx, batch, payments, notifications); err != nil {
		return nil, err
	}

	// Best effort audit copy; Postgres already holds the payload.
	if _, err := s.archive.Put(ctx, batch.ID, payload); err != nil {
		log.Warn().
			Err(err).
			Str("batch_id", batch.ID.String()).
			Msg("Failed to archive batch payload")
	}

	log.Info().
		Str("batch_id", batch.ID.String()).
		Int("payment_count", batch.PaymentCount).
		Str("total_amount", batch.TotalAmount.String()).
		Msg("Prepared direct-debit batch")

	s.publishEvent(websocket.BatchCreated(batch))

	result := &PrepareResult{Batch: batch, Payments: payments}
	if len(payments) == 0 {
		result.Warnings = append(result.Warnings, "no eligible members matched; batch contains no payments")
	}
	return result, nil
}

// GetBatch returns a batch with its payment lines.
func (s *BatchService) GetBatch(ctx context.Context, id uuid.UUID) (*domain.DirectDebitBatch, []*domain.DirectDebitPayment, error) {
	batch, err := s.batchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	payments, err := s.paymentRepo.GetByBatch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return batch, payments, nil
}

// GetAll returns every batch, newest first.
func (s *BatchService) GetAll(ctx context.Context) ([]*domain.DirectDebitBatch, error) {
	return s.batchRepo.GetAll(ctx)
}

// sequenceType applies the configured policy. Only always-frst is
// implemented; distinguishing FRST from RCUR per mandate usage is a known
// open gap.
func (s *BatchService) sequenceType() domain.SequenceType {
	return domain.SequenceFirst
}

func instrument(cor1 bool) string {
	if cor1 {
		return domain.InstrumentCOR1
	}
	return domain.InstrumentCore
}

func validateFundingAccount(account domain.BankAccount) error {
	if account.Name == "" || !domain.ValidIBAN(account.IBAN) || !domain.ValidBIC(account.BIC) {
		return domain.ErrInvalidFundingAccount
	}
	return nil
}

func filterMembers(members []*domain.Member, input PrepareInput) []*domain.Member {
	result := make([]*domain.Member, 0, len(members))
	for _, m := range members {
		if input.CountryRestriction != "" {
			matches := strings.EqualFold(domain.IBANCountry(m.Profile.IBAN), input.CountryRestriction)
			if matches == input.ExcludeCountry {
				continue
			}
		}
		if len(input.NumberRanges) > 0 && !inRanges(m.Number, input.NumberRanges) {
			continue
		}
		result = append(result, m)
	}
	return result
}

func inRanges(number string, ranges []NumberRange) bool {
	n, err := strconv.ParseInt(number, 10, 64)
	if err != nil {
		// Non-numeric membership numbers never match a numeric range.
		return false
	}
	for _, r := range ranges {
		if n >= r.Low && n <= r.High {
			return true
		}
	}
	return false
}

// renderDebitNotice builds the per-member collection announcement persisted
// in the same transaction as the batch.
func (s *BatchService) renderDebitNotice(member *domain.Member, payment *domain.DirectDebitPayment, description string) *domain.Notification {
	replacer := strings.NewReplacer(
		"{association_name}", s.cfg.AssociationName,
		"{amount}", payment.Amount.StringFixed(2),
		"{currency}", s.cfg.Currency,
		"{collection_date}", payment.CollectionDate.Format("2006-01-02"),
		"{sepa_mandate_reference}", payment.MandateReference,
		"{creditor_id}", s.cfg.CreditorID,
		"{description}", description,
		"{contact}", s.cfg.ContactAddress,
	)

	return &domain.Notification{
		ID:        uuid.New(),
		MemberID:  member.ID,
		Subject:   replacer.Replace(debitNoticeSubject),
		Body:      replacer.Replace(debitNoticeBody),
		CreatedAt: s.now(),
	}
}

const debitNoticeSubject = "Upcoming SEPA direct debit collection"

const debitNoticeBody = `Hi,

we will collect {amount} {currency} for your {association_name} membership
fees on or shortly after {collection_date}.

 Mandate reference: {sepa_mandate_reference}
 Our Creditor ID:   {creditor_id}
 Statement text:    {description}

If anything looks wrong, please contact us at {contact} before the
collection date.

Thanks,
the robo clerk`
