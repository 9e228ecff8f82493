package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

// TransmissionService drives a prepared batch through the bank submission
// handshake and keeps batch and payment states in sync with the outcome.
type TransmissionService struct {
	batchRepo   domain.BatchRepository
	paymentRepo domain.PaymentRepository
	bank        domain.BankClient
	cfg         config.DebitConfig
	publisher   websocket.EventPublisher
	now         func() time.Time
}

// NewTransmissionService creates a new TransmissionService
func NewTransmissionService(batchRepo domain.BatchRepository, paymentRepo domain.PaymentRepository, bank domain.BankClient, cfg config.DebitConfig) *TransmissionService {
	return &TransmissionService{
		batchRepo:   batchRepo,
		paymentRepo: paymentRepo,
		bank:        bank,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *TransmissionService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.publisher = publisher
}

func (s *TransmissionService) publishEvent(event websocket.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// TransmitOutcome is the caller-visible result of an initiate or confirm
// step. A challenge outcome is not an error: the batch stays unknown until
// the TAN is confirmed, indefinitely if the user abandons it.
type TransmitOutcome struct {
	BatchState     domain.BatchState `json:"batchState"`
	Challenge      bool              `json:"challenge"`
	ChallengeToken string            `json:"challengeToken,omitempty"`
}

// Connections lists the configured bank connections for the prepare form.
func (s *TransmissionService) Connections(ctx context.Context) (map[string]domain.BankConnection, error) {
	return s.bank.ListConnections(ctx)
}

// Transmit submits the batch payload to the bank. The batch must still be
// awaiting transmission; a batch stuck in unknown after an abandoned TAN
// challenge can be re-initiated through this same path.
func (s *TransmissionService) Transmit(ctx context.Context, batchID uuid.UUID) (*TransmitOutcome, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.State != domain.BatchStateUnknown {
		return nil, domain.ErrBatchNotPending
	}

	order := domain.DebitOrder{
		Payload:          batch.Payload,
		Multiple:         batch.Multiple,
		COR1:             batch.COR1,
		ControlSum:       batch.TotalAmount,
		Currency:         s.cfg.Currency,
		SchemaDescriptor: batch.SchemaDescriptor,
	}

	result, err := s.bank.InitiateDebit(ctx, batch.Metadata[domain.MetaLoginID], batch.Metadata[domain.MetaAccountIBAN], order)
	if err != nil {
		// Bank errors are logged in full here and mapped to the failed
		// state; callers only ever see the typed failure.
		log.Error().
			Err(err).
			Str("batch_id", batch.ID.String()).
			Msg("Debit submission raised an error")
		return s.markFailed(ctx, batch)
	}

	switch result.Status {
	case domain.InitiateCompleted:
		return s.markTransmitted(ctx, batch)
	case domain.InitiateChallenge:
		log.Info().
			Str("batch_id", batch.ID.String()).
			Msg("Debit submission requires strong authentication")
		return &TransmitOutcome{
			BatchState:     batch.State,
			Challenge:      true,
			ChallengeToken: result.ChallengeToken,
		}, nil
	default:
		log.Error().
			Str("batch_id", batch.ID.String()).
			Str("reason", result.Reason).
			Msg("Debit submission rejected")
		return s.markFailed(ctx, batch)
	}
}

// ChallengeForm fetches the presentation metadata for a pending TAN
// challenge. The metadata is opaque to the engine and passed through
// verbatim.
func (s *TransmissionService) ChallengeForm(ctx context.Context, batchID uuid.UUID, token string) (domain.ChallengeForm, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	form, err := s.bank.GetChallengeForm(ctx, batch.Metadata[domain.MetaLoginID], token)
	if err != nil {
		log.Error().
			Err(err).
			Str("batch_id", batch.ID.String()).
			Msg("Failed to fetch challenge form")
		return nil, domain.ErrTransmissionFailed
	}
	return form, nil
}

// Confirm completes a pending TAN challenge. Success transmits the batch;
// an error or unrecognized result fails it.
func (s *TransmissionService) Confirm(ctx context.Context, batchID uuid.UUID, token, tan string) (*TransmitOutcome, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.State != domain.BatchStateUnknown {
		return nil, domain.ErrBatchNotPending
	}

	result, err := s.bank.ConfirmChallenge(ctx, batch.Metadata[domain.MetaLoginID], token, tan)
	if err != nil {
		log.Error().
			Err(err).
			Str("batch_id", batch.ID.String()).
			Msg("Challenge confirmation raised an error")
		return s.markFailed(ctx, batch)
	}

	if result.Status != domain.InitiateCompleted {
		log.Error().
			Str("batch_id", batch.ID.String()).
			Str("reason", result.Reason).
			Msg("Challenge confirmation rejected")
		return s.markFailed(ctx, batch)
	}

	return s.markTransmitted(ctx, batch)
}

// MarkExecuted records bank-side execution of a transmitted batch. Payments
// still in transmitted move along; bounced ones stay bounced.
func (s *TransmissionService) MarkExecuted(ctx context.Context, batchID uuid.UUID) (*domain.DirectDebitBatch, error) {
	batch, err := s.batchRepo.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if err := batch.TransitionTo(domain.BatchStateExecuted); err != nil {
		return nil, err
	}
	if err := s.batchRepo.UpdateState(ctx, batch.ID, domain.BatchStateTransmitted, domain.BatchStateExecuted); err != nil {
		return nil, err
	}
	if _, err := s.paymentRepo.UpdateStatesByBatch(ctx, batch.ID, domain.PaymentStateTransmitted, domain.PaymentStateExecuted); err != nil {
		return nil, err
	}

	log.Info().Str("batch_id", batch.ID.String()).Msg("Batch executed")
	s.publishEvent(websocket.BatchExecuted(batch))
	return batch, nil
}

// MarkPaymentBounced records an out-of-band bounce notification for a
// single payment. The batch itself keeps its state.
func (s *TransmissionService) MarkPaymentBounced(ctx context.Context, paymentID uuid.UUID) (*domain.DirectDebitPayment, error) {
	payment, err := s.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := payment.TransitionTo(domain.PaymentStateBounced); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.UpdateState(ctx, payment.ID, domain.PaymentStateTransmitted, domain.PaymentStateBounced); err != nil {
		return nil, err
	}

	log.Info().Str("payment_id", payment.ID.String()).Msg("Payment bounced")
	s.publishEvent(websocket.PaymentBounced(payment))
	return payment, nil
}

func (s *TransmissionService) markTransmitted(ctx context.Context, batch *domain.DirectDebitBatch) (*TransmitOutcome, error) {
	if err := batch.TransitionTo(domain.BatchStateTransmitted); err != nil {
		return nil, err
	}
	if err := s.batchRepo.UpdateState(ctx, batch.ID, domain.BatchStateUnknown, domain.BatchStateTransmitted); err != nil {
		return nil, err
	}
	if _, err := s.paymentRepo.UpdateStatesByBatch(ctx, batch.ID, domain.PaymentStateUnknown, domain.PaymentStateTransmitted); err != nil {
		return nil, err
	}

	log.Info().Str("batch_id", batch.ID.String()).Msg("Batch transmitted")
	s.publishEvent(websocket.BatchTransmitted(batch))
	return &TransmitOutcome{BatchState: batch.State}, nil
}

// markFailed moves the batch to failed and reports the generic transmission
// failure. Payments stay unknown: nothing reached the bank.
func (s *TransmissionService) markFailed(ctx context.Context, batch *domain.DirectDebitBatch) (*TransmitOutcome, error) {
	if err := batch.TransitionTo(domain.BatchStateFailed); err != nil {
		return nil, err
	}
	if err := s.batchRepo.UpdateState(ctx, batch.ID, domain.BatchStateUnknown, domain.BatchStateFailed); err != nil {
		return nil, err
	}

	s.publishEvent(websocket.BatchFailed(batch))
	return &TransmitOutcome{BatchState: batch.State}, domain.ErrTransmissionFailed
}
