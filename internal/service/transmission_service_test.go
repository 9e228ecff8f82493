package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func storedBatch(t *testing.T, batchRepo *testutil.MockBatchRepository, paymentRepo *testutil.MockPaymentRepository, paymentCount int) (*domain.DirectDebitBatch, []*domain.DirectDebitPayment) {
	t.Helper()

	batch := &domain.DirectDebitBatch{
		ID:               uuid.New(),
		CreatedAt:        time.Now(),
		Multiple:         true,
		Payload:          "<Document/>",
		SchemaDescriptor: domain.SchemaPain00800302,
		State:            domain.BatchStateUnknown,
		Metadata: map[string]string{
			domain.MetaLoginID:     "login-1",
			domain.MetaAccountIBAN: "DE89370400440532013000",
		},
		PaymentCount: paymentCount,
		TotalAmount:  decimal.NewFromInt(int64(paymentCount) * 10),
	}

	payments := make([]*domain.DirectDebitPayment, 0, paymentCount)
	for i := 0; i < paymentCount; i++ {
		payment := &domain.DirectDebitPayment{
			ID:               uuid.New(),
			BatchID:          batch.ID,
			SequenceType:     domain.SequenceFirst,
			MandateReference: "KW2026TESTREF00000" + string(rune('1'+i)),
			Amount:           decimal.NewFromInt(10),
			State:            domain.PaymentStateUnknown,
		}
		payments = append(payments, payment)
	}

	if err := batchRepo.CreateWithPayments(context.Background(), batch, payments, nil); err != nil {
		t.Fatalf("Failed to store batch fixture: %v", err)
	}
	*paymentRepo = *testutil.NewMockPaymentRepository(payments...)
	return batch, payments
}

func newTransmissionFixture() (*TransmissionService, *testutil.MockBatchRepository, *testutil.MockPaymentRepository, *testutil.MockBankClient) {
	batchRepo := testutil.NewMockBatchRepository()
	paymentRepo := testutil.NewMockPaymentRepository()
	bankClient := &testutil.MockBankClient{}
	svc := NewTransmissionService(batchRepo, paymentRepo, bankClient, testDebitConfig())
	return svc, batchRepo, paymentRepo, bankClient
}

func TestTransmit_Completed(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, payments := storedBatch(t, batchRepo, paymentRepo, 2)

	outcome, err := svc.Transmit(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if outcome.BatchState != domain.BatchStateTransmitted {
		t.Errorf("Expected transmitted, got %s", outcome.BatchState)
	}
	if outcome.Challenge {
		t.Error("Expected no challenge")
	}
	for _, p := range payments {
		if p.State != domain.PaymentStateTransmitted {
			t.Errorf("Expected payment %s transmitted, got %s", p.ID, p.State)
		}
	}

	if len(bankClient.InitiateCalls) != 1 {
		t.Fatalf("Expected 1 initiation, got %d", len(bankClient.InitiateCalls))
	}
	call := bankClient.InitiateCalls[0]
	if call.LoginID != "login-1" || call.AccountIBAN != "DE89370400440532013000" {
		t.Errorf("Expected the batch metadata to select the connection, got %s / %s", call.LoginID, call.AccountIBAN)
	}
	if call.Order.Payload != batch.Payload {
		t.Error("Expected the frozen payload to be submitted")
	}
	if !call.Order.ControlSum.Equal(batch.TotalAmount) {
		t.Errorf("Expected control sum %s, got %s", batch.TotalAmount, call.Order.ControlSum)
	}
}

func TestTransmit_ChallengeKeepsBatchPending(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, payments := storedBatch(t, batchRepo, paymentRepo, 1)

	bankClient.InitiateResult = &domain.InitiateResult{
		Status:         domain.InitiateChallenge,
		ChallengeToken: "abc123",
	}

	outcome, err := svc.Transmit(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Expected no error for a challenge, got %v", err)
	}

	if !outcome.Challenge {
		t.Fatal("Expected a challenge outcome")
	}
	if outcome.ChallengeToken != "abc123" {
		t.Errorf("Expected token abc123, got %s", outcome.ChallengeToken)
	}
	if batch.State != domain.BatchStateUnknown {
		t.Errorf("Expected the batch to stay unknown, got %s", batch.State)
	}
	if payments[0].State != domain.PaymentStateUnknown {
		t.Errorf("Expected payments to stay unknown, got %s", payments[0].State)
	}

	// Confirming the TAN completes the handshake.
	confirmed, err := svc.Confirm(context.Background(), batch.ID, "abc123", "123456")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if confirmed.BatchState != domain.BatchStateTransmitted {
		t.Errorf("Expected transmitted after confirmation, got %s", confirmed.BatchState)
	}
	if len(bankClient.ConfirmCalls) != 1 || bankClient.ConfirmCalls[0] != "123456" {
		t.Errorf("Expected the TAN to reach the bank, got %v", bankClient.ConfirmCalls)
	}
	if payments[0].State != domain.PaymentStateTransmitted {
		t.Errorf("Expected payments transmitted, got %s", payments[0].State)
	}
}

func TestTransmit_BankErrorFailsBatch(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, payments := storedBatch(t, batchRepo, paymentRepo, 1)

	bankClient.InitiateErr = errors.New("HKCDB dialog aborted: 9010 decryption failure")

	outcome, err := svc.Transmit(context.Background(), batch.ID)
	if !errors.Is(err, domain.ErrTransmissionFailed) {
		t.Fatalf("Expected ErrTransmissionFailed, got %v", err)
	}

	if outcome == nil || outcome.BatchState != domain.BatchStateFailed {
		t.Error("Expected the outcome to report the failed state")
	}
	if batch.State != domain.BatchStateFailed {
		t.Errorf("Expected failed, got %s", batch.State)
	}
	// Nothing reached the bank, so the payment lines are untouched.
	if payments[0].State != domain.PaymentStateUnknown {
		t.Errorf("Expected payments to stay unknown, got %s", payments[0].State)
	}
}

func TestTransmit_RejectedStatusFailsBatch(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, _ := storedBatch(t, batchRepo, paymentRepo, 1)

	bankClient.InitiateResult = &domain.InitiateResult{
		Status: domain.InitiateFailed,
		Reason: "control sum mismatch",
	}

	_, err := svc.Transmit(context.Background(), batch.ID)
	if !errors.Is(err, domain.ErrTransmissionFailed) {
		t.Fatalf("Expected ErrTransmissionFailed, got %v", err)
	}
	if batch.State != domain.BatchStateFailed {
		t.Errorf("Expected failed, got %s", batch.State)
	}
}

func TestTransmit_OnlyPendingBatches(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, _ := storedBatch(t, batchRepo, paymentRepo, 1)
	batch.State = domain.BatchStateTransmitted

	_, err := svc.Transmit(context.Background(), batch.ID)
	if !errors.Is(err, domain.ErrBatchNotPending) {
		t.Fatalf("Expected ErrBatchNotPending, got %v", err)
	}
	if len(bankClient.InitiateCalls) != 0 {
		t.Error("Expected no bank call for an already transmitted batch")
	}
}

func TestTransmit_UnknownBatch(t *testing.T) {
	svc, _, _, _ := newTransmissionFixture()

	_, err := svc.Transmit(context.Background(), uuid.New())
	if !errors.Is(err, domain.ErrBatchNotFound) {
		t.Errorf("Expected ErrBatchNotFound, got %v", err)
	}
}

func TestConfirm_RejectedTANFailsBatch(t *testing.T) {
	svc, batchRepo, paymentRepo, bankClient := newTransmissionFixture()
	batch, payments := storedBatch(t, batchRepo, paymentRepo, 1)

	bankClient.ConfirmResult = &domain.InitiateResult{
		Status: domain.InitiateFailed,
		Reason: "wrong TAN",
	}

	_, err := svc.Confirm(context.Background(), batch.ID, "abc123", "000000")
	if !errors.Is(err, domain.ErrTransmissionFailed) {
		t.Fatalf("Expected ErrTransmissionFailed, got %v", err)
	}
	if batch.State != domain.BatchStateFailed {
		t.Errorf("Expected failed, got %s", batch.State)
	}
	if payments[0].State != domain.PaymentStateUnknown {
		t.Errorf("Expected payments to stay unknown, got %s", payments[0].State)
	}
}

func TestMarkExecuted(t *testing.T) {
	svc, batchRepo, paymentRepo, _ := newTransmissionFixture()
	batch, payments := storedBatch(t, batchRepo, paymentRepo, 2)

	batch.State = domain.BatchStateTransmitted
	payments[0].State = domain.PaymentStateTransmitted
	payments[1].State = domain.PaymentStateBounced

	updated, err := svc.MarkExecuted(context.Background(), batch.ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if updated.State != domain.BatchStateExecuted {
		t.Errorf("Expected executed, got %s", updated.State)
	}
	if payments[0].State != domain.PaymentStateExecuted {
		t.Errorf("Expected the transmitted payment to execute, got %s", payments[0].State)
	}
	if payments[1].State != domain.PaymentStateBounced {
		t.Errorf("Expected the bounced payment to stay bounced, got %s", payments[1].State)
	}
}

func TestMarkExecuted_RequiresTransmittedBatch(t *testing.T) {
	svc, batchRepo, paymentRepo, _ := newTransmissionFixture()
	batch, _ := storedBatch(t, batchRepo, paymentRepo, 1)

	_, err := svc.MarkExecuted(context.Background(), batch.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for an untransmitted batch, got %v", err)
	}
}

func TestMarkPaymentBounced(t *testing.T) {
	svc, batchRepo, paymentRepo, _ := newTransmissionFixture()
	_, payments := storedBatch(t, batchRepo, paymentRepo, 1)
	payments[0].State = domain.PaymentStateTransmitted

	bounced, err := svc.MarkPaymentBounced(context.Background(), payments[0].ID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if bounced.State != domain.PaymentStateBounced {
		t.Errorf("Expected bounced, got %s", bounced.State)
	}
}

func TestMarkPaymentBounced_RequiresTransmittedPayment(t *testing.T) {
	svc, batchRepo, paymentRepo, _ := newTransmissionFixture()
	_, payments := storedBatch(t, batchRepo, paymentRepo, 1)

	_, err := svc.MarkPaymentBounced(context.Background(), payments[0].ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for an untransmitted payment, got %v", err)
	}
}
