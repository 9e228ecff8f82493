package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func eligibleMember(number, iban string, balance string) *domain.Member {
	m := debitReadyMember(number)
	m.Profile.IBAN = iban
	m.Profile.MandateReference = "KW2026TESTREF" + number
	m.Balance = decimal.RequireFromString(balance)
	return m
}

func fundingAccount() domain.BankAccount {
	return domain.BankAccount{
		Name: "Musterverein e.V.",
		IBAN: "DE89370400440532013000",
		BIC:  "MARKDEF1100",
	}
}

func newBatchFixture(members ...*domain.Member) (*BatchService, *testutil.MockBatchRepository, *testutil.MockExporter, *testutil.MemoryArchive) {
	memberRepo := testutil.NewMockMemberRepository(members...)
	batchRepo := testutil.NewMockBatchRepository()
	paymentRepo := testutil.NewMockPaymentRepository()
	exporter := &testutil.MockExporter{}
	archive := testutil.NewMemoryArchive()
	svc := NewBatchService(batchRepo, paymentRepo, NewEligibilityService(memberRepo), exporter, archive, testDebitConfig())
	return svc, batchRepo, exporter, archive
}

func prepareInput() PrepareInput {
	return PrepareInput{
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Description: "Membership fees 2026",
		LoginID:     "login-1",
		Account:     fundingAccount(),
		Schema:      domain.SchemaPain00800302,
	}
}

func TestPrepare_BuildsPaymentLines(t *testing.T) {
	member := eligibleMember("000042", "DE89370400440532013000", "-42.50")
	svc, batchRepo, exporter, archive := newBatchFixture(member)

	result, err := svc.Prepare(context.Background(), prepareInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(result.Payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(result.Payments))
	}
	payment := result.Payments[0]

	if !payment.Amount.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("Expected amount 42.50, got %s", payment.Amount)
	}
	if payment.SequenceType != domain.SequenceFirst {
		t.Errorf("Expected FRST, got %s", payment.SequenceType)
	}
	if payment.MandateReference != member.Profile.MandateReference {
		t.Errorf("Expected mandate reference %s, got %s", member.Profile.MandateReference, payment.MandateReference)
	}
	if payment.State != domain.PaymentStateUnknown {
		t.Errorf("Expected unknown payment state, got %s", payment.State)
	}
	if !result.Batch.TotalAmount.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("Expected total 42.50, got %s", result.Batch.TotalAmount)
	}
	if result.Batch.PaymentCount != 1 {
		t.Errorf("Expected payment count 1, got %d", result.Batch.PaymentCount)
	}
	if result.Batch.State != domain.BatchStateUnknown {
		t.Errorf("Expected batch state unknown, got %s", result.Batch.State)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}

	// The export sees the same line with cents and the payment id as
	// end-to-end id.
	if exporter.Calls != 1 {
		t.Fatalf("Expected 1 export call, got %d", exporter.Calls)
	}
	exported := exporter.LastBatch.Payments[0]
	if exported.AmountCents != 4250 {
		t.Errorf("Expected 4250 cents, got %d", exported.AmountCents)
	}
	if exported.EndToEndID != payment.ID.String() {
		t.Errorf("Expected end-to-end id %s, got %s", payment.ID, exported.EndToEndID)
	}
	if exported.SequenceType != domain.SequenceFirst {
		t.Errorf("Expected FRST in export, got %s", exported.SequenceType)
	}

	// Persisted, payload frozen, audit copy stored, notice rendered.
	if _, ok := batchRepo.Batches[result.Batch.ID]; !ok {
		t.Error("Expected the batch to be persisted")
	}
	if result.Batch.Payload == "" {
		t.Error("Expected the batch to carry the exported payload")
	}
	if len(archive.Objects) != 1 {
		t.Errorf("Expected 1 archived payload, got %d", len(archive.Objects))
	}
	if len(batchRepo.Notifications) != 1 {
		t.Errorf("Expected 1 debit notice, got %d", len(batchRepo.Notifications))
	}
}

func TestPrepare_MandateDateFallsBackToCreation(t *testing.T) {
	signed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	withDate := eligibleMember("000001", "DE89370400440532013000", "-10")
	withDate.Profile.MandateDate = &signed
	withoutDate := eligibleMember("000002", "DE89370400440532013000", "-10")

	svc, _, exporter, _ := newBatchFixture(withDate, withoutDate)
	createdAt := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return createdAt }

	if _, err := svc.Prepare(context.Background(), prepareInput()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !exporter.LastBatch.Payments[0].MandateDate.Equal(signed) {
		t.Errorf("Expected recorded signature date, got %s", exporter.LastBatch.Payments[0].MandateDate)
	}
	if !exporter.LastBatch.Payments[1].MandateDate.Equal(createdAt) {
		t.Errorf("Expected creation-time fallback, got %s", exporter.LastBatch.Payments[1].MandateDate)
	}
}

func TestPrepare_InvalidFundingAccount(t *testing.T) {
	svc, _, _, _ := newBatchFixture()

	input := prepareInput()
	input.Account.IBAN = "DE00NOTANIBAN"

	_, err := svc.Prepare(context.Background(), input)
	if !errors.Is(err, domain.ErrInvalidFundingAccount) {
		t.Errorf("Expected ErrInvalidFundingAccount, got %v", err)
	}
}

func TestPrepare_RejectsCreditTransferSchema(t *testing.T) {
	svc, _, exporter, _ := newBatchFixture()

	input := prepareInput()
	input.Schema = "pain.001.001.03"

	_, err := svc.Prepare(context.Background(), input)
	if !errors.Is(err, domain.ErrUnknownSchema) {
		t.Errorf("Expected ErrUnknownSchema, got %v", err)
	}
	if exporter.Calls != 0 {
		t.Error("Expected no export attempt for a rejected schema")
	}
}

func TestPrepare_ExportRejectionPersistsNothing(t *testing.T) {
	member := eligibleMember("000042", "DE89370400440532013000", "-42.50")
	svc, batchRepo, exporter, archive := newBatchFixture(member)
	exporter.Err = errors.New("IBAN checksum mismatch in line 1")

	_, err := svc.Prepare(context.Background(), prepareInput())
	if !errors.Is(err, domain.ErrExportRejected) {
		t.Fatalf("Expected ErrExportRejected, got %v", err)
	}

	if len(batchRepo.Batches) != 0 {
		t.Error("Expected no batch persisted after export rejection")
	}
	if len(batchRepo.Notifications) != 0 {
		t.Error("Expected no notifications persisted after export rejection")
	}
	if len(archive.Objects) != 0 {
		t.Error("Expected no archived payload after export rejection")
	}
}

func TestPrepare_CountryFilter(t *testing.T) {
	german := eligibleMember("000001", "DE89370400440532013000", "-10")
	british := eligibleMember("000002", "GB82WEST12345678654321", "-10")
	svc, _, _, _ := newBatchFixture(german, british)

	input := prepareInput()
	input.CountryRestriction = "DE"

	result, err := svc.Prepare(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(result.Payments))
	}
	if result.Payments[0].MandateReference != german.Profile.MandateReference {
		t.Error("Expected only the German account to be collected")
	}

	input.ExcludeCountry = true
	result, err = svc.Prepare(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Payments) != 1 {
		t.Fatalf("Expected 1 payment, got %d", len(result.Payments))
	}
	if result.Payments[0].MandateReference != british.Profile.MandateReference {
		t.Error("Expected only the non-German account to be collected")
	}
}

func TestPrepare_NumberRangeFilter(t *testing.T) {
	low := eligibleMember("5", "DE89370400440532013000", "-10")
	mid := eligibleMember("150", "DE89370400440532013000", "-10")
	high := eligibleMember("900", "DE89370400440532013000", "-10")
	svc, _, _, _ := newBatchFixture(low, mid, high)

	input := prepareInput()
	input.NumberRanges = []NumberRange{{Low: 1, High: 10}, {Low: 800, High: 999}}

	result, err := svc.Prepare(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(result.Payments) != 2 {
		t.Fatalf("Expected 2 payments, got %d", len(result.Payments))
	}
	for _, p := range result.Payments {
		if p.MandateReference == mid.Profile.MandateReference {
			t.Error("Expected member 150 to be filtered out")
		}
	}
}

func TestPrepare_EmptyBatchIsFlagged(t *testing.T) {
	svc, batchRepo, _, _ := newBatchFixture()

	result, err := svc.Prepare(context.Background(), prepareInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if result.Batch.PaymentCount != 0 {
		t.Errorf("Expected 0 payments, got %d", result.Batch.PaymentCount)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(result.Warnings))
	}
	if _, ok := batchRepo.Batches[result.Batch.ID]; !ok {
		t.Error("Expected the empty batch to still be persisted")
	}
}

func TestPrepare_ArchiveFailureDoesNotFailBuild(t *testing.T) {
	member := eligibleMember("000042", "DE89370400440532013000", "-42.50")
	svc, batchRepo, _, archive := newBatchFixture(member)
	archive.PutErr = errors.New("bucket unavailable")

	result, err := svc.Prepare(context.Background(), prepareInput())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, ok := batchRepo.Batches[result.Batch.ID]; !ok {
		t.Error("Expected the batch to be persisted despite the archive failure")
	}
}
