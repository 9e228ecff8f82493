package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/testutil"
	"github.com/shopspring/decimal"
)

func testDebitConfig() config.DebitConfig {
	return config.DebitConfig{
		CreditorID:             "DE98ZZZ09999999999",
		CreditorName:           "Musterverein e.V.",
		Currency:               "EUR",
		MandateReferencePrefix: "KW",
		MandateReferenceLength: 22,
		DebitLeadDays:          14,
		HolidayRegion:          "DE",
		AssociationName:        "Musterverein e.V.",
		ContactAddress:         "kasse@musterverein.example",
		NotificationSubject:    config.DefaultNotificationSubject,
		NotificationBody:       config.DefaultNotificationBody,
	}
}

func debitReadyMember(number string) *domain.Member {
	return &domain.Member{
		ID:      uuid.New(),
		Number:  number,
		Name:    "Erika Mustermann",
		Email:   "erika@example.org",
		Balance: decimal.NewFromInt(-50),
		Profile: domain.SepaProfile{
			IBAN:               "DE89370400440532013000",
			BIC:                "MARKDEF1100",
			DirectDebitEnabled: true,
		},
	}
}

func TestAllocate_ReferenceFormat(t *testing.T) {
	member := debitReadyMember("42")
	memberRepo := testutil.NewMockMemberRepository(member)
	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())
	mandateService.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	reference, err := mandateService.Allocate(context.Background(), member)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(reference) != 22 {
		t.Errorf("Expected length 22, got %d (%s)", len(reference), reference)
	}
	if !strings.HasPrefix(reference, "KW2026") {
		t.Errorf("Expected prefix 'KW2026', got %s", reference)
	}
	if !strings.HasSuffix(reference, "000042") {
		t.Errorf("Expected member number suffix '000042', got %s", reference)
	}
	if reference != strings.ToUpper(reference) {
		t.Errorf("Expected uppercase reference, got %s", reference)
	}

	// The random fill sits between the year and the number field and only
	// draws from the restricted alphabet.
	fill := reference[len("KW2026") : len(reference)-len("000042")]
	for _, r := range fill {
		if !strings.ContainsRune(referenceAlphabet, r) {
			t.Errorf("Fill character %q outside allowed alphabet in %s", r, reference)
		}
	}
}

func TestAllocate_NonNumericMemberNumber(t *testing.T) {
	member := debitReadyMember("A17")
	memberRepo := testutil.NewMockMemberRepository(member)
	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	reference, err := mandateService.Allocate(context.Background(), member)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !strings.HasSuffix(reference, "XA17") {
		t.Errorf("Expected X-prefixed literal suffix 'XA17', got %s", reference)
	}
	if len(reference) != 22 {
		t.Errorf("Expected length 22, got %d", len(reference))
	}
}

func TestAllocate_RetriesOnCollision(t *testing.T) {
	member := debitReadyMember("42")
	memberRepo := testutil.NewMockMemberRepository(member)

	var lookups int
	memberRepo.ExistsFn = func(reference string) (bool, error) {
		lookups++
		return lookups < 3, nil
	}

	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	reference, err := mandateService.Allocate(context.Background(), member)
	if err != nil {
		t.Fatalf("Expected success on third attempt, got %v", err)
	}
	if reference == "" {
		t.Error("Expected a reference")
	}
	if lookups != 3 {
		t.Errorf("Expected 3 collision checks, got %d", lookups)
	}
}

func TestAllocate_Exhausted(t *testing.T) {
	member := debitReadyMember("42")
	memberRepo := testutil.NewMockMemberRepository(member)
	memberRepo.ExistsFn = func(reference string) (bool, error) { return true, nil }

	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	_, err := mandateService.Allocate(context.Background(), member)
	if !errors.Is(err, domain.ErrAllocationExhausted) {
		t.Errorf("Expected ErrAllocationExhausted, got %v", err)
	}
}

func TestAllocate_ConfiguredLengthTooShort(t *testing.T) {
	member := debitReadyMember("42")
	memberRepo := testutil.NewMockMemberRepository(member)

	cfg := testDebitConfig()
	cfg.MandateReferenceLength = 10 // prefix + year + number field alone needs 12
	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), cfg)

	_, err := mandateService.Allocate(context.Background(), member)
	if !errors.Is(err, domain.ErrReferenceTooShort) {
		t.Errorf("Expected ErrReferenceTooShort, got %v", err)
	}
}

func TestAssignMissing_AssignsAndNotifies(t *testing.T) {
	member := debitReadyMember("42")
	memberRepo := testutil.NewMockMemberRepository(member)
	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	publisher := &testutil.CapturePublisher{}
	mandateService.SetEventPublisher(publisher)

	summary, err := mandateService.AssignMissing(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summary.Assigned != 1 || summary.Failed != 0 {
		t.Errorf("Expected 1 assigned / 0 failed, got %d / %d", summary.Assigned, summary.Failed)
	}
	if member.Profile.MandateReference == "" {
		t.Fatal("Expected the member profile to carry the new reference")
	}

	if len(memberRepo.Notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(memberRepo.Notifications))
	}
	body := memberRepo.Notifications[0].Body
	if !strings.Contains(body, member.Profile.MandateReference) {
		t.Error("Expected notification body to contain the assigned reference")
	}
	if !strings.Contains(body, "DE89370400440532013000") {
		t.Error("Expected notification body to contain the member IBAN")
	}
	if strings.Contains(body, "{sepa_mandate_reference}") {
		t.Error("Expected placeholders to be replaced")
	}

	events := publisher.Events()
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
}

func TestAssignMissing_FailureDoesNotAbortRun(t *testing.T) {
	first := debitReadyMember("1")
	second := debitReadyMember("2")
	memberRepo := testutil.NewMockMemberRepository(first, second)

	memberRepo.AssignFn = func(memberID uuid.UUID, reference string) error {
		if memberID == first.ID {
			return domain.ErrMandateReferenceTaken
		}
		return nil
	}

	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	summary, err := mandateService.AssignMissing(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if summary.Assigned != 1 {
		t.Errorf("Expected 1 assigned, got %d", summary.Assigned)
	}
	if summary.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", summary.Failed)
	}
	if second.Profile.MandateReference == "" {
		t.Error("Expected the second member to still get a reference")
	}
}

func TestAssignMissing_SkipsMembersWithoutDueBalance(t *testing.T) {
	member := debitReadyMember("42")
	member.Balance = decimal.NewFromInt(10)
	memberRepo := testutil.NewMockMemberRepository(member)
	mandateService := NewMandateService(memberRepo, NewEligibilityService(memberRepo), testDebitConfig())

	summary, err := mandateService.AssignMissing(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary.Assigned != 0 {
		t.Errorf("Expected no assignments, got %d", summary.Assigned)
	}
	if member.Profile.MandateReference != "" {
		t.Error("Expected no reference for a member without due balance")
	}
}
