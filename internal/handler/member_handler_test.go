package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/kassenwart/kassenwart-backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func testMember(number string, balance int64, profile domain.SepaProfile) *domain.Member {
	return &domain.Member{
		ID:      uuid.New(),
		Number:  number,
		Name:    "Member " + number,
		Balance: decimal.NewFromInt(balance),
		Profile: profile,
	}
}

func newMemberHandler(members ...*domain.Member) *MemberHandler {
	memberRepo := testutil.NewMockMemberRepository(members...)
	return NewMemberHandler(service.NewEligibilityService(memberRepo))
}

func TestListMembers_All(t *testing.T) {
	e := echo.New()
	handler := newMemberHandler(
		testMember("2", -10, domain.SepaProfile{}),
		testMember("1", 5, domain.SepaProfile{}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/directdebit/members", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var members []domain.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("Expected 2 members, got %d", len(members))
	}
	if members[0].Number != "1" {
		t.Errorf("Expected member number order, got %s first", members[0].Number)
	}
}

func TestListMembers_ByCategory(t *testing.T) {
	e := echo.New()
	noBIC := testMember("1", -10, domain.SepaProfile{IBAN: "DE89370400440532013000"})
	handler := newMemberHandler(
		noBIC,
		testMember("2", -10, domain.SepaProfile{IBAN: "DE89370400440532013000", BIC: "MARKDEF1100"}),
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/directdebit/members?filter=no_bic", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var members []domain.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("Expected 1 member, got %d", len(members))
	}
	if members[0].ID != noBIC.ID {
		t.Error("Expected the BIC-less member")
	}
}

func TestListMembers_EmptyResultIsArray(t *testing.T) {
	e := echo.New()
	handler := newMemberHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/directdebit/members?filter=bounced", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("Expected an empty JSON array, got %q", body)
	}
}

func TestListMembers_UnknownFilter(t *testing.T) {
	e := echo.New()
	handler := newMemberHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/directdebit/members?filter=sepalicious", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.List(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rec.Code)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rec.Body.Bytes(), &problem); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if problem.Type != ErrorTypeValidation {
		t.Errorf("Expected validation problem type, got %s", problem.Type)
	}
}
