package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/service"
	"github.com/kassenwart/kassenwart-backend/internal/testutil"
	"github.com/labstack/echo/v4"
)

func TestAssignMandates(t *testing.T) {
	e := echo.New()
	member := testMember("7", -25, domain.SepaProfile{
		IBAN: "DE89370400440532013000", BIC: "MARKDEF1100", DirectDebitEnabled: true,
	})
	memberRepo := testutil.NewMockMemberRepository(member)
	svc := service.NewMandateService(memberRepo, service.NewEligibilityService(memberRepo), handlerDebitConfig())
	handler := NewMandateHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/directdebit/mandates/assign", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Assign(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var summary service.AssignmentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if summary.Assigned != 1 {
		t.Errorf("Expected 1 assignment, got %d", summary.Assigned)
	}
	if summary.Failed != 0 {
		t.Errorf("Expected no failures, got %d", summary.Failed)
	}
	if len(memberRepo.Assignments) != 1 {
		t.Errorf("Expected the assignment to be persisted, got %d", len(memberRepo.Assignments))
	}
}

func TestAssignMandates_NothingToDo(t *testing.T) {
	e := echo.New()
	memberRepo := testutil.NewMockMemberRepository()
	svc := service.NewMandateService(memberRepo, service.NewEligibilityService(memberRepo), handlerDebitConfig())
	handler := NewMandateHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/directdebit/mandates/assign", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := handler.Assign(c); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	var summary service.AssignmentSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if summary.Assigned != 0 || summary.Failed != 0 {
		t.Errorf("Expected an empty run, got %+v", summary)
	}
}
