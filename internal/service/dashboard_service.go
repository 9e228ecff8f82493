package service

import (
	"context"
	"time"

	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/util"
)

// DashboardService derives the collection-readiness funnel shown on the
// direct-debit dashboard.
type DashboardService struct {
	eligibility *EligibilityService
	cfg         config.DebitConfig
	now         func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(eligibility *EligibilityService, cfg config.DebitConfig) *DashboardService {
	return &DashboardService{
		eligibility: eligibility,
		cfg:         cfg,
		now:         time.Now,
	}
}

// DashboardSummary is the funnel view over the due-balance population. Each
// With* figure narrows the previous one by a single defect category.
type DashboardSummary struct {
	AllMembers     int `json:"allMembers"`
	WithDueBalance int `json:"withDueBalance"`

	WithIBAN             int `json:"withIban"`
	WithValidIBAN        int `json:"withValidIban"`
	WithActiveSepa       int `json:"withActiveSepa"`
	WithInactiveSepa     int `json:"withInactiveSepa"`
	WithRescindedSepa    int `json:"withRescindedSepa"`
	WithBouncedSepa      int `json:"withBouncedSepa"`
	WithBIC              int `json:"withBic"`
	WithMandateReference int `json:"withMandateReference"`

	WithoutMandateReference int `json:"withoutMandateReference"`
	WithoutBIC              int `json:"withoutBic"`
	WithoutValidIBAN        int `json:"withoutValidIban"`

	Counts map[domain.DebitState]int `json:"counts"`

	SuggestedDebitDate time.Time `json:"suggestedDebitDate"`
}

// Summary segments the population and folds the category counts into the
// dashboard funnel. The funnel bottom equals the ok count by construction.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	seg, err := s.eligibility.Segment(ctx)
	if err != nil {
		return nil, err
	}
	c := seg.Counts

	withIBAN := seg.WithDueBalance - c[domain.DebitStateNoIBAN]
	withValidIBAN := withIBAN - c[domain.DebitStateInvalidIBAN]
	withActive := withValidIBAN - c[domain.DebitStateRescinded] - c[domain.DebitStateBounced] - c[domain.DebitStateInactive]
	withBIC := withActive - c[domain.DebitStateNoBIC] - c[domain.DebitStateInvalidBIC]
	withMandate := withBIC - c[domain.DebitStateNoMandateReference]

	return &DashboardSummary{
		AllMembers:     seg.TotalMembers,
		WithDueBalance: seg.WithDueBalance,

		WithIBAN:             withIBAN,
		WithValidIBAN:        withValidIBAN,
		WithActiveSepa:       withActive,
		WithInactiveSepa:     c[domain.DebitStateInactive],
		WithRescindedSepa:    c[domain.DebitStateRescinded],
		WithBouncedSepa:      c[domain.DebitStateBounced],
		WithBIC:              withBIC,
		WithMandateReference: withMandate,

		WithoutMandateReference: c[domain.DebitStateNoMandateReference],
		WithoutBIC:              c[domain.DebitStateNoBIC],
		WithoutValidIBAN:        c[domain.DebitStateInvalidIBAN],

		Counts: c,

		SuggestedDebitDate: s.SuggestedDebitDate(),
	}, nil
}

// SuggestedDebitDate is the default collection date for the prepare form:
// lead time added to today, rolled to the next business day of the
// configured region.
func (s *DashboardService) SuggestedDebitDate() time.Time {
	return util.NextDebitDate(s.cfg.DebitLeadDays, s.now(), s.cfg.HolidayRegion)
}
