package service

import (
	"context"
	"sort"

	"github.com/kassenwart/kassenwart-backend/internal/domain"
)

// EligibilityService classifies the member population into the readiness
// categories used by the dashboard and by batch construction.
type EligibilityService struct {
	memberRepo domain.MemberRepository
}

// NewEligibilityService creates a new EligibilityService
func NewEligibilityService(memberRepo domain.MemberRepository) *EligibilityService {
	return &EligibilityService{memberRepo: memberRepo}
}

// Classify assigns the member exactly one readiness category. Profile
// defects are checked in precedence order and do not depend on the balance;
// the final inactive/ok split only exists for members that actually owe
// fees, so a defect-free member with nothing due reports counted=false.
func Classify(m *domain.Member) (state domain.DebitState, counted bool) {
	p := m.Profile
	switch {
	case p.IBAN != "" && !domain.ValidIBAN(p.IBAN):
		return domain.DebitStateInvalidIBAN, true
	case p.BIC != "" && !domain.ValidBIC(p.BIC):
		return domain.DebitStateInvalidBIC, true
	case p.MandateRescinded:
		return domain.DebitStateRescinded, true
	case p.DebitBounced:
		return domain.DebitStateBounced, true
	case p.BIC == "":
		return domain.DebitStateNoBIC, true
	case p.IBAN == "":
		return domain.DebitStateNoIBAN, true
	case p.MandateReference == "":
		return domain.DebitStateNoMandateReference, true
	}
	if !m.HasDueBalance() {
		return domain.DebitStateOK, false
	}
	if !p.DirectDebitEnabled {
		return domain.DebitStateInactive, true
	}
	return domain.DebitStateOK, true
}

// Segmentation is the counts-by-category view of the population. Counts
// covers members with a due balance only; its values are pairwise disjoint
// and sum to WithDueBalance.
type Segmentation struct {
	TotalMembers   int                      `json:"totalMembers"`
	WithDueBalance int                      `json:"withDueBalance"`
	Counts         map[domain.DebitState]int `json:"counts"`
}

// Segment classifies the full population and tallies the due-balance
// members per category.
func (s *EligibilityService) Segment(ctx context.Context) (*Segmentation, error) {
	members, err := s.memberRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	seg := &Segmentation{
		TotalMembers: len(members),
		Counts:       make(map[domain.DebitState]int),
	}
	for _, m := range members {
		if !m.HasDueBalance() {
			continue
		}
		seg.WithDueBalance++
		state, _ := Classify(m)
		seg.Counts[state]++
	}
	return seg, nil
}

// AllMembers returns the full population ordered by member number.
func (s *EligibilityService) AllMembers(ctx context.Context) ([]*domain.Member, error) {
	members, err := s.memberRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool { return members[i].Number < members[j].Number })
	return members, nil
}

// MembersInState returns the due-balance members in the given category,
// ordered by member number for stable output.
func (s *EligibilityService) MembersInState(ctx context.Context, state domain.DebitState) ([]*domain.Member, error) {
	members, err := s.memberRepo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var result []*domain.Member
	for _, m := range members {
		if !m.HasDueBalance() {
			continue
		}
		if got, _ := Classify(m); got == state {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

// EligibleMembers returns exactly the ok-with-due-balance subset that batch
// construction may collect from.
func (s *EligibilityService) EligibleMembers(ctx context.Context) ([]*domain.Member, error) {
	return s.MembersInState(ctx, domain.DebitStateOK)
}
