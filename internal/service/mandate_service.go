package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kassenwart/kassenwart-backend/internal/config"
	"github.com/kassenwart/kassenwart-backend/internal/domain"
	"github.com/kassenwart/kassenwart-backend/internal/websocket"
	"github.com/rs/zerolog/log"
)

// referenceAlphabet is the random-fill character set. Letters that are easy
// to misread or mistype on paper forms are excluded: X B G I O Q S Z.
const referenceAlphabet = "ACDEFHJKLMNPRTUVWY"

// maxAllocationAttempts bounds collision retries per member.
const maxAllocationAttempts = 3

// MandateService allocates unique mandate references and assigns them to
// members, one member per transaction.
type MandateService struct {
	memberRepo  domain.MemberRepository
	eligibility *EligibilityService
	cfg         config.DebitConfig
	publisher   websocket.EventPublisher
	now         func() time.Time
}

// NewMandateService creates a new MandateService
func NewMandateService(memberRepo domain.MemberRepository, eligibility *EligibilityService, cfg config.DebitConfig) *MandateService {
	return &MandateService{
		memberRepo:  memberRepo,
		eligibility: eligibility,
		cfg:         cfg,
		now:         time.Now,
	}
}

// SetEventPublisher sets the event publisher for real-time updates
func (s *MandateService) SetEventPublisher(publisher websocket.EventPublisher) {
	s.publisher = publisher
}

func (s *MandateService) publishEvent(event websocket.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// AssignmentSummary reports the outcome of a bulk assignment run. Failures
// never abort the run; each member is processed independently.
type AssignmentSummary struct {
	Assigned int `json:"assigned"`
	Failed   int `json:"failed"`
}

// AssignMissing allocates and persists a mandate reference for every member
// that is ready for direct debit except for the missing reference. Each
// assignment is its own transaction together with its outbox notification,
// so one failure does not roll back earlier successes.
func (s *MandateService) AssignMissing(ctx context.Context) (*AssignmentSummary, error) {
	members, err := s.eligibility.MembersInState(ctx, domain.DebitStateNoMandateReference)
	if err != nil {
		return nil, err
	}

	summary := &AssignmentSummary{}
	for _, member := range members {
		if err := s.assignOne(ctx, member); err != nil {
			summary.Failed++
			log.Warn().
				Err(err).
				Str("member_id", member.ID.String()).
				Str("member_number", member.Number).
				Msg("Mandate assignment failed")
			continue
		}
		summary.Assigned++
	}

	log.Info().
		Int("assigned", summary.Assigned).
		Int("failed", summary.Failed).
		Msg("Mandate assignment run finished")

	return summary, nil
}

func (s *MandateService) assignOne(ctx context.Context, member *domain.Member) error {
	if member.Profile.MandateReference != "" {
		return domain.ErrMandateAlreadyAssigned
	}

	reference, err := s.Allocate(ctx, member)
	if err != nil {
		return err
	}

	assignedAt := s.now()
	notification := s.renderNotification(member, reference)

	// The storage layer's unique constraint is the real backstop against a
	// concurrent allocation landing between our check and this insert.
	if err := s.memberRepo.AssignMandate(ctx, member.ID, reference, assignedAt, notification); err != nil {
		return err
	}

	s.publishEvent(websocket.MandateAssigned(map[string]string{
		"memberId":         member.ID.String(),
		"mandateReference": reference,
	}))

	return nil
}

// Allocate produces a collision-checked mandate reference for the member:
// prefix + 4-digit year + random fill + member number field, uppercased,
// of exactly the configured total length. It retries up to
// maxAllocationAttempts times on collision and then reports
// ErrAllocationExhausted.
func (s *MandateService) Allocate(ctx context.Context, member *domain.Member) (string, error) {
	for attempt := 0; attempt < maxAllocationAttempts; attempt++ {
		reference, err := s.format(member)
		if err != nil {
			return "", err
		}

		// Collisions are checked against every assignment ever made, not
		// just active members.
		exists, err := s.memberRepo.MandateReferenceExists(ctx, reference)
		if err != nil {
			return "", err
		}
		if !exists {
			return reference, nil
		}

		log.Debug().
			Str("member_id", member.ID.String()).
			Int("attempt", attempt+1).
			Msg("Mandate reference collision, retrying")
	}
	return "", domain.ErrAllocationExhausted
}

func (s *MandateService) format(member *domain.Member) (string, error) {
	year := fmt.Sprintf("%04d", s.now().Year())
	numberField := memberNumberField(member.Number)

	fillLen := s.cfg.MandateReferenceLength - len(s.cfg.MandateReferencePrefix) - len(year) - len(numberField)
	if fillLen < 0 {
		return "", domain.ErrReferenceTooShort
	}

	fill, err := randomFill(fillLen)
	if err != nil {
		return "", err
	}

	return strings.ToUpper(s.cfg.MandateReferencePrefix + year + fill + numberField), nil
}

// memberNumberField encodes the membership number as a fixed 6-digit field,
// or an X-prefixed literal when the number is not numeric.
func memberNumberField(number string) string {
	if n, err := strconv.ParseUint(number, 10, 64); err == nil {
		return fmt.Sprintf("%0*d", domain.MemberNumberDigits, n)
	}
	return "X" + number
}

func randomFill(n int) (string, error) {
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(out), nil
}

// renderNotification fills the mandate notification templates with the
// member's SEPA data. Placeholders use the {name} form the templates have
// always used.
func (s *MandateService) renderNotification(member *domain.Member, reference string) *domain.Notification {
	replacer := strings.NewReplacer(
		"{association_name}", s.cfg.AssociationName,
		"{sepa_mandate_reference}", reference,
		"{sepa_iban}", member.Profile.IBAN,
		"{sepa_bic}", member.Profile.BIC,
		"{creditor_id}", s.cfg.CreditorID,
		"{contact}", s.cfg.ContactAddress,
		"{additional_information}", s.cfg.AdditionalInformation,
	)

	return &domain.Notification{
		ID:        uuid.New(),
		MemberID:  member.ID,
		Subject:   replacer.Replace(s.cfg.NotificationSubject),
		Body:      replacer.Replace(s.cfg.NotificationBody),
		CreatedAt: s.now(),
	}
}
