package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/gatebot/internal/pagination"
)

// Stage is the user's progress through verification.
type Stage string

const (
	StageUnverified   Stage = "unverified"
	StageAwaitingGate Stage = "awaiting_gate"
	StageBrowsing     Stage = "browsing"
)

// Mode is the admin ingestion sub-state.
type Mode string

const (
	ModeNone   Mode = ""
	ModeSingle Mode = "single"
	ModeBulk   Mode = "bulk"
)

// Direction is a pagination step.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// ErrInvalidTransition is returned when an event does not apply to the current stage.
var ErrInvalidTransition = errors.New("invalid session transition")

func invalid(event string, from Stage) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
}

// Browse is the browsing position; only meaningful in StageBrowsing.
type Browse struct {
	Category string
	Page     int
}

// Ingestion is an admin's pending ingestion. Category may be empty for a
// single add without a preselected category.
type Ingestion struct {
	Mode     Mode
	Category string
	// Stored counts items added under this mode.
	Stored int
}

// Active reports whether an ingestion mode is set.
func (i Ingestion) Active() bool {
	return i.Mode != ModeNone
}

// Session is the process-local state of one user. The zero value is a fresh
// unverified session.
type Session struct {
	Stage        Stage
	Browse       Browse
	AgeConfirmed bool
	// Acknowledged records that the user pressed continue after an
	// unverifiable invite link was shown.
	Acknowledged bool
	Ingestion    Ingestion
}

// New returns a fresh session.
func New() Session {
	return Session{Stage: StageUnverified}
}

func (s Session) stage() Stage {
	if s.Stage == "" {
		return StageUnverified
	}
	return s.Stage
}

// Start handles the start command. It is accepted from every stage and drops
// any selected category.
func (s Session) Start(requireAge bool) Session {
	s.Browse = Browse{}
	if requireAge && !s.AgeConfirmed {
		s.Stage = StageAwaitingGate
		return s
	}
	s.Stage = StageBrowsing
	return s
}

// ConfirmAge records the age confirmation and moves an awaiting session to
// browsing. Confirming again while browsing is a no-op.
func (s Session) ConfirmAge() (Session, error) {
	switch s.stage() {
	case StageAwaitingGate:
		s.AgeConfirmed = true
		s.Stage = StageBrowsing
		s.Browse = Browse{}
		return s, nil
	case StageBrowsing:
		s.AgeConfirmed = true
		return s, nil
	}
	return s, invalid("confirm_age", s.stage())
}

// SelectCategory selects a category and resets the page.
func (s Session) SelectCategory(category string) (Session, error) {
	if s.stage() != StageBrowsing {
		return s, invalid("select_category", s.stage())
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return s, fmt.Errorf("%w: empty category", ErrInvalidTransition)
	}
	s.Browse = Browse{Category: category}
	return s, nil
}

// Paginate moves one page in dir. The result is clamped so it never goes
// below 0 nor past the last non-empty page of total items.
func (s Session) Paginate(dir Direction, total, pageSize int) (Session, error) {
	if s.stage() != StageBrowsing || s.Browse.Category == "" {
		return s, invalid("paginate", s.stage())
	}
	page := s.Browse.Page
	switch dir {
	case Next:
		page++
	case Prev:
		page--
	default:
		return s, fmt.Errorf("%w: unknown direction %q", ErrInvalidTransition, dir)
	}
	s.Browse.Page = pagination.Clamp(page, total, pageSize)
	return s, nil
}

// AcknowledgeJoin records that the user claims to have joined.
func (s Session) AcknowledgeJoin() (Session, error) {
	if s.stage() != StageBrowsing {
		return s, invalid("acknowledge_join", s.stage())
	}
	s.Acknowledged = true
	return s, nil
}

// StartBulk enters bulk ingestion for category. An active mode is
// overwritten (last write wins).
func (s Session) StartBulk(category string) (Session, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return s, fmt.Errorf("%w: bulk ingestion needs a category", ErrInvalidTransition)
	}
	s.Ingestion = Ingestion{Mode: ModeBulk, Category: category}
	return s, nil
}

// StartSingle waits for one upload, tagged with category when it is not empty.
func (s Session) StartSingle(category string) Session {
	s.Ingestion = Ingestion{Mode: ModeSingle, Category: strings.TrimSpace(category)}
	return s
}

// FinishIngestion clears the ingestion mode and returns the one that was
// active. It is a no-op without an active mode.
func (s Session) FinishIngestion() (Session, Ingestion) {
	prev := s.Ingestion
	s.Ingestion = Ingestion{}
	return s, prev
}
