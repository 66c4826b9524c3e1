package domain

import (
	"fmt"
	"regexp"
	"strings"
)

type Kind string

const (
	KindTour   Kind = "tour"
	KindMoveIn Kind = "move-in"
	KindOther  Kind = "other"
)

type Mode string

const (
	ModeProduction    Mode = "production"
	ModeNonProduction Mode = "non-production"
)

type Account struct {
	Name        string  `json:"name"`
	Email       string  `json:"email"`
	Phone       *string `json:"phone,omitempty"`
	Nationality string  `json:"nationality"`
	Gender      string  `json:"gender"`
	Age         int     `json:"age"`
}

// Submission is a validated contact form payload. The set of variants is
// closed: TourSubmission, MoveInSubmission and OtherSubmission.
type Submission interface {
	Kind() Kind
	Submitter() Account
	submission()
}

type TourSubmission struct {
	Account Account  `json:"account"`
	Places  []string `json:"places"`
	Date    string   `json:"date"`
	Hour    string   `json:"hour"`
}

type MoveInSubmission struct {
	Account      Account  `json:"account"`
	Places       []string `json:"places"`
	Date         string   `json:"date"`
	StayDuration string   `json:"stayDuration"`
}

type OtherSubmission struct {
	Account Account `json:"account"`
	Message string  `json:"message"`
}

func (TourSubmission) Kind() Kind   { return KindTour }
func (MoveInSubmission) Kind() Kind { return KindMoveIn }
func (OtherSubmission) Kind() Kind  { return KindOther }

func (s TourSubmission) Submitter() Account   { return s.Account }
func (s MoveInSubmission) Submitter() Account { return s.Account }
func (s OtherSubmission) Submitter() Account  { return s.Account }

func (TourSubmission) submission()   {}
func (MoveInSubmission) submission() {}
func (OtherSubmission) submission()  {}

// Route is where a submission goes and how it is rendered.
type Route struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	Template Kind   `json:"template"`
}

// Mailboxes holds the contact destinations.
type Mailboxes struct {
	Development string // receives everything outside production
	General     string
	PlaceDomain string // place mailboxes are <place>@PlaceDomain

	// Known reports whether place names a published house. Places it
	// rejects are routed to General. Nil accepts every place identifier.
	Known func(place string) bool
}

var placeID = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// NormalizePlace trims and lower-cases a place name.
func NormalizePlace(place string) string {
	return strings.ToLower(strings.TrimSpace(place))
}

// IsPlaceID reports whether place is a house slug (lower-case letters,
// digits and single hyphens).
func IsPlaceID(place string) bool {
	return len(place) <= 60 && placeID.MatchString(place)
}

// PlaceMailbox derives the dedicated mailbox of a house from its identifier.
// It returns "" when place is not an identifier.
func (m Mailboxes) PlaceMailbox(place string) string {
	p := NormalizePlace(place)
	if !IsPlaceID(p) || m.PlaceDomain == "" {
		return ""
	}
	return p + "@" + m.PlaceDomain
}

func (m Mailboxes) placeRoute(place string) string {
	to := m.PlaceMailbox(place)
	if to == "" || (m.Known != nil && !m.Known(NormalizePlace(place))) {
		return m.General
	}
	return to
}

// Route picks the destination, subject and template for sub.
func (m Mailboxes) Route(sub Submission, mode Mode) (Route, error) {
	var (
		places  []string
		subject string
	)
	switch s := deref(sub).(type) {
	case TourSubmission:
		places, subject = s.Places, "Tour request from %s"
	case MoveInSubmission:
		places, subject = s.Places, "Move-in request from %s"
	case OtherSubmission:
		subject = "Inquiry from %s"
	default:
		return Route{}, invariant("route", "unknown submission type %T", sub)
	}

	r := Route{
		Subject:  fmt.Sprintf(subject, sub.Submitter().Name),
		Template: sub.Kind(),
	}
	switch {
	case mode != ModeProduction:
		r.To = m.Development
	case len(places) == 1:
		r.To = m.placeRoute(places[0])
	default:
		r.To = m.General
	}
	return r, nil
}

// deref unwraps pointer variants; a nil pointer comes back as nil.
func deref(sub Submission) Submission {
	switch s := sub.(type) {
	case *TourSubmission:
		if s != nil {
			return *s
		}
	case *MoveInSubmission:
		if s != nil {
			return *s
		}
	case *OtherSubmission:
		if s != nil {
			return *s
		}
	default:
		return sub
	}
	return nil
}
