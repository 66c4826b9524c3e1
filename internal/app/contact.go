package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"guesthouse/internal/adapters/observability"
	"guesthouse/internal/domain"
)

// Renderer turns a routed submission into the html and text mail bodies.
type Renderer interface {
	Render(r domain.Route, sub domain.Submission, ref string, at time.Time) (html, text string, err error)
}

type ContactService struct {
	boxes  domain.Mailboxes
	mode   domain.Mode
	tpl    Renderer
	mailer domain.Mailer
	repo   domain.ContentRepository
	from   string

	now   func() time.Time
	newID func() string
}

func NewContactService(boxes domain.Mailboxes, mode domain.Mode, tpl Renderer, m domain.Mailer, r domain.ContentRepository, from string) *ContactService {
	return &ContactService{
		boxes:  boxes,
		mode:   mode,
		tpl:    tpl,
		mailer: m,
		repo:   r,
		from:   from,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
}

// Submit routes, renders and sends one submission. The returned id is the
// submission reference (also used as the delivery idempotency key); it is
// set even when delivery fails. Mailer errors are returned as is.
func (s *ContactService) Submit(ctx context.Context, sub domain.Submission) (string, error) {
	boxes := s.boxes
	if s.mode == domain.ModeProduction && s.repo != nil {
		boxes.Known = s.knownHouse(ctx)
	}
	route, err := boxes.Route(sub, s.mode)
	if err != nil {
		return "", err
	}
	kind := string(route.Template)
	label := s.routeLabel(route)

	id := s.newID()
	at := s.now()
	html, text, err := s.tpl.Render(route, sub, id, at)
	if err != nil {
		observability.ObserveContact(kind, label, "error")
		return "", fmt.Errorf("contact %s: %w", kind, err)
	}

	msgID, sendErr := s.mailer.Send(ctx, domain.Message{
		ID:      id,
		From:    s.from,
		To:      route.To,
		ReplyTo: sub.Submitter().Email,
		Subject: route.Subject,
		HTML:    html,
		Text:    text,
	})

	rec := domain.SubmissionRecord{
		ID:        id,
		Kind:      route.Template,
		To:        route.To,
		Email:     sub.Submitter().Email,
		Status:    "sent",
		CreatedAt: at,
	}
	if sendErr != nil {
		msg := sendErr.Error()
		rec.Status, rec.Error = "failed", &msg
	} else if msgID != "" {
		rec.MessageID = &msgID
	}
	if b, err := json.Marshal(sub); err == nil {
		rec.Payload = b
	}
	if s.repo != nil {
		if err := s.repo.LogSubmission(ctx, rec); err != nil {
			log.Warn().Str("id", id).Err(err).Msg("submission log failed")
		}
	}

	observability.ObserveContact(kind, label, rec.Status)
	if sendErr != nil {
		log.Warn().Str("id", id).Str("kind", kind).Str("route", label).Err(sendErr).Msg("contact delivery failed")
		return id, sendErr
	}
	log.Info().Str("id", id).Str("kind", kind).Str("route", label).Msg("contact delivered")
	return id, nil
}

// knownHouse matches places against the synced houses. A failed lookup
// knows no house, so the submission falls back to the general mailbox.
func (s *ContactService) knownHouse(ctx context.Context) func(string) bool {
	return func(place string) bool {
		docs, err := s.repo.ListDocuments(ctx, domain.DocHouse, nil)
		if err != nil {
			log.Warn().Err(err).Msg("house lookup for contact routing failed")
			return false
		}
		return lo.Contains(houseSlugs(docs), place)
	}
}

func (s *ContactService) routeLabel(r domain.Route) string {
	switch {
	case s.mode != domain.ModeProduction:
		return "development"
	case r.To == s.boxes.General:
		return "general"
	default:
		return "place"
	}
}
