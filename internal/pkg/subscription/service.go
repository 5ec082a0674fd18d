package subscription

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/johnnybasgallop/DMOTelegramBot/app/models"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/ledger"
)

// ErrMissingCorrelationKey marks an actionable event that cannot be linked
// to a chat user. Such events are flagged for manual reconciliation and
// never actuated.
var ErrMissingCorrelationKey = errors.New("actionable event missing correlation key")

// ErrNotSubscribed is returned by RequestCancel when the provider has no
// subscription for the caller.
var ErrNotSubscribed = errors.New("no active subscription found")

// Actuator grants or revokes chat-group access for one correlation key.
// Both operations are idempotent and never panic; failures come back as
// errors the service logs and absorbs.
type Actuator interface {
	Grant(ctx context.Context, key string) error
	Revoke(ctx context.Context, key string) error
}

// PaymentGateway is what the user-cancel flow needs from the payment
// provider.
type PaymentGateway interface {
	FindSubscriptionByKey(ctx context.Context, key string) (id string, found bool, err error)
	CancelAtPeriodEnd(ctx context.Context, id string) error
}

// Service applies billing events: fresh ledger lookup, transition, actuation
// and ledger/mirror writes. ProcessEvent must only run on the runtime
// goroutine that owns the chat client (see the dispatcher).
type Service struct {
	ledger        ledger.Ledger
	actuator      Actuator
	payments      PaymentGateway
	repo          Repository
	monitoredPlan string
}

// NewService wires the processing service. repo may be nil (mirror writes
// are skipped); payments may be nil when the cancel command is not served.
func NewService(led ledger.Ledger, act Actuator, payments PaymentGateway, repo Repository, monitoredPlan string) *Service {
	return &Service{
		ledger:        led,
		actuator:      act,
		payments:      payments,
		repo:          repo,
		monitoredPlan: strings.TrimSpace(monitoredPlan),
	}
}

// ProcessEvent applies one verified event. Actuator and ledger failures are
// logged and absorbed: the billing fact is authoritative regardless of
// delivery success, so a failed grant or an unreachable ledger never
// reverses the transition.
func (s *Service) ProcessEvent(ctx context.Context, ev Event) error {
	if !ev.Actionable() {
		log.Debugf("[Subscription] Ignoring event %s (type %s)", ev.ID, ev.Type)
		return nil
	}
	if strings.TrimSpace(ev.CorrelationKey) == "" {
		return ErrMissingCorrelationKey
	}

	current := StatusUnknown
	row, err := s.ledger.Find(ctx, ev.CorrelationKey)
	if err != nil {
		// Recoverable: process from Unknown, the transition does not depend
		// on history beyond the current row.
		log.Errorf("[Subscription] Ledger lookup failed for key %s: %v", ev.CorrelationKey, err)
	} else if row != nil {
		current = StatusFromLabel(row.StatusLabel)
	}

	out := Transition(current, ev, s.monitoredPlan)
	if !out.Apply {
		log.Infof("[Subscription] Event %s (type %s) not applicable for key %s", ev.ID, ev.Type, ev.CorrelationKey)
		return nil
	}

	switch out.Action {
	case ActionGrant:
		if err := s.actuator.Grant(ctx, ev.CorrelationKey); err != nil {
			log.Errorf("[Subscription] Grant failed for key %s: %v", ev.CorrelationKey, err)
		}
	case ActionRevoke:
		if err := s.actuator.Revoke(ctx, ev.CorrelationKey); err != nil {
			log.Errorf("[Subscription] Revoke failed for key %s: %v", ev.CorrelationKey, err)
		}
	}

	if err := s.ledger.Upsert(ctx, ev.CorrelationKey, out.Status.Label(), s.newRowFor(ev, out)); err != nil {
		log.Errorf("[Subscription] Ledger upsert failed for key %s: %v", ev.CorrelationKey, err)
	}

	s.recordMirror(ev.CorrelationKey, out.Status, ev.PlanRef, ev.Type)
	log.Infof("[Subscription] Applied %s for key %s: status=%s", ev.Type, ev.CorrelationKey, out.Status)
	return nil
}

// RequestCancel schedules the caller's subscription to cancel at period end.
// Access is not revoked; that happens when the provider's deleted event
// arrives.
func (s *Service) RequestCancel(ctx context.Context, key string) error {
	if s.payments == nil {
		return errors.New("payment gateway not configured")
	}

	id, found, err := s.payments.FindSubscriptionByKey(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotSubscribed
	}
	if err := s.payments.CancelAtPeriodEnd(ctx, id); err != nil {
		return err
	}

	ev := Event{Type: EventUserCancelRequest, CorrelationKey: key, ReceivedAt: time.Now()}
	out := Transition(StatusActive, ev, s.monitoredPlan)
	if err := s.ledger.Upsert(ctx, key, out.Status.Label(), s.newRowFor(ev, out)); err != nil {
		log.Errorf("[Subscription] Ledger upsert failed for key %s: %v", key, err)
	}
	s.recordMirror(key, out.Status, "", EventUserCancelRequest)
	log.Infof("[Subscription] Cancel at period end scheduled for key %s", key)
	return nil
}

func (s *Service) newRowFor(ev Event, out Outcome) ledger.Row {
	name := ev.DisplayName
	if ev.Contact != "" {
		name = name + " (" + ev.Contact + ")"
	}
	return ledger.Row{
		Key:         ev.CorrelationKey,
		DisplayName: name,
		Contact:     ev.Contact,
		DateStarted: time.Now().Format("2006-01-02"),
		PlanLabel:   "Subscription",
		StatusLabel: out.Status.Label(),
	}
}

func (s *Service) recordMirror(key string, status Status, planRef string, eventType EventType) {
	if s.repo == nil {
		return
	}
	now := time.Now()
	err := s.repo.UpsertSubscriber(&models.Subscriber{
		CorrelationKey: key,
		Status:         string(status),
		PlanRef:        planRef,
		LastEventType:  string(eventType),
		LastEventAt:    &now,
	})
	if err != nil {
		log.Errorf("[Subscription] Mirror upsert failed for key %s: %v", key, err)
	}
}
