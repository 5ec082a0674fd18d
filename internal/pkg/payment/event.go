package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/subscription"
)

// MetadataCorrelationKey is the subscription metadata key carrying the chat
// user id that links provider and chat identities.
const MetadataCorrelationKey = "telegram_id"

var validate = validator.New()

// MetadataResolver resolves payload references the event itself does not
// carry: invoice events name a subscription whose metadata holds the
// correlation key, and created events name a customer whose contact details
// seed the ledger row.
type MetadataResolver interface {
	SubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error)
	CustomerContact(ctx context.Context, customerID string) (name string, email string, err error)
}

// EventParser turns verified raw webhook bytes into typed events. Unknown
// event types parse to EventIgnored, never to an error: the fails-closed
// default is to acknowledge and drop.
type EventParser struct {
	resolver MetadataResolver
}

// NewEventParser wires a parser; resolver may be nil, which skips
// reference resolution (invoice events then rely on inline metadata only).
func NewEventParser(resolver MetadataResolver) *EventParser {
	return &EventParser{resolver: resolver}
}

type eventEnvelope struct {
	ID      string `json:"id" validate:"required"`
	Type    string `json:"type" validate:"required"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object" validate:"required"`
	} `json:"data"`
}

type subscriptionObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Customer string            `json:"customer"`
	Metadata map[string]string `json:"metadata"`
	Plan     struct {
		ID string `json:"id"`
	} `json:"plan"`
	Items struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type invoiceObject struct {
	ID                  string `json:"id"`
	BillingReason       string `json:"billing_reason"`
	Customer            string `json:"customer"`
	Subscription        string `json:"subscription"`
	SubscriptionDetails struct {
		Metadata map[string]string `json:"metadata"`
	} `json:"subscription_details"`
}

// Parse converts raw payload bytes into a typed event. A malformed body is
// a parse error (the boundary treats it like a verification failure);
// unknown event types come back as EventIgnored with a nil error. Resolver
// failures are not errors either: the event comes back with an empty
// correlation key and the boundary flags it for manual reconciliation.
func (p *EventParser) Parse(ctx context.Context, payload []byte) (subscription.Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return subscription.Event{}, fmt.Errorf("malformed event payload: %w", err)
	}
	if err := validate.Struct(&env); err != nil {
		return subscription.Event{}, fmt.Errorf("incomplete event payload: %w", err)
	}

	ev := subscription.Event{
		ID:         env.ID,
		Type:       mapEventType(env.Type),
		ReceivedAt: time.Now(),
		Raw:        append(json.RawMessage(nil), payload...),
	}
	if ev.Type == subscription.EventIgnored {
		return ev, nil
	}

	switch ev.Type {
	case subscription.EventCreated, subscription.EventDeleted:
		var sub subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &sub); err != nil {
			return subscription.Event{}, fmt.Errorf("malformed subscription object: %w", err)
		}
		ev.CorrelationKey = sub.Metadata[MetadataCorrelationKey]
		ev.PlanRef = planRef(sub)
		ev.Trialing = sub.Status == "trialing"
		if ev.Type == subscription.EventCreated {
			p.resolveContact(ctx, &ev, sub.Customer)
		}

	case subscription.EventPaymentSucceeded, subscription.EventPaymentFailed:
		var inv invoiceObject
		if err := json.Unmarshal(env.Data.Object, &inv); err != nil {
			return subscription.Event{}, fmt.Errorf("malformed invoice object: %w", err)
		}
		ev.BillingReason = inv.BillingReason
		ev.CorrelationKey = inv.SubscriptionDetails.Metadata[MetadataCorrelationKey]
		if ev.CorrelationKey == "" && inv.Subscription != "" && p.resolver != nil {
			meta, err := p.resolver.SubscriptionMetadata(ctx, inv.Subscription)
			if err != nil {
				// Downstream provider outage, not a malformed body. The key
				// stays empty so the boundary flags the stored event for
				// manual reconciliation instead of bouncing the delivery.
				log.Warnf("[Payment] Resolving subscription %s for invoice %s failed: %v", inv.Subscription, inv.ID, err)
			} else {
				ev.CorrelationKey = meta[MetadataCorrelationKey]
			}
		}
	}

	return ev, nil
}

func (p *EventParser) resolveContact(ctx context.Context, ev *subscription.Event, customerID string) {
	if p.resolver == nil || customerID == "" {
		return
	}
	// Best effort: a missing contact only leaves ledger cells blank.
	name, email, err := p.resolver.CustomerContact(ctx, customerID)
	if err != nil {
		return
	}
	ev.DisplayName = name
	ev.Contact = email
}

func planRef(sub subscriptionObject) string {
	if sub.Plan.ID != "" {
		return sub.Plan.ID
	}
	if len(sub.Items.Data) > 0 {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func mapEventType(providerType string) subscription.EventType {
	switch providerType {
	case "customer.subscription.created":
		return subscription.EventCreated
	case "customer.subscription.deleted":
		return subscription.EventDeleted
	case "invoice.payment_succeeded":
		return subscription.EventPaymentSucceeded
	case "invoice.payment_failed":
		return subscription.EventPaymentFailed
	default:
		return subscription.EventIgnored
	}
}
