package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/johnnybasgallop/DMOTelegramBot/app/models"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/dispatcher"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/payment"
	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/subscription"
)

// WebhookController is the HTTP boundary for provider webhooks. It verifies,
// parses and deduplicates on the request goroutine, then hands the billing
// fact to the dispatcher; no chat-client or ledger work happens here.
type WebhookController struct {
	secret    string
	tolerance time.Duration
	parser    *payment.EventParser
	repo      subscription.Repository
	disp      *dispatcher.Dispatcher
	svc       *subscription.Service
	now       func() time.Time
}

func NewWebhookController(secret string, tolerance time.Duration, parser *payment.EventParser, repo subscription.Repository, disp *dispatcher.Dispatcher, svc *subscription.Service) *WebhookController {
	return &WebhookController{
		secret:    secret,
		tolerance: tolerance,
		parser:    parser,
		repo:      repo,
		disp:      disp,
		svc:       svc,
		now:       time.Now,
	}
}

// HandleProviderWebhook accepts one provider event. Verification failure is
// a 400 with zero side effects; everything past verification acknowledges
// with 200 so the provider stops retrying.
func (wc *WebhookController) HandleProviderWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	header := c.Get("Stripe-Signature")

	if err := payment.VerifySignature(rawBody, header, wc.secret, wc.tolerance, wc.now()); err != nil {
		log.Warnf("[Webhook] Rejected event: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	ev, err := wc.parser.Parse(ctx, rawBody)
	if err != nil {
		log.Warnf("[Webhook] Rejected event: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if ev.Type == subscription.EventIgnored {
		return c.Status(fiber.StatusOK).Send(nil)
	}

	stored, duplicate := wc.record(ev)
	if duplicate {
		log.Infof("[Webhook] Duplicate event %s, acknowledged without processing", ev.ID)
		return c.Status(fiber.StatusOK).Send(nil)
	}

	if ev.CorrelationKey == "" {
		// Cannot be linked to a chat user; flag for manual reconciliation.
		log.Errorf("[Webhook] Event %s (type %s) has no correlation key", ev.ID, ev.Type)
		wc.markProcessed(stored, subscription.ErrMissingCorrelationKey)
		return c.Status(fiber.StatusOK).Send(nil)
	}

	wc.disp.Submit(string(ev.Type), func(jobCtx context.Context) {
		err := wc.svc.ProcessEvent(jobCtx, ev)
		wc.markProcessed(stored, err)
	})

	return c.Status(fiber.StatusOK).Send(nil)
}

// record persists the event for dedupe. A storage failure is logged and the
// event proceeds anyway: losing idempotence protection beats dropping a
// billing fact.
func (wc *WebhookController) record(ev subscription.Event) (*models.WebhookEvent, bool) {
	created, stored, err := wc.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        models.BillingProviderStripe,
		ProviderEventID: ev.ID,
		EventType:       string(ev.Type),
		PayloadJSON:     string(ev.Raw),
	})
	if err != nil {
		log.Errorf("[Webhook] Persisting event %s failed: %v", ev.ID, err)
		return nil, false
	}
	return stored, !created
}

func (wc *WebhookController) markProcessed(stored *models.WebhookEvent, procErr error) {
	if stored == nil {
		return
	}
	msg := ""
	if procErr != nil && !errors.Is(procErr, context.Canceled) {
		msg = procErr.Error()
	}
	if err := wc.repo.MarkWebhookProcessed(stored.ID, msg); err != nil {
		log.Errorf("[Webhook] Marking event %d processed failed: %v", stored.ID, err)
	}
}
