package payment

import (
	"context"
	"fmt"
	"testing"

	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/subscription"
)

type fakeResolver struct {
	metadata map[string]map[string]string
	contacts map[string][2]string
	err      error
}

func (f *fakeResolver) SubscriptionMetadata(_ context.Context, subscriptionID string) (map[string]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.metadata[subscriptionID], nil
}

func (f *fakeResolver) CustomerContact(_ context.Context, customerID string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	c := f.contacts[customerID]
	return c[0], c[1], nil
}

func TestParseSubscriptionCreated(t *testing.T) {
	resolver := &fakeResolver{
		contacts: map[string][2]string{
			"cus_1": {"Jane Doe", "jane@example.com"},
		},
	}
	parser := NewEventParser(resolver)

	payload := []byte(`{
		"id": "evt_1",
		"type": "customer.subscription.created",
		"data": {"object": {
			"id": "sub_1",
			"status": "trialing",
			"customer": "cus_1",
			"metadata": {"telegram_id": "12345"},
			"plan": {"id": "price_main"}
		}}
	}`)

	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Type != subscription.EventCreated {
		t.Fatalf("expected created event, got %s", ev.Type)
	}
	if ev.CorrelationKey != "12345" {
		t.Fatalf("expected correlation key 12345, got %q", ev.CorrelationKey)
	}
	if ev.PlanRef != "price_main" {
		t.Fatalf("expected plan price_main, got %q", ev.PlanRef)
	}
	if !ev.Trialing {
		t.Fatal("expected trialing flag")
	}
	if ev.DisplayName != "Jane Doe" || ev.Contact != "jane@example.com" {
		t.Fatalf("expected contact from resolver, got %q / %q", ev.DisplayName, ev.Contact)
	}
}

func TestParsePlanRefFallsBackToItemsPrice(t *testing.T) {
	parser := NewEventParser(nil)
	payload := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.deleted",
		"data": {"object": {
			"id": "sub_2",
			"status": "canceled",
			"metadata": {"telegram_id": "12345"},
			"items": {"data": [{"price": {"id": "price_alt"}}]}
		}}
	}`)

	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Type != subscription.EventDeleted {
		t.Fatalf("expected deleted event, got %s", ev.Type)
	}
	if ev.PlanRef != "price_alt" {
		t.Fatalf("expected plan from items fallback, got %q", ev.PlanRef)
	}
}

func TestParseInvoiceInlineMetadata(t *testing.T) {
	parser := NewEventParser(nil)
	payload := []byte(`{
		"id": "evt_3",
		"type": "invoice.payment_succeeded",
		"data": {"object": {
			"id": "in_1",
			"billing_reason": "subscription_create",
			"subscription": "sub_1",
			"subscription_details": {"metadata": {"telegram_id": "777"}}
		}}
	}`)

	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Type != subscription.EventPaymentSucceeded {
		t.Fatalf("expected payment_succeeded, got %s", ev.Type)
	}
	if ev.CorrelationKey != "777" {
		t.Fatalf("expected inline metadata key, got %q", ev.CorrelationKey)
	}
	if ev.BillingReason != subscription.BillingReasonSubscriptionCreate {
		t.Fatalf("expected billing reason subscription_create, got %q", ev.BillingReason)
	}
}

func TestParseInvoiceResolvesSubscriptionMetadata(t *testing.T) {
	resolver := &fakeResolver{
		metadata: map[string]map[string]string{
			"sub_9": {MetadataCorrelationKey: "999"},
		},
	}
	parser := NewEventParser(resolver)
	payload := []byte(`{
		"id": "evt_4",
		"type": "invoice.payment_failed",
		"data": {"object": {
			"id": "in_2",
			"billing_reason": "subscription_cycle",
			"subscription": "sub_9"
		}}
	}`)

	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if ev.Type != subscription.EventPaymentFailed {
		t.Fatalf("expected payment_failed, got %s", ev.Type)
	}
	if ev.CorrelationKey != "999" {
		t.Fatalf("expected resolved metadata key, got %q", ev.CorrelationKey)
	}
}

func TestParseInvoiceResolverFailureLeavesKeyEmpty(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("provider unavailable")}
	parser := NewEventParser(resolver)
	payload := []byte(`{
		"id": "evt_5",
		"type": "invoice.payment_failed",
		"data": {"object": {"id": "in_3", "subscription": "sub_9"}}
	}`)

	// A provider-API outage after successful verification is a downstream
	// failure, never a parse error: the event must still be acknowledged.
	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("resolver failure must not surface as a parse error: %v", err)
	}
	if ev.Type != subscription.EventPaymentFailed {
		t.Fatalf("expected payment_failed, got %s", ev.Type)
	}
	if ev.CorrelationKey != "" {
		t.Fatalf("expected empty correlation key, got %q", ev.CorrelationKey)
	}
}

func TestParseUnknownTypeIsIgnored(t *testing.T) {
	parser := NewEventParser(nil)
	payload := []byte(`{
		"id": "evt_6",
		"type": "charge.refunded",
		"data": {"object": {"id": "ch_1"}}
	}`)

	ev, err := parser.Parse(context.Background(), payload)
	if err != nil {
		t.Fatalf("unknown types must not error: %v", err)
	}
	if ev.Type != subscription.EventIgnored {
		t.Fatalf("expected ignored event, got %s", ev.Type)
	}
}

func TestParseRejectsMalformedPayload(t *testing.T) {
	parser := NewEventParser(nil)

	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{{`},
		{name: "missing id", payload: `{"type":"invoice.payment_failed","data":{"object":{}}}`},
		{name: "missing type", payload: `{"id":"evt_7","data":{"object":{}}}`},
		{name: "missing object", payload: `{"id":"evt_8","type":"invoice.payment_failed","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parser.Parse(context.Background(), []byte(tt.payload)); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}
