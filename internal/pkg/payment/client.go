package payment

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"

	"github.com/johnnybasgallop/DMOTelegramBot/internal/pkg/env"
)

// StripeClient wraps the provider API for the operations the runtime and
// the subscription service need. Webhook payloads are parsed from raw JSON
// elsewhere; this client only makes outbound calls.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client with the given API key.
func NewStripeClient(apiKey string) *StripeClient {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &StripeClient{api: api}
}

// NewStripeClientFromEnv builds a client from STRIPE_API_KEY.
func NewStripeClientFromEnv() (*StripeClient, error) {
	key := env.GetEnv("STRIPE_API_KEY", "")
	if key == "" {
		return nil, fmt.Errorf("STRIPE_API_KEY is not set")
	}
	return NewStripeClient(key), nil
}

// FindSubscriptionByKey scans active subscriptions for one whose metadata
// carries the given correlation key.
func (s *StripeClient) FindSubscriptionByKey(ctx context.Context, key string) (string, bool, error) {
	params := &stripe.SubscriptionListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	it := s.api.Subscriptions.List(params)
	for it.Next() {
		sub := it.Subscription()
		if sub.Metadata[MetadataCorrelationKey] == key {
			return sub.ID, true, nil
		}
	}
	if err := it.Err(); err != nil {
		return "", false, fmt.Errorf("list subscriptions: %w", err)
	}
	return "", false, nil
}

// CancelAtPeriodEnd schedules the subscription to end when the paid period
// runs out. Access is kept until the provider later emits the deletion event.
func (s *StripeClient) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	if _, err := s.api.Subscriptions.Update(subscriptionID, params); err != nil {
		return fmt.Errorf("cancel subscription %s at period end: %w", subscriptionID, err)
	}
	log.Infof("[Payment] Subscription %s set to cancel at period end", subscriptionID)
	return nil
}

// SubscriptionMetadata fetches the metadata map of a subscription.
func (s *StripeClient) SubscriptionMetadata(ctx context.Context, subscriptionID string) (map[string]string, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", subscriptionID, err)
	}
	return sub.Metadata, nil
}

// CustomerContact fetches a customer's display name and email.
func (s *StripeClient) CustomerContact(ctx context.Context, customerID string) (string, string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := s.api.Customers.Get(customerID, params)
	if err != nil {
		return "", "", fmt.Errorf("get customer %s: %w", customerID, err)
	}
	return cust.Name, cust.Email, nil
}

// CreateCheckoutLink creates a hosted checkout session for the monitored
// price and returns its URL. The correlation key is stamped into both the
// session reference and the subscription metadata so later webhook events
// can be routed back to the chat user.
func (s *StripeClient) CreateCheckoutLink(ctx context.Context, correlationKey, priceID, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(correlationKey),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				MetadataCorrelationKey: correlationKey,
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	params.Context = ctx
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}
