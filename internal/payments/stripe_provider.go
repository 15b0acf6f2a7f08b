package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripePaymentIntentAPI interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeClients struct {
	sessions stripeSessionAPI
	intents  stripePaymentIntentAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   StripeLogger
	Clock    func() time.Time
	Clients  *stripeClients
}

// StripeProvider implements the Provider interface using Stripe Checkout.
// Because Stripe has no merchant-reference lookup, Verify expects the
// reference to be the Stripe PaymentIntent ID.
type StripeProvider struct {
	api    stripeClients
	clock  func() time.Time
	logger StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			sessions: sc.CheckoutSessions,
			intents:  sc.PaymentIntents,
		}
	}

	if clients.sessions == nil || clients.intents == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api: clients,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Initialize creates a Stripe Checkout session for the payment.
func (p *StripeProvider) Initialize(ctx context.Context, req InitializeRequest) (Authorization, error) {
	if p == nil {
		return Authorization{}, errors.New("stripe: provider is nil")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Authorization{}, errors.New("stripe: reference is required")
	}
	if req.Amount <= 0 {
		return Authorization{}, errors.New("stripe: amount must be positive")
	}

	callback := strings.TrimSpace(req.CallbackURL)
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(callback),
		CancelURL:         stripe.String(callback),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Custom print order"),
				},
			},
		}},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	metadata := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["reference"] = req.Reference
	params.Metadata = metadata
	params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata}

	session, err := p.api.sessions.New(params)
	if err != nil {
		return Authorization{}, fmt.Errorf("stripe: create checkout session: %w", err)
	}

	intentID := ""
	if session.PaymentIntent != nil {
		intentID = session.PaymentIntent.ID
	}

	p.logger(ctx, "payments.stripe.session.created", map[string]any{
		"sessionId":     session.ID,
		"paymentIntent": intentID,
		"reference":     req.Reference,
	})

	expiresAt := p.clock().Add(30 * time.Minute)
	if session.ExpiresAt != 0 {
		expiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}

	return Authorization{
		Provider:         "stripe",
		Reference:        req.Reference,
		AuthorizationURL: session.URL,
		AccessCode:       session.ID,
		ExpiresAt:        expiresAt,
	}, nil
}

// Verify retrieves the PaymentIntent identified by the reference.
func (p *StripeProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("stripe: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, errors.New("stripe: reference is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := p.api.intents.Get(reference, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return PaymentDetails{}, fmt.Errorf("%w: %s", ErrReferenceNotFound, reference)
		}
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}

	details := PaymentDetails{
		Provider:  "stripe",
		Reference: reference,
		Status:    mapStripeStatus(intent.Status),
		Amount:    intent.Amount,
		Currency:  strings.ToUpper(string(intent.Currency)),
	}
	if intent.Status == stripe.PaymentIntentStatusSucceeded && intent.Created != 0 {
		paidAt := time.Unix(intent.Created, 0).UTC()
		details.PaidAt = &paidAt
	}

	p.logger(ctx, "payments.stripe.verified", map[string]any{
		"paymentIntent": intent.ID,
		"status":        string(intent.Status),
	})

	return details, nil
}

func mapStripeStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusAbandoned
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusProcessing,
		stripe.PaymentIntentStatusRequiresCapture:
		return StatusPending
	default:
		return StatusFailed
	}
}
