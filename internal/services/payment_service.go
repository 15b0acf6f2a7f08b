package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/payments"
	"github.com/inkwell-press/api/internal/platform/intent"
)

var (
	errPaymentIntentsRequired = errors.New("payment service: intent store is required")
	errPaymentGatewayRequired = errors.New("payment service: gateway is required")
	errPaymentBuilderRequired = errors.New("payment service: customization service is required")

	// ErrInvalidPaymentReference indicates the callback reference does not match a stored intent.
	ErrInvalidPaymentReference = errors.New("payment service: invalid payment reference")
	// ErrPaymentIntentNotFound indicates no live intent exists for the reference.
	ErrPaymentIntentNotFound = errors.New("payment service: payment intent not found")
)

// PaymentGateway is the provider-manager surface the service depends on.
type PaymentGateway interface {
	Initialize(ctx context.Context, paymentCtx payments.PaymentContext, req payments.InitializeRequest) (payments.Authorization, error)
	Verify(ctx context.Context, paymentCtx payments.PaymentContext, req payments.VerifyRequest) (payments.PaymentDetails, error)
}

// PaymentServiceDeps wires the gateway, intent store and builder dependencies.
type PaymentServiceDeps struct {
	Intents        intent.Store
	Gateway        PaymentGateway
	Customizations CustomizationService
	Clock          func() time.Time
	Currency       string
	CallbackURL    string
	IntentTTL      time.Duration
	Logger         Logger
	ReferenceGen   func() string
}

type paymentService struct {
	intents        intent.Store
	gateway        PaymentGateway
	customizations CustomizationService
	now            func() time.Time
	currency       string
	callbackURL    string
	ttl            time.Duration
	logger         Logger
	newReference   func() string
}

// NewPaymentService constructs a PaymentService enforcing dependency validation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Intents == nil {
		return nil, errPaymentIntentsRequired
	}
	if deps.Gateway == nil {
		return nil, errPaymentGatewayRequired
	}
	if deps.Customizations == nil {
		return nil, errPaymentBuilderRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "NGN"
	}
	ttl := deps.IntentTTL
	if ttl <= 0 {
		ttl = intent.DefaultTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	refGen := deps.ReferenceGen
	if refGen == nil {
		refGen = func() string { return "ink_" + strings.ToLower(ulid.Make().String()) }
	}
	return &paymentService{
		intents:        deps.Intents,
		gateway:        deps.Gateway,
		customizations: deps.Customizations,
		now:            func() time.Time { return clock().UTC() },
		currency:       currency,
		callbackURL:    strings.TrimSpace(deps.CallbackURL),
		ttl:            ttl,
		logger:         logger,
		newReference:   refGen,
	}, nil
}

// InitializePayment snapshots the submission, stores a payment intent and
// returns the gateway redirect.
func (s *paymentService) InitializePayment(ctx context.Context, cmd InitializePaymentCommand) (PaymentInitialization, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return PaymentInitialization{}, ErrAuthenticationRequired
	}
	email := strings.TrimSpace(cmd.Email)
	if email == "" {
		return PaymentInitialization{}, ValidationErrorf("email is required")
	}
	// The whole submission is checked before any money moves, so a charged
	// intent can never fail validation at reconciliation time.
	spec, err := normaliseSpec(cmd.Spec)
	if err != nil {
		return PaymentInitialization{}, err
	}
	if err := validateSubmission(cmd.Description, cmd.DesignURL, spec); err != nil {
		return PaymentInitialization{}, err
	}
	amount := cmd.Cost.TotalCost
	if amount <= 0 {
		return PaymentInitialization{}, ValidationErrorf("total cost must be positive")
	}

	now := s.now()
	reference := s.newReference()
	record := domain.PaymentIntent{
		Reference:    reference,
		UserID:       userID,
		Email:        email,
		Amount:       amount,
		Currency:     s.currency,
		Title:        strings.TrimSpace(cmd.Title),
		Description:  strings.TrimSpace(cmd.Description),
		Spec:         spec,
		Cost:         cmd.Cost,
		DesignURL:    strings.TrimSpace(cmd.DesignURL),
		DesignFileID: strings.TrimSpace(cmd.DesignFileID),
		ImageURL:     strings.TrimSpace(cmd.ImageURL),
		Contact:      cmd.Contact,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	if err := s.intents.Put(ctx, record); err != nil {
		return PaymentInitialization{}, fmt.Errorf("payment service: store intent: %w", err)
	}

	authorization, err := s.gateway.Initialize(ctx, payments.PaymentContext{
		PreferredProvider: cmd.Provider,
		Currency:          s.currency,
	}, payments.InitializeRequest{
		Reference:   reference,
		Amount:      amount,
		Currency:    s.currency,
		Email:       email,
		CallbackURL: s.callbackURL,
		Metadata: map[string]string{
			"userId": userID,
			"kind":   string(spec.Kind),
		},
	})
	if err != nil {
		// The redirect never happened, so the snapshot has no value.
		if deleteErr := s.intents.Delete(ctx, reference); deleteErr != nil {
			s.logger(ctx, "payment.intent_cleanup_failed", map[string]any{
				"reference": reference,
				"error":     deleteErr.Error(),
			})
		}
		return PaymentInitialization{}, fmt.Errorf("payment service: initialize: %w", err)
	}

	s.logger(ctx, "payment.initialized", map[string]any{
		"reference": reference,
		"provider":  authorization.Provider,
		"amount":    amount,
	})

	return PaymentInitialization{
		Reference:        reference,
		Provider:         authorization.Provider,
		AuthorizationURL: authorization.AuthorizationURL,
		AccessCode:       authorization.AccessCode,
		Amount:           amount,
		Currency:         s.currency,
		ExpiresAt:        record.ExpiresAt,
	}, nil
}

// CompletePayment reconciles the gateway callback against the stored intent
// and, when the charge succeeded, submits the customization request exactly once.
func (s *paymentService) CompletePayment(ctx context.Context, cmd CompletePaymentCommand) (PaymentResult, error) {
	reference, err := resolveCallbackReference(cmd.Reference, cmd.TrxRef)
	if err != nil {
		return PaymentResult{}, err
	}

	if cmd.Cancelled {
		s.logger(ctx, "payment.cancelled", map[string]any{"reference": reference})
		return PaymentResult{
			State:     PaymentStateCancelled,
			Reference: reference,
			Message:   "payment cancelled before completion",
		}, nil
	}
	if reference == "" {
		return PaymentResult{}, fmt.Errorf("%w: missing reference", ErrInvalidPaymentReference)
	}

	record, err := s.intents.Get(ctx, reference)
	if err != nil {
		if errors.Is(err, intent.ErrNotFound) {
			return PaymentResult{}, fmt.Errorf("%w: %s", ErrPaymentIntentNotFound, reference)
		}
		return PaymentResult{}, fmt.Errorf("payment service: load intent: %w", err)
	}
	if record.Expired(s.now()) {
		return PaymentResult{}, fmt.Errorf("%w: %s expired", ErrPaymentIntentNotFound, reference)
	}
	if userID := strings.TrimSpace(cmd.UserID); userID != "" && record.UserID != userID {
		return PaymentResult{}, fmt.Errorf("%w: reference belongs to another user", ErrInvalidPaymentReference)
	}

	details, err := s.gateway.Verify(ctx, payments.PaymentContext{Currency: record.Currency}, payments.VerifyRequest{Reference: reference})
	if err != nil {
		if errors.Is(err, payments.ErrReferenceNotFound) {
			return PaymentResult{}, fmt.Errorf("%w: gateway has no transaction %s", ErrInvalidPaymentReference, reference)
		}
		return PaymentResult{}, fmt.Errorf("payment service: verify: %w", err)
	}

	switch details.Status {
	case payments.StatusSucceeded:
		if details.Amount != record.Amount {
			s.logger(ctx, "payment.amount_mismatch", map[string]any{
				"reference": reference,
				"expected":  record.Amount,
				"charged":   details.Amount,
			})
			return PaymentResult{
				State:     PaymentStateFailed,
				Reference: reference,
				Message:   "charged amount does not match the submission",
			}, nil
		}
		return s.finalise(ctx, reference, record)
	case payments.StatusAbandoned:
		s.logger(ctx, "payment.abandoned", map[string]any{"reference": reference})
		return PaymentResult{
			State:     PaymentStateCancelled,
			Reference: reference,
			Message:   details.GatewayResponse,
		}, nil
	case payments.StatusFailed:
		s.logger(ctx, "payment.failed", map[string]any{
			"reference": reference,
			"response":  details.GatewayResponse,
		})
		return PaymentResult{
			State:     PaymentStateFailed,
			Reference: reference,
			Message:   details.GatewayResponse,
		}, nil
	default:
		return PaymentResult{
			State:     PaymentStatePending,
			Reference: reference,
			Message:   "payment not settled yet",
		}, nil
	}
}

// ReconcileReference runs the completion flow for a server-side notification,
// e.g. the gateway webhook, where no caller identity is present.
func (s *paymentService) ReconcileReference(ctx context.Context, reference string) (PaymentResult, error) {
	return s.CompletePayment(ctx, CompletePaymentCommand{Reference: reference})
}

// finalise submits the request from the intent snapshot and retires the intent.
// The duplicate guard inside Submit makes replays of the same reference return
// the original request.
func (s *paymentService) finalise(ctx context.Context, reference string, record domain.PaymentIntent) (PaymentResult, error) {
	request, err := s.customizations.Submit(ctx, SubmitCustomizationCommand{
		UserID:           record.UserID,
		Title:            record.Title,
		Description:      record.Description,
		Spec:             record.Spec,
		Cost:             record.Cost,
		DesignURL:        record.DesignURL,
		DesignFileID:     record.DesignFileID,
		ImageURL:         record.ImageURL,
		Contact:          record.Contact,
		PaymentReference: reference,
		PaymentCompleted: true,
	})
	if err != nil {
		return PaymentResult{}, fmt.Errorf("payment service: submit request: %w", err)
	}

	if err := s.intents.Delete(ctx, reference); err != nil {
		s.logger(ctx, "payment.intent_cleanup_failed", map[string]any{
			"reference": reference,
			"error":     err.Error(),
		})
	}

	s.logger(ctx, "payment.completed", map[string]any{
		"reference": reference,
		"requestId": request.ID,
	})

	return PaymentResult{
		State:     PaymentStateCompleted,
		Reference: reference,
		Request:   &request,
	}, nil
}

// resolveCallbackReference reconciles the two reference query parameters the
// gateway redirects with. Both present and disagreeing is a tampered callback.
func resolveCallbackReference(reference, trxRef string) (string, error) {
	reference = strings.TrimSpace(reference)
	trxRef = strings.TrimSpace(trxRef)
	if reference != "" && trxRef != "" && reference != trxRef {
		return "", fmt.Errorf("%w: reference and trxref disagree", ErrInvalidPaymentReference)
	}
	if reference != "" {
		return reference, nil
	}
	return trxRef, nil
}
