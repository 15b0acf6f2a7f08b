package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/platform/auth"
	"github.com/inkwell-press/api/internal/services"
)

const webhookBodyLimit = 1 << 20

// PaymentHandlers drives the redirect checkout flow and the Paystack webhook.
type PaymentHandlers struct {
	payments services.PaymentService
	verifier *auth.WebhookVerifier
	logger   services.Logger
}

// PaymentHandlersDeps lists the dependencies for NewPaymentHandlers.
type PaymentHandlersDeps struct {
	Payments services.PaymentService
	Verifier *auth.WebhookVerifier
	Logger   services.Logger
}

// NewPaymentHandlers constructs payment handlers. Verifier may be nil when the
// webhook route is not mounted.
func NewPaymentHandlers(deps PaymentHandlersDeps) (*PaymentHandlers, error) {
	if deps.Payments == nil {
		return nil, errors.New("payment handlers: payment service is required")
	}
	h := &PaymentHandlers{
		payments: deps.Payments,
		verifier: deps.Verifier,
		logger:   deps.Logger,
	}
	if h.logger == nil {
		h.logger = func(ctx context.Context, event string, fields map[string]any) {}
	}
	return h, nil
}

// RegisterMe mounts the owner-scoped checkout routes.
func (h *PaymentHandlers) RegisterMe(r chi.Router) {
	r.Post("/payments/initialize", h.initializePayment)
	r.Get("/payments/verify", h.verifyPayment)
}

// RegisterWebhooks mounts the gateway callback routes.
func (h *PaymentHandlers) RegisterWebhooks(r chi.Router) {
	r.Post("/paystack", h.paystackWebhook)
}

type initializePaymentRequest struct {
	Email string `json:"email"`

	Title       string `json:"title"`
	Description string `json:"description"`

	Spec specPayload          `json:"spec"`
	Cost costBreakdownPayload `json:"cost"`

	DesignURL    string `json:"design_url"`
	DesignFileID string `json:"design_file_id"`
	ImageURL     string `json:"image_url"`

	Contact contactPayload `json:"contact"`

	Provider string `json:"provider"`
}

func specFromPayload(payload specPayload) (domain.CustomizationSpec, error) {
	spec := domain.CustomizationSpec{
		Kind:          domain.CustomizationKind(payload.Kind),
		TechniqueID:   payload.TechniqueID,
		TechniqueName: payload.TechniqueName,
		MaterialID:    payload.MaterialID,
		FabricGSM:     payload.FabricGSM,
		Quantity:      payload.Quantity,
	}
	if payload.FabricOption != "" {
		option, ok := domain.ParseFabricPurchaseOption(payload.FabricOption)
		if !ok {
			return domain.CustomizationSpec{}, services.ValidationErrorf("unknown fabric option %q", payload.FabricOption)
		}
		spec.FabricOption = option
	}

	switch spec.Kind {
	case domain.KindProductLinked:
		link := domain.ProductLink{
			ProductID:   payload.ProductID,
			ProductName: payload.ProductName,
		}
		if payload.ProductPrice != nil {
			link.ProductPrice = *payload.ProductPrice
		}
		spec.Product = &link
	case domain.KindPersonalItem:
		spec.Personal = &domain.PersonalItem{
			ItemType: payload.ItemType,
			Size:     payload.Size,
			Color:    payload.Color,
		}
	default:
		return domain.CustomizationSpec{}, services.ValidationErrorf("unknown customization kind %q", payload.Kind)
	}
	return spec, nil
}

func (h *PaymentHandlers) initializePayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	var body initializePaymentRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	spec, err := specFromPayload(body.Spec)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	email := body.Email
	if email == "" {
		email = identity.Email
	}

	initialization, err := h.payments.InitializePayment(r.Context(), services.InitializePaymentCommand{
		UserID:      identity.UID,
		Email:       email,
		Title:       body.Title,
		Description: body.Description,
		Spec:        spec,
		Cost: domain.CostBreakdown{
			TechniqueCost: body.Cost.TechniqueCost,
			FabricCost:    body.Cost.FabricCost,
			UnitCost:      body.Cost.UnitCost,
			TotalCost:     body.Cost.TotalCost,
		},
		DesignURL:    body.DesignURL,
		DesignFileID: body.DesignFileID,
		ImageURL:     body.ImageURL,
		Contact: domain.ContactDetails{
			PhoneNumber:     body.Contact.PhoneNumber,
			WhatsAppNumber:  body.Contact.WhatsAppNumber,
			DeliveryAddress: body.Contact.DeliveryAddress,
		},
		Provider: body.Provider,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"reference":         initialization.Reference,
		"provider":          initialization.Provider,
		"authorization_url": initialization.AuthorizationURL,
		"access_code":       initialization.AccessCode,
		"amount":            initialization.Amount,
		"currency":          initialization.Currency,
		"expires_at":        formatTime(initialization.ExpiresAt),
	})
}

func paymentResultToPayload(result services.PaymentResult) map[string]any {
	payload := map[string]any{
		"state":     string(result.State),
		"reference": result.Reference,
	}
	if result.Message != "" {
		payload["message"] = result.Message
	}
	if result.Request != nil {
		payload["customization"] = requestToPayload(*result.Request)
	}
	return payload
}

// verifyPayment handles the gateway redirect back to us. Cancelled and failed
// charges still answer 200 so the client can render the outcome; only malformed
// or foreign references error.
func (h *PaymentHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	query := r.URL.Query()
	result, err := h.payments.CompletePayment(r.Context(), services.CompletePaymentCommand{
		UserID:    identity.UID,
		Reference: query.Get("reference"),
		TrxRef:    query.Get("trxref"),
		Cancelled: query.Get("cancelled") == "true",
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, paymentResultToPayload(result))
}

type paystackWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// paystackWebhook verifies the HMAC signature over the raw body before
// touching the payload. Events other than charge.success are acknowledged
// without action so Paystack stops retrying them.
func (h *PaymentHandlers) paystackWebhook(w http.ResponseWriter, r *http.Request) {
	if h.verifier == nil {
		writeServiceError(r.Context(), w, services.ErrUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, webhookBodyLimit))
	if err != nil {
		writeServiceError(r.Context(), w, services.ValidationErrorf("unable to read webhook body"))
		return
	}

	if err := h.verifier.Verify(body, r.Header.Get(auth.SignatureHeader)); err != nil {
		h.logger(r.Context(), "webhook.signature_rejected", map[string]any{"error": err.Error()})
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	var event paystackWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeServiceError(r.Context(), w, services.ValidationErrorf("webhook body is not valid JSON"))
		return
	}

	if event.Event != "charge.success" {
		h.logger(r.Context(), "webhook.ignored", map[string]any{"event": event.Event})
		writeJSON(r.Context(), w, http.StatusOK, map[string]any{"status": "ignored"})
		return
	}
	if event.Data.Reference == "" {
		writeServiceError(r.Context(), w, services.ValidationErrorf("webhook event carries no reference"))
		return
	}

	result, err := h.payments.ReconcileReference(r.Context(), event.Data.Reference)
	if err != nil {
		// Unknown references are acknowledged: the intent may already be
		// reconciled via the redirect callback, and retries will not help.
		if errors.Is(err, services.ErrPaymentIntentNotFound) || errors.Is(err, services.ErrInvalidPaymentReference) {
			h.logger(r.Context(), "webhook.reference_unknown", map[string]any{"reference": event.Data.Reference})
			writeJSON(r.Context(), w, http.StatusOK, map[string]any{"status": "ignored"})
			return
		}
		writeServiceError(r.Context(), w, err)
		return
	}

	h.logger(r.Context(), "webhook.processed", map[string]any{
		"reference": event.Data.Reference,
		"state":     string(result.State),
	})
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"status": "processed", "state": string(result.State)})
}
