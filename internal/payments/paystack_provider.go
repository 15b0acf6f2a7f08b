package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultPaystackBaseURL = "https://api.paystack.co"
	defaultPaystackTimeout = 15 * time.Second

	// Paystack authorizations stay usable for roughly half an hour before the
	// checkout page forces a restart.
	paystackAuthorizationWindow = 30 * time.Minute
)

// PaystackLogger defines the logging contract for Paystack provider operations.
type PaystackLogger func(ctx context.Context, event string, fields map[string]any)

// PaystackProviderConfig configures the PaystackProvider.
type PaystackProviderConfig struct {
	SecretKey  string
	BaseURL    string
	HTTPClient *http.Client
	Logger     PaystackLogger
	Clock      func() time.Time
}

// PaystackProvider implements the Provider interface against the Paystack REST API.
type PaystackProvider struct {
	secretKey string
	baseURL   string
	client    *http.Client
	clock     func() time.Time
	logger    PaystackLogger
}

// NewPaystackProvider constructs a Paystack Provider using the given configuration.
func NewPaystackProvider(cfg PaystackProviderConfig) (*PaystackProvider, error) {
	secretKey := strings.TrimSpace(cfg.SecretKey)
	if secretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("paystack: invalid base url: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultPaystackTimeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PaystackProvider{
		secretKey: secretKey,
		baseURL:   baseURL,
		client:    client,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransactionData struct {
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	PaidAt          string `json:"paid_at"`
}

// Initialize creates a Paystack transaction and returns the hosted checkout URL.
func (p *PaystackProvider) Initialize(ctx context.Context, req InitializeRequest) (Authorization, error) {
	if p == nil {
		return Authorization{}, errors.New("paystack: provider is nil")
	}
	if strings.TrimSpace(req.Reference) == "" {
		return Authorization{}, errors.New("paystack: reference is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		return Authorization{}, errors.New("paystack: customer email is required")
	}
	if req.Amount <= 0 {
		return Authorization{}, errors.New("paystack: amount must be positive")
	}

	payload := map[string]any{
		"reference": req.Reference,
		"amount":    req.Amount,
		"email":     req.Email,
	}
	if currency := strings.ToUpper(strings.TrimSpace(req.Currency)); currency != "" {
		payload["currency"] = currency
	}
	if callback := strings.TrimSpace(req.CallbackURL); callback != "" {
		payload["callback_url"] = callback
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	var data paystackInitializeData
	if err := p.call(ctx, http.MethodPost, "/transaction/initialize", payload, &data); err != nil {
		return Authorization{}, err
	}

	p.logger(ctx, "payments.paystack.initialized", map[string]any{
		"reference":  data.Reference,
		"accessCode": data.AccessCode,
	})

	return Authorization{
		Provider:         "paystack",
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		ExpiresAt:        p.clock().Add(paystackAuthorizationWindow),
	}, nil
}

// Verify reconciles a transaction with Paystack by reference.
func (p *PaystackProvider) Verify(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("paystack: provider is nil")
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return PaymentDetails{}, errors.New("paystack: reference is required")
	}

	var data paystackTransactionData
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.call(ctx, http.MethodGet, path, nil, &data); err != nil {
		return PaymentDetails{}, err
	}

	details := PaymentDetails{
		Provider:        "paystack",
		Reference:       data.Reference,
		Status:          mapPaystackStatus(data.Status),
		Amount:          data.Amount,
		Currency:        strings.ToUpper(data.Currency),
		Channel:         data.Channel,
		GatewayResponse: data.GatewayResponse,
	}
	if paidAt, err := time.Parse(time.RFC3339, data.PaidAt); err == nil {
		utc := paidAt.UTC()
		details.PaidAt = &utc
	}

	p.logger(ctx, "payments.paystack.verified", map[string]any{
		"reference": details.Reference,
		"status":    string(details.Status),
	})

	return details, nil
}

func (p *PaystackProvider) call(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("paystack: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("paystack: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var envelope paystackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("paystack: decode response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound || !envelope.Status {
		message := strings.ToLower(envelope.Message)
		if resp.StatusCode == http.StatusNotFound || strings.Contains(message, "reference not found") {
			return fmt.Errorf("%w: %s", ErrReferenceNotFound, envelope.Message)
		}
		return fmt.Errorf("paystack: request rejected: %s", envelope.Message)
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("paystack: decode payload: %w", err)
		}
	}
	return nil
}

func mapPaystackStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success":
		return StatusSucceeded
	case "failed":
		return StatusFailed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}
