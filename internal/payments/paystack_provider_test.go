package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPaystackInitialize(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/transaction/initialize" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_key" {
			t.Fatalf("unexpected authorization header: %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Authorization URL created",
			"data": {
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code": "abc123",
				"reference": "ref_001"
			}
		}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider(PaystackProviderConfig{
		SecretKey: "sk_test_key",
		BaseURL:   server.URL,
	})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}

	authorization, err := provider.Initialize(context.Background(), InitializeRequest{
		Reference:   "ref_001",
		Amount:      18000,
		Currency:    "ngn",
		Email:       "shopper@example.com",
		CallbackURL: "https://shop.inkwell.example/checkout/callback",
	})
	if err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	if authorization.AuthorizationURL != "https://checkout.paystack.com/abc123" {
		t.Fatalf("unexpected authorization url: %s", authorization.AuthorizationURL)
	}
	if authorization.Reference != "ref_001" {
		t.Fatalf("unexpected reference: %s", authorization.Reference)
	}
	if captured["amount"] != float64(18000) {
		t.Fatalf("unexpected amount in payload: %v", captured["amount"])
	}
	if captured["currency"] != "NGN" {
		t.Fatalf("expected currency to be uppercased, got %v", captured["currency"])
	}
	if captured["callback_url"] != "https://shop.inkwell.example/checkout/callback" {
		t.Fatalf("unexpected callback url: %v", captured["callback_url"])
	}
}

func TestPaystackVerifySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/verify/ref_001" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "success",
				"reference": "ref_001",
				"amount": 18000,
				"currency": "NGN",
				"channel": "card",
				"gateway_response": "Successful",
				"paid_at": "2026-03-01T12:30:00Z"
			}
		}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider(PaystackProviderConfig{
		SecretKey: "sk_test_key",
		BaseURL:   server.URL,
	})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}

	details, err := provider.Verify(context.Background(), VerifyRequest{Reference: "ref_001"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}

	if details.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", details.Status)
	}
	if details.Amount != 18000 || details.Currency != "NGN" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.PaidAt == nil || !details.PaidAt.Equal(time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected paid_at: %v", details.PaidAt)
	}
}

func TestPaystackVerifyFailedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": true,
			"message": "Verification successful",
			"data": {
				"status": "failed",
				"reference": "ref_002",
				"amount": 5000,
				"currency": "NGN",
				"gateway_response": "Declined"
			}
		}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider(PaystackProviderConfig{SecretKey: "sk_test_key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}

	details, err := provider.Verify(context.Background(), VerifyRequest{Reference: "ref_002"})
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if details.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", details.Status)
	}
}

func TestPaystackVerifyUnknownReference(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
	}))
	defer server.Close()

	provider, err := NewPaystackProvider(PaystackProviderConfig{SecretKey: "sk_test_key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}

	_, err = provider.Verify(context.Background(), VerifyRequest{Reference: "ref_missing"})
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("expected ErrReferenceNotFound, got %v", err)
	}
}

func TestPaystackServerErrorMapsToGatewayUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	provider, err := NewPaystackProvider(PaystackProviderConfig{SecretKey: "sk_test_key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewPaystackProvider: %v", err)
	}

	_, err = provider.Verify(context.Background(), VerifyRequest{Reference: "ref_001"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestNewPaystackProviderRequiresSecret(t *testing.T) {
	if _, err := NewPaystackProvider(PaystackProviderConfig{}); err == nil {
		t.Fatal("expected error for missing secret key")
	}
}
