package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "inkwell-dev",
		"API_STORAGE_DESIGNS_BUCKET": "inkwell-designs-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "inkwell-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "inkwell-dev" {
		t.Errorf("expected events project to default to firebase project, got %s", cfg.Events.ProjectID)
	}
	if cfg.PSP.PaystackBaseURL != defaultPaystackBaseURL {
		t.Errorf("unexpected paystack base url: %s", cfg.PSP.PaystackBaseURL)
	}
	if cfg.Payments.Currency != "NGN" {
		t.Errorf("expected default currency NGN, got %s", cfg.Payments.Currency)
	}
	if cfg.Intents.TTL != defaultIntentTTL {
		t.Errorf("unexpected default intent ttl: %s", cfg.Intents.TTL)
	}
	if cfg.Uploads.MaxBytes != defaultUploadMaxBytes {
		t.Errorf("unexpected default upload limit: %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Events.TopicID != defaultEventsTopic {
		t.Errorf("unexpected default events topic: %s", cfg.Events.TopicID)
	}
	if cfg.Features.EnableStripe {
		t.Error("expected stripe to be disabled by default")
	}
	if !cfg.Features.EnableEvents {
		t.Error("expected events to be enabled by default")
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":             "9090",
		"API_SERVER_READ_TIMEOUT":     "20s",
		"API_FIREBASE_PROJECT_ID":     "inkwell-prod",
		"API_FIRESTORE_PROJECT_ID":    "inkwell-fire",
		"API_STORAGE_DESIGNS_BUCKET":  "designs-prod",
		"API_STORAGE_PUBLIC_BASE_URL": "https://cdn.inkwell.example",
		"API_PSP_PAYSTACK_SECRET_KEY": "secret://paystack/secret",
		"API_PSP_PAYSTACK_PUBLIC_KEY": "pk_live_abc",
		"API_PSP_STRIPE_API_KEY":      "secret://stripe/api",
		"API_PAYMENTS_CURRENCY":       "ghs",
		"API_PAYMENTS_CALLBACK_URL":   "https://shop.inkwell.example/checkout/callback",
		"API_INTENTS_TTL":             "48h",
		"API_UPLOADS_MAX_BYTES":       "5242880",
		"API_EVENTS_PROJECT_ID":       "inkwell-events",
		"API_EVENTS_TOPIC":            "customizations",
		"API_FEATURE_STRIPE":          "true",
	}

	secrets := map[string]string{
		"secret://paystack/secret": "sk_live_resolved",
		"secret://stripe/api":      "sk_stripe_resolved",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("unexpected port: %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 20*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "inkwell-fire" {
		t.Errorf("unexpected firestore project: %s", cfg.Firestore.ProjectID)
	}
	if cfg.PSP.PaystackSecretKey != "sk_live_resolved" {
		t.Errorf("expected paystack secret to resolve, got %s", cfg.PSP.PaystackSecretKey)
	}
	if cfg.PSP.StripeAPIKey != "sk_stripe_resolved" {
		t.Errorf("expected stripe key to resolve, got %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.Webhooks.PaystackSecret != "sk_live_resolved" {
		t.Errorf("expected webhook secret to fall back to paystack key, got %s", cfg.Webhooks.PaystackSecret)
	}
	if cfg.Payments.Currency != "GHS" {
		t.Errorf("expected currency uppercased, got %s", cfg.Payments.Currency)
	}
	if cfg.Intents.TTL != 48*time.Hour {
		t.Errorf("unexpected intent ttl: %s", cfg.Intents.TTL)
	}
	if cfg.Uploads.MaxBytes != 5242880 {
		t.Errorf("unexpected upload limit: %d", cfg.Uploads.MaxBytes)
	}
	if cfg.Events.ProjectID != "inkwell-events" {
		t.Errorf("unexpected events project: %s", cfg.Events.ProjectID)
	}
	if !cfg.Features.EnableStripe {
		t.Error("expected stripe feature enabled")
	}
}

func TestLoadValidationFailure(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error")
	}

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	fields := validation.Fields()
	want := map[string]bool{"Firebase.ProjectID": false, "Storage.DesignsBucket": false}
	for _, field := range fields {
		if _, ok := want[field]; ok {
			want[field] = true
		}
	}
	for field, seen := range want {
		if !seen {
			t.Errorf("expected %s in validation fields %v", field, fields)
		}
	}
}

func TestLoadMissingRequiredSecret(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":    "inkwell-dev",
		"API_STORAGE_DESIGNS_BUCKET": "designs-dev",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("PSP.PaystackSecretKey"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error")
	}

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	names := missing.Names()
	if len(names) != 1 || names[0] != "PSP.PaystackSecretKey" {
		t.Errorf("unexpected missing secret names: %v", names)
	}
}

func TestLoadUnresolvableSecretReference(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":     "inkwell-dev",
		"API_STORAGE_DESIGNS_BUCKET":  "designs-dev",
		"API_PSP_PAYSTACK_SECRET_KEY": "sm://paystack/secret",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error")
	}

	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://paystack/secret" {
		t.Errorf("expected normalized ref, got %s", secretErr.Ref)
	}
}
