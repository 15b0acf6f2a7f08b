package secrets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretClient struct {
	values map[string]string
	err    error
	calls  int
}

func (s *stubSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	value, ok := s.values[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (s *stubSecretClient) Close() error { return nil }

func TestResolveSecretFromRemote(t *testing.T) {
	client := &stubSecretClient{values: map[string]string{
		"projects/inkwell-prod/secrets/paystack-key/versions/latest": "sk_live_abc",
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithProject("inkwell-prod"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.ResolveSecret(context.Background(), "secret://paystack-key")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "sk_live_abc" {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestResolveSecretUsesCache(t *testing.T) {
	client := &stubSecretClient{values: map[string]string{
		"projects/inkwell-prod/secrets/paystack-key/versions/latest": "sk_live_abc",
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithProject("inkwell-prod"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := fetcher.ResolveSecret(context.Background(), "secret://paystack-key"); err != nil {
			t.Fatalf("ResolveSecret returned error: %v", err)
		}
	}
	if client.calls != 1 {
		t.Fatalf("expected a single remote call, got %d", client.calls)
	}

	fetcher.Invalidate("secret://paystack-key")
	if _, err := fetcher.ResolveSecret(context.Background(), "secret://paystack-key"); err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("expected refetch after invalidation, got %d calls", client.calls)
	}
}

func TestResolveSecretHonoursVersionAndProjectOverride(t *testing.T) {
	client := &stubSecretClient{values: map[string]string{
		"projects/other-project/secrets/paystack-key/versions/3": "sk_pinned",
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithProject("inkwell-prod"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.ResolveSecret(context.Background(), "secret://paystack-key?version=3&project=other-project")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "sk_pinned" {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestResolveSecretFallsBackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, ".secrets.local")
	contents := strings.Join([]string{
		"# local secrets",
		"secret://paystack-key=sk_local",
	}, "\n")
	if err := os.WriteFile(fallback, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fallback file: %v", err)
	}

	client := &stubSecretClient{err: status.Error(codes.PermissionDenied, "denied")}
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(client),
		WithProject("inkwell-prod"),
		WithFallbackFile(fallback),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	value, err := fetcher.ResolveSecret(context.Background(), "secret://paystack-key")
	if err != nil {
		t.Fatalf("ResolveSecret returned error: %v", err)
	}
	if value != "sk_local" {
		t.Fatalf("unexpected value: %s", value)
	}
}

func TestResolveSecretRejectsBadReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&stubSecretClient{}),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, ref := range []string{"", "http://nope", "secret://"} {
		if _, err := fetcher.ResolveSecret(context.Background(), ref); err == nil {
			t.Fatalf("expected error for reference %q", ref)
		}
	}
}
