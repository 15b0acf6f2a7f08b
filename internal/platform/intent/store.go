// Package intent persists pending payment snapshots between the moment a
// checkout is initialised and the moment the gateway confirms it. Records are
// keyed by the gateway payment reference and removed once consumed.
package intent

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-press/api/internal/domain"
)

// DefaultTTL is the default duration that pending intents are retained.
const DefaultTTL = 24 * time.Hour

var (
	// ErrNotFound is returned when no intent exists for a reference.
	ErrNotFound = errors.New("intent: not found")
	// ErrAlreadyExists is returned when a reference is reused for a new intent.
	ErrAlreadyExists = errors.New("intent: reference already reserved")
)

// Store persists payment intents keyed by gateway reference.
type Store interface {
	// Put stores a new intent. Reusing a live reference fails with ErrAlreadyExists.
	Put(ctx context.Context, record domain.PaymentIntent) error
	// Get returns the intent for the reference, including expired ones. The
	// caller decides how to treat expiry.
	Get(ctx context.Context, reference string) (domain.PaymentIntent, error)
	// Delete removes the intent. Deleting a missing intent is not an error.
	Delete(ctx context.Context, reference string) error
	// CleanupExpired removes up to limit expired intents and reports the count.
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}
