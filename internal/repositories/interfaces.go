package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/inkwell-press/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// ErrDuplicatePaymentReference is returned when a customization request already
// claimed the payment reference being submitted.
var ErrDuplicatePaymentReference = errors.New("repositories: payment reference already used")

// CustomizationListFilter narrows admin listings of customization requests.
type CustomizationListFilter struct {
	Status *domain.RequestStatus
	UserID string
	Limit  int
}

// StatusUpdate carries the fields mutated during a staff-driven transition.
type StatusUpdate struct {
	Status    domain.RequestStatus
	AdminNote string
	UpdatedAt time.Time
}

// CustomizationRepository persists customization requests.
type CustomizationRepository interface {
	// CreateWithPaymentReference inserts the request after checking, inside the
	// same transaction, that no prior request holds its payment reference.
	// Returns ErrDuplicatePaymentReference when one does.
	CreateWithPaymentReference(ctx context.Context, request domain.CustomizationRequest) (domain.CustomizationRequest, error)
	FindByID(ctx context.Context, requestID string) (domain.CustomizationRequest, error)
	FindByPaymentReference(ctx context.Context, reference string) (domain.CustomizationRequest, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.CustomizationRequest, error)
	List(ctx context.Context, filter CustomizationListFilter) ([]domain.CustomizationRequest, error)
	UpdateStatus(ctx context.Context, requestID string, update StatusUpdate) (domain.CustomizationRequest, error)
}

// ProductListFilter narrows catalogue product listings.
type ProductListFilter struct {
	Category   string
	ActiveOnly bool
	Limit      int
}

// CatalogRepository serves the technique and product catalogue.
type CatalogRepository interface {
	ListTechniques(ctx context.Context, activeOnly bool) ([]domain.Technique, error)
	FindTechnique(ctx context.Context, techniqueID string) (domain.Technique, error)
	ListProducts(ctx context.Context, filter ProductListFilter) ([]domain.Product, error)
	FindProduct(ctx context.Context, productID string) (domain.Product, error)

	SaveTechnique(ctx context.Context, technique domain.Technique) (domain.Technique, error)
	SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// CartRepository owns the per-user cart document.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}
