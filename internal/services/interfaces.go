package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/repositories"
)

var (
	// ErrAuthenticationRequired indicates the operation needs a signed-in identity.
	ErrAuthenticationRequired = errors.New("services: authentication required")
	// ErrValidation indicates the caller supplied invalid or incomplete input.
	ErrValidation = errors.New("services: validation failed")
	// ErrForbidden indicates the identity may not act on the resource.
	ErrForbidden = errors.New("services: forbidden")
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("services: not found")
	// ErrUnavailable indicates a backend dependency failed transiently.
	ErrUnavailable = errors.New("services: unavailable")
)

// ValidationErrorf wraps ErrValidation with the offending field and reason.
func ValidationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Logger is the structured event callback shared by the services.
type Logger func(ctx context.Context, event string, fields map[string]any)

// CatalogService serves the public technique, fabric and product catalogue and
// the admin upsert operations behind it.
type CatalogService interface {
	ListTechniques(ctx context.Context) ([]domain.Technique, error)
	GetTechnique(ctx context.Context, techniqueID string) (domain.Technique, error)
	FabricTiers(ctx context.Context) ([]domain.FabricTier, error)
	ListProducts(ctx context.Context, query ProductQuery) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)

	UpsertTechnique(ctx context.Context, cmd UpsertTechniqueCommand) (domain.Technique, error)
	UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (domain.Product, error)
}

// ProductQuery narrows public product listings.
type ProductQuery struct {
	Category string
	Limit    int
}

// UpsertTechniqueCommand carries the admin payload for a technique upsert.
type UpsertTechniqueCommand struct {
	ID          string
	Name        string
	Description string
	BaseCost    int64
	Active      *bool
}

// UpsertProductCommand carries the admin payload for a product upsert.
type UpsertProductCommand struct {
	ID       string
	Name     string
	Category string
	Price    int64
	ImageURL string
	Sizes    []string
	Colors   []string
	Active   *bool
}

// CartService owns the per-user cart.
type CartService interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	AddItem(ctx context.Context, userID string, cmd AddCartItemCommand) (domain.Cart, error)
	UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (domain.Cart, error)
	RemoveItem(ctx context.Context, userID string, itemID string) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// AddCartItemCommand adds either a catalogue product or a priced customization
// line to the cart.
type AddCartItemCommand struct {
	ProductID              string
	CustomizationRequestID string
	Name                   string
	Size                   string
	Color                  string
	UnitPrice              int64
	Quantity               int
	ImageURL               string
}

// UploadService stores design files and returns their public location.
type UploadService interface {
	UploadDesign(ctx context.Context, cmd UploadDesignCommand) (UploadedDesign, error)
	DeleteDesign(ctx context.Context, userID string, fileID string) error
}

// UploadDesignCommand carries the design file payload.
type UploadDesignCommand struct {
	UserID      string
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadedDesign is the stored design file location.
type UploadedDesign struct {
	FileID      string
	URL         string
	ObjectName  string
	Size        int64
	ContentType string
}

// CustomizationService builds, lists and transitions customization requests.
type CustomizationService interface {
	Submit(ctx context.Context, cmd SubmitCustomizationCommand) (domain.CustomizationRequest, error)
	ListMine(ctx context.Context, userID string, limit int) ([]domain.CustomizationRequest, error)
	GetMine(ctx context.Context, userID string, requestID string) (domain.CustomizationRequest, error)
	List(ctx context.Context, filter repositories.CustomizationListFilter) ([]domain.CustomizationRequest, error)
	UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (domain.CustomizationRequest, error)
}

// SubmitCustomizationCommand is the full submission payload. Cost carries the
// caller's snapshot; the service recomputes it and logs discrepancies without
// failing the submission.
type SubmitCustomizationCommand struct {
	UserID string

	Title       string
	Description string

	Spec domain.CustomizationSpec
	Cost domain.CostBreakdown

	DesignURL    string
	DesignFileID string
	ImageURL     string

	Contact domain.ContactDetails

	PaymentReference string
	PaymentCompleted bool
}

// UpdateStatusCommand is the staff-driven status transition payload.
type UpdateStatusCommand struct {
	RequestID string
	Status    domain.RequestStatus
	AdminNote string
}

// PaymentState is the outward-facing result of a payment reconciliation.
type PaymentState string

const (
	PaymentStatePending   PaymentState = "pending"
	PaymentStateCompleted PaymentState = "completed"
	PaymentStateFailed    PaymentState = "failed"
	PaymentStateCancelled PaymentState = "cancelled"
)

// PaymentService drives the redirect payment flow around submissions.
type PaymentService interface {
	InitializePayment(ctx context.Context, cmd InitializePaymentCommand) (PaymentInitialization, error)
	CompletePayment(ctx context.Context, cmd CompletePaymentCommand) (PaymentResult, error)
	ReconcileReference(ctx context.Context, reference string) (PaymentResult, error)
}

// InitializePaymentCommand snapshots the submission form before the gateway redirect.
type InitializePaymentCommand struct {
	UserID string
	Email  string

	Title       string
	Description string

	Spec domain.CustomizationSpec
	Cost domain.CostBreakdown

	DesignURL    string
	DesignFileID string
	ImageURL     string

	Contact domain.ContactDetails

	Provider string
}

// PaymentInitialization is the gateway handoff returned to the client.
type PaymentInitialization struct {
	Reference        string
	Provider         string
	AuthorizationURL string
	AccessCode       string
	Amount           int64
	Currency         string
	ExpiresAt        time.Time
}

// CompletePaymentCommand carries the gateway callback parameters. Reference and
// TrxRef mirror the two query parameters Paystack redirects with; Cancelled is
// set when the customer backed out of the hosted page.
type CompletePaymentCommand struct {
	UserID    string
	Reference string
	TrxRef    string
	Cancelled bool
}

// PaymentResult reports the reconciliation outcome. Request is set only when
// the payment completed and the customization request was created.
type PaymentResult struct {
	State     PaymentState
	Reference string
	Message   string
	Request   *domain.CustomizationRequest
}

// SubmissionEventMessage is the payload published when a customization request
// is created.
type SubmissionEventMessage struct {
	Event            string    `json:"event"`
	RequestID        string    `json:"requestId"`
	UserID           string    `json:"userId"`
	PaymentReference string    `json:"paymentReference,omitempty"`
	Kind             string    `json:"kind"`
	TotalCost        int64     `json:"totalCost"`
	Currency         string    `json:"currency"`
	Status           string    `json:"status"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// SubmissionEventPublisher emits submission events to the notification pipeline.
type SubmissionEventPublisher interface {
	PublishSubmissionEvent(ctx context.Context, message SubmissionEventMessage) (string, error)
}
