package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/inkwell-press/api/internal/domain"
	pfirestore "github.com/inkwell-press/api/internal/platform/firestore"
	"github.com/inkwell-press/api/internal/repositories"
)

const (
	customizationCollection = "customization_requests"

	defaultListLimit = 50
	maxListLimit     = 200
)

// CustomizationLogger receives structured events emitted by the repository.
type CustomizationLogger func(ctx context.Context, event string, fields map[string]any)

// CustomizationRepository persists customization requests within Firestore.
type CustomizationRepository struct {
	base     *pfirestore.BaseRepository[customizationDocument]
	provider *pfirestore.Provider
	logger   CustomizationLogger
}

// CustomizationRepositoryOption customises repository behaviour.
type CustomizationRepositoryOption func(*CustomizationRepository)

// WithCustomizationLogger wires a logger callback for repository events.
func WithCustomizationLogger(logger CustomizationLogger) CustomizationRepositoryOption {
	return func(r *CustomizationRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewCustomizationRepository constructs a Firestore-backed customization repository.
func NewCustomizationRepository(provider *pfirestore.Provider, opts ...CustomizationRepositoryOption) (*CustomizationRepository, error) {
	if provider == nil {
		return nil, errors.New("customization repository requires firestore provider")
	}
	repo := &CustomizationRepository{
		base:     pfirestore.NewBaseRepository[customizationDocument](provider, customizationCollection, nil, nil),
		provider: provider,
		logger:   func(context.Context, string, map[string]any) {},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// customizationDocument is the flattened persisted shape. The tagged-union spec
// collapses to a superset of product-linked and personal-item fields so both
// kinds share one collection schema.
type customizationDocument struct {
	UserID string `firestore:"user_id"`

	Title       string `firestore:"title"`
	Description string `firestore:"description,omitempty"`

	Kind          string  `firestore:"kind"`
	TechniqueID   string  `firestore:"technique_id"`
	TechniqueName string  `firestore:"technique_name"`
	MaterialID    *string `firestore:"material_id,omitempty"`
	FabricOption  string  `firestore:"fabric_option,omitempty"`
	FabricGSM     *int    `firestore:"fabric_gsm,omitempty"`
	Quantity      int     `firestore:"quantity"`

	ProductID    string `firestore:"product_id,omitempty"`
	ProductName  string `firestore:"product_name,omitempty"`
	ProductPrice int64  `firestore:"product_price,omitempty"`

	ItemType string `firestore:"item_type,omitempty"`
	Size     string `firestore:"size,omitempty"`
	Color    string `firestore:"color,omitempty"`

	TechniqueCost int64 `firestore:"technique_cost"`
	FabricCost    int64 `firestore:"fabric_cost"`
	UnitCost      int64 `firestore:"unit_cost"`
	TotalCost     int64 `firestore:"total_cost"`

	DesignURL    string `firestore:"design_url,omitempty"`
	DesignFileID string `firestore:"design_file_id,omitempty"`
	ImageURL     string `firestore:"image_url,omitempty"`

	PhoneNumber     string `firestore:"phone_number,omitempty"`
	WhatsAppNumber  string `firestore:"whatsapp_number,omitempty"`
	DeliveryAddress string `firestore:"delivery_address,omitempty"`

	PaymentReference string `firestore:"payment_reference"`
	PaymentCompleted bool   `firestore:"payment_completed"`

	Status    string `firestore:"status"`
	AdminNote string `firestore:"admin_note,omitempty"`

	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func toCustomizationDocument(request domain.CustomizationRequest) customizationDocument {
	doc := customizationDocument{
		UserID:           request.UserID,
		Title:            request.Title,
		Description:      request.Description,
		Kind:             string(request.Spec.Kind),
		TechniqueID:      request.Spec.TechniqueID,
		TechniqueName:    request.Spec.TechniqueName,
		MaterialID:       request.Spec.MaterialID,
		FabricOption:     string(request.Spec.FabricOption),
		FabricGSM:        request.Spec.FabricGSM,
		Quantity:         request.Spec.Quantity,
		TechniqueCost:    request.Cost.TechniqueCost,
		FabricCost:       request.Cost.FabricCost,
		UnitCost:         request.Cost.UnitCost,
		TotalCost:        request.Cost.TotalCost,
		DesignURL:        request.DesignURL,
		DesignFileID:     request.DesignFileID,
		ImageURL:         request.ImageURL,
		PhoneNumber:      request.Contact.PhoneNumber,
		WhatsAppNumber:   request.Contact.WhatsAppNumber,
		DeliveryAddress:  request.Contact.DeliveryAddress,
		PaymentReference: request.PaymentReference,
		PaymentCompleted: request.PaymentCompleted,
		Status:           string(request.Status),
		AdminNote:        request.AdminNote,
		CreatedAt:        request.CreatedAt,
		UpdatedAt:        request.UpdatedAt,
	}
	if request.Spec.Product != nil {
		doc.ProductID = request.Spec.Product.ProductID
		doc.ProductName = request.Spec.Product.ProductName
		doc.ProductPrice = request.Spec.Product.ProductPrice
	}
	if request.Spec.Personal != nil {
		doc.ItemType = request.Spec.Personal.ItemType
		doc.Size = request.Spec.Personal.Size
		doc.Color = request.Spec.Personal.Color
	}
	return doc
}

func (d customizationDocument) toRequest(id string) domain.CustomizationRequest {
	request := domain.CustomizationRequest{
		ID:          id,
		UserID:      d.UserID,
		Title:       d.Title,
		Description: d.Description,
		Spec: domain.CustomizationSpec{
			Kind:          domain.CustomizationKind(d.Kind),
			TechniqueID:   d.TechniqueID,
			TechniqueName: d.TechniqueName,
			MaterialID:    d.MaterialID,
			FabricOption:  domain.FabricPurchaseOption(d.FabricOption),
			FabricGSM:     d.FabricGSM,
			Quantity:      d.Quantity,
		},
		Cost: domain.CostBreakdown{
			TechniqueCost: d.TechniqueCost,
			FabricCost:    d.FabricCost,
			UnitCost:      d.UnitCost,
			TotalCost:     d.TotalCost,
		},
		DesignURL:    d.DesignURL,
		DesignFileID: d.DesignFileID,
		ImageURL:     d.ImageURL,
		Contact: domain.ContactDetails{
			PhoneNumber:     d.PhoneNumber,
			WhatsAppNumber:  d.WhatsAppNumber,
			DeliveryAddress: d.DeliveryAddress,
		},
		PaymentReference: d.PaymentReference,
		PaymentCompleted: d.PaymentCompleted,
		Status:           domain.RequestStatus(d.Status),
		AdminNote:        d.AdminNote,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if request.Spec.Kind == domain.KindProductLinked {
		request.Spec.Product = &domain.ProductLink{
			ProductID:    d.ProductID,
			ProductName:  d.ProductName,
			ProductPrice: d.ProductPrice,
		}
	}
	if request.Spec.Kind == domain.KindPersonalItem {
		request.Spec.Personal = &domain.PersonalItem{
			ItemType: d.ItemType,
			Size:     d.Size,
			Color:    d.Color,
		}
	}
	return request
}

// CreateWithPaymentReference inserts the request inside a transaction that
// first checks no prior request holds the same payment reference. A transient
// lookup failure does not block the create; a confirmed duplicate does.
func (r *CustomizationRepository) CreateWithPaymentReference(ctx context.Context, request domain.CustomizationRequest) (domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return domain.CustomizationRequest{}, errors.New("customization repository not initialised")
	}
	requestID := strings.TrimSpace(request.ID)
	if requestID == "" {
		return domain.CustomizationRequest{}, errors.New("customization repository: request id is required")
	}
	reference := strings.TrimSpace(request.PaymentReference)
	if reference == "" {
		return domain.CustomizationRequest{}, errors.New("customization repository: payment reference is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CustomizationRequest{}, err
	}

	coll := client.Collection(customizationCollection)
	docRef := coll.Doc(requestID)
	doc := toCustomizationDocument(request)

	err = pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		query := coll.Where("payment_reference", "==", reference).Limit(1)
		existing, lookupErr := tx.Documents(query).GetAll()
		if lookupErr != nil {
			wrapped := pfirestore.WrapError("customization_requests.duplicate_check", lookupErr)
			var repoErr repositories.RepositoryError
			if errors.As(wrapped, &repoErr) && repoErr.IsUnavailable() {
				r.logger(ctx, "customization.duplicate_check_degraded", map[string]any{
					"reference": reference,
					"error":     lookupErr.Error(),
				})
			} else {
				return wrapped
			}
		} else if len(existing) > 0 {
			return fmt.Errorf("%w: %s", repositories.ErrDuplicatePaymentReference, reference)
		}
		return tx.Create(docRef, doc)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicatePaymentReference) {
			return domain.CustomizationRequest{}, err
		}
		return domain.CustomizationRequest{}, pfirestore.WrapError("customization_requests.create", err)
	}

	return doc.toRequest(requestID), nil
}

// FindByID fetches a single customization request.
func (r *CustomizationRepository) FindByID(ctx context.Context, requestID string) (domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return domain.CustomizationRequest{}, errors.New("customization repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(requestID))
	if err != nil {
		return domain.CustomizationRequest{}, err
	}
	return doc.Data.toRequest(doc.ID), nil
}

// FindByPaymentReference fetches the request claiming the payment reference.
func (r *CustomizationRepository) FindByPaymentReference(ctx context.Context, reference string) (domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return domain.CustomizationRequest{}, errors.New("customization repository not initialised")
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.CustomizationRequest{}, pfirestore.WrapError("customization_requests.find_by_reference", errors.New("reference is required"))
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.Where("payment_reference", "==", reference).Limit(1)
	})
	if err != nil {
		return domain.CustomizationRequest{}, err
	}
	if len(docs) == 0 {
		return domain.CustomizationRequest{}, pfirestore.NotFoundError("customization_requests.find_by_reference")
	}
	return docs[0].Data.toRequest(docs[0].ID), nil
}

// ListByUser returns the user's requests, newest first.
func (r *CustomizationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("customization repository not initialised")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("customization repository: user id is required")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("user_id", "==", userID).
			OrderBy("created_at", firestore.Desc).
			Limit(normaliseLimit(limit))
	})
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs), nil
}

// List returns requests for staff review, optionally filtered by status or user.
func (r *CustomizationRepository) List(ctx context.Context, filter repositories.CustomizationListFilter) ([]domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("customization repository not initialised")
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.Status != nil {
			query = query.Where("status", "==", string(*filter.Status))
		}
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			query = query.Where("user_id", "==", userID)
		}
		return query.
			OrderBy("created_at", firestore.Desc).
			Limit(normaliseLimit(filter.Limit))
	})
	if err != nil {
		return nil, err
	}
	return decodeRequests(docs), nil
}

// UpdateStatus applies a staff transition and returns the stored request.
func (r *CustomizationRepository) UpdateStatus(ctx context.Context, requestID string, update repositories.StatusUpdate) (domain.CustomizationRequest, error) {
	if r == nil || r.base == nil {
		return domain.CustomizationRequest{}, errors.New("customization repository not initialised")
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return domain.CustomizationRequest{}, errors.New("customization repository: request id is required")
	}

	updatedAt := update.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	updates := []firestore.Update{
		{Path: "status", Value: string(update.Status)},
		{Path: "updated_at", Value: updatedAt.UTC()},
	}
	if note := strings.TrimSpace(update.AdminNote); note != "" {
		updates = append(updates, firestore.Update{Path: "admin_note", Value: note})
	}

	if _, err := r.base.Update(ctx, requestID, updates); err != nil {
		return domain.CustomizationRequest{}, err
	}
	return r.FindByID(ctx, requestID)
}

func decodeRequests(docs []pfirestore.Document[customizationDocument]) []domain.CustomizationRequest {
	requests := make([]domain.CustomizationRequest, 0, len(docs))
	for _, doc := range docs {
		requests = append(requests, doc.Data.toRequest(doc.ID))
	}
	return requests
}

func normaliseLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
