package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/inkwell-press/api/internal/domain"
	pfirestore "github.com/inkwell-press/api/internal/platform/firestore"
)

const cartCollection = "carts"

// CartRepository persists the per-user cart document, keyed by user ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
	}, nil
}

type cartDocument struct {
	UserID     string                `firestore:"user_id"`
	Currency   string                `firestore:"currency"`
	Items      []cartItemDocument    `firestore:"items"`
	Estimate   *cartEstimateDocument `firestore:"estimate,omitempty"`
	Notes      string                `firestore:"notes,omitempty"`
	ItemsCount int                   `firestore:"items_count"`
	CreatedAt  time.Time             `firestore:"created_at"`
	UpdatedAt  time.Time             `firestore:"updated_at"`
}

type cartItemDocument struct {
	ID                     string `firestore:"id"`
	ProductID              string `firestore:"product_id,omitempty"`
	CustomizationRequestID string `firestore:"customization_request_id,omitempty"`
	Name                   string `firestore:"name"`
	Size                   string `firestore:"size,omitempty"`
	Color                  string `firestore:"color,omitempty"`
	UnitPrice              int64  `firestore:"unit_price"`
	Quantity               int    `firestore:"quantity"`
	ImageURL               string `firestore:"image_url,omitempty"`
}

type cartEstimateDocument struct {
	Subtotal int64 `firestore:"subtotal"`
	Total    int64 `firestore:"total"`
	Items    int   `firestore:"items"`
}

func toCartDocument(cart domain.Cart, now time.Time) cartDocument {
	createdAt := cart.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	doc := cartDocument{
		UserID:     cart.UserID,
		Currency:   strings.ToUpper(strings.TrimSpace(cart.Currency)),
		Items:      make([]cartItemDocument, 0, len(cart.Items)),
		Notes:      strings.TrimSpace(cart.Notes),
		ItemsCount: len(cart.Items),
		CreatedAt:  createdAt,
		UpdatedAt:  now,
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ID:                     item.ID,
			ProductID:              item.ProductID,
			CustomizationRequestID: item.CustomizationRequestID,
			Name:                   item.Name,
			Size:                   item.Size,
			Color:                  item.Color,
			UnitPrice:              item.UnitPrice,
			Quantity:               item.Quantity,
			ImageURL:               item.ImageURL,
		})
	}
	if cart.Estimate != nil {
		doc.Estimate = &cartEstimateDocument{
			Subtotal: cart.Estimate.Subtotal,
			Total:    cart.Estimate.Total,
			Items:    cart.Estimate.Items,
		}
	}
	return doc
}

func (d cartDocument) toCart(id string) domain.Cart {
	cart := domain.Cart{
		ID:        id,
		UserID:    d.UserID,
		Currency:  d.Currency,
		Items:     make([]domain.CartItem, 0, len(d.Items)),
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:                     item.ID,
			ProductID:              item.ProductID,
			CustomizationRequestID: item.CustomizationRequestID,
			Name:                   item.Name,
			Size:                   item.Size,
			Color:                  item.Color,
			UnitPrice:              item.UnitPrice,
			Quantity:               item.Quantity,
			ImageURL:               item.ImageURL,
		})
	}
	if d.Estimate != nil {
		cart.Estimate = &domain.CartEstimate{
			Subtotal: d.Estimate.Subtotal,
			Total:    d.Estimate.Total,
			Items:    d.Estimate.Items,
		}
	}
	return cart
}

// GetCart fetches the user's cart.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(userID))
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toCart(doc.ID), nil
}

// UpsertCart writes the cart document under the user ID.
func (r *CartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	userID := strings.TrimSpace(cart.UserID)
	if userID == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	now := time.Now().UTC()
	if !cart.UpdatedAt.IsZero() {
		now = cart.UpdatedAt.UTC()
	}
	doc := toCartDocument(cart, now)

	result, err := r.base.Set(ctx, userID, doc)
	if err != nil {
		return domain.Cart{}, err
	}

	saved := doc.toCart(userID)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// ClearCart deletes the user's cart. A missing cart is not an error.
func (r *CartRepository) ClearCart(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	return r.base.Delete(ctx, strings.TrimSpace(userID))
}
