package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")

	// ErrCartItemNotFound indicates the referenced cart line does not exist.
	ErrCartItemNotFound = errors.New("cart service: item not found")
)

const maxCartItems = 50

// CartServiceDeps wires the repository and clock for cart operations.
type CartServiceDeps struct {
	Repository      repositories.CartRepository
	Clock           func() time.Time
	DefaultCurrency string
	Logger          Logger
	IDGenerator     func() string
}

type cartService struct {
	repo     repositories.CartRepository
	now      func() time.Time
	currency string
	logger   Logger
	newID    func() string
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "NGN"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &cartService{
		repo:     deps.Repository,
		now:      func() time.Time { return clock().UTC() },
		currency: currency,
		logger:   logger,
		newID:    idGen,
	}, nil
}

// GetCart loads the user's cart, returning an empty cart when none exists.
func (s *cartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, ErrAuthenticationRequired
	}

	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return s.emptyCart(userID), nil
		}
		return domain.Cart{}, classifyRepositoryError("cart service: get cart", err)
	}
	return withEstimate(cart), nil
}

// AddItem appends a line to the cart. Lines referencing the same product with
// the same size and colour merge by incrementing quantity.
func (s *cartService) AddItem(ctx context.Context, userID string, cmd AddCartItemCommand) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, ErrAuthenticationRequired
	}
	if err := validateCartItem(cmd); err != nil {
		return domain.Cart{}, err
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	if len(cart.Items) >= maxCartItems {
		return domain.Cart{}, ValidationErrorf("cart cannot hold more than %d items", maxCartItems)
	}

	merged := false
	for i, item := range cart.Items {
		if cmd.ProductID != "" && item.ProductID == cmd.ProductID && item.Size == cmd.Size && item.Color == cmd.Color {
			cart.Items[i].Quantity += cmd.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:                     strings.ToLower(s.newID()),
			ProductID:              strings.TrimSpace(cmd.ProductID),
			CustomizationRequestID: strings.TrimSpace(cmd.CustomizationRequestID),
			Name:                   strings.TrimSpace(cmd.Name),
			Size:                   strings.TrimSpace(cmd.Size),
			Color:                  strings.TrimSpace(cmd.Color),
			UnitPrice:              cmd.UnitPrice,
			Quantity:               cmd.Quantity,
			ImageURL:               strings.TrimSpace(cmd.ImageURL),
		})
	}

	return s.save(ctx, userID, cart)
}

// UpdateItemQuantity sets the quantity of a line, removing it at zero.
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (domain.Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Cart{}, ErrAuthenticationRequired
	}
	if quantity < 0 {
		return domain.Cart{}, ValidationErrorf("quantity cannot be negative")
	}

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}

	index := indexOfItem(cart.Items, itemID)
	if index < 0 {
		return domain.Cart{}, ErrCartItemNotFound
	}
	if quantity == 0 {
		cart.Items = append(cart.Items[:index], cart.Items[index+1:]...)
	} else {
		cart.Items[index].Quantity = quantity
	}

	return s.save(ctx, userID, cart)
}

// RemoveItem deletes a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, userID string, itemID string) (domain.Cart, error) {
	return s.UpdateItemQuantity(ctx, userID, itemID, 0)
}

// ClearCart removes the cart document entirely.
func (s *cartService) ClearCart(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrAuthenticationRequired
	}
	if err := s.repo.ClearCart(ctx, userID); err != nil {
		return classifyRepositoryError("cart service: clear cart", err)
	}
	return nil
}

func (s *cartService) save(ctx context.Context, userID string, cart domain.Cart) (domain.Cart, error) {
	cart.UserID = userID
	cart.ID = userID
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	cart.UpdatedAt = s.now()
	cart = withEstimate(cart)

	saved, err := s.repo.UpsertCart(ctx, cart)
	if err != nil {
		return domain.Cart{}, classifyRepositoryError("cart service: save cart", err)
	}
	s.logger(ctx, "cart.saved", map[string]any{
		"userId": userID,
		"items":  len(saved.Items),
	})
	return withEstimate(saved), nil
}

func (s *cartService) emptyCart(userID string) domain.Cart {
	now := s.now()
	return withEstimate(domain.Cart{
		ID:        userID,
		UserID:    userID,
		Currency:  s.currency,
		Items:     []domain.CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func validateCartItem(cmd AddCartItemCommand) error {
	if strings.TrimSpace(cmd.ProductID) == "" && strings.TrimSpace(cmd.CustomizationRequestID) == "" {
		return ValidationErrorf("cart item needs a product or customization reference")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		return ValidationErrorf("cart item name is required")
	}
	if cmd.UnitPrice < 0 {
		return ValidationErrorf("cart item unit price cannot be negative")
	}
	if cmd.Quantity < 1 {
		return ValidationErrorf("cart item quantity must be at least 1")
	}
	return nil
}

func indexOfItem(items []domain.CartItem, itemID string) int {
	itemID = strings.TrimSpace(itemID)
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// withEstimate recomputes the derived totals from the line items.
func withEstimate(cart domain.Cart) domain.Cart {
	var subtotal int64
	count := 0
	for _, item := range cart.Items {
		subtotal += item.UnitPrice * int64(item.Quantity)
		count += item.Quantity
	}
	cart.Estimate = &domain.CartEstimate{
		Subtotal: subtotal,
		Total:    subtotal,
		Items:    count,
	}
	return cart
}
