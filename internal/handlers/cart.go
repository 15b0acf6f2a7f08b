package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/services"
)

// CartHandlers serves the per-user cart endpoints.
type CartHandlers struct {
	cart services.CartService
}

// NewCartHandlers constructs cart handlers.
func NewCartHandlers(cart services.CartService) (*CartHandlers, error) {
	if cart == nil {
		return nil, errors.New("cart handlers: cart service is required")
	}
	return &CartHandlers{cart: cart}, nil
}

// RegisterMe mounts the owner-scoped cart routes.
func (h *CartHandlers) RegisterMe(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{itemID}", h.updateItemQuantity)
	r.Delete("/cart/items/{itemID}", h.removeItem)
	r.Delete("/cart", h.clearCart)
}

type cartItemPayload struct {
	ID                     string `json:"id"`
	ProductID              string `json:"product_id,omitempty"`
	CustomizationRequestID string `json:"customization_request_id,omitempty"`
	Name                   string `json:"name"`
	Size                   string `json:"size,omitempty"`
	Color                  string `json:"color,omitempty"`
	UnitPrice              int64  `json:"unit_price"`
	Quantity               int    `json:"quantity"`
	ImageURL               string `json:"image_url,omitempty"`
}

type cartEstimatePayload struct {
	Subtotal int64 `json:"subtotal"`
	Total    int64 `json:"total"`
	Items    int   `json:"items"`
}

type cartPayload struct {
	ID        string               `json:"id,omitempty"`
	UserID    string               `json:"user_id"`
	Currency  string               `json:"currency"`
	Items     []cartItemPayload    `json:"items"`
	Estimate  *cartEstimatePayload `json:"estimate,omitempty"`
	Notes     string               `json:"notes,omitempty"`
	CreatedAt string               `json:"created_at,omitempty"`
	UpdatedAt string               `json:"updated_at,omitempty"`
}

func cartToPayload(cart domain.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
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

	payload := cartPayload{
		ID:        cart.ID,
		UserID:    cart.UserID,
		Currency:  cart.Currency,
		Items:     items,
		Notes:     cart.Notes,
		CreatedAt: formatTime(cart.CreatedAt),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	if cart.Estimate != nil {
		payload.Estimate = &cartEstimatePayload{
			Subtotal: cart.Estimate.Subtotal,
			Total:    cart.Estimate.Total,
			Items:    cart.Estimate.Items,
		}
	}
	return payload
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	cart, err := h.cart.GetCart(r.Context(), identity.UID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cartToPayload(cart))
}

type addCartItemRequest struct {
	ProductID              string `json:"product_id"`
	CustomizationRequestID string `json:"customization_request_id"`
	Name                   string `json:"name"`
	Size                   string `json:"size"`
	Color                  string `json:"color"`
	UnitPrice              int64  `json:"unit_price"`
	Quantity               int    `json:"quantity"`
	ImageURL               string `json:"image_url"`
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	var body addCartItemRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	cart, err := h.cart.AddItem(r.Context(), identity.UID, services.AddCartItemCommand{
		ProductID:              body.ProductID,
		CustomizationRequestID: body.CustomizationRequestID,
		Name:                   body.Name,
		Size:                   body.Size,
		Color:                  body.Color,
		UnitPrice:              body.UnitPrice,
		Quantity:               body.Quantity,
		ImageURL:               body.ImageURL,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, cartToPayload(cart))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *CartHandlers) updateItemQuantity(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	var body updateCartItemRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	cart, err := h.cart.UpdateItemQuantity(r.Context(), identity.UID, chi.URLParam(r, "itemID"), body.Quantity)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cartToPayload(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	cart, err := h.cart.RemoveItem(r.Context(), identity.UID, chi.URLParam(r, "itemID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, cartToPayload(cart))
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	if err := h.cart.ClearCart(r.Context(), identity.UID); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
