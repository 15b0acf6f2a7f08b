package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/platform/auth"
	"github.com/inkwell-press/api/internal/repositories"
	"github.com/inkwell-press/api/internal/services"
)

// CustomizationHandlers serves the request listing and staff review endpoints.
type CustomizationHandlers struct {
	customizations services.CustomizationService
}

// NewCustomizationHandlers constructs customization handlers.
func NewCustomizationHandlers(customizations services.CustomizationService) (*CustomizationHandlers, error) {
	if customizations == nil {
		return nil, errors.New("customization handlers: customization service is required")
	}
	return &CustomizationHandlers{customizations: customizations}, nil
}

// RegisterMe mounts the owner-scoped routes.
func (h *CustomizationHandlers) RegisterMe(r chi.Router) {
	r.Get("/customizations", h.listMine)
	r.Get("/customizations/{requestID}", h.getMine)
}

// RegisterAdmin mounts the staff review routes.
func (h *CustomizationHandlers) RegisterAdmin(r chi.Router) {
	r.Get("/customizations", h.listAll)
	r.Patch("/customizations/{requestID}/status", h.updateStatus)
}

type specPayload struct {
	Kind          string  `json:"kind"`
	TechniqueID   string  `json:"technique_id"`
	TechniqueName string  `json:"technique_name,omitempty"`
	MaterialID    *string `json:"material_id,omitempty"`
	FabricOption  string  `json:"fabric_option,omitempty"`
	FabricGSM     *int    `json:"fabric_gsm,omitempty"`
	Quantity      int     `json:"quantity"`
	ProductID     string  `json:"product_id,omitempty"`
	ProductName   string  `json:"product_name,omitempty"`
	ProductPrice  *int64  `json:"product_price,omitempty"`
	ItemType      string  `json:"item_type,omitempty"`
	Size          string  `json:"size,omitempty"`
	Color         string  `json:"color,omitempty"`
}

type contactPayload struct {
	PhoneNumber     string `json:"phone_number,omitempty"`
	WhatsAppNumber  string `json:"whatsapp_number,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
}

type requestPayload struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	Title            string               `json:"title"`
	Description      string               `json:"description,omitempty"`
	Spec             specPayload          `json:"spec"`
	Cost             costBreakdownPayload `json:"cost"`
	DesignURL        string               `json:"design_url,omitempty"`
	DesignFileID     string               `json:"design_file_id,omitempty"`
	ImageURL         string               `json:"image_url,omitempty"`
	Contact          *contactPayload      `json:"contact,omitempty"`
	PaymentReference string               `json:"payment_reference,omitempty"`
	PaymentCompleted bool                 `json:"payment_completed"`
	Status           string               `json:"status"`
	AdminNote        string               `json:"admin_note,omitempty"`
	CreatedAt        string               `json:"created_at,omitempty"`
	UpdatedAt        string               `json:"updated_at,omitempty"`
}

func requestToPayload(request domain.CustomizationRequest) requestPayload {
	spec := specPayload{
		Kind:          string(request.Spec.Kind),
		TechniqueID:   request.Spec.TechniqueID,
		TechniqueName: request.Spec.TechniqueName,
		MaterialID:    request.Spec.MaterialID,
		FabricOption:  string(request.Spec.FabricOption),
		FabricGSM:     request.Spec.FabricGSM,
		Quantity:      request.Spec.Quantity,
	}
	if request.Spec.Product != nil {
		spec.ProductID = request.Spec.Product.ProductID
		spec.ProductName = request.Spec.Product.ProductName
		price := request.Spec.Product.ProductPrice
		spec.ProductPrice = &price
	}
	if request.Spec.Personal != nil {
		spec.ItemType = request.Spec.Personal.ItemType
		spec.Size = request.Spec.Personal.Size
		spec.Color = request.Spec.Personal.Color
	}

	payload := requestPayload{
		ID:               request.ID,
		UserID:           request.UserID,
		Title:            request.Title,
		Description:      request.Description,
		Spec:             spec,
		Cost:             costToPayload(request.Cost),
		DesignURL:        request.DesignURL,
		DesignFileID:     request.DesignFileID,
		ImageURL:         request.ImageURL,
		PaymentReference: request.PaymentReference,
		PaymentCompleted: request.PaymentCompleted,
		Status:           string(request.Status),
		AdminNote:        request.AdminNote,
		CreatedAt:        formatTime(request.CreatedAt),
		UpdatedAt:        formatTime(request.UpdatedAt),
	}
	if request.Contact != (domain.ContactDetails{}) {
		payload.Contact = &contactPayload{
			PhoneNumber:     request.Contact.PhoneNumber,
			WhatsAppNumber:  request.Contact.WhatsAppNumber,
			DeliveryAddress: request.Contact.DeliveryAddress,
		}
	}
	return payload
}

func requestsToPayload(requests []domain.CustomizationRequest) []requestPayload {
	payload := make([]requestPayload, 0, len(requests))
	for _, request := range requests {
		payload = append(payload, requestToPayload(request))
	}
	return payload
}

func identityFromRequest(r *http.Request) (*auth.Identity, bool) {
	return auth.IdentityFromContext(r.Context())
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, services.ValidationErrorf("limit must be a positive integer")
	}
	return limit, nil
}

func (h *CustomizationHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	requests, err := h.customizations.ListMine(r.Context(), identity.UID, limit)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"customizations": requestsToPayload(requests)})
}

func (h *CustomizationHandlers) getMine(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFromRequest(r)
	if !ok {
		writeServiceError(r.Context(), w, services.ErrAuthenticationRequired)
		return
	}

	request, err := h.customizations.GetMine(r.Context(), identity.UID, chi.URLParam(r, "requestID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, requestToPayload(request))
}

func (h *CustomizationHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	filter := repositories.CustomizationListFilter{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  limit,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.RequestStatus(raw)
		filter.Status = &status
	}

	requests, err := h.customizations.List(r.Context(), filter)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"customizations": requestsToPayload(requests)})
}

type updateStatusRequest struct {
	Status    string `json:"status"`
	AdminNote string `json:"admin_note"`
}

func (h *CustomizationHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	var body updateStatusRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	request, err := h.customizations.UpdateStatus(r.Context(), services.UpdateStatusCommand{
		RequestID: chi.URLParam(r, "requestID"),
		Status:    domain.RequestStatus(body.Status),
		AdminNote: body.AdminNote,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, requestToPayload(request))
}
