package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/services"
)

// CatalogHandlers serves the public catalogue and the admin upserts behind it.
type CatalogHandlers struct {
	catalog services.CatalogService
	pricing PricingHandlers
}

// NewCatalogHandlers constructs catalogue handlers.
func NewCatalogHandlers(catalog services.CatalogService) (*CatalogHandlers, error) {
	if catalog == nil {
		return nil, errors.New("catalog handlers: catalog service is required")
	}
	return &CatalogHandlers{catalog: catalog}, nil
}

// RegisterPublic mounts the unauthenticated catalogue routes.
func (h *CatalogHandlers) RegisterPublic(r chi.Router) {
	r.Get("/techniques", h.listTechniques)
	r.Get("/techniques/{techniqueID}", h.getTechnique)
	r.Get("/fabric-tiers", h.listFabricTiers)
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Post("/cost-estimate", h.pricing.estimateCost)
}

// RegisterAdmin mounts the role-guarded catalogue management routes.
func (h *CatalogHandlers) RegisterAdmin(r chi.Router) {
	r.Put("/techniques/{techniqueID}", h.upsertTechnique)
	r.Post("/techniques", h.upsertTechnique)
	r.Put("/products/{productID}", h.upsertProduct)
	r.Post("/products", h.upsertProduct)
}

type techniquePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BaseCost    int64  `json:"base_cost"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type productPayload struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Category  string   `json:"category,omitempty"`
	Price     int64    `json:"price"`
	ImageURL  string   `json:"image_url,omitempty"`
	Sizes     []string `json:"sizes,omitempty"`
	Colors    []string `json:"colors,omitempty"`
	Active    bool     `json:"active"`
	CreatedAt string   `json:"created_at,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

func techniqueToPayload(technique domain.Technique) techniquePayload {
	return techniquePayload{
		ID:          technique.ID,
		Name:        technique.Name,
		Description: technique.Description,
		BaseCost:    technique.BaseCost,
		Active:      technique.Active,
		CreatedAt:   formatTime(technique.CreatedAt),
		UpdatedAt:   formatTime(technique.UpdatedAt),
	}
}

func productToPayload(product domain.Product) productPayload {
	return productPayload{
		ID:        product.ID,
		Name:      product.Name,
		Category:  product.Category,
		Price:     product.Price,
		ImageURL:  product.ImageURL,
		Sizes:     product.Sizes,
		Colors:    product.Colors,
		Active:    product.Active,
		CreatedAt: formatTime(product.CreatedAt),
		UpdatedAt: formatTime(product.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (h *CatalogHandlers) listTechniques(w http.ResponseWriter, r *http.Request) {
	techniques, err := h.catalog.ListTechniques(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]techniquePayload, 0, len(techniques))
	for _, technique := range techniques {
		payload = append(payload, techniqueToPayload(technique))
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"techniques": payload})
}

func (h *CatalogHandlers) getTechnique(w http.ResponseWriter, r *http.Request) {
	technique, err := h.catalog.GetTechnique(r.Context(), chi.URLParam(r, "techniqueID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, techniqueToPayload(technique))
}

func (h *CatalogHandlers) listFabricTiers(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.catalog.FabricTiers(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]map[string]any, 0, len(tiers))
	for _, tier := range tiers {
		payload = append(payload, map[string]any{"gsm": tier.GSM, "cost": tier.Cost})
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"fabric_tiers": payload})
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeServiceError(r.Context(), w, services.ValidationErrorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	products, err := h.catalog.ListProducts(r.Context(), services.ProductQuery{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		payload = append(payload, productToPayload(product))
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"products": payload})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, productToPayload(product))
}

type upsertTechniqueRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BaseCost    int64  `json:"base_cost"`
	Active      *bool  `json:"active"`
}

func (h *CatalogHandlers) upsertTechnique(w http.ResponseWriter, r *http.Request) {
	var body upsertTechniqueRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	technique, err := h.catalog.UpsertTechnique(r.Context(), services.UpsertTechniqueCommand{
		ID:          chi.URLParam(r, "techniqueID"),
		Name:        body.Name,
		Description: body.Description,
		BaseCost:    body.BaseCost,
		Active:      body.Active,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, techniqueToPayload(technique))
}

type upsertProductRequest struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    int64    `json:"price"`
	ImageURL string   `json:"image_url"`
	Sizes    []string `json:"sizes"`
	Colors   []string `json:"colors"`
	Active   *bool    `json:"active"`
}

func (h *CatalogHandlers) upsertProduct(w http.ResponseWriter, r *http.Request) {
	var body upsertProductRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	product, err := h.catalog.UpsertProduct(r.Context(), services.UpsertProductCommand{
		ID:       chi.URLParam(r, "productID"),
		Name:     body.Name,
		Category: body.Category,
		Price:    body.Price,
		ImageURL: body.ImageURL,
		Sizes:    body.Sizes,
		Colors:   body.Colors,
		Active:   body.Active,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, productToPayload(product))
}
