package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/inkwell-press/api/internal/domain"
	pfirestore "github.com/inkwell-press/api/internal/platform/firestore"
	"github.com/inkwell-press/api/internal/repositories"
)

const (
	techniqueCollection = "techniques"
	productCollection   = "products"
)

// CatalogRepository serves techniques and products from Firestore.
type CatalogRepository struct {
	techniques *pfirestore.BaseRepository[techniqueDocument]
	products   *pfirestore.BaseRepository[productDocument]
}

// NewCatalogRepository constructs a Firestore-backed catalogue repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		techniques: pfirestore.NewBaseRepository[techniqueDocument](provider, techniqueCollection, nil, nil),
		products:   pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil),
	}, nil
}

type techniqueDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description,omitempty"`
	BaseCost    int64     `firestore:"base_cost"`
	Active      bool      `firestore:"active"`
	CreatedAt   time.Time `firestore:"created_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

type productDocument struct {
	Name      string    `firestore:"name"`
	Category  string    `firestore:"category,omitempty"`
	Price     int64     `firestore:"price"`
	ImageURL  string    `firestore:"image_url,omitempty"`
	Sizes     []string  `firestore:"sizes,omitempty"`
	Colors    []string  `firestore:"colors,omitempty"`
	Active    bool      `firestore:"active"`
	CreatedAt time.Time `firestore:"created_at"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

func (d techniqueDocument) toTechnique(id string) domain.Technique {
	return domain.Technique{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		BaseCost:    d.BaseCost,
		Active:      d.Active,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

func (d productDocument) toProduct(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      d.Name,
		Category:  d.Category,
		Price:     d.Price,
		ImageURL:  d.ImageURL,
		Sizes:     append([]string(nil), d.Sizes...),
		Colors:    append([]string(nil), d.Colors...),
		Active:    d.Active,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// ListTechniques returns the catalogue of printing techniques sorted by name.
func (r *CatalogRepository) ListTechniques(ctx context.Context, activeOnly bool) ([]domain.Technique, error) {
	if r == nil || r.techniques == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	docs, err := r.techniques.Query(ctx, func(query firestore.Query) firestore.Query {
		if activeOnly {
			query = query.Where("active", "==", true)
		}
		return query.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	techniques := make([]domain.Technique, 0, len(docs))
	for _, doc := range docs {
		techniques = append(techniques, doc.Data.toTechnique(doc.ID))
	}
	return techniques, nil
}

// FindTechnique fetches a single technique by ID.
func (r *CatalogRepository) FindTechnique(ctx context.Context, techniqueID string) (domain.Technique, error) {
	if r == nil || r.techniques == nil {
		return domain.Technique{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.techniques.Get(ctx, strings.TrimSpace(techniqueID))
	if err != nil {
		return domain.Technique{}, err
	}
	return doc.Data.toTechnique(doc.ID), nil
}

// ListProducts returns catalogue products, optionally narrowed to a category.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter repositories.ProductListFilter) ([]domain.Product, error) {
	if r == nil || r.products == nil {
		return nil, errors.New("catalog repository not initialised")
	}
	docs, err := r.products.Query(ctx, func(query firestore.Query) firestore.Query {
		if filter.ActiveOnly {
			query = query.Where("active", "==", true)
		}
		if category := strings.TrimSpace(filter.Category); category != "" {
			query = query.Where("category", "==", category)
		}
		return query.OrderBy("name", firestore.Asc).Limit(normaliseLimit(filter.Limit))
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toProduct(doc.ID))
	}
	return products, nil
}

// FindProduct fetches a single product by ID.
func (r *CatalogRepository) FindProduct(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toProduct(doc.ID), nil
}

// SaveTechnique upserts a technique, used by provisioning tooling.
func (r *CatalogRepository) SaveTechnique(ctx context.Context, technique domain.Technique) (domain.Technique, error) {
	if r == nil || r.techniques == nil {
		return domain.Technique{}, errors.New("catalog repository not initialised")
	}
	techniqueID := strings.TrimSpace(technique.ID)
	if techniqueID == "" {
		return domain.Technique{}, errors.New("catalog repository: technique id is required")
	}

	now := time.Now().UTC()
	createdAt := technique.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	doc := techniqueDocument{
		Name:        strings.TrimSpace(technique.Name),
		Description: strings.TrimSpace(technique.Description),
		BaseCost:    technique.BaseCost,
		Active:      technique.Active,
		CreatedAt:   createdAt,
		UpdatedAt:   now,
	}
	result, err := r.techniques.Set(ctx, techniqueID, doc)
	if err != nil {
		return domain.Technique{}, err
	}
	saved := doc.toTechnique(techniqueID)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// SaveProduct upserts a product, used by provisioning tooling.
func (r *CatalogRepository) SaveProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("catalog repository not initialised")
	}
	productID := strings.TrimSpace(product.ID)
	if productID == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}

	now := time.Now().UTC()
	createdAt := product.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	doc := productDocument{
		Name:      strings.TrimSpace(product.Name),
		Category:  strings.TrimSpace(product.Category),
		Price:     product.Price,
		ImageURL:  strings.TrimSpace(product.ImageURL),
		Sizes:     append([]string(nil), product.Sizes...),
		Colors:    append([]string(nil), product.Colors...),
		Active:    product.Active,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	result, err := r.products.Set(ctx, productID, doc)
	if err != nil {
		return domain.Product{}, err
	}
	saved := doc.toProduct(productID)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}
