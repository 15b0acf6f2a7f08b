package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/repositories"
)

var errCatalogRepositoryRequired = errors.New("catalog service: repository is required")

// CatalogServiceDeps wires the repository and clock for catalogue operations.
type CatalogServiceDeps struct {
	Repository  repositories.CatalogRepository
	Clock       func() time.Time
	Logger      Logger
	IDGenerator func() string
}

type catalogService struct {
	repo   repositories.CatalogRepository
	now    func() time.Time
	logger Logger
	newID  func() string
}

// NewCatalogService constructs a CatalogService enforcing dependency validation.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Repository == nil {
		return nil, errCatalogRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	return &catalogService{
		repo:   deps.Repository,
		now:    func() time.Time { return clock().UTC() },
		logger: logger,
		newID:  idGen,
	}, nil
}

// ListTechniques returns the active printing techniques.
func (s *catalogService) ListTechniques(ctx context.Context) ([]domain.Technique, error) {
	techniques, err := s.repo.ListTechniques(ctx, true)
	if err != nil {
		return nil, classifyRepositoryError("catalog service: list techniques", err)
	}
	return techniques, nil
}

// GetTechnique fetches a single technique.
func (s *catalogService) GetTechnique(ctx context.Context, techniqueID string) (domain.Technique, error) {
	techniqueID = strings.TrimSpace(techniqueID)
	if techniqueID == "" {
		return domain.Technique{}, ValidationErrorf("technique id is required")
	}
	technique, err := s.repo.FindTechnique(ctx, techniqueID)
	if err != nil {
		return domain.Technique{}, classifyRepositoryError("catalog service: get technique", err)
	}
	return technique, nil
}

// FabricTiers returns the fixed fabric price table.
func (s *catalogService) FabricTiers(_ context.Context) ([]domain.FabricTier, error) {
	return domain.FabricTiers(), nil
}

// ListProducts returns active catalogue products.
func (s *catalogService) ListProducts(ctx context.Context, query ProductQuery) ([]domain.Product, error) {
	products, err := s.repo.ListProducts(ctx, repositories.ProductListFilter{
		Category:   strings.TrimSpace(query.Category),
		ActiveOnly: true,
		Limit:      query.Limit,
	})
	if err != nil {
		return nil, classifyRepositoryError("catalog service: list products", err)
	}
	return products, nil
}

// GetProduct fetches a single product.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, ValidationErrorf("product id is required")
	}
	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, classifyRepositoryError("catalog service: get product", err)
	}
	return product, nil
}

// UpsertTechnique creates or updates a technique. Active defaults to true on create.
func (s *catalogService) UpsertTechnique(ctx context.Context, cmd UpsertTechniqueCommand) (domain.Technique, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Technique{}, ValidationErrorf("technique name is required")
	}
	if cmd.BaseCost < 0 {
		return domain.Technique{}, ValidationErrorf("technique base cost cannot be negative")
	}

	technique := domain.Technique{
		ID:          strings.TrimSpace(cmd.ID),
		Name:        name,
		Description: strings.TrimSpace(cmd.Description),
		BaseCost:    cmd.BaseCost,
		Active:      true,
	}
	if technique.ID == "" {
		technique.ID = strings.ToLower(s.newID())
	} else if existing, err := s.repo.FindTechnique(ctx, technique.ID); err == nil {
		technique.CreatedAt = existing.CreatedAt
		technique.Active = existing.Active
	}
	if cmd.Active != nil {
		technique.Active = *cmd.Active
	}

	saved, err := s.repo.SaveTechnique(ctx, technique)
	if err != nil {
		return domain.Technique{}, classifyRepositoryError("catalog service: save technique", err)
	}
	s.logger(ctx, "catalog.technique.saved", map[string]any{
		"techniqueId": saved.ID,
		"baseCost":    saved.BaseCost,
	})
	return saved, nil
}

// UpsertProduct creates or updates a catalogue product. Active defaults to true on create.
func (s *catalogService) UpsertProduct(ctx context.Context, cmd UpsertProductCommand) (domain.Product, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return domain.Product{}, ValidationErrorf("product name is required")
	}
	if cmd.Price < 0 {
		return domain.Product{}, ValidationErrorf("product price cannot be negative")
	}

	product := domain.Product{
		ID:       strings.TrimSpace(cmd.ID),
		Name:     name,
		Category: strings.TrimSpace(cmd.Category),
		Price:    cmd.Price,
		ImageURL: strings.TrimSpace(cmd.ImageURL),
		Sizes:    trimAll(cmd.Sizes),
		Colors:   trimAll(cmd.Colors),
		Active:   true,
	}
	if product.ID == "" {
		product.ID = strings.ToLower(s.newID())
	} else if existing, err := s.repo.FindProduct(ctx, product.ID); err == nil {
		product.CreatedAt = existing.CreatedAt
		product.Active = existing.Active
	}
	if cmd.Active != nil {
		product.Active = *cmd.Active
	}

	saved, err := s.repo.SaveProduct(ctx, product)
	if err != nil {
		return domain.Product{}, classifyRepositoryError("catalog service: save product", err)
	}
	s.logger(ctx, "catalog.product.saved", map[string]any{
		"productId": saved.ID,
		"price":     saved.Price,
	})
	return saved, nil
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// classifyRepositoryError maps repository categorisation onto service sentinels.
func classifyRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %s: %v", ErrNotFound, op, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
