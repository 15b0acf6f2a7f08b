package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/platform/config"
	pfirestore "github.com/inkwell-press/api/internal/platform/firestore"
	"github.com/inkwell-press/api/internal/platform/observability"
	firestoreRepo "github.com/inkwell-press/api/internal/repositories/firestore"
)

// seedFile is the JSON shape accepted by -file.
type seedFile struct {
	Techniques []seedTechnique `json:"techniques"`
	Products   []seedProduct   `json:"products"`
}

type seedTechnique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BaseCost    int64  `json:"base_cost"`
}

type seedProduct struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Price    int64    `json:"price"`
	ImageURL string   `json:"image_url"`
	Sizes    []string `json:"sizes"`
	Colors   []string `json:"colors"`
}

func defaultSeed() seedFile {
	return seedFile{
		Techniques: []seedTechnique{
			{ID: "screen-print", Name: "Screen printing", Description: "Layered ink through a mesh stencil, best for bold flat colours.", BaseCost: 1500},
			{ID: "embroidery", Name: "Embroidery", Description: "Stitched thread artwork for a premium textured finish.", BaseCost: 2500},
			{ID: "dtf-transfer", Name: "DTF transfer", Description: "Full-colour film transfer suited to detailed artwork.", BaseCost: 2000},
			{ID: "vinyl-print", Name: "Vinyl print", Description: "Heat-pressed vinyl for names, numbers and simple shapes.", BaseCost: 1200},
		},
		Products: []seedProduct{
			{ID: "tee-classic", Name: "Classic tee", Category: "t-shirts", Price: 12000, Sizes: []string{"S", "M", "L", "XL", "XXL"}, Colors: []string{"white", "black", "navy"}},
			{ID: "hoodie-heavy", Name: "Heavyweight hoodie", Category: "hoodies", Price: 28000, Sizes: []string{"S", "M", "L", "XL"}, Colors: []string{"black", "grey"}},
			{ID: "tote-canvas", Name: "Canvas tote", Category: "bags", Price: 8000, Colors: []string{"natural", "black"}},
			{ID: "cap-snapback", Name: "Snapback cap", Category: "headwear", Price: 9500, Colors: []string{"black", "white", "red"}},
		},
	}
}

func main() {
	filePath := flag.String("file", "", "JSON seed file; the built-in catalogue is used when empty")
	dryRun := flag.Bool("dry-run", false, "print what would be written without touching Firestore")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("provision")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	seed := defaultSeed()
	if *filePath != "" {
		raw, err := os.ReadFile(*filePath)
		if err != nil {
			logger.Fatal("failed to read seed file", zap.String("path", *filePath), zap.Error(err))
		}
		if err := json.Unmarshal(raw, &seed); err != nil {
			logger.Fatal("failed to parse seed file", zap.String("path", *filePath), zap.Error(err))
		}
	}

	if *dryRun {
		for _, technique := range seed.Techniques {
			logger.Info("would seed technique", zap.String("id", technique.ID), zap.Int64("baseCost", technique.BaseCost))
		}
		for _, product := range seed.Products {
			logger.Info("would seed product", zap.String("id", product.ID), zap.Int64("price", product.Price))
		}
		return
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		if err := provider.Close(); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	catalogRepo, err := firestoreRepo.NewCatalogRepository(provider)
	if err != nil {
		logger.Fatal("failed to initialise catalog repository", zap.Error(err))
	}

	now := time.Now().UTC()
	for _, technique := range seed.Techniques {
		saved, err := catalogRepo.SaveTechnique(ctx, domain.Technique{
			ID:          technique.ID,
			Name:        technique.Name,
			Description: technique.Description,
			BaseCost:    technique.BaseCost,
			Active:      true,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		if err != nil {
			logger.Fatal("failed to seed technique", zap.String("id", technique.ID), zap.Error(err))
		}
		logger.Info("seeded technique", zap.String("id", saved.ID), zap.String("name", saved.Name))
	}

	for _, product := range seed.Products {
		saved, err := catalogRepo.SaveProduct(ctx, domain.Product{
			ID:        product.ID,
			Name:      product.Name,
			Category:  product.Category,
			Price:     product.Price,
			ImageURL:  product.ImageURL,
			Sizes:     product.Sizes,
			Colors:    product.Colors,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			logger.Fatal("failed to seed product", zap.String("id", product.ID), zap.Error(err))
		}
		logger.Info("seeded product", zap.String("id", saved.ID), zap.String("name", saved.Name))
	}

	logger.Info("catalogue provisioning complete",
		zap.Int("techniques", len(seed.Techniques)),
		zap.Int("products", len(seed.Products)),
	)
}
