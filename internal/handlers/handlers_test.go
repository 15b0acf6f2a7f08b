package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/platform/auth"
	"github.com/inkwell-press/api/internal/repositories"
	"github.com/inkwell-press/api/internal/services"
)

type stubCatalogService struct {
	techniques []domain.Technique
	products   []domain.Product
	upserted   []services.UpsertTechniqueCommand
	err        error
}

func (s *stubCatalogService) ListTechniques(ctx context.Context) ([]domain.Technique, error) {
	return s.techniques, s.err
}

func (s *stubCatalogService) GetTechnique(ctx context.Context, techniqueID string) (domain.Technique, error) {
	for _, technique := range s.techniques {
		if technique.ID == techniqueID {
			return technique, nil
		}
	}
	return domain.Technique{}, services.ErrNotFound
}

func (s *stubCatalogService) FabricTiers(ctx context.Context) ([]domain.FabricTier, error) {
	return domain.FabricTiers(), nil
}

func (s *stubCatalogService) ListProducts(ctx context.Context, query services.ProductQuery) ([]domain.Product, error) {
	return s.products, s.err
}

func (s *stubCatalogService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	for _, product := range s.products {
		if product.ID == productID {
			return product, nil
		}
	}
	return domain.Product{}, services.ErrNotFound
}

func (s *stubCatalogService) UpsertTechnique(ctx context.Context, cmd services.UpsertTechniqueCommand) (domain.Technique, error) {
	s.upserted = append(s.upserted, cmd)
	id := cmd.ID
	if id == "" {
		id = "generated-id"
	}
	return domain.Technique{ID: id, Name: cmd.Name, BaseCost: cmd.BaseCost, Active: true}, nil
}

func (s *stubCatalogService) UpsertProduct(ctx context.Context, cmd services.UpsertProductCommand) (domain.Product, error) {
	id := cmd.ID
	if id == "" {
		id = "generated-id"
	}
	return domain.Product{ID: id, Name: cmd.Name, Price: cmd.Price, Active: true}, nil
}

type stubCartService struct {
	cart domain.Cart
	err  error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) AddItem(ctx context.Context, userID string, cmd services.AddCartItemCommand) (domain.Cart, error) {
	if s.err != nil {
		return domain.Cart{}, s.err
	}
	s.cart.Items = append(s.cart.Items, domain.CartItem{
		ID:        "item_1",
		ProductID: cmd.ProductID,
		Name:      cmd.Name,
		UnitPrice: cmd.UnitPrice,
		Quantity:  cmd.Quantity,
	})
	return s.cart, nil
}

func (s *stubCartService) UpdateItemQuantity(ctx context.Context, userID string, itemID string, quantity int) (domain.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) RemoveItem(ctx context.Context, userID string, itemID string) (domain.Cart, error) {
	return s.cart, s.err
}

func (s *stubCartService) ClearCart(ctx context.Context, userID string) error {
	return s.err
}

type stubUploadService struct {
	uploaded *services.UploadDesignCommand
	deleted  []string
	err      error
}

func (s *stubUploadService) UploadDesign(ctx context.Context, cmd services.UploadDesignCommand) (services.UploadedDesign, error) {
	if s.err != nil {
		return services.UploadedDesign{}, s.err
	}
	content, readErr := io.ReadAll(cmd.Content)
	if readErr != nil {
		return services.UploadedDesign{}, readErr
	}
	s.uploaded = &cmd
	return services.UploadedDesign{
		FileID:      "01hxfileid.png",
		URL:         "https://cdn.inkwell.example/designs/user-1/01hxfileid.png",
		ObjectName:  "designs/user-1/01hxfileid.png",
		Size:        int64(len(content)),
		ContentType: cmd.ContentType,
	}, nil
}

func (s *stubUploadService) DeleteDesign(ctx context.Context, userID string, fileID string) error {
	s.deleted = append(s.deleted, fileID)
	return s.err
}

type stubCustomizationService struct {
	requests []domain.CustomizationRequest
	updated  []services.UpdateStatusCommand
	err      error
}

func (s *stubCustomizationService) Submit(ctx context.Context, cmd services.SubmitCustomizationCommand) (domain.CustomizationRequest, error) {
	return domain.CustomizationRequest{}, s.err
}

func (s *stubCustomizationService) ListMine(ctx context.Context, userID string, limit int) ([]domain.CustomizationRequest, error) {
	if s.err != nil {
		return nil, s.err
	}
	mine := make([]domain.CustomizationRequest, 0, len(s.requests))
	for _, request := range s.requests {
		if request.UserID == userID {
			mine = append(mine, request)
		}
	}
	return mine, nil
}

func (s *stubCustomizationService) GetMine(ctx context.Context, userID string, requestID string) (domain.CustomizationRequest, error) {
	for _, request := range s.requests {
		if request.ID == requestID && request.UserID == userID {
			return request, nil
		}
	}
	return domain.CustomizationRequest{}, services.ErrNotFound
}

func (s *stubCustomizationService) List(ctx context.Context, filter repositories.CustomizationListFilter) ([]domain.CustomizationRequest, error) {
	return s.requests, s.err
}

func (s *stubCustomizationService) UpdateStatus(ctx context.Context, cmd services.UpdateStatusCommand) (domain.CustomizationRequest, error) {
	if s.err != nil {
		return domain.CustomizationRequest{}, s.err
	}
	s.updated = append(s.updated, cmd)
	for _, request := range s.requests {
		if request.ID == cmd.RequestID {
			request.Status = cmd.Status
			request.AdminNote = cmd.AdminNote
			return request, nil
		}
	}
	return domain.CustomizationRequest{}, services.ErrNotFound
}

type stubPaymentService struct {
	initialization services.PaymentInitialization
	lastInit       *services.InitializePaymentCommand
	result         services.PaymentResult
	lastComplete   *services.CompletePaymentCommand
	reconciled     []string
	err            error
}

func (s *stubPaymentService) InitializePayment(ctx context.Context, cmd services.InitializePaymentCommand) (services.PaymentInitialization, error) {
	if s.err != nil {
		return services.PaymentInitialization{}, s.err
	}
	s.lastInit = &cmd
	return s.initialization, nil
}

func (s *stubPaymentService) CompletePayment(ctx context.Context, cmd services.CompletePaymentCommand) (services.PaymentResult, error) {
	if s.err != nil {
		return services.PaymentResult{}, s.err
	}
	s.lastComplete = &cmd
	return s.result, nil
}

func (s *stubPaymentService) ReconcileReference(ctx context.Context, reference string) (services.PaymentResult, error) {
	if s.err != nil {
		return services.PaymentResult{}, s.err
	}
	s.reconciled = append(s.reconciled, reference)
	return s.result, nil
}

// testIdentity injects a fixed identity the way the auth middleware would.
func testIdentity(uid string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := &auth.Identity{UID: uid, Email: uid + "@example.com", Roles: []string{auth.RoleUser}}
			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

type routerStubs struct {
	catalog        *stubCatalogService
	cart           *stubCartService
	uploads        *stubUploadService
	customizations *stubCustomizationService
	payments       *stubPaymentService
}

func newTestRouter(t *testing.T, verifier *auth.WebhookVerifier) (chi.Router, *routerStubs) {
	t.Helper()

	stubs := &routerStubs{
		catalog:        &stubCatalogService{},
		cart:           &stubCartService{cart: domain.Cart{UserID: "user-1", Currency: "NGN", Items: []domain.CartItem{}}},
		uploads:        &stubUploadService{},
		customizations: &stubCustomizationService{},
		payments:       &stubPaymentService{},
	}

	catalogHandlers, err := NewCatalogHandlers(stubs.catalog)
	if err != nil {
		t.Fatalf("NewCatalogHandlers: %v", err)
	}
	cartHandlers, err := NewCartHandlers(stubs.cart)
	if err != nil {
		t.Fatalf("NewCartHandlers: %v", err)
	}
	uploadHandlers, err := NewUploadHandlers(stubs.uploads, 0)
	if err != nil {
		t.Fatalf("NewUploadHandlers: %v", err)
	}
	customizationHandlers, err := NewCustomizationHandlers(stubs.customizations)
	if err != nil {
		t.Fatalf("NewCustomizationHandlers: %v", err)
	}
	paymentHandlers, err := NewPaymentHandlers(PaymentHandlersDeps{
		Payments: stubs.payments,
		Verifier: verifier,
	})
	if err != nil {
		t.Fatalf("NewPaymentHandlers: %v", err)
	}

	router := NewRouter(
		WithPublicRoutes(catalogHandlers.RegisterPublic),
		WithMeRoutes(func(r chi.Router) {
			cartHandlers.RegisterMe(r)
			uploadHandlers.RegisterMe(r)
			customizationHandlers.RegisterMe(r)
			paymentHandlers.RegisterMe(r)
		}),
		WithMeMiddlewares(testIdentity("user-1")),
		WithAdminRoutes(func(r chi.Router) {
			catalogHandlers.RegisterAdmin(r)
			customizationHandlers.RegisterAdmin(r)
		}),
		WithWebhookRoutes(paymentHandlers.RegisterWebhooks),
	)
	return router, stubs
}

func doRequest(t *testing.T, router chi.Router, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), target); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

func sampleRequest(id, userID string) domain.CustomizationRequest {
	gsm := 180
	return domain.CustomizationRequest{
		ID:     id,
		UserID: userID,
		Title:  "Tour shirt",
		Spec: domain.CustomizationSpec{
			Kind:         domain.KindPersonalItem,
			TechniqueID:  "screen-print",
			FabricOption: domain.FabricOptionHelpBuy,
			FabricGSM:    &gsm,
			Quantity:     3,
			Personal:     &domain.PersonalItem{ItemType: "t-shirt", Size: "L", Color: "black"},
		},
		Cost:             domain.CostBreakdown{TechniqueCost: 1500, FabricCost: 3000, UnitCost: 4500, TotalCost: 13500},
		DesignURL:        "https://cdn.inkwell.example/designs/user-1/design.png",
		PaymentReference: "ink_ref_1",
		PaymentCompleted: true,
		Status:           domain.RequestStatusPending,
		CreatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:        time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}
