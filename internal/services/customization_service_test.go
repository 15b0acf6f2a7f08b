package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/repositories"
)

type stubCustomizationRepo struct {
	created   []domain.CustomizationRequest
	createErr error

	byID        map[string]domain.CustomizationRequest
	byReference map[string]domain.CustomizationRequest

	statusUpdates []repositories.StatusUpdate
}

func newStubCustomizationRepo() *stubCustomizationRepo {
	return &stubCustomizationRepo{
		byID:        make(map[string]domain.CustomizationRequest),
		byReference: make(map[string]domain.CustomizationRequest),
	}
}

func (r *stubCustomizationRepo) CreateWithPaymentReference(_ context.Context, request domain.CustomizationRequest) (domain.CustomizationRequest, error) {
	if r.createErr != nil {
		return domain.CustomizationRequest{}, r.createErr
	}
	if _, exists := r.byReference[request.PaymentReference]; exists {
		return domain.CustomizationRequest{}, fmt.Errorf("%w: %s", repositories.ErrDuplicatePaymentReference, request.PaymentReference)
	}
	r.created = append(r.created, request)
	r.byID[request.ID] = request
	r.byReference[request.PaymentReference] = request
	return request, nil
}

func (r *stubCustomizationRepo) FindByID(_ context.Context, requestID string) (domain.CustomizationRequest, error) {
	request, ok := r.byID[requestID]
	if !ok {
		return domain.CustomizationRequest{}, stubNotFoundError{}
	}
	return request, nil
}

func (r *stubCustomizationRepo) FindByPaymentReference(_ context.Context, reference string) (domain.CustomizationRequest, error) {
	request, ok := r.byReference[reference]
	if !ok {
		return domain.CustomizationRequest{}, stubNotFoundError{}
	}
	return request, nil
}

func (r *stubCustomizationRepo) ListByUser(_ context.Context, userID string, _ int) ([]domain.CustomizationRequest, error) {
	var out []domain.CustomizationRequest
	for _, request := range r.created {
		if request.UserID == userID {
			out = append(out, request)
		}
	}
	return out, nil
}

func (r *stubCustomizationRepo) List(_ context.Context, _ repositories.CustomizationListFilter) ([]domain.CustomizationRequest, error) {
	return append([]domain.CustomizationRequest(nil), r.created...), nil
}

func (r *stubCustomizationRepo) UpdateStatus(_ context.Context, requestID string, update repositories.StatusUpdate) (domain.CustomizationRequest, error) {
	request, ok := r.byID[requestID]
	if !ok {
		return domain.CustomizationRequest{}, stubNotFoundError{}
	}
	r.statusUpdates = append(r.statusUpdates, update)
	request.Status = update.Status
	request.AdminNote = update.AdminNote
	request.UpdatedAt = update.UpdatedAt
	r.byID[requestID] = request
	return request, nil
}

type stubNotFoundError struct{}

func (stubNotFoundError) Error() string       { return "not found" }
func (stubNotFoundError) IsNotFound() bool    { return true }
func (stubNotFoundError) IsConflict() bool    { return false }
func (stubNotFoundError) IsUnavailable() bool { return false }

type stubCatalogRepo struct {
	techniques map[string]domain.Technique
	products   map[string]domain.Product
}

func newStubCatalogRepo() *stubCatalogRepo {
	return &stubCatalogRepo{
		techniques: map[string]domain.Technique{
			"screen-print": {ID: "screen-print", Name: "Screen printing", BaseCost: 1500, Active: true},
		},
		products: map[string]domain.Product{
			"tee-classic": {ID: "tee-classic", Name: "Classic tee", Price: 12000, Active: true},
		},
	}
}

func (r *stubCatalogRepo) ListTechniques(_ context.Context, _ bool) ([]domain.Technique, error) {
	var out []domain.Technique
	for _, technique := range r.techniques {
		out = append(out, technique)
	}
	return out, nil
}

func (r *stubCatalogRepo) FindTechnique(_ context.Context, techniqueID string) (domain.Technique, error) {
	technique, ok := r.techniques[techniqueID]
	if !ok {
		return domain.Technique{}, stubNotFoundError{}
	}
	return technique, nil
}

func (r *stubCatalogRepo) ListProducts(_ context.Context, _ repositories.ProductListFilter) ([]domain.Product, error) {
	var out []domain.Product
	for _, product := range r.products {
		out = append(out, product)
	}
	return out, nil
}

func (r *stubCatalogRepo) FindProduct(_ context.Context, productID string) (domain.Product, error) {
	product, ok := r.products[productID]
	if !ok {
		return domain.Product{}, stubNotFoundError{}
	}
	return product, nil
}

func (r *stubCatalogRepo) SaveTechnique(_ context.Context, technique domain.Technique) (domain.Technique, error) {
	r.techniques[technique.ID] = technique
	return technique, nil
}

func (r *stubCatalogRepo) SaveProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	r.products[product.ID] = product
	return product, nil
}

type stubPublisher struct {
	messages []SubmissionEventMessage
	err      error
}

func (p *stubPublisher) PublishSubmissionEvent(_ context.Context, message SubmissionEventMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.messages = append(p.messages, message)
	return "msg-1", nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func intPtr(v int) *int { return &v }

func newTestCustomizationService(t *testing.T, repo *stubCustomizationRepo, catalog *stubCatalogRepo, events SubmissionEventPublisher) CustomizationService {
	t.Helper()
	counter := 0
	service, err := NewCustomizationService(CustomizationServiceDeps{
		Repository: repo,
		Catalog:    catalog,
		Events:     events,
		Clock:      fixedClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("req_%03d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewCustomizationService: %v", err)
	}
	return service
}

func personalSubmission() SubmitCustomizationCommand {
	return SubmitCustomizationCommand{
		UserID:      "user-1",
		Title:       "Band tour shirt",
		Description: "Front chest print, two colours",
		Spec: domain.CustomizationSpec{
			Kind:         domain.KindPersonalItem,
			TechniqueID:  "screen-print",
			FabricOption: domain.FabricOptionHelpBuy,
			FabricGSM:    intPtr(180),
			Quantity:     3,
			Personal:     &domain.PersonalItem{ItemType: "tshirt", Size: "L", Color: "black"},
		},
		Cost: domain.CostBreakdown{
			TechniqueCost: 1500,
			FabricCost:    3000,
			UnitCost:      4500,
			TotalCost:     13500,
		},
		DesignURL:        "https://cdn.example/designs/user-1/abc.png",
		PaymentReference: "ink_ref_1",
		PaymentCompleted: true,
	}
}

func TestSubmitPersonalRequest(t *testing.T) {
	repo := newStubCustomizationRepo()
	events := &stubPublisher{}
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), events)

	created, err := service.Submit(context.Background(), personalSubmission())
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if created.Status != domain.RequestStatusPending {
		t.Fatalf("expected pending status, got %s", created.Status)
	}
	if created.Spec.TechniqueName != "Screen printing" {
		t.Fatalf("expected technique name from catalogue, got %q", created.Spec.TechniqueName)
	}
	if created.Cost.TotalCost != 13500 {
		t.Fatalf("unexpected total cost: %d", created.Cost.TotalCost)
	}
	if !created.PaymentCompleted {
		t.Fatal("expected payment completed flag to persist")
	}
	if len(events.messages) != 1 {
		t.Fatalf("expected one submission event, got %d", len(events.messages))
	}
	if events.messages[0].Event != "customization.submitted" || events.messages[0].RequestID != created.ID {
		t.Fatalf("unexpected event payload: %+v", events.messages[0])
	}
}

func TestSubmitKeepsCallerCostSnapshot(t *testing.T) {
	repo := newStubCustomizationRepo()
	logged := make([]string, 0, 1)
	counter := 0
	service, err := NewCustomizationService(CustomizationServiceDeps{
		Repository: repo,
		Catalog:    newStubCatalogRepo(),
		Clock:      fixedClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		Logger: func(_ context.Context, event string, _ map[string]any) {
			logged = append(logged, event)
		},
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("req_%03d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewCustomizationService: %v", err)
	}

	// The snapshot disagrees with the catalogue base cost (1500); the quoted
	// figures must still be the ones persisted, with the drift only logged.
	cmd := personalSubmission()
	cmd.Spec.FabricOption = domain.FabricOptionAlreadyHave
	cmd.Spec.FabricGSM = nil
	cmd.Spec.Quantity = 2
	cmd.Cost = domain.CostBreakdown{TechniqueCost: 2510, FabricCost: 0, UnitCost: 2510, TotalCost: 5020}

	created, err := service.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if created.Cost != cmd.Cost {
		t.Fatalf("expected the submitted snapshot to persist, got %+v", created.Cost)
	}
	if len(repo.created) != 1 || repo.created[0].Cost != cmd.Cost {
		t.Fatalf("persisted cost drifted from the snapshot: %+v", repo.created[0].Cost)
	}

	mismatchLogged := false
	for _, event := range logged {
		if event == "customization.cost_mismatch" {
			mismatchLogged = true
		}
	}
	if !mismatchLogged {
		t.Fatal("expected the drifted snapshot to be logged")
	}
}

func TestSubmitDuplicateReferenceReturnsExisting(t *testing.T) {
	repo := newStubCustomizationRepo()
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), nil)

	first, err := service.Submit(context.Background(), personalSubmission())
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := service.Submit(context.Background(), personalSubmission())
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected the original request back, got %s vs %s", second.ID, first.ID)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected a single persisted request, got %d", len(repo.created))
	}
}

func TestSubmitValidationFailures(t *testing.T) {
	service := newTestCustomizationService(t, newStubCustomizationRepo(), newStubCatalogRepo(), nil)

	tests := []struct {
		name   string
		mutate func(*SubmitCustomizationCommand)
	}{
		{"missing description", func(cmd *SubmitCustomizationCommand) { cmd.Description = "" }},
		{"missing design", func(cmd *SubmitCustomizationCommand) { cmd.DesignURL = "" }},
		{"missing size", func(cmd *SubmitCustomizationCommand) { cmd.Spec.Personal.Size = "" }},
		{"missing technique", func(cmd *SubmitCustomizationCommand) { cmd.Spec.TechniqueID = "" }},
		{"unknown fabric tier", func(cmd *SubmitCustomizationCommand) { cmd.Spec.FabricGSM = intPtr(999) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := personalSubmission()
			tc.mutate(&cmd)
			if _, err := service.Submit(context.Background(), cmd); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSubmitStripsMarkup(t *testing.T) {
	repo := newStubCustomizationRepo()
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), nil)

	cmd := personalSubmission()
	cmd.Title = "<script>alert(1)</script>Tour shirt"

	created, err := service.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if created.Title != "Tour shirt" {
		t.Fatalf("expected sanitised title, got %q", created.Title)
	}
}

func TestSubmitProductLinkedUsesProductPrice(t *testing.T) {
	repo := newStubCustomizationRepo()
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), nil)

	cmd := SubmitCustomizationCommand{
		UserID: "user-1",
		Title:  "Logo tee",
		Spec: domain.CustomizationSpec{
			Kind:        domain.KindProductLinked,
			TechniqueID: "screen-print",
			Quantity:    2,
			Product:     &domain.ProductLink{ProductID: "tee-classic", ProductName: "Classic tee", ProductPrice: 12000},
		},
		Cost:             domain.CostBreakdown{TechniqueCost: 1500, UnitCost: 13500, TotalCost: 27000},
		PaymentReference: "ink_ref_2",
	}

	created, err := service.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if created.Cost.UnitCost != 13500 || created.Cost.TotalCost != 27000 {
		t.Fatalf("unexpected cost: %+v", created.Cost)
	}
	if created.Cost.FabricCost != 0 {
		t.Fatalf("fabric cost must not apply to product-linked items, got %d", created.Cost.FabricCost)
	}
}

func TestGetMineRejectsForeignRequest(t *testing.T) {
	repo := newStubCustomizationRepo()
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), nil)

	created, err := service.Submit(context.Background(), personalSubmission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := service.GetMine(context.Background(), "someone-else", created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for foreign request, got %v", err)
	}
	got, err := service.GetMine(context.Background(), "user-1", created.ID)
	if err != nil {
		t.Fatalf("GetMine: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("unexpected request: %s", got.ID)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	repo := newStubCustomizationRepo()
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), nil)

	created, err := service.Submit(context.Background(), personalSubmission())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	approved, err := service.UpdateStatus(context.Background(), UpdateStatusCommand{
		RequestID: created.ID,
		Status:    domain.RequestStatusApproved,
		AdminNote: "quote confirmed",
	})
	if err != nil {
		t.Fatalf("UpdateStatus to approved: %v", err)
	}
	if approved.Status != domain.RequestStatusApproved || approved.AdminNote != "quote confirmed" {
		t.Fatalf("unexpected request after approval: %+v", approved)
	}

	if _, err := service.UpdateStatus(context.Background(), UpdateStatusCommand{
		RequestID: created.ID,
		Status:    domain.RequestStatusPending,
	}); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	completed, err := service.UpdateStatus(context.Background(), UpdateStatusCommand{
		RequestID: created.ID,
		Status:    domain.RequestStatusCompleted,
	})
	if err != nil {
		t.Fatalf("UpdateStatus to completed: %v", err)
	}
	if completed.Status != domain.RequestStatusCompleted {
		t.Fatalf("expected completed, got %s", completed.Status)
	}
}

func TestSubmitSurvivesEventPublishFailure(t *testing.T) {
	repo := newStubCustomizationRepo()
	events := &stubPublisher{err: errors.New("topic gone")}
	service := newTestCustomizationService(t, repo, newStubCatalogRepo(), events)

	if _, err := service.Submit(context.Background(), personalSubmission()); err != nil {
		t.Fatalf("Submit must not fail on event publish errors, got %v", err)
	}
}
