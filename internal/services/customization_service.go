package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/repositories"
)

var (
	errCustomizationRepositoryRequired = errors.New("customization service: repository is required")
	errCustomizationCatalogRequired    = errors.New("customization service: catalog repository is required")

	// ErrInvalidStatusTransition indicates the requested status change is not allowed.
	ErrInvalidStatusTransition = errors.New("customization service: invalid status transition")
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 4000
	maxAdminNoteLength   = 2000
)

// CustomizationServiceDeps wires the persistence and notification dependencies.
type CustomizationServiceDeps struct {
	Repository  repositories.CustomizationRepository
	Catalog     repositories.CatalogRepository
	Events      SubmissionEventPublisher
	Clock       func() time.Time
	Currency    string
	Logger      Logger
	IDGenerator func() string
}

type customizationService struct {
	repo     repositories.CustomizationRepository
	catalog  repositories.CatalogRepository
	events   SubmissionEventPublisher
	now      func() time.Time
	currency string
	logger   Logger
	newID    func() string
	sanitise *bluemonday.Policy
}

// NewCustomizationService constructs a CustomizationService enforcing dependency validation.
func NewCustomizationService(deps CustomizationServiceDeps) (CustomizationService, error) {
	if deps.Repository == nil {
		return nil, errCustomizationRepositoryRequired
	}
	if deps.Catalog == nil {
		return nil, errCustomizationCatalogRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "NGN"
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	return &customizationService{
		repo:     deps.Repository,
		catalog:  deps.Catalog,
		events:   deps.Events,
		now:      func() time.Time { return clock().UTC() },
		currency: currency,
		logger:   logger,
		newID:    idGen,
		sanitise: bluemonday.StrictPolicy(),
	}, nil
}

// Submit validates and persists a customization request. When the command
// carries a payment reference and an earlier request already claimed it, that
// request is returned unchanged and nothing new is written.
func (s *customizationService) Submit(ctx context.Context, cmd SubmitCustomizationCommand) (domain.CustomizationRequest, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return domain.CustomizationRequest{}, ErrAuthenticationRequired
	}

	spec, err := normaliseSpec(cmd.Spec)
	if err != nil {
		return domain.CustomizationRequest{}, err
	}
	if err := validateSubmission(cmd.Description, cmd.DesignURL, spec); err != nil {
		return domain.CustomizationRequest{}, err
	}

	technique, techErr := s.catalog.FindTechnique(ctx, spec.TechniqueID)
	if techErr == nil {
		spec.TechniqueName = technique.Name
	}
	// The snapshot the customer was quoted is what gets persisted; the
	// catalogue recompute only surfaces drift in the logs.
	cost := cmd.Cost
	s.auditCost(ctx, cost, spec, technique, techErr)

	now := s.now()
	request := domain.CustomizationRequest{
		ID:               s.newID(),
		UserID:           userID,
		Title:            s.cleanText(cmd.Title, maxTitleLength),
		Description:      s.cleanText(cmd.Description, maxDescriptionLength),
		Spec:             spec,
		Cost:             cost,
		DesignURL:        strings.TrimSpace(cmd.DesignURL),
		DesignFileID:     strings.TrimSpace(cmd.DesignFileID),
		ImageURL:         strings.TrimSpace(cmd.ImageURL),
		Contact:          cleanContact(cmd.Contact),
		PaymentReference: strings.TrimSpace(cmd.PaymentReference),
		PaymentCompleted: cmd.PaymentCompleted,
		Status:           domain.RequestStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var created domain.CustomizationRequest
	if request.PaymentReference != "" {
		created, err = s.repo.CreateWithPaymentReference(ctx, request)
		if errors.Is(err, repositories.ErrDuplicatePaymentReference) {
			existing, findErr := s.repo.FindByPaymentReference(ctx, request.PaymentReference)
			if findErr != nil {
				return domain.CustomizationRequest{}, classifyRepositoryError("customization service: load duplicate", findErr)
			}
			s.logger(ctx, "customization.duplicate_submission", map[string]any{
				"requestId": existing.ID,
				"reference": request.PaymentReference,
			})
			return existing, nil
		}
	} else {
		// Unpaid drafts have no reference to guard on; claim one so the
		// document shape stays uniform.
		request.PaymentReference = "draft_" + request.ID
		created, err = s.repo.CreateWithPaymentReference(ctx, request)
	}
	if err != nil {
		return domain.CustomizationRequest{}, classifyRepositoryError("customization service: create request", err)
	}

	s.logger(ctx, "customization.submitted", map[string]any{
		"requestId": created.ID,
		"userId":    created.UserID,
		"kind":      string(created.Spec.Kind),
		"totalCost": created.Cost.TotalCost,
	})
	s.publishSubmitted(ctx, created)

	return created, nil
}

// ListMine returns the caller's requests, newest first.
func (s *customizationService) ListMine(ctx context.Context, userID string, limit int) ([]domain.CustomizationRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	requests, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, classifyRepositoryError("customization service: list mine", err)
	}
	return requests, nil
}

// GetMine fetches a single request owned by the caller.
func (s *customizationService) GetMine(ctx context.Context, userID string, requestID string) (domain.CustomizationRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CustomizationRequest{}, ErrAuthenticationRequired
	}
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return domain.CustomizationRequest{}, ValidationErrorf("request id is required")
	}

	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return domain.CustomizationRequest{}, classifyRepositoryError("customization service: get request", err)
	}
	if request.UserID != userID {
		// Ownership failures read as absence so request IDs cannot be probed.
		return domain.CustomizationRequest{}, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return request, nil
}

// List returns requests for staff review.
func (s *customizationService) List(ctx context.Context, filter repositories.CustomizationListFilter) ([]domain.CustomizationRequest, error) {
	if filter.Status != nil && !domain.ValidRequestStatus(*filter.Status) {
		return nil, ValidationErrorf("unknown status %q", string(*filter.Status))
	}
	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, classifyRepositoryError("customization service: list", err)
	}
	return requests, nil
}

// UpdateStatus applies a staff transition after checking it is allowed from
// the current status.
func (s *customizationService) UpdateStatus(ctx context.Context, cmd UpdateStatusCommand) (domain.CustomizationRequest, error) {
	requestID := strings.TrimSpace(cmd.RequestID)
	if requestID == "" {
		return domain.CustomizationRequest{}, ValidationErrorf("request id is required")
	}
	if !domain.ValidRequestStatus(cmd.Status) {
		return domain.CustomizationRequest{}, ValidationErrorf("unknown status %q", string(cmd.Status))
	}

	current, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return domain.CustomizationRequest{}, classifyRepositoryError("customization service: load request", err)
	}
	if !current.Status.CanTransition(cmd.Status) {
		return domain.CustomizationRequest{}, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current.Status, cmd.Status)
	}

	updated, err := s.repo.UpdateStatus(ctx, requestID, repositories.StatusUpdate{
		Status:    cmd.Status,
		AdminNote: s.cleanText(cmd.AdminNote, maxAdminNoteLength),
		UpdatedAt: s.now(),
	})
	if err != nil {
		return domain.CustomizationRequest{}, classifyRepositoryError("customization service: update status", err)
	}

	s.logger(ctx, "customization.status_changed", map[string]any{
		"requestId": updated.ID,
		"from":      string(current.Status),
		"to":        string(updated.Status),
	})
	return updated, nil
}

// normaliseSpec trims the spec fields and checks the tagged union carries
// exactly the payload its kind requires.
func normaliseSpec(spec domain.CustomizationSpec) (domain.CustomizationSpec, error) {
	spec.TechniqueID = strings.TrimSpace(spec.TechniqueID)
	if spec.TechniqueID == "" {
		return spec, ValidationErrorf("technique is required")
	}
	if spec.Quantity < 1 {
		spec.Quantity = 1
	}
	switch spec.Kind {
	case domain.KindPersonalItem:
		if spec.Personal == nil {
			return spec, ValidationErrorf("personal item details are required")
		}
		spec.Product = nil
		spec.Personal = &domain.PersonalItem{
			ItemType: strings.TrimSpace(spec.Personal.ItemType),
			Size:     strings.TrimSpace(spec.Personal.Size),
			Color:    strings.TrimSpace(spec.Personal.Color),
		}
	case domain.KindProductLinked:
		if spec.Product == nil {
			return spec, ValidationErrorf("product details are required")
		}
		spec.Personal = nil
		spec.Product = &domain.ProductLink{
			ProductID:    strings.TrimSpace(spec.Product.ProductID),
			ProductName:  strings.TrimSpace(spec.Product.ProductName),
			ProductPrice: spec.Product.ProductPrice,
		}
		if spec.Product.ProductID == "" {
			return spec, ValidationErrorf("product id is required")
		}
	default:
		return spec, ValidationErrorf("unknown customization kind %q", string(spec.Kind))
	}
	return spec, nil
}

func validateSubmission(description, designURL string, spec domain.CustomizationSpec) error {
	if spec.Kind == domain.KindPersonalItem {
		if strings.TrimSpace(description) == "" {
			return ValidationErrorf("description is required")
		}
		if strings.TrimSpace(designURL) == "" {
			return ValidationErrorf("design upload is required")
		}
		if spec.Personal.Size == "" {
			return ValidationErrorf("size is required")
		}
		if spec.FabricOption.RequiresFabricPurchase() {
			if spec.FabricGSM == nil {
				return ValidationErrorf("fabric quality is required when fabric is purchased")
			}
			if _, ok := domain.FabricCost(*spec.FabricGSM); !ok {
				return ValidationErrorf("unknown fabric quality %d gsm", *spec.FabricGSM)
			}
		}
	}
	return nil
}

// auditCost recomputes the breakdown from the catalogue and logs when the
// caller's snapshot disagrees. The snapshot is persisted as submitted; the
// recompute only makes drift observable.
func (s *customizationService) auditCost(ctx context.Context, snapshot domain.CostBreakdown, spec domain.CustomizationSpec, technique domain.Technique, techErr error) {
	if techErr != nil {
		s.logger(ctx, "customization.cost_source_unavailable", map[string]any{
			"techniqueId": spec.TechniqueID,
			"error":       techErr.Error(),
		})
		return
	}

	input := domain.PricingInput{
		TechniqueCost: technique.BaseCost,
		FabricOption:  spec.FabricOption,
		Quantity:      spec.Quantity,
	}
	if spec.FabricGSM != nil {
		input.FabricGSM = *spec.FabricGSM
	}
	if spec.Product != nil {
		price := spec.Product.ProductPrice
		input.ProductPrice = &price
	}

	computed, err := domain.CalculateCost(input)
	if err != nil {
		s.logger(ctx, "customization.cost_recompute_failed", map[string]any{
			"techniqueId": spec.TechniqueID,
			"error":       err.Error(),
		})
		return
	}

	if computed != snapshot {
		s.logger(ctx, "customization.cost_mismatch", map[string]any{
			"techniqueId":    spec.TechniqueID,
			"submittedTotal": snapshot.TotalCost,
			"computedTotal":  computed.TotalCost,
		})
	}
}

func (s *customizationService) publishSubmitted(ctx context.Context, request domain.CustomizationRequest) {
	if s.events == nil {
		return
	}
	message := SubmissionEventMessage{
		Event:            "customization.submitted",
		RequestID:        request.ID,
		UserID:           request.UserID,
		PaymentReference: request.PaymentReference,
		Kind:             string(request.Spec.Kind),
		TotalCost:        request.Cost.TotalCost,
		Currency:         s.currency,
		Status:           string(request.Status),
		SubmittedAt:      request.CreatedAt,
	}
	if _, err := s.events.PublishSubmissionEvent(ctx, message); err != nil {
		// Notifications are best effort; the request is already durable.
		s.logger(ctx, "customization.event_publish_failed", map[string]any{
			"requestId": request.ID,
			"error":     err.Error(),
		})
	}
}

// cleanText strips markup, normalises the unicode form and bounds the length.
func (s *customizationService) cleanText(value string, maxLen int) string {
	value = strings.TrimSpace(s.sanitise.Sanitize(norm.NFC.String(value)))
	if maxLen > 0 && len(value) > maxLen {
		value = value[:maxLen]
	}
	return value
}

func cleanContact(contact domain.ContactDetails) domain.ContactDetails {
	return domain.ContactDetails{
		PhoneNumber:     strings.TrimSpace(contact.PhoneNumber),
		WhatsAppNumber:  strings.TrimSpace(contact.WhatsAppNumber),
		DeliveryAddress: strings.TrimSpace(contact.DeliveryAddress),
	}
}
