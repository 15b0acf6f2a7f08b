package domain

import (
	"strings"
	"time"
)

// RequestStatus tracks the lifecycle of a customization request. Requests are
// created as Pending and transitioned only by staff.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "Pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusRejected  RequestStatus = "rejected"
	RequestStatusCompleted RequestStatus = "completed"
)

// ValidRequestStatus reports whether the value is one of the known statuses.
func ValidRequestStatus(status RequestStatus) bool {
	switch status {
	case RequestStatusPending, RequestStatusApproved, RequestStatusRejected, RequestStatusCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a staff-driven status transition is allowed.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	switch s {
	case RequestStatusPending:
		return next == RequestStatusApproved || next == RequestStatusRejected
	case RequestStatusApproved:
		return next == RequestStatusCompleted || next == RequestStatusRejected
	default:
		return false
	}
}

// FabricPurchaseOption captures whether the platform sources blank fabric for
// the requester or the requester supplies their own.
type FabricPurchaseOption string

const (
	FabricOptionHelpBuy     FabricPurchaseOption = "help_buy"
	FabricOptionAlreadyHave FabricPurchaseOption = "already_have"
	FabricOptionHelpMeBuy   FabricPurchaseOption = "help_me_buy"
)

// RequiresFabricPurchase reports whether the option asks the platform to buy
// fabric on the requester's behalf, which is what makes fabric cost apply.
func (o FabricPurchaseOption) RequiresFabricPurchase() bool {
	switch o {
	case FabricOptionHelpBuy, FabricOptionHelpMeBuy:
		return true
	default:
		return false
	}
}

// ParseFabricPurchaseOption normalises raw input into a known option.
func ParseFabricPurchaseOption(raw string) (FabricPurchaseOption, bool) {
	switch FabricPurchaseOption(strings.ToLower(strings.TrimSpace(raw))) {
	case FabricOptionHelpBuy:
		return FabricOptionHelpBuy, true
	case FabricOptionAlreadyHave:
		return FabricOptionAlreadyHave, true
	case FabricOptionHelpMeBuy:
		return FabricOptionHelpMeBuy, true
	default:
		return "", false
	}
}

// Technique is a printing method offered by the platform.
type Technique struct {
	ID          string
	Name        string
	Description string
	BaseCost    int64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FabricTier prices a fabric quality level keyed by GSM weight.
type FabricTier struct {
	GSM  int
	Cost int64
}

// Product is a catalogue item a customization can be linked to.
type Product struct {
	ID        string
	Name      string
	Category  string
	Price     int64
	ImageURL  string
	Sizes     []string
	Colors    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CostBreakdown is the computed pricing snapshot attached to a request.
type CostBreakdown struct {
	TechniqueCost int64
	FabricCost    int64
	UnitCost      int64
	TotalCost     int64
}

// CustomizationKind discriminates the two request shapes.
type CustomizationKind string

const (
	KindPersonalItem  CustomizationKind = "personal"
	KindProductLinked CustomizationKind = "product"
)

// ProductLink references the catalogue product a request customises.
type ProductLink struct {
	ProductID    string
	ProductName  string
	ProductPrice int64
}

// PersonalItem describes a garment the requester supplies or describes.
type PersonalItem struct {
	ItemType string
	Size     string
	Color    string
}

// CustomizationSpec is the tagged-union form of a submission: exactly one of
// Product or Personal is set according to Kind. The persisted document
// flattens this to a single superset shape at the repository boundary.
type CustomizationSpec struct {
	Kind          CustomizationKind
	TechniqueID   string
	TechniqueName string
	MaterialID    *string
	FabricOption  FabricPurchaseOption
	FabricGSM     *int
	Quantity      int

	Product  *ProductLink
	Personal *PersonalItem
}

// ContactDetails are the optional contact and delivery fields on a request.
type ContactDetails struct {
	PhoneNumber     string
	WhatsAppNumber  string
	DeliveryAddress string
}

// CustomizationRequest is the central persisted entity.
type CustomizationRequest struct {
	ID     string
	UserID string

	Title       string
	Description string

	Spec CustomizationSpec
	Cost CostBreakdown

	DesignURL    string
	DesignFileID string
	ImageURL     string

	Contact ContactDetails

	PaymentReference string
	PaymentCompleted bool

	Status    RequestStatus
	AdminNote string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cart is the per-user shopping cart header plus line items.
type Cart struct {
	ID        string
	UserID    string
	Currency  string
	Items     []CartItem
	Estimate  *CartEstimate
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a single cart line: either a catalogue product or a priced
// customization carried into the cart.
type CartItem struct {
	ID                     string
	ProductID              string
	CustomizationRequestID string
	Name                   string
	Size                   string
	Color                  string
	UnitPrice              int64
	Quantity               int
	ImageURL               string
}

// CartEstimate is the derived cart total snapshot.
type CartEstimate struct {
	Subtotal int64
	Total    int64
	Items    int
}

// PaymentIntent is the durable snapshot of a not-yet-confirmed payment,
// written before redirecting to the gateway and deleted on reconciliation.
type PaymentIntent struct {
	Reference string
	UserID    string
	Email     string
	Amount    int64
	Currency  string

	Title        string
	Description  string
	Spec         CustomizationSpec
	Cost         CostBreakdown
	DesignURL    string
	DesignFileID string
	ImageURL     string
	Contact      ContactDetails

	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the intent has passed its expiry at the given time.
func (p PaymentIntent) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}
