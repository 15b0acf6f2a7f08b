package intent

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/inkwell-press/api/internal/domain"
	fsplatform "github.com/inkwell-press/api/internal/platform/firestore"
)

const (
	defaultCollection  = "payment_intents"
	defaultMaxAttempts = 5
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store intents.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore implements Store backed by Google Cloud Firestore.
type FirestoreStore struct {
	provider    *fsplatform.Provider
	collection  string
	maxAttempts int
}

// NewFirestoreStore constructs a Firestore-backed intent store.
func NewFirestoreStore(provider *fsplatform.Provider, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		provider:    provider,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

type intentDocument struct {
	Reference string `firestore:"reference"`
	UserID    string `firestore:"user_id"`
	Email     string `firestore:"email"`
	Amount    int64  `firestore:"amount"`
	Currency  string `firestore:"currency"`

	Title        string         `firestore:"title"`
	Description  string         `firestore:"description"`
	Spec         specDocument   `firestore:"spec"`
	Cost         costDocument   `firestore:"cost"`
	DesignURL    string         `firestore:"design_url"`
	DesignFileID string         `firestore:"design_file_id,omitempty"`
	ImageURL     string         `firestore:"image_url,omitempty"`
	Contact      contactDocument `firestore:"contact"`

	CreatedAt time.Time `firestore:"created_at"`
	ExpiresAt time.Time `firestore:"expires_at"`
}

type specDocument struct {
	Kind          string  `firestore:"kind"`
	TechniqueID   string  `firestore:"technique_id"`
	TechniqueName string  `firestore:"technique_name"`
	MaterialID    *string `firestore:"material_id,omitempty"`
	FabricOption  string  `firestore:"fabric_option,omitempty"`
	FabricGSM     *int    `firestore:"fabric_gsm,omitempty"`
	Quantity      int     `firestore:"quantity"`

	ProductID    string `firestore:"product_id,omitempty"`
	ProductName  string `firestore:"product_name,omitempty"`
	ProductPrice int64  `firestore:"product_price,omitempty"`

	ItemType string `firestore:"item_type,omitempty"`
	Size     string `firestore:"size,omitempty"`
	Color    string `firestore:"color,omitempty"`
}

type costDocument struct {
	TechniqueCost int64 `firestore:"technique_cost"`
	FabricCost    int64 `firestore:"fabric_cost"`
	UnitCost      int64 `firestore:"unit_cost"`
	TotalCost     int64 `firestore:"total_cost"`
}

type contactDocument struct {
	PhoneNumber     string `firestore:"phone_number,omitempty"`
	WhatsAppNumber  string `firestore:"whatsapp_number,omitempty"`
	DeliveryAddress string `firestore:"delivery_address,omitempty"`
}

func toDocument(record domain.PaymentIntent) intentDocument {
	doc := intentDocument{
		Reference:    record.Reference,
		UserID:       record.UserID,
		Email:        record.Email,
		Amount:       record.Amount,
		Currency:     record.Currency,
		Title:        record.Title,
		Description:  record.Description,
		DesignURL:    record.DesignURL,
		DesignFileID: record.DesignFileID,
		ImageURL:     record.ImageURL,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
		Spec: specDocument{
			Kind:          string(record.Spec.Kind),
			TechniqueID:   record.Spec.TechniqueID,
			TechniqueName: record.Spec.TechniqueName,
			MaterialID:    record.Spec.MaterialID,
			FabricOption:  string(record.Spec.FabricOption),
			FabricGSM:     record.Spec.FabricGSM,
			Quantity:      record.Spec.Quantity,
		},
		Cost: costDocument{
			TechniqueCost: record.Cost.TechniqueCost,
			FabricCost:    record.Cost.FabricCost,
			UnitCost:      record.Cost.UnitCost,
			TotalCost:     record.Cost.TotalCost,
		},
		Contact: contactDocument{
			PhoneNumber:     record.Contact.PhoneNumber,
			WhatsAppNumber:  record.Contact.WhatsAppNumber,
			DeliveryAddress: record.Contact.DeliveryAddress,
		},
	}
	if record.Spec.Product != nil {
		doc.Spec.ProductID = record.Spec.Product.ProductID
		doc.Spec.ProductName = record.Spec.Product.ProductName
		doc.Spec.ProductPrice = record.Spec.Product.ProductPrice
	}
	if record.Spec.Personal != nil {
		doc.Spec.ItemType = record.Spec.Personal.ItemType
		doc.Spec.Size = record.Spec.Personal.Size
		doc.Spec.Color = record.Spec.Personal.Color
	}
	return doc
}

func (d intentDocument) toIntent() domain.PaymentIntent {
	record := domain.PaymentIntent{
		Reference:    d.Reference,
		UserID:       d.UserID,
		Email:        d.Email,
		Amount:       d.Amount,
		Currency:     d.Currency,
		Title:        d.Title,
		Description:  d.Description,
		DesignURL:    d.DesignURL,
		DesignFileID: d.DesignFileID,
		ImageURL:     d.ImageURL,
		CreatedAt:    d.CreatedAt,
		ExpiresAt:    d.ExpiresAt,
		Spec: domain.CustomizationSpec{
			Kind:          domain.CustomizationKind(d.Spec.Kind),
			TechniqueID:   d.Spec.TechniqueID,
			TechniqueName: d.Spec.TechniqueName,
			MaterialID:    d.Spec.MaterialID,
			FabricOption:  domain.FabricPurchaseOption(d.Spec.FabricOption),
			FabricGSM:     d.Spec.FabricGSM,
			Quantity:      d.Spec.Quantity,
		},
		Cost: domain.CostBreakdown{
			TechniqueCost: d.Cost.TechniqueCost,
			FabricCost:    d.Cost.FabricCost,
			UnitCost:      d.Cost.UnitCost,
			TotalCost:     d.Cost.TotalCost,
		},
		Contact: domain.ContactDetails{
			PhoneNumber:     d.Contact.PhoneNumber,
			WhatsAppNumber:  d.Contact.WhatsAppNumber,
			DeliveryAddress: d.Contact.DeliveryAddress,
		},
	}
	if record.Spec.Kind == domain.KindProductLinked {
		record.Spec.Product = &domain.ProductLink{
			ProductID:    d.Spec.ProductID,
			ProductName:  d.Spec.ProductName,
			ProductPrice: d.Spec.ProductPrice,
		}
	}
	if record.Spec.Kind == domain.KindPersonalItem {
		record.Spec.Personal = &domain.PersonalItem{
			ItemType: d.Spec.ItemType,
			Size:     d.Spec.Size,
			Color:    d.Spec.Color,
		}
	}
	return record
}

// Put stores a new intent inside a transaction so a live reference cannot be
// silently overwritten.
func (s *FirestoreStore) Put(ctx context.Context, record domain.PaymentIntent) error {
	reference := strings.TrimSpace(record.Reference)
	if reference == "" {
		return ErrNotFound
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}

	ref := client.Collection(s.collection).Doc(reference)
	now := record.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}

	err = fsplatform.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return tx.Set(ref, toDocument(record))
			}
			return err
		}

		var existing intentDocument
		if err := snap.DataTo(&existing); err != nil {
			return err
		}
		if !existing.toIntent().Expired(now) {
			return ErrAlreadyExists
		}
		return tx.Set(ref, toDocument(record))
	}, fsplatform.WithTxAttempts(s.maxAttempts))

	return err
}

// Get returns the stored intent for the reference.
func (s *FirestoreStore) Get(ctx context.Context, reference string) (domain.PaymentIntent, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.PaymentIntent{}, ErrNotFound
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	snap, err := client.Collection(s.collection).Doc(reference).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.PaymentIntent{}, ErrNotFound
		}
		return domain.PaymentIntent{}, fsplatform.WrapError("payment_intents.get", err)
	}

	var doc intentDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PaymentIntent{}, fsplatform.WrapError("payment_intents.decode", err)
	}
	return doc.toIntent(), nil
}

// Delete removes the intent for the reference.
func (s *FirestoreStore) Delete(ctx context.Context, reference string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return err
	}

	if _, err := client.Collection(s.collection).Doc(reference).Delete(ctx); err != nil {
		return fsplatform.WrapError("payment_intents.delete", err)
	}
	return nil
}

// CleanupExpired deletes intents whose expiry has passed, up to limit.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}

	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	query := client.Collection(s.collection).
		Where("expires_at", "<=", now.UTC()).
		Limit(limit)

	iter := query.Documents(ctx)
	defer iter.Stop()

	removed := 0
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return removed, fsplatform.WrapError("payment_intents.cleanup", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return removed, fsplatform.WrapError("payment_intents.cleanup", err)
		}
		removed++
	}
	return removed, nil
}
