package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/inkwell-press/api/internal/domain"
)

type stubCartRepo struct {
	carts map[string]domain.Cart
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{carts: make(map[string]domain.Cart)}
}

func (r *stubCartRepo) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	cart, ok := r.carts[userID]
	if !ok {
		return domain.Cart{}, stubNotFoundError{}
	}
	return cart, nil
}

func (r *stubCartRepo) UpsertCart(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	r.carts[cart.UserID] = cart
	return cart, nil
}

func (r *stubCartRepo) ClearCart(_ context.Context, userID string) error {
	delete(r.carts, userID)
	return nil
}

func newTestCartService(t *testing.T, repo *stubCartRepo) CartService {
	t.Helper()
	counter := 0
	service, err := NewCartService(CartServiceDeps{
		Repository: repo,
		Clock:      fixedClock(time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)),
		IDGenerator: func() string {
			counter++
			return fmt.Sprintf("item_%03d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return service
}

func TestGetCartReturnsEmptyWhenMissing(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	cart, err := service.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(cart.Items))
	}
	if cart.Currency != "NGN" {
		t.Fatalf("expected default currency, got %s", cart.Currency)
	}
	if cart.Estimate == nil || cart.Estimate.Total != 0 {
		t.Fatalf("expected zero estimate, got %+v", cart.Estimate)
	}
}

func TestAddItemComputesEstimate(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	cart, err := service.AddItem(context.Background(), "user-1", AddCartItemCommand{
		ProductID: "tee-classic",
		Name:      "Classic tee",
		Size:      "L",
		UnitPrice: 12000,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Items))
	}
	if cart.Estimate == nil || cart.Estimate.Subtotal != 24000 || cart.Estimate.Items != 2 {
		t.Fatalf("unexpected estimate: %+v", cart.Estimate)
	}
}

func TestAddItemMergesMatchingProductLines(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	line := AddCartItemCommand{ProductID: "tee-classic", Name: "Classic tee", Size: "L", UnitPrice: 12000, Quantity: 1}
	if _, err := service.AddItem(context.Background(), "user-1", line); err != nil {
		t.Fatalf("first AddItem: %v", err)
	}
	cart, err := service.AddItem(context.Background(), "user-1", line)
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}

	if len(cart.Items) != 1 {
		t.Fatalf("expected merged line, got %d lines", len(cart.Items))
	}
	if cart.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", cart.Items[0].Quantity)
	}
}

func TestUpdateItemQuantityRemovesAtZero(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	cart, err := service.AddItem(context.Background(), "user-1", AddCartItemCommand{
		ProductID: "tee-classic",
		Name:      "Classic tee",
		UnitPrice: 12000,
		Quantity:  2,
	})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	updated, err := service.UpdateItemQuantity(context.Background(), "user-1", cart.Items[0].ID, 0)
	if err != nil {
		t.Fatalf("UpdateItemQuantity: %v", err)
	}
	if len(updated.Items) != 0 {
		t.Fatalf("expected line removed, got %d lines", len(updated.Items))
	}
}

func TestUpdateItemQuantityUnknownItem(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	_, err := service.UpdateItemQuantity(context.Background(), "user-1", "missing", 1)
	if !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
}

func TestAddItemValidation(t *testing.T) {
	service := newTestCartService(t, newStubCartRepo())

	tests := []struct {
		name string
		cmd  AddCartItemCommand
	}{
		{"missing reference", AddCartItemCommand{Name: "x", UnitPrice: 1, Quantity: 1}},
		{"missing name", AddCartItemCommand{ProductID: "p", UnitPrice: 1, Quantity: 1}},
		{"negative price", AddCartItemCommand{ProductID: "p", Name: "x", UnitPrice: -1, Quantity: 1}},
		{"zero quantity", AddCartItemCommand{ProductID: "p", Name: "x", UnitPrice: 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.AddItem(context.Background(), "user-1", tc.cmd); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestClearCart(t *testing.T) {
	repo := newStubCartRepo()
	service := newTestCartService(t, repo)

	if _, err := service.AddItem(context.Background(), "user-1", AddCartItemCommand{
		ProductID: "tee-classic",
		Name:      "Classic tee",
		UnitPrice: 12000,
		Quantity:  1,
	}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := service.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("ClearCart: %v", err)
	}
	if _, ok := repo.carts["user-1"]; ok {
		t.Fatal("expected cart removed")
	}
}
