package domain

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrPricingInvalidInput signals bad pricing parameters such as a
	// non-positive quantity or a negative technique cost.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnknownFabricTier is returned when a fabric purchase is
	// requested for a GSM weight the platform does not stock.
	ErrPricingUnknownFabricTier = errors.New("pricing: unknown fabric tier")
)

// fabricCostByGSM is the fixed fabric price table keyed by GSM weight,
// expressed in the currency's whole units.
var fabricCostByGSM = map[int]int64{
	160: 2500,
	180: 3000,
	200: 3500,
	220: 4000,
}

// FabricTiers returns the fabric price table sorted by GSM weight.
func FabricTiers() []FabricTier {
	tiers := make([]FabricTier, 0, len(fabricCostByGSM))
	for gsm, cost := range fabricCostByGSM {
		tiers = append(tiers, FabricTier{GSM: gsm, Cost: cost})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].GSM < tiers[j].GSM })
	return tiers
}

// FabricCost looks up the fabric cost for a GSM weight.
func FabricCost(gsm int) (int64, bool) {
	cost, ok := fabricCostByGSM[gsm]
	return cost, ok
}

// PricingInput carries the parameters of a cost calculation.
type PricingInput struct {
	TechniqueCost int64
	FabricOption  FabricPurchaseOption
	FabricGSM     int
	Quantity      int

	// ProductPrice is set for product-linked items; fabric cost does not
	// apply to them and the unit cost is product price plus technique cost.
	ProductPrice *int64
}

// CalculateCost computes the full cost breakdown for a customization.
// Fabric cost is zero unless the requester opted to have fabric purchased on
// their behalf; the total is always unit cost times quantity.
func CalculateCost(in PricingInput) (CostBreakdown, error) {
	if in.Quantity < 1 {
		return CostBreakdown{}, fmt.Errorf("%w: quantity must be at least 1", ErrPricingInvalidInput)
	}
	if in.TechniqueCost < 0 {
		return CostBreakdown{}, fmt.Errorf("%w: technique cost cannot be negative", ErrPricingInvalidInput)
	}
	if in.ProductPrice != nil && *in.ProductPrice < 0 {
		return CostBreakdown{}, fmt.Errorf("%w: product price cannot be negative", ErrPricingInvalidInput)
	}

	var fabricCost int64
	if in.ProductPrice == nil && in.FabricOption.RequiresFabricPurchase() {
		cost, ok := fabricCostByGSM[in.FabricGSM]
		if !ok {
			return CostBreakdown{}, fmt.Errorf("%w: %d gsm", ErrPricingUnknownFabricTier, in.FabricGSM)
		}
		fabricCost = cost
	}

	var unitCost int64
	if in.ProductPrice != nil {
		unitCost = *in.ProductPrice + in.TechniqueCost
	} else {
		unitCost = in.TechniqueCost + fabricCost
	}

	quantity := int64(in.Quantity)
	if unitCost > 0 && unitCost > math.MaxInt64/quantity {
		return CostBreakdown{}, fmt.Errorf("%w: total cost overflow", ErrPricingInvalidInput)
	}

	return CostBreakdown{
		TechniqueCost: in.TechniqueCost,
		FabricCost:    fabricCost,
		UnitCost:      unitCost,
		TotalCost:     unitCost * quantity,
	}, nil
}
