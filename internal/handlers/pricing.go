package handlers

import (
	"net/http"

	"github.com/inkwell-press/api/internal/domain"
	"github.com/inkwell-press/api/internal/services"
)

// PricingHandlers exposes the cost calculator so clients can quote a
// customization before committing to it.
type PricingHandlers struct{}

type costEstimateRequest struct {
	TechniqueCost int64  `json:"technique_cost"`
	FabricOption  string `json:"fabric_option"`
	FabricGSM     int    `json:"fabric_gsm"`
	Quantity      int    `json:"quantity"`
	ProductPrice  *int64 `json:"product_price"`
}

type costBreakdownPayload struct {
	TechniqueCost int64 `json:"technique_cost"`
	FabricCost    int64 `json:"fabric_cost"`
	UnitCost      int64 `json:"unit_cost"`
	TotalCost     int64 `json:"total_cost"`
}

func costToPayload(cost domain.CostBreakdown) costBreakdownPayload {
	return costBreakdownPayload{
		TechniqueCost: cost.TechniqueCost,
		FabricCost:    cost.FabricCost,
		UnitCost:      cost.UnitCost,
		TotalCost:     cost.TotalCost,
	}
}

func (h PricingHandlers) estimateCost(w http.ResponseWriter, r *http.Request) {
	var body costEstimateRequest
	if err := decodeJSONBody(r, &body, 0); err != nil {
		writeDecodeError(r.Context(), w, err)
		return
	}

	option := domain.FabricPurchaseOption("")
	if body.FabricOption != "" {
		parsed, ok := domain.ParseFabricPurchaseOption(body.FabricOption)
		if !ok {
			writeServiceError(r.Context(), w, services.ValidationErrorf("unknown fabric option %q", body.FabricOption))
			return
		}
		option = parsed
	}

	cost, err := domain.CalculateCost(domain.PricingInput{
		TechniqueCost: body.TechniqueCost,
		FabricOption:  option,
		FabricGSM:     body.FabricGSM,
		Quantity:      body.Quantity,
		ProductPrice:  body.ProductPrice,
	})
	if err != nil {
		writeServiceError(r.Context(), w, services.ValidationErrorf("%v", err))
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, costToPayload(cost))
}
