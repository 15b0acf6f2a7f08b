package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/inkwell-press/api/internal/domain"
)

func TestListTechniquesReturnsCatalogue(t *testing.T) {
	router, stubs := newTestRouter(t, nil)
	stubs.catalog.techniques = []domain.Technique{
		{ID: "screen-print", Name: "Screen printing", BaseCost: 1500, Active: true},
		{ID: "embroidery", Name: "Embroidery", BaseCost: 2500, Active: true},
	}

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/public/techniques", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Techniques []techniquePayload `json:"techniques"`
	}
	decodeBody(t, rec, &body)
	if len(body.Techniques) != 2 {
		t.Fatalf("expected 2 techniques, got %d", len(body.Techniques))
	}
	if body.Techniques[0].ID != "screen-print" || body.Techniques[0].BaseCost != 1500 {
		t.Fatalf("unexpected first technique: %+v", body.Techniques[0])
	}
}

func TestGetProductNotFound(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/public/products/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "not_found" {
		t.Fatalf("expected not_found code, got %q", body.Error)
	}
}

func TestListFabricTiers(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := doRequest(t, router, httptest.NewRequest(http.MethodGet, "/api/v1/public/fabric-tiers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		FabricTiers []struct {
			GSM  int   `json:"gsm"`
			Cost int64 `json:"cost"`
		} `json:"fabric_tiers"`
	}
	decodeBody(t, rec, &body)
	if len(body.FabricTiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(body.FabricTiers))
	}
	if body.FabricTiers[0].GSM != 160 || body.FabricTiers[0].Cost != 2500 {
		t.Fatalf("unexpected first tier: %+v", body.FabricTiers[0])
	}
}

func TestCostEstimate(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	payload := `{"technique_cost":1500,"fabric_option":"help_buy","fabric_gsm":180,"quantity":3}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/cost-estimate", strings.NewReader(payload))
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body costBreakdownPayload
	decodeBody(t, rec, &body)
	if body.UnitCost != 4500 || body.TotalCost != 13500 {
		t.Fatalf("unexpected estimate: %+v", body)
	}
}

func TestCostEstimateRejectsUnknownFabricOption(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	payload := `{"technique_cost":1500,"fabric_option":"borrow","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/cost-estimate", strings.NewReader(payload))
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpsertTechniquePassesPathID(t *testing.T) {
	router, stubs := newTestRouter(t, nil)

	payload := `{"name":"Screen printing","base_cost":1800}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/techniques/screen-print", strings.NewReader(payload))
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(stubs.catalog.upserted) != 1 {
		t.Fatalf("expected one upsert, got %d", len(stubs.catalog.upserted))
	}
	if got := stubs.catalog.upserted[0].ID; got != "screen-print" {
		t.Fatalf("expected path ID to reach the service, got %q", got)
	}
}

func TestUpsertTechniqueRejectsMalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/techniques", strings.NewReader("{not json"))
	rec := doRequest(t, router, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	decodeBody(t, rec, &body)
	if body.Error != "invalid_json" {
		t.Fatalf("expected invalid_json code, got %q", body.Error)
	}
}
