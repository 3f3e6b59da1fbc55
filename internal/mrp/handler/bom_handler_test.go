package handler

import (
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
	"github.com/Blb3D/filaops-sub000/internal/mrp/testutil"
)

func setupBOMTest(t *testing.T) *testutil.TestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	router := testutil.SetupRouter()

	repos := repository.NewRepositories(db)
	h := NewBOMHandler(service.NewBOMService(repos, zap.NewNop()))

	api := testutil.AuthGroup(router, "/api/v1/planning")
	api.POST("/boms", h.Create)
	api.GET("/boms/:id", h.Get)
	api.PUT("/boms/:id", h.Update)
	api.DELETE("/boms/:id", h.Delete)
	api.POST("/boms/:id/lines", h.AddLine)
	api.PUT("/boms/:id/lines/:lineId", h.UpdateLine)
	api.DELETE("/boms/:id/lines/:lineId", h.DeleteLine)
	api.POST("/boms/:id/activate", h.Activate)
	api.POST("/boms/:id/deactivate", h.Deactivate)
	api.GET("/products/:productId/boms", h.ListVersions)
	api.GET("/products/:productId/explode", h.Explode)
	api.GET("/products/:productId/where-used", h.WhereUsed)
	api.GET("/products/:productId/cost", h.Cost)

	return &testutil.TestEnv{DB: db, Router: router, T: t}
}

// seedProduct inserts a product row with sane defaults, shared by the handler tests
func seedProduct(t *testing.T, db *gorm.DB, p *entity.Product) *entity.Product {
	t.Helper()
	if p.Unit == "" {
		p.Unit = "pcs"
	}
	if p.ProcurementType == "" {
		p.ProcurementType = entity.ProcurementBuy
	}
	p.IsActive = true
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to seed product %s: %v", p.SKU, err)
	}
	return p
}

// decEqual asserts a decimal JSON value (marshalled as string) equals want
func decEqual(t *testing.T, v interface{}, want string) {
	t.Helper()
	s, ok := v.(string)
	if !ok {
		t.Fatalf("Expected decimal string, got %T (%v)", v, v)
	}
	got, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("Failed to parse decimal %q: %v", s, err)
	}
	w, _ := decimal.NewFromString(want)
	if !got.Equal(w) {
		t.Errorf("Expected %s, got %s", want, s)
	}
}

func TestBOMVersionLifecycle(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-spool", SKU: "SPOOL-PLA-1KG", Name: "PLA Spool 1kg", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-fil", SKU: "FIL-PLA-175", Name: "PLA Filament 1.75mm", Unit: "kg", StandardCost: decimal.RequireFromString("8")})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-core", SKU: "CORE-SPOOL", Name: "Spool Core", StandardCost: decimal.RequireFromString("1.2")})

	// Create draft v1 with one line
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-spool",
			"lines": []map[string]interface{}{
				{"component_id": "prod-fil", "quantity": "2", "scrap_factor": "0.05"},
			},
		}, token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	data := resp["data"].(map[string]interface{})
	if data["version"] != float64(1) {
		t.Errorf("Expected version 1, got %v", data["version"])
	}
	if data["active"] != false {
		t.Errorf("New BOM version should start inactive")
	}
	bomID := data["id"].(string)

	// Append a second line to the draft
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/lines",
		map[string]interface{}{"component_id": "prod-core", "quantity": "1"}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w2.Code, w2.Body.String())
	}

	// Activate caches the rolled-up cost: 2*1.05*8 + 1*1.2 = 18
	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token)
	if w3.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w3.Code, w3.Body.String())
	}
	resp3 := testutil.ParseResponse(w3)
	bom3 := resp3["data"].(map[string]interface{})["bom"].(map[string]interface{})
	if bom3["active"] != true {
		t.Errorf("Expected BOM active after activation")
	}
	decEqual(t, bom3["total_cost"], "18")

	// Active versions are immutable
	w4 := testutil.DoRequest(env.Router, "PUT", "/api/v1/planning/boms/"+bomID,
		map[string]interface{}{"notes": "tweak"}, token)
	if w4.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 editing active BOM, got %d", w4.Code)
	}
	w5 := testutil.DoRequest(env.Router, "DELETE", "/api/v1/planning/boms/"+bomID, nil, token)
	if w5.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 deleting active BOM, got %d", w5.Code)
	}

	// Explode resolves the active version: 10 spools -> 21 kg filament, 10 cores
	w6 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-spool/explode?quantity=10", nil, token)
	if w6.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w6.Code, w6.Body.String())
	}
	items := testutil.ParseResponse(w6)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("Expected 2 exploded components, got %d", len(items))
	}
	byID := map[string]map[string]interface{}{}
	for _, it := range items {
		m := it.(map[string]interface{})
		byID[m["product_id"].(string)] = m
	}
	decEqual(t, byID["prod-fil"]["quantity"], "21")
	decEqual(t, byID["prod-core"]["quantity"], "10")

	// A second version starts as a draft and does not affect resolution yet
	w7 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-spool",
			"lines": []map[string]interface{}{
				{"component_id": "prod-fil", "quantity": "3"},
			},
		}, token)
	if w7.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w7.Code, w7.Body.String())
	}
	resp7 := testutil.ParseResponse(w7)
	bom2Data := resp7["data"].(map[string]interface{})
	if bom2Data["version"] != float64(2) {
		t.Errorf("Expected version 2, got %v", bom2Data["version"])
	}
	bom2ID := bom2Data["id"].(string)

	w8 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-spool/explode?quantity=10", nil, token)
	items8 := testutil.ParseResponse(w8)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items8) != 2 {
		t.Errorf("Draft version must not change resolution, got %d components", len(items8))
	}

	// Once v2 is active, the highest active version wins
	w9 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bom2ID+"/activate", nil, token)
	if w9.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w9.Code, w9.Body.String())
	}
	w10 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-spool/explode?quantity=10", nil, token)
	items10 := testutil.ParseResponse(w10)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items10) != 1 {
		t.Fatalf("Expected 1 component from v2, got %d", len(items10))
	}
	decEqual(t, items10[0].(map[string]interface{})["quantity"], "30")

	// Both versions listed for the product
	w11 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-spool/boms", nil, token)
	items11 := testutil.ParseResponse(w11)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items11) != 2 {
		t.Errorf("Expected 2 BOM versions, got %d", len(items11))
	}
}

func TestBOMActivateRejectsCycle(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-a", SKU: "ASSY-A", Name: "Assembly A", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-b", SKU: "ASSY-B", Name: "Assembly B", ProcurementType: entity.ProcurementMake})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-a",
			"lines":      []map[string]interface{}{{"component_id": "prod-b", "quantity": "1"}},
		}, token)
	bomA := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
	if w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomA+"/activate", nil, token); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 activating A, got %d: %s", w.Code, w.Body.String())
	}

	// B -> A closes the loop: draft creation is fine, activation is rejected
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-b",
			"lines":      []map[string]interface{}{{"component_id": "prod-a", "quantity": "1"}},
		}, token)
	if w2.Code != http.StatusCreated {
		t.Fatalf("Expected 201 creating draft, got %d: %s", w2.Code, w2.Body.String())
	}
	bomB := testutil.ParseResponse(w2)["data"].(map[string]interface{})["id"].(string)

	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomB+"/activate", nil, token)
	if w3.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 activating cyclic BOM, got %d: %s", w3.Code, w3.Body.String())
	}
}

func TestBOMSelfReferenceRejected(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-self", SKU: "SELF-1", Name: "Self Ref", ProcurementType: entity.ProcurementMake})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-self",
			"lines":      []map[string]interface{}{{"component_id": "prod-self", "quantity": "1"}},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for self reference, got %d: %s", w.Code, w.Body.String())
	}
}

func TestBOMLineValidation(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-p", SKU: "P-1", Name: "Parent", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-c", SKU: "C-1", Name: "Child"})

	// Zero quantity rejected
	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-p",
			"lines":      []map[string]interface{}{{"component_id": "prod-c", "quantity": "0"}},
		}, token)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for zero quantity, got %d", w.Code)
	}

	// Unknown component rejected
	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-p",
			"lines":      []map[string]interface{}{{"component_id": "prod-missing", "quantity": "1"}},
		}, token)
	if w2.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown component, got %d", w2.Code)
	}

	// Empty BOM cannot be activated
	w3 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{"product_id": "prod-p"}, token)
	bomID := testutil.ParseResponse(w3)["data"].(map[string]interface{})["id"].(string)
	w4 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token)
	if w4.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 activating empty BOM, got %d", w4.Code)
	}

	// Malformed explode quantity rejected
	w5 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-p/explode?quantity=abc", nil, token)
	if w5.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad quantity, got %d", w5.Code)
	}
}

func TestExplodeNoActiveBOMReturns404(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-naked", SKU: "NAKED-1", Name: "No BOM", ProcurementType: entity.ProcurementMake})

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-naked/explode", nil, token)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without active BOM, got %d: %s", w.Code, w.Body.String())
	}
}

func TestDeactivateRestoresNoBOMState(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-x", SKU: "X-1", Name: "X", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-y", SKU: "Y-1", Name: "Y"})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-x",
			"lines":      []map[string]interface{}{{"component_id": "prod-y", "quantity": "1"}},
		}, token)
	bomID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
	testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token)

	w2 := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/deactivate", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}

	// No active version left: explode now 404s and the product flag is cleared
	w3 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-x/explode", nil, token)
	if w3.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after deactivation, got %d", w3.Code)
	}
	var prod entity.Product
	env.DB.First(&prod, "id = ?", "prod-x")
	if prod.HasBOM {
		t.Errorf("Expected has_bom cleared after deactivating last version")
	}

	// Inactive version can now be deleted
	w4 := testutil.DoRequest(env.Router, "DELETE", "/api/v1/planning/boms/"+bomID, nil, token)
	if w4.Code != http.StatusOK {
		t.Errorf("Expected 200 deleting draft, got %d", w4.Code)
	}
}

func TestWhereUsedThroughLevels(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-top", SKU: "PRINTER-KIT", Name: "Printer Kit", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-mid", SKU: "HOTEND-ASSY", Name: "Hotend Assembly", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-leaf", SKU: "NOZZLE-04", Name: "Nozzle 0.4mm"})

	for _, pair := range [][2]string{{"prod-top", "prod-mid"}, {"prod-mid", "prod-leaf"}} {
		w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
			map[string]interface{}{
				"product_id": pair[0],
				"lines":      []map[string]interface{}{{"component_id": pair[1], "quantity": "2"}},
			}, token)
		bomID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
		if w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token); w.Code != http.StatusOK {
			t.Fatalf("Failed to activate BOM for %s: %s", pair[0], w.Body.String())
		}
	}

	// Direct parents only
	w := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-leaf/where-used", nil, token)
	items := testutil.ParseResponse(w)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 direct parent, got %d", len(items))
	}
	if items[0].(map[string]interface{})["product_id"] != "prod-mid" {
		t.Errorf("Expected direct parent prod-mid, got %v", items[0].(map[string]interface{})["product_id"])
	}

	// Transitive walk reaches the top level
	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-leaf/where-used?transitive=true", nil, token)
	items2 := testutil.ParseResponse(w2)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items2) != 2 {
		t.Fatalf("Expected 2 ancestors, got %d", len(items2))
	}
	var sawTop bool
	for _, it := range items2 {
		m := it.(map[string]interface{})
		if m["product_id"] == "prod-top" {
			sawTop = true
			if m["top_level"] != true {
				t.Errorf("Expected prod-top flagged top_level")
			}
		}
	}
	if !sawTop {
		t.Errorf("Expected transitive walk to reach prod-top")
	}
}

func TestCostOnlyLineInCostNotInExplode(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-sp", SKU: "SPOOL-PETG", Name: "PETG Spool", ProcurementType: entity.ProcurementMake})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-f", SKU: "FIL-PETG", Name: "PETG Filament", Unit: "kg", StandardCost: decimal.RequireFromString("10")})
	seedProduct(t, env.DB, &entity.Product{ID: "prod-des", SKU: "DESICCANT", Name: "Desiccant Pack", StandardCost: decimal.RequireFromString("0.3")})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-sp",
			"lines": []map[string]interface{}{
				{"component_id": "prod-f", "quantity": "1"},
				{"component_id": "prod-des", "quantity": "1", "is_cost_only": true},
			},
		}, token)
	bomID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
	testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token)

	// Cost-only line is skipped by explosion
	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-sp/explode", nil, token)
	items := testutil.ParseResponse(w2)["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("Expected 1 exploded component, got %d", len(items))
	}
	if items[0].(map[string]interface{})["product_id"] != "prod-f" {
		t.Errorf("Expected only prod-f in explosion")
	}

	// But contributes to the rolled-up cost: 10 + 0.3
	w3 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-sp/cost", nil, token)
	cost := testutil.ParseResponse(w3)["data"].(map[string]interface{})
	decEqual(t, cost["total_cost"], "10.3")
}

func TestCostFallbackChainAndWarnings(t *testing.T) {
	env := setupBOMTest(t)
	token := testutil.DefaultTestToken()

	seedProduct(t, env.DB, &entity.Product{ID: "prod-asm", SKU: "DRYER-BOX", Name: "Filament Dryer Box", ProcurementType: entity.ProcurementMake})
	// standard=0 falls through to average
	seedProduct(t, env.DB, &entity.Product{ID: "prod-avg", SKU: "HEATER-PAD", Name: "Heater Pad", AverageCost: decimal.RequireFromString("4.5")})
	// no cost at all resolves to zero with a warning
	seedProduct(t, env.DB, &entity.Product{ID: "prod-zero", SKU: "FOAM-SEAL", Name: "Foam Seal"})

	w := testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms",
		map[string]interface{}{
			"product_id": "prod-asm",
			"lines": []map[string]interface{}{
				{"component_id": "prod-avg", "quantity": "2"},
				{"component_id": "prod-zero", "quantity": "1"},
			},
		}, token)
	bomID := testutil.ParseResponse(w)["data"].(map[string]interface{})["id"].(string)
	testutil.DoRequest(env.Router, "POST", "/api/v1/planning/boms/"+bomID+"/activate", nil, token)

	w2 := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/products/prod-asm/cost", nil, token)
	if w2.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w2.Code, w2.Body.String())
	}
	cost := testutil.ParseResponse(w2)["data"].(map[string]interface{})
	decEqual(t, cost["total_cost"], "9")

	warnings := cost["warnings"].([]interface{})
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 cost warning, got %d", len(warnings))
	}
	warn := warnings[0].(map[string]interface{})
	if warn["sku"] != "FOAM-SEAL" {
		t.Errorf("Expected warning for FOAM-SEAL, got %v", warn["sku"])
	}

	for _, line := range cost["lines"].([]interface{}) {
		m := line.(map[string]interface{})
		if m["component_id"] == "prod-avg" && m["source"] != "average" {
			t.Errorf("Expected average cost source, got %v", m["source"])
		}
		if m["component_id"] == "prod-zero" && m["source"] != "unresolved" {
			t.Errorf("Expected unresolved cost source, got %v", m["source"])
		}
	}
}

func TestBOMRequiresAuth(t *testing.T) {
	env := setupBOMTest(t)

	w := testutil.DoRequest(env.Router, "GET", "/api/v1/planning/boms/some-id", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}
