package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// 三层结构：FIL(成品) -> SPOOLED(半成品) -> RESIN(原料)，FIL另直接用BOX
func buildThreeLevelSnapshot() *Snapshot {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "fil", SKU: "FIL-PLA-175", Name: "PLA线材1.75mm", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "spooled", SKU: "SEMI-SPOOLED", Name: "已绕线盘", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "resin", SKU: "RESIN-PLA", Name: "PLA粒子", Unit: "kg"})
	addProduct(s, &entity.Product{ID: "box", SKU: "PKG-BOX", Name: "包装盒"})
	addBOM(s, "fil", 1, true,
		entity.BOMLine{ComponentID: "spooled", Quantity: decimal.NewFromInt(1), Sequence: 10},
		entity.BOMLine{ComponentID: "box", Quantity: decimal.NewFromInt(1), Sequence: 20},
	)
	addBOM(s, "spooled", 1, true,
		entity.BOMLine{ComponentID: "resin", Quantity: decimal.RequireFromString("1.2"), ScrapFactor: decimal.RequireFromString("0.05"), Sequence: 10},
	)
	return s
}

func TestExplodeCascadesQuantityThroughLevels(t *testing.T) {
	s := buildThreeLevelSnapshot()
	x := NewExploder(s)

	list, err := x.Explode("fil", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}
	totals := AggregateComponents(list)

	if got := totals["spooled"]; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("spooled total = %s, want 10", got)
	}
	// 10 × 1.2 × 1.05 = 12.6
	if got := totals["resin"]; !got.Equal(dec(t, "12.6")) {
		t.Errorf("resin total = %s, want 12.6", got)
	}
	if got := totals["box"]; !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("box total = %s, want 10", got)
	}

	depths := map[string]int{}
	for _, c := range list {
		depths[c.ProductID] = c.Depth
	}
	if depths["spooled"] != 1 || depths["box"] != 1 {
		t.Errorf("direct components should be depth 1, got %v", depths)
	}
	if depths["resin"] != 2 {
		t.Errorf("resin depth = %d, want 2", depths["resin"])
	}
}

func TestExplodeLinearity(t *testing.T) {
	s := buildThreeLevelSnapshot()
	x := NewExploder(s)

	unit, err := x.Explode("fil", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Explode(1) failed: %v", err)
	}
	k := decimal.NewFromInt(7)
	scaled, err := x.Explode("fil", k)
	if err != nil {
		t.Fatalf("Explode(7) failed: %v", err)
	}

	unitTotals := AggregateComponents(unit)
	scaledTotals := AggregateComponents(scaled)
	if len(unitTotals) != len(scaledTotals) {
		t.Fatalf("component sets differ: %d vs %d", len(unitTotals), len(scaledTotals))
	}
	for pid, u := range unitTotals {
		if got := scaledTotals[pid]; !got.Equal(u.Mul(k)) {
			t.Errorf("%s: explode(7) = %s, want 7 × %s", pid, got, u)
		}
	}
}

func TestExplodeSkipsCostOnlyLines(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "fil", SKU: "FIL-PLA-175", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "resin", SKU: "RESIN-PLA"})
	addProduct(s, &entity.Product{ID: "energy", SKU: "OVH-ENERGY"})
	addBOM(s, "fil", 1, true,
		bomLine("resin", "1.2", "0", false),
		bomLine("energy", "1", "0", true),
	)
	x := NewExploder(s)

	list, err := x.Explode("fil", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Explode failed: %v", err)
	}
	for _, c := range list {
		if c.ProductID == "energy" {
			t.Error("cost-only line must not appear in explosion")
		}
	}
	if len(list) != 1 {
		t.Errorf("expected 1 physical component, got %d", len(list))
	}
}

func TestExplodeRejectsNonPositiveQuantity(t *testing.T) {
	s := buildThreeLevelSnapshot()
	x := NewExploder(s)

	for _, qty := range []string{"0", "-3"} {
		if _, err := x.Explode("fil", dec(t, qty)); !errors.Is(err, ErrInvalidQuantity) {
			t.Errorf("qty %s: expected ErrInvalidQuantity, got %v", qty, err)
		}
	}
}

func TestExplodeNoActiveBOM(t *testing.T) {
	s := buildThreeLevelSnapshot()
	x := NewExploder(s)

	_, err := x.Explode("resin", decimal.NewFromInt(1))
	var nab *NoActiveBOMError
	if !errors.As(err, &nab) {
		t.Fatalf("expected NoActiveBOMError, got %v", err)
	}
}

func TestExplodeDetectsCycle(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "a", SKU: "A", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "b", SKU: "B", ProcurementType: entity.ProcurementMake})
	addBOM(s, "a", 1, true, bomLine("b", "1", "0", false))
	addBOM(s, "b", 1, true, bomLine("a", "1", "0", false))
	x := NewExploder(s)

	_, err := x.Explode("a", decimal.NewFromInt(1))
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) < 3 {
		t.Errorf("cycle path too short: %v", cycle.Path)
	}
}

func TestExplodeSelfReferenceDetected(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "a", SKU: "A", ProcurementType: entity.ProcurementMake})
	addBOM(s, "a", 1, true, bomLine("a", "1", "0", false))
	x := NewExploder(s)

	var cycle *CycleError
	if _, err := x.Explode("a", decimal.NewFromInt(1)); !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError on self reference, got %v", err)
	}
}

func TestWhereUsedDirectParentsOnly(t *testing.T) {
	s := buildThreeLevelSnapshot()
	x := NewExploder(s)

	entries, err := x.WhereUsed("resin", false)
	if err != nil {
		t.Fatalf("WhereUsed failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 direct parent, got %d", len(entries))
	}
	e := entries[0]
	if e.ProductID != "spooled" || e.Depth != 1 {
		t.Errorf("unexpected direct parent %+v", e)
	}
	if !e.LineQty.Equal(dec(t, "1.2")) {
		t.Errorf("line qty = %s, want 1.2", e.LineQty)
	}
}

func TestWhereUsedTransitiveReachesTopLevel(t *testing.T) {
	// X 埋在成品F之下三层：F -> A -> S -> X
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "f", SKU: "F", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "a", SKU: "A", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "s", SKU: "S", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "x", SKU: "X"})
	addBOM(s, "f", 1, true, bomLine("a", "1", "0", false))
	addBOM(s, "a", 1, true, bomLine("s", "1", "0", false))
	addBOM(s, "s", 1, true, bomLine("x", "4", "0", false))
	x := NewExploder(s)

	entries, err := x.WhereUsed("x", true)
	if err != nil {
		t.Fatalf("WhereUsed failed: %v", err)
	}
	byID := map[string]WhereUsedEntry{}
	for _, e := range entries {
		byID[e.ProductID] = e
	}
	top, ok := byID["f"]
	if !ok {
		t.Fatal("transitive where-used must include the top-level finished good")
	}
	if !top.TopLevel {
		t.Error("finished good should be flagged top_level")
	}
	if top.Depth != 3 {
		t.Errorf("finished good depth = %d, want 3", top.Depth)
	}
	if _, ok := byID["s"]; !ok {
		t.Error("transitive where-used must include the direct parent as well")
	}

	direct, err := x.WhereUsed("x", false)
	if err != nil {
		t.Fatalf("WhereUsed(direct) failed: %v", err)
	}
	if len(direct) != 1 || direct[0].ProductID != "s" {
		t.Errorf("direct where-used = %+v, want only S", direct)
	}
}

func TestWhereUsedDetectsCycle(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "a", SKU: "A", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "b", SKU: "B", ProcurementType: entity.ProcurementMake})
	addBOM(s, "a", 1, true, bomLine("b", "1", "0", false))
	addBOM(s, "b", 1, true, bomLine("a", "1", "0", false))
	x := NewExploder(s)

	var cycle *CycleError
	if _, err := x.WhereUsed("a", true); !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
}

func TestWhereUsedIncludesCostOnlyReference(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "fil", SKU: "FIL-PLA-175", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "energy", SKU: "OVH-ENERGY"})
	addBOM(s, "fil", 1, true, bomLine("energy", "1", "0", true))
	x := NewExploder(s)

	entries, err := x.WhereUsed("energy", false)
	if err != nil {
		t.Fatalf("WhereUsed failed: %v", err)
	}
	if len(entries) != 1 || !entries[0].IsCostOnly {
		t.Errorf("cost-only reference should be reported, got %+v", entries)
	}
}
