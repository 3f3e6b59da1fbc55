package engine

import (
	"fmt"
	"sort"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// 小工厂场景：线材(自制) -> 粒子(外购) + 包装盒(外购，库存充足)
func buildFactorySnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s := newTestSnapshot()
	addProduct(s, &entity.Product{
		ID: "fil", SKU: "FIL-PLA-175", Name: "PLA线材",
		ProcurementType: entity.ProcurementMake,
		SafetyStock:     dec(t, "10"),
	})
	addProduct(s, &entity.Product{
		ID: "resin", SKU: "RESIN-PLA", Name: "PLA粒子", Unit: "kg",
		ProcurementType: entity.ProcurementBuy,
		LeadTimeDays:    5,
	})
	addProduct(s, &entity.Product{
		ID: "box", SKU: "PKG-BOX", Name: "包装盒",
		ProcurementType: entity.ProcurementBuy,
		LeadTimeDays:    3,
	})
	addBOM(s, "fil", 1, true,
		entity.BOMLine{ComponentID: "resin", Quantity: decimal.RequireFromString("1.2"), ScrapFactor: decimal.RequireFromString("0.05"), Sequence: 10},
		entity.BOMLine{ComponentID: "box", Quantity: decimal.NewFromInt(1), Sequence: 20},
	)
	s.Routings["fil"] = RoutingCost{LeadTimeDays: 2}
	s.OnHand["fil"] = dec(t, "12")
	s.OnHand["resin"] = dec(t, "20")
	s.OnHand["box"] = dec(t, "100")
	s.Demands = []Demand{{
		ProductID: "fil", Quantity: dec(t, "50"), DueDate: day(2025, 3, 20),
		SourceType: entity.SourceTypeSalesLine, SourceID: "sol-1",
	}}
	return s
}

func orderFor(res *PlanResult, productID string) *OrderProposal {
	for i := range res.Orders {
		if res.Orders[i].ProductID == productID {
			return &res.Orders[i]
		}
	}
	return nil
}

func TestPlanCascadesThroughLevels(t *testing.T) {
	s := buildFactorySnapshot(t)

	res := Plan(s)

	if len(res.Exceptions) != 0 {
		t.Fatalf("unexpected exceptions: %+v", res.Exceptions)
	}

	fil := orderFor(res, "fil")
	if fil == nil {
		t.Fatal("expected a production order for the finished good")
	}
	if fil.OrderType != entity.OrderTypeProduction {
		t.Errorf("fil order type = %s, want production", fil.OrderType)
	}
	// 50 - 12 + 10 = 48
	if !fil.Quantity.Equal(dec(t, "48")) {
		t.Errorf("fil qty = %s, want 48", fil.Quantity)
	}
	if !fil.DueDate.Equal(day(2025, 3, 20)) {
		t.Errorf("fil due = %s, want 2025-03-20", fil.DueDate)
	}
	// 工艺路线生产提前期2天
	if !fil.StartDate.Equal(day(2025, 3, 18)) {
		t.Errorf("fil start = %s, want 2025-03-18", fil.StartDate)
	}
	if fil.SourceType != entity.SourceTypeSalesLine || fil.SourceID != "sol-1" {
		t.Errorf("fil source = %s/%s, want sales_order_line/sol-1", fil.SourceType, fil.SourceID)
	}

	resin := orderFor(res, "resin")
	if resin == nil {
		t.Fatal("expected a purchase order for the cascaded component")
	}
	if resin.OrderType != entity.OrderTypePurchase {
		t.Errorf("resin order type = %s, want purchase", resin.OrderType)
	}
	// 级联毛需求 48 × 1.2 × 1.05 = 60.48，库存20 → 净40.48
	if !resin.Quantity.Equal(dec(t, "40.48")) {
		t.Errorf("resin qty = %s, want 40.48", resin.Quantity)
	}
	// 组件需求落在父项开工日
	if !resin.DueDate.Equal(day(2025, 3, 18)) {
		t.Errorf("resin due = %s, want parent start 2025-03-18", resin.DueDate)
	}
	if !resin.StartDate.Equal(day(2025, 3, 13)) {
		t.Errorf("resin start = %s, want 2025-03-13", resin.StartDate)
	}
	if resin.SourceType != entity.SourceTypePlannedOrder || resin.SourceID != fil.ID {
		t.Errorf("cascaded source = %s/%s, want planned_order/%s", resin.SourceType, resin.SourceID, fil.ID)
	}

	if o := orderFor(res, "box"); o != nil {
		t.Errorf("box stock covers cascaded demand, unexpected order %+v", o)
	}
}

func TestPlanCounters(t *testing.T) {
	s := buildFactorySnapshot(t)

	res := Plan(s)

	c := res.Counters
	if c.OrdersProcessed != 1 {
		t.Errorf("OrdersProcessed = %d, want 1", c.OrdersProcessed)
	}
	// fil、resin、box都完成净算
	if c.ComponentsAnalyzed != 3 {
		t.Errorf("ComponentsAnalyzed = %d, want 3", c.ComponentsAnalyzed)
	}
	if c.ShortagesFound != 2 {
		t.Errorf("ShortagesFound = %d, want 2", c.ShortagesFound)
	}
	if c.PlannedOrdersCreated != len(res.Orders) || c.PlannedOrdersCreated != 2 {
		t.Errorf("PlannedOrdersCreated = %d, orders = %d, want 2", c.PlannedOrdersCreated, len(res.Orders))
	}
}

// 计划订单建议的可比指纹（忽略随机ID）
func proposalFingerprints(res *PlanResult) []string {
	out := make([]string, 0, len(res.Orders))
	for _, o := range res.Orders {
		out = append(out, fmt.Sprintf("%s|%s|%s|%s|%s",
			o.OrderType, o.ProductID, o.Quantity, o.DueDate.Format("2006-01-02"), o.StartDate.Format("2006-01-02")))
	}
	sort.Strings(out)
	return out
}

func TestPlanIsDeterministic(t *testing.T) {
	first := proposalFingerprints(Plan(buildFactorySnapshot(t)))
	second := proposalFingerprints(Plan(buildFactorySnapshot(t)))

	if len(first) != len(second) {
		t.Fatalf("order counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("proposal %d differs:\n  %s\n  %s", i, first[i], second[i])
		}
	}
}

func TestPlanFirmedReceiptsSuppressReplanning(t *testing.T) {
	// 上次运行确认的48件已作为计划内到货：重跑不再产生新建议
	s := buildFactorySnapshot(t)
	s.Receipts = []Receipt{{ProductID: "fil", Quantity: dec(t, "48"), DueDate: day(2025, 3, 20)}}

	res := Plan(s)

	if o := orderFor(res, "fil"); o != nil {
		t.Errorf("firmed receipt should cover the shortage, got %+v", o)
	}
	if len(res.Orders) != 0 {
		t.Errorf("expected no orders at all, got %d", len(res.Orders))
	}
}

func TestPlanMakeWithoutBOMRecordsException(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "fil", SKU: "FIL-X", ProcurementType: entity.ProcurementMake})
	s.Demands = []Demand{{ProductID: "fil", Quantity: dec(t, "5"), DueDate: day(2025, 3, 10)}}

	res := Plan(s)

	if len(res.Orders) != 0 {
		t.Errorf("branch should be skipped, got orders %+v", res.Orders)
	}
	if len(res.Exceptions) != 1 {
		t.Fatalf("expected 1 exception, got %d", len(res.Exceptions))
	}
	e := res.Exceptions[0]
	if e.Code != ExceptionNoActiveBOM || e.ProductID != "fil" {
		t.Errorf("unexpected exception %+v", e)
	}
	if res.Counters.ComponentsAnalyzed != 0 {
		t.Errorf("skipped product must not count as analyzed, got %d", res.Counters.ComponentsAnalyzed)
	}
}

func TestPlanCyclicBranchSkippedOthersSurvive(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "a", SKU: "CYC-A", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "b", SKU: "CYC-B", ProcurementType: entity.ProcurementMake})
	addProduct(s, &entity.Product{ID: "ok", SKU: "OK-1", LeadTimeDays: 1})
	addBOM(s, "a", 1, true, bomLine("b", "1", "0", false))
	addBOM(s, "b", 1, true, bomLine("a", "1", "0", false))
	s.Demands = []Demand{
		{ProductID: "a", Quantity: dec(t, "10"), DueDate: day(2025, 3, 10)},
		{ProductID: "ok", Quantity: dec(t, "10"), DueDate: day(2025, 3, 10)},
	}

	res := Plan(s)

	found := false
	for _, e := range res.Exceptions {
		if e.Code == ExceptionCycleDetected {
			found = true
		}
	}
	if !found {
		t.Error("expected a cycle exception")
	}
	if o := orderFor(res, "a"); o != nil {
		t.Errorf("cyclic product must not be planned, got %+v", o)
	}
	ok := orderFor(res, "ok")
	if ok == nil {
		t.Fatal("clean product should still be planned")
	}
	if !ok.Quantity.Equal(dec(t, "10")) {
		t.Errorf("ok qty = %s, want 10", ok.Quantity)
	}
}

func TestPlanDemandBeyondHorizonIgnored(t *testing.T) {
	s := buildFactorySnapshot(t)
	s.Demands[0].DueDate = s.HorizonEnd().AddDate(0, 0, 1)

	res := Plan(s)

	if len(res.Orders) != 0 {
		t.Errorf("demand outside the horizon must be ignored, got %+v", res.Orders)
	}
}

func TestPlanPastDueDemandStillPlanned(t *testing.T) {
	s := buildFactorySnapshot(t)
	s.Demands[0].DueDate = day(2025, 2, 20)

	res := Plan(s)

	fil := orderFor(res, "fil")
	if fil == nil {
		t.Fatal("past-due demand must still be planned")
	}
	if !fil.DueDate.Equal(day(2025, 2, 20)) {
		t.Errorf("due = %s, want the original past-due date", fil.DueDate)
	}
}

func TestPlanPurchaseLeadTimeFromProduct(t *testing.T) {
	s := newTestSnapshot()
	addProduct(s, &entity.Product{ID: "resin", SKU: "RESIN", LeadTimeDays: 7})
	s.Demands = []Demand{{ProductID: "resin", Quantity: dec(t, "5"), DueDate: day(2025, 3, 20)}}

	res := Plan(s)

	if len(res.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(res.Orders))
	}
	if !res.Orders[0].StartDate.Equal(day(2025, 3, 13)) {
		t.Errorf("start = %s, want due minus 7 days", res.Orders[0].StartDate)
	}
}
