package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dayBucket(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func TestNetProductShortageAgainstSafetyStock(t *testing.T) {
	due := day(2025, 3, 10)
	demands := []Demand{{ProductID: "resin", Quantity: dec(t, "50"), DueDate: due, SourceType: "sales_order_line", SourceID: "sol-1"}}

	nets := NetProduct("resin", demands, nil, dec(t, "12"), dec(t, "10"), dayBucket)

	if len(nets) != 1 {
		t.Fatalf("expected 1 net requirement, got %d", len(nets))
	}
	n := nets[0]
	// 50 - 12 + 10 = 48
	if !n.Quantity.Equal(dec(t, "48")) {
		t.Errorf("net = %s, want 48", n.Quantity)
	}
	if !n.DueDate.Equal(due) {
		t.Errorf("due = %s, want %s", n.DueDate, due)
	}
	if n.SourceType != "sales_order_line" || n.SourceID != "sol-1" {
		t.Errorf("source not carried through: %+v", n)
	}
}

func TestNetProductCoveredByStockAndReceipts(t *testing.T) {
	due := day(2025, 3, 10)
	demands := []Demand{{ProductID: "resin", Quantity: dec(t, "50"), DueDate: due}}
	receipts := []Receipt{{ProductID: "resin", Quantity: dec(t, "45"), DueDate: due}}

	nets := NetProduct("resin", demands, receipts, dec(t, "15"), dec(t, "10"), dayBucket)

	if len(nets) != 0 {
		t.Errorf("demand fully covered, expected no nets, got %+v", nets)
	}
}

func TestNetProductLaterReceiptDoesNotCoverEarlierDemand(t *testing.T) {
	demands := []Demand{{ProductID: "resin", Quantity: dec(t, "20"), DueDate: day(2025, 3, 10)}}
	receipts := []Receipt{{ProductID: "resin", Quantity: dec(t, "100"), DueDate: day(2025, 3, 15)}}

	nets := NetProduct("resin", demands, receipts, decimal.Zero, decimal.Zero, dayBucket)

	if len(nets) != 1 {
		t.Fatalf("expected 1 net requirement, got %d", len(nets))
	}
	if !nets[0].Quantity.Equal(dec(t, "20")) {
		t.Errorf("net = %s, want 20", nets[0].Quantity)
	}
	if !nets[0].DueDate.Equal(day(2025, 3, 10)) {
		t.Errorf("net due = %s, want 2025-03-10", nets[0].DueDate)
	}
}

func TestNetProductProjectedAvailableCarriesAcrossBuckets(t *testing.T) {
	demands := []Demand{
		{ProductID: "resin", Quantity: dec(t, "30"), DueDate: day(2025, 3, 10)},
		{ProductID: "resin", Quantity: dec(t, "25"), DueDate: day(2025, 3, 17)},
	}

	nets := NetProduct("resin", demands, nil, dec(t, "40"), dec(t, "5"), dayBucket)

	// 第一桶：40-30=10 ≥ 5 无缺口；第二桶：10-25=-15 < 5 → 净需求20，补回安全线
	if len(nets) != 1 {
		t.Fatalf("expected 1 net requirement, got %d", len(nets))
	}
	if !nets[0].Quantity.Equal(dec(t, "20")) {
		t.Errorf("net = %s, want 20", nets[0].Quantity)
	}
	if !nets[0].DueDate.Equal(day(2025, 3, 17)) {
		t.Errorf("net due = %s, want 2025-03-17", nets[0].DueDate)
	}
}

func TestNetProductEveryShortageResetsToSafety(t *testing.T) {
	demands := []Demand{
		{ProductID: "resin", Quantity: dec(t, "10"), DueDate: day(2025, 3, 10)},
		{ProductID: "resin", Quantity: dec(t, "10"), DueDate: day(2025, 3, 11)},
	}

	nets := NetProduct("resin", demands, nil, decimal.Zero, dec(t, "3"), dayBucket)

	if len(nets) != 2 {
		t.Fatalf("expected 2 net requirements, got %d", len(nets))
	}
	// 第一桶：0-10=-10 → 净13；第二桶从安全线3起：3-10=-7 → 净10
	if !nets[0].Quantity.Equal(dec(t, "13")) {
		t.Errorf("first net = %s, want 13", nets[0].Quantity)
	}
	if !nets[1].Quantity.Equal(dec(t, "10")) {
		t.Errorf("second net = %s, want 10", nets[1].Quantity)
	}
}

func TestNetProductReceiptOnlyBucketNeverNets(t *testing.T) {
	// 低于安全库存但桶内无毛需求：净算不产生补库存订单
	receipts := []Receipt{{ProductID: "resin", Quantity: dec(t, "1"), DueDate: day(2025, 3, 10)}}

	nets := NetProduct("resin", nil, receipts, dec(t, "2"), dec(t, "10"), dayBucket)

	if len(nets) != 0 {
		t.Errorf("bucket without gross demand must not net, got %+v", nets)
	}
}

func TestNetProductWeekBucketsMergeDemand(t *testing.T) {
	s := newTestSnapshot()
	s.Bucket = BucketWeek

	// 2025-03-10是周一，12/14同属该周
	demands := []Demand{
		{ProductID: "resin", Quantity: dec(t, "8"), DueDate: day(2025, 3, 12)},
		{ProductID: "resin", Quantity: dec(t, "7"), DueDate: day(2025, 3, 14)},
	}

	nets := NetProduct("resin", demands, nil, decimal.Zero, decimal.Zero, s.BucketDate)

	if len(nets) != 1 {
		t.Fatalf("expected demands merged into one weekly bucket, got %d nets", len(nets))
	}
	if !nets[0].Quantity.Equal(dec(t, "15")) {
		t.Errorf("net = %s, want 15", nets[0].Quantity)
	}
	if !nets[0].DueDate.Equal(day(2025, 3, 10)) {
		t.Errorf("weekly bucket date = %s, want Monday 2025-03-10", nets[0].DueDate)
	}
}

func TestNetProductZeroDemandZeroNets(t *testing.T) {
	if nets := NetProduct("resin", nil, nil, dec(t, "5"), dec(t, "10"), dayBucket); len(nets) != 0 {
		t.Errorf("no demand should yield no nets, got %+v", nets)
	}
}
