package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// NetRequirement 某产品在某时间桶内的净需求
type NetRequirement struct {
	ProductID  string
	Quantity   decimal.Decimal
	DueDate    time.Time
	SourceType string
	SourceID   string
}

// NetProduct 对单一产品做时间分桶的净需求计算。
// 预计可用量逐桶滚动：先加计划内到货，再减毛需求；有毛需求的桶内
// 可用量跌破安全库存即产生净需求，把可用量补回安全线（批对批）。
// 需求与到货按bucketOf归并到桶起始日。
func NetProduct(productID string, demands []Demand, receipts []Receipt, onHand, safetyStock decimal.Decimal, bucketOf func(time.Time) time.Time) []NetRequirement {
	type bucket struct {
		date       time.Time
		gross      decimal.Decimal
		receipts   decimal.Decimal
		sourceType string
		sourceID   string
	}
	byDate := map[time.Time]*bucket{}
	get := func(t time.Time) *bucket {
		d := bucketOf(t)
		b, ok := byDate[d]
		if !ok {
			b = &bucket{date: d}
			byDate[d] = b
		}
		return b
	}
	for _, dm := range demands {
		b := get(dm.DueDate)
		b.gross = b.gross.Add(dm.Quantity)
		if b.sourceID == "" {
			b.sourceType = dm.SourceType
			b.sourceID = dm.SourceID
		}
	}
	for _, rc := range receipts {
		b := get(rc.DueDate)
		b.receipts = b.receipts.Add(rc.Quantity)
	}

	buckets := make([]*bucket, 0, len(byDate))
	for _, b := range byDate {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].date.Before(buckets[j].date) })

	available := onHand
	var out []NetRequirement
	for _, b := range buckets {
		available = available.Add(b.receipts).Sub(b.gross)
		if b.gross.GreaterThan(decimal.Zero) && available.LessThan(safetyStock) {
			net := safetyStock.Sub(available)
			out = append(out, NetRequirement{
				ProductID:  productID,
				Quantity:   net,
				DueDate:    b.date,
				SourceType: b.sourceType,
				SourceID:   b.sourceID,
			})
			available = safetyStock
		}
	}
	return out
}
