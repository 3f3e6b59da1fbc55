package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// Bucket 时间分桶粒度
type Bucket string

const (
	BucketDay  Bucket = "day"
	BucketWeek Bucket = "week"
)

// Demand 快照中的一条需求（销售订单行、预测，或上层计划订单级联的组件需求）
type Demand struct {
	ProductID  string
	Quantity   decimal.Decimal
	DueDate    time.Time
	SourceType string
	SourceID   string
}

// Receipt 快照中的一条计划内到货（在途采购、在制工单、已确认的计划订单）
type Receipt struct {
	ProductID string
	Quantity  decimal.Decimal
	DueDate   time.Time
}

// RoutingCost 工艺路线的单位人工/机器成本与生产提前期
type RoutingCost struct {
	Labor        decimal.Decimal
	Machine      decimal.Decimal
	LeadTimeDays int
}

// Snapshot 运行（或查询）开始时一次性读入的不可变数据快照。
// 整个计算过程只读快照，期间外部对库存/订单的写入不影响本次输出。
type Snapshot struct {
	Today       time.Time
	HorizonDays int
	Bucket      Bucket

	Products map[string]*entity.Product           // 按产品ID
	BOMs     map[string][]*entity.BillOfMaterials // 每产品的激活BOM版本，行已装载
	Demands  []Demand
	OnHand   map[string]decimal.Decimal
	Receipts []Receipt
	Routings map[string]RoutingCost // 按产品ID
}

// HorizonEnd 计划期末日
func (s *Snapshot) HorizonEnd() time.Time {
	return s.Today.AddDate(0, 0, s.HorizonDays)
}

// Product 按ID取产品，不存在返回nil
func (s *Snapshot) Product(id string) *entity.Product {
	return s.Products[id]
}

func (s *Snapshot) sku(id string) string {
	if p := s.Products[id]; p != nil {
		return p.SKU
	}
	return id
}

// CurrentBOM 解析产品当前适用的BOM：激活版本中版本号最大者
func (s *Snapshot) CurrentBOM(productID string) (*entity.BillOfMaterials, error) {
	if b := s.currentBOM(productID); b != nil {
		return b, nil
	}
	return nil, &NoActiveBOMError{ProductID: productID, SKU: s.sku(productID)}
}

func (s *Snapshot) currentBOM(productID string) *entity.BillOfMaterials {
	var best *entity.BillOfMaterials
	for _, b := range s.BOMs[productID] {
		if !b.Active {
			continue
		}
		if best == nil || b.Version > best.Version {
			best = b
		}
	}
	return best
}

// CurrentBOMAsOf 指定日期下生效的当前BOM（生效日为空视为立即生效）
func (s *Snapshot) CurrentBOMAsOf(productID string, asOf time.Time) (*entity.BillOfMaterials, error) {
	var best *entity.BillOfMaterials
	for _, b := range s.BOMs[productID] {
		if !b.Active {
			continue
		}
		if b.EffectiveDate != nil && b.EffectiveDate.After(asOf) {
			continue
		}
		if best == nil || b.Version > best.Version {
			best = b
		}
	}
	if best == nil {
		return nil, &NoActiveBOMError{ProductID: productID, SKU: s.sku(productID)}
	}
	return best, nil
}

// BucketDate 把日期归一到所属时间桶的起始日（周桶归一到周一）
func (s *Snapshot) BucketDate(t time.Time) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	if s.Bucket == BucketWeek {
		offset := (int(d.Weekday()) + 6) % 7
		d = d.AddDate(0, 0, -offset)
	}
	return d
}
