package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 采购类型
const (
	ProcurementBuy  = "buy"  // 外购
	ProcurementMake = "make" // 自制
)

// Product 产品主数据（目录服务维护，计划引擎只读）
type Product struct {
	ID              string          `json:"id" gorm:"primaryKey;size:32"`
	SKU             string          `json:"sku" gorm:"size:64;not null;uniqueIndex"`
	Name            string          `json:"name" gorm:"size:128;not null"`
	Unit            string          `json:"unit" gorm:"size:16;not null;default:pcs"`
	ProcurementType string          `json:"procurement_type" gorm:"size:16;not null;default:buy"` // buy/make
	HasBOM          bool            `json:"has_bom" gorm:"default:false"`
	LeadTimeDays    int             `json:"lead_time_days" gorm:"default:0"`
	MinOrderQty     decimal.Decimal `json:"min_order_qty" gorm:"type:decimal(15,4);default:0"`
	SafetyStock     decimal.Decimal `json:"safety_stock" gorm:"type:decimal(15,4);default:0"`
	ReorderPoint    decimal.Decimal `json:"reorder_point" gorm:"type:decimal(15,4);default:0"`
	StandardCost    decimal.Decimal `json:"standard_cost" gorm:"type:decimal(15,4);default:0"`
	AverageCost     decimal.Decimal `json:"average_cost" gorm:"type:decimal(15,4);default:0"`
	LastCost        decimal.Decimal `json:"last_cost" gorm:"type:decimal(15,4);default:0"`
	UnitPrice       decimal.Decimal `json:"unit_price" gorm:"type:decimal(15,4);default:0"` // 旧版成本字段，仅作最后兜底
	IsActive        bool            `json:"is_active" gorm:"default:true"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (Product) TableName() string {
	return "products"
}

// Routing 工艺路线（工作中心服务维护，自制件的人工/机器成本与生产提前期）
type Routing struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	ProductID    string          `json:"product_id" gorm:"size:32;not null;index"`
	LaborCost    decimal.Decimal `json:"labor_cost" gorm:"type:decimal(15,4);default:0"`
	MachineCost  decimal.Decimal `json:"machine_cost" gorm:"type:decimal(15,4);default:0"`
	LeadTimeDays int             `json:"lead_time_days" gorm:"default:0"` // 生产提前期，覆盖产品主数据
	IsActive     bool            `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (Routing) TableName() string {
	return "routings"
}
