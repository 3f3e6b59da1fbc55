package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 计划订单类型
const (
	OrderTypePurchase   = "purchase"   // 采购建议
	OrderTypeProduction = "production" // 生产建议
)

// 计划订单状态机：planned → firmed → released；planned/firmed → cancelled
const (
	PlannedStatusPlanned   = "planned"
	PlannedStatusFirmed    = "firmed"
	PlannedStatusReleased  = "released"
	PlannedStatusCancelled = "cancelled"
)

// 计划订单需求来源
const (
	SourceTypeSalesLine    = "sales_order_line"
	SourceTypeForecast     = "forecast"
	SourceTypePlannedOrder = "planned_order" // 上层计划订单级联产生的组件需求
)

// 下达后创建的真实订单类型
const (
	ReleasedTypePurchaseOrder = "purchase_order"
	ReleasedTypeWorkOrder     = "work_order"
)

// PlannedOrder MRP运行产生的采购/生产建议。
// planned状态的订单在下次运行时整体重算；firmed/released/cancelled的订单运行不再触碰。
type PlannedOrder struct {
	ID          string          `json:"id" gorm:"primaryKey;size:32"`
	RunID       string          `json:"run_id" gorm:"size:32;not null;index"`
	OrderType   string          `json:"order_type" gorm:"size:16;not null"` // purchase/production
	ProductID   string          `json:"product_id" gorm:"size:32;not null;index"`
	ProductSKU  string          `json:"product_sku" gorm:"size:64;not null"`
	ProductName string          `json:"product_name" gorm:"size:128"`
	Quantity    decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit        string          `json:"unit" gorm:"size:16;not null;default:pcs"`
	DueDate     time.Time       `json:"due_date" gorm:"not null;index"`
	StartDate   time.Time       `json:"start_date" gorm:"not null"`
	SourceType  string          `json:"source_type" gorm:"size:32;not null"`
	SourceID    string          `json:"source_id" gorm:"size:32;not null"`
	Status      string          `json:"status" gorm:"size:16;not null;default:planned;index"`

	FirmedBy    *string    `json:"firmed_by,omitempty" gorm:"size:32"`
	FirmedAt    *time.Time `json:"firmed_at,omitempty"`
	ReleasedBy  *string    `json:"released_by,omitempty" gorm:"size:32"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
	CancelledBy *string    `json:"cancelled_by,omitempty" gorm:"size:32"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// 下达后关联的真实订单
	ReleasedOrderType string `json:"released_order_type,omitempty" gorm:"size:16"` // purchase_order/work_order
	ReleasedOrderID   string `json:"released_order_id,omitempty" gorm:"size:32"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Run     *MRPRun  `json:"run,omitempty" gorm:"foreignKey:RunID"`
}

func (PlannedOrder) TableName() string {
	return "mrp_planned_orders"
}
