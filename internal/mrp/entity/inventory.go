package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryPosition 库存快照（库存服务维护，计划引擎只读）
type InventoryPosition struct {
	ID        string          `json:"id" gorm:"primaryKey;size:32"`
	ProductID string          `json:"product_id" gorm:"size:32;not null;index"`
	Location  string          `json:"location,omitempty" gorm:"size:64"`
	OnHand    decimal.Decimal `json:"on_hand" gorm:"type:decimal(15,4);default:0"`
	Allocated decimal.Decimal `json:"allocated" gorm:"type:decimal(15,4);default:0"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (InventoryPosition) TableName() string {
	return "inventory_positions"
}

// 销售订单行状态（open/confirmed参与毛需求）
const (
	SalesLineStatusOpen      = "open"
	SalesLineStatusConfirmed = "confirmed"
	SalesLineStatusShipped   = "shipped"
	SalesLineStatusCancelled = "cancelled"
)

// SalesOrderLine 销售订单行（销售服务维护，计划引擎只读，未发货部分构成毛需求）
type SalesOrderLine struct {
	ID         string          `json:"id" gorm:"primaryKey;size:32"`
	OrderCode  string          `json:"order_code" gorm:"size:32;not null;index"`
	ProductID  string          `json:"product_id" gorm:"size:32;not null;index"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	ShippedQty decimal.Decimal `json:"shipped_qty" gorm:"type:decimal(15,4);default:0"`
	DueDate    time.Time       `json:"due_date" gorm:"not null;index"`
	Status     string          `json:"status" gorm:"size:16;not null;default:open;index"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (SalesOrderLine) TableName() string {
	return "sales_order_lines"
}

// 采购订单状态（draft之后、closed之前的未收货部分构成计划内到货）
const (
	PurchaseStatusDraft    = "draft"
	PurchaseStatusApproved = "approved"
	PurchaseStatusSent     = "sent"
	PurchaseStatusPartial  = "partial"
	PurchaseStatusClosed   = "closed"
)

// PurchaseOrder 采购订单（采购服务维护；下达计划订单时由本服务代为创建）
type PurchaseOrder struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	Code         string          `json:"code" gorm:"size:32;not null;uniqueIndex"`
	ProductID    string          `json:"product_id" gorm:"size:32;not null;index"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	ReceivedQty  decimal.Decimal `json:"received_qty" gorm:"type:decimal(15,4);default:0"`
	ExpectedDate time.Time       `json:"expected_date" gorm:"not null"`
	Status       string          `json:"status" gorm:"size:16;not null;default:draft;index"`
	CreatedBy    string          `json:"created_by" gorm:"size:32"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// 工单状态（released/in_progress的未完工部分构成计划内到货）
const (
	WorkOrderStatusDraft      = "draft"
	WorkOrderStatusReleased   = "released"
	WorkOrderStatusInProgress = "in_progress"
	WorkOrderStatusCompleted  = "completed"
)

// WorkOrder 生产工单（生产服务维护；下达计划订单时由本服务代为创建）
type WorkOrder struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	Code         string          `json:"code" gorm:"size:32;not null;uniqueIndex"`
	ProductID    string          `json:"product_id" gorm:"size:32;not null;index"`
	PlannedQty   decimal.Decimal `json:"planned_qty" gorm:"type:decimal(15,4);not null"`
	CompletedQty decimal.Decimal `json:"completed_qty" gorm:"type:decimal(15,4);default:0"`
	StartDate    time.Time       `json:"start_date"`
	DueDate      time.Time       `json:"due_date" gorm:"not null"`
	Status       string          `json:"status" gorm:"size:16;not null;default:draft;index"`
	CreatedBy    string          `json:"created_by" gorm:"size:32"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}
