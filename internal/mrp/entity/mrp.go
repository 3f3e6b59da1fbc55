package entity

import (
	"time"
)

// MRP运行状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// MRPRun 一次完整的MRP运行记录，完成后除下游链接外不再变更
type MRPRun struct {
	ID                   string     `json:"id" gorm:"primaryKey;size:32"`
	RunCode              string     `json:"run_code" gorm:"size:32;not null;uniqueIndex"`
	HorizonDays          int        `json:"horizon_days" gorm:"not null"`
	BucketMode           string     `json:"bucket_mode" gorm:"size:8;not null;default:day"` // day/week
	Status               string     `json:"status" gorm:"size:16;not null;default:running;index"`
	OrdersProcessed      int        `json:"orders_processed" gorm:"default:0"`
	ComponentsAnalyzed   int        `json:"components_analyzed" gorm:"default:0"`
	ShortagesFound       int        `json:"shortages_found" gorm:"default:0"`
	PlannedOrdersCreated int        `json:"planned_orders_created" gorm:"default:0"`
	ErrorMessage         string     `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt            time.Time  `json:"started_at"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	ReportPath           string     `json:"report_path,omitempty" gorm:"size:256"` // 归档到对象存储的报表路径
	CreatedBy            string     `json:"created_by" gorm:"size:32;not null"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	// Relations
	Exceptions []MRPRunException `json:"exceptions,omitempty" gorm:"foreignKey:RunID"`
}

func (MRPRun) TableName() string {
	return "mrp_runs"
}

// MRPRunException 运行中跳过的产品分支及原因（循环引用、缺少激活BOM等）
type MRPRunException struct {
	ID         string    `json:"id" gorm:"primaryKey;size:32"`
	RunID      string    `json:"run_id" gorm:"size:32;not null;index"`
	ProductID  string    `json:"product_id" gorm:"size:32"`
	ProductSKU string    `json:"product_sku" gorm:"size:64"`
	Code       string    `json:"code" gorm:"size:32;not null"` // CYCLE_DETECTED/NO_ACTIVE_BOM
	Message    string    `json:"message" gorm:"type:text"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MRPRunException) TableName() string {
	return "mrp_run_exceptions"
}
