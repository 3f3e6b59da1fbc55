package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillOfMaterials BOM版本头（同一产品版本号单调递增，当前版本 = 激活版本中号码最大者）
type BillOfMaterials struct {
	ID            string          `json:"id" gorm:"primaryKey;size:32"`
	ProductID     string          `json:"product_id" gorm:"size:32;not null;uniqueIndex:uk_bom_product_version,priority:1"`
	Version       int             `json:"version" gorm:"not null;uniqueIndex:uk_bom_product_version,priority:2"`
	Active        bool            `json:"active" gorm:"not null;default:false;index"`
	EffectiveDate *time.Time      `json:"effective_date,omitempty"`
	TotalCost     decimal.Decimal `json:"total_cost" gorm:"type:decimal(15,4);default:0"` // 激活时缓存的卷积成本
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"created_by" gorm:"size:32;not null"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	// Relations
	Product *Product  `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	Lines   []BOMLine `json:"lines,omitempty" gorm:"foreignKey:BOMID;constraint:OnDelete:CASCADE"`
}

func (BillOfMaterials) TableName() string {
	return "mrp_boms"
}

// BOMLine BOM行（随BOM级联删除）
type BOMLine struct {
	ID           string          `json:"id" gorm:"primaryKey;size:32"`
	BOMID        string          `json:"bom_id" gorm:"size:32;not null;index"`
	ComponentID  string          `json:"component_id" gorm:"size:32;not null;index"`
	Quantity     decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	Unit         string          `json:"unit" gorm:"size:16;not null;default:pcs"`
	ScrapFactor  decimal.Decimal `json:"scrap_factor" gorm:"type:decimal(8,4);default:0"` // 损耗系数，0.05 = 5%
	Sequence     int             `json:"sequence" gorm:"default:0"`
	IsCostOnly   bool            `json:"is_cost_only" gorm:"default:false"` // 仅参与成本卷积，不参与展开/领料
	ConsumeStage string          `json:"consume_stage,omitempty" gorm:"size:32"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	// Relations
	Component *Product `json:"component,omitempty" gorm:"foreignKey:ComponentID"`
}

func (BOMLine) TableName() string {
	return "mrp_bom_lines"
}
