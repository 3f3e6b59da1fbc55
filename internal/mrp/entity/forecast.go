package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// 预测来源
const (
	ForecastSourceManual = "manual"
	ForecastSourceImport = "import"
)

// DemandForecast 独立需求预测，与销售订单行一同构成期初毛需求
type DemandForecast struct {
	ID         string          `json:"id" gorm:"primaryKey;size:32"`
	ProductID  string          `json:"product_id" gorm:"size:32;not null;index"`
	ProductSKU string          `json:"product_sku" gorm:"size:64;not null"`
	Quantity   decimal.Decimal `json:"quantity" gorm:"type:decimal(15,4);not null"`
	DueDate    time.Time       `json:"due_date" gorm:"not null;index"`
	Source     string          `json:"source" gorm:"size:16;not null;default:manual"` // manual/import
	Notes      string          `json:"notes,omitempty" gorm:"size:256"`
	CreatedBy  string          `json:"created_by" gorm:"size:32"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (DemandForecast) TableName() string {
	return "mrp_demand_forecasts"
}
