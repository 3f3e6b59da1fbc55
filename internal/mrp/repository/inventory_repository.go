package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// OnHandTotals 各产品的在手量合计（跨库位汇总），供计划快照使用
func (r *InventoryRepository) OnHandTotals(ctx context.Context) (map[string]decimal.Decimal, error) {
	var rows []struct {
		ProductID string          `gorm:"column:product_id"`
		Total     decimal.Decimal `gorm:"column:total"`
	}
	err := r.db.WithContext(ctx).Raw(`
		SELECT product_id, COALESCE(SUM(on_hand), 0) as total
		FROM inventory_positions
		GROUP BY product_id
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.ProductID] = row.Total
	}
	return totals, nil
}
