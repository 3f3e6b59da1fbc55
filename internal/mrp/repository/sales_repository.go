package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type SalesRepository struct {
	db *gorm.DB
}

func NewSalesRepository(db *gorm.DB) *SalesRepository {
	return &SalesRepository{db: db}
}

// ListOpenDue 获取计划期内未发完的订单行（过期未交付的一并返回）。
// 未发货部分 = quantity - shipped_qty，构成毛需求。
func (r *SalesRepository) ListOpenDue(ctx context.Context, until time.Time) ([]entity.SalesOrderLine, error) {
	var lines []entity.SalesOrderLine
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.SalesLineStatusOpen, entity.SalesLineStatusConfirmed}).
		Where("quantity > shipped_qty").
		Where("due_date <= ?", until).
		Order("due_date ASC").
		Find(&lines).Error
	return lines, err
}
