package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type WorkOrderRepository struct {
	db *gorm.DB
}

func NewWorkOrderRepository(db *gorm.DB) *WorkOrderRepository {
	return &WorkOrderRepository{db: db}
}

// ListOpen 获取未完工的在制工单，未完工部分构成计划内到货
func (r *WorkOrderRepository) ListOpen(ctx context.Context, until time.Time) ([]entity.WorkOrder, error) {
	var wos []entity.WorkOrder
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.WorkOrderStatusReleased, entity.WorkOrderStatusInProgress}).
		Where("planned_qty > completed_qty").
		Where("due_date <= ?", until).
		Order("due_date ASC").
		Find(&wos).Error
	return wos, err
}
