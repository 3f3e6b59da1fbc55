package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type PurchaseRepository struct {
	db *gorm.DB
}

func NewPurchaseRepository(db *gorm.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

// ListOpen 获取未收完货的在途采购订单，未收部分构成计划内到货
func (r *PurchaseRepository) ListOpen(ctx context.Context, until time.Time) ([]entity.PurchaseOrder, error) {
	var pos []entity.PurchaseOrder
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{entity.PurchaseStatusApproved, entity.PurchaseStatusSent, entity.PurchaseStatusPartial}).
		Where("quantity > received_qty").
		Where("expected_date <= ?", until).
		Order("expected_date ASC").
		Find(&pos).Error
	return pos, err
}
