package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type PlannedOrderRepository struct {
	db *gorm.DB
}

func NewPlannedOrderRepository(db *gorm.DB) *PlannedOrderRepository {
	return &PlannedOrderRepository{db: db}
}

// FindByID 根据ID查找计划订单
func (r *PlannedOrderRepository) FindByID(ctx context.Context, id string) (*entity.PlannedOrder, error) {
	var order entity.PlannedOrder
	err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// PlannedOrderListParams 计划订单列表筛选参数
type PlannedOrderListParams struct {
	RunID     string
	ProductID string
	OrderType string
	Status    string
	Page      int
	Size      int
}

// List 分页查询计划订单
func (r *PlannedOrderRepository) List(ctx context.Context, params PlannedOrderListParams) ([]entity.PlannedOrder, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.PlannedOrder{})
	if params.RunID != "" {
		query = query.Where("run_id = ?", params.RunID)
	}
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.OrderType != "" {
		query = query.Where("order_type = ?", params.OrderType)
	}
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if params.Page <= 0 {
		params.Page = 1
	}
	if params.Size <= 0 {
		params.Size = 20
	}
	var orders []entity.PlannedOrder
	err := query.Order("due_date ASC, product_sku ASC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&orders).Error
	return orders, total, err
}

// ListByRun 取一次运行产出的全部计划订单，报表导出用
func (r *PlannedOrderRepository) ListByRun(ctx context.Context, runID string) ([]entity.PlannedOrder, error) {
	var orders []entity.PlannedOrder
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("due_date ASC, product_sku ASC").
		Find(&orders).Error
	return orders, err
}

// ListOpenFirmed 获取全部firmed状态的计划订单，重算时作为计划内到货
func (r *PlannedOrderRepository) ListOpenFirmed(ctx context.Context) ([]entity.PlannedOrder, error) {
	var orders []entity.PlannedOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.PlannedStatusFirmed).
		Find(&orders).Error
	return orders, err
}

// UpdateStatusGuarded 带状态前置条件的更新，返回命中行数。
// 并发修改时前置条件失配、命中0行，由调用方判定冲突。
func (r *PlannedOrderRepository) UpdateStatusGuarded(ctx context.Context, id, fromStatus string, updates map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).Model(&entity.PlannedOrder{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Updates(updates)
	return result.RowsAffected, result.Error
}
