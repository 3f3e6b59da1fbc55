package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
)

// PurchaseOrderCreator 下达采购建议时在同一事务内创建真实采购单，返回其ID
type PurchaseOrderCreator interface {
	Create(ctx context.Context, tx *gorm.DB, order *entity.PlannedOrder, userID string) (string, error)
}

// WorkOrderCreator 下达生产建议时在同一事务内创建真实工单，返回其ID
type WorkOrderCreator interface {
	Create(ctx context.Context, tx *gorm.DB, order *entity.PlannedOrder, userID string) (string, error)
}

// PlannedOrderService 计划订单生命周期：planned → firmed → released，
// planned/firmed → cancelled。所有流转都带状态前置条件，失配返回并发冲突。
type PlannedOrderService struct {
	repo      *repository.PlannedOrderRepository
	db        *gorm.DB
	logger    *zap.Logger
	poCreator PurchaseOrderCreator
	woCreator WorkOrderCreator
}

func NewPlannedOrderService(repo *repository.PlannedOrderRepository, db *gorm.DB, logger *zap.Logger) *PlannedOrderService {
	return &PlannedOrderService{
		repo:      repo,
		db:        db,
		logger:    logger,
		poCreator: gormPurchaseOrderCreator{},
		woCreator: gormWorkOrderCreator{},
	}
}

// List 分页查询计划订单
func (s *PlannedOrderService) List(ctx context.Context, params repository.PlannedOrderListParams) ([]entity.PlannedOrder, int64, error) {
	return s.repo.List(ctx, params)
}

// Get 查询计划订单详情
func (s *PlannedOrderService) Get(ctx context.Context, id string) (*entity.PlannedOrder, error) {
	return s.repo.FindByID(ctx, id)
}

// Firm 确认计划订单。确认后的订单不再被后续运行重算覆盖。
func (s *PlannedOrderService) Firm(ctx context.Context, id, userID string) (*entity.PlannedOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.PlannedStatusPlanned {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	rows, err := s.repo.UpdateStatusGuarded(ctx, id, entity.PlannedStatusPlanned, map[string]interface{}{
		"status":    entity.PlannedStatusFirmed,
		"firmed_by": userID,
		"firmed_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("确认计划订单失败: %w", err)
	}
	if rows == 0 {
		return nil, ErrConcurrentModification
	}
	return s.repo.FindByID(ctx, id)
}

// Cancel 取消计划订单，planned和firmed状态可取消，取消后为终态
func (s *PlannedOrderService) Cancel(ctx context.Context, id, userID string) (*entity.PlannedOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.PlannedStatusPlanned && order.Status != entity.PlannedStatusFirmed {
		return nil, ErrInvalidTransition
	}
	now := time.Now()
	rows, err := s.repo.UpdateStatusGuarded(ctx, id, order.Status, map[string]interface{}{
		"status":       entity.PlannedStatusCancelled,
		"cancelled_by": userID,
		"cancelled_at": now,
	})
	if err != nil {
		return nil, fmt.Errorf("取消计划订单失败: %w", err)
	}
	if rows == 0 {
		return nil, ErrConcurrentModification
	}
	return s.repo.FindByID(ctx, id)
}

// Release 下达计划订单：状态争抢和真实订单创建在同一事务内完成，
// 并发下达同一订单时只有一方成功，另一方收到并发冲突。
func (s *PlannedOrderService) Release(ctx context.Context, id, userID string) (*entity.PlannedOrder, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != entity.PlannedStatusPlanned && order.Status != entity.PlannedStatusFirmed {
		return nil, ErrInvalidTransition
	}
	observed := order.Status
	now := time.Now()

	var realType, realID string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.PlannedOrder{}).
			Where("id = ? AND status = ?", id, observed).
			Updates(map[string]interface{}{
				"status":      entity.PlannedStatusReleased,
				"released_by": userID,
				"released_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("下达计划订单失败: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentModification
		}

		var cerr error
		if order.OrderType == entity.OrderTypeProduction {
			realType = entity.ReleasedTypeWorkOrder
			realID, cerr = s.woCreator.Create(ctx, tx, order, userID)
		} else {
			realType = entity.ReleasedTypePurchaseOrder
			realID, cerr = s.poCreator.Create(ctx, tx, order, userID)
		}
		if cerr != nil {
			return cerr
		}

		return tx.Model(&entity.PlannedOrder{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"released_order_type": realType,
				"released_order_id":   realID,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("计划订单已下达",
		zap.String("order_id", id),
		zap.String("released_order_type", realType),
		zap.String("released_order_id", realID))
	return s.repo.FindByID(ctx, id)
}

// gormPurchaseOrderCreator 在协作方采购表中生成PO编码的订单行
type gormPurchaseOrderCreator struct{}

func (gormPurchaseOrderCreator) Create(ctx context.Context, tx *gorm.DB, order *entity.PlannedOrder, userID string) (string, error) {
	now := time.Now()
	po := &entity.PurchaseOrder{
		ID:           uuid.New().String()[:32],
		Code:         fmt.Sprintf("PO-%s%04d", now.Format("20060102"), now.UnixNano()%10000),
		ProductID:    order.ProductID,
		Quantity:     order.Quantity,
		ExpectedDate: order.DueDate,
		Status:       entity.PurchaseStatusApproved,
		CreatedBy:    userID,
	}
	if err := tx.Create(po).Error; err != nil {
		return "", fmt.Errorf("创建采购订单失败: %w", err)
	}
	return po.ID, nil
}

// gormWorkOrderCreator 在协作方工单表中生成WO编码的工单
type gormWorkOrderCreator struct{}

func (gormWorkOrderCreator) Create(ctx context.Context, tx *gorm.DB, order *entity.PlannedOrder, userID string) (string, error) {
	now := time.Now()
	wo := &entity.WorkOrder{
		ID:         uuid.New().String()[:32],
		Code:       fmt.Sprintf("WO-%s%04d", now.Format("20060102"), now.UnixNano()%10000),
		ProductID:  order.ProductID,
		PlannedQty: order.Quantity,
		StartDate:  order.StartDate,
		DueDate:    order.DueDate,
		Status:     entity.WorkOrderStatusReleased,
		CreatedBy:  userID,
	}
	if err := tx.Create(wo).Error; err != nil {
		return "", fmt.Errorf("创建工单失败: %w", err)
	}
	return wo.ID, nil
}
