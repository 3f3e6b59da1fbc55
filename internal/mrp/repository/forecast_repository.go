package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type ForecastRepository struct {
	db *gorm.DB
}

func NewForecastRepository(db *gorm.DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Create 创建需求预测
func (r *ForecastRepository) Create(ctx context.Context, f *entity.DemandForecast) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// BatchCreate 批量创建需求预测（导入用）
func (r *ForecastRepository) BatchCreate(ctx context.Context, forecasts []entity.DemandForecast) error {
	if len(forecasts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(&forecasts, 200).Error
}

// FindByID 根据ID查找需求预测
func (r *ForecastRepository) FindByID(ctx context.Context, id string) (*entity.DemandForecast, error) {
	var f entity.DemandForecast
	err := r.db.WithContext(ctx).First(&f, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ForecastListParams 预测列表筛选参数
type ForecastListParams struct {
	ProductID string
	Source    string
	From      *time.Time
	To        *time.Time
	Page      int
	Size      int
}

// List 分页查询需求预测
func (r *ForecastRepository) List(ctx context.Context, params ForecastListParams) ([]entity.DemandForecast, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.DemandForecast{})
	if params.ProductID != "" {
		query = query.Where("product_id = ?", params.ProductID)
	}
	if params.Source != "" {
		query = query.Where("source = ?", params.Source)
	}
	if params.From != nil {
		query = query.Where("due_date >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("due_date <= ?", *params.To)
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
	var forecasts []entity.DemandForecast
	err := query.Order("due_date ASC").
		Offset((params.Page - 1) * params.Size).Limit(params.Size).
		Find(&forecasts).Error
	return forecasts, total, err
}

// ListDue 获取计划期内的全部预测，供计划快照使用
func (r *ForecastRepository) ListDue(ctx context.Context, until time.Time) ([]entity.DemandForecast, error) {
	var forecasts []entity.DemandForecast
	err := r.db.WithContext(ctx).
		Where("due_date <= ?", until).
		Order("due_date ASC").
		Find(&forecasts).Error
	return forecasts, err
}

// Update 更新需求预测
func (r *ForecastRepository) Update(ctx context.Context, f *entity.DemandForecast) error {
	return r.db.WithContext(ctx).Save(f).Error
}

// Delete 删除需求预测
func (r *ForecastRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.DemandForecast{}, "id = ?", id).Error
}
