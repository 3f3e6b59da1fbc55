package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create 创建运行记录
func (r *RunRepository) Create(ctx context.Context, run *entity.MRPRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update 更新运行记录
func (r *RunRepository) Update(ctx context.Context, run *entity.MRPRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// FindByID 根据ID查找运行记录，带异常明细
func (r *RunRepository) FindByID(ctx context.Context, id string) (*entity.MRPRun, error) {
	var run entity.MRPRun
	err := r.db.WithContext(ctx).
		Preload("Exceptions").
		First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 分页查询运行记录，新的在前
func (r *RunRepository) List(ctx context.Context, status string, page, size int) ([]entity.MRPRun, int64, error) {
	query := r.db.WithContext(ctx).Model(&entity.MRPRun{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var runs []entity.MRPRun
	err := query.Order("started_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&runs).Error
	return runs, total, err
}

// HasActiveRun 是否存在进行中的运行
func (r *RunRepository) HasActiveRun(ctx context.Context) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.MRPRun{}).
		Where("status = ?", entity.RunStatusRunning).
		Count(&count).Error
	return count > 0, err
}

// GetLatestCompleted 获取最近一次完成的运行
func (r *RunRepository) GetLatestCompleted(ctx context.Context) (*entity.MRPRun, error) {
	var run entity.MRPRun
	err := r.db.WithContext(ctx).
		Where("status = ?", entity.RunStatusCompleted).
		Order("completed_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}
