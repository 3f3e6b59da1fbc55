package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type BOMRepository struct {
	db *gorm.DB
}

func NewBOMRepository(db *gorm.DB) *BOMRepository {
	return &BOMRepository{db: db}
}

// Create 创建BOM版本（连同行）
func (r *BOMRepository) Create(ctx context.Context, bom *entity.BillOfMaterials) error {
	return r.db.WithContext(ctx).Create(bom).Error
}

// FindByID 根据ID查找BOM，带行及组件信息
func (r *BOMRepository) FindByID(ctx context.Context, id string) (*entity.BillOfMaterials, error) {
	var bom entity.BillOfMaterials
	err := r.db.WithContext(ctx).
		Preload("Product").
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Preload("Lines.Component").
		First(&bom, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &bom, nil
}

// ListByProduct 获取产品的全部BOM版本，版本号降序
func (r *BOMRepository) ListByProduct(ctx context.Context, productID string) ([]entity.BillOfMaterials, error) {
	var boms []entity.BillOfMaterials
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Where("product_id = ?", productID).
		Order("version DESC").
		Find(&boms).Error
	return boms, err
}

// ListActiveWithLines 获取全部激活BOM及行，供计划快照使用
func (r *BOMRepository) ListActiveWithLines(ctx context.Context) ([]entity.BillOfMaterials, error) {
	var boms []entity.BillOfMaterials
	err := r.db.WithContext(ctx).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("sequence ASC") }).
		Where("active = ?", true).
		Order("product_id, version").
		Find(&boms).Error
	return boms, err
}

// MaxVersion 获取产品现有的最大版本号，无BOM时返回0
func (r *BOMRepository) MaxVersion(ctx context.Context, productID string) (int, error) {
	var maxVer *int
	err := r.db.WithContext(ctx).Model(&entity.BillOfMaterials{}).
		Where("product_id = ?", productID).
		Select("MAX(version)").Scan(&maxVer).Error
	if err != nil {
		return 0, err
	}
	if maxVer == nil {
		return 0, nil
	}
	return *maxVer, nil
}

// CountActiveByProduct 统计产品的激活版本数
func (r *BOMRepository) CountActiveByProduct(ctx context.Context, productID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.BillOfMaterials{}).
		Where("product_id = ? AND active = ?", productID, true).
		Count(&count).Error
	return count, err
}

// Update 更新BOM头
func (r *BOMRepository) Update(ctx context.Context, bom *entity.BillOfMaterials) error {
	return r.db.WithContext(ctx).Save(bom).Error
}

// Delete 删除BOM（行级联删除）
func (r *BOMRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&entity.BOMLine{}, "bom_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&entity.BillOfMaterials{}, "id = ?", id).Error
	})
}

// CreateLine 创建BOM行
func (r *BOMRepository) CreateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// FindLineByID 根据ID查找BOM行
func (r *BOMRepository) FindLineByID(ctx context.Context, id string) (*entity.BOMLine, error) {
	var line entity.BOMLine
	err := r.db.WithContext(ctx).First(&line, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// UpdateLine 更新BOM行
func (r *BOMRepository) UpdateLine(ctx context.Context, line *entity.BOMLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// DeleteLine 删除BOM行
func (r *BOMRepository) DeleteLine(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entity.BOMLine{}, "id = ?", id).Error
}

// MaxLineSequence 获取BOM现有的最大行序号
func (r *BOMRepository) MaxLineSequence(ctx context.Context, bomID string) (int, error) {
	var maxSeq *int
	err := r.db.WithContext(ctx).Model(&entity.BOMLine{}).
		Where("bom_id = ?", bomID).
		Select("MAX(sequence)").Scan(&maxSeq).Error
	if err != nil {
		return 0, err
	}
	if maxSeq == nil {
		return 0, nil
	}
	return *maxSeq, nil
}
