package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindByID 根据ID查找产品
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// FindBySKU 根据SKU查找产品
func (r *ProductRepository) FindBySKU(ctx context.Context, sku string) (*entity.Product, error) {
	var p entity.Product
	err := r.db.WithContext(ctx).First(&p, "sku = ?", sku).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListAll 获取全部产品，供计划快照使用
func (r *ProductRepository) ListAll(ctx context.Context) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).Order("sku ASC").Find(&products).Error
	return products, err
}

// SetHasBOM 维护产品的hasBOM标记
func (r *ProductRepository) SetHasBOM(ctx context.Context, productID string, has bool) error {
	return r.db.WithContext(ctx).Model(&entity.Product{}).
		Where("id = ?", productID).Update("has_bom", has).Error
}

// ListRoutings 获取全部工艺路线，供计划快照使用
func (r *ProductRepository) ListRoutings(ctx context.Context) ([]entity.Routing, error) {
	var routings []entity.Routing
	err := r.db.WithContext(ctx).Find(&routings).Error
	return routings, err
}
