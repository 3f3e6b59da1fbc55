package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Product      *ProductRepository
	BOM          *BOMRepository
	Sales        *SalesRepository
	Forecast     *ForecastRepository
	Inventory    *InventoryRepository
	Purchase     *PurchaseRepository
	WorkOrder    *WorkOrderRepository
	PlannedOrder *PlannedOrderRepository
	Run          *RunRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Product:      NewProductRepository(db),
		BOM:          NewBOMRepository(db),
		Sales:        NewSalesRepository(db),
		Forecast:     NewForecastRepository(db),
		Inventory:    NewInventoryRepository(db),
		Purchase:     NewPurchaseRepository(db),
		WorkOrder:    NewWorkOrderRepository(db),
		PlannedOrder: NewPlannedOrderRepository(db),
		Run:          NewRunRepository(db),
	}
}

// IsNotFound 判断是否为记录不存在错误
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}
