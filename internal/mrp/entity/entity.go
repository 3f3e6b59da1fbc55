package entity

import "gorm.io/gorm"

// AutoMigrate 迁移计划服务的全部数据表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// 主数据（协作方维护，本服务只读）
		&Product{},
		&Routing{},
		&InventoryPosition{},
		&SalesOrderLine{},
		&PurchaseOrder{},
		&WorkOrder{},

		// BOM
		&BillOfMaterials{},
		&BOMLine{},

		// 计划
		&DemandForecast{},
		&MRPRun{},
		&MRPRunException{},
		&PlannedOrder{},
	)
}
