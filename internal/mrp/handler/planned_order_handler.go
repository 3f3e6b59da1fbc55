package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
)

// PlannedOrderHandler 计划订单查询与生命周期流转
type PlannedOrderHandler struct {
	svc *service.PlannedOrderService
}

func NewPlannedOrderHandler(svc *service.PlannedOrderService) *PlannedOrderHandler {
	return &PlannedOrderHandler{svc: svc}
}

// List GET /planned-orders
func (h *PlannedOrderHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.PlannedOrderListParams{
		RunID:     c.Query("run_id"),
		ProductID: c.Query("product_id"),
		OrderType: c.Query("order_type"),
		Status:    c.Query("status"),
		Page:      page,
		Size:      pageSize,
	}
	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// Get GET /planned-orders/:id
func (h *PlannedOrderHandler) Get(c *gin.Context) {
	order, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, order)
}

// Firm POST /planned-orders/:id/firm
// 确认后的订单不再被重算覆盖，并发确认冲突返回409
func (h *PlannedOrderHandler) Firm(c *gin.Context) {
	order, err := h.svc.Firm(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, order)
}

// Release POST /planned-orders/:id/release
// 创建真实采购单/工单并回写关联，同一订单只能下达一次
func (h *PlannedOrderHandler) Release(c *gin.Context) {
	order, err := h.svc.Release(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{
		"order":               order,
		"released_order_type": order.ReleasedOrderType,
		"released_order_id":   order.ReleasedOrderID,
	})
}

// Cancel POST /planned-orders/:id/cancel
func (h *PlannedOrderHandler) Cancel(c *gin.Context) {
	order, err := h.svc.Cancel(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, order)
}
