package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/Blb3D/filaops-sub000/internal/mrp/engine"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
)

// MRPHandler MRP运行触发与结果查询
type MRPHandler struct {
	svc      *service.MRPService
	orderSvc *service.PlannedOrderService
}

func NewMRPHandler(svc *service.MRPService, orderSvc *service.PlannedOrderService) *MRPHandler {
	return &MRPHandler{svc: svc, orderSvc: orderSvc}
}

// Run POST /runs
// 同一时刻只允许一次运行，冲突返回409
func (h *MRPHandler) Run(c *gin.Context) {
	var req service.RunMRPRequest
	c.ShouldBindJSON(&req)
	if req.HorizonDays < 0 {
		BadRequest(c, "计划期天数必须大于0")
		return
	}
	if req.BucketMode != "" && req.BucketMode != string(engine.BucketDay) && req.BucketMode != string(engine.BucketWeek) {
		BadRequest(c, "无效的时间桶粒度: "+req.BucketMode)
		return
	}
	run, err := h.svc.Run(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	Created(c, run)
}

// ListRuns GET /runs
func (h *MRPHandler) ListRuns(c *gin.Context) {
	page, pageSize := GetPagination(c)
	runs, total, err := h.svc.ListRuns(c.Request.Context(), c.Query("status"), page, pageSize)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, ListResponse{Items: runs, Pagination: NewPagination(page, pageSize, total)})
}

// GetRun GET /runs/:id
func (h *MRPHandler) GetRun(c *gin.Context) {
	run, err := h.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, run)
}

// LatestRun GET /runs/latest
func (h *MRPHandler) LatestRun(c *gin.Context) {
	run, err := h.svc.LatestCompleted(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, run)
}

// RunOrders GET /runs/:id/orders
// 一次运行产出的计划订单
func (h *MRPHandler) RunOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.PlannedOrderListParams{
		RunID:     c.Param("id"),
		OrderType: c.Query("order_type"),
		Status:    c.Query("status"),
		Page:      page,
		Size:      pageSize,
	}
	items, total, err := h.orderSvc.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// ExportRun GET /runs/:id/export
// 导出运行结果工作簿
func (h *MRPHandler) ExportRun(c *gin.Context) {
	f, filename, err := h.svc.ExportRunExcel(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}
