package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
)

// ForecastHandler 需求预测维护与CSV导入
type ForecastHandler struct {
	svc *service.ForecastService
}

func NewForecastHandler(svc *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{svc: svc}
}

// List GET /forecasts
func (h *ForecastHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	params := repository.ForecastListParams{
		ProductID: c.Query("product_id"),
		Source:    c.Query("source"),
		Page:      page,
		Size:      pageSize,
	}
	if v := c.Query("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			params.From = &t
		}
	}
	if v := c.Query("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			params.To = &t
		}
	}
	items, total, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// Create POST /forecasts
func (h *ForecastHandler) Create(c *gin.Context) {
	var req service.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	f, err := h.svc.Create(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Created(c, f)
}

// Update PUT /forecasts/:id
func (h *ForecastHandler) Update(c *gin.Context) {
	var req service.ForecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	f, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, f)
}

// Delete DELETE /forecasts/:id
func (h *ForecastHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, nil)
}

// Import POST /forecasts/import
// 接收CSV文件，表头 sku,quantity,due_date
func (h *ForecastHandler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}
	defer file.Close()

	result, err := h.svc.ImportCSV(c.Request.Context(), file, GetUserID(c))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, result)
}
