package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
)

// BOMHandler BOM版本管理与结构查询
type BOMHandler struct {
	svc *service.BOMService
}

func NewBOMHandler(svc *service.BOMService) *BOMHandler {
	return &BOMHandler{svc: svc}
}

// Create POST /boms
func (h *BOMHandler) Create(c *gin.Context) {
	var req service.CreateBOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	bom, err := h.svc.Create(c.Request.Context(), req, GetUserID(c))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Created(c, bom)
}

// Get GET /boms/:id
func (h *BOMHandler) Get(c *gin.Context) {
	bom, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, bom)
}

// ListVersions GET /products/:productId/boms
func (h *BOMHandler) ListVersions(c *gin.Context) {
	boms, err := h.svc.ListVersions(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"items": boms})
}

// Update PUT /boms/:id
func (h *BOMHandler) Update(c *gin.Context) {
	var req service.UpdateBOMRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	bom, err := h.svc.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, bom)
}

// Delete DELETE /boms/:id
func (h *BOMHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, nil)
}

// AddLine POST /boms/:id/lines
func (h *BOMHandler) AddLine(c *gin.Context) {
	var req service.BOMLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	line, err := h.svc.AddLine(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Created(c, line)
}

// UpdateLine PUT /boms/:id/lines/:lineId
func (h *BOMHandler) UpdateLine(c *gin.Context) {
	var req service.BOMLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	line, err := h.svc.UpdateLine(c.Request.Context(), c.Param("id"), c.Param("lineId"), req)
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, line)
}

// DeleteLine DELETE /boms/:id/lines/:lineId
func (h *BOMHandler) DeleteLine(c *gin.Context) {
	if err := h.svc.DeleteLine(c.Request.Context(), c.Param("id"), c.Param("lineId")); err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, nil)
}

// Activate POST /boms/:id/activate
// 激活前会做一次完整的成本卷积，循环引用会被拒绝，成本告警随响应返回
func (h *BOMHandler) Activate(c *gin.Context) {
	bom, warnings, err := h.svc.Activate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, gin.H{"bom": bom, "warnings": warnings})
}

// Deactivate POST /boms/:id/deactivate
func (h *BOMHandler) Deactivate(c *gin.Context) {
	bom, err := h.svc.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeMutationError(c, err)
		return
	}
	Success(c, bom)
}

// Explode GET /products/:productId/explode?quantity=10
func (h *BOMHandler) Explode(c *gin.Context) {
	qty, err := decimal.NewFromString(c.DefaultQuery("quantity", "1"))
	if err != nil {
		BadRequest(c, "数量格式错误: "+c.Query("quantity"))
		return
	}
	components, err := h.svc.Explode(c.Request.Context(), c.Param("productId"), qty)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"items": components})
}

// WhereUsed GET /products/:productId/where-used?transitive=true
func (h *BOMHandler) WhereUsed(c *gin.Context) {
	transitive := c.Query("transitive") == "true"
	entries, err := h.svc.WhereUsed(c.Request.Context(), c.Param("productId"), transitive)
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, gin.H{"items": entries})
}

// Cost GET /products/:productId/cost
func (h *BOMHandler) Cost(c *gin.Context) {
	result, err := h.svc.Cost(c.Request.Context(), c.Param("productId"))
	if err != nil {
		writeError(c, err)
		return
	}
	Success(c, result)
}
