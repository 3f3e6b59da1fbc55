package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Blb3D/filaops-sub000/internal/mrp/engine"
	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
)

// BOMService BOM版本管理与图查询
type BOMService struct {
	bomRepo     *repository.BOMRepository
	productRepo *repository.ProductRepository
	logger      *zap.Logger
}

func NewBOMService(repos *repository.Repositories, logger *zap.Logger) *BOMService {
	return &BOMService{
		bomRepo:     repos.BOM,
		productRepo: repos.Product,
		logger:      logger,
	}
}

// BOMLineRequest BOM行参数
type BOMLineRequest struct {
	ComponentID  string          `json:"component_id" binding:"required"`
	Quantity     decimal.Decimal `json:"quantity" binding:"required"`
	ScrapFactor  decimal.Decimal `json:"scrap_factor"`
	Sequence     int             `json:"sequence"`
	IsCostOnly   bool            `json:"is_cost_only"`
	ConsumeStage string          `json:"consume_stage"`
}

// CreateBOMRequest 创建BOM版本请求
type CreateBOMRequest struct {
	ProductID     string           `json:"product_id" binding:"required"`
	EffectiveDate *time.Time       `json:"effective_date"`
	Notes         string           `json:"notes"`
	Lines         []BOMLineRequest `json:"lines"`
}

// Create 创建新的BOM版本。版本号自当前最大版本号递增，
// 新版本以草稿（未激活）状态落库，激活前可随意编辑。
func (s *BOMService) Create(ctx context.Context, req CreateBOMRequest, userID string) (*entity.BillOfMaterials, error) {
	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("产品不存在: %s", req.ProductID)
		}
		return nil, fmt.Errorf("查询产品失败: %w", err)
	}

	lines := make([]entity.BOMLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		line, err := s.buildLine(ctx, product.ID, lr, i)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}

	maxVer, err := s.bomRepo.MaxVersion(ctx, product.ID)
	if err != nil {
		return nil, fmt.Errorf("查询BOM版本失败: %w", err)
	}

	bom := &entity.BillOfMaterials{
		ID:            uuid.New().String()[:32],
		ProductID:     product.ID,
		Version:       maxVer + 1,
		Active:        false,
		EffectiveDate: req.EffectiveDate,
		Notes:         req.Notes,
		CreatedBy:     userID,
		Lines:         lines,
	}
	if err := s.bomRepo.Create(ctx, bom); err != nil {
		return nil, fmt.Errorf("创建BOM失败: %w", err)
	}
	return s.bomRepo.FindByID(ctx, bom.ID)
}

// buildLine 校验并构造BOM行
func (s *BOMService) buildLine(ctx context.Context, productID string, lr BOMLineRequest, idx int) (*entity.BOMLine, error) {
	if lr.ComponentID == productID {
		return nil, fmt.Errorf("组件不能引用产品自身")
	}
	if lr.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("组件 %s: %w", lr.ComponentID, engine.ErrInvalidQuantity)
	}
	if lr.ScrapFactor.LessThan(decimal.Zero) {
		return nil, fmt.Errorf("组件 %s 损耗系数不能为负", lr.ComponentID)
	}
	component, err := s.productRepo.FindByID(ctx, lr.ComponentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("组件不存在: %s", lr.ComponentID)
		}
		return nil, fmt.Errorf("查询组件失败: %w", err)
	}
	seq := lr.Sequence
	if seq == 0 {
		seq = (idx + 1) * 10
	}
	return &entity.BOMLine{
		ID:           uuid.New().String()[:32],
		ComponentID:  component.ID,
		Quantity:     lr.Quantity,
		Unit:         component.Unit,
		ScrapFactor:  lr.ScrapFactor,
		Sequence:     seq,
		IsCostOnly:   lr.IsCostOnly,
		ConsumeStage: lr.ConsumeStage,
	}, nil
}

// Get 获取BOM版本详情
func (s *BOMService) Get(ctx context.Context, id string) (*entity.BillOfMaterials, error) {
	return s.bomRepo.FindByID(ctx, id)
}

// ListVersions 获取产品的全部BOM版本
func (s *BOMService) ListVersions(ctx context.Context, productID string) ([]entity.BillOfMaterials, error) {
	return s.bomRepo.ListByProduct(ctx, productID)
}

// UpdateBOMRequest 更新BOM头请求
type UpdateBOMRequest struct {
	EffectiveDate *time.Time `json:"effective_date"`
	Notes         *string    `json:"notes"`
}

// Update 更新BOM头信息，激活版本不可修改
func (s *BOMService) Update(ctx context.Context, id string, req UpdateBOMRequest) (*entity.BillOfMaterials, error) {
	bom, err := s.bomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bom.Active {
		return nil, fmt.Errorf("激活的BOM版本不可修改，请创建新版本")
	}
	if req.EffectiveDate != nil {
		bom.EffectiveDate = req.EffectiveDate
	}
	if req.Notes != nil {
		bom.Notes = *req.Notes
	}
	if err := s.bomRepo.Update(ctx, bom); err != nil {
		return nil, fmt.Errorf("更新BOM失败: %w", err)
	}
	return bom, nil
}

// Delete 删除BOM版本，激活版本须先停用
func (s *BOMService) Delete(ctx context.Context, id string) error {
	bom, err := s.bomRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if bom.Active {
		return fmt.Errorf("激活的BOM版本不可删除，请先停用")
	}
	return s.bomRepo.Delete(ctx, id)
}

// AddLine 向草稿BOM追加行
func (s *BOMService) AddLine(ctx context.Context, bomID string, req BOMLineRequest) (*entity.BOMLine, error) {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		return nil, err
	}
	if bom.Active {
		return nil, fmt.Errorf("激活的BOM版本不可修改，请创建新版本")
	}
	line, err := s.buildLine(ctx, bom.ProductID, req, len(bom.Lines))
	if err != nil {
		return nil, err
	}
	line.BOMID = bom.ID
	if req.Sequence == 0 {
		maxSeq, err := s.bomRepo.MaxLineSequence(ctx, bom.ID)
		if err != nil {
			return nil, fmt.Errorf("查询行序号失败: %w", err)
		}
		line.Sequence = maxSeq + 10
	}
	if err := s.bomRepo.CreateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("创建BOM行失败: %w", err)
	}
	return line, nil
}

// UpdateLine 更新草稿BOM的行
func (s *BOMService) UpdateLine(ctx context.Context, bomID, lineID string, req BOMLineRequest) (*entity.BOMLine, error) {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		return nil, err
	}
	if bom.Active {
		return nil, fmt.Errorf("激活的BOM版本不可修改，请创建新版本")
	}
	line, err := s.bomRepo.FindLineByID(ctx, lineID)
	if err != nil {
		return nil, err
	}
	if line.BOMID != bom.ID {
		return nil, fmt.Errorf("BOM行不属于该BOM")
	}
	updated, err := s.buildLine(ctx, bom.ProductID, req, 0)
	if err != nil {
		return nil, err
	}
	line.ComponentID = updated.ComponentID
	line.Quantity = updated.Quantity
	line.Unit = updated.Unit
	line.ScrapFactor = updated.ScrapFactor
	line.IsCostOnly = updated.IsCostOnly
	line.ConsumeStage = updated.ConsumeStage
	if req.Sequence != 0 {
		line.Sequence = req.Sequence
	}
	if err := s.bomRepo.UpdateLine(ctx, line); err != nil {
		return nil, fmt.Errorf("更新BOM行失败: %w", err)
	}
	return line, nil
}

// DeleteLine 删除草稿BOM的行
func (s *BOMService) DeleteLine(ctx context.Context, bomID, lineID string) error {
	bom, err := s.bomRepo.FindByID(ctx, bomID)
	if err != nil {
		return err
	}
	if bom.Active {
		return fmt.Errorf("激活的BOM版本不可修改，请创建新版本")
	}
	line, err := s.bomRepo.FindLineByID(ctx, lineID)
	if err != nil {
		return err
	}
	if line.BOMID != bom.ID {
		return fmt.Errorf("BOM行不属于该BOM")
	}
	return s.bomRepo.DeleteLine(ctx, lineID)
}

// Activate 激活BOM版本。激活前以该版本替换产品当前BOM做整图校验：
// 循环引用则拒绝，成本卷积结果缓存到TotalCost。
// 同一产品允许多个激活版本并存，解析时取版本号最大者。
func (s *BOMService) Activate(ctx context.Context, id string) (*entity.BillOfMaterials, []engine.CostWarning, error) {
	bom, err := s.bomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if bom.Active {
		return bom, nil, nil
	}
	if len(bom.Lines) == 0 {
		return nil, nil, fmt.Errorf("BOM没有组件行，不能激活")
	}

	snap, err := s.GraphSnapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	candidate := *bom
	candidate.Active = true
	snap.BOMs[bom.ProductID] = []*entity.BillOfMaterials{&candidate}

	res, err := engine.NewCoster(snap).RolledUpCost(bom.ProductID)
	if err != nil {
		var cycle *engine.CycleError
		if errors.As(err, &cycle) {
			return nil, nil, fmt.Errorf("激活失败: %w", cycle)
		}
		return nil, nil, fmt.Errorf("成本卷积失败: %w", err)
	}
	for _, w := range res.Warnings {
		s.logger.Warn("BOM成本卷积警告",
			zap.String("bom_id", bom.ID),
			zap.String("component", w.SKU),
			zap.String("code", w.Code))
	}

	bom.Active = true
	bom.TotalCost = res.TotalCost
	if err := s.bomRepo.Update(ctx, bom); err != nil {
		return nil, nil, fmt.Errorf("激活BOM失败: %w", err)
	}
	if err := s.productRepo.SetHasBOM(ctx, bom.ProductID, true); err != nil {
		return nil, nil, fmt.Errorf("更新产品BOM标记失败: %w", err)
	}
	return bom, res.Warnings, nil
}

// Deactivate 停用BOM版本，产品无激活版本时清除hasBOM标记
func (s *BOMService) Deactivate(ctx context.Context, id string) (*entity.BillOfMaterials, error) {
	bom, err := s.bomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bom.Active {
		return bom, nil
	}
	bom.Active = false
	if err := s.bomRepo.Update(ctx, bom); err != nil {
		return nil, fmt.Errorf("停用BOM失败: %w", err)
	}
	count, err := s.bomRepo.CountActiveByProduct(ctx, bom.ProductID)
	if err != nil {
		return nil, fmt.Errorf("查询激活版本数失败: %w", err)
	}
	if count == 0 {
		if err := s.productRepo.SetHasBOM(ctx, bom.ProductID, false); err != nil {
			return nil, fmt.Errorf("更新产品BOM标记失败: %w", err)
		}
	}
	return bom, nil
}

// Explode 多层展开产品当前BOM
func (s *BOMService) Explode(ctx context.Context, productID string, qty decimal.Decimal) ([]engine.ExplodedComponent, error) {
	snap, err := s.GraphSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewExploder(snap).Explode(productID, qty)
}

// WhereUsed 反查组件被哪些产品使用
func (s *BOMService) WhereUsed(ctx context.Context, componentID string, transitive bool) ([]engine.WhereUsedEntry, error) {
	snap, err := s.GraphSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewExploder(snap).WhereUsed(componentID, transitive)
}

// Cost 计算产品的卷积成本
func (s *BOMService) Cost(ctx context.Context, productID string) (*engine.CostResult, error) {
	if _, err := s.productRepo.FindByID(ctx, productID); err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("产品不存在: %s", productID)
		}
		return nil, err
	}
	snap, err := s.GraphSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return engine.NewCoster(snap).RolledUpCost(productID)
}

// GraphSnapshot 加载BOM图快照（产品、激活BOM、工艺路线），不含需求数据
func (s *BOMService) GraphSnapshot(ctx context.Context) (*engine.Snapshot, error) {
	products, err := s.productRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载产品失败: %w", err)
	}
	boms, err := s.bomRepo.ListActiveWithLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载BOM失败: %w", err)
	}
	routings, err := s.productRepo.ListRoutings(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载工艺路线失败: %w", err)
	}

	snap := &engine.Snapshot{
		Today:    time.Now(),
		Products: make(map[string]*entity.Product, len(products)),
		BOMs:     make(map[string][]*entity.BillOfMaterials, len(boms)),
		Routings: make(map[string]engine.RoutingCost, len(routings)),
	}
	for i := range products {
		p := products[i]
		snap.Products[p.ID] = &p
	}
	for i := range boms {
		b := boms[i]
		snap.BOMs[b.ProductID] = append(snap.BOMs[b.ProductID], &b)
	}
	for _, rt := range routings {
		if !rt.IsActive {
			continue
		}
		snap.Routings[rt.ProductID] = engine.RoutingCost{
			Labor:        rt.LaborCost,
			Machine:      rt.MachineCost,
			LeadTimeDays: rt.LeadTimeDays,
		}
	}
	return snap, nil
}
