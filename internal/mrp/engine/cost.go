package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// WarningCostUnresolved 成本警告代码：行没有任何可用成本来源
const WarningCostUnresolved = "COST_UNRESOLVED"

// CostStrategy 单一成本取数策略，返回零或负值表示该来源不可用
type CostStrategy struct {
	Name    string
	Resolve func(p *entity.Product) decimal.Decimal
}

// DefaultCostStrategies 成本兜底链：标准成本 → 移动平均 → 最近一次采购价 → 旧版单价。
// 按顺序尝试，第一个正值生效。
func DefaultCostStrategies() []CostStrategy {
	return []CostStrategy{
		{Name: "standard", Resolve: func(p *entity.Product) decimal.Decimal { return p.StandardCost }},
		{Name: "average", Resolve: func(p *entity.Product) decimal.Decimal { return p.AverageCost }},
		{Name: "last", Resolve: func(p *entity.Product) decimal.Decimal { return p.LastCost }},
		{Name: "unit_price", Resolve: func(p *entity.Product) decimal.Decimal { return p.UnitPrice }},
	}
}

// CostWarning 卷积过程中的非致命警告
type CostWarning struct {
	ProductID string `json:"product_id"`
	SKU       string `json:"sku"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// CostLine 卷积结果中单条BOM行的成本明细
type CostLine struct {
	ComponentID string          `json:"component_id"`
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Source      string          `json:"source"` // standard/average/last/unit_price/rollup/unresolved
	Quantity    decimal.Decimal `json:"quantity"`
	ScrapFactor decimal.Decimal `json:"scrap_factor"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	LineCost    decimal.Decimal `json:"line_cost"`
	IsCostOnly  bool            `json:"is_cost_only"`
}

// CostResult 产品卷积成本及逐行明细
type CostResult struct {
	ProductID    string          `json:"product_id"`
	SKU          string          `json:"sku"`
	MaterialCost decimal.Decimal `json:"material_cost"`
	LaborCost    decimal.Decimal `json:"labor_cost"`
	MachineCost  decimal.Decimal `json:"machine_cost"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Lines        []CostLine      `json:"lines"`
	Warnings     []CostWarning   `json:"warnings"`
}

// Coster 递归成本卷积
type Coster struct {
	snap       *Snapshot
	strategies []CostStrategy
}

func NewCoster(snap *Snapshot) *Coster {
	return &Coster{snap: snap, strategies: DefaultCostStrategies()}
}

type memoEntry struct {
	cost   decimal.Decimal
	source string
}

// RolledUpCost 计算产品的卷积成本。
// 有激活BOM的组件递归卷积，叶子组件走成本兜底链；同一子装配在一次调用内
// 按产品ID记忆化，菱形结构不会重复计算。行成本 = 单位成本 × 用量 × (1 + 损耗)，
// 仅成本行同样计入。行解析不到成本时按零计入并携带COST_UNRESOLVED警告，
// 卷积本身总能返回结果；循环引用是唯一的失败原因。
func (c *Coster) RolledUpCost(productID string) (*CostResult, error) {
	p := c.snap.Product(productID)
	res := &CostResult{ProductID: productID}
	if p != nil {
		res.SKU = p.SKU
	}

	bom := c.snap.currentBOM(productID)
	if bom == nil {
		// 无BOM产品直接走兜底链
		unit, source := c.staticCost(p)
		if source == "" && p != nil {
			res.Warnings = append(res.Warnings, unresolvedWarning(p))
		}
		res.MaterialCost = unit
		res.TotalCost = unit
		return res, nil
	}

	memo := map[string]memoEntry{}
	ancestry := map[string]bool{productID: true}
	path := []string{c.snap.sku(productID)}

	for _, line := range sortedLines(bom.Lines) {
		unit, source, err := c.unitCost(line.ComponentID, memo, ancestry, path, &res.Warnings)
		if err != nil {
			return nil, err
		}
		lineCost := unit.Mul(line.Quantity).Mul(one().Add(line.ScrapFactor))
		cl := CostLine{
			ComponentID: line.ComponentID,
			Source:      source,
			Quantity:    line.Quantity,
			ScrapFactor: line.ScrapFactor,
			UnitCost:    unit,
			LineCost:    lineCost,
			IsCostOnly:  line.IsCostOnly,
		}
		if comp := c.snap.Product(line.ComponentID); comp != nil {
			cl.SKU = comp.SKU
			cl.Name = comp.Name
		}
		res.Lines = append(res.Lines, cl)
		res.MaterialCost = res.MaterialCost.Add(lineCost)
	}

	if rc, ok := c.snap.Routings[productID]; ok {
		res.LaborCost = rc.Labor
		res.MachineCost = rc.Machine
	}
	res.TotalCost = res.MaterialCost.Add(res.LaborCost).Add(res.MachineCost)
	return res, nil
}

// unitCost 解析组件单位成本：有当前BOM则递归卷积（含该层工艺成本），否则走兜底链
func (c *Coster) unitCost(productID string, memo map[string]memoEntry, ancestry map[string]bool, path []string, warnings *[]CostWarning) (decimal.Decimal, string, error) {
	if m, ok := memo[productID]; ok {
		return m.cost, m.source, nil
	}
	if ancestry[productID] {
		return decimal.Zero, "", &CycleError{Path: appendPath(path, c.snap.sku(productID))}
	}

	p := c.snap.Product(productID)
	bom := c.snap.currentBOM(productID)
	if bom == nil {
		unit, source := c.staticCost(p)
		if source == "" {
			source = "unresolved"
			if p != nil {
				*warnings = append(*warnings, unresolvedWarning(p))
			} else {
				*warnings = append(*warnings, CostWarning{
					ProductID: productID,
					Code:      WarningCostUnresolved,
					Message:   fmt.Sprintf("组件 %s 不在产品目录中，按零成本计入", productID),
				})
			}
		}
		memo[productID] = memoEntry{cost: unit, source: source}
		return unit, source, nil
	}

	ancestry[productID] = true
	childPath := appendPath(path, c.snap.sku(productID))
	total := decimal.Zero
	for _, line := range sortedLines(bom.Lines) {
		unit, _, err := c.unitCost(line.ComponentID, memo, ancestry, childPath, warnings)
		if err != nil {
			return decimal.Zero, "", err
		}
		total = total.Add(unit.Mul(line.Quantity).Mul(one().Add(line.ScrapFactor)))
	}
	delete(ancestry, productID)

	if rc, ok := c.snap.Routings[productID]; ok {
		total = total.Add(rc.Labor).Add(rc.Machine)
	}
	memo[productID] = memoEntry{cost: total, source: "rollup"}
	return total, "rollup", nil
}

// staticCost 按兜底链取静态成本，第一个正值生效
func (c *Coster) staticCost(p *entity.Product) (decimal.Decimal, string) {
	if p == nil {
		return decimal.Zero, ""
	}
	for _, st := range c.strategies {
		if v := st.Resolve(p); v.GreaterThan(decimal.Zero) {
			return v, st.Name
		}
	}
	return decimal.Zero, ""
}

func unresolvedWarning(p *entity.Product) CostWarning {
	return CostWarning{
		ProductID: p.ID,
		SKU:       p.SKU,
		Code:      WarningCostUnresolved,
		Message:   fmt.Sprintf("组件 %s 无任何可用成本来源，按零成本计入", p.SKU),
	}
}
