package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// ExplodedComponent 展开结果中的一行：某组件在请求数量下的级联用量
type ExplodedComponent struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	Quantity  decimal.Decimal `json:"quantity"`
	Depth     int             `json:"depth"`
	HasBOM    bool            `json:"has_bom"`
}

// Exploder 多层BOM展开与反查
type Exploder struct {
	snap *Snapshot
}

func NewExploder(snap *Snapshot) *Exploder {
	return &Exploder{snap: snap}
}

// Explode 把产品的多层BOM按请求数量展开为扁平组件列表。
// 级联规则：组件用量 = 父项用量 × 行用量 × (1 + 损耗系数)，逐层相乘；
// is_cost_only的行不参与展开。
func (e *Exploder) Explode(productID string, qty decimal.Decimal) ([]ExplodedComponent, error) {
	var out []ExplodedComponent
	err := e.Walk(productID, qty, func(c ExplodedComponent) error {
		out = append(out, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Walk 以回调方式流式产出展开行，回调返回错误即中止遍历
func (e *Exploder) Walk(productID string, qty decimal.Decimal, fn func(ExplodedComponent) error) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	bom, err := e.snap.CurrentBOM(productID)
	if err != nil {
		return err
	}
	ancestry := map[string]bool{productID: true}
	path := []string{e.snap.sku(productID)}
	return e.walk(bom, qty, 1, ancestry, path, fn)
}

func (e *Exploder) walk(bom *entity.BillOfMaterials, parentQty decimal.Decimal, depth int, ancestry map[string]bool, path []string, fn func(ExplodedComponent) error) error {
	for _, line := range sortedLines(bom.Lines) {
		if line.IsCostOnly {
			continue
		}
		// 下钻前先查祖先链，组件重现即为循环
		if ancestry[line.ComponentID] {
			return &CycleError{Path: appendPath(path, e.snap.sku(line.ComponentID))}
		}
		qty := parentQty.Mul(line.Quantity).Mul(one().Add(line.ScrapFactor))
		comp := e.snap.Product(line.ComponentID)
		child := e.snap.currentBOM(line.ComponentID)
		ec := ExplodedComponent{
			ProductID: line.ComponentID,
			Quantity:  qty,
			Depth:     depth,
			HasBOM:    child != nil,
		}
		if comp != nil {
			ec.SKU = comp.SKU
			ec.Name = comp.Name
			ec.Unit = comp.Unit
		}
		if err := fn(ec); err != nil {
			return err
		}
		if child != nil {
			ancestry[line.ComponentID] = true
			if err := e.walk(child, qty, depth+1, ancestry, appendPath(path, e.snap.sku(line.ComponentID)), fn); err != nil {
				return err
			}
			delete(ancestry, line.ComponentID)
		}
	}
	return nil
}

// AggregateComponents 把展开行按组件汇总总用量
func AggregateComponents(list []ExplodedComponent) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal, len(list))
	for _, c := range list {
		totals[c.ProductID] = totals[c.ProductID].Add(c.Quantity)
	}
	return totals
}

func sortedLines(lines []entity.BOMLine) []entity.BOMLine {
	out := make([]entity.BOMLine, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

func appendPath(path []string, sku string) []string {
	out := make([]string, 0, len(path)+1)
	out = append(out, path...)
	return append(out, sku)
}

func one() decimal.Decimal {
	return decimal.NewFromInt(1)
}
