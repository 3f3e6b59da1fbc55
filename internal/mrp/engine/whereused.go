package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// WhereUsedEntry 组件使用情况中的一行。Depth=1为直接父项，
// LineQty/IsCostOnly仅对直接父项有意义。
type WhereUsedEntry struct {
	ProductID  string          `json:"product_id"`
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	BOMID      string          `json:"bom_id"`
	BOMVersion int             `json:"bom_version"`
	LineQty    decimal.Decimal `json:"line_quantity"`
	IsCostOnly bool            `json:"is_cost_only"`
	Depth      int             `json:"depth"`
	TopLevel   bool            `json:"top_level"`
}

// parentRef 反向邻接：组件 → 引用它的当前BOM行
type parentRef struct {
	bom  *entity.BillOfMaterials
	line *entity.BOMLine
}

// WhereUsed 反查组件被哪些产品/BOM使用。
// transitive=false只返回直接父项；true沿祖先链追溯到顶层产品，
// 祖先链上组件重现时与正向展开一样报循环错误。
func (e *Exploder) WhereUsed(componentID string, transitive bool) ([]WhereUsedEntry, error) {
	idx := e.parentIndex()
	var out []WhereUsedEntry
	seen := map[string]bool{}
	ancestry := map[string]bool{componentID: true}
	path := []string{e.snap.sku(componentID)}
	if err := e.ascend(componentID, 1, transitive, idx, seen, ancestry, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// parentIndex 基于每个产品的当前BOM构建反向邻接表。
// 仅成本行也计入：反查用于变更影响分析，成本引用同样算使用。
func (e *Exploder) parentIndex() map[string][]parentRef {
	idx := make(map[string][]parentRef)
	for pid := range e.snap.Products {
		bom := e.snap.currentBOM(pid)
		if bom == nil {
			continue
		}
		for i := range bom.Lines {
			line := &bom.Lines[i]
			idx[line.ComponentID] = append(idx[line.ComponentID], parentRef{bom: bom, line: line})
		}
	}
	return idx
}

func (e *Exploder) ascend(componentID string, depth int, transitive bool, idx map[string][]parentRef, seen, ancestry map[string]bool, path []string, out *[]WhereUsedEntry) error {
	refs := make([]parentRef, len(idx[componentID]))
	copy(refs, idx[componentID])
	sort.Slice(refs, func(i, j int) bool {
		return e.snap.sku(refs[i].bom.ProductID) < e.snap.sku(refs[j].bom.ProductID)
	})

	for _, ref := range refs {
		pid := ref.bom.ProductID
		if ancestry[pid] {
			return &CycleError{Path: appendPath(path, e.snap.sku(pid))}
		}
		if !seen[pid] {
			seen[pid] = true
			entry := WhereUsedEntry{
				ProductID:  pid,
				BOMID:      ref.bom.ID,
				BOMVersion: ref.bom.Version,
				Depth:      depth,
				TopLevel:   len(idx[pid]) == 0,
			}
			if p := e.snap.Product(pid); p != nil {
				entry.SKU = p.SKU
				entry.Name = p.Name
			}
			if depth == 1 {
				entry.LineQty = ref.line.Quantity
				entry.IsCostOnly = ref.line.IsCostOnly
			}
			*out = append(*out, entry)
		}
		if transitive {
			ancestry[pid] = true
			if err := e.ascend(pid, depth+1, transitive, idx, seen, ancestry, appendPath(path, e.snap.sku(pid)), out); err != nil {
				return err
			}
			delete(ancestry, pid)
		}
	}
	return nil
}
