package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
)

// 运行异常代码
const (
	ExceptionCycleDetected = "CYCLE_DETECTED"
	ExceptionNoActiveBOM   = "NO_ACTIVE_BOM"
)

// Counters 运行统计
type Counters struct {
	OrdersProcessed      int // 参与计算的外部需求条数
	ComponentsAnalyzed   int // 完成净算的产品数
	ShortagesFound       int // 存在净需求的产品数
	PlannedOrdersCreated int // 生成的计划订单数
}

// RunException 运行中记录的产品级异常，对应分支被跳过
type RunException struct {
	ProductID string
	SKU       string
	Code      string
	Message   string
}

// OrderProposal 引擎产出的计划订单建议（未落库）
type OrderProposal struct {
	ID         string
	OrderType  string
	ProductID  string
	SKU        string
	Name       string
	Unit       string
	Quantity   decimal.Decimal
	DueDate    time.Time
	StartDate  time.Time
	SourceType string
	SourceID   string
}

// PlanResult 一次MRP计算的完整输出
type PlanResult struct {
	Orders     []OrderProposal
	Exceptions []RunException
	Counters   Counters
}

// Plan 在快照上执行一次完整的MRP计算，纯内存、无副作用。
// 流程：循环检测 → 低层码 → 自0层起逐层净算，生产建议按单层展开把
// 组件需求级联到更深层。单产品的失败只记异常并跳过该分支，不中断运行。
func Plan(snap *Snapshot) *PlanResult {
	res := &PlanResult{}

	cyclic := map[string]bool{}
	for _, cycle := range FindCycles(snap) {
		for _, pid := range cycle {
			cyclic[pid] = true
		}
		skus := make([]string, len(cycle))
		for i, pid := range cycle {
			skus[i] = snap.sku(pid)
		}
		res.Exceptions = append(res.Exceptions, RunException{
			ProductID: cycle[0],
			SKU:       snap.sku(cycle[0]),
			Code:      ExceptionCycleDetected,
			Message:   fmt.Sprintf("BOM存在循环引用: %s", strings.Join(skus, " -> ")),
		})
	}

	levels := LowLevelCodes(snap, cyclic)
	maxLevel := 0
	for _, l := range levels {
		if l > maxLevel {
			maxLevel = l
		}
	}

	res.Counters.OrdersProcessed = len(snap.Demands)

	// 需求与到货按产品分组，计划期外的剔除；级联需求在逐层处理时追加
	horizon := snap.HorizonEnd()
	demandsOf := map[string][]Demand{}
	for _, d := range snap.Demands {
		if d.DueDate.After(horizon) {
			continue
		}
		demandsOf[d.ProductID] = append(demandsOf[d.ProductID], d)
	}
	receiptsOf := map[string][]Receipt{}
	for _, r := range snap.Receipts {
		if r.DueDate.After(horizon) {
			continue
		}
		receiptsOf[r.ProductID] = append(receiptsOf[r.ProductID], r)
	}

	ids := sortedProductIDs(snap)

	for level := 0; level <= maxLevel; level++ {
		for _, pid := range ids {
			if levels[pid] != level || cyclic[pid] {
				continue
			}
			demands := demandsOf[pid]
			if len(demands) == 0 {
				continue
			}
			p := snap.Product(pid)
			if p == nil {
				continue
			}

			bom := snap.currentBOM(pid)
			if p.ProcurementType == entity.ProcurementMake && bom == nil {
				res.Exceptions = append(res.Exceptions, RunException{
					ProductID: pid,
					SKU:       p.SKU,
					Code:      ExceptionNoActiveBOM,
					Message:   fmt.Sprintf("自制产品 %s 没有激活的BOM，本次运行跳过", p.SKU),
				})
				continue
			}

			res.Counters.ComponentsAnalyzed++
			nets := NetProduct(pid, demands, receiptsOf[pid], snap.OnHand[pid], p.SafetyStock, snap.BucketDate)
			if len(nets) == 0 {
				continue
			}
			res.Counters.ShortagesFound++

			// 提前期：自制件优先取工艺路线的生产提前期
			leadDays := p.LeadTimeDays
			if p.ProcurementType == entity.ProcurementMake {
				if rc, ok := snap.Routings[pid]; ok && rc.LeadTimeDays > 0 {
					leadDays = rc.LeadTimeDays
				}
			}
			orderType := entity.OrderTypePurchase
			if p.ProcurementType == entity.ProcurementMake {
				orderType = entity.OrderTypeProduction
			}

			for _, net := range nets {
				proposal := OrderProposal{
					ID:         uuid.New().String()[:32],
					OrderType:  orderType,
					ProductID:  pid,
					SKU:        p.SKU,
					Name:       p.Name,
					Unit:       p.Unit,
					Quantity:   net.Quantity,
					DueDate:    net.DueDate,
					StartDate:  net.DueDate.AddDate(0, 0, -leadDays),
					SourceType: net.SourceType,
					SourceID:   net.SourceID,
				}
				res.Orders = append(res.Orders, proposal)
				res.Counters.PlannedOrdersCreated++

				// 生产建议按单层展开，把组件毛需求级联到开工日；
				// 组件低层码必然更深，会在后续层级被净算
				if orderType == entity.OrderTypeProduction && bom != nil {
					for _, line := range sortedLines(bom.Lines) {
						if line.IsCostOnly {
							continue
						}
						qty := proposal.Quantity.Mul(line.Quantity).Mul(one().Add(line.ScrapFactor))
						demandsOf[line.ComponentID] = append(demandsOf[line.ComponentID], Demand{
							ProductID:  line.ComponentID,
							Quantity:   qty,
							DueDate:    proposal.StartDate,
							SourceType: entity.SourceTypePlannedOrder,
							SourceID:   proposal.ID,
						})
					}
				}
			}
		}
	}
	return res
}
