package engine

import "sort"

// FindCycles 在当前BOM图上检测循环引用，返回各循环的产品ID路径（含闭合点）。
// 物理行与仅成本行的边都计入：任一方向的循环都会破坏展开或成本卷积。
func FindCycles(s *Snapshot) [][]string {
	visited := map[string]bool{}
	stack := map[string]bool{}
	var cycles [][]string

	var dfs func(pid string, path []string)
	dfs = func(pid string, path []string) {
		visited[pid] = true
		stack[pid] = true
		path = append(path, pid)

		if bom := s.currentBOM(pid); bom != nil {
			for _, line := range bom.Lines {
				child := line.ComponentID
				if stack[child] {
					start := 0
					for i, id := range path {
						if id == child {
							start = i
							break
						}
					}
					cycle := make([]string, 0, len(path)-start+1)
					cycle = append(cycle, path[start:]...)
					cycle = append(cycle, child)
					cycles = append(cycles, cycle)
					continue
				}
				if !visited[child] {
					dfs(child, path)
				}
			}
		}
		stack[pid] = false
	}

	for _, pid := range sortedProductIDs(s) {
		if !visited[pid] {
			dfs(pid, nil)
		}
	}
	return cycles
}

// LowLevelCodes 计算低层码：产品在所有当前BOM中作为组件出现的最大深度，
// 顶层成品为0。按拓扑序松弛（Kahn），exclude中的循环成员不参与。
// 仅物理行构成层级边，仅成本行不产生需求、不影响处理顺序。
func LowLevelCodes(s *Snapshot, exclude map[string]bool) map[string]int {
	llc := map[string]int{}
	children := map[string][]string{}
	indeg := map[string]int{}

	for pid := range s.Products {
		if exclude[pid] {
			continue
		}
		llc[pid] = 0
	}
	for pid := range llc {
		bom := s.currentBOM(pid)
		if bom == nil {
			continue
		}
		for _, line := range bom.Lines {
			if line.IsCostOnly {
				continue
			}
			cid := line.ComponentID
			if exclude[cid] {
				continue
			}
			if _, ok := llc[cid]; !ok {
				llc[cid] = 0
			}
			children[pid] = append(children[pid], cid)
			indeg[cid]++
		}
	}

	var queue []string
	for pid := range llc {
		if indeg[pid] == 0 {
			queue = append(queue, pid)
		}
	}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		for _, cid := range children[pid] {
			if llc[pid]+1 > llc[cid] {
				llc[cid] = llc[pid] + 1
			}
			indeg[cid]--
			if indeg[cid] == 0 {
				queue = append(queue, cid)
			}
		}
	}
	return llc
}

// sortedProductIDs 按SKU稳定排序的产品ID，保证运行输出的确定性
func sortedProductIDs(s *Snapshot) []string {
	ids := make([]string, 0, len(s.Products))
	for id := range s.Products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.Products[ids[i]], s.Products[ids[j]]
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return ids[i] < ids[j]
	})
	return ids
}
