package dag

import (
	"fmt"
	"sort"
	"strconv"

	godag "github.com/begmaroman/go-dag"

	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// computeLevels 基于当前边表计算每个节点的层级（Kahn分层）
// 层级 = 1 + 从任一根节点出发的最长路径（按节点数计），根节点为从未作为子节点出现的ID。
// 对无环输入与穷举所有根到节点路径取最长的结果完全一致。
// ids: 需要参与计算的节点（无边的孤立节点为第1层）
func computeLevels(ids []int, links map[int][]int) (map[int]int, error) {
	inDegree := make(map[int]int, len(ids))
	for _, id := range ids {
		inDegree[id] = 0
	}
	for parent, children := range links {
		if _, ok := inDegree[parent]; !ok {
			inDegree[parent] = 0
		}
		for _, child := range children {
			inDegree[child]++
		}
	}

	queue := make([]int, 0)
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Ints(queue)

	levels := make(map[int]int, len(inDegree))
	level := 1
	for len(queue) > 0 {
		next := make([]int, 0)
		for _, id := range queue {
			levels[id] = level
			for _, child := range links[id] {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		sort.Ints(next)
		queue = next
		level++
	}

	if len(levels) != len(inDegree) {
		return nil, fmt.Errorf("%w: 已分层 %d / %d 个节点", types.ErrCycle, len(levels), len(inDegree))
	}
	return levels, nil
}

// levelVertex go-dag 顶点
// go-dag 以顶点的JSON序列化结果判重，字段必须导出
type levelVertex struct {
	NodeID string `json:"node_id"`
}

// ID 实现 go-dag 的 Identifiable 接口
func (v *levelVertex) ID() string {
	return v.NodeID
}

// checkAcyclic 使用 go-dag 校验输入边表无环
// go-dag 在 AddEdge 时会检测循环依赖，出现环时立即失败
func checkAcyclic(ids []int, links map[int][]int) error {
	d := godag.NewDAG[*levelVertex]()
	for _, id := range ids {
		key := strconv.Itoa(id)
		if err := d.AddVertexByID(key, &levelVertex{NodeID: key}); err != nil {
			return fmt.Errorf("添加节点失败: ID=%d, Error=%w", id, err)
		}
	}

	parents := make([]int, 0, len(links))
	for parent := range links {
		parents = append(parents, parent)
	}
	sort.Ints(parents)

	for _, parent := range parents {
		for _, child := range links[parent] {
			if parent == child {
				return fmt.Errorf("%w: %d -> %d", types.ErrCycle, parent, child)
			}
			if err := d.AddEdge(strconv.Itoa(parent), strconv.Itoa(child)); err != nil {
				return fmt.Errorf("%w: %d -> %d: %v", types.ErrCycle, parent, child, err)
			}
		}
	}
	return nil
}
