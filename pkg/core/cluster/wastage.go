package cluster

import (
	"github.com/LENAX/dag-cluster/pkg/core/dag"
)

// Wastage 计算聚类结果的资源浪费（对外导出）
// 对每个折叠了多个原始任务的节点，累加 exec_time × (max_cores − cores)，
// 其中 max_cores 为该节点所有折叠任务中的最大核数。结果仅供参考，不影响聚类行为。
func Wastage(g *dag.WorkflowGraph) float64 {
	total := 0.0
	for _, node := range g.Nodes() {
		if !node.IsComposite() {
			continue
		}
		maxCores := 0
		for _, info := range node.ClusterInfo {
			if info.Cores > maxCores {
				maxCores = info.Cores
			}
		}
		for _, id := range node.FoldedIDs() {
			info := node.ClusterInfo[id]
			total += info.ExecTime * float64(maxCores-info.Cores)
		}
	}
	return total
}
