package cluster

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
)

// normalizeEpsilon 归一化分母的附加项，所有值相等时避免除零
const normalizeEpsilon = 1e-4

// hrabBin HRAB 工作中的聚类（尚未插入图）
type hrabBin struct {
	key     int
	members []*dag.Task
}

// maxNormalizedCores 聚类内最大归一化核数，空聚类返回 fallback
func (b *hrabBin) maxNormalizedCores(fallback float64) float64 {
	if len(b.members) == 0 {
		return fallback
	}
	m := 0.0
	for _, t := range b.members {
		if t.NormalizedCores > m {
			m = t.NormalizedCores
		}
	}
	return m
}

// totalNormalizedRuntime 聚类内归一化运行时间之和，空聚类返回 fallback
func (b *hrabBin) totalNormalizedRuntime(fallback float64) float64 {
	if len(b.members) == 0 {
		return fallback
	}
	sum := 0.0
	for _, t := range b.members {
		sum += t.NormalizedRuntime
	}
	return sum
}

// runHRAB 逐层把同层任务折叠进 clusterCount 个平衡的复合任务
func runHRAB(g *dag.WorkflowGraph, clusterCount int, log *zap.Logger) error {
	height := g.Height()
	for level := 1; level <= height; level++ {
		tasks := g.GetTasksAtLevel(level)
		if len(tasks) <= clusterCount {
			log.Debug("层级任务数不超过聚类数量，跳过", zap.Int("level", level), zap.Int("tasks", len(tasks)))
			continue
		}

		clusterSize := (len(tasks) + clusterCount - 1) / clusterCount
		bins := make([]*hrabBin, clusterCount)
		for i := range bins {
			bins[i] = &hrabBin{key: -(i + 1)}
		}

		sort.SliceStable(tasks, func(i, j int) bool {
			return tasks[i].ExecTime() > tasks[j].ExecTime()
		})
		avgCores, avgRuntime := normalizeLevel(tasks)

		for _, t := range tasks {
			bin := pickBin(bins, t, clusterSize, avgCores, avgRuntime)
			bin.members = append(bin.members, t)
		}

		for _, bin := range bins {
			if len(bin.members) == 0 {
				continue
			}
			composite := foldBin(bin, level)
			ids := make([]int, 0, len(bin.members))
			for _, t := range bin.members {
				ids = append(ids, t.ID)
			}
			if err := g.Contract(composite, ids); err != nil {
				return err
			}
			log.Debug("HRAB 折叠",
				zap.Int("level", level),
				zap.Int("bin", bin.key),
				zap.Int("composite", composite.ID),
				zap.Ints("members", ids))
		}
	}
	g.UpdateLinks()
	return nil
}

// normalizeLevel 对同层任务做 min-max 归一化，返回归一化核数与运行时间的均值
func normalizeLevel(tasks []*dag.Task) (float64, float64) {
	minCores, maxCores := math.Inf(1), math.Inf(-1)
	minRuntime, maxRuntime := math.Inf(1), math.Inf(-1)
	for _, t := range tasks {
		cores := float64(t.Cores())
		minCores = math.Min(minCores, cores)
		maxCores = math.Max(maxCores, cores)
		minRuntime = math.Min(minRuntime, t.ExecTime())
		maxRuntime = math.Max(maxRuntime, t.ExecTime())
	}

	sumCores, sumRuntime := 0.0, 0.0
	for _, t := range tasks {
		t.NormalizedCores = (float64(t.Cores()) - minCores) / (maxCores - minCores + normalizeEpsilon)
		t.NormalizedRuntime = (t.ExecTime() - minRuntime) / (maxRuntime - minRuntime + normalizeEpsilon)
		sumCores += t.NormalizedCores
		sumRuntime += t.NormalizedRuntime
	}
	n := float64(len(tasks))
	return sumCores / n, sumRuntime / n
}

// pickBin 选择聚类因子最小且未满的聚类，因子相同时取先创建的
// 因子 = (0.1 + |nc − 聚类最大nc|) × (0.1 + 聚类nr之和)
func pickBin(bins []*hrabBin, t *dag.Task, clusterSize int, avgCores, avgRuntime float64) *hrabBin {
	var best *hrabBin
	bestFactor := math.Inf(1)
	for _, bin := range bins {
		if len(bin.members) >= clusterSize {
			continue
		}
		factor := (0.1 + math.Abs(t.NormalizedCores-bin.maxNormalizedCores(avgCores))) *
			(0.1 + bin.totalNormalizedRuntime(avgRuntime))
		if best == nil || factor < bestFactor {
			best = bin
			bestFactor = factor
		}
	}
	return best
}

// foldBin 由聚类成员生成复合任务，ID取第一个分配进来的任务ID
func foldBin(bin *hrabBin, level int) *dag.Task {
	c := dag.Cost{}
	for _, t := range bin.members {
		c.ExecTime += t.ExecTime()
		if t.Cores() > c.Cores {
			c.Cores = t.Cores()
		}
	}
	composite := dag.NewCompositeTask(bin.members[0].ID, level, c)
	composite.Assigned = true
	for _, t := range bin.members {
		appendSequence(composite, t)
	}
	return composite
}
