package cluster

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pgregory.net/rapid"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
)

// drawWorkflow 生成随机DAG：边只从小ID指向大ID，因此一定无环
func drawWorkflow(t *rapid.T) ([]dag.TaskSpec, map[int][]int) {
	n := rapid.IntRange(1, 18).Draw(t, "tasks")
	specs := make([]dag.TaskSpec, 0, n)
	for id := 1; id <= n; id++ {
		specs = append(specs, dag.TaskSpec{ID: id, Cost: &dag.Cost{
			ExecTime: float64(rapid.IntRange(0, 20).Draw(t, "exec")),
			Cores:    rapid.IntRange(1, 8).Draw(t, "cores"),
		}})
	}
	links := make(map[int][]int)
	for parent := 1; parent <= n; parent++ {
		for child := parent + 1; child <= n; child++ {
			if rapid.IntRange(0, 3).Draw(t, "edge") == 0 {
				links[parent] = append(links[parent], child)
			}
		}
	}
	return specs, links
}

func drawAlgorithm(t *rapid.T) Algorithm {
	if rapid.Bool().Draw(t, "wpa") {
		return WPA()
	}
	return HRAB(rapid.IntRange(1, 4).Draw(t, "clusterCount"))
}

// TestProperty_ClusterInfoPartition 每个原始ID恰好出现在一个存活节点的 ClusterInfo 中
func TestProperty_ClusterInfoPartition(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		specs, links := drawWorkflow(t)
		g, err := dag.NewWorkflowGraph(specs, links)
		if err != nil {
			t.Fatalf("构图失败: %v", err)
		}
		if _, err := Run(g, drawAlgorithm(t)); err != nil {
			t.Fatalf("聚类失败: %v", err)
		}

		seen := make(map[int]int)
		for _, node := range g.Nodes() {
			if _, ok := node.ClusterInfo[node.ID]; !ok {
				t.Fatalf("节点 %d 的 ClusterInfo 不包含自身ID", node.ID)
			}
			for id := range node.ClusterInfo {
				seen[id]++
			}
		}
		if len(seen) != len(specs) {
			t.Fatalf("折叠后的原始任务数 %d != %d", len(seen), len(specs))
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("原始任务 %d 出现了 %d 次", id, count)
			}
		}
	})
}

// TestProperty_SymmetryAndMonotonicity 聚类后边对称，且每条边满足 level(c) > level(p)
func TestProperty_SymmetryAndMonotonicity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		specs, links := drawWorkflow(t)
		g, err := dag.NewWorkflowGraph(specs, links)
		if err != nil {
			t.Fatalf("构图失败: %v", err)
		}
		if _, err := Run(g, drawAlgorithm(t)); err != nil {
			t.Fatalf("聚类失败: %v", err)
		}
		if err := g.Validate(); err != nil {
			t.Fatalf("边不对称: %v", err)
		}
		if err := g.UpdateHeight(); err != nil {
			t.Fatalf("聚类后出现环: %v", err)
		}
		for parent, children := range g.Links() {
			p, _ := g.GetNode(parent)
			for _, child := range children {
				c, _ := g.GetNode(child)
				if c.Level <= p.Level {
					t.Fatalf("边 %d -> %d 的层级 %d -> %d 不递增", parent, child, p.Level, c.Level)
				}
			}
		}

		first := g.Links()
		g.UpdateLinks()
		second := g.Links()
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("UpdateLinks 不幂等: %v != %v", first, second)
		}
	})
}

// TestProperty_HRABSizeBound 层级任务数 n > k 时，每个复合任务最多折叠 ceil(n/k) 个任务
func TestProperty_HRABSizeBound(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		specs, links := drawWorkflow(t)
		k := rapid.IntRange(1, 4).Draw(t, "clusterCount")
		g, err := dag.NewWorkflowGraph(specs, links)
		if err != nil {
			t.Fatalf("构图失败: %v", err)
		}

		levelOf := make(map[int]int)
		perLevel := make(map[int]int)
		for _, node := range g.Nodes() {
			levelOf[node.ID] = node.Level
			perLevel[node.Level]++
		}

		if _, err := Run(g, HRAB(k)); err != nil {
			t.Fatalf("聚类失败: %v", err)
		}

		for _, node := range g.Nodes() {
			level := levelOf[node.ID]
			for id := range node.ClusterInfo {
				if levelOf[id] != level {
					t.Fatalf("复合任务 %d 折叠了不同层级的任务 %d", node.ID, id)
				}
			}
			n := perLevel[level]
			if n <= k {
				if len(node.ClusterInfo) != 1 {
					t.Fatalf("层级 %d 只有 %d 个任务却被聚类", level, n)
				}
				continue
			}
			if bound := (n + k - 1) / k; len(node.ClusterInfo) > bound {
				t.Fatalf("复合任务 %d 折叠了 %d 个任务，上限 %d", node.ID, len(node.ClusterInfo), bound)
			}
		}
	})
}

// TestWastageProperty 资源浪费非负；所有任务核数相同时为0
func TestWastageProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("wastage is non-negative", prop.ForAll(
		func(cores []int, k int) bool {
			g, err := dag.NewWorkflowGraph(independentSpecs(cores), nil)
			if err != nil {
				return false
			}
			result, err := Run(g, HRAB(k))
			if err != nil {
				return false
			}
			return result.Wastage >= 0 && Wastage(g) == result.Wastage
		},
		gen.SliceOf(gen.IntRange(0, 16)),
		gen.IntRange(1, 5),
	))

	properties.Property("uniform cores produce zero wastage", prop.ForAll(
		func(n int, cores int, k int) bool {
			uniform := make([]int, n)
			for i := range uniform {
				uniform[i] = cores
			}
			g, err := dag.NewWorkflowGraph(independentSpecs(uniform), nil)
			if err != nil {
				return false
			}
			result, err := Run(g, HRAB(k))
			if err != nil {
				return false
			}
			return result.Wastage == 0
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 16),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}

// independentSpecs 生成互不相连的任务，执行时间取 ID
func independentSpecs(cores []int) []dag.TaskSpec {
	specs := make([]dag.TaskSpec, 0, len(cores))
	for i, c := range cores {
		specs = append(specs, dag.TaskSpec{ID: i + 1, Cost: &dag.Cost{ExecTime: float64(i + 1), Cores: c}})
	}
	return specs
}
