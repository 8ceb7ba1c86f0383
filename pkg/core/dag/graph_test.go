package dag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/dag-cluster/pkg/core/types"
)

func cost(execTime float64, cores int) *Cost {
	return &Cost{ExecTime: execTime, Cores: cores}
}

// diamondGraph A(1)->{B(2),C(3)}->D(4)
func diamondGraph(t *testing.T) *WorkflowGraph {
	t.Helper()
	g, err := NewWorkflowGraph(
		[]TaskSpec{
			{ID: 1, Cost: cost(5, 1)},
			{ID: 2, Cost: cost(10, 2)},
			{ID: 3, Cost: cost(20, 4)},
			{ID: 4, Cost: cost(5, 1)},
		},
		map[int][]int{1: {2, 3}, 2: {4}, 3: {4}},
	)
	require.NoError(t, err)
	return g
}

func TestNewWorkflowGraph_DiamondLevels(t *testing.T) {
	g := diamondGraph(t)

	for id, want := range map[int]int{1: 1, 2: 2, 3: 2, 4: 3} {
		level, err := g.LevelOf(id)
		require.NoError(t, err)
		assert.Equal(t, want, level, "任务 %d 的层级", id)

		node, ok := g.GetNode(id)
		require.True(t, ok)
		assert.Equal(t, want, node.Level)
	}
	assert.Equal(t, 3, g.Height())
	assert.Equal(t, 4, g.Len())

	d, _ := g.GetNode(4)
	assert.Equal(t, []int{2, 3}, d.Parents)
	require.NoError(t, g.Validate())
}

func TestNewWorkflowGraph_LongestPath(t *testing.T) {
	// 1->2->3->4 且 1->4：4 的层级取最长路径
	g, err := NewWorkflowGraph(
		[]TaskSpec{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}},
		map[int][]int{1: {2, 4}, 2: {3}, 3: {4}},
	)
	require.NoError(t, err)

	level, err := g.LevelOf(4)
	require.NoError(t, err)
	assert.Equal(t, 4, level)

	// 孤立节点为第1层
	level, err = g.LevelOf(5)
	require.NoError(t, err)
	assert.Equal(t, 1, level)
}

func TestNewWorkflowGraph_Errors(t *testing.T) {
	_, err := NewWorkflowGraph([]TaskSpec{{ID: 1}, {ID: 1}}, nil)
	assert.True(t, errors.Is(err, types.ErrDuplicateID))

	_, err = NewWorkflowGraph([]TaskSpec{{ID: 1}}, map[int][]int{1: {2}})
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = NewWorkflowGraph([]TaskSpec{{ID: 1}}, map[int][]int{9: {1}})
	assert.True(t, errors.Is(err, types.ErrNotFound))

	_, err = NewWorkflowGraph([]TaskSpec{{ID: 1}, {ID: 2}}, map[int][]int{1: {2}, 2: {1}})
	assert.True(t, errors.Is(err, types.ErrCycle))

	_, err = NewWorkflowGraph([]TaskSpec{{ID: 1}}, map[int][]int{1: {1}})
	assert.True(t, errors.Is(err, types.ErrCycle))
}

func TestNewWorkflowGraph_ManyVerticesAcyclic(t *testing.T) {
	// 顶点之间只靠ID区分，不能因序列化结果相同被判为重复
	specs := make([]TaskSpec, 0, 6)
	for id := 1; id <= 6; id++ {
		specs = append(specs, TaskSpec{ID: id, Cost: cost(1, 1)})
	}
	g, err := NewWorkflowGraph(specs, map[int][]int{1: {2, 3}, 2: {4}, 3: {4}})
	require.NoError(t, err)
	assert.Equal(t, 6, g.Len())

	require.NoError(t, checkAcyclic([]int{1, 2, 3}, map[int][]int{1: {2}, 2: {3}}))

	err = checkAcyclic([]int{1, 2, 3}, map[int][]int{1: {2}, 2: {3}, 3: {1}})
	assert.True(t, errors.Is(err, types.ErrCycle))
}

func TestNewWorkflowGraph_DuplicateChildCollapses(t *testing.T) {
	g, err := NewWorkflowGraph([]TaskSpec{{ID: 1}, {ID: 2}}, map[int][]int{1: {2, 2}})
	require.NoError(t, err)

	root, _ := g.GetNode(1)
	child, _ := g.GetNode(2)
	assert.Equal(t, []int{2}, root.Children)
	assert.Equal(t, []int{1}, child.Parents)
}

func TestNewWorkflowGraph_NilCostReadsAsZero(t *testing.T) {
	g, err := NewWorkflowGraph([]TaskSpec{{ID: 7}}, nil)
	require.NoError(t, err)

	node, _ := g.GetNode(7)
	assert.Equal(t, 0.0, node.ExecTime())
	assert.Equal(t, 0, node.Cores())
	assert.Equal(t, map[int]Cost{7: {}}, node.ClusterInfo)
}

func TestWorkflowGraph_GetTasksAtLevel(t *testing.T) {
	g := diamondGraph(t)

	level2 := g.GetTasksAtLevel(2)
	require.Len(t, level2, 2)
	assert.Equal(t, 2, level2[0].ID)
	assert.Equal(t, 3, level2[1].ID)

	// 高于图高度的层级返回空切片
	empty := g.GetTasksAtLevel(g.Height() + 1)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestWorkflowGraph_AddDeleteNode(t *testing.T) {
	g := diamondGraph(t)

	err := g.AddNode(1, NewTask(1, nil))
	assert.True(t, errors.Is(err, types.ErrDuplicateID))

	err = g.DeleteNode(42)
	assert.True(t, errors.Is(err, types.ErrNotFound))

	require.NoError(t, g.AddNode(42, NewTask(42, cost(1, 1))))
	require.NoError(t, g.DeleteNode(42))
	_, ok := g.GetNode(42)
	assert.False(t, ok)

	_, err = g.LevelOf(42)
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestWorkflowGraph_UpdateLinksIdempotent(t *testing.T) {
	g := diamondGraph(t)

	g.UpdateLinks()
	first := g.Links()
	g.UpdateLinks()
	second := g.Links()

	assert.Equal(t, first, second)
	assert.Equal(t, map[int][]int{1: {2, 3}, 2: {4}, 3: {4}}, first)
}

func TestWorkflowGraph_LinksIsCopy(t *testing.T) {
	g := diamondGraph(t)

	links := g.Links()
	links[1][0] = 99
	assert.Equal(t, []int{2, 3}, g.Links()[1])
}

func TestWorkflowGraph_ContractNewComposite(t *testing.T) {
	g := diamondGraph(t)

	composite := NewCompositeTask(2, 2, Cost{ExecTime: 30, Cores: 4})
	b, _ := g.GetNode(2)
	c, _ := g.GetNode(3)
	composite.MergeClusterInfo(b)
	composite.MergeClusterInfo(c)

	require.NoError(t, g.Contract(composite, []int{2, 3}))
	require.NoError(t, g.UpdateHeight())

	assert.Equal(t, 3, g.Len())
	_, ok := g.GetNode(3)
	assert.False(t, ok)

	root, _ := g.GetNode(1)
	sink, _ := g.GetNode(4)
	assert.Equal(t, []int{2}, root.Children)
	assert.Equal(t, []int{2}, sink.Parents)
	assert.Equal(t, []int{1}, composite.Parents)
	assert.Equal(t, []int{4}, composite.Children)
	assert.Equal(t, []int{2, 3}, composite.FoldedIDs())
	assert.Equal(t, 3, g.Height())
	require.NoError(t, g.Validate())
}

func TestWorkflowGraph_ContractAbsorb(t *testing.T) {
	// 1->3, 2->4：将 2 吸收进已存在的 1
	g, err := NewWorkflowGraph(
		[]TaskSpec{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}},
		map[int][]int{1: {3}, 2: {4}},
	)
	require.NoError(t, err)

	host, _ := g.GetNode(1)
	require.NoError(t, g.Contract(host, []int{2}))
	g.UpdateLinks()

	assert.Equal(t, []int{3, 4}, host.Children)
	four, _ := g.GetNode(4)
	assert.Equal(t, []int{1}, four.Parents)
	assert.Equal(t, 3, g.Len())
	require.NoError(t, g.Validate())
}

func TestWorkflowGraph_ContractErrors(t *testing.T) {
	g := diamondGraph(t)

	err := g.Contract(NewCompositeTask(100, 2, Cost{}), []int{2, 99})
	assert.True(t, errors.Is(err, types.ErrNotFound))

	err = g.Contract(NewCompositeTask(4, 2, Cost{}), []int{2, 3})
	assert.True(t, errors.Is(err, types.ErrDuplicateID))
}

func TestWorkflowGraph_Validate(t *testing.T) {
	g := diamondGraph(t)

	b, _ := g.GetNode(2)
	b.RemoveChild(4)
	err := g.Validate()
	assert.True(t, errors.Is(err, types.ErrInvalidInput))
}

func TestWorkflowGraph_Clone(t *testing.T) {
	g := diamondGraph(t)
	c := g.Clone()

	node, _ := c.GetNode(1)
	node.AddChild(4)
	node.Cost.ExecTime = 100
	node.ClusterInfo[99] = Cost{}

	orig, _ := g.GetNode(1)
	assert.Equal(t, []int{2, 3}, orig.Children)
	assert.Equal(t, 5.0, orig.ExecTime())
	assert.Len(t, orig.ClusterInfo, 1)
	assert.Equal(t, g.Height(), c.Height())
}
