package dag

import (
	"fmt"
	"sort"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"

	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// WorkflowGraph 工作流DAG（对外导出）
// 以ID为键的任务arena，边存储为ID切片；links 为派生的正向邻接表 parent -> children。
// 不是并发安全的：同一实例不能被多个聚类调用同时使用。
type WorkflowGraph struct {
	nodes  map[int]*Task
	links  map[int][]int
	height int
}

// NewWorkflowGraph 从带代价的任务列表和父->子边表构建DAG（对外导出）
// specs: 任务列表（ID必须唯一）
// links: 父任务ID -> 子任务ID列表
func NewWorkflowGraph(specs []TaskSpec, links map[int][]int) (*WorkflowGraph, error) {
	g := &WorkflowGraph{
		nodes: make(map[int]*Task, len(specs)),
		links: make(map[int][]int),
	}

	ids := make([]int, 0, len(specs))
	for _, spec := range specs {
		var cost *Cost
		if spec.Cost != nil {
			c := *spec.Cost
			cost = &c
		}
		if err := g.AddNode(spec.ID, NewTask(spec.ID, cost)); err != nil {
			return nil, err
		}
		ids = append(ids, spec.ID)
	}
	sort.Ints(ids)

	normalized := make(map[int][]int, len(links))
	for parent, children := range links {
		if _, ok := g.nodes[parent]; !ok {
			return nil, fmt.Errorf("边表引用了不存在的父任务 %d: %w", parent, types.ErrNotFound)
		}
		for _, child := range children {
			if _, ok := g.nodes[child]; !ok {
				return nil, fmt.Errorf("边表引用了不存在的子任务 %d: %w", child, types.ErrNotFound)
			}
		}
		if len(children) > 0 {
			normalized[parent] = slice.Unique(children)
		}
	}

	if err := checkAcyclic(ids, normalized); err != nil {
		return nil, err
	}

	// 按父ID升序挂边，保证后续遍历顺序确定
	parents := maputil.Keys(normalized)
	sort.Ints(parents)
	for _, parent := range parents {
		for _, child := range normalized[parent] {
			g.nodes[parent].AddChild(child)
			g.nodes[child].AddParent(parent)
		}
	}

	if err := g.UpdateHeight(); err != nil {
		return nil, err
	}
	return g, nil
}

// Height 最大层级
func (g *WorkflowGraph) Height() int {
	return g.height
}

// Len 节点数量
func (g *WorkflowGraph) Len() int {
	return len(g.nodes)
}

// GetNode 获取节点
func (g *WorkflowGraph) GetNode(id int) (*Task, bool) {
	t, ok := g.nodes[id]
	return t, ok
}

// Nodes 返回所有节点（按ID升序）
func (g *WorkflowGraph) Nodes() []*Task {
	ids := maputil.Keys(g.nodes)
	sort.Ints(ids)
	result := make([]*Task, 0, len(ids))
	for _, id := range ids {
		result = append(result, g.nodes[id])
	}
	return result
}

// GetTasksAtLevel 返回指定层级的节点（按ID升序），层级不存在时返回空切片
func (g *WorkflowGraph) GetTasksAtLevel(level int) []*Task {
	result := make([]*Task, 0)
	for _, t := range g.Nodes() {
		if t.Level == level {
			result = append(result, t)
		}
	}
	return result
}

// Links 返回当前正向邻接表的副本
func (g *WorkflowGraph) Links() map[int][]int {
	result := make(map[int][]int, len(g.links))
	for parent, children := range g.links {
		result[parent] = append([]int(nil), children...)
	}
	return result
}

// AddNode 添加节点，ID已存在时返回 ErrDuplicateID
func (g *WorkflowGraph) AddNode(id int, t *Task) error {
	if _, exists := g.nodes[id]; exists {
		return fmt.Errorf("任务ID %d 已存在: %w", id, types.ErrDuplicateID)
	}
	g.nodes[id] = t
	return nil
}

// DeleteNode 删除节点，ID不存在时返回 ErrNotFound
// 不会修正其他节点上悬挂的父/子引用，调用方需要先完成重连
func (g *WorkflowGraph) DeleteNode(id int) error {
	if _, exists := g.nodes[id]; !exists {
		return fmt.Errorf("任务ID %d 不存在: %w", id, types.ErrNotFound)
	}
	delete(g.nodes, id)
	return nil
}

// UpdateLinks 根据当前节点的子节点集合重建正向邻接表，批量结构修改后必须调用
func (g *WorkflowGraph) UpdateLinks() {
	links := make(map[int][]int)
	for id, t := range g.nodes {
		if len(t.Children) > 0 {
			links[id] = append([]int(nil), t.Children...)
		}
	}
	g.links = links
}

// UpdateHeight 重建邻接表并重新推导每个节点的层级和图高度
func (g *WorkflowGraph) UpdateHeight() error {
	g.UpdateLinks()
	levels, err := computeLevels(maputil.Keys(g.nodes), g.links)
	if err != nil {
		return err
	}
	height := 0
	for id, t := range g.nodes {
		t.Level = levels[id]
		if t.Level > height {
			height = t.Level
		}
	}
	g.height = height
	return nil
}

// LevelOf 基于当前边表计算节点层级
func (g *WorkflowGraph) LevelOf(id int) (int, error) {
	if _, exists := g.nodes[id]; !exists {
		return 0, fmt.Errorf("任务ID %d 不存在: %w", id, types.ErrNotFound)
	}
	levels, err := computeLevels(maputil.Keys(g.nodes), g.links)
	if err != nil {
		return 0, err
	}
	return levels[id], nil
}

// Contract 将 memberIDs 折叠进 composite（对外导出）
// 合并成员的父/子节点（去重，排除成员自身）到 composite，改写所有相邻节点的边，
// 删除成员节点；composite 不在图中时以 composite.ID 插入，已在图中时视为吸收。
func (g *WorkflowGraph) Contract(composite *Task, memberIDs []int) error {
	members := make(map[int]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		if _, exists := g.nodes[id]; !exists {
			return fmt.Errorf("待折叠的任务ID %d 不存在: %w", id, types.ErrNotFound)
		}
		members[id] = struct{}{}
	}
	excluded := func(id int) bool {
		_, isMember := members[id]
		return isMember || id == composite.ID
	}

	live, absorbing := g.nodes[composite.ID]
	absorbing = absorbing && live == composite
	if !absorbing {
		if _, clash := g.nodes[composite.ID]; clash {
			if _, isMember := members[composite.ID]; !isMember {
				return fmt.Errorf("复合任务ID %d 已被其他任务占用: %w", composite.ID, types.ErrDuplicateID)
			}
		}
	}

	parents := make([]int, 0)
	children := make([]int, 0)
	if absorbing {
		parents = append(parents, composite.Parents...)
		children = append(children, composite.Children...)
	}
	for _, id := range memberIDs {
		t := g.nodes[id]
		for _, p := range t.Parents {
			if !excluded(p) && !slice.Contain(parents, p) {
				parents = append(parents, p)
			}
		}
		for _, c := range t.Children {
			if !excluded(c) && !slice.Contain(children, c) {
				children = append(children, c)
			}
		}
	}

	for _, p := range parents {
		pt := g.nodes[p]
		if pt == nil {
			continue
		}
		for id := range members {
			pt.RemoveChild(id)
		}
		pt.AddChild(composite.ID)
	}
	for _, c := range children {
		ct := g.nodes[c]
		if ct == nil {
			continue
		}
		for id := range members {
			ct.RemoveParent(id)
		}
		ct.AddParent(composite.ID)
	}

	for _, id := range memberIDs {
		if absorbing && id == composite.ID {
			continue
		}
		if err := g.DeleteNode(id); err != nil {
			return err
		}
	}

	composite.Parents = parents
	composite.Children = children
	if absorbing {
		return nil
	}
	return g.AddNode(composite.ID, composite)
}

// Validate 校验边对称性：p 在 c.Parents 中当且仅当 c 在 p.Children 中
func (g *WorkflowGraph) Validate() error {
	for id, t := range g.nodes {
		for _, p := range t.Parents {
			pt, ok := g.nodes[p]
			if !ok {
				return fmt.Errorf("任务 %d 的父任务 %d 不存在: %w", id, p, types.ErrNotFound)
			}
			if !pt.HasChild(id) {
				return fmt.Errorf("%w: 任务 %d 的父任务 %d 未将其列为子任务", types.ErrInvalidInput, id, p)
			}
		}
		for _, c := range t.Children {
			ct, ok := g.nodes[c]
			if !ok {
				return fmt.Errorf("任务 %d 的子任务 %d 不存在: %w", id, c, types.ErrNotFound)
			}
			if !ct.HasParent(id) {
				return fmt.Errorf("%w: 任务 %d 的子任务 %d 未将其列为父任务", types.ErrInvalidInput, id, c)
			}
		}
	}
	return nil
}

// Clone 深拷贝整个图，聚类失败时原图不受影响
func (g *WorkflowGraph) Clone() *WorkflowGraph {
	c := &WorkflowGraph{
		nodes:  make(map[int]*Task, len(g.nodes)),
		links:  g.Links(),
		height: g.height,
	}
	for id, t := range g.nodes {
		c.nodes[id] = t.clone()
	}
	return c
}
