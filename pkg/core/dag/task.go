package dag

import (
	"sort"

	"github.com/duke-git/lancet/v2/maputil"
	"github.com/duke-git/lancet/v2/slice"
)

// Cost 任务代价（对外导出）
// ExecTime: 执行时间（秒），Cores: 所需核数
type Cost struct {
	ExecTime float64 `json:"exec_time" yaml:"exec_time"`
	Cores    int     `json:"cores" yaml:"cores"`
}

// ClusterSpace 复合任务剩余可容纳空间（对外导出）
// 仅对WPA成对聚类产生的复合任务有意义
type ClusterSpace struct {
	Runtime float64 `json:"runtime"`
	Cores   int     `json:"cores"`
}

// TaskSpec 构图输入行（对外导出）
// Cost 为 nil 表示尚未标注代价，按 0/0 处理
type TaskSpec struct {
	ID   int
	Cost *Cost
}

// Task 图节点（对外导出）
// 可以是原始任务，也可以是聚类产生的复合任务。
// Parents/Children 存储的是节点ID（有序、去重），节点生命周期由 WorkflowGraph 管理。
type Task struct {
	ID       int
	Level    int
	Cost     *Cost
	Assigned bool

	NormalizedCores   float64
	NormalizedRuntime float64

	Parents  []int
	Children []int

	// ClusterInfo 原始任务ID -> 原始代价
	ClusterInfo map[int]Cost
	// SequentialIDs 需要顺序执行的ID；负数为 ParallelIDs 中的分组键
	SequentialIDs []int
	// ParallelIDs 分组键（负数） -> 需要并发执行的ID
	ParallelIDs  map[int][]int
	ClusterSpace *ClusterSpace
}

// NewTask 创建任务节点，ClusterInfo 默认为 {id: cost}
func NewTask(id int, cost *Cost) *Task {
	t := &Task{
		ID:          id,
		Cost:        cost,
		Parents:     make([]int, 0),
		Children:    make([]int, 0),
		ClusterInfo: make(map[int]Cost),
		ParallelIDs: make(map[int][]int),
	}
	t.ClusterInfo[id] = t.costOrZero()
	return t
}

// NewCompositeTask 创建复合任务节点，ClusterInfo 由调用方填充
func NewCompositeTask(id, level int, cost Cost) *Task {
	return &Task{
		ID:          id,
		Level:       level,
		Cost:        &cost,
		Parents:     make([]int, 0),
		Children:    make([]int, 0),
		ClusterInfo: make(map[int]Cost),
		ParallelIDs: make(map[int][]int),
	}
}

func (t *Task) costOrZero() Cost {
	if t.Cost == nil {
		return Cost{}
	}
	return *t.Cost
}

// ExecTime 执行时间，未标注代价时为0
func (t *Task) ExecTime() float64 {
	if t.Cost == nil {
		return 0
	}
	return t.Cost.ExecTime
}

// Cores 所需核数，未标注代价时为0
func (t *Task) Cores() int {
	if t.Cost == nil {
		return 0
	}
	return t.Cost.Cores
}

// IsComposite 是否折叠了多个原始任务
func (t *Task) IsComposite() bool {
	return len(t.ClusterInfo) > 1
}

// FoldedIDs 返回 ClusterInfo 中的原始任务ID（升序）
func (t *Task) FoldedIDs() []int {
	ids := maputil.Keys(t.ClusterInfo)
	sort.Ints(ids)
	return ids
}

// MergeClusterInfo 将 other 的 ClusterInfo 并入当前任务
func (t *Task) MergeClusterInfo(other *Task) {
	for id, c := range other.ClusterInfo {
		t.ClusterInfo[id] = c
	}
}

// AddParent 添加父节点（已存在则忽略）
func (t *Task) AddParent(id int) {
	if !slice.Contain(t.Parents, id) {
		t.Parents = append(t.Parents, id)
	}
}

// AddChild 添加子节点（已存在则忽略）
func (t *Task) AddChild(id int) {
	if !slice.Contain(t.Children, id) {
		t.Children = append(t.Children, id)
	}
}

// RemoveParent 移除父节点
func (t *Task) RemoveParent(id int) {
	t.Parents = removeID(t.Parents, id)
}

// RemoveChild 移除子节点
func (t *Task) RemoveChild(id int) {
	t.Children = removeID(t.Children, id)
}

// HasParent 是否以 id 为父节点
func (t *Task) HasParent(id int) bool {
	return slice.Contain(t.Parents, id)
}

// HasChild 是否以 id 为子节点
func (t *Task) HasChild(id int) bool {
	return slice.Contain(t.Children, id)
}

// clone 深拷贝
func (t *Task) clone() *Task {
	c := *t
	if t.Cost != nil {
		cost := *t.Cost
		c.Cost = &cost
	}
	c.Parents = append(make([]int, 0, len(t.Parents)), t.Parents...)
	c.Children = append(make([]int, 0, len(t.Children)), t.Children...)
	c.ClusterInfo = make(map[int]Cost, len(t.ClusterInfo))
	for id, info := range t.ClusterInfo {
		c.ClusterInfo[id] = info
	}
	c.SequentialIDs = append([]int(nil), t.SequentialIDs...)
	c.ParallelIDs = make(map[int][]int, len(t.ParallelIDs))
	for key, ids := range t.ParallelIDs {
		c.ParallelIDs[key] = append([]int(nil), ids...)
	}
	if t.ClusterSpace != nil {
		space := *t.ClusterSpace
		c.ClusterSpace = &space
	}
	return &c
}

func removeID(ids []int, id int) []int {
	return slice.Filter(ids, func(_ int, item int) bool {
		return item != id
	})
}
