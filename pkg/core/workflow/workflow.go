package workflow

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// State 工作流状态（对外导出）
type State string

const (
	// StateReady 可以被聚类或交给执行后端
	StateReady State = "READY"
	// StateArchived 已被聚类结果替代
	StateArchived State = "ARCHIVED"
)

// Task 具体工作流中的任务（对外导出）
// FireTasks 为任务体，按顺序执行；Cost 为 nil 表示未标注代价
type Task struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	FireTasks []FireTask `json:"fire_tasks"`
	Cost      *dag.Cost  `json:"cost,omitempty"`
}

// Workflow 具体工作流（对外导出）
// Links 为父任务ID -> 子任务ID列表
type Workflow struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	State      State             `json:"state"`
	Tasks      []*Task           `json:"tasks"`
	Links      map[int][]int     `json:"links"`
	Metadata   map[string]string `json:"metadata"`
	CreateTime time.Time         `json:"create_time"`
	UpdateTime time.Time         `json:"update_time"`
}

// NewWorkflow 创建Workflow实例（对外导出）
func NewWorkflow(name string) *Workflow {
	now := time.Now()
	return &Workflow{
		ID:         uuid.NewString(),
		Name:       name,
		State:      StateReady,
		Tasks:      make([]*Task, 0),
		Links:      make(map[int][]int),
		Metadata:   make(map[string]string),
		CreateTime: now,
		UpdateTime: now,
	}
}

// AddTask 添加任务，ID已存在时返回 ErrDuplicateID
func (w *Workflow) AddTask(t *Task) error {
	if t == nil {
		return fmt.Errorf("任务不能为空: %w", types.ErrInvalidInput)
	}
	if _, err := w.GetTask(t.ID); err == nil {
		return fmt.Errorf("任务ID %d 已存在: %w", t.ID, types.ErrDuplicateID)
	}
	w.Tasks = append(w.Tasks, t)
	return nil
}

// GetTask 按ID获取任务
func (w *Workflow) GetTask(id int) (*Task, error) {
	for _, t := range w.Tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("工作流 %s 中不存在任务 %d: %w", w.Name, id, types.ErrNotFound)
}

// TaskSpecs 转换为构图输入
func (w *Workflow) TaskSpecs() []dag.TaskSpec {
	specs := make([]dag.TaskSpec, 0, len(w.Tasks))
	for _, t := range w.Tasks {
		specs = append(specs, dag.TaskSpec{ID: t.ID, Cost: t.Cost})
	}
	return specs
}

// RootIDs 从未作为子任务出现的任务ID（升序）
func (w *Workflow) RootIDs() []int {
	isChild := make(map[int]bool)
	for _, children := range w.Links {
		for _, c := range children {
			isChild[c] = true
		}
	}
	roots := make([]int, 0)
	for _, t := range w.Tasks {
		if !isChild[t.ID] {
			roots = append(roots, t.ID)
		}
	}
	sort.Ints(roots)
	return roots
}

// Validate 校验任务ID唯一且边表只引用已知任务
func (w *Workflow) Validate() error {
	known := make(map[int]bool, len(w.Tasks))
	for _, t := range w.Tasks {
		if known[t.ID] {
			return fmt.Errorf("工作流 %s 中任务ID %d 重复: %w", w.Name, t.ID, types.ErrDuplicateID)
		}
		known[t.ID] = true
	}
	for parent, children := range w.Links {
		if !known[parent] {
			return fmt.Errorf("工作流 %s 的边表引用了未知任务 %d: %w", w.Name, parent, types.ErrNotFound)
		}
		for _, c := range children {
			if !known[c] {
				return fmt.Errorf("工作流 %s 的边表引用了未知任务 %d: %w", w.Name, c, types.ErrNotFound)
			}
		}
	}
	return nil
}
