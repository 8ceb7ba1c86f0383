package workflow

import (
	"fmt"
	"strings"

	"github.com/duke-git/lancet/v2/slice"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// FireTaskType 任务体类型（对外导出）
type FireTaskType string

const (
	// ScriptTask 单条 shell 命令
	ScriptTask FireTaskType = "ScriptTask"
	// ParallelTask 多条命令后台并发执行并等待全部结束
	ParallelTask FireTaskType = "ParallelTask"
)

// FireTask 任务体（对外导出）
type FireTask struct {
	Type     FireTaskType `json:"type" yaml:"type"`
	Script   []string     `json:"script" yaml:"script"`
	UseShell bool         `json:"use_shell" yaml:"use_shell"`
}

// NewScriptTask 创建单条命令的任务体
func NewScriptTask(script string) FireTask {
	return FireTask{Type: ScriptTask, Script: []string{script}}
}

// Lookup 按ID查找原始任务
type Lookup func(id int) (*Task, error)

// CombineSequentially 按顺序拼接多个任务的任务体（对外导出）
// 任意任务没有任务体时返回 ErrInvalidInput
func CombineSequentially(tasks []*Task) ([]FireTask, error) {
	combined := make([]FireTask, 0, len(tasks))
	for _, t := range tasks {
		if len(t.FireTasks) == 0 {
			return nil, fmt.Errorf("任务 %d 没有任何任务体: %w", t.ID, types.ErrInvalidInput)
		}
		combined = append(combined, t.FireTasks...)
	}
	return combined, nil
}

// CombineParallel 把多个单命令任务合并为一个并发任务体（对外导出）
// 每个任务必须恰好包含一个 ScriptTask，生成 `s1 & s2 & ... & wait`
func CombineParallel(tasks []*Task) (FireTask, error) {
	var script strings.Builder
	for _, t := range tasks {
		if len(t.FireTasks) != 1 || t.FireTasks[0].Type != ScriptTask || len(t.FireTasks[0].Script) == 0 {
			return FireTask{}, fmt.Errorf("任务 %d 不是单一的 ScriptTask，无法并行合并: %w", t.ID, types.ErrInvalidInput)
		}
		script.WriteString(t.FireTasks[0].Script[0])
		script.WriteString(" & ")
	}
	script.WriteString("wait")
	return FireTask{Type: ParallelTask, Script: []string{script.String()}, UseShell: true}, nil
}

// Materialize 把聚类节点还原为具体的任务体（对外导出）
// 按 SequentialIDs 顺序：非负ID追加该任务的任务体，负数分组键追加 ParallelIDs 中成员合并出的并发任务体
func Materialize(node *dag.Task, lookup Lookup) ([]FireTask, error) {
	sequence := node.SequentialIDs
	if len(sequence) == 0 {
		sequence = []int{node.ID}
	}

	bodies := make([]FireTask, 0, len(sequence))
	for _, id := range sequence {
		if id >= 0 {
			t, err := lookup(id)
			if err != nil {
				return nil, err
			}
			part, err := CombineSequentially([]*Task{t})
			if err != nil {
				return nil, err
			}
			bodies = append(bodies, part...)
			continue
		}

		group, ok := node.ParallelIDs[id]
		if !ok || len(group) == 0 {
			return nil, fmt.Errorf("复合任务 %d 缺少并行分组 %d: %w", node.ID, id, types.ErrInvalidInput)
		}
		members := make([]*Task, 0, len(group))
		for _, memberID := range group {
			t, err := lookup(memberID)
			if err != nil {
				return nil, err
			}
			members = append(members, t)
		}
		parallel, err := CombineParallel(members)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, parallel)
	}
	return bodies, nil
}

// RelinkParentChild 在边表中把 oldID 替换为 newID（对外导出）
// 子任务列表中的 oldID 被替换并去重，oldID 的出边并入 newID
func RelinkParentChild(links map[int][]int, oldID, newID int) map[int][]int {
	if oldID == newID {
		return links
	}
	for parent, children := range links {
		replaced := false
		for i, c := range children {
			if c == oldID {
				children[i] = newID
				replaced = true
			}
		}
		if replaced {
			links[parent] = slice.Unique(children)
		}
	}
	if children, ok := links[oldID]; ok {
		delete(links, oldID)
		links[newID] = slice.Unique(append(links[newID], children...))
	}
	return links
}
