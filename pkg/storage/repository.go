// Package storage 工作流的持久化边界：仓库接口与SQL方言
package storage

import (
	"context"

	"github.com/LENAX/dag-cluster/pkg/core/workflow"
)

// WorkflowRepository 工作流仓库接口（对外导出）
// 工作流不存在时返回 types.ErrNotFound
type WorkflowRepository interface {
	// AddWorkflow 保存工作流及其任务，返回旧任务ID -> 新任务ID 的映射
	// reassignAll 为 true 时所有任务都分配新ID，否则只为ID为负数的占位任务分配；
	// 提交成功后 wf 的任务ID与边表会被改写为新ID
	AddWorkflow(ctx context.Context, wf *workflow.Workflow, reassignAll bool) (map[int]int, error)
	// GetWorkflow 按ID获取工作流（含任务）
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	// GetWorkflowByName 按名称获取最新创建的工作流
	GetWorkflowByName(ctx context.Context, name string) (*workflow.Workflow, error)
	// NextTaskIDs 从全局计数器中取出 n 个连续的任务ID
	NextTaskIDs(ctx context.Context, n int) ([]int, error)
	// UpdateWorkflowState 更新工作流状态
	UpdateWorkflowState(ctx context.Context, id string, state workflow.State) error
	// Close 关闭底层连接
	Close() error
}
