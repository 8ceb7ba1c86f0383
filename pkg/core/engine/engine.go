// Package engine 编排一次完整的聚类：加载工作流、聚类、物化复合任务、保存并归档源工作流
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/LENAX/dag-cluster/pkg/config"
	"github.com/LENAX/dag-cluster/pkg/core/cluster"
	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/events"
	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
	"github.com/LENAX/dag-cluster/pkg/parser"
	"github.com/LENAX/dag-cluster/pkg/storage"
)

// 聚类后工作流 Metadata 中的键
const (
	MetaSourceWorkflow = "source_workflow"
	MetaAlgorithm      = "algorithm"
	MetaWastage        = "wastage"
	MetaRunID          = "run_id"
)

// Report 一次聚类调用的结果（对外导出）
type Report struct {
	RunID            string
	SourceWorkflowID string
	// Workflow 已保存的聚类后工作流
	Workflow   *workflow.Workflow
	Algorithm  cluster.Algorithm
	Wastage    float64
	Composites int
}

// Engine 聚类编排引擎（对外导出）
type Engine struct {
	cfg     *config.ClusterConfig
	repo    storage.WorkflowRepository
	parser  *parser.Parser
	bus     *events.Bus
	logger  *zap.Logger
	closers []func() error
}

// NewEngine 使用给定的仓库创建引擎，cfg 为 nil 时使用默认配置，bus 可以为 nil
func NewEngine(cfg *config.ClusterConfig, repo storage.WorkflowRepository, bus *events.Bus, logger *zap.Logger) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("工作流仓库不能为空: %w", types.ErrConfiguration)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		repo:   repo,
		parser: parser.New(parser.WithRuntimeScale(cfg.DagCluster.Clustering.RuntimeScale)),
		bus:    bus,
		logger: logger,
	}, nil
}

// Repository 返回引擎使用的工作流仓库
func (e *Engine) Repository() storage.WorkflowRepository {
	return e.repo
}

// EventBus 返回事件总线，未配置时为 nil
func (e *Engine) EventBus() *events.Bus {
	return e.bus
}

// DefaultAlgorithm 配置中的聚类算法
func (e *Engine) DefaultAlgorithm() (cluster.Algorithm, error) {
	return e.cfg.Algorithm()
}

// ImportWorkflow 解析工作流定义文件并以新分配的任务ID保存
func (e *Engine) ImportWorkflow(ctx context.Context, path string) (*workflow.Workflow, error) {
	wf, err := e.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	oldNew, err := e.repo.AddWorkflow(ctx, wf, true)
	if err != nil {
		return nil, fmt.Errorf("保存工作流 %s 失败: %w", wf.Name, err)
	}
	e.logger.Info("导入工作流",
		zap.String("workflow_id", wf.ID),
		zap.String("name", wf.Name),
		zap.Int("tasks", len(wf.Tasks)),
		zap.Any("id_map", oldNew))
	return wf, nil
}

// ClusterWorkflowByName 聚类最新创建的同名工作流
func (e *Engine) ClusterWorkflowByName(ctx context.Context, name string, algo cluster.Algorithm) (*Report, error) {
	wf, err := e.repo.GetWorkflowByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return e.ClusterWorkflow(ctx, wf.ID, algo)
}

// ClusterWorkflow 聚类指定工作流（对外导出）
// 聚类后的工作流以 <name>-<algorithm> 保存，源工作流被标记为 ARCHIVED；
// 每次调用发布 cluster.started 以及 cluster.completed 或 cluster.failed 事件
func (e *Engine) ClusterWorkflow(ctx context.Context, workflowID string, algo cluster.Algorithm) (*Report, error) {
	runID := uuid.NewString()
	log := e.logger.With(
		zap.String("run_id", runID),
		zap.String("workflow_id", workflowID),
		zap.String("algorithm", algo.String()))

	e.publish(events.NewClusterEvent(events.EventClusterStarted, runID, workflowID, algo.String()))

	report, err := e.clusterWorkflow(ctx, runID, workflowID, algo, log)
	if err != nil {
		log.Error("聚类失败", zap.Error(err))
		e.publish(events.NewClusterEvent(events.EventClusterFailed, runID, workflowID, algo.String()).WithError(err))
		return nil, err
	}

	done := events.NewClusterEvent(events.EventClusterCompleted, runID, workflowID, algo.String())
	done.ClusteredWorkflowID = report.Workflow.ID
	done.Wastage = report.Wastage
	done.Composites = report.Composites
	e.publish(done)
	return report, nil
}

func (e *Engine) clusterWorkflow(ctx context.Context, runID, workflowID string, algo cluster.Algorithm, log *zap.Logger) (*Report, error) {
	if err := algo.Validate(); err != nil {
		return nil, err
	}
	source, err := e.repo.GetWorkflow(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	g, err := dag.NewWorkflowGraph(source.TaskSpecs(), source.Links)
	if err != nil {
		return nil, fmt.Errorf("构建工作流 %s 的任务图失败: %w", source.Name, err)
	}
	result, err := cluster.Run(g, algo, cluster.WithLogger(log))
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("聚类后的任务图不一致: %w", err)
	}

	clustered, err := e.materialize(ctx, source, g)
	if err != nil {
		return nil, err
	}
	clustered.Name = fmt.Sprintf("%s-%s", source.Name, algo.Kind)
	clustered.Metadata[MetaSourceWorkflow] = source.ID
	clustered.Metadata[MetaAlgorithm] = algo.String()
	clustered.Metadata[MetaWastage] = strconv.FormatFloat(result.Wastage, 'f', -1, 64)
	clustered.Metadata[MetaRunID] = runID

	if _, err := e.repo.AddWorkflow(ctx, clustered, false); err != nil {
		return nil, fmt.Errorf("保存聚类后的工作流失败: %w", err)
	}
	if err := e.repo.UpdateWorkflowState(ctx, source.ID, workflow.StateArchived); err != nil {
		return nil, fmt.Errorf("归档源工作流失败: %w", err)
	}

	log.Info("聚类结果已保存",
		zap.String("clustered_workflow_id", clustered.ID),
		zap.Int("tasks", len(clustered.Tasks)),
		zap.Int("composites", result.Composites),
		zap.Float64("wastage", result.Wastage))

	return &Report{
		RunID:            runID,
		SourceWorkflowID: source.ID,
		Workflow:         clustered,
		Algorithm:        algo,
		Wastage:          result.Wastage,
		Composites:       result.Composites,
	}, nil
}

// materialize 把聚类后的图还原为具体工作流
// 复合节点获得新的任务ID，任务体按 SequentialIDs/ParallelIDs 拼接；单一节点沿用原任务
func (e *Engine) materialize(ctx context.Context, source *workflow.Workflow, g *dag.WorkflowGraph) (*workflow.Workflow, error) {
	nodes := g.Nodes()
	links := g.Links()

	composites := make([]*dag.Task, 0)
	live := make(map[int]bool, len(nodes))
	for _, node := range nodes {
		live[node.ID] = true
		if node.IsComposite() {
			composites = append(composites, node)
		}
	}

	freshIDs := make(map[int]int, len(composites))
	if len(composites) > 0 {
		ids, err := e.repo.NextTaskIDs(ctx, len(composites))
		if err != nil {
			return nil, fmt.Errorf("为复合任务分配ID失败: %w", err)
		}
		for i, node := range composites {
			if live[ids[i]] {
				return nil, fmt.Errorf("新分配的任务ID %d 与工作流 %s 中的任务冲突: %w", ids[i], source.Name, types.ErrDuplicateID)
			}
			freshIDs[node.ID] = ids[i]
		}
	}

	clustered := workflow.NewWorkflow(source.Name)
	for _, node := range nodes {
		newID, composite := freshIDs[node.ID]
		if !composite {
			original, err := source.GetTask(node.ID)
			if err != nil {
				return nil, err
			}
			kept := *original
			if err := clustered.AddTask(&kept); err != nil {
				return nil, err
			}
			continue
		}

		bodies, err := workflow.Materialize(node, source.GetTask)
		if err != nil {
			return nil, fmt.Errorf("物化复合任务 %d 失败: %w", node.ID, err)
		}
		if err := clustered.AddTask(&workflow.Task{
			ID:        newID,
			Name:      fmt.Sprintf("cluster%d", newID),
			FireTasks: bodies,
			Cost:      &dag.Cost{ExecTime: node.ExecTime(), Cores: node.Cores()},
		}); err != nil {
			return nil, err
		}
		links = workflow.RelinkParentChild(links, node.ID, newID)
	}
	clustered.Links = links
	return clustered, nil
}

func (e *Engine) publish(event *events.ClusterEvent) {
	if e.bus == nil {
		return
	}
	if err := e.bus.Publish(event); err != nil {
		e.logger.Warn("发布聚类事件失败", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

// Close 释放引擎持有的资源（仓库连接、事件总线）
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	_ = e.logger.Sync()
	return errors.Join(errs...)
}
