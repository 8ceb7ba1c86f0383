package cluster

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// Result 一次聚类的结果摘要（对外导出）
type Result struct {
	Algorithm Algorithm
	// Wastage 聚类后图的资源浪费
	Wastage float64
	// Composites 折叠了多个原始任务的节点数量
	Composites int
}

type options struct {
	logger *zap.Logger
}

// Option 聚类选项
type Option func(*options)

// WithLogger 设置日志记录器，默认不输出日志
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Run 按算法原地聚类工作流图，并计算资源浪费（对外导出）
// 失败时图处于部分修改的状态，需要保留原图的调用方应传入 g.Clone()。
// 同一个图实例不能被并发调用。
func Run(g *dag.WorkflowGraph, algo Algorithm, opts ...Option) (*Result, error) {
	o := &options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if g == nil {
		return nil, fmt.Errorf("工作流图为空: %w", types.ErrInvalidInput)
	}
	if err := algo.Validate(); err != nil {
		return nil, err
	}

	log := o.logger.With(zap.String("algorithm", algo.String()))
	log.Debug("开始聚类", zap.Int("tasks", g.Len()), zap.Int("height", g.Height()))

	var err error
	switch algo.Kind {
	case KindHRAB:
		err = runHRAB(g, algo.ClusterCount, log)
	case KindWPA:
		err = runWPA(g, log)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Algorithm: algo,
		Wastage:   Wastage(g),
	}
	for _, node := range g.Nodes() {
		if node.IsComposite() {
			result.Composites++
		}
	}
	log.Info("聚类完成",
		zap.Int("tasks", g.Len()),
		zap.Int("composites", result.Composites),
		zap.Float64("wastage", result.Wastage))
	return result, nil
}

// appendSequence 把 member 的执行顺序并入 composite
// 原始任务贡献自身ID，复合任务展开自身的 SequentialIDs 和 ParallelIDs
func appendSequence(composite, member *dag.Task) {
	composite.MergeClusterInfo(member)
	if len(member.SequentialIDs) == 0 {
		composite.SequentialIDs = append(composite.SequentialIDs, member.ID)
		return
	}
	composite.SequentialIDs = append(composite.SequentialIDs, member.SequentialIDs...)
	for key, ids := range member.ParallelIDs {
		composite.ParallelIDs[key] = append([]int(nil), ids...)
	}
}
