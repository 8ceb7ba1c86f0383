// Package parser 把工作流定义文件（YAML 任务表、Pegasus DAX）解析为带代价的工作流
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
)

// DefaultRuntimeScale DAX 中 runtime 的缩放系数
const DefaultRuntimeScale = 10.0

// Parser 工作流定义解析器（对外导出）
type Parser struct {
	runtimeScale float64
}

// Option 解析器选项
type Option func(*Parser)

// WithRuntimeScale 设置 DAX runtime 缩放系数，<=0 时忽略
func WithRuntimeScale(scale float64) Option {
	return func(p *Parser) {
		if scale > 0 {
			p.runtimeScale = scale
		}
	}
}

// New 创建解析器
func New(opts ...Option) *Parser {
	p := &Parser{runtimeScale: DefaultRuntimeScale}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ParseFile 按扩展名选择解析方式：.yaml/.yml 为任务表，.xml/.dax 为 DAX
func (p *Parser) ParseFile(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取工作流定义文件失败: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return p.ParseYAML(data)
	case ".xml", ".dax":
		return p.ParseDAX(data)
	default:
		return nil, fmt.Errorf("不支持的工作流定义格式 %q，仅支持 YAML 和 DAX: %w", path, types.ErrInvalidInput)
	}
}

// placeholderScript 没有显式命令时生成的占位脚本：记录起止时间并 sleep 对应的执行时间
func placeholderScript(id int, execTime float64) string {
	return fmt.Sprintf(
		`start=$(date +"%%T.%%3N"); echo "task %d start time ${start}"; sleep %g; end=$(date +"%%T.%%3N"); echo "task %d end time ${end}"`,
		id, execTime, id)
}

func newTask(id int, execTime float64, cores int, script string) *workflow.Task {
	if script == "" {
		script = placeholderScript(id, execTime)
	}
	return &workflow.Task{
		ID:        id,
		Name:      fmt.Sprintf("task%d", id),
		FireTasks: []workflow.FireTask{workflow.NewScriptTask(script)},
		Cost:      &dag.Cost{ExecTime: execTime, Cores: cores},
	}
}
