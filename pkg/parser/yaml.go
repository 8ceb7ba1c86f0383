package parser

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
)

// yamlDefinition YAML 任务表
//
//	swarmflow_name: demo
//	fireworks:
//	  1: [10, 2, [2, 3]]
//	  2: [5, 1, []]
//	scripts:
//	  1: "echo hello"
type yamlDefinition struct {
	Name    string          `yaml:"swarmflow_name"`
	Jobs    map[int]yamlJob `yaml:"fireworks"`
	Scripts map[int]string  `yaml:"scripts"`
}

// yamlJob [exec_time, cores, [children]]
type yamlJob struct {
	ExecTime float64
	Cores    int
	Children []int
}

// UnmarshalYAML 解析 [exec_time, cores, [children]] 形式的任务行，children 可省略或为 null
func (j *yamlJob) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.SequenceNode || len(node.Content) < 2 || len(node.Content) > 3 {
		return fmt.Errorf("第 %d 行: 任务必须是 [exec_time, cores, [children]]: %w", node.Line, types.ErrInvalidInput)
	}
	if err := node.Content[0].Decode(&j.ExecTime); err != nil {
		return fmt.Errorf("第 %d 行: 解析 exec_time 失败: %w", node.Line, err)
	}
	if err := node.Content[1].Decode(&j.Cores); err != nil {
		return fmt.Errorf("第 %d 行: 解析 cores 失败: %w", node.Line, err)
	}
	if len(node.Content) == 3 {
		if err := node.Content[2].Decode(&j.Children); err != nil {
			return fmt.Errorf("第 %d 行: 解析 children 失败: %w", node.Line, err)
		}
	}
	return nil
}

// ParseYAML 解析 YAML 任务表
func (p *Parser) ParseYAML(data []byte) (*workflow.Workflow, error) {
	var def yamlDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("解析YAML工作流定义失败: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("swarmflow_name不能为空: %w", types.ErrInvalidInput)
	}
	if len(def.Jobs) == 0 {
		return nil, fmt.Errorf("工作流 %s 没有任何任务: %w", def.Name, types.ErrInvalidInput)
	}

	ids := make([]int, 0, len(def.Jobs))
	for id := range def.Jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	wf := workflow.NewWorkflow(def.Name)
	for _, id := range ids {
		job := def.Jobs[id]
		if job.ExecTime < 0 || job.Cores < 0 {
			return nil, fmt.Errorf("任务 %d 的代价不能为负数: %w", id, types.ErrInvalidInput)
		}
		if err := wf.AddTask(newTask(id, job.ExecTime, job.Cores, def.Scripts[id])); err != nil {
			return nil, err
		}
		if len(job.Children) > 0 {
			wf.Links[id] = append([]int(nil), job.Children...)
		}
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}
