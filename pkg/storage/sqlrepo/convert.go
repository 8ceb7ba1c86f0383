package sqlrepo

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/LENAX/dag-cluster/pkg/core/dag"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
	"github.com/LENAX/dag-cluster/pkg/storage/dao"
)

func toWorkflowDAO(wf *workflow.Workflow) (*dao.WorkflowDAO, error) {
	links := wf.Links
	if links == nil {
		links = map[int][]int{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return nil, fmt.Errorf("序列化工作流 %s 的边表失败: %w", wf.ID, err)
	}

	var metadata sql.NullString
	if len(wf.Metadata) > 0 {
		metaJSON, err := json.Marshal(wf.Metadata)
		if err != nil {
			return nil, fmt.Errorf("序列化工作流 %s 的元数据失败: %w", wf.ID, err)
		}
		metadata = sql.NullString{String: string(metaJSON), Valid: true}
	}

	return &dao.WorkflowDAO{
		ID:         wf.ID,
		Name:       wf.Name,
		State:      string(wf.State),
		Links:      string(linksJSON),
		Metadata:   metadata,
		CreateTime: wf.CreateTime,
		UpdateTime: wf.UpdateTime,
	}, nil
}

func toTaskDAO(workflowID string, t *workflow.Task) (*dao.WorkflowTaskDAO, error) {
	fireTasks := t.FireTasks
	if fireTasks == nil {
		fireTasks = []workflow.FireTask{}
	}
	fireJSON, err := json.Marshal(fireTasks)
	if err != nil {
		return nil, fmt.Errorf("序列化任务 %d 的任务体失败: %w", t.ID, err)
	}

	row := &dao.WorkflowTaskDAO{
		WorkflowID: workflowID,
		ID:         t.ID,
		Name:       t.Name,
		FireTasks:  string(fireJSON),
	}
	if t.Cost != nil {
		row.ExecTime = sql.NullFloat64{Float64: t.Cost.ExecTime, Valid: true}
		row.Cores = sql.NullInt64{Int64: int64(t.Cost.Cores), Valid: true}
	}
	return row, nil
}

func fromDAO(wfRow *dao.WorkflowDAO, taskRows []dao.WorkflowTaskDAO) (*workflow.Workflow, error) {
	wf := &workflow.Workflow{
		ID:         wfRow.ID,
		Name:       wfRow.Name,
		State:      workflow.State(wfRow.State),
		Tasks:      make([]*workflow.Task, 0, len(taskRows)),
		Links:      make(map[int][]int),
		Metadata:   make(map[string]string),
		CreateTime: wfRow.CreateTime,
		UpdateTime: wfRow.UpdateTime,
	}
	if wfRow.Links != "" {
		if err := json.Unmarshal([]byte(wfRow.Links), &wf.Links); err != nil {
			return nil, fmt.Errorf("反序列化工作流 %s 的边表失败: %w", wfRow.ID, err)
		}
	}
	if wfRow.Metadata.Valid && wfRow.Metadata.String != "" {
		if err := json.Unmarshal([]byte(wfRow.Metadata.String), &wf.Metadata); err != nil {
			return nil, fmt.Errorf("反序列化工作流 %s 的元数据失败: %w", wfRow.ID, err)
		}
	}

	for i := range taskRows {
		row := &taskRows[i]
		t := &workflow.Task{ID: row.ID, Name: row.Name}
		if err := json.Unmarshal([]byte(row.FireTasks), &t.FireTasks); err != nil {
			return nil, fmt.Errorf("反序列化任务 %d 的任务体失败: %w", row.ID, err)
		}
		if row.ExecTime.Valid || row.Cores.Valid {
			t.Cost = &dag.Cost{ExecTime: row.ExecTime.Float64, Cores: int(row.Cores.Int64)}
		}
		wf.Tasks = append(wf.Tasks, t)
	}
	return wf, nil
}
