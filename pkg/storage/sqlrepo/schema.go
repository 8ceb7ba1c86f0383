package sqlrepo

import (
	"context"
	"fmt"

	"github.com/LENAX/dag-cluster/pkg/storage"
)

const (
	tableIDAssigner   = "id_assigner"
	tableWorkflow     = "workflow"
	tableWorkflowTask = "workflow_task"

	// taskIDCounter id_assigner 中任务ID计数器的名称
	taskIDCounter = "task"
)

var (
	workflowColumns       = []string{"id", "name", "state", "links", "metadata", "create_time", "update_time"}
	workflowUpdateColumns = []string{"name", "state", "links", "metadata", "update_time"}
	workflowTaskColumns   = []string{"workflow_id", "id", "name", "fire_tasks", "exec_time", "cores"}
)

// schemaStatements 按方言生成建表语句，每条语句单独执行
func schemaStatements(d storage.Dialect) []string {
	idAssigner := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name %s PRIMARY KEY,
	next_id INTEGER NOT NULL
)`, tableIDAssigner, d.KeyType())

	wf := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	name %s NOT NULL,
	state %s NOT NULL,
	links %s NOT NULL,
	metadata %s,
	create_time %s NOT NULL,
	update_time %s NOT NULL
)`, tableWorkflow, d.KeyType(), d.TextType(), d.KeyType(), d.TextType(), d.TextType(),
		d.TimestampType(), d.TimestampType())

	task := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	workflow_id %s NOT NULL,
	id INTEGER NOT NULL,
	name %s NOT NULL,
	fire_tasks %s NOT NULL,
	exec_time %s,
	cores INTEGER,
	PRIMARY KEY (workflow_id, id)
)`, tableWorkflowTask, d.KeyType(), d.TextType(), d.TextType(), d.FloatType())

	stmts := []string{idAssigner, wf, task}
	for i, s := range stmts {
		stmts[i] = d.CreateTableSQL(s)
	}
	return stmts
}

// InitSchema 初始化数据库表结构（对外导出）
func (r *WorkflowRepo) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(r.dialect) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行建表SQL失败: %w", err)
		}
	}
	return nil
}
