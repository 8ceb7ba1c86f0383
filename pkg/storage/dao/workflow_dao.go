package dao

import (
	"database/sql"
	"time"
)

// WorkflowDAO workflow表的数据访问对象（内部使用）
type WorkflowDAO struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	State      string         `db:"state"`
	Links      string         `db:"links"`    // JSON格式存储
	Metadata   sql.NullString `db:"metadata"` // JSON格式存储
	CreateTime time.Time      `db:"create_time"`
	UpdateTime time.Time      `db:"update_time"`
}

// WorkflowTaskDAO workflow_task表的数据访问对象（内部使用）
// 未标注代价的任务 exec_time/cores 为 NULL
type WorkflowTaskDAO struct {
	WorkflowID string          `db:"workflow_id"`
	ID         int             `db:"id"`
	Name       string          `db:"name"`
	FireTasks  string          `db:"fire_tasks"` // JSON格式存储
	ExecTime   sql.NullFloat64 `db:"exec_time"`
	Cores      sql.NullInt64   `db:"cores"`
}
