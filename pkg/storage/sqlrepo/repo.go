// Package sqlrepo 基于 sqlx 的工作流仓库实现，各方言共用
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/core/workflow"
	"github.com/LENAX/dag-cluster/pkg/storage"
	"github.com/LENAX/dag-cluster/pkg/storage/dao"
)

// WorkflowRepo 工作流仓库的SQL实现（对外导出）
type WorkflowRepo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// NewWorkflowRepo 创建仓库实例，不会建表，需要时调用 InitSchema
func NewWorkflowRepo(db *sqlx.DB, dialect storage.Dialect) *WorkflowRepo {
	return &WorkflowRepo{db: db, dialect: dialect}
}

// Open 打开数据库连接，执行方言的连接配置并初始化表结构（对外导出）
func Open(driverName, dsn string, dialect storage.Dialect) (*WorkflowRepo, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}

	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("配置%s失败: %w", dialect.Name(), err)
		}
	}

	repo := NewWorkflowRepo(db, dialect)
	if err := repo.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// GetDB 获取底层数据库连接（对外导出）
func (r *WorkflowRepo) GetDB() *sqlx.DB {
	return r.db
}

// Dialect 当前使用的SQL方言
func (r *WorkflowRepo) Dialect() storage.Dialect {
	return r.dialect
}

// Close 关闭数据库连接（对外导出）
func (r *WorkflowRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddWorkflow 在一个事务内分配任务ID并保存工作流及其任务
func (r *WorkflowRepo) AddWorkflow(ctx context.Context, wf *workflow.Workflow, reassignAll bool) (map[int]int, error) {
	if wf == nil {
		return nil, fmt.Errorf("工作流不能为空: %w", types.ErrInvalidInput)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	need := 0
	for _, t := range wf.Tasks {
		if reassignAll || t.ID < 0 {
			need++
		}
	}
	var fresh []int
	if need > 0 {
		if fresh, err = r.nextTaskIDsInTx(ctx, tx, need); err != nil {
			return nil, err
		}
	}

	oldNew := make(map[int]int, len(wf.Tasks))
	used := make(map[int]bool, len(wf.Tasks))
	for _, t := range wf.Tasks {
		newID := t.ID
		if reassignAll || t.ID < 0 {
			newID, fresh = fresh[0], fresh[1:]
		}
		if used[newID] {
			return nil, fmt.Errorf("工作流 %s 中任务ID %d 与新分配的ID冲突: %w", wf.Name, newID, types.ErrDuplicateID)
		}
		used[newID] = true
		oldNew[t.ID] = newID
	}

	saved := withTaskIDs(wf, oldNew)
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	if saved.CreateTime.IsZero() {
		saved.CreateTime = time.Now()
	}
	saved.UpdateTime = time.Now()

	if err := r.saveWorkflowInTx(ctx, tx, saved); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}

	*wf = *saved
	return oldNew, nil
}

// withTaskIDs 返回按映射改写任务ID与边表后的副本
func withTaskIDs(wf *workflow.Workflow, oldNew map[int]int) *workflow.Workflow {
	out := *wf
	out.Tasks = make([]*workflow.Task, 0, len(wf.Tasks))
	for _, t := range wf.Tasks {
		nt := *t
		nt.ID = oldNew[t.ID]
		out.Tasks = append(out.Tasks, &nt)
	}
	out.Links = make(map[int][]int, len(wf.Links))
	for parent, children := range wf.Links {
		mapped := make([]int, 0, len(children))
		for _, c := range children {
			mapped = append(mapped, oldNew[c])
		}
		out.Links[oldNew[parent]] = mapped
	}
	return &out
}

func (r *WorkflowRepo) saveWorkflowInTx(ctx context.Context, tx *sqlx.Tx, wf *workflow.Workflow) error {
	wfDAO, err := toWorkflowDAO(wf)
	if err != nil {
		return err
	}
	upsert := r.dialect.UpsertSQL(tableWorkflow, workflowColumns, "id", workflowUpdateColumns)
	if _, err := tx.NamedExecContext(ctx, upsert, wfDAO); err != nil {
		return fmt.Errorf("保存工作流 %s 失败: %w", wf.ID, err)
	}

	deleteTasks := tx.Rebind(fmt.Sprintf(`DELETE FROM %s WHERE workflow_id = ?`, tableWorkflowTask))
	if _, err := tx.ExecContext(ctx, deleteTasks, wf.ID); err != nil {
		return fmt.Errorf("删除工作流 %s 的旧任务失败: %w", wf.ID, err)
	}

	insertTask := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (:%s)`, tableWorkflowTask,
		strings.Join(workflowTaskColumns, ", "), strings.Join(workflowTaskColumns, ", :"))
	for _, t := range wf.Tasks {
		row, err := toTaskDAO(wf.ID, t)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertTask, row); err != nil {
			return fmt.Errorf("保存任务 %d 失败: %w", t.ID, err)
		}
	}
	return nil
}

// GetWorkflow 按ID获取工作流
func (r *WorkflowRepo) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`,
		strings.Join(workflowColumns, ", "), tableWorkflow))
	var row dao.WorkflowDAO
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("工作流 %s 不存在: %w", id, types.ErrNotFound)
		}
		return nil, fmt.Errorf("查询工作流 %s 失败: %w", id, err)
	}
	return r.withTasks(ctx, &row)
}

// GetWorkflowByName 按名称获取最新创建的工作流
func (r *WorkflowRepo) GetWorkflowByName(ctx context.Context, name string) (*workflow.Workflow, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE name = ? ORDER BY create_time DESC LIMIT 1`,
		strings.Join(workflowColumns, ", "), tableWorkflow))
	var row dao.WorkflowDAO
	if err := r.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("名为 %s 的工作流不存在: %w", name, types.ErrNotFound)
		}
		return nil, fmt.Errorf("查询工作流 %s 失败: %w", name, err)
	}
	return r.withTasks(ctx, &row)
}

func (r *WorkflowRepo) withTasks(ctx context.Context, row *dao.WorkflowDAO) (*workflow.Workflow, error) {
	query := r.db.Rebind(fmt.Sprintf(`SELECT %s FROM %s WHERE workflow_id = ? ORDER BY id`,
		strings.Join(workflowTaskColumns, ", "), tableWorkflowTask))
	var taskRows []dao.WorkflowTaskDAO
	if err := r.db.SelectContext(ctx, &taskRows, query, row.ID); err != nil {
		return nil, fmt.Errorf("查询工作流 %s 的任务失败: %w", row.ID, err)
	}
	return fromDAO(row, taskRows)
}

// NextTaskIDs 取出 n 个连续的任务ID
func (r *WorkflowRepo) NextTaskIDs(ctx context.Context, n int) ([]int, error) {
	if n <= 0 {
		return nil, fmt.Errorf("申请的ID数量必须为正数，实际为 %d: %w", n, types.ErrInvalidInput)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	ids, err := r.nextTaskIDsInTx(ctx, tx, n)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("提交事务失败: %w", err)
	}
	return ids, nil
}

// nextTaskIDsInTx 先递增计数器再读回，计数器不存在时从1开始
func (r *WorkflowRepo) nextTaskIDsInTx(ctx context.Context, tx *sqlx.Tx, n int) ([]int, error) {
	update := tx.Rebind(fmt.Sprintf(`UPDATE %s SET next_id = next_id + ? WHERE name = ?`, tableIDAssigner))
	res, err := tx.ExecContext(ctx, update, n, taskIDCounter)
	if err != nil {
		return nil, fmt.Errorf("递增任务ID计数器失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("读取影响行数失败: %w", err)
	}

	first := 1
	if affected == 0 {
		insert := tx.Rebind(fmt.Sprintf(`INSERT INTO %s (name, next_id) VALUES (?, ?)`, tableIDAssigner))
		if _, err := tx.ExecContext(ctx, insert, taskIDCounter, n+1); err != nil {
			return nil, fmt.Errorf("初始化任务ID计数器失败: %w", err)
		}
	} else {
		var next int
		query := tx.Rebind(fmt.Sprintf(`SELECT next_id FROM %s WHERE name = ?`, tableIDAssigner))
		if err := tx.GetContext(ctx, &next, query, taskIDCounter); err != nil {
			return nil, fmt.Errorf("读取任务ID计数器失败: %w", err)
		}
		first = next - n
	}

	ids := make([]int, n)
	for i := range ids {
		ids[i] = first + i
	}
	return ids, nil
}

// UpdateWorkflowState 更新工作流状态
func (r *WorkflowRepo) UpdateWorkflowState(ctx context.Context, id string, state workflow.State) error {
	query := r.db.Rebind(fmt.Sprintf(`UPDATE %s SET state = ?, update_time = ? WHERE id = ?`, tableWorkflow))
	res, err := r.db.ExecContext(ctx, query, string(state), time.Now(), id)
	if err != nil {
		return fmt.Errorf("更新工作流 %s 状态失败: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("读取影响行数失败: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("工作流 %s 不存在: %w", id, types.ErrNotFound)
	}
	return nil
}

var _ storage.WorkflowRepository = (*WorkflowRepo)(nil)
