// Package sqlite 基于 mattn/go-sqlite3 的工作流仓库
package sqlite

import (
	_ "github.com/mattn/go-sqlite3"

	"github.com/LENAX/dag-cluster/pkg/storage/sqlrepo"
)

// NewWorkflowRepoFromDSN 通过DSN创建SQLite工作流仓库（对外导出）
func NewWorkflowRepoFromDSN(dsn string) (*sqlrepo.WorkflowRepo, error) {
	return sqlrepo.Open("sqlite3", dsn, NewSQLiteDialect())
}
