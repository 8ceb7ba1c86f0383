// Package postgres 基于 lib/pq 的工作流仓库
package postgres

import (
	_ "github.com/lib/pq"

	"github.com/LENAX/dag-cluster/pkg/storage/sqlrepo"
)

// NewWorkflowRepoFromDSN 通过DSN创建PostgreSQL工作流仓库（对外导出）
func NewWorkflowRepoFromDSN(dsn string) (*sqlrepo.WorkflowRepo, error) {
	return sqlrepo.Open("postgres", dsn, NewPostgresDialect())
}
