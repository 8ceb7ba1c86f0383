// Package mysql 基于 go-sql-driver/mysql 的工作流仓库
package mysql

import (
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LENAX/dag-cluster/pkg/storage/sqlrepo"
)

// NewWorkflowRepoFromDSN 通过DSN创建MySQL工作流仓库（对外导出）
// DSN 中未指定 parseTime 时自动追加 parseTime=true，以便时间列扫描为 time.Time
func NewWorkflowRepoFromDSN(dsn string) (*sqlrepo.WorkflowRepo, error) {
	return sqlrepo.Open("mysql", withParseTime(dsn), NewMySQLDialect())
}

func withParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
