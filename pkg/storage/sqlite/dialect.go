package sqlite

import (
	"fmt"
	"strings"

	"github.com/LENAX/dag-cluster/pkg/storage"
)

// SQLiteDialect 工作流仓库的SQLite方言（对外导出）
type SQLiteDialect struct{}

// NewSQLiteDialect 创建SQLite方言实例
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// UpsertSQL 重复保存工作流时按主键原地更新
// 只覆盖 updateColumns，create_time 等未列出的列保留首次写入的值
func (d *SQLiteDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = ":" + col
	}

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s)",
		tableName, strings.Join(columns, ", "), strings.Join(values, ", "), conflictColumn)
	if len(updateColumns) == 0 {
		return insert + " DO NOTHING"
	}

	sets := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		sets[i] = col + " = excluded." + col
	}
	return insert + " DO UPDATE SET " + strings.Join(sets, ", ")
}

// CreateTableSQL schema 中的类型已由本方言给出，无需改写
func (d *SQLiteDialect) CreateTableSQL(schema string) string {
	return schema
}

// ConfigureDB 聚类时读源工作流与写结果交替进行，开启WAL并放宽锁等待
func (d *SQLiteDialect) ConfigureDB() []string {
	return []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=10000;",
		"PRAGMA synchronous=NORMAL;",
	}
}

// KeyType 工作流ID为UUID字符串
func (d *SQLiteDialect) KeyType() string {
	return "TEXT"
}

// TextType links/metadata/fire_tasks 以JSON文本保存
func (d *SQLiteDialect) TextType() string {
	return "TEXT"
}

func (d *SQLiteDialect) TimestampType() string {
	return "DATETIME"
}

// FloatType 任务代价中的执行时间
func (d *SQLiteDialect) FloatType() string {
	return "REAL"
}

var _ storage.Dialect = (*SQLiteDialect)(nil)
