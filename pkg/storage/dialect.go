package storage

// Dialect SQL方言接口（对外导出）
// 封装不同数据库的SQL语法差异；占位符统一由 sqlx 的 Rebind 处理
type Dialect interface {
	// Name 返回方言名称（如 "sqlite", "mysql", "postgres"）
	Name() string

	// UpsertSQL 返回INSERT或UPDATE的SQL语句，使用 :column 形式的命名参数
	// tableName: 表名
	// columns: 列名列表
	// conflictColumn: 冲突判断列（通常是主键）
	// updateColumns: 需要更新的列（不含主键）
	UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string

	// CreateTableSQL 返回创建表的DDL语句
	CreateTableSQL(schema string) string

	// ConfigureDB 配置数据库连接（如SQLite的PRAGMA）
	// 返回需要执行的SQL语句列表
	ConfigureDB() []string

	// KeyType 返回可作为主键的字符串类型
	// SQLite/PostgreSQL: TEXT
	// MySQL: VARCHAR(64)
	KeyType() string

	// TextType 返回文本类型
	TextType() string

	// TimestampType 返回时间戳类型
	// SQLite/MySQL: DATETIME
	// PostgreSQL: TIMESTAMP
	TimestampType() string

	// FloatType 返回双精度浮点类型
	// SQLite: REAL
	// MySQL: DOUBLE
	// PostgreSQL: DOUBLE PRECISION
	FloatType() string
}
