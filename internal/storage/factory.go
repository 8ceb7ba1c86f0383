package storage

import (
	"fmt"
	"time"

	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/storage"
	"github.com/LENAX/dag-cluster/pkg/storage/mysql"
	"github.com/LENAX/dag-cluster/pkg/storage/postgres"
	pkgsqlite "github.com/LENAX/dag-cluster/pkg/storage/sqlite"
	"github.com/LENAX/dag-cluster/pkg/storage/sqlrepo"
)

// PoolOptions 连接池参数（内部使用），零值表示不修改驱动默认值
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DatabaseFactory 数据库工厂接口（内部使用）
type DatabaseFactory interface {
	// WorkflowRepository 返回工作流仓库
	WorkflowRepository() storage.WorkflowRepository
	// Close 关闭数据库连接
	Close() error
}

// NewDatabaseFactory 创建数据库工厂（内部方法）
// dbType: 数据库类型（sqlite/mysql/postgres）
// dsn: 数据库连接字符串
func NewDatabaseFactory(dbType, dsn string, pool PoolOptions) (DatabaseFactory, error) {
	var (
		repo *sqlrepo.WorkflowRepo
		err  error
	)
	switch dbType {
	case "sqlite":
		repo, err = pkgsqlite.NewWorkflowRepoFromDSN(dsn)
	case "mysql":
		repo, err = mysql.NewWorkflowRepoFromDSN(dsn)
	case "postgres", "postgresql":
		repo, err = postgres.NewWorkflowRepoFromDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported database type: %s: %w", dbType, types.ErrConfiguration)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s repository failed: %w", dbType, err)
	}

	applyPool(repo, pool)
	return &sqlFactory{repo: repo}, nil
}

func applyPool(repo *sqlrepo.WorkflowRepo, pool PoolOptions) {
	db := repo.GetDB()
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	if pool.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	}
}

// sqlFactory 各方言共用的工厂实现（内部实现）
type sqlFactory struct {
	repo *sqlrepo.WorkflowRepo
}

func (f *sqlFactory) WorkflowRepository() storage.WorkflowRepository {
	return f.repo
}

func (f *sqlFactory) Close() error {
	return f.repo.Close()
}
