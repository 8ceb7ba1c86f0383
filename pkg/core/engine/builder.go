package engine

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	internalstorage "github.com/LENAX/dag-cluster/internal/storage"
	"github.com/LENAX/dag-cluster/pkg/config"
	"github.com/LENAX/dag-cluster/pkg/core/events"
	"github.com/LENAX/dag-cluster/pkg/logger"
	"github.com/LENAX/dag-cluster/pkg/storage"
)

// EngineBuilder 引擎构建器（链式调用）
type EngineBuilder struct {
	configPath string
	repo       storage.WorkflowRepository
	logger     *zap.Logger
	bus        *events.Bus
	withBus    bool
	err        error
}

// NewEngineBuilder 创建引擎构建器（入口），configPath 为空时使用默认配置
func NewEngineBuilder(configPath string) *EngineBuilder {
	return &EngineBuilder{configPath: configPath}
}

// WithRepository 使用外部提供的仓库，不再按配置创建数据库连接（链式）
// 外部仓库的生命周期由调用方管理
func (b *EngineBuilder) WithRepository(repo storage.WorkflowRepository) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if repo == nil {
		b.err = errors.New("workflow repository is nil")
		return b
	}
	b.repo = repo
	return b
}

// WithLogger 使用外部提供的日志记录器，不再按配置创建（链式）
func (b *EngineBuilder) WithLogger(l *zap.Logger) *EngineBuilder {
	if b.err != nil {
		return b
	}
	if l == nil {
		b.err = errors.New("logger is nil")
		return b
	}
	b.logger = l
	return b
}

// WithEventBus 启用事件总线（链式），bus 为 nil 时由引擎创建并在 Close 时关闭
func (b *EngineBuilder) WithEventBus(bus *events.Bus) *EngineBuilder {
	if b.err != nil {
		return b
	}
	b.withBus = true
	b.bus = bus
	return b
}

// Build 构建引擎实例（最终步骤）
func (b *EngineBuilder) Build() (*Engine, error) {
	if b.err != nil {
		return nil, b.err
	}

	// 1. 加载配置
	cfg := config.Default()
	if b.configPath != "" {
		loaded, err := config.Load(b.configPath)
		if err != nil {
			return nil, fmt.Errorf("load cluster config failed: %w", err)
		}
		cfg = loaded
	}

	// 2. 日志
	log := b.logger
	if log == nil {
		log = logger.New(&cfg.DagCluster.Log)
	}
	log = log.With(zap.String("instance", cfg.DagCluster.General.InstanceName))

	var closers []func() error

	// 3. 存储
	repo := b.repo
	if repo == nil {
		db := cfg.DagCluster.Storage.Database
		factory, err := internalstorage.NewDatabaseFactory(db.Type, db.DSN, internalstorage.PoolOptions{
			MaxOpenConns:    db.MaxOpenConns,
			MaxIdleConns:    db.MaxIdleConns,
			ConnMaxLifetime: db.ConnMaxLifetime,
			ConnMaxIdleTime: db.ConnMaxIdleTime,
		})
		if err != nil {
			return nil, fmt.Errorf("init storage failed: %w", err)
		}
		repo = factory.WorkflowRepository()
		closers = append(closers, factory.Close)
	}

	// 4. 事件总线
	bus := b.bus
	if b.withBus && bus == nil {
		bus = events.NewBus(logger.NewWatermillAdapter(log))
		closers = append(closers, bus.Close)
	}

	engine, err := NewEngine(cfg, repo, bus, log)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}
	engine.closers = closers

	log.Info("聚类引擎已创建",
		zap.String("database", cfg.GetDatabaseType()),
		zap.String("algorithm", cfg.DagCluster.Clustering.Algorithm),
		zap.Bool("events", bus != nil))
	return engine, nil
}
