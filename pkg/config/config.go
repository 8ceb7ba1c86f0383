package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LENAX/dag-cluster/pkg/core/cluster"
	"github.com/LENAX/dag-cluster/pkg/core/types"
	"github.com/LENAX/dag-cluster/pkg/logger"
)

// ClusterConfig 聚类框架配置（对外导出）
type ClusterConfig struct {
	DagCluster struct {
		General struct {
			InstanceName string `yaml:"instance_name"`
			Env          string `yaml:"env"`
		} `yaml:"general"`
		Log     logger.Config `yaml:"log"`
		Storage struct {
			Database struct {
				Type            string        `yaml:"type"`
				DSN             string        `yaml:"dsn"`
				MaxOpenConns    int           `yaml:"max_open_conns"`
				MaxIdleConns    int           `yaml:"max_idle_conns"`
				ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
				ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
			} `yaml:"database"`
		} `yaml:"storage"`
		Clustering struct {
			// Algorithm hrab 或 wpa
			Algorithm    string  `yaml:"algorithm"`
			ClusterCount int     `yaml:"cluster_count"`
			RuntimeScale float64 `yaml:"runtime_scale"`
		} `yaml:"clustering"`
	} `yaml:"dag-cluster"`
}

// Load 加载配置文件，应用默认值并校验
func Load(path string) (*ClusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析YAML配置内容，应用默认值并校验
func Parse(data []byte) (*ClusterConfig, error) {
	var cfg ClusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 返回只包含默认值的配置（内存sqlite）
func Default() *ClusterConfig {
	cfg := &ClusterConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// GetDatabaseType 获取数据库类型
func (c *ClusterConfig) GetDatabaseType() string {
	return c.DagCluster.Storage.Database.Type
}

// GetDatabaseDSN 获取数据库DSN
func (c *ClusterConfig) GetDatabaseDSN() string {
	return c.DagCluster.Storage.Database.DSN
}

// Algorithm 获取配置的聚类算法
func (c *ClusterConfig) Algorithm() (cluster.Algorithm, error) {
	return cluster.ParseAlgorithm(c.DagCluster.Clustering.Algorithm, c.DagCluster.Clustering.ClusterCount)
}

// ApplyDefaults 应用默认值
func (c *ClusterConfig) ApplyDefaults() {
	// General默认值
	if c.DagCluster.General.InstanceName == "" {
		c.DagCluster.General.InstanceName = "dag-cluster"
	}
	if c.DagCluster.General.Env == "" {
		c.DagCluster.General.Env = "dev"
	}

	// Log默认值
	if c.DagCluster.Log.Level == "" {
		c.DagCluster.Log.Level = "info"
	}
	if c.DagCluster.Log.Format == "" {
		c.DagCluster.Log.Format = "console"
	}
	if c.DagCluster.Log.Output == "" {
		c.DagCluster.Log.Output = "stdout"
	}
	if c.DagCluster.Log.MaxSize <= 0 {
		c.DagCluster.Log.MaxSize = 100
	}

	// Database默认值
	if c.DagCluster.Storage.Database.Type == "" {
		c.DagCluster.Storage.Database.Type = "sqlite"
	}
	if c.DagCluster.Storage.Database.DSN == "" && c.DagCluster.Storage.Database.Type == "sqlite" {
		c.DagCluster.Storage.Database.DSN = "file::memory:?cache=shared"
	}
	if c.DagCluster.Storage.Database.MaxOpenConns <= 0 {
		c.DagCluster.Storage.Database.MaxOpenConns = 10
	}
	if c.DagCluster.Storage.Database.MaxIdleConns <= 0 {
		c.DagCluster.Storage.Database.MaxIdleConns = 5
	}
	if c.DagCluster.Storage.Database.ConnMaxLifetime <= 0 {
		c.DagCluster.Storage.Database.ConnMaxLifetime = 2 * time.Hour
	}
	if c.DagCluster.Storage.Database.ConnMaxIdleTime <= 0 {
		c.DagCluster.Storage.Database.ConnMaxIdleTime = 1 * time.Hour
	}

	// Clustering默认值
	if c.DagCluster.Clustering.Algorithm == "" {
		c.DagCluster.Clustering.Algorithm = string(cluster.KindHRAB)
	}
	if c.DagCluster.Clustering.ClusterCount <= 0 {
		c.DagCluster.Clustering.ClusterCount = cluster.DefaultClusterCount
	}
	if c.DagCluster.Clustering.RuntimeScale <= 0 {
		c.DagCluster.Clustering.RuntimeScale = 10
	}
}

// Validate 校验配置合法性，非法值返回 ErrConfiguration
func (c *ClusterConfig) Validate() error {
	if c.DagCluster.General.InstanceName == "" {
		return fmt.Errorf("instance_name不能为空: %w", types.ErrConfiguration)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.DagCluster.Log.Level] {
		return fmt.Errorf("log.level必须是debug/info/warn/error之一: %w", types.ErrConfiguration)
	}
	validOutputs := map[string]bool{"stdout": true, "file": true, "both": true}
	if !validOutputs[c.DagCluster.Log.Output] {
		return fmt.Errorf("log.output必须是stdout/file/both之一: %w", types.ErrConfiguration)
	}
	if c.DagCluster.Log.Output != "stdout" && c.DagCluster.Log.FilePath == "" {
		return fmt.Errorf("log.output为%s时log.file_path不能为空: %w", c.DagCluster.Log.Output, types.ErrConfiguration)
	}

	validDBTypes := map[string]bool{"sqlite": true, "postgres": true, "postgresql": true, "mysql": true}
	if !validDBTypes[c.DagCluster.Storage.Database.Type] {
		return fmt.Errorf("database.type必须是sqlite/postgres/mysql之一: %w", types.ErrConfiguration)
	}
	if c.DagCluster.Storage.Database.DSN == "" {
		return fmt.Errorf("database.dsn不能为空: %w", types.ErrConfiguration)
	}
	if c.DagCluster.Storage.Database.MaxIdleConns > c.DagCluster.Storage.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns不能大于max_open_conns: %w", types.ErrConfiguration)
	}

	if _, err := c.Algorithm(); err != nil {
		return err
	}
	return nil
}
