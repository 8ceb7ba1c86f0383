package cluster

import (
	"fmt"
	"strings"

	"github.com/LENAX/dag-cluster/pkg/core/types"
)

// Kind 聚类算法类型（对外导出）
type Kind string

const (
	// KindHRAB 按层级平衡运行时间与核数的聚类
	KindHRAB Kind = "hrab"
	// KindWPA 纵向链折叠 + 父节点配对聚类
	KindWPA Kind = "wpa"
)

// DefaultClusterCount HRAB 每层默认的聚类数量
const DefaultClusterCount = 5

// Algorithm 聚类算法选择（对外导出）
// ClusterCount 仅对 HRAB 有意义，WPA 按结构配对而不是目标数量聚类
type Algorithm struct {
	Kind         Kind
	ClusterCount int
}

// HRAB 创建 HRAB 算法选择
func HRAB(clusterCount int) Algorithm {
	return Algorithm{Kind: KindHRAB, ClusterCount: clusterCount}
}

// WPA 创建 WPA 算法选择
func WPA() Algorithm {
	return Algorithm{Kind: KindWPA}
}

// ParseAlgorithm 根据名称解析算法（对外导出）
// name: hrab（兼容旧名称 rac）或 wpa，不区分大小写
// clusterCount: HRAB 的每层聚类数量，<=0 时使用 DefaultClusterCount
func ParseAlgorithm(name string, clusterCount int) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hrab", "rac":
		if clusterCount <= 0 {
			clusterCount = DefaultClusterCount
		}
		return HRAB(clusterCount), nil
	case "wpa":
		return WPA(), nil
	default:
		return Algorithm{}, fmt.Errorf("未知的聚类算法 %q: %w", name, types.ErrConfiguration)
	}
}

// Validate 校验算法参数
func (a Algorithm) Validate() error {
	switch a.Kind {
	case KindHRAB:
		if a.ClusterCount <= 0 {
			return fmt.Errorf("HRAB 聚类数量必须大于0，当前为 %d: %w", a.ClusterCount, types.ErrConfiguration)
		}
		return nil
	case KindWPA:
		return nil
	default:
		return fmt.Errorf("未知的聚类算法 %q: %w", a.Kind, types.ErrConfiguration)
	}
}

// String 算法名称，用于命名聚类后的工作流
func (a Algorithm) String() string {
	return string(a.Kind)
}
