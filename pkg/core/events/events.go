// Package events 提供聚类生命周期事件的发布与订阅
package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	EventClusterStarted   EventType = "cluster.started"   // 聚类开始
	EventClusterCompleted EventType = "cluster.completed" // 聚类完成并已保存
	EventClusterFailed    EventType = "cluster.failed"    // 聚类失败
)

// ClusterEvent 聚类事件
type ClusterEvent struct {
	ID                  string            `json:"id"`                              // 事件ID（UUID）
	RunID               string            `json:"run_id"`                          // 一次聚类调用的ID
	Type                EventType         `json:"type"`                            // 事件类型
	WorkflowID          string            `json:"workflow_id"`                     // 源工作流ID
	ClusteredWorkflowID string            `json:"clustered_workflow_id,omitempty"` // 聚类后工作流ID
	Algorithm           string            `json:"algorithm"`
	Wastage             float64           `json:"wastage"`
	Composites          int               `json:"composites"`
	Error               string            `json:"error,omitempty"`
	Timestamp           time.Time         `json:"timestamp"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// NewClusterEvent 创建聚类事件
func NewClusterEvent(eventType EventType, runID, workflowID, algorithm string) *ClusterEvent {
	return &ClusterEvent{
		ID:         uuid.NewString(),
		RunID:      runID,
		Type:       eventType,
		WorkflowID: workflowID,
		Algorithm:  algorithm,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]string),
	}
}

// WithMetadata 添加元数据
func (e *ClusterEvent) WithMetadata(key, value string) *ClusterEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithError 记录失败原因
func (e *ClusterEvent) WithError(err error) *ClusterEvent {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}
