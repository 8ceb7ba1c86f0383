package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Bus 进程内事件总线（对外导出）
// 基于 watermill gochannel，事件类型即 topic；没有订阅者时发布的事件被丢弃
type Bus struct {
	pubsub *gochannel.GoChannel
	logger watermill.LoggerAdapter
}

// NewBus 创建事件总线，logger 为 nil 时不输出日志
func NewBus(logger watermill.LoggerAdapter) *Bus {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	pubsub := gochannel.NewGoChannel(
		gochannel.Config{
			Persistent:                     false,
			BlockPublishUntilSubscriberAck: false,
		},
		logger,
	)
	return &Bus{pubsub: pubsub, logger: logger}
}

// Publish 发布事件
func (b *Bus) Publish(event *ClusterEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", string(event.Type))
	msg.Metadata.Set("run_id", event.RunID)
	msg.Metadata.Set("workflow_id", event.WorkflowID)
	msg.Metadata.Set("timestamp", event.Timestamp.Format(time.RFC3339Nano))

	if err := b.pubsub.Publish(string(event.Type), msg); err != nil {
		return fmt.Errorf("发布事件失败: %w", err)
	}
	return nil
}

// Subscribe 订阅指定类型的事件，ctx 取消或总线关闭时返回的通道被关闭
// 无法解码的消息记录日志后丢弃
func (b *Bus) Subscribe(ctx context.Context, eventType EventType) (<-chan *ClusterEvent, error) {
	messages, err := b.pubsub.Subscribe(ctx, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("订阅事件失败: %w", err)
	}

	out := make(chan *ClusterEvent)
	go func() {
		defer close(out)
		for msg := range messages {
			var event ClusterEvent
			if err := json.Unmarshal(msg.Payload, &event); err != nil {
				b.logger.Error("解码事件失败", err, watermill.LogFields{"uuid": msg.UUID})
				msg.Ack()
				continue
			}
			msg.Ack()
			select {
			case out <- &event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close 关闭总线，所有订阅通道随之关闭
func (b *Bus) Close() error {
	return b.pubsub.Close()
}
