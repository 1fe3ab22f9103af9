package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimasrn/message-automation/internal/model"
)

const metaEventType = "type"

// EventPublisher puts trigger events on the stream for the engine.
type EventPublisher struct {
	queue *Queue
}

func NewEventPublisher(q *Queue) *EventPublisher {
	return &EventPublisher{queue: q}
}

func (p *EventPublisher) Publish(ctx context.Context, ev model.TriggerEvent) (string, error) {
	return p.queue.PublishJSON(ctx, ev, map[string]string{
		metaEventType: string(ev.Type),
		"tenant":      ev.TenantID,
	})
}

// DecodeEvent reads a trigger event from a stream message.
func DecodeEvent(msg *Message) (model.TriggerEvent, error) {
	var ev model.TriggerEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return ev, fmt.Errorf("%w: %v", model.ErrInvalidEvent, err)
	}
	return ev, nil
}
