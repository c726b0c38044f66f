package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

// Envelope — внешний формат события POS: outbox-запись плюс момент публикации.
// Потребители разбирают payload по event_type.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// EventPublisher раскладывает outbox-записи по topic'ам: складские события
// (aggregate_type "product") уходят в TopicStockEvents, события заказов и
// позиций — в topic заказов.
type EventPublisher struct {
	producer   *Producer
	orderTopic string
	stockTopic string
}

// NewEventPublisher создаёт маршрутизирующий паблишер. Пустой orderTopic
// заменяется на TopicOrderEvents.
func NewEventPublisher(producer *Producer, orderTopic string) domain.OutboxPublisher {
	if orderTopic == "" {
		orderTopic = TopicOrderEvents
	}
	return &EventPublisher{
		producer:   producer,
		orderTopic: orderTopic,
		stockTopic: TopicStockEvents,
	}
}

// Publish заворачивает outbox-запись в Envelope и отправляет в подходящий topic.
func (p *EventPublisher) Publish(record domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka event publisher is not initialized")
	}

	value, err := json.Marshal(Envelope{
		ID:            record.ID,
		AggregateType: record.AggregateType,
		AggregateID:   record.AggregateID,
		EventType:     record.EventType,
		Payload:       json.RawMessage(record.Payload),
		PublishedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal envelope for outbox record %s: %w", record.ID, err)
	}

	return p.producer.Send(p.topicFor(record), partitionKey(record), value)
}

func (p *EventPublisher) topicFor(record domain.OutboxMessage) string {
	if record.AggregateType == aggregateProduct {
		return p.stockTopic
	}
	return p.orderTopic
}

// partitionKey держит события одного агрегата в одной партиции, чтобы
// потребители видели их в порядке записи.
func partitionKey(record domain.OutboxMessage) string {
	if record.AggregateID != "" {
		return record.AggregateID
	}
	return record.ID
}

// DeadLetterPublisher отправляет недоставленные записи в DLQ. Payload к этому
// моменту уже завёрнут воркером вместе с ошибкой публикации, поэтому байты
// уходят как есть.
type DeadLetterPublisher struct {
	producer *Producer
}

// NewDeadLetterPublisher создаёт паблишер DLQ-topic'а.
func NewDeadLetterPublisher(producer *Producer) domain.OutboxPublisher {
	return &DeadLetterPublisher{producer: producer}
}

func (p *DeadLetterPublisher) Publish(record domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dead letter publisher is not initialized")
	}
	return p.producer.Send(TopicDeadLetterQueue, partitionKey(record), record.Payload)
}

var _ domain.OutboxPublisher = (*EventPublisher)(nil)
var _ domain.OutboxPublisher = (*DeadLetterPublisher)(nil)
