package kafka

import (
	"encoding/json"
	"testing"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/comanda/internal/domain"
)

func TestEventPublisher_RoutesByAggregateType(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewEventPublisher(producer, "")

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			t.Errorf("order event routed to %s", msg.Topic)
		}
		return nil
	})
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicStockEvents {
			t.Errorf("stock event routed to %s", msg.Topic)
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "order.created",
		Payload:       []byte(`{"total_minor":1500}`),
	})
	if err != nil {
		t.Fatalf("publish order event: %v", err)
	}

	err = publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "product",
		AggregateID:   "espresso",
		EventType:     "stock.adjusted",
		Payload:       []byte(`{"stock":42}`),
	})
	if err != nil {
		t.Fatalf("publish stock event: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventPublisher_EnvelopeAndPartitionKey(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewEventPublisher(producer, TopicOrderEvents)

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "order-123" {
			t.Errorf("key must be the aggregate id, got %s", key)
		}

		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var envelope Envelope
		if err := json.Unmarshal(value, &envelope); err != nil {
			return err
		}
		if envelope.EventType != "order.created" {
			t.Errorf("unexpected event type: %s", envelope.EventType)
		}
		if envelope.AggregateID != "order-123" {
			t.Errorf("unexpected aggregate id: %s", envelope.AggregateID)
		}
		if string(envelope.Payload) != `{"total_minor":1500}` {
			t.Errorf("payload not carried through: %s", envelope.Payload)
		}
		if envelope.PublishedAt.IsZero() {
			t.Error("published_at must be set")
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: "order",
		AggregateID:   "order-123",
		EventType:     "order.created",
		Payload:       []byte(`{"total_minor":1500}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventPublisher_KeyFallsBackToRecordID(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewEventPublisher(producer, "")

	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "outbox-3" {
			t.Errorf("expected fallback to record id, got %s", key)
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:        "outbox-3",
		EventType: "order.created",
		Payload:   []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventPublisher_ProducerError(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewEventPublisher(producer, TopicOrderEvents)

	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: "order",
		AggregateID:   "order-234",
		EventType:     "order.item_added",
		Payload:       []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventPublisher_InvalidPayload(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewEventPublisher(producer, "")

	// Обрезанный JSON не проходит сериализацию конверта.
	err := publisher.Publish(domain.OutboxMessage{
		ID:        "outbox-4",
		EventType: "order.created",
		Payload:   []byte(`{"total_minor":`),
	})
	if err == nil {
		t.Fatal("expected marshal error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventPublisher_NilProducer(t *testing.T) {
	publisher := NewEventPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-5"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}

func TestDeadLetterPublisher_PassesPayloadThrough(t *testing.T) {
	producer, mockProducer := newMockedProducer(t)
	publisher := NewDeadLetterPublisher(producer)

	payload := []byte(`{"outbox_id":"outbox-6","publish_error":"out of brokers"}`)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicDeadLetterQueue {
			t.Errorf("dlq record routed to %s", msg.Topic)
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		if string(value) != string(payload) {
			t.Errorf("dlq payload must go out unchanged, got %s", value)
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "outbox-6",
		AggregateType: "order",
		AggregateID:   "order-345",
		EventType:     "order.created",
		Payload:       payload,
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestDeadLetterPublisher_NilProducer(t *testing.T) {
	publisher := NewDeadLetterPublisher(nil)
	if err := publisher.Publish(domain.OutboxMessage{ID: "outbox-7"}); err == nil {
		t.Fatal("expected error for nil producer")
	}
}
