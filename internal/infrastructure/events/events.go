package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/domain"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Type string

const (
	OrderPlaced                 Type = "order.placed"
	OrderApproved               Type = "order.approved"
	OrderShipped                Type = "order.shipped"
	OrderCancelled              Type = "order.cancelled"
	OrderReturnRequested        Type = "order.return_requested"
	OrderReturnRequestCancelled Type = "order.return_request_cancelled"
	OrderReturnApproved         Type = "order.return_approved"
	OrderReturnDenied           Type = "order.return_denied"
	OrderReturned               Type = "order.returned"
	OrderDeleted                Type = "order.deleted"
)

var byOperation = map[domain.Operation]Type{
	domain.OpPlace:               OrderPlaced,
	domain.OpApprove:             OrderApproved,
	domain.OpShip:                OrderShipped,
	domain.OpCancel:              OrderCancelled,
	domain.OpRequestReturn:       OrderReturnRequested,
	domain.OpCancelReturnRequest: OrderReturnRequestCancelled,
	domain.OpApproveReturn:       OrderReturnApproved,
	domain.OpDenyReturn:          OrderReturnDenied,
	domain.OpMarkReturned:        OrderReturned,
	domain.OpSoftDelete:          OrderDeleted,
}

// Event is the message published after an order operation commits.
type Event struct {
	ID           string              `json:"id"`
	Type         Type                `json:"type"`
	OrderID      string              `json:"orderId"`
	UserID       string              `json:"userId"`
	Actor        string              `json:"actor"`
	Status       domain.OrderStatus  `json:"status"`
	ReturnStatus domain.ReturnStatus `json:"returnStatus"`
	TotalAmount  int64               `json:"totalAmount"`
	OccurredAt   time.Time           `json:"occurredAt"`
}

// FromOrder describes op applied to o by actor.
func FromOrder(op domain.Operation, o *domain.Order, actor string, at time.Time) Event {
	return Event{
		ID:           uuid.NewString(),
		Type:         byOperation[op],
		OrderID:      o.ID.String(),
		UserID:       o.UserID,
		Actor:        actor,
		Status:       o.Status,
		ReturnStatus: o.ReturnStatus,
		TotalAmount:  o.TotalAmount,
		OccurredAt:   at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

// Publish keys the message by order id so one order's events stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{Key: []byte(e.OrderID), Value: data, Time: e.OccurredAt}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }

// New returns a Kafka publisher, or a NopPublisher when brokers is empty.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return NopPublisher{}
	}
	return NewKafkaPublisher(brokers, topic)
}
