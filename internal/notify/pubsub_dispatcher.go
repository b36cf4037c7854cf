package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
)

// PubSubInvoiceDispatcher publishes invoice notifications to a Pub/Sub topic.
type PubSubInvoiceDispatcher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubInvoiceDispatcher constructs a Pub/Sub backed invoice dispatcher.
func NewPubSubInvoiceDispatcher(topic *pubsub.Topic) (*PubSubInvoiceDispatcher, error) {
	if topic == nil {
		return nil, errors.New("pubsub invoice dispatcher: topic is required")
	}
	return &PubSubInvoiceDispatcher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// SendInvoice enqueues an invoice message on the configured topic and returns
// the server-assigned message id.
func (d *PubSubInvoiceDispatcher) SendInvoice(ctx context.Context, message InvoiceMessage) (string, error) {
	if d == nil || d.topic == nil {
		return "", errors.New("pubsub invoice dispatcher: not initialised")
	}

	data, err := d.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal invoice message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "orderNumber", message.OrderNumber)
	setAttr(attrs, "buyerId", message.BuyerID)
	setAttr(attrs, "currency", message.Currency)

	result := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish invoice message: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
