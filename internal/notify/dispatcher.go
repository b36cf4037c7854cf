package notify

import (
	"context"
	"time"
)

// InvoiceMessage is the payload published when an order has been placed and
// the buyer should receive an invoice.
type InvoiceMessage struct {
	OrderID     string        `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	BuyerID     string        `json:"buyerId"`
	Email       string        `json:"email,omitempty"`
	TotalAmount int64         `json:"totalAmount"`
	Currency    string        `json:"currency"`
	ItemCount   int           `json:"itemCount"`
	Lines       []InvoiceLine `json:"lines"`
	PlacedAt    time.Time     `json:"placedAt"`
}

// InvoiceLine summarises one purchased item for the invoice renderer.
type InvoiceLine struct {
	Name      string `json:"name"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
}

// Dispatcher delivers order notifications to interested consumers. Failures
// are reported to the caller but must never affect the order itself.
type Dispatcher interface {
	SendInvoice(ctx context.Context, message InvoiceMessage) (string, error)
}

// NoopDispatcher discards every notification. Used when no topic is configured.
type NoopDispatcher struct{}

// SendInvoice implements Dispatcher by doing nothing.
func (NoopDispatcher) SendInvoice(context.Context, InvoiceMessage) (string, error) {
	return "", nil
}
