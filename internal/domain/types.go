package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is confirmed and awaits fulfillment.
	OrderStatusPending OrderStatus = "Pending"
	// OrderStatusShipped indicates the order has been handed to a carrier.
	OrderStatusShipped OrderStatus = "Shipped"
	// OrderStatusDelivered indicates the order reached the buyer. Terminal.
	OrderStatusDelivered OrderStatus = "Delivered"
	// OrderStatusCanceled indicates the order was canceled before delivery. Terminal.
	OrderStatusCanceled OrderStatus = "Canceled"
)

// PaymentMethod enumerates the payment instruments accepted at checkout.
type PaymentMethod string

const (
	// PaymentMethodCOD defers payment to cash on delivery.
	PaymentMethodCOD PaymentMethod = "COD"
	// PaymentMethodCreditCard settles through the card processor before order creation.
	PaymentMethodCreditCard PaymentMethod = "CreditCard"
	// PaymentMethodUPI settles through a UPI rail before order creation.
	PaymentMethodUPI PaymentMethod = "UPI"
)

// Order captures order headers returned to handlers/services.
// TransactionID is nil for cash-on-delivery orders.
type Order struct {
	ID              string
	OrderNumber     string
	BuyerID         string
	Items           []OrderLineItem
	TotalAmount     int64
	Currency        string
	Status          OrderStatus
	PaymentMethod   PaymentMethod
	TransactionID   *string
	DeliveryAddress Address
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CanceledAt      *time.Time
}

// OrderLineItem snapshots a product at the time of checkout. SellerRef is
// denormalized so seller-scoped queries and attribution survive later
// product edits or ownership changes.
type OrderLineItem struct {
	ProductRef string
	SellerRef  string
	Name       string
	Quantity   int
	UnitPrice  int64
	Total      int64
}

// Address represents the postal delivery address captured on an order.
type Address struct {
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Product represents a catalog entry owned by a seller.
type Product struct {
	ID        string
	SellerID  string
	Name      string
	Category  string
	Price     int64
	Currency  string
	Stock     int
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserProfile captures the buyer/seller projection used for invoices and
// contact snapshots.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SalesBucket aggregates delivered-order revenue under a grouping key such
// as a calendar day or a product reference.
type SalesBucket struct {
	Key     string
	Orders  int
	Units   int
	Revenue int64
}

// SalesReport summarizes a seller's delivered orders over a reporting window.
type SalesReport struct {
	SellerID    string
	From        *time.Time
	To          *time.Time
	TotalOrders int
	TotalUnits  int
	Revenue     int64
	Daily       []SalesBucket
	TopProducts []SalesBucket
	GeneratedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
