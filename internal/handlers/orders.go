package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/platform/auth"
	"github.com/artisanshop/api/internal/platform/httpx"
	"github.com/artisanshop/api/internal/platform/pagination"
	"github.com/artisanshop/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body exceeds size limit")
)

type paymentIntentRequest struct {
	Amount       int64               `json:"amount"`
	Currency     string              `json:"currency"`
	Description  string              `json:"description"`
	CustomerName string              `json:"customerName"`
	Address      orderAddressPayload `json:"address"`
	Provider     string              `json:"provider"`
}

type placeOrderRequest struct {
	Items           []placeOrderLine    `json:"items"`
	TotalAmount     int64               `json:"totalAmount"`
	Currency        string              `json:"currency"`
	PaymentMethod   string              `json:"paymentMethod"`
	PaymentIntentID string              `json:"paymentIntentId"`
	DeliveryAddress orderAddressPayload `json:"deliveryAddress"`
}

type placeOrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type confirmPaymentRequest struct {
	PaymentIntentID string `json:"paymentIntentId"`
	Provider        string `json:"provider"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type orderAddressPayload struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderLinePayload struct {
	ProductRef string `json:"productRef"`
	SellerRef  string `json:"sellerRef"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unitPrice"`
	Total      int64  `json:"total"`
}

type orderPayload struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	BuyerID         string              `json:"buyerId"`
	Items           []orderLinePayload  `json:"items"`
	TotalAmount     int64               `json:"totalAmount"`
	Currency        string              `json:"currency"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"paymentMethod"`
	TransactionID   *string             `json:"transactionId,omitempty"`
	DeliveryAddress orderAddressPayload `json:"deliveryAddress"`
	CreatedAt       string              `json:"createdAt,omitempty"`
	UpdatedAt       string              `json:"updatedAt,omitempty"`
	ShippedAt       string              `json:"shippedAt,omitempty"`
	DeliveredAt     string              `json:"deliveredAt,omitempty"`
	CanceledAt      string              `json:"canceledAt,omitempty"`
}

// OrderHandlers exposes the order lifecycle endpoints: payment intents,
// checkout finalisation, buyer/seller listings, status transitions, and
// deletion.
type OrderHandlers struct {
	authn   *auth.Authenticator
	orders  services.OrderService
	limiter RateLimiter
}

// NewOrderHandlers constructs a new OrderHandlers instance. The limiter is
// optional; when nil, payment endpoints are not rate limited.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, limiter RateLimiter) *OrderHandlers {
	return &OrderHandlers{
		authn:   authn,
		orders:  orders,
		limiter: limiter,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/create-payment-intent", h.createPaymentIntent)
	r.Post("/place-order", h.placeOrder)
	r.Post("/confirm-payment", h.confirmPayment)
	r.Get("/user-orders", h.listBuyerOrders)
	r.Get("/sellerorders", h.listSellerOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/status", h.updateStatus)
	r.Delete("/{orderID}", h.deleteOrder)
}

func (h *OrderHandlers) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	if !h.allow(principal.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many payment requests, retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var req paymentIntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	result, err := h.orders.RequestPaymentIntent(ctx, services.PaymentIntentCommand{
		Principal:       principal,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Description:     req.Description,
		CustomerName:    req.CustomerName,
		DeliveryAddress: addressFromPayload(req.Address),
		Provider:        req.Provider,
	})
	if err != nil {
		writePaymentGatewayError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"clientSecret": result.ClientSecret,
		"intentId":     result.IntentID,
		"amount":       result.Amount,
		"currency":     result.Currency,
		"provider":     result.Provider,
	})
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}
	if !h.allow(principal.UID) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many checkout requests, retry later", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	items := make([]services.FinalizeOrderLine, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, services.FinalizeOrderLine{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, err := h.orders.FinalizeOrder(ctx, services.FinalizeOrderCommand{
		Principal:       principal,
		Items:           items,
		ClaimedTotal:    req.TotalAmount,
		Currency:        req.Currency,
		PaymentMethod:   domain.PaymentMethod(req.PaymentMethod),
		PaymentIntentID: req.PaymentIntentID,
		DeliveryAddress: addressFromPayload(req.DeliveryAddress),
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "order placed", map[string]any{
		"orderId":     order.ID,
		"orderNumber": order.OrderNumber,
		"order":       buildOrderPayload(order),
	})
}

func (h *OrderHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	verification, err := h.orders.VerifyPayment(ctx, services.VerifyPaymentCommand{
		Principal:     principal,
		TransactionID: req.PaymentIntentID,
		Provider:      req.Provider,
	})
	if err != nil {
		writePaymentGatewayError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"transactionId": verification.TransactionID,
		"status":        verification.Status,
		"amount":        verification.Amount,
		"currency":      verification.Currency,
		"verified":      verification.Verified,
	})
}

func (h *OrderHandlers) listBuyerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	buyerID := strings.TrimSpace(r.URL.Query().Get("buyerId"))
	page, err := h.orders.ListBuyerOrders(ctx, principal, buyerID, filter)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeOrderPage(w, page)
}

func (h *OrderHandlers) listSellerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	filter, err := parseOrderListFilter(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	sellerID := strings.TrimSpace(r.URL.Query().Get("sellerId"))
	page, err := h.orders.ListSellerOrders(ctx, principal, sellerID, filter)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeOrderPage(w, page)
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, principal, orderID)
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"order": buildOrderPayload(order),
	})
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(w, r, err)
		return
	}

	var req updateOrderStatusRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON payload", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		Principal:    principal,
		OrderID:      orderID,
		TargetStatus: domain.OrderStatus(strings.TrimSpace(req.Status)),
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "order status updated", map[string]any{
		"order": buildOrderPayload(order),
	})
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, ok := h.requirePrincipal(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{
		Principal: principal,
		OrderID:   orderID,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "order deleted", nil)
}

func (h *OrderHandlers) requirePrincipal(w http.ResponseWriter, r *http.Request) (services.Principal, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return services.Principal{}, false
	}
	principal, ok := principalFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Principal{}, false
	}
	return principal, true
}

func (h *OrderHandlers) allow(key string) bool {
	if h.limiter == nil {
		return true
	}
	return h.limiter.Allow(key)
}

func principalFromContext(r *http.Request) (services.Principal, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		return services.Principal{}, false
	}
	return services.Principal{
		UID:   identity.UID,
		Email: identity.Email,
		Roles: identity.Roles,
	}, true
}

func parseOrderListFilter(r *http.Request) (services.OrderListFilter, error) {
	query := r.URL.Query()

	var filter services.OrderListFilter
	filter.Status = parseFilterValues(query["status"])

	if raw := strings.TrimSpace(query.Get("createdAfter")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return filter, errors.New("createdAfter must be a valid RFC3339 timestamp")
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("createdBefore")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			return filter, errors.New("createdBefore must be a valid RFC3339 timestamp")
		}
		filter.DateRange.To = &ts
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		switch {
		case errors.Is(err, pagination.ErrInvalidPageSize):
			return filter, errors.New("pageSize must be a positive integer")
		case errors.Is(err, pagination.ErrInvalidPageToken):
			return filter, errors.New("pageToken is not a valid cursor")
		default:
			return filter, err
		}
	}
	filter.Pagination = domain.Pagination{
		PageSize:  params.PageSize,
		PageToken: params.PageToken,
	}
	return filter, nil
}

func writeOrderPage(w http.ResponseWriter, page domain.CursorPage[domain.Order]) {
	payload := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		payload = append(payload, buildOrderPayload(order))
	}
	fields := map[string]any{
		"orders": payload,
		"count":  len(payload),
	}
	if page.NextPageToken != "" {
		fields["nextPageToken"] = page.NextPageToken
	}
	httpx.WriteSuccess(w, http.StatusOK, "", fields)
}

func buildOrderPayload(order domain.Order) orderPayload {
	items := make([]orderLinePayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLinePayload{
			ProductRef: item.ProductRef,
			SellerRef:  item.SellerRef,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
		})
	}
	return orderPayload{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		BuyerID:         order.BuyerID,
		Items:           items,
		TotalAmount:     order.TotalAmount,
		Currency:        order.Currency,
		Status:          string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		TransactionID:   cloneStringPointer(order.TransactionID),
		DeliveryAddress: buildOrderAddressPayload(order.DeliveryAddress),
		CreatedAt:       formatTime(order.CreatedAt),
		UpdatedAt:       formatTime(order.UpdatedAt),
		ShippedAt:       formatOptionalTime(order.ShippedAt),
		DeliveredAt:     formatOptionalTime(order.DeliveredAt),
		CanceledAt:      formatOptionalTime(order.CanceledAt),
	}
}

func buildOrderAddressPayload(addr domain.Address) orderAddressPayload {
	return orderAddressPayload{
		Street:     addr.Street,
		City:       addr.City,
		State:      addr.State,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
}

func addressFromPayload(payload orderAddressPayload) domain.Address {
	return domain.Address{
		Street:     strings.TrimSpace(payload.Street),
		City:       strings.TrimSpace(payload.City),
		State:      strings.TrimSpace(payload.State),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
}

// writeOrderError maps service sentinels onto the HTTP error taxonomy.
// Validation and declined cards map to 400, authorisation to 403, missing
// records to 404, duplicate transactions and stale writes to 409.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentDeclined):
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", "your card was declined, use a different payment method", http.StatusBadRequest))
	case errors.Is(err, services.ErrPaymentNotVerified):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_verified", "payment has not completed, retry the payment", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you do not have access to this order", http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDuplicateTransaction):
		httpx.WriteError(ctx, w, httpx.NewError("duplicate_transaction", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "order was modified concurrently, retry", http.StatusConflict))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to process order", http.StatusInternalServerError))
	}
}

// writePaymentGatewayError is writeOrderError with the fallback mapped to
// 502, since unclassified failures on the payment endpoints come from the
// processor rather than local state.
func writePaymentGatewayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrPaymentDeclined),
		errors.Is(err, services.ErrPaymentNotVerified),
		errors.Is(err, services.ErrOrderForbidden),
		errors.Is(err, services.ErrOrderNotFound):
		writeOrderError(w, r, err)
	default:
		httpx.WriteError(r.Context(), w, httpx.NewError("payment_gateway_error", "payment processor is unavailable, retry later", http.StatusBadGateway))
	}
}

func writeBodyError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds size limit", http.StatusRequestEntityTooLarge))
	case errors.Is(err, errEmptyBody):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is required", http.StatusBadRequest))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
	}
}

// Shared helpers -------------------------------------------------------------

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxOrderBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			key := strings.ToLower(trimmed)
			if _, exists := seen[key]; exists {
				continue
			}
			seen[key] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 timestamp")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func cloneStringPointer(value *string) *string {
	if value == nil {
		return nil
	}
	copy := *value
	return &copy
}
