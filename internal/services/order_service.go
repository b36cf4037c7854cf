package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/notify"
	"github.com/artisanshop/api/internal/payments"
	"github.com/artisanshop/api/internal/repositories"
)

const orderIDPrefix = "ord_"

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderForbidden indicates the caller is not allowed to act on the order.
	ErrOrderForbidden = errors.New("order: forbidden")
	// ErrOrderConflict indicates concurrent modification conflicts.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrPaymentNotVerified indicates the payment could not be confirmed as
	// succeeded. Verification fails closed: gateway errors map here too.
	ErrPaymentNotVerified = errors.New("order: payment not verified")
	// ErrPaymentDeclined indicates the card was declined by the processor.
	ErrPaymentDeclined = errors.New("order: payment declined")
	// ErrDuplicateTransaction indicates an order already exists for the
	// payment transaction.
	ErrDuplicateTransaction = errors.New("order: duplicate transaction")

	// ErrOrderEmptyCart, ErrOrderInvalidAmount, and ErrOrderInvalidAddress are
	// specialised validation failures; all satisfy errors.Is against
	// ErrOrderInvalidInput.
	ErrOrderEmptyCart      = fmt.Errorf("%w: cart must contain at least one item", ErrOrderInvalidInput)
	ErrOrderInvalidAmount  = fmt.Errorf("%w: amount must be positive and match catalog prices", ErrOrderInvalidInput)
	ErrOrderInvalidAddress = fmt.Errorf("%w: delivery address is incomplete", ErrOrderInvalidInput)
)

// Allowed forward edges of the lifecycle graph. Delivered and Canceled are
// terminal; they have no entry.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending: {domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCanceled},
	domain.OrderStatusShipped: {domain.OrderStatusDelivered, domain.OrderStatusCanceled},
}

// PaymentGateway abstracts payments.Manager for intent creation and lookup.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error)
	RetrieveIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders          repositories.OrderRepository
	Products        repositories.ProductRepository
	Users           repositories.UserRepository
	Counters        repositories.CounterRepository
	Gateway         PaymentGateway
	Invoices        notify.Dispatcher
	Effects         *EffectRunner
	UnitOfWork      repositories.UnitOfWork
	DefaultCurrency string
	// GatewayTimeout bounds every call to the payment gateway independently
	// of the surrounding request deadline. Zero selects a default.
	GatewayTimeout time.Duration
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders         repositories.OrderRepository
	products       repositories.ProductRepository
	users          repositories.UserRepository
	counters       repositories.CounterRepository
	gateway        PaymentGateway
	invoices       notify.Dispatcher
	effects        *EffectRunner
	unitOfWork     repositories.UnitOfWork
	currency       string
	gatewayTimeout time.Duration
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
}

const defaultGatewayTimeout = 10 * time.Second

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	invoices := deps.Invoices
	if invoices == nil {
		invoices = notify.NoopDispatcher{}
	}

	effects := deps.Effects
	if effects == nil {
		effects = NewEffectRunner(EffectRunnerDeps{Logger: logger})
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "INR"
	}

	gatewayTimeout := deps.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}

	return &orderService{
		orders:         deps.Orders,
		products:       deps.Products,
		users:          deps.Users,
		counters:       deps.Counters,
		gateway:        deps.Gateway,
		invoices:       invoices,
		effects:        effects,
		unitOfWork:     unit,
		currency:       currency,
		gatewayTimeout: gatewayTimeout,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

// createIntent and retrieveIntent run gateway calls under their own deadline
// so a stalled processor cannot hold the request open until the server
// timeout fires.
func (s *orderService) createIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	return s.gateway.CreateIntent(callCtx, paymentCtx, req)
}

func (s *orderService) retrieveIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	return s.gateway.RetrieveIntent(callCtx, paymentCtx, intentID)
}

func (s *orderService) RequestPaymentIntent(ctx context.Context, cmd PaymentIntentCommand) (PaymentIntentResult, error) {
	if cmd.Amount <= 0 {
		return PaymentIntentResult{}, ErrOrderInvalidAmount
	}
	if err := validateAddress(cmd.DeliveryAddress); err != nil {
		return PaymentIntentResult{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	intent, err := s.createIntent(ctx, payments.PaymentContext{
		PreferredProvider: strings.TrimSpace(cmd.Provider),
		Currency:          currency,
	}, payments.IntentRequest{
		Amount:       payments.MinorUnits(cmd.Amount),
		Currency:     currency,
		Description:  strings.TrimSpace(cmd.Description),
		CustomerName: strings.TrimSpace(cmd.CustomerName),
	})
	if err != nil {
		return PaymentIntentResult{}, s.mapGatewayError(ctx, "order.payment_intent_failed", err)
	}

	return PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Provider:     intent.Provider,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	}, nil
}

func (s *orderService) FinalizeOrder(ctx context.Context, cmd FinalizeOrderCommand) (Order, error) {
	buyerID := strings.TrimSpace(cmd.Principal.UID)
	if buyerID == "" {
		return Order{}, fmt.Errorf("%w: buyer is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, ErrOrderEmptyCart
	}
	if cmd.ClaimedTotal <= 0 {
		return Order{}, ErrOrderInvalidAmount
	}
	if err := validateAddress(cmd.DeliveryAddress); err != nil {
		return Order{}, err
	}
	method, err := normalisePaymentMethod(cmd.PaymentMethod)
	if err != nil {
		return Order{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if currency == "" {
		currency = s.currency
	}

	items, total, err := s.priceLineItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}
	if total != cmd.ClaimedTotal {
		return Order{}, fmt.Errorf("%w: submitted total %d, catalog total %d", ErrOrderInvalidAmount, cmd.ClaimedTotal, total)
	}

	// Payment next: nothing is created unless the charge is confirmed, and the
	// confirmed charge must cover the catalog total. A succeeded intent for a
	// smaller amount cannot settle this order.
	var transactionID *string
	if method != domain.PaymentMethodCOD {
		intentID := strings.TrimSpace(cmd.PaymentIntentID)
		if intentID == "" {
			return Order{}, fmt.Errorf("%w: payment intent id is required", ErrPaymentNotVerified)
		}
		intent, err := s.retrieveIntent(ctx, payments.PaymentContext{Currency: currency}, intentID)
		if err != nil {
			s.logger(ctx, "order.payment_verification_failed", map[string]any{
				"buyer":  buyerID,
				"intent": intentID,
				"error":  err.Error(),
			})
			return Order{}, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
		}
		if intent.Status != payments.StatusSucceeded {
			return Order{}, fmt.Errorf("%w: intent status %q", ErrPaymentNotVerified, intent.Status)
		}
		if intent.Amount != payments.MinorUnits(total) {
			s.logger(ctx, "order.payment_amount_mismatch", map[string]any{
				"buyer":  buyerID,
				"intent": intentID,
				"paid":   intent.Amount,
				"due":    payments.MinorUnits(total),
			})
			return Order{}, fmt.Errorf("%w: intent amount %d does not match order total %d", ErrPaymentNotVerified, intent.Amount, payments.MinorUnits(total))
		}
		transactionID = &intent.ID
	}

	now := s.clock()
	order := Order{
		ID:              orderIDPrefix + s.newID(),
		BuyerID:         buyerID,
		Items:           items,
		TotalAmount:     total,
		Currency:        currency,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   method,
		TransactionID:   transactionID,
		DeliveryAddress: cmd.DeliveryAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}
	order.OrderNumber = number

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapInsertError(txCtx, err, transactionID)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.enqueuePostCommitEffects(ctx, order)

	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, principal Principal, orderID string) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !canReadOrder(principal, order) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}
	return order, nil
}

func (s *orderService) ListBuyerOrders(ctx context.Context, principal Principal, buyerID string, filter OrderListFilter) (domain.CursorPage[Order], error) {
	buyerID = strings.TrimSpace(buyerID)
	if buyerID == "" {
		buyerID = principal.UID
	}
	if buyerID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: buyer id is required", ErrOrderInvalidInput)
	}
	if buyerID != principal.UID && !principal.IsAdmin() {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: cannot list another buyer's orders", ErrOrderForbidden)
	}

	page, err := s.orders.ListByBuyer(ctx, buyerID, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) ListSellerOrders(ctx context.Context, principal Principal, sellerID string, filter OrderListFilter) (domain.CursorPage[Order], error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		sellerID = principal.UID
	}
	if sellerID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: seller id is required", ErrOrderInvalidInput)
	}
	if !principal.IsAdmin() {
		if !principal.IsSeller() || sellerID != principal.UID {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: cannot list another seller's orders", ErrOrderForbidden)
		}
	}

	page, err := s.orders.ListBySeller(ctx, sellerID, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := domain.OrderStatus(strings.TrimSpace(string(cmd.TargetStatus)))
	if target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrOrderInvalidInput)
	}
	if !isKnownStatus(target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, target)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}

	if !canManageOrder(cmd.Principal, order) {
		return Order{}, fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}
	if !canTransition(order.Status, target) {
		return Order{}, fmt.Errorf("%w: %s to %s", ErrOrderInvalidState, order.Status, target)
	}

	now := s.clock()
	prev := order.Status
	order.Status = target
	order.UpdatedAt = now
	switch target {
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCanceled:
		order.CanceledAt = &now
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.logger(ctx, "order.status.changed", map[string]any{
		"order": order.ID,
		"from":  string(prev),
		"to":    string(order.Status),
		"actor": cmd.Principal.UID,
	})

	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return s.mapRepositoryError(err)
	}

	if !canManageOrder(cmd.Principal, order) {
		return fmt.Errorf("%w: order %s", ErrOrderForbidden, orderID)
	}
	if order.Status == domain.OrderStatusDelivered {
		return fmt.Errorf("%w: delivered orders cannot be deleted", ErrOrderForbidden)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Delete(txCtx, orderID); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger(ctx, "order.deleted", map[string]any{
		"order": orderID,
		"actor": cmd.Principal.UID,
	})
	return nil
}

func (s *orderService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (PaymentVerification, error) {
	intentID := strings.TrimSpace(cmd.TransactionID)
	if intentID == "" {
		return PaymentVerification{}, fmt.Errorf("%w: transaction id is required", ErrOrderInvalidInput)
	}

	intent, err := s.retrieveIntent(ctx, payments.PaymentContext{
		PreferredProvider: strings.TrimSpace(cmd.Provider),
		Currency:          s.currency,
	}, intentID)
	if err != nil {
		return PaymentVerification{}, fmt.Errorf("%w: %v", ErrPaymentNotVerified, err)
	}

	return PaymentVerification{
		TransactionID: intent.ID,
		Status:        string(intent.Status),
		Amount:        intent.Amount,
		Currency:      intent.Currency,
		Verified:      intent.Status == payments.StatusSucceeded,
	}, nil
}

// priceLineItems re-reads the catalog so submitted prices are never trusted,
// and snapshots seller attribution on every line.
func (s *orderService) priceLineItems(ctx context.Context, lines []FinalizeOrderLine) ([]OrderLineItem, int64, error) {
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		if id == "" {
			return nil, 0, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: quantity must be positive for product %s", ErrOrderInvalidInput, id)
		}
		ids = append(ids, id)
	}

	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, 0, s.mapRepositoryError(err)
	}

	items := make([]OrderLineItem, 0, len(lines))
	var total int64
	for _, line := range lines {
		id := strings.TrimSpace(line.ProductID)
		product, ok := products[id]
		if !ok {
			return nil, 0, fmt.Errorf("%w: product %s", ErrOrderNotFound, id)
		}
		if !product.IsActive {
			return nil, 0, fmt.Errorf("%w: product %s is not available", ErrOrderInvalidInput, id)
		}
		lineTotal := product.Price * int64(line.Quantity)
		items = append(items, OrderLineItem{
			ProductRef: product.ID,
			SellerRef:  product.SellerID,
			Name:       product.Name,
			Quantity:   line.Quantity,
			UnitPrice:  product.Price,
			Total:      lineTotal,
		})
		total += lineTotal
	}
	return items, total, nil
}

func (s *orderService) enqueuePostCommitEffects(ctx context.Context, order Order) {
	effects := make([]Effect, 0, len(order.Items)+1)
	for _, item := range order.Items {
		productID := item.ProductRef
		quantity := item.Quantity
		effects = append(effects, Effect{
			Name:    "stock.decrement",
			OrderID: order.ID,
			Run: func(effCtx context.Context) error {
				return s.products.DecrementStock(effCtx, productID, quantity)
			},
		})
	}

	invoice := s.buildInvoice(ctx, order)
	effects = append(effects, Effect{
		Name:    "invoice.dispatch",
		OrderID: order.ID,
		Run: func(effCtx context.Context) error {
			_, err := s.invoices.SendInvoice(effCtx, invoice)
			return err
		},
	})

	s.effects.Enqueue(effects...)
}

func (s *orderService) buildInvoice(ctx context.Context, order Order) notify.InvoiceMessage {
	lines := make([]notify.InvoiceLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, notify.InvoiceLine{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Total:     item.Total,
		})
	}
	msg := notify.InvoiceMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
		ItemCount:   len(order.Items),
		Lines:       lines,
		PlacedAt:    order.CreatedAt,
	}
	if s.users != nil {
		if profile, err := s.users.FindByID(ctx, order.BuyerID); err == nil {
			msg.Email = profile.Email
		}
	}
	return msg
}

func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, "orders", 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("AS-%04d-%06d", now.Year(), seq), nil
}

// mapInsertError resolves transaction-id conflicts to ErrDuplicateTransaction,
// naming the order that already holds the charge when it can be found.
func (s *orderService) mapInsertError(ctx context.Context, err error, transactionID *string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() && transactionID != nil {
		if existing, lookupErr := s.orders.FindByTransactionID(ctx, *transactionID); lookupErr == nil {
			return fmt.Errorf("%w: order %s already recorded for transaction %s", ErrDuplicateTransaction, existing.ID, *transactionID)
		}
		return fmt.Errorf("%w: transaction %s", ErrDuplicateTransaction, *transactionID)
	}
	return s.mapRepositoryError(err)
}

func (s *orderService) mapGatewayError(ctx context.Context, event string, err error) error {
	if errors.Is(err, payments.ErrCardDeclined) {
		return fmt.Errorf("%w: %v", ErrPaymentDeclined, err)
	}
	if errors.Is(err, payments.ErrUnsupportedProvider) {
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return err
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func canReadOrder(principal Principal, order Order) bool {
	if principal.IsAdmin() {
		return true
	}
	if principal.UID != "" && principal.UID == order.BuyerID {
		return true
	}
	return principal.IsSeller() && sellerOnOrder(principal.UID, order)
}

// canManageOrder limits mutations to admins and sellers who own at least one
// line item on the order.
func canManageOrder(principal Principal, order Order) bool {
	if principal.IsAdmin() {
		return true
	}
	return principal.IsSeller() && sellerOnOrder(principal.UID, order)
}

func sellerOnOrder(sellerID string, order Order) bool {
	if sellerID == "" {
		return false
	}
	for _, item := range order.Items {
		if item.SellerRef == sellerID {
			return true
		}
	}
	return false
}

func canTransition(current, target domain.OrderStatus) bool {
	next, ok := orderStateTransitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

func isKnownStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending, domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCanceled:
		return true
	default:
		return false
	}
}

func normalisePaymentMethod(method PaymentMethod) (PaymentMethod, error) {
	trimmed := strings.TrimSpace(string(method))
	for _, known := range []domain.PaymentMethod{domain.PaymentMethodCOD, domain.PaymentMethodCreditCard, domain.PaymentMethodUPI} {
		if strings.EqualFold(trimmed, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, method)
}

func validateAddress(addr Address) error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(addr.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(addr.PostalCode) == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("%w: missing %s", ErrOrderInvalidAddress, strings.Join(missing, ", "))
	}
	return nil
}
