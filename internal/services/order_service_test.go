package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/notify"
	"github.com/artisanshop/api/internal/payments"
	"github.com/artisanshop/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn        func(ctx context.Context, order domain.Order) error
	updateFn        func(ctx context.Context, order domain.Order) error
	deleteFn        func(ctx context.Context, orderID string) error
	findByIDFn      func(ctx context.Context, orderID string) (domain.Order, error)
	findByTxnFn     func(ctx context.Context, transactionID string) (domain.Order, error)
	listByBuyerFn   func(ctx context.Context, buyerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listBySellerFn  func(ctx context.Context, sellerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
	listDeliveredFn func(ctx context.Context, query repositories.SalesQuery) ([]domain.Order, error)

	inserted []domain.Order
	updated  []domain.Order
	deleted  []string
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	s.inserted = append(s.inserted, order)
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	s.updated = append(s.updated, order)
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Delete(ctx context.Context, orderID string) error {
	s.deleted = append(s.deleted, orderID)
	if s.deleteFn != nil {
		return s.deleteFn(ctx, orderID)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findByIDFn != nil {
		return s.findByIDFn(ctx, orderID)
	}
	return domain.Order{}, fakeRepoErr{notFound: true}
}

func (s *stubOrderRepo) FindByTransactionID(ctx context.Context, transactionID string) (domain.Order, error) {
	if s.findByTxnFn != nil {
		return s.findByTxnFn(ctx, transactionID)
	}
	return domain.Order{}, fakeRepoErr{notFound: true}
}

func (s *stubOrderRepo) ListByBuyer(ctx context.Context, buyerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listByBuyerFn != nil {
		return s.listByBuyerFn(ctx, buyerID, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepo) ListBySeller(ctx context.Context, sellerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listBySellerFn != nil {
		return s.listBySellerFn(ctx, sellerID, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderRepo) ListDelivered(ctx context.Context, query repositories.SalesQuery) ([]domain.Order, error) {
	if s.listDeliveredFn != nil {
		return s.listDeliveredFn(ctx, query)
	}
	return nil, nil
}

type stubProductRepo struct {
	products    map[string]domain.Product
	decremented map[string]int
	decrementFn func(ctx context.Context, productID string, quantity int) error
}

func (s *stubProductRepo) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if product, ok := s.products[productID]; ok {
		return product, nil
	}
	return domain.Product{}, fakeRepoErr{notFound: true}
}

func (s *stubProductRepo) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := s.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (s *stubProductRepo) DecrementStock(ctx context.Context, productID string, quantity int) error {
	if s.decremented == nil {
		s.decremented = make(map[string]int)
	}
	s.decremented[productID] += quantity
	if s.decrementFn != nil {
		return s.decrementFn(ctx, productID, quantity)
	}
	return nil
}

type stubUserRepo struct {
	profile domain.UserProfile
	err     error
}

func (s *stubUserRepo) FindByID(ctx context.Context, userID string) (domain.UserProfile, error) {
	if s.err != nil {
		return domain.UserProfile{}, s.err
	}
	return s.profile, nil
}

type stubCounterRepo struct {
	next int64
	err  error
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.next += step
	return s.next, nil
}

func (s *stubCounterRepo) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	return nil
}

type stubGateway struct {
	createFn   func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error)
	retrieveFn func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error)
	lastCreate payments.IntentRequest
}

func (s *stubGateway) CreateIntent(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
	s.lastCreate = req
	if s.createFn != nil {
		return s.createFn(ctx, paymentCtx, req)
	}
	return payments.Intent{ID: "pi_1", Provider: "stripe", Status: payments.StatusPending, Amount: req.Amount, Currency: req.Currency}, nil
}

func (s *stubGateway) RetrieveIntent(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
	if s.retrieveFn != nil {
		return s.retrieveFn(ctx, paymentCtx, intentID)
	}
	return payments.Intent{ID: intentID, Provider: "stripe", Status: payments.StatusSucceeded}, nil
}

type stubDispatcher struct {
	messages []notify.InvoiceMessage
	err      error
}

func (s *stubDispatcher) SendInvoice(ctx context.Context, message notify.InvoiceMessage) (string, error) {
	s.messages = append(s.messages, message)
	return "msg-1", s.err
}

type fakeRepoErr struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e fakeRepoErr) Error() string       { return "repository error" }
func (e fakeRepoErr) IsNotFound() bool    { return e.notFound }
func (e fakeRepoErr) IsConflict() bool    { return e.conflict }
func (e fakeRepoErr) IsUnavailable() bool { return e.unavailable }

func syncEffectRunner() *EffectRunner {
	return NewEffectRunner(EffectRunnerDeps{
		Attempts: 1,
		Sleep:    func(time.Duration) {},
	})
}

func testOrderDeps() (OrderServiceDeps, *stubOrderRepo, *stubProductRepo, *stubGateway, *stubDispatcher, *EffectRunner) {
	orders := &stubOrderRepo{}
	products := &stubProductRepo{
		products: map[string]domain.Product{
			"prod-1": {ID: "prod-1", SellerID: "seller-1", Name: "Walnut Bowl", Price: 1500, Currency: "INR", Stock: 10, IsActive: true},
			"prod-2": {ID: "prod-2", SellerID: "seller-2", Name: "Clay Vase", Price: 700, Currency: "INR", Stock: 4, IsActive: true},
		},
	}
	gateway := &stubGateway{}
	dispatcher := &stubDispatcher{}
	effects := syncEffectRunner()

	deps := OrderServiceDeps{
		Orders:   orders,
		Products: products,
		Users:    &stubUserRepo{profile: domain.UserProfile{ID: "buyer-1", Email: "buyer@example.com"}},
		Counters: &stubCounterRepo{next: 41},
		Gateway:  gateway,
		Invoices: dispatcher,
		Effects:  effects,
		Clock:    func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
		IDGenerator: func() string {
			return "01TESTULID"
		},
	}
	return deps, orders, products, gateway, dispatcher, effects
}

func validAddress() domain.Address {
	return domain.Address{
		Street:     "14 Potter's Lane",
		City:       "Jaipur",
		State:      "Rajasthan",
		PostalCode: "302001",
		Country:    "IN",
	}
}

func buyer() Principal {
	return Principal{UID: "buyer-1", Roles: []string{"user"}}
}

func seller(id string) Principal {
	return Principal{UID: id, Roles: []string{"seller"}}
}

func admin() Principal {
	return Principal{UID: "admin-1", Roles: []string{"admin"}}
}

func TestFinalizeOrderCODCreatesPendingOrder(t *testing.T) {
	deps, orders, products, _, dispatcher, effects := testOrderDeps()
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}

	order, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal: buyer(),
		Items: []FinalizeOrderLine{
			{ProductID: "prod-1", Quantity: 2},
			{ProductID: "prod-2", Quantity: 1},
		},
		ClaimedTotal:    3700,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: validAddress(),
	})
	if err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}
	effects.Wait()

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected Pending status, got %s", order.Status)
	}
	if order.TransactionID != nil {
		t.Fatalf("COD orders must have no transaction id, got %v", *order.TransactionID)
	}
	if order.OrderNumber != "AS-2025-000042" {
		t.Fatalf("unexpected order number %s", order.OrderNumber)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Fatalf("unexpected order id %s", order.ID)
	}
	if order.TotalAmount != 3700 {
		t.Fatalf("unexpected total %d", order.TotalAmount)
	}
	if len(orders.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(orders.inserted))
	}
	if order.Items[0].SellerRef != "seller-1" || order.Items[1].SellerRef != "seller-2" {
		t.Fatalf("expected seller snapshots on line items, got %+v", order.Items)
	}

	if products.decremented["prod-1"] != 2 || products.decremented["prod-2"] != 1 {
		t.Fatalf("expected stock decrements per line, got %v", products.decremented)
	}
	if len(dispatcher.messages) != 1 {
		t.Fatalf("expected invoice dispatch, got %d", len(dispatcher.messages))
	}
	if dispatcher.messages[0].Email != "buyer@example.com" {
		t.Fatalf("expected buyer email on invoice, got %q", dispatcher.messages[0].Email)
	}
}

func TestFinalizeOrderCapturesTransactionID(t *testing.T) {
	deps, orders, _, gateway, _, effects := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 370000, Currency: "INR"}, nil
	}
	svc, _ := NewOrderService(deps)

	order, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 2}, {ProductID: "prod-2", Quantity: 1}},
		ClaimedTotal:    3700,
		PaymentMethod:   domain.PaymentMethodCreditCard,
		PaymentIntentID: "pi_123",
		DeliveryAddress: validAddress(),
	})
	if err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}
	effects.Wait()

	if order.TransactionID == nil || *order.TransactionID != "pi_123" {
		t.Fatalf("expected transaction id pi_123, got %v", order.TransactionID)
	}
	if len(orders.inserted) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(orders.inserted))
	}
}

func TestFinalizeOrderRejectsUnverifiedPayment(t *testing.T) {
	deps, orders, _, gateway, _, _ := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{ID: intentID, Status: payments.StatusPending}, nil
	}
	svc, _ := NewOrderService(deps)

	_, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    1500,
		PaymentMethod:   domain.PaymentMethodCreditCard,
		PaymentIntentID: "pi_pending",
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrPaymentNotVerified) {
		t.Fatalf("expected ErrPaymentNotVerified, got %v", err)
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("no order must be created when payment is unverified")
	}
}

func TestFinalizeOrderFailsClosedOnGatewayError(t *testing.T) {
	deps, orders, _, gateway, _, _ := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{}, errors.New("gateway timeout")
	}
	svc, _ := NewOrderService(deps)

	_, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    1500,
		PaymentMethod:   domain.PaymentMethodUPI,
		PaymentIntentID: "pi_timeout",
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrPaymentNotVerified) {
		t.Fatalf("expected ErrPaymentNotVerified on gateway failure, got %v", err)
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("no order must be created on gateway failure")
	}
}

func TestFinalizeOrderRejectsIntentAmountMismatch(t *testing.T) {
	deps, orders, _, gateway, _, _ := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		// Succeeded, but paid for far less than the cart is worth.
		return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 100, Currency: "INR"}, nil
	}
	svc, _ := NewOrderService(deps)

	_, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 2}, {ProductID: "prod-2", Quantity: 1}},
		ClaimedTotal:    3700,
		PaymentMethod:   domain.PaymentMethodCreditCard,
		PaymentIntentID: "pi_underpaid",
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrPaymentNotVerified) {
		t.Fatalf("expected ErrPaymentNotVerified for underpaid intent, got %v", err)
	}
	if len(orders.inserted) != 0 {
		t.Fatalf("no order must be created when the intent amount does not cover the total, got %d", len(orders.inserted))
	}
}

func TestFinalizeOrderInvoiceCarriesLineSummaries(t *testing.T) {
	deps, _, _, _, dispatcher, effects := testOrderDeps()
	svc, _ := NewOrderService(deps)

	_, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 2}, {ProductID: "prod-2", Quantity: 1}},
		ClaimedTotal:    3700,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: validAddress(),
	})
	if err != nil {
		t.Fatalf("FinalizeOrder: %v", err)
	}
	effects.Wait()

	if len(dispatcher.messages) != 1 {
		t.Fatalf("expected one invoice, got %d", len(dispatcher.messages))
	}
	lines := dispatcher.messages[0].Lines
	if len(lines) != 2 {
		t.Fatalf("expected 2 invoice lines, got %d", len(lines))
	}
	if lines[0].Name != "Walnut Bowl" || lines[0].UnitPrice != 1500 || lines[0].Quantity != 2 || lines[0].Total != 3000 {
		t.Fatalf("unexpected first line %+v", lines[0])
	}
	if lines[1].Name != "Clay Vase" || lines[1].Total != 700 {
		t.Fatalf("unexpected second line %+v", lines[1])
	}
}

func TestGatewayCallsRunUnderOwnDeadline(t *testing.T) {
	deps, _, _, gateway, _, _ := testOrderDeps()
	deps.GatewayTimeout = 3 * time.Second

	var createDeadline, retrieveDeadline time.Time
	gateway.createFn = func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
		createDeadline, _ = ctx.Deadline()
		return payments.Intent{ID: "pi_new", Status: payments.StatusPending, Amount: req.Amount, Currency: req.Currency}, nil
	}
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		retrieveDeadline, _ = ctx.Deadline()
		return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 49900, Currency: "INR"}, nil
	}
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	if _, err := svc.RequestPaymentIntent(ctx, PaymentIntentCommand{
		Principal:       buyer(),
		Amount:          499,
		DeliveryAddress: validAddress(),
	}); err != nil {
		t.Fatalf("RequestPaymentIntent: %v", err)
	}
	if createDeadline.IsZero() {
		t.Fatal("expected a deadline on the create-intent call")
	}
	if remaining := time.Until(createDeadline); remaining > 3*time.Second {
		t.Fatalf("create deadline exceeds the configured gateway timeout: %s", remaining)
	}

	if _, err := svc.VerifyPayment(ctx, VerifyPaymentCommand{
		Principal:     buyer(),
		TransactionID: "pi_123",
	}); err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if retrieveDeadline.IsZero() {
		t.Fatal("expected a deadline on the retrieve-intent call")
	}
}

func TestFinalizeOrderValidation(t *testing.T) {
	deps, _, _, _, _, _ := testOrderDeps()
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	_, err := svc.FinalizeOrder(ctx, FinalizeOrderCommand{
		Principal:       buyer(),
		ClaimedTotal:    100,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrOrderEmptyCart) {
		t.Fatalf("expected ErrOrderEmptyCart, got %v", err)
	}

	addr := validAddress()
	addr.PostalCode = ""
	_, err = svc.FinalizeOrder(ctx, FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    1500,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: addr,
	})
	if !errors.Is(err, ErrOrderInvalidAddress) {
		t.Fatalf("expected ErrOrderInvalidAddress, got %v", err)
	}

	_, err = svc.FinalizeOrder(ctx, FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    999,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrOrderInvalidAmount) {
		t.Fatalf("expected ErrOrderInvalidAmount on total mismatch, got %v", err)
	}

	if !errors.Is(ErrOrderEmptyCart, ErrOrderInvalidInput) {
		t.Fatal("validation sentinels must match ErrOrderInvalidInput")
	}
}

func TestFinalizeOrderDuplicateTransaction(t *testing.T) {
	deps, orders, _, gateway, _, _ := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 150000, Currency: "INR"}, nil
	}
	orders.insertFn = func(ctx context.Context, order domain.Order) error {
		return fakeRepoErr{conflict: true}
	}
	orders.findByTxnFn = func(ctx context.Context, transactionID string) (domain.Order, error) {
		return domain.Order{ID: "ord_existing"}, nil
	}
	svc, _ := NewOrderService(deps)

	_, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    1500,
		PaymentMethod:   domain.PaymentMethodCreditCard,
		PaymentIntentID: "pi_dup",
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if !strings.Contains(err.Error(), "ord_existing") {
		t.Fatalf("expected existing order id in error, got %v", err)
	}
}

func TestFinalizeOrderStockFailureDoesNotUnwindOrder(t *testing.T) {
	deps, orders, products, _, dispatcher, effects := testOrderDeps()
	products.decrementFn = func(ctx context.Context, productID string, quantity int) error {
		return fakeRepoErr{unavailable: true}
	}
	svc, _ := NewOrderService(deps)

	order, err := svc.FinalizeOrder(context.Background(), FinalizeOrderCommand{
		Principal:       buyer(),
		Items:           []FinalizeOrderLine{{ProductID: "prod-1", Quantity: 1}},
		ClaimedTotal:    1500,
		PaymentMethod:   domain.PaymentMethodCOD,
		DeliveryAddress: validAddress(),
	})
	if err != nil {
		t.Fatalf("FinalizeOrder must succeed despite stock failure: %v", err)
	}
	effects.Wait()

	if order.Status != domain.OrderStatusPending {
		t.Fatalf("expected order to stay Pending, got %s", order.Status)
	}
	if len(orders.deleted) != 0 {
		t.Fatalf("order must not be unwound on stock failure")
	}
	if len(dispatcher.messages) != 1 {
		t.Fatalf("invoice must still be dispatched, got %d", len(dispatcher.messages))
	}
}

func TestTransitionStatusGraph(t *testing.T) {
	cases := []struct {
		name    string
		from    domain.OrderStatus
		to      domain.OrderStatus
		wantErr error
	}{
		{name: "pending to shipped", from: domain.OrderStatusPending, to: domain.OrderStatusShipped},
		{name: "pending to delivered", from: domain.OrderStatusPending, to: domain.OrderStatusDelivered},
		{name: "pending to canceled", from: domain.OrderStatusPending, to: domain.OrderStatusCanceled},
		{name: "shipped to delivered", from: domain.OrderStatusShipped, to: domain.OrderStatusDelivered},
		{name: "shipped to canceled", from: domain.OrderStatusShipped, to: domain.OrderStatusCanceled},
		{name: "delivered is terminal", from: domain.OrderStatusDelivered, to: domain.OrderStatusCanceled, wantErr: ErrOrderInvalidState},
		{name: "canceled is terminal", from: domain.OrderStatusCanceled, to: domain.OrderStatusShipped, wantErr: ErrOrderInvalidState},
		{name: "no backwards edge", from: domain.OrderStatusShipped, to: domain.OrderStatusPending, wantErr: ErrOrderInvalidState},
		{name: "same terminal state", from: domain.OrderStatusDelivered, to: domain.OrderStatusDelivered, wantErr: ErrOrderInvalidState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps, orders, _, _, _, _ := testOrderDeps()
			orders.findByIDFn = func(ctx context.Context, orderID string) (domain.Order, error) {
				return domain.Order{
					ID:     orderID,
					Status: tc.from,
					Items:  []domain.OrderLineItem{{ProductRef: "prod-1", SellerRef: "seller-1"}},
				}, nil
			}
			svc, _ := NewOrderService(deps)

			order, err := svc.TransitionStatus(context.Background(), OrderStatusTransitionCommand{
				Principal:    seller("seller-1"),
				OrderID:      "ord_1",
				TargetStatus: tc.to,
			})
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				if len(orders.updated) != 0 {
					t.Fatalf("stored status must not change on rejected transition")
				}
				return
			}
			if err != nil {
				t.Fatalf("TransitionStatus: %v", err)
			}
			if order.Status != tc.to {
				t.Fatalf("expected status %s, got %s", tc.to, order.Status)
			}
			switch tc.to {
			case domain.OrderStatusShipped:
				if order.ShippedAt == nil {
					t.Fatal("expected ShippedAt stamp")
				}
			case domain.OrderStatusDelivered:
				if order.DeliveredAt == nil {
					t.Fatal("expected DeliveredAt stamp")
				}
			case domain.OrderStatusCanceled:
				if order.CanceledAt == nil {
					t.Fatal("expected CanceledAt stamp")
				}
			}
		})
	}
}

func TestTransitionStatusAuthorisation(t *testing.T) {
	deps, orders, _, _, _, _ := testOrderDeps()
	orders.findByIDFn = func(ctx context.Context, orderID string) (domain.Order, error) {
		return domain.Order{
			ID:     orderID,
			Status: domain.OrderStatusPending,
			Items:  []domain.OrderLineItem{{ProductRef: "prod-1", SellerRef: "seller-1"}},
		}, nil
	}
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	_, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		Principal:    seller("seller-other"),
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusShipped,
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for unrelated seller, got %v", err)
	}

	_, err = svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		Principal:    buyer(),
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusShipped,
	})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for buyer, got %v", err)
	}

	if _, err := svc.TransitionStatus(ctx, OrderStatusTransitionCommand{
		Principal:    admin(),
		OrderID:      "ord_1",
		TargetStatus: domain.OrderStatusShipped,
	}); err != nil {
		t.Fatalf("admin transition: %v", err)
	}
}

func TestDeleteOrderRules(t *testing.T) {
	deps, orders, _, _, _, _ := testOrderDeps()
	status := domain.OrderStatusPending
	orders.findByIDFn = func(ctx context.Context, orderID string) (domain.Order, error) {
		return domain.Order{
			ID:     orderID,
			Status: status,
			Items:  []domain.OrderLineItem{{ProductRef: "prod-1", SellerRef: "seller-1"}},
		}, nil
	}
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	if err := svc.DeleteOrder(ctx, DeleteOrderCommand{Principal: seller("seller-1"), OrderID: "ord_1"}); err != nil {
		t.Fatalf("seller delete: %v", err)
	}
	if len(orders.deleted) != 1 || orders.deleted[0] != "ord_1" {
		t.Fatalf("expected delete call, got %v", orders.deleted)
	}

	status = domain.OrderStatusDelivered
	err := svc.DeleteOrder(ctx, DeleteOrderCommand{Principal: admin(), OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for delivered order, got %v", err)
	}

	status = domain.OrderStatusPending
	err = svc.DeleteOrder(ctx, DeleteOrderCommand{Principal: buyer(), OrderID: "ord_1"})
	if !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for buyer delete, got %v", err)
	}
}

func TestRequestPaymentIntentConvertsToMinorUnits(t *testing.T) {
	deps, _, _, gateway, _, _ := testOrderDeps()
	gateway.createFn = func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
		return payments.Intent{ID: "pi_new", ClientSecret: "secret", Provider: "stripe", Status: payments.StatusPending, Amount: req.Amount, Currency: req.Currency}, nil
	}
	svc, _ := NewOrderService(deps)

	result, err := svc.RequestPaymentIntent(context.Background(), PaymentIntentCommand{
		Principal:       buyer(),
		Amount:          499,
		Currency:        "inr",
		CustomerName:    "Asha",
		DeliveryAddress: validAddress(),
	})
	if err != nil {
		t.Fatalf("RequestPaymentIntent: %v", err)
	}
	if gateway.lastCreate.Amount != 49900 {
		t.Fatalf("expected minor-unit amount 49900, got %d", gateway.lastCreate.Amount)
	}
	if result.IntentID != "pi_new" || result.ClientSecret != "secret" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestRequestPaymentIntentValidation(t *testing.T) {
	deps, _, _, _, _, _ := testOrderDeps()
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	_, err := svc.RequestPaymentIntent(ctx, PaymentIntentCommand{Principal: buyer(), Amount: 0, DeliveryAddress: validAddress()})
	if !errors.Is(err, ErrOrderInvalidAmount) {
		t.Fatalf("expected ErrOrderInvalidAmount, got %v", err)
	}

	_, err = svc.RequestPaymentIntent(ctx, PaymentIntentCommand{Principal: buyer(), Amount: 100})
	if !errors.Is(err, ErrOrderInvalidAddress) {
		t.Fatalf("expected ErrOrderInvalidAddress, got %v", err)
	}
}

func TestRequestPaymentIntentMapsDeclinedCards(t *testing.T) {
	deps, _, _, gateway, _, _ := testOrderDeps()
	gateway.createFn = func(ctx context.Context, paymentCtx payments.PaymentContext, req payments.IntentRequest) (payments.Intent, error) {
		return payments.Intent{}, payments.ErrCardDeclined
	}
	svc, _ := NewOrderService(deps)

	_, err := svc.RequestPaymentIntent(context.Background(), PaymentIntentCommand{
		Principal:       buyer(),
		Amount:          499,
		DeliveryAddress: validAddress(),
	})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected ErrPaymentDeclined, got %v", err)
	}
}

func TestVerifyPayment(t *testing.T) {
	deps, _, _, gateway, _, _ := testOrderDeps()
	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{ID: intentID, Status: payments.StatusSucceeded, Amount: 49900, Currency: "INR"}, nil
	}
	svc, _ := NewOrderService(deps)

	verification, err := svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Principal:     buyer(),
		TransactionID: "pi_123",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !verification.Verified || verification.TransactionID != "pi_123" {
		t.Fatalf("unexpected verification %+v", verification)
	}

	gateway.retrieveFn = func(ctx context.Context, paymentCtx payments.PaymentContext, intentID string) (payments.Intent, error) {
		return payments.Intent{ID: intentID, Status: payments.StatusFailed}, nil
	}
	verification, err = svc.VerifyPayment(context.Background(), VerifyPaymentCommand{
		Principal:     buyer(),
		TransactionID: "pi_456",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if verification.Verified {
		t.Fatal("failed intent must not verify")
	}
}

func TestListOrdersOwnership(t *testing.T) {
	deps, orders, _, _, _, _ := testOrderDeps()
	orders.listByBuyerFn = func(ctx context.Context, buyerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
		return domain.CursorPage[domain.Order]{Items: []domain.Order{{ID: "ord_1", BuyerID: buyerID}}}, nil
	}
	orders.listBySellerFn = func(ctx context.Context, sellerID string, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
		return domain.CursorPage[domain.Order]{Items: []domain.Order{{ID: "ord_2"}}}, nil
	}
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	page, err := svc.ListBuyerOrders(ctx, buyer(), "", OrderListFilter{})
	if err != nil {
		t.Fatalf("ListBuyerOrders: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].BuyerID != "buyer-1" {
		t.Fatalf("unexpected page %+v", page.Items)
	}

	if _, err := svc.ListBuyerOrders(ctx, buyer(), "someone-else", OrderListFilter{}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}

	if _, err := svc.ListSellerOrders(ctx, buyer(), "", OrderListFilter{}); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for non-seller, got %v", err)
	}

	if _, err := svc.ListSellerOrders(ctx, seller("seller-1"), "", OrderListFilter{}); err != nil {
		t.Fatalf("ListSellerOrders: %v", err)
	}

	if _, err := svc.ListSellerOrders(ctx, admin(), "seller-1", OrderListFilter{}); err != nil {
		t.Fatalf("admin ListSellerOrders: %v", err)
	}
}

func TestGetOrderOwnership(t *testing.T) {
	deps, orders, _, _, _, _ := testOrderDeps()
	orders.findByIDFn = func(ctx context.Context, orderID string) (domain.Order, error) {
		return domain.Order{
			ID:      orderID,
			BuyerID: "buyer-1",
			Items:   []domain.OrderLineItem{{ProductRef: "prod-1", SellerRef: "seller-1"}},
		}, nil
	}
	svc, _ := NewOrderService(deps)
	ctx := context.Background()

	if _, err := svc.GetOrder(ctx, buyer(), "ord_1"); err != nil {
		t.Fatalf("buyer GetOrder: %v", err)
	}
	if _, err := svc.GetOrder(ctx, seller("seller-1"), "ord_1"); err != nil {
		t.Fatalf("seller GetOrder: %v", err)
	}
	if _, err := svc.GetOrder(ctx, seller("seller-other"), "ord_1"); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden, got %v", err)
	}
	if _, err := svc.GetOrder(ctx, Principal{UID: "stranger", Roles: []string{"user"}}, "ord_1"); !errors.Is(err, ErrOrderForbidden) {
		t.Fatalf("expected ErrOrderForbidden for stranger, got %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	deps, _, _, _, _, _ := testOrderDeps()
	svc, _ := NewOrderService(deps)

	_, err := svc.GetOrder(context.Background(), admin(), "missing")
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
