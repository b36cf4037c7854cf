package payments

import (
	"context"
	"errors"
	"testing"
)

type fakeProvider struct {
	lastOp string
	intent Intent
	err    error
}

func (f *fakeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	f.lastOp = "create"
	return f.intent, f.err
}

func (f *fakeProvider) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	f.lastOp = "retrieve"
	return f.intent, f.err
}

func TestManagerCreateIntentUsesPreferredProvider(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	razorpay := &fakeProvider{intent: Intent{ID: "pi_razorpay"}}

	mgr, err := NewManager(map[string]Provider{
		"stripe":   stripe,
		"razorpay": razorpay,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	intent, err := mgr.CreateIntent(ctx, PaymentContext{PreferredProvider: "razorpay"}, IntentRequest{Amount: 1000, Currency: "INR"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if intent.Provider != "razorpay" {
		t.Fatalf("expected provider 'razorpay', got %q", intent.Provider)
	}
	if razorpay.lastOp != "create" {
		t.Fatalf("expected razorpay provider to handle call")
	}
	if stripe.lastOp != "" {
		t.Fatalf("expected stripe provider to remain unused")
	}
}

func TestManagerRoutesByCurrency(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_stripe"}}
	razorpay := &fakeProvider{intent: Intent{ID: "pi_razorpay"}}

	mgr, err := NewManager(
		map[string]Provider{
			"stripe":   stripe,
			"razorpay": razorpay,
		},
		WithCurrencyRoutes(map[string]string{"INR": "razorpay"}),
	)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	intent, err := mgr.CreateIntent(ctx, PaymentContext{Currency: "INR"}, IntentRequest{Amount: 1000, Currency: "INR"})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.Provider != "razorpay" {
		t.Fatalf("expected provider 'razorpay', got %q", intent.Provider)
	}
	if razorpay.lastOp != "create" {
		t.Fatalf("expected razorpay provider to handle call")
	}
}

func TestManagerFallsBackToDefault(t *testing.T) {
	ctx := context.Background()
	stripe := &fakeProvider{intent: Intent{ID: "pi_123", Status: StatusSucceeded}}

	mgr, err := NewManager(map[string]Provider{"stripe": stripe})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	intent, err := mgr.RetrieveIntent(ctx, PaymentContext{}, "pi_123")
	if err != nil {
		t.Fatalf("retrieve intent: %v", err)
	}
	if stripe.lastOp != "retrieve" {
		t.Fatalf("expected retrieve to invoke default provider")
	}
	if intent.Provider != "stripe" {
		t.Fatalf("unexpected provider on intent: %q", intent.Provider)
	}
}

func TestManagerUnsupportedProvider(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewManager(map[string]Provider{"stripe": &fakeProvider{}, "razorpay": &fakeProvider{}}, WithDefaultProvider(""))
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.CreateIntent(ctx, PaymentContext{PreferredProvider: "unknown"}, IntentRequest{Amount: 1000, Currency: "USD"})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestNewManagerValidatesProviders(t *testing.T) {
	if _, err := NewManager(map[string]Provider{"bad": nil}); err == nil {
		t.Fatalf("expected error for nil provider")
	}
	if _, err := NewManager(nil); err == nil {
		t.Fatalf("expected error when providers empty")
	}
}

func TestMinorUnitsConversion(t *testing.T) {
	if got := MinorUnits(499); got != 49900 {
		t.Fatalf("expected 49900, got %d", got)
	}
	if got := MajorUnits(49900); got != 499 {
		t.Fatalf("expected 499, got %d", got)
	}
	if got := MajorUnits(49950); got != 499 {
		t.Fatalf("expected truncation to 499, got %d", got)
	}
}
