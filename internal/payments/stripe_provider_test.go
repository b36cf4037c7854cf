package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	newFn func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFn func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFn(params)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.getFn(id, params)
}

func newTestStripeProvider(t *testing.T, api *stubIntentAPI) *StripeProvider {
	t.Helper()
	provider, err := NewStripeProvider(StripeProviderConfig{
		Clients: &stripeClients{intents: api},
		Clock:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("new stripe provider: %v", err)
	}
	return provider
}

func TestStripeCreateIntentNormalisesResponse(t *testing.T) {
	api := &stubIntentAPI{
		newFn: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			if params.Amount == nil || *params.Amount != 49900 {
				t.Fatalf("expected minor-unit amount 49900, got %v", params.Amount)
			}
			if params.Currency == nil || *params.Currency != "inr" {
				t.Fatalf("expected lowercase currency, got %v", params.Currency)
			}
			return &stripe.PaymentIntent{
				ID:           "pi_123",
				ClientSecret: "pi_123_secret",
				Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
				Amount:       49900,
				Currency:     stripe.CurrencyINR,
				Created:      time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Unix(),
			}, nil
		},
	}
	provider := newTestStripeProvider(t, api)

	intent, err := provider.CreateIntent(context.Background(), IntentRequest{
		Amount:       49900,
		Currency:     "INR",
		CustomerName: "Asha",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}
	if intent.ID != "pi_123" {
		t.Fatalf("unexpected intent id %q", intent.ID)
	}
	if intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("expected client secret to be surfaced")
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", intent.Status)
	}
	if intent.Currency != "INR" {
		t.Fatalf("expected uppercase currency, got %q", intent.Currency)
	}
}

func TestStripeCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	provider := newTestStripeProvider(t, &stubIntentAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			t.Fatalf("api must not be called for invalid amount")
			return nil, nil
		},
	})

	if _, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 0, Currency: "INR"}); err == nil {
		t.Fatalf("expected error for zero amount")
	}
}

func TestStripeCardErrorsMapToErrCardDeclined(t *testing.T) {
	api := &stubIntentAPI{
		newFn: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{
				Type:        stripe.ErrorTypeCard,
				DeclineCode: stripe.DeclineCodeInsufficientFunds,
				Msg:         "Your card has insufficient funds.",
			}
		},
	}
	provider := newTestStripeProvider(t, api)

	_, err := provider.CreateIntent(context.Background(), IntentRequest{Amount: 1000, Currency: "INR"})
	if !errors.Is(err, ErrCardDeclined) {
		t.Fatalf("expected ErrCardDeclined, got %v", err)
	}
}

func TestStripeTransportErrorsStayGeneric(t *testing.T) {
	api := &stubIntentAPI{
		getFn: func(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, &stripe.Error{Type: stripe.ErrorTypeAPI, Msg: "upstream unavailable"}
		},
	}
	provider := newTestStripeProvider(t, api)

	_, err := provider.RetrieveIntent(context.Background(), "pi_123")
	if err == nil {
		t.Fatalf("expected error")
	}
	if errors.Is(err, ErrCardDeclined) {
		t.Fatalf("api errors must not surface as card declines")
	}
}

func TestStripeRetrieveIntentStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status stripe.PaymentIntentStatus
		want   Status
	}{
		{"succeeded", stripe.PaymentIntentStatusSucceeded, StatusSucceeded},
		{"canceled", stripe.PaymentIntentStatusCanceled, StatusFailed},
		{"requires_payment_method", stripe.PaymentIntentStatusRequiresPaymentMethod, StatusPending},
		{"processing", stripe.PaymentIntentStatusProcessing, StatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &stubIntentAPI{
				getFn: func(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
					return &stripe.PaymentIntent{ID: id, Status: tc.status, Currency: stripe.CurrencyINR}, nil
				},
			}
			provider := newTestStripeProvider(t, api)
			intent, err := provider.RetrieveIntent(context.Background(), "pi_x")
			if err != nil {
				t.Fatalf("retrieve intent: %v", err)
			}
			if intent.Status != tc.want {
				t.Fatalf("expected status %q, got %q", tc.want, intent.Status)
			}
		})
	}
}
