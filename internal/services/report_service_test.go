package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/repositories"
)

func deliveredOrder(id string, deliveredAt time.Time, items ...domain.OrderLineItem) domain.Order {
	return domain.Order{
		ID:          id,
		Status:      domain.OrderStatusDelivered,
		Items:       items,
		DeliveredAt: &deliveredAt,
	}
}

func TestSellerSalesAggregatesDeliveredOrders(t *testing.T) {
	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 18, 30, 0, 0, time.UTC)

	orders := &stubOrderRepo{
		listDeliveredFn: func(ctx context.Context, query repositories.SalesQuery) ([]domain.Order, error) {
			if query.SellerID != "seller-1" {
				t.Fatalf("unexpected seller query %q", query.SellerID)
			}
			return []domain.Order{
				deliveredOrder("ord_1", day1,
					domain.OrderLineItem{ProductRef: "prod-1", SellerRef: "seller-1", Quantity: 2, Total: 3000},
					domain.OrderLineItem{ProductRef: "prod-9", SellerRef: "seller-other", Quantity: 1, Total: 500},
				),
				deliveredOrder("ord_2", day2,
					domain.OrderLineItem{ProductRef: "prod-1", SellerRef: "seller-1", Quantity: 1, Total: 1500},
					domain.OrderLineItem{ProductRef: "prod-2", SellerRef: "seller-1", Quantity: 3, Total: 2100},
				),
			}, nil
		},
	}

	svc, err := NewReportService(ReportServiceDeps{
		Orders: orders,
		Clock:  func() time.Time { return day2.Add(24 * time.Hour) },
	})
	if err != nil {
		t.Fatalf("NewReportService: %v", err)
	}

	report, err := svc.SellerSales(context.Background(), SalesReportCommand{
		Principal: seller("seller-1"),
	})
	if err != nil {
		t.Fatalf("SellerSales: %v", err)
	}

	if report.TotalOrders != 2 {
		t.Fatalf("expected 2 orders, got %d", report.TotalOrders)
	}
	if report.TotalUnits != 6 {
		t.Fatalf("expected 6 units, got %d", report.TotalUnits)
	}
	// seller-other's line item must not count.
	if report.Revenue != 6600 {
		t.Fatalf("expected revenue 6600, got %d", report.Revenue)
	}

	if len(report.Daily) != 2 {
		t.Fatalf("expected 2 daily buckets, got %d", len(report.Daily))
	}
	if report.Daily[0].Key != "2025-03-01" || report.Daily[0].Revenue != 3000 {
		t.Fatalf("unexpected first daily bucket %+v", report.Daily[0])
	}
	if report.Daily[1].Key != "2025-03-02" || report.Daily[1].Revenue != 3600 {
		t.Fatalf("unexpected second daily bucket %+v", report.Daily[1])
	}

	if len(report.TopProducts) != 2 {
		t.Fatalf("expected 2 product buckets, got %d", len(report.TopProducts))
	}
	if report.TopProducts[0].Key != "prod-1" || report.TopProducts[0].Revenue != 4500 {
		t.Fatalf("expected prod-1 leading with 4500, got %+v", report.TopProducts[0])
	}
}

func TestSellerSalesSkipsNonDeliveredOrders(t *testing.T) {
	orders := &stubOrderRepo{
		listDeliveredFn: func(ctx context.Context, query repositories.SalesQuery) ([]domain.Order, error) {
			return []domain.Order{
				{
					ID:     "ord_pending",
					Status: domain.OrderStatusPending,
					Items:  []domain.OrderLineItem{{ProductRef: "prod-1", SellerRef: "seller-1", Quantity: 5, Total: 7500}},
				},
			}, nil
		},
	}

	svc, _ := NewReportService(ReportServiceDeps{Orders: orders})

	report, err := svc.SellerSales(context.Background(), SalesReportCommand{Principal: seller("seller-1")})
	if err != nil {
		t.Fatalf("SellerSales: %v", err)
	}
	if report.TotalOrders != 0 || report.Revenue != 0 {
		t.Fatalf("non-delivered orders must not count, got %+v", report)
	}
}

func TestSellerSalesAuthorisation(t *testing.T) {
	orders := &stubOrderRepo{}
	svc, _ := NewReportService(ReportServiceDeps{Orders: orders})
	ctx := context.Background()

	_, err := svc.SellerSales(ctx, SalesReportCommand{Principal: seller("seller-1"), SellerID: "seller-2"})
	if !errors.Is(err, ErrReportForbidden) {
		t.Fatalf("expected ErrReportForbidden, got %v", err)
	}

	_, err = svc.SellerSales(ctx, SalesReportCommand{Principal: buyer(), SellerID: "seller-1"})
	if !errors.Is(err, ErrReportForbidden) {
		t.Fatalf("expected ErrReportForbidden for buyer, got %v", err)
	}

	if _, err := svc.SellerSales(ctx, SalesReportCommand{Principal: admin(), SellerID: "seller-1"}); err != nil {
		t.Fatalf("admin report: %v", err)
	}
}

func TestSellerSalesRejectsInvertedWindow(t *testing.T) {
	orders := &stubOrderRepo{}
	svc, _ := NewReportService(ReportServiceDeps{Orders: orders})

	from := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	to := from.Add(-24 * time.Hour)
	_, err := svc.SellerSales(context.Background(), SalesReportCommand{
		Principal: seller("seller-1"),
		From:      &from,
		To:        &to,
	})
	if !errors.Is(err, ErrReportInvalidInput) {
		t.Fatalf("expected ErrReportInvalidInput, got %v", err)
	}
}
