package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/repositories"
)

const (
	defaultReportScanLimit  = 5000
	defaultReportTopLimit   = 10
	reportDailyBucketLayout = "2006-01-02"
)

var (
	// ErrReportInvalidInput signals invalid reporting parameters.
	ErrReportInvalidInput = errors.New("report: invalid input")
	// ErrReportForbidden indicates the caller may not read the requested report.
	ErrReportForbidden = errors.New("report: forbidden")
)

// ReportServiceDeps bundles collaborators for the report service.
type ReportServiceDeps struct {
	Orders    repositories.OrderRepository
	Clock     func() time.Time
	ScanLimit int
}

type reportService struct {
	orders    repositories.OrderRepository
	clock     func() time.Time
	scanLimit int
}

// NewReportService constructs a ReportService over the order ledger.
func NewReportService(deps ReportServiceDeps) (ReportService, error) {
	if deps.Orders == nil {
		return nil, errors.New("report service: order repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	limit := deps.ScanLimit
	if limit <= 0 {
		limit = defaultReportScanLimit
	}

	return &reportService{
		orders: deps.Orders,
		clock: func() time.Time {
			return clock().UTC()
		},
		scanLimit: limit,
	}, nil
}

// SellerSales aggregates delivered orders only. Pending, Shipped, and
// Canceled orders never count towards revenue.
func (s *reportService) SellerSales(ctx context.Context, cmd SalesReportCommand) (SalesReport, error) {
	sellerID := strings.TrimSpace(cmd.SellerID)
	if sellerID == "" {
		sellerID = cmd.Principal.UID
	}
	if sellerID == "" {
		return SalesReport{}, fmt.Errorf("%w: seller id is required", ErrReportInvalidInput)
	}
	if !cmd.Principal.IsAdmin() {
		if !cmd.Principal.IsSeller() || sellerID != cmd.Principal.UID {
			return SalesReport{}, fmt.Errorf("%w: cannot read another seller's report", ErrReportForbidden)
		}
	}
	if cmd.From != nil && cmd.To != nil && cmd.To.Before(*cmd.From) {
		return SalesReport{}, fmt.Errorf("%w: report window end precedes start", ErrReportInvalidInput)
	}

	orders, err := s.orders.ListDelivered(ctx, repositories.SalesQuery{
		SellerID:  sellerID,
		DateRange: domain.RangeQuery[time.Time]{From: cmd.From, To: cmd.To},
		Limit:     s.scanLimit,
	})
	if err != nil {
		return SalesReport{}, err
	}

	report := SalesReport{
		SellerID:    sellerID,
		From:        cmd.From,
		To:          cmd.To,
		GeneratedAt: s.clock(),
	}

	daily := make(map[string]*SalesBucket)
	products := make(map[string]*SalesBucket)
	countedOrders := make(map[string]bool)

	for _, order := range orders {
		if order.Status != domain.OrderStatusDelivered {
			continue
		}
		deliveredAt := order.CreatedAt
		if order.DeliveredAt != nil {
			deliveredAt = *order.DeliveredAt
		}
		day := deliveredAt.UTC().Format(reportDailyBucketLayout)

		for _, item := range order.Items {
			// Orders can mix sellers; only this seller's lines count.
			if item.SellerRef != sellerID {
				continue
			}
			if !countedOrders[order.ID] {
				countedOrders[order.ID] = true
				report.TotalOrders++
				bumpBucket(daily, day, 1, 0, 0)
			}
			report.TotalUnits += item.Quantity
			report.Revenue += item.Total
			bumpBucket(daily, day, 0, item.Quantity, item.Total)
			bumpBucket(products, item.ProductRef, 0, item.Quantity, item.Total)
		}
	}

	report.Daily = sortBucketsByKey(daily)

	topLimit := cmd.TopLimit
	if topLimit <= 0 {
		topLimit = defaultReportTopLimit
	}
	report.TopProducts = topBucketsByRevenue(products, topLimit)

	return report, nil
}

func bumpBucket(buckets map[string]*SalesBucket, key string, orders, units int, revenue int64) {
	bucket, ok := buckets[key]
	if !ok {
		bucket = &SalesBucket{Key: key}
		buckets[key] = bucket
	}
	bucket.Orders += orders
	bucket.Units += units
	bucket.Revenue += revenue
}

func sortBucketsByKey(buckets map[string]*SalesBucket) []SalesBucket {
	out := make([]SalesBucket, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key < out[j].Key
	})
	return out
}

func topBucketsByRevenue(buckets map[string]*SalesBucket, limit int) []SalesBucket {
	out := make([]SalesBucket, 0, len(buckets))
	for _, bucket := range buckets {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
