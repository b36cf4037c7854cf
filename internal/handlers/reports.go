package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/artisanshop/api/internal/domain"
	"github.com/artisanshop/api/internal/platform/auth"
	"github.com/artisanshop/api/internal/platform/httpx"
	"github.com/artisanshop/api/internal/services"
)

type salesBucketPayload struct {
	Key     string `json:"key"`
	Orders  int    `json:"orders"`
	Units   int    `json:"units"`
	Revenue int64  `json:"revenue"`
}

type salesReportPayload struct {
	SellerID    string               `json:"sellerId"`
	From        string               `json:"from,omitempty"`
	To          string               `json:"to,omitempty"`
	TotalOrders int                  `json:"totalOrders"`
	TotalUnits  int                  `json:"totalUnits"`
	Revenue     int64                `json:"revenue"`
	Daily       []salesBucketPayload `json:"daily"`
	TopProducts []salesBucketPayload `json:"topProducts"`
	GeneratedAt string               `json:"generatedAt"`
}

// ReportHandlers exposes seller-facing sales reporting endpoints.
type ReportHandlers struct {
	authn   *auth.Authenticator
	reports services.ReportService
}

// NewReportHandlers constructs a new ReportHandlers instance.
func NewReportHandlers(authn *auth.Authenticator, reports services.ReportService) *ReportHandlers {
	return &ReportHandlers{
		authn:   authn,
		reports: reports,
	}
}

// Routes registers the /reports endpoints.
func (h *ReportHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/seller", h.sellerSales)
}

func (h *ReportHandlers) sellerSales(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.reports == nil {
		httpx.WriteError(ctx, w, httpx.NewError("report_service_unavailable", "report service unavailable", http.StatusServiceUnavailable))
		return
	}

	principal, ok := principalFromContext(r)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	query := r.URL.Query()
	cmd := services.SalesReportCommand{
		Principal: principal,
		SellerID:  strings.TrimSpace(query.Get("sellerId")),
	}

	if raw := strings.TrimSpace(query.Get("from")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "from must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("to")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "to must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		cmd.To = &ts
	}
	if raw := strings.TrimSpace(query.Get("top")); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "top must be a positive integer", http.StatusBadRequest))
			return
		}
		cmd.TopLimit = top
	}

	report, err := h.reports.SellerSales(ctx, cmd)
	if err != nil {
		writeReportError(w, r, err)
		return
	}

	httpx.WriteSuccess(w, http.StatusOK, "", map[string]any{
		"report": buildSalesReportPayload(report),
	})
}

func buildSalesReportPayload(report domain.SalesReport) salesReportPayload {
	return salesReportPayload{
		SellerID:    report.SellerID,
		From:        formatOptionalTime(report.From),
		To:          formatOptionalTime(report.To),
		TotalOrders: report.TotalOrders,
		TotalUnits:  report.TotalUnits,
		Revenue:     report.Revenue,
		Daily:       buildSalesBucketPayloads(report.Daily),
		TopProducts: buildSalesBucketPayloads(report.TopProducts),
		GeneratedAt: formatTime(report.GeneratedAt),
	}
}

func buildSalesBucketPayloads(buckets []domain.SalesBucket) []salesBucketPayload {
	payload := make([]salesBucketPayload, 0, len(buckets))
	for _, bucket := range buckets {
		payload = append(payload, salesBucketPayload{
			Key:     bucket.Key,
			Orders:  bucket.Orders,
			Units:   bucket.Units,
			Revenue: bucket.Revenue,
		})
	}
	return payload
}

func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrReportInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrReportForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "you do not have access to this report", http.StatusForbidden))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "failed to build sales report", http.StatusInternalServerError))
	}
}
