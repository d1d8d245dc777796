package reports

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/harborline/harborline/internal/platform/httpx"
)

// ReportService defines the report data contract used by the handler.
type ReportService interface {
	GetTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error)
	GetARAging(ctx context.Context, asOf time.Time) (AgingReport, error)
	GetAPAging(ctx context.Context, asOf time.Time) (AgingReport, error)
	GetBankBalance(ctx context.Context) (float64, error)
}

// Handler serves the accounting report endpoints.
type Handler struct {
	logger  *slog.Logger
	service ReportService
	now     func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service ReportService) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.Get("/trial-balance", h.trialBalance)
		r.Get("/ar-aging", h.arAging)
		r.Get("/ap-aging", h.apAging)
		r.Get("/summary", h.summary)
	})
}

func (h *Handler) trialBalance(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfDate(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetTrialBalance(r.Context(), asOf)
	if err != nil {
		h.logger.Error("trial balance report", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) arAging(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfDate(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetARAging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("ar aging report", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) apAging(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfDate(w, r)
	if !ok {
		return
	}
	report, err := h.service.GetAPAging(r.Context(), asOf)
	if err != nil {
		h.logger.Error("ap aging report", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

// summary composes the overview from the individual reports, fetched
// concurrently. Each part hits its own cache entry.
func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	asOf, ok := h.asOfDate(w, r)
	if !ok {
		return
	}

	var (
		tb   TrialBalance
		ar   AgingReport
		ap   AgingReport
		bank float64
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		tb, err = h.service.GetTrialBalance(ctx, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		ar, err = h.service.GetARAging(ctx, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		ap, err = h.service.GetAPAging(ctx, asOf)
		return err
	})
	g.Go(func() error {
		var err error
		bank, err = h.service.GetBankBalance(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("summary report", "error", err)
		httpx.Error(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, Summary{
		AsOf:            tb.AsOf,
		TotalDebits:     tb.TotalDebits,
		TotalCredits:    tb.TotalCredits,
		TotalReceivable: ar.Total,
		TotalPayable:    ap.Total,
		BankBalance:     bank,
	})
}

// asOfDate reads the as_of_date query parameter, defaulting to today.
func (h *Handler) asOfDate(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of_date")
	if raw == "" {
		return h.now().UTC().Truncate(24 * time.Hour), true
	}
	asOf, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.BadRequest(w, "as_of_date must be formatted YYYY-MM-DD")
		return time.Time{}, false
	}
	return asOf, true
}
