package reports

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	trialBalance TrialBalance
	arAging      AgingReport
	apAging      AgingReport
	bankBalance  float64
	err          error
}

func (s *stubService) GetTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	return s.trialBalance, s.err
}

func (s *stubService) GetARAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.arAging, s.err
}

func (s *stubService) GetAPAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.apAging, s.err
}

func (s *stubService) GetBankBalance(ctx context.Context) (float64, error) {
	return s.bankBalance, s.err
}

func newReportRouter(service ReportService) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(logger, service)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestSummaryComposesReports(t *testing.T) {
	asOf, err := time.Parse("2006-01-02", "2024-06-30")
	require.NoError(t, err)

	service := &stubService{
		trialBalance: TrialBalance{AsOf: asOf, TotalDebits: 5000, TotalCredits: 5000},
		arAging:      AgingReport{Total: 1550},
		apAging:      AgingReport{Total: 300},
		bankBalance:  18000,
	}
	router := newReportRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/reports/summary?as_of_date=2024-06-30", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.InDelta(t, 5000, summary.TotalDebits, 0.001)
	require.InDelta(t, 1550, summary.TotalReceivable, 0.001)
	require.InDelta(t, 300, summary.TotalPayable, 0.001)
	require.InDelta(t, 18000, summary.BankBalance, 0.001)
}

func TestSummaryPropagatesErrors(t *testing.T) {
	router := newReportRouter(&stubService{err: errors.New("redis down")})

	req := httptest.NewRequest(http.MethodGet, "/reports/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTrialBalanceRejectsBadDate(t *testing.T) {
	router := newReportRouter(&stubService{})

	req := httptest.NewRequest(http.MethodGet, "/reports/trial-balance?as_of_date=junk", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
