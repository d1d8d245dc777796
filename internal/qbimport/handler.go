package qbimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborline/harborline/internal/platform/httpx"
)

// Handler exposes the QuickBooks import endpoints. Every endpoint takes a
// multipart upload under the "file" field and answers with the import
// summary on success.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	maxBytes int64
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, maxBytes int64) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), maxBytes: maxBytes}
}

// MountRoutes registers import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/imports/quickbooks", func(r chi.Router) {
		r.Post("/chart-of-accounts", h.importChartOfAccounts)
		r.Post("/customers", h.importCustomers)
		r.Post("/vendors", h.importVendors)
		r.Post("/items", h.importItems)
		r.Post("/invoices", h.importInvoices)
		r.Post("/estimates", h.importEstimates)
		r.Post("/bills", h.importBills)
		r.Post("/vendor-transactions", h.importVendorTransactions)
		r.Post("/payments", h.importPayments)
		r.Post("/general-ledger", h.importGeneralLedger)
		r.Post("/backup", h.importBackup)
	})
}

func (h *Handler) importChartOfAccounts(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "chart of accounts", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportChartOfAccounts(ctx, file)
	})
}

func (h *Handler) importCustomers(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "customers", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportCustomers(ctx, file)
	})
}

func (h *Handler) importVendors(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "vendors", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportVendors(ctx, file)
	})
}

func (h *Handler) importItems(w http.ResponseWriter, r *http.Request) {
	file, ok := h.openUpload(w, r, csvExtensions)
	if !ok {
		return
	}
	defer file.Close()

	importAs := r.FormValue("import_as")
	if importAs == "" {
		importAs = ImportAsBoth
	}
	if err := h.validate.Var(importAs, "oneof=parts services both"); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string][]string{"import_as": {"The import_as field must be one of: parts, services, both."}},
		})
		return
	}

	summary, err := h.service.ImportItems(r.Context(), file, importAs)
	if err != nil {
		h.fail(w, "items", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) importInvoices(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "invoices", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportInvoices(ctx, file)
	})
}

func (h *Handler) importEstimates(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "estimates", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportEstimates(ctx, file)
	})
}

func (h *Handler) importBills(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "bills", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportBills(ctx, file)
	})
}

func (h *Handler) importVendorTransactions(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "vendor transactions", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportVendorTransactions(ctx, file)
	})
}

func (h *Handler) importPayments(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "payments", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportPayments(ctx, file)
	})
}

func (h *Handler) importGeneralLedger(w http.ResponseWriter, r *http.Request) {
	h.runCSV(w, r, "general ledger", func(ctx context.Context, file io.Reader) (any, error) {
		return h.service.ImportGeneralLedger(ctx, file)
	})
}

func (h *Handler) importBackup(w http.ResponseWriter, r *http.Request) {
	file, ok := h.openUpload(w, r, jsonExtensions)
	if !ok {
		return
	}
	defer file.Close()

	importType := r.FormValue("import_type")
	if importType == "" {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string][]string{"import_type": {"The import_type field is required."}},
		})
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, "backup", err)
		return
	}

	summary, err := h.service.RestoreBackup(r.Context(), importType, payload)
	if err != nil {
		h.fail(w, "backup", err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

var (
	csvExtensions  = map[string]bool{".csv": true, ".txt": true}
	jsonExtensions = map[string]bool{".json": true, ".txt": true}
)

func (h *Handler) runCSV(w http.ResponseWriter, r *http.Request, kind string, run func(context.Context, io.Reader) (any, error)) {
	file, ok := h.openUpload(w, r, csvExtensions)
	if !ok {
		return
	}
	defer file.Close()

	summary, err := run(r.Context(), file)
	if err != nil {
		h.fail(w, kind, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

// openUpload pulls the "file" part out of the multipart body, enforcing
// the size cap and the allowed extensions. On failure it writes the 422
// itself and returns ok=false.
func (h *Handler) openUpload(w http.ResponseWriter, r *http.Request, allowed map[string]bool) (multipart.File, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string][]string{"file": {"The file field is required and may not exceed the upload limit."}},
		})
		return nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string][]string{"file": {"The file field is required."}},
		})
		return nil, false
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowed[ext] {
		file.Close()
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{
			"errors": map[string][]string{"file": {fmt.Sprintf("The file type %s is not allowed.", ext)}},
		})
		return nil, false
	}
	return file, true
}

func (h *Handler) fail(w http.ResponseWriter, kind string, err error) {
	h.logger.Error("quickbooks import failed", "import", kind, "error", err)
	httpx.JSON(w, http.StatusInternalServerError, map[string]any{
		"message": "Import failed",
		"error":   EnsureUTF8(err.Error()),
		"errors":  []string{},
	})
}
