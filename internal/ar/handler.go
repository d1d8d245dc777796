package ar

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harborline/harborline/internal/platform/httpx"
)

// Handler manages AR endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ar", func(r chi.Router) {
		r.Get("/customers", h.listCustomers)
		r.Get("/customers/{id}", h.getCustomer)
		r.Get("/customers/{id}/invoices", h.listCustomerInvoices)
		r.Get("/customers/{id}/quotes", h.listCustomerQuotes)
		r.Get("/invoices/{id}", h.getInvoice)
		r.Get("/quotes/{id}", h.getQuote)
		r.Post("/payments", h.recordPayment)
	})
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid customer id")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get customer", "error", err, "customer_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) listCustomerInvoices(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid customer id")
		return
	}
	invoices, err := h.service.ListCustomerInvoices(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("list customer invoices", "error", err, "customer_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (h *Handler) listCustomerQuotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid customer id")
		return
	}
	quotes, err := h.service.ListCustomerQuotes(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("list customer quotes", "error", err, "customer_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid invoice id")
		return
	}
	details, err := h.service.GetInvoiceWithDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get invoice", "error", err, "invoice_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid quote id")
		return
	}
	quote, err := h.service.GetQuote(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrQuoteNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get quote", "error", err, "quote_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	var input RecordPaymentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	invoice, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvoiceNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrInvalidAmount):
			httpx.BadRequest(w, err.Error())
		default:
			h.logger.Error("record payment", "error", err, "invoice_id", input.InvoiceID)
			httpx.Error(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
