package ap

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

// Handler manages AP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers AP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/ap", func(r chi.Router) {
		r.Get("/vendors", h.listVendors)
		r.Get("/vendors/{id}", h.getVendor)
		r.Get("/vendors/{id}/bills", h.listVendorBills)
		r.Get("/bills/{id}", h.getBill)
		r.Post("/bill-payments", h.recordPayment)
	})
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.service.ListVendors(r.Context())
	if err != nil {
		h.logger.Error("list vendors", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendors": vendors})
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid vendor id")
		return
	}
	vendor, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrVendorNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get vendor", "error", err, "vendor_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, vendor)
}

func (h *Handler) listVendorBills(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid vendor id")
		return
	}
	bills, err := h.service.ListVendorBills(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrVendorNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("list vendor bills", "error", err, "vendor_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"bills": bills})
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.BadRequest(w, "invalid bill id")
		return
	}
	details, err := h.service.GetBillWithDetails(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBillNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get bill", "error", err, "bill_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
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
	bill, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, ErrBillNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrInvalidAmount):
			httpx.BadRequest(w, err.Error())
		default:
			h.logger.Error("record bill payment", "error", err, "bill_id", input.BillID)
			httpx.Error(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}
