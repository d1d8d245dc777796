package accounting

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

// Handler manages chart-of-accounts and journal endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers accounting routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounting", func(r chi.Router) {
		r.Get("/accounts", h.listAccounts)
		r.Get("/accounts/{id}", h.getAccount)
		r.Get("/accounts/{id}/ledger", h.accountLedger)
		r.Post("/journal-entries", h.createJournalEntry)
		r.Get("/journal-entries/{id}", h.getJournalEntry)
		r.Post("/journal-entries/{id}/post", h.postJournalEntry)
	})
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.logger.Error("list accounts", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid account id")
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get account", "error", err, "account_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) accountLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid account id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.service.AccountLedger(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("account ledger", "error", err, "account_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (h *Handler) createJournalEntry(w http.ResponseWriter, r *http.Request) {
	var input CreateJournalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httpx.BadRequest(w, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	entry, err := h.service.CreateJournalEntry(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrEmptyEntry) || errors.Is(err, ErrBothSides) {
			httpx.BadRequest(w, err.Error())
			return
		}
		h.logger.Error("create journal entry", "error", err)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) getJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid journal entry id")
		return
	}
	entry, err := h.service.GetJournalEntry(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrJournalNotFound) {
			httpx.Error(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get journal entry", "error", err, "entry_id", id)
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) postJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.BadRequest(w, "invalid journal entry id")
		return
	}
	entry, err := h.service.PostJournalEntry(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrJournalNotFound):
			httpx.Error(w, httpx.ErrNotFound)
		case errors.Is(err, ErrUnbalanced), errors.Is(err, ErrInvalidState):
			httpx.JSON(w, http.StatusUnprocessableEntity, httpx.Problem{
				Status: http.StatusUnprocessableEntity,
				Title:  "cannot post journal entry",
				Detail: err.Error(),
			})
		default:
			h.logger.Error("post journal entry", "error", err, "entry_id", id)
			httpx.Error(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
