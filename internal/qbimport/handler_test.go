package qbimport

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestHandler(store Store) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := NewService(store, logger)
	handler := NewHandler(logger, service, 1<<20)

	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func multipartUpload(t *testing.T, filename, contents string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(contents))
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandlerImportChartOfAccounts(t *testing.T) {
	store := newMemoryStore()
	router := newTestHandler(store)

	csv := "Account,Type,Detail Type,Description,Balance Total\n" +
		"Checking,Bank,Checking,,5000.00\n"
	body, contentType := multipartUpload(t, "accounts.csv", csv, nil)

	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/chart-of-accounts", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "Chart of Accounts import complete", summary.Message)
	require.Equal(t, 1, summary.Created)
	require.Len(t, store.accounts, 1)
}

func TestHandlerRejectsMissingFile(t *testing.T) {
	router := newTestHandler(newMemoryStore())

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/invoices", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerRejectsWrongExtension(t *testing.T) {
	router := newTestHandler(newMemoryStore())

	body, contentType := multipartUpload(t, "notes.pdf", "not a csv", nil)
	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/customers", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerItemsRejectsBadImportAs(t *testing.T) {
	router := newTestHandler(newMemoryStore())

	body, contentType := multipartUpload(t, "items.csv", "Item,Type\n", map[string]string{"import_as": "widgets"})
	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/items", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandlerImportFailure(t *testing.T) {
	router := newTestHandler(newMemoryStore())

	// An empty upload has no header row, which fails the whole import.
	body, contentType := multipartUpload(t, "invoices.csv", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/invoices", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Equal(t, "Import failed", payload["message"])
}

func TestHandlerRestoreBackup(t *testing.T) {
	store := newMemoryStore()
	router := newTestHandler(store)

	body, contentType := multipartUpload(t, "backup.json", `[{"id":1,"name":"A"}]`, map[string]string{"import_type": "customers"})
	req := httptest.NewRequest(http.MethodPost, "/imports/quickbooks/backup", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var summary BackupSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, 1, summary.Imported["customers"])
	require.Len(t, store.restored["customers"], 1)
}
