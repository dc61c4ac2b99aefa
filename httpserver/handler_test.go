package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idmesh/reference-resolution-backend/backbone"
	"github.com/idmesh/reference-resolution-backend/interfaces"
	"github.com/idmesh/reference-resolution-backend/storage"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	backend, err := storage.NewFileBackend(t.TempDir(), nil)
	require.NoError(t, err)
	handler := NewHandler(backend, nil)

	mux := chi.NewRouter()
	mux.Get("/api/anonymous/tokens/{record_id}", handler.HandleLoadToken)
	mux.Get("/api/accounts/items/{record_id}", handler.HandleLoadItem)
	mux.Post("/api/admin/records", handler.HandleStoreRecord)
	return mux
}

func storeRecord(t *testing.T, mux http.Handler, body string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/admin/records", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, "seeding failed: %s", w.Body.String())
}

func TestLoadTokenRecord(t *testing.T) {
	mux := newTestRouter(t)
	storeRecord(t, mux, `{"id":"TOKabcdef123","payload":{"id":"TOKabcdef123","content":{"@type":"X"}}}`)

	req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/TOKabcdef123", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var token interfaces.TokenPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	assert.Equal(t, "TOKabcdef123", token.ID)
}

func TestLoadTokenRejectsOtherNamespaces(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/FILabcdef123", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoadMissingTokenRecord(t *testing.T) {
	mux := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/TOKmissing1", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error.transport.recordNotFound", body.Code)
}

func TestPasswordProtectedToken(t *testing.T) {
	mux := newTestRouter(t)
	storeRecord(t, mux, `{
		"id": "TOKabcdef123",
		"password": "123456",
		"passwordProtection": {"kind": "pin", "digitCount": 6},
		"payload": {"id": "TOKabcdef123"}
	}`)

	t.Run("correct password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/TOKabcdef123", nil)
		req.Header.Set(backbone.RecordPasswordHeader, "123456")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("wrong password answers like a missing record", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/TOKabcdef123", nil)
		req.Header.Set(backbone.RecordPasswordHeader, "654321")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)

		require.Equal(t, http.StatusNotFound, w.Code)
		var body struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "error.transport.recordNotFound", body.Code)
	})

	t.Run("no password answers like a missing record", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/anonymous/tokens/TOKabcdef123", nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestLoadItemRequiresAccountHeader(t *testing.T) {
	mux := newTestRouter(t)
	storeRecord(t, mux, `{"id":"FILabcdef123","payload":{"type":"File","file":{"id":"FILabcdef123","filename":"a.txt"}}}`)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/items/FILabcdef123", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts/items/FILabcdef123", nil)
	req.Header.Set(backbone.AccountHeader, "acc-1")
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var item interfaces.AccountItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &item))
	assert.Equal(t, interfaces.ItemKindFile, item.Kind)
}

func TestLoadItemServesEveryRecordKind(t *testing.T) {
	mux := newTestRouter(t)
	storeRecord(t, mux, `{"id":"FILabcdef123","payload":{"type":"File"}}`)
	storeRecord(t, mux, `{"id":"RLTabcdef123","payload":{"type":"RelationshipTemplate"}}`)
	storeRecord(t, mux, `{"id":"TOKabcdef123","payload":{"type":"Token"}}`)

	for _, id := range []string{"FILabcdef123", "RLTabcdef123", "TOKabcdef123"} {
		req := httptest.NewRequest(http.MethodGet, "/api/accounts/items/"+id, nil)
		req.Header.Set(backbone.AccountHeader, "acc-1")
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "record %s", id)
	}

	// Unknown namespaces have no record kind.
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/items/XYZabcdef123", nil)
	req.Header.Set(backbone.AccountHeader, "acc-1")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStoreRecordValidation(t *testing.T) {
	mux := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{{{`},
		{name: "unknown namespace", body: `{"id":"XYZ123456","payload":{}}`},
		{name: "missing payload", body: `{"id":"TOKabcdef123"}`},
		{name: "password without protection", body: `{"id":"TOKabcdef123","password":"x","payload":{}}`},
		{name: "protection without password", body: `{"id":"TOKabcdef123","passwordProtection":{"kind":"pw"},"payload":{}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/admin/records", bytes.NewBufferString(tc.body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}
