package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/idmesh/reference-resolution-backend/backbone"
	"github.com/idmesh/reference-resolution-backend/interfaces"
	"github.com/idmesh/reference-resolution-backend/reference"
	"github.com/idmesh/reference-resolution-backend/storage"
)

// maxBodySize is the maximum allowed request body size (1MB).
const maxBodySize = 1024 * 1024

// RequestError provides structured error information for HTTP responses.
type RequestError struct {
	// StatusCode is the HTTP status code to return.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error returns the error message from the underlying error.
func (e *RequestError) Error() string {
	return e.Err.Error()
}

// errorBody is the JSON error shape the backbone answers with.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler processes HTTP requests for the dev backbone service. It serves
// token, file and relationship template records from the storage system,
// enforcing each record's password protection.
type Handler struct {
	storage interfaces.StorageBackend
	log     *slog.Logger
}

// NewHandler creates a request handler over the given record storage.
func NewHandler(storageBackend interfaces.StorageBackend, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{storage: storageBackend, log: log}
}

// HandleLoadToken serves GET /api/anonymous/tokens/{record_id}. No account
// context is required; password-protected tokens require the password header.
func (h *Handler) HandleLoadToken(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "record_id")
	if reference.Classify(recordID) != interfaces.NamespaceToken {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, fmt.Errorf("not a token record id: %q", recordID)})
		return
	}

	h.serveRecord(w, r, recordID, interfaces.RecordToken)
}

// HandleLoadItem serves GET /api/accounts/items/{record_id}: the
// account-scoped retrieval of file, template and token records. The account
// header is required; record password semantics match the anonymous path.
func (h *Handler) HandleLoadItem(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(backbone.AccountHeader) == "" {
		h.writeError(w, r, &RequestError{http.StatusUnauthorized, errors.New("missing account header")})
		return
	}

	recordID := chi.URLParam(r, "record_id")
	kind, err := interfaces.RecordKindForNamespace(reference.Classify(recordID))
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, err})
		return
	}

	h.serveRecord(w, r, recordID, kind)
}

// serveRecord fetches a record envelope, opens it with the password header
// and writes the payload. A missing record and a wrong password both answer
// 404 with the recordNotFound code.
func (h *Handler) serveRecord(w http.ResponseWriter, r *http.Request, recordID string, kind interfaces.RecordKind) {
	blob, err := h.storage.Fetch(r.Context(), recordID, kind)
	if errors.Is(err, interfaces.ErrBlobNotFound) {
		h.writeNotFound(w)
		return
	}
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadGateway, fmt.Errorf("record storage failed: %w", err)})
		return
	}

	envelope, err := storage.DecodeEnvelope(blob)
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusInternalServerError, err})
		return
	}

	payload, err := envelope.Open(r.Header.Get(backbone.RecordPasswordHeader))
	if errors.Is(err, interfaces.ErrRecordNotFound) {
		h.writeNotFound(w)
		return
	}
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusInternalServerError, err})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

// storeRecordRequest is the body of the dev seeding endpoint.
type storeRecordRequest struct {
	ID         string                         `json:"id"`
	Password   string                         `json:"password,omitempty"`
	Protection *interfaces.PasswordProtection `json:"passwordProtection,omitempty"`
	Payload    json.RawMessage                `json:"payload"`
}

// HandleStoreRecord serves POST /api/admin/records: the dev endpoint that
// seeds token, file and template records into storage.
func (h *Handler) HandleStoreRecord(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, fmt.Errorf("failed to read request body: %w", err)})
		return
	}

	var req storeRecordRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err)})
		return
	}

	kind, err := interfaces.RecordKindForNamespace(reference.Classify(req.ID))
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, err})
		return
	}
	if len(req.Payload) == 0 {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, errors.New("payload must not be empty")})
		return
	}

	envelope, err := storage.SealEnvelope(req.Payload, req.Password, req.Protection)
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadRequest, err})
		return
	}

	blob, err := envelope.Encode()
	if err != nil {
		h.writeError(w, r, &RequestError{http.StatusInternalServerError, err})
		return
	}

	if err := h.storage.Store(r.Context(), req.ID, blob, kind); err != nil {
		h.writeError(w, r, &RequestError{http.StatusBadGateway, fmt.Errorf("record storage failed: %w", err)})
		return
	}

	h.log.Info("Stored record",
		slog.String("record_id", req.ID),
		slog.String("kind", kind.String()),
		slog.Bool("protected", req.Protection != nil))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": req.ID})
}

func (h *Handler) writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(errorBody{
		Code:    interfaces.ErrRecordNotFound.Code,
		Message: interfaces.ErrRecordNotFound.Message,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, reqErr *RequestError) {
	h.log.Info("Request failed",
		slog.String("path", r.URL.Path),
		slog.Int("status", reqErr.StatusCode),
		"err", reqErr.Err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reqErr.StatusCode)
	json.NewEncoder(w).Encode(errorBody{
		Code:    "error.backbone.requestFailed",
		Message: reqErr.Err.Error(),
	})
}
