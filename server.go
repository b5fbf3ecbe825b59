package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-sa-licence-decoder/barcode"
	"go-sa-licence-decoder/metrics"
	"go-sa-licence-decoder/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const ErrorInternal = "error:internal"
const ERR_MARSHAL = "failed to marshal response message"
const ERR_ISSUANCE_CONVERT = "failed to convert to issuance request"
const ERR_JWT_CREATION = "failed to create jwt"
const ERR_INVALID_REQUEST = "invalid request"
const ERR_DECODER_BUSY = "decoder busy"
const ERR_ISSUANCE_DISABLED = "issuance not configured"

const MAX_BATCH_ITEMS = 50

var errInvalidBarcode = errors.New("barcode is not valid base64")
var errNoDecodeSlot = errors.New("no decode slot available")

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	UseTls         bool   `json:"use_tls,omitempty"`
	TlsPrivKeyPath string `json:"tls_priv_key_path,omitempty"`
	TlsCertPath    string `json:"tls_cert_path,omitempty"`
}

type ServerState struct {
	irmaServerURL string
	decoder       DocumentDecoder
	cache         RecordCache
	jwtCreator    JwtCreator
	converter     DrivingLicenceConverter
	metrics       *metrics.Metrics
	decodeSlots   *semaphore.Weighted
	batchWorkers  int
}

type Server struct {
	server *http.Server
	config ServerConfig
}

func (s *Server) ListenAndServe() error {
	if s.config.UseTls {
		slog.Info("Starting server with TLS", "host", s.config.Host, "port", s.config.Port, "cert", s.config.TlsCertPath, "key", s.config.TlsPrivKeyPath)
		return s.server.ListenAndServeTLS(s.config.TlsCertPath, s.config.TlsPrivKeyPath)
	} else {
		slog.Info("Starting server without TLS", "host", s.config.Host, "port", s.config.Port)
		return s.server.ListenAndServe()
	}
}

func (s *Server) Stop() error {
	slog.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	if err != nil {
		slog.Error("Error during server shutdown", "error", err)
	} else {
		slog.Info("Server shut down successfully")
	}
	return err
}

func NewServer(state *ServerState, config ServerConfig) (*Server, error) {
	slog.Info("Creating new server", "host", config.Host, "port", config.Port, "tls", config.UseTls)
	router := mux.NewRouter()

	router.HandleFunc("/api/health", func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("Health check request received")
		err := json.NewEncoder(w).Encode(map[string]bool{"ok": true})
		if err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
	})

	router.HandleFunc("/api/decode", func(w http.ResponseWriter, r *http.Request) {
		handleDecode(state, w, r)
	})
	router.HandleFunc("/api/decode-batch", func(w http.ResponseWriter, r *http.Request) {
		handleDecodeBatch(state, w, r)
	})
	router.HandleFunc("/api/issue-driving-licence", func(w http.ResponseWriter, r *http.Request) {
		handleIssueDrivingLicence(state, w, r)
	})
	router.Handle("/metrics", state.metrics.Handler()).Methods(http.MethodGet)

	slog.Debug("Registered all API routes")

	addr := fmt.Sprintf("%v:%v", config.Host, config.Port)
	srv := &http.Server{
		Handler: router,
		Addr:    addr,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	slog.Info("Server created successfully", "address", addr)
	return &Server{
		server: srv,
		config: config,
	}, nil
}

type IssuanceResponse struct {
	Jwt           string `json:"jwt"`
	IrmaServerURL string `json:"irma_server_url"`
}

type DecodeResponse struct {
	RequestID    string `json:"request_id"`
	DocumentType string `json:"document_type"`
	DecodedDocument
	Cached bool `json:"cached"`
}

type BatchItemResult struct {
	Index  int             `json:"index"`
	Status int             `json:"status"`
	Result *DecodeResponse `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type BatchDecodeResponse struct {
	RequestID string            `json:"request_id"`
	Results   []BatchItemResult `json:"results"`
}

func handleDecode(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	requestID := uuid.NewString()
	slog.Info("Received decode request", "request_id", requestID)

	var request models.DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		state.metrics.IncrementOutcome("unknown", metrics.OutcomeBadRequest)
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode request body", err)
		return
	}

	response, err := decodeDocument(r.Context(), state, requestID, request)
	if err != nil {
		code, body := decodeErrorResponse(err)
		respondWithErr(w, code, body, "failed to decode barcode", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, response); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Decode request completed", "request_id", requestID, "document_type", response.DocumentType, "version", response.Version, "cached", response.Cached)
}

func handleDecodeBatch(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	requestID := uuid.NewString()

	var request models.BatchDecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode request body", err)
		return
	}
	if len(request.Items) == 0 || len(request.Items) > MAX_BATCH_ITEMS {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "invalid batch size", fmt.Errorf("batch has %d items, allowed 1..%d", len(request.Items), MAX_BATCH_ITEMS))
		return
	}

	slog.Info("Received batch decode request", "request_id", requestID, "items", len(request.Items))

	results := make([]BatchItemResult, len(request.Items))
	var g errgroup.Group
	g.SetLimit(state.batchWorkers)

	for i, item := range request.Items {
		g.Go(func() error {
			itemID := fmt.Sprintf("%s/%d", requestID, i)
			response, err := decodeDocument(r.Context(), state, itemID, item)
			if err != nil {
				code, body := decodeErrorResponse(err)
				slog.Debug("Batch item failed", "request_id", itemID, "status_code", code, "error", err)
				results[i] = BatchItemResult{Index: i, Status: code, Error: body}
				return nil
			}
			results[i] = BatchItemResult{Index: i, Status: http.StatusOK, Result: &response}
			return nil
		})
	}
	// item failures are reported per result, never through the group
	_ = g.Wait()

	if err := writeJSON(w, http.StatusOK, BatchDecodeResponse{RequestID: requestID, Results: results}); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Batch decode request completed", "request_id", requestID)
}

func handleIssueDrivingLicence(state *ServerState, w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	if !requirePOST(w, r) {
		return
	}

	if state.jwtCreator == nil {
		respondWithErr(w, http.StatusServiceUnavailable, ERR_ISSUANCE_DISABLED, ERR_ISSUANCE_DISABLED, nil)
		return
	}

	requestID := uuid.NewString()
	slog.Info("Received request to issue driving licence", "request_id", requestID)

	var request models.DecodeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "failed to decode request body", err)
		return
	}
	if request.DocumentType != DocumentTypeDrivers {
		respondWithErr(w, http.StatusBadRequest, ERR_INVALID_REQUEST, "only driving licences can be issued", fmt.Errorf("document type %q", request.DocumentType))
		return
	}

	response, err := decodeDocument(r.Context(), state, requestID, request)
	if err != nil {
		code, body := decodeErrorResponse(err)
		respondWithErr(w, code, body, "failed to decode barcode", err)
		return
	}

	slog.Debug("Converting driving licence data for issuance", "request_id", requestID)
	issuanceRequest, err := state.converter.ToDrivingLicenceData(*response.DrivingLicence)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_ISSUANCE_CONVERT, err)
		return
	}

	slog.Debug("Creating driving licence JWT", "request_id", requestID)
	jwt, err := state.jwtCreator.CreateDrivingLicenceJwt(issuanceRequest)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, ERR_JWT_CREATION, ERR_JWT_CREATION, err)
		return
	}

	issuance := IssuanceResponse{
		Jwt:           jwt,
		IrmaServerURL: state.irmaServerURL,
	}

	if err := writeJSON(w, http.StatusOK, issuance); err != nil {
		respondWithErr(w, http.StatusInternalServerError, ErrorInternal, ERR_MARSHAL, err)
		return
	}

	slog.Info("Driving licence issued successfully", "request_id", requestID)
}

// decodeDocument serves one decode from the record cache, or decodes it while holding a
// decode slot and stores the result.
func decodeDocument(ctx context.Context, state *ServerState, requestID string, request models.DecodeRequest) (DecodeResponse, error) {
	documentType := request.DocumentType
	if documentType != DocumentTypeDrivers && documentType != DocumentTypeVehicle {
		state.metrics.IncrementOutcome("unknown", metrics.OutcomeBadRequest)
		return DecodeResponse{}, fmt.Errorf("%w: %q", ErrUnknownDocumentType, documentType)
	}

	raw, err := decodeBarcode(request.Barcode)
	if err == nil && len(raw) == 0 {
		err = errors.New("empty barcode")
	}
	if err != nil {
		state.metrics.IncrementOutcome(documentType, metrics.OutcomeBadRequest)
		return DecodeResponse{}, fmt.Errorf("%w: %v", errInvalidBarcode, err)
	}

	response := DecodeResponse{RequestID: requestID, DocumentType: documentType}
	key := cacheKey(documentType, raw)

	if doc, ok := lookupRecord(ctx, state, key); ok {
		slog.Debug("Serving decoded record from cache", "request_id", requestID, "document_type", documentType)
		state.metrics.IncrementOutcome(documentType, metrics.OutcomeOK)
		response.DecodedDocument = doc
		response.Cached = true
		return response, nil
	}

	waitStart := time.Now()
	if err := state.decodeSlots.Acquire(ctx, 1); err != nil {
		state.metrics.ObserveSlotWait(time.Since(waitStart))
		state.metrics.IncrementOutcome(documentType, metrics.OutcomeError)
		return DecodeResponse{}, fmt.Errorf("%w: %w", errNoDecodeSlot, err)
	}
	state.metrics.ObserveSlotWait(time.Since(waitStart))

	start := time.Now()
	doc, err := runDecode(state, documentType, raw)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
		if barcode.IsDecryptionError(err) {
			outcome = metrics.OutcomeDecryptionError
		}
	}
	state.metrics.ObserveDecode(documentType, outcome, time.Since(start))

	if err != nil {
		return DecodeResponse{}, err
	}

	slog.Debug("Barcode decoded", "request_id", requestID, "document_type", documentType, "version", doc.Version)
	storeRecord(ctx, state, key, doc)

	response.DecodedDocument = doc
	return response, nil
}

// runDecode decodes while holding an already acquired decode slot and gives the slot back
// even if the decoder panics.
func runDecode(state *ServerState, documentType string, raw []byte) (DecodedDocument, error) {
	defer state.decodeSlots.Release(1)
	done := state.metrics.DecodeStarted()
	defer done()
	return state.decoder.Decode(documentType, raw)
}

func lookupRecord(ctx context.Context, state *ServerState, key string) (DecodedDocument, bool) {
	record, err := state.cache.Get(ctx, key)
	if errors.Is(err, ErrCacheMiss) {
		state.metrics.IncrementCacheLookup("miss")
		return DecodedDocument{}, false
	}
	if err != nil {
		slog.Warn("Record cache lookup failed", "error", err)
		state.metrics.IncrementCacheLookup("error")
		return DecodedDocument{}, false
	}

	var doc DecodedDocument
	if err := json.Unmarshal(record, &doc); err != nil {
		slog.Warn("Discarding unreadable cached record", "error", err)
		state.metrics.IncrementCacheLookup("error")
		return DecodedDocument{}, false
	}
	state.metrics.IncrementCacheLookup("hit")
	return doc, true
}

func storeRecord(ctx context.Context, state *ServerState, key string, doc DecodedDocument) {
	record, err := json.Marshal(doc)
	if err != nil {
		slog.Warn("Failed to marshal record for cache", "error", err)
		return
	}
	if err := state.cache.Set(ctx, key, record); err != nil {
		slog.Warn("Failed to store record in cache", "error", err)
	}
}

// decodeErrorResponse maps a decode failure to a status code and response body.
// Decryption errors carry their message to the client, anything unexpected does not.
func decodeErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnknownDocumentType), errors.Is(err, errInvalidBarcode):
		return http.StatusBadRequest, ERR_INVALID_REQUEST
	case barcode.IsDecryptionError(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, errNoDecodeSlot):
		return http.StatusServiceUnavailable, ERR_DECODER_BUSY
	}
	return http.StatusInternalServerError, ErrorInternal
}

func respondWithErr(w http.ResponseWriter, code int, responseBody string, logMsg string, e error) {
	slog.Error(logMsg, "error", e, "status_code", code, "response_body", responseBody)
	w.WriteHeader(code)
	if _, err := w.Write([]byte(responseBody)); err != nil {
		slog.Error("failed to write body to http response", "error", err)
	}
}

// helpers ------------

func closeRequestBody(r *http.Request) {
	if err := r.Body.Close(); err != nil {
		slog.Error("failed to close request body", "error", err)
	}

}

func requirePOST(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		slog.Debug("Non-POST request rejected", "method", r.Method, "path", r.URL.Path)
		respondWithErr(w, http.StatusMethodNotAllowed, "method not allowed", "invalid method", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	slog.Debug("Writing JSON response", "status_code", status)
	payload, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to marshal JSON payload", "error", err)
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(payload)
	if err != nil {
		slog.Error("failed to write body to http response", "error", err)
	} else {
		slog.Debug("JSON response written successfully", "status_code", status, "payload_size", len(payload))
	}
	return nil
}
