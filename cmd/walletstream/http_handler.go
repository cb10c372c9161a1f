package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fystack/walletstream/internal/filter"
	"github.com/fystack/walletstream/internal/ingest"
	"github.com/fystack/walletstream/internal/webhook"
	"github.com/fystack/walletstream/pkg/common/logger"
)

const (
	headerNonce     = "x-qn-nonce"
	headerTimestamp = "x-qn-timestamp"
	headerSignature = "x-qn-signature"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type APIErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

type FilterResponse struct {
	Events []filter.TransferEvent `json:"events"`
}

type webhookPayload struct {
	Metadata map[string]any    `json:"metadata"`
	Events   []ingest.RawEvent `json:"events"`
	Data     []ingest.RawEvent `json:"data"`
}

type StreamsHTTPHandler struct {
	version         string
	evmFilter       *filter.EVMFilter
	solanaFilter    *filter.SolanaFilter
	processor       *ingest.Processor
	secrets         []string
	timestampMaxAge time.Duration
}

func NewStreamsHTTPHandler(
	version string,
	evmFilter *filter.EVMFilter,
	solanaFilter *filter.SolanaFilter,
	processor *ingest.Processor,
	secrets []string,
	timestampMaxAge time.Duration,
) *StreamsHTTPHandler {
	return &StreamsHTTPHandler{
		version:         version,
		evmFilter:       evmFilter,
		solanaFilter:    solanaFilter,
		processor:       processor,
		secrets:         secrets,
		timestampMaxAge: timestampMaxAge,
	}
}

func (h *StreamsHTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HandleHealth)
	mux.HandleFunc("/streams/filter/evm", h.HandleFilterEVM)
	mux.HandleFunc("/streams/filter/solana", h.HandleFilterSolana)
	mux.HandleFunc("/webhook/streams", h.HandleWebhook)
}

func (h *StreamsHTTPHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	})
}

func (h *StreamsHTTPHandler) HandleFilterEVM(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload filter.EVMPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	events, err := h.evmFilter.Filter(r.Context(), &payload)
	if err != nil {
		// Block-level failure: the upstream delivery system retries the
		// whole block, so no partial result is returned.
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Events: events})
}

func (h *StreamsHTTPHandler) HandleFilterSolana(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var payload filter.SolanaPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	events, err := h.solanaFilter.Filter(r.Context(), &payload)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, FilterResponse{Events: events})
}

func (h *StreamsHTTPHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	nonce := r.Header.Get(headerNonce)
	timestamp := r.Header.Get(headerTimestamp)
	signature := r.Header.Get(headerSignature)

	// The provider probes the endpoint without signature headers before
	// activating a stream.
	if nonce == "" && timestamp == "" && signature == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("unreadable body: %v", err))
		return
	}

	if len(h.secrets) > 0 {
		if !webhook.TimestampValid(timestamp, time.Now(), h.timestampMaxAge) {
			writeErrorJSON(w, http.StatusUnauthorized, "stale or invalid timestamp")
			return
		}
		if !webhook.VerifySignature(h.secrets, nonce, timestamp, body, signature) {
			writeErrorJSON(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid payload: %v", err))
		return
	}
	events := payload.Events
	if events == nil {
		events = payload.Data
	}

	result := h.processor.ProcessBatch(r.Context(), events, payload.Metadata)
	logger.Info("Webhook batch processed", "processed", result.Processed, "skipped", result.Skipped)
	writeJSON(w, http.StatusOK, result)
}

func readBody(r *http.Request) ([]byte, error) {
	reader := io.Reader(r.Body)
	if r.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}
	return io.ReadAll(reader)
}

func startHTTPServer(port int, handler *StreamsHTTPHandler) *http.Server {
	mux := http.NewServeMux()
	handler.Register(mux)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		logger.Info(
			"Streams HTTP server started",
			"port", port,
			"health_endpoint", "/health",
			"evm_filter_endpoint", "/streams/filter/evm",
			"solana_filter_endpoint", "/streams/filter/solana",
			"webhook_endpoint", "/webhook/streams",
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed to start", "error", err)
		}
	}()

	return server
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "status", statusCode, "err", err)
	}
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIErrorResponse{
		Status:    "error",
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}
