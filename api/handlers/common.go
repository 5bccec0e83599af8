package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/aichestra/aichestra/internal/ctxkeys"
	"github.com/aichestra/aichestra/orchestrator"
)

// maxBodyBytes caps request bodies on the management surface.
const maxBodyBytes = 1 << 20

// Response is the envelope every management endpoint answers with.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the serialized form of a routing error.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope around data. The request ID is
// taken from ctx when the middleware has set one.
func WriteSuccess(ctx context.Context, w http.ResponseWriter, data any) {
	requestID, _ := ctxkeys.RequestID(ctx)
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// WriteError writes a failure envelope for err. Foreign errors are wrapped
// under the internal code first, so the envelope always carries a code.
func WriteError(ctx context.Context, w http.ResponseWriter, logger *zap.Logger, err error) {
	routingErr := orchestrator.AsError(err)
	status := StatusForCode(routingErr.Code)

	if logger != nil {
		logger.Error("request failed",
			zap.String("code", string(routingErr.Code)),
			zap.Int("status", status),
			zap.Error(routingErr),
		)
	}

	requestID, _ := ctxkeys.RequestID(ctx)
	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(routingErr.Code),
			Message:   routingErr.Message,
			Retryable: routingErr.Retryable,
		},
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

// StatusForCode maps a routing error code to its HTTP status.
func StatusForCode(code orchestrator.ErrorCode) int {
	switch code {
	case orchestrator.CodeValidation:
		return http.StatusBadRequest
	case orchestrator.CodeNoMatchingAgent:
		return http.StatusNotFound
	case orchestrator.CodeNetwork, orchestrator.CodeRemoteTaskFailed, orchestrator.CodeRemoteTaskCanceled:
		return http.StatusBadGateway
	case orchestrator.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes the request body into dst, enforcing the body
// size cap and rejecting unknown fields. On failure the 400 response has
// already been written and the decode error is returned.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		validationErr := orchestrator.NewValidationError("invalid JSON body").WithCause(err)
		WriteError(r.Context(), w, logger, validationErr)
		return validationErr
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code and
// bytes written for logging and metrics middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	BytesWritten int64
	written      bool
}

// NewResponseWriter wraps w with status capture, defaulting to 200.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

// WriteHeader records the first status code written.
func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.StatusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

// Write counts body bytes, defaulting the status to 200 on first write.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += int64(n)
	return n, err
}
