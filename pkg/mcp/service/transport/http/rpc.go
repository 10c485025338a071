package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/collectors"
	"github.com/Azure/toolguard/pkg/mcp/validation/validators"
)

// handleRPC validates a JSON-RPC request and forwards it to the MCP server.
// Rejected requests get a JSON-RPC error whose code follows the first
// validation error. Rejected notifications get 202 and no body.
func (h *Handler) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := readBody(r, h.opts.Validator.Options().MaxRequestBytes)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read JSON-RPC request")
		h.recordRPC("invalid", start, len(body), string(errors.CodeParseError))
		h.writeJSONRPCError(w, nil, errors.RPCParseError, "failed to read request body", nil)
		return
	}

	result := h.opts.Validator.ValidateRequest(body)
	if h.opts.RequestMetrics != nil {
		h.opts.RequestMetrics.RecordValidation(result)
	}
	method := result.Metadata.Method
	if method == "" {
		method = "invalid"
	}

	if !result.Valid {
		first := result.FirstError()
		h.logger.Debug().
			Str("method", method).
			Str("code", string(first.Code)).
			Str("request_id", result.Metadata.RequestID).
			Msg("Rejected JSON-RPC request")
		h.recordRPC(method, start, len(body), string(first.Code))
		if isNotification(body) {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		h.writeJSONRPCError(w, requestID(body), errors.JSONRPCCodeFor(first.Code), first.Message, rejection(result))
		return
	}

	mcpServer := h.server()
	if mcpServer == nil {
		h.recordRPC(method, start, len(body), string(errors.CodeInternalError))
		h.writeJSONRPCError(w, requestID(body), errors.RPCInternalError, "MCP server not initialized", nil)
		return
	}

	response := mcpServer.HandleMessage(r.Context(), json.RawMessage(body))
	if response == nil {
		// Notifications have no response
		h.recordRPC(method, start, len(body), collectors.StatusOK)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	encoded, err := json.Marshal(response)
	if err != nil {
		h.recordRPC(method, start, len(body), string(errors.CodeInternalError))
		h.writeJSONRPCError(w, requestID(body), errors.RPCInternalError, "failed to encode response", nil)
		return
	}
	h.recordRPC(method, start, len(body), responseStatus(encoded))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(encoded); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write JSON-RPC response")
	}
}

// recordRPC counts a request under status, which is "ok" or an error code
func (h *Handler) recordRPC(method string, start time.Time, size int, status string) {
	if h.opts.RequestMetrics == nil {
		return
	}
	h.opts.RequestMetrics.RecordRequest(method, status, time.Since(start), size)
}

// responseStatus labels an encoded MCP server response
func responseStatus(encoded []byte) string {
	var envelope struct {
		Error *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(encoded, &envelope); err != nil || envelope.Error == nil {
		return collectors.StatusOK
	}
	return string(errors.CodeForJSONRPC(envelope.Error.Code))
}

// writeJSONRPCError writes a JSON-RPC error response
func (h *Handler) writeJSONRPCError(w http.ResponseWriter, id interface{}, code int, message string, data interface{}) {
	response := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	}

	if data != nil {
		response["error"].(map[string]interface{})["data"] = data
	}

	h.writeJSON(w, http.StatusOK, response) // JSON-RPC errors are still HTTP 200
}

func rejection(result *validators.ValidationResult) map[string]interface{} {
	return map[string]interface{}{
		"request_id": result.Metadata.RequestID,
		"errors":     result.Errors,
		"truncated":  result.Truncated,
	}
}

// requestID recovers the raw id of a request, or nil when there is none.
// The bytes are echoed as sent so large numeric ids keep their precision.
func requestID(body []byte) interface{} {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.ID) == 0 {
		return nil
	}
	switch envelope.ID[0] {
	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return envelope.ID
	default:
		return nil
	}
}

// isNotification reports whether body is a request object without an id
func isNotification(body []byte) bool {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false
	}
	_, hasMethod := envelope["method"]
	_, hasID := envelope["id"]
	return hasMethod && !hasID
}
