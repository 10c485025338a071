package http

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Azure/toolguard/pkg/mcp/domain/errors"
	"github.com/Azure/toolguard/pkg/mcp/metrics/exporters"
	"github.com/Azure/toolguard/pkg/mcp/validation/schemas"
)

func (h *Handler) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	list := make([]*schemas.ToolSchema, 0, h.opts.Registry.Len())
	for _, s := range h.opts.Registry.List() {
		if category != "" && string(s.Category) != category {
			continue
		}
		list = append(list, s)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(list),
		"tools": list,
	})
}

func (h *Handler) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.opts.Registry.Get(chi.URLParam(r, "tool"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, schema)
}

func (h *Handler) handleValidateParams(w http.ResponseWriter, r *http.Request) {
	var params map[string]interface{}
	limit := h.opts.Validator.Options().MaxRequestBytes
	body, err := readBody(r, limit)
	if err != nil {
		h.writeError(w, errors.Wrap(err, "http", "failed to read request body"))
		return
	}
	if limit > 0 && len(body) > limit {
		h.writeError(w, errors.InvalidRequestError(errors.CodeRequestTooLarge,
			fmt.Sprintf("parameters exceed the %d byte limit", limit)))
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			h.writeError(w, errors.NewError().
				Code(errors.CodeParseError).
				Type(errors.ErrTypeValidation).
				Message("parameters must be a JSON object").
				Cause(err).
				Build())
			return
		}
	}

	tool := chi.URLParam(r, "tool")
	result := h.opts.Validator.ValidateToolParameters(tool, params)
	if !result.Valid && h.opts.ToolMetrics != nil {
		h.opts.ToolMetrics.RecordValidationFailure(tool, string(result.FirstError().Code))
	}
	h.writeJSON(w, validationStatus(result.Valid), result)
}

func (h *Handler) handleValidateRequest(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r, h.opts.Validator.Options().MaxRequestBytes)
	if err != nil {
		h.writeError(w, errors.Wrap(err, "http", "failed to read request body"))
		return
	}

	result := h.opts.Validator.ValidateRequest(body)
	if h.opts.RequestMetrics != nil {
		h.opts.RequestMetrics.RecordValidation(result)
	}
	h.writeJSON(w, validationStatus(result.Valid), result)
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if h.opts.Prometheus == nil {
		h.writeError(w, disabledError("prometheus"))
		return
	}
	h.export(w, r, h.opts.Prometheus, exporters.FormatPrometheus)
}

func (h *Handler) handleOTelMetrics(w http.ResponseWriter, r *http.Request) {
	if h.opts.OTel == nil {
		h.writeError(w, disabledError("otel"))
		return
	}
	h.export(w, r, h.opts.OTel, exporters.FormatJSON)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request, exporter exporters.MetricsExporter, defaultFormat string) {
	query := r.URL.Query()
	req := exporters.ExportRequest{
		Format:       query.Get("format"),
		MetricNames:  query["name"],
		IncludeHelp:  queryBool(query.Get("help"), true),
		IncludeEmpty: queryBool(query.Get("empty"), false),
	}
	if req.Format == "" {
		req.Format = defaultFormat
	}

	result, err := exporter.Export(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("X-Metric-Families", strconv.Itoa(result.FamilyCount))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Body); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to write metrics response")
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats := map[string]interface{}{}
	if h.opts.ToolMetrics != nil {
		stats["tools"] = h.opts.ToolMetrics.Summary()
	}
	if h.opts.RequestMetrics != nil {
		stats["requests"] = h.opts.RequestMetrics.Stats()
	}
	if h.opts.SystemMetrics != nil {
		snap, ok := h.opts.SystemMetrics.Snapshot()
		if !ok {
			snap = h.opts.SystemMetrics.Sample()
		}
		stats["system"] = snap
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// writeError writes err as {"error": ...} with a status derived from its code
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.CodeOf(err) {
	case errors.CodeToolNotFound, errors.CodeNotFound:
		status = http.StatusNotFound
	case errors.CodeInvalidParameter, errors.CodeMissingParameter, errors.CodeTypeMismatch,
		errors.CodeUnsupportedFormat, errors.CodeParseError, errors.CodeValidationFailed:
		status = http.StatusBadRequest
	case errors.CodeRequestTooLarge:
		status = http.StatusRequestEntityTooLarge
	}

	var body interface{} = map[string]string{"code": string(errors.CodeOf(err)), "message": err.Error()}
	var rich *errors.RichError
	if stderrors.As(err, &rich) {
		body = rich
	}
	h.writeJSON(w, status, map[string]interface{}{"error": body})
}

func disabledError(exporter string) error {
	return errors.NewError().
		Code(errors.CodeNotFound).
		Type(errors.ErrTypeMetrics).
		Messagef("%s metrics are not enabled", exporter).
		Build()
}

func validationStatus(valid bool) int {
	if valid {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func queryBool(value string, fallback bool) bool {
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}
