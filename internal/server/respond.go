// internal/server/respond.go
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"bc-assistant/internal/bc"
	stderrors "bc-assistant/internal/common/errors"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// writeError maps a pipeline error onto the HTTP boundary. Structured errors
// carry their remediation hint into the body; financial 404s additionally get
// the provisioning checklist.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := stderrors.HTTPStatus(err)

	body := map[string]interface{}{
		"error": err.Error(),
	}
	if se, ok := stderrors.AsStandard(err); ok {
		body["error"] = se.Message
		body["code"] = se.Code
		if se.Details != "" {
			body["details"] = se.Details
		}
		if se.Hint != "" {
			body["hint"] = se.Hint
		}
		if se.Code == stderrors.ErrCodeUpstreamNotFound && strings.Contains(se.Details, "business-central") {
			body["hints"] = stderrors.BCNotFoundHints
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		})
	} else {
		s.logger.Warn("request rejected", map[string]interface{}{
			"status": status,
			"error":  err.Error(),
		})
	}

	s.writeJSON(w, status, body)
}

func asInterfaces(records []bc.Record, err error) ([]interface{}, error) {
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

func contextWithTimeout(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}
