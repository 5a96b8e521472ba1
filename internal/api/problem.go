// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"net/http"

	"github.com/ManuGH/camgate/internal/capture"
	"github.com/ManuGH/camgate/internal/log"
)

const problemTypePrefix = "urn:camgate:problem:"

// Problem is an RFC 7807 problem details body.
type Problem struct {
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Status    int      `json:"status"`
	Detail    string   `json:"detail,omitempty"`
	Instance  string   `json:"instance,omitempty"`
	Code      string   `json:"code"`
	Schemes   []string `json:"schemes,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, code, detail string) {
	writeProblemBody(w, r, Problem{Status: status, Code: code, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, r *http.Request, p Problem) {
	p.Type = problemTypePrefix + p.Code
	p.Title = http.StatusText(p.Status)
	p.Instance = r.URL.Path
	p.RequestID = log.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeFailure maps a pipeline error onto a problem response.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	f := capture.AsFailure(err)
	writeProblemBody(w, r, Problem{
		Status:  failureStatus(f.Code),
		Code:    string(f.Code),
		Detail:  f.Message,
		Schemes: f.Schemes,
	})
}

func failureStatus(code capture.Code) int {
	switch code {
	case capture.CodeNotConfigured, capture.CodeEncoderUnavailable, capture.CodeCanceled:
		return http.StatusServiceUnavailable
	case capture.CodeCameraAuth, capture.CodeCameraUnreachable, capture.CodeCameraEmpty,
		capture.CodeEncoderFailed, capture.CodeDeliveryFailed:
		return http.StatusBadGateway
	case capture.CodeTimeout:
		return http.StatusGatewayTimeout
	case capture.CodeSizeLimit:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
