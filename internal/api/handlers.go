// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/camgate/internal/audit"
	"github.com/ManuGH/camgate/internal/capture"
	"github.com/ManuGH/camgate/internal/log"
	"github.com/ManuGH/camgate/internal/recorder"
	"github.com/ManuGH/camgate/internal/recordings"
)

const (
	maxRequestBody = 64 << 10
	maxListLimit   = 200
)

type deliveryRequest struct {
	Phone   string `json:"phone,omitempty"`
	Caption string `json:"caption,omitempty"`
	Message string `json:"message,omitempty"`
	Deliver bool   `json:"deliver,omitempty"`
}

func (d deliveryRequest) delivery() capture.Delivery {
	return capture.Delivery{Send: d.Deliver, Phone: d.Phone, Caption: d.Caption, Message: d.Message}
}

type recordRequest struct {
	deliveryRequest
	DurationSeconds int `json:"duration_seconds,omitempty"`
}

// decodeBody reads an optional JSON body. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type snapshotResponse struct {
	Delivered bool   `json:"delivered"`
	MimeType  string `json:"mime_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Bytes     int    `json:"size_bytes"`
	Optimized bool   `json:"optimized"`
}

// handleSnapshot returns the image itself, or a JSON receipt when it was
// delivered to a recipient.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	res, err := s.capture.Snapshot(r.Context(), req.delivery())
	s.audit.Trigger(r, audit.EventSnapshot, res.Delivered, failureCode(err))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	img := res.Image
	if res.Delivered {
		writeJSON(w, http.StatusOK, snapshotResponse{
			Delivered: true,
			MimeType:  img.MimeType,
			Width:     img.Width,
			Height:    img.Height,
			Bytes:     len(img.Data),
			Optimized: img.Changed,
		})
		return
	}

	w.Header().Set("Content-Type", img.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Image-Optimized", strconv.FormatBool(img.Changed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// streamEvent is one NDJSON line of a recording response.
type streamEvent struct {
	Event            string   `json:"event"`
	JobID            string   `json:"job_id,omitempty"`
	EffectiveSeconds int      `json:"effective_seconds,omitempty"`
	Percent          int      `json:"percent,omitempty"`
	RemainingSeconds *int     `json:"remaining_seconds,omitempty"`
	Delivered        bool     `json:"delivered,omitempty"`
	MimeType         string   `json:"mime_type,omitempty"`
	Size             int64    `json:"size_bytes,omitempty"`
	Data             []byte   `json:"data,omitempty"`
	Code             string   `json:"code,omitempty"`
	Message          string   `json:"message,omitempty"`
	Schemes          []string `json:"schemes,omitempty"`
}

// handleRecord streams job progress as NDJSON. Failures before the job
// starts are answered with a problem response; later ones as a final
// "failed" line. The recording is tied to the request: a client disconnect
// cancels it.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.DurationSeconds < 0 {
		writeProblem(w, r, http.StatusBadRequest, "invalid_request", "duration_seconds must not be negative")
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	started := false
	emit := func(ev streamEvent) {
		if err := enc.Encode(ev); err != nil {
			logger.Debug().Err(err).Msg("recording stream write failed")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	res, err := s.capture.Record(r.Context(), capture.RecordRequest{
		DurationSeconds: req.DurationSeconds,
		Delivery:        req.delivery(),
	}, capture.RecordObserver{
		OnStart: func(st recorder.Status) {
			started = true
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("X-Job-ID", st.ID)
			w.WriteHeader(http.StatusOK)
			emit(streamEvent{Event: "started", JobID: st.ID, EffectiveSeconds: st.EffectiveSeconds})
		},
		OnProgress: func(p recorder.EventProgress) {
			remaining := p.RemainingSeconds
			emit(streamEvent{Event: "progress", Percent: p.Percent, RemainingSeconds: &remaining})
		},
	})
	s.audit.Trigger(r, audit.EventRecord, res.Delivered, failureCode(err))

	if err != nil {
		if !started {
			writeFailure(w, r, err)
			return
		}
		f := capture.AsFailure(err)
		emit(streamEvent{Event: "failed", JobID: res.JobID, Code: string(f.Code), Message: f.Message, Schemes: f.Schemes})
		return
	}
	emit(streamEvent{
		Event:     "done",
		JobID:     res.JobID,
		Percent:   100,
		Delivered: res.Delivered,
		MimeType:  res.MimeType,
		Size:      res.Size,
		Data:      res.Data,
	})
}

func failureCode(err error) string {
	if err == nil {
		return ""
	}
	return string(capture.AsFailure(err).Code)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, err := s.ledger.Get(r.Context(), id)
	switch {
	case errors.Is(err, recordings.ErrNotFound):
		writeProblem(w, r, http.StatusNotFound, "recording_not_found", fmt.Sprintf("no recording %q", id))
	case err != nil:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("ledger lookup failed")
		writeProblem(w, r, http.StatusInternalServerError, "internal", "")
	default:
		writeJSON(w, http.StatusOK, entry)
	}
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			writeProblem(w, r, http.StatusBadRequest, "invalid_request", fmt.Sprintf("limit must be 1..%d", maxListLimit))
			return
		}
		limit = n
	}
	entries, err := s.ledger.List(r.Context(), limit)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("ledger list failed")
		writeProblem(w, r, http.StatusInternalServerError, "internal", "")
		return
	}
	if entries == nil {
		entries = []recordings.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": entries})
}
