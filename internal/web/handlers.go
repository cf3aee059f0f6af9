package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

// progressEventName is the SSE event name of progress updates.
const progressEventName = "csv-upload-progress"

// formMemory is how much of a multipart upload is kept in memory; the
// rest spills to a temporary file.
const formMemory = 32 << 20

// ImportResponse is the synchronous result of an import request.
type ImportResponse struct {
	Message         string   `json:"message"`
	Created         int      `json:"created"`
	Updated         int      `json:"updated"`
	Errors          int      `json:"errors"`
	ErrorDetails    []string `json:"errorDetails"`
	UploadID        string   `json:"uploadId"`
	BatchProcessing bool     `json:"batchProcessing"`
	TotalBatches    int      `json:"totalBatches"`
	BatchSize       int      `json:"batchSize"`
	Success         bool     `json:"success"`
	FailedBatches   int      `json:"failedBatches"`
}

// RejectedResponse is returned when no row of the file was usable.
type RejectedResponse struct {
	Error        string   `json:"error"`
	ErrorDetails []string `json:"errorDetails"`
	UploadID     string   `json:"uploadId,omitempty"`
}

func toImportResponse(res *core.ImportResult) ImportResponse {
	sum := res.Summary
	details := sum.Errors
	if details == nil {
		details = []string{}
	}
	return ImportResponse{
		Message:         sum.Message(res.Domain.Label),
		Created:         sum.CreatedCount,
		Updated:         sum.UpdatedCount,
		Errors:          sum.ErrorCount,
		ErrorDetails:    details,
		UploadID:        res.UploadID,
		BatchProcessing: true,
		TotalBatches:    sum.TotalBatches,
		BatchSize:       res.BatchSize,
		Success:         sum.Success,
		FailedBatches:   sum.FailedBatches,
	}
}

// handleImport runs an import to completion and returns its summary.
// Failed batches still produce a 200; the summary reports them.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	domain := chi.URLParam(r, "domain")
	scope, _ := core.ScopeFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, fmt.Errorf("no file provided: %w", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	batchSize := 0
	if v := r.FormValue("batchSize"); v != "" {
		batchSize, err = strconv.Atoi(v)
		if err != nil || batchSize < 0 {
			respondError(w, r, fmt.Errorf("invalid batchSize %q", v), http.StatusBadRequest)
			return
		}
	}

	res, err := s.service.Import(r.Context(), domain, core.ImportRequest{
		UploadID:  r.FormValue("uploadId"),
		Scope:     scope,
		BatchSize: batchSize,
		Source:    file,
		FileName:  header.Filename,
	})
	if errors.Is(err, core.ErrNoValidItems) {
		rejected := RejectedResponse{Error: "no valid items", ErrorDetails: []string{}}
		if res != nil {
			rejected.UploadID = res.UploadID
			if res.Summary.Errors != nil {
				rejected.ErrorDetails = res.Summary.Errors
			}
		}
		writeJSON(w, http.StatusBadRequest, rejected)
		return
	}
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	writeJSON(w, http.StatusOK, toImportResponse(res))
}

// handleImportProgress streams progress events via Server-Sent Events
// until the job completes or the client goes away. A client reconnecting
// with Last-Event-ID (or ?lastEventId=) skips events it already has; the
// event ID is the progress percentage.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	lastEventIDStr := r.Header.Get("Last-Event-ID")
	if lastEventIDStr == "" {
		lastEventIDStr = r.URL.Query().Get("lastEventId")
	}
	lastEventID := -1
	if lastEventIDStr != "" {
		if v, err := strconv.Atoi(lastEventIDStr); err == nil {
			lastEventID = v
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.New("streaming not supported"), http.StatusInternalServerError)
		return
	}

	scope, _ := core.ScopeFromContext(r.Context())
	events, unsubscribe := s.service.SubscribeProgress(scope, uploadID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Progress <= lastEventID && !ev.Completed {
				continue
			}

			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Progress, progressEventName, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleListImports returns recent jobs of the merchant, newest first.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	scope, _ := core.ScopeFromContext(r.Context())
	limit := parseIntParam(r, "limit", 0)

	jobs, err := s.service.ListJobs(r.Context(), scope, r.URL.Query().Get("domain"), limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"imports": jobs})
}

// handleActiveImports returns the merchant's running jobs.
func (s *Server) handleActiveImports(w http.ResponseWriter, r *http.Request) {
	scope, _ := core.ScopeFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"imports": s.service.ActiveJobs(scope)})
}

// handleGetImport returns one job, running or finished.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	scope, _ := core.ScopeFromContext(r.Context())

	job, err := s.service.GetJob(r.Context(), scope, chi.URLParam(r, "uploadID"))
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelImport cancels a running job. The in-flight batch is rolled
// back and it and every later batch are recorded as failed; batches
// already committed stay.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	scope, _ := core.ScopeFromContext(r.Context())

	if err := s.service.CancelJob(scope, chi.URLParam(r, "uploadID")); err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// DomainResponse describes one import domain and the columns it accepts.
type DomainResponse struct {
	core.DomainInfo
	Columns []ColumnResponse `json:"columns"`
}

// ColumnResponse describes one accepted column.
type ColumnResponse struct {
	Name     string   `json:"name"`
	Aliases  []string `json:"aliases,omitempty"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Identity bool     `json:"identity,omitempty"`
	Values   []string `json:"values,omitempty"`
}

func (s *Server) handleListDomains(w http.ResponseWriter, r *http.Request) {
	importers := s.service.Domains()
	out := make([]DomainResponse, 0, len(importers))
	for _, imp := range importers {
		d := DomainResponse{DomainInfo: imp.Info()}
		for _, c := range imp.Columns() {
			d.Columns = append(d.Columns, ColumnResponse{
				Name:     c.Name,
				Aliases:  c.Aliases,
				Type:     fieldTypeName(c.Type),
				Required: c.Required,
				Identity: c.Identity,
				Values:   c.EnumValues,
			})
		}
		out = append(out, d)
	}
	writeJSON(w, http.StatusOK, map[string]any{"domains": out})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// parseIntParam reads a non-negative integer query parameter.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}

func fieldTypeName(ft core.FieldType) string {
	switch ft {
	case core.FieldEnum:
		return "enum"
	case core.FieldDate:
		return "date"
	case core.FieldNumeric:
		return "numeric"
	case core.FieldInteger:
		return "integer"
	default:
		return "text"
	}
}
