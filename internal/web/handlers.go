package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"sonoweb/internal/core"
	"sonoweb/internal/history"
	"sonoweb/internal/logging"
	"sonoweb/internal/media"
	"sonoweb/internal/sonify"
	"sonoweb/internal/table"
)

// previewRowLimit caps how many rows the import preview returns. The full
// table still drives the sonification; the preview only has to show that
// labels and values came through correctly.
const previewRowLimit = 100

// importResponse is the JSON shape of an import preview.
type importResponse struct {
	Labels      []string   `json:"labels"`
	Rows        [][]string `json:"rows"`
	RowCount    int        `json:"rowCount"`
	ColumnCount int        `json:"columnCount"`
	Truncated   bool       `json:"truncated"`
}

// handleImport parses an uploaded data file and returns the normalized
// table so the client can preview labels and pick columns.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, fileName, kind, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	tbl, err := s.service.Preview(fileName, kind, data)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	resp := importResponse{
		Labels:      tbl.Labels,
		Rows:        tbl.Rows,
		RowCount:    tbl.RowCount(),
		ColumnCount: tbl.Columns(),
	}
	if len(resp.Rows) > previewRowLimit {
		resp.Rows = resp.Rows[:previewRowLimit]
		resp.Truncated = true
	}

	logging.FromContext(r.Context()).Info("import preview",
		"file", fileName,
		"kind", string(kind),
		"rows", resp.RowCount,
		"columns", resp.ColumnCount,
	)

	writeJSON(w, resp)
}

// handleSonify starts an asynchronous sonification job and returns its ID.
func (s *Server) handleSonify(w http.ResponseWriter, r *http.Request) {
	data, fileName, kind, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	req := core.SonifyRequest{
		FileName:   fileName,
		Kind:       kind,
		Data:       data,
		XColumn:    r.FormValue("xColumn"),
		YColumn:    r.FormValue("yColumn"),
		Transform:  sonify.Transform(r.FormValue("transform")),
		Waveform:   sonify.Waveform(r.FormValue("waveform")),
		Mapping:    sonify.Mapping(r.FormValue("mapping")),
		LogScale:   parseBool(r.FormValue("logScale")),
		Continuous: parseBool(r.FormValue("continuous")),
	}

	jobID, err := s.service.StartSonification(r.Context(), req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrTooManyJobs) {
			status = http.StatusServiceUnavailable
		}
		respondError(w, r, err, status)
		return
	}

	logging.FromContext(r.Context()).Info("sonification started",
		"job_id", jobID,
		"file", fileName,
		"kind", string(kind),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"job_id": jobID})
}

// handleProgress streams job progress via Server-Sent Events. Supports
// resumption via the lastEventId query parameter after a reconnect.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	// The event ID is the progress percentage, so a reconnecting client
	// can skip events it already rendered.
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(jobID)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed - job reached a terminal phase
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			// Terminal events always go out: a failed or cancelled job
			// reports percent 0, which the resume filter would swallow.
			percent := progress.Percent()
			if lastEventIDStr != "" && percent <= lastEventID && !progress.Phase.Terminal() {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", percent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleResult returns the final result of a job, blocking until the job
// finishes if it is still running.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	result, err := s.service.GetResult(jobID)
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, result)
}

// handleCancel cancels an in-progress job.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := s.service.CancelJob(jobID); err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	logging.FromContext(r.Context()).Info("sonification cancelled", "job_id", jobID)
	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleMedia serves generated audio by media ID.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "mediaID")

	data, err := s.store.Get(r.Context(), mediaID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, media.ErrNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}

	// Rendered audio is immutable, so clients may cache it.
	w.Header().Set("Content-Type", media.ContentType(mediaID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Write(data)
}

// historyResponse is the JSON shape of the history listing.
type historyResponse struct {
	Enabled bool            `json:"enabled"`
	Entries []history.Entry `json:"entries"`
}

// handleHistory returns recent sonifications, newest first. Without a
// configured database the endpoint reports the feature as disabled.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist := s.service.History()
	if hist == nil {
		writeJSON(w, historyResponse{Enabled: false, Entries: []history.Entry{}})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	entries, err := hist.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	writeJSON(w, historyResponse{Enabled: true, Entries: entries})
}

// optionsResponse lists the accepted values for the sonify form.
type optionsResponse struct {
	Kinds      []table.Kind       `json:"kinds"`
	Waveforms  []sonify.Waveform  `json:"waveforms"`
	Transforms []sonify.Transform `json:"transforms"`
	Mappings   []sonify.Mapping   `json:"mappings"`
}

// handleOptions returns the accepted request parameter values.
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, optionsResponse{
		Kinds:     []table.Kind{table.KindText, table.KindCSV},
		Waveforms: sonify.Waveforms(),
		Transforms: []sonify.Transform{
			sonify.TransformNone, sonify.TransformSquare,
			sonify.TransformSquareRoot, sonify.TransformLog10,
		},
		Mappings: []sonify.Mapping{sonify.MapFrequency, sonify.MapVolume},
	})
}

// handleHealth reports liveness plus a snapshot of the job limiter.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"jobs":   s.service.Limiter().Status(),
	})
}

// readUpload extracts the uploaded file and its kind from a multipart
// request. It writes the error response itself and returns ok=false on
// failure.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (data []byte, fileName string, kind table.Kind, ok bool) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		respondError(w, r, fmt.Errorf("file too large or invalid form: %w", err), http.StatusBadRequest)
		return nil, "", "", false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return nil, "", "", false
	}
	defer file.Close()

	data, err = io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusInternalServerError)
		return nil, "", "", false
	}

	return data, header.Filename, resolveKind(r.FormValue("kind"), header.Filename), true
}

// resolveKind picks the table kind from the explicit form value, falling
// back to the file extension.
func resolveKind(formValue, fileName string) table.Kind {
	if formValue != "" {
		return table.Kind(strings.ToLower(strings.TrimSpace(formValue)))
	}
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".csv":
		return table.KindCSV
	default:
		return table.KindText
	}
}

func parseBool(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
