package web

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shopsift/shopsift/internal/core"
	"github.com/shopsift/shopsift/internal/logging"
	"github.com/shopsift/shopsift/internal/table"
)

// handleHealth reports process liveness and whether run history is on.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"history": s.service.HistoryEnabled(),
	})
}

// handleStartRun accepts a multipart upload with three file roles and
// starts a reconciliation run.
//
// Form fields:
//   - product:   one or more product export files (same columns)
//   - inventory: one or more inventory export files (same columns)
//   - selected:  exactly one selected-products file with a Title column
//   - threshold: optional similarity threshold 0-100 (default from config)
//
// Responds with the run status. When matching produced conflicts the
// phase is awaiting_resolutions and the conflict list is included;
// otherwise the run completes synchronously.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, fmt.Errorf("parse multipart form: %w", err), http.StatusBadRequest)
		return
	}

	threshold := s.cfg.Match.Threshold
	if raw := r.FormValue("threshold"); raw != "" {
		t, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, r, fmt.Errorf("threshold %q is not a number", raw), http.StatusBadRequest)
			return
		}
		threshold = t
	}
	if err := core.ValidThreshold(threshold); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	product, err := decodeFiles(r.MultipartForm.File["product"])
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	inventory, err := decodeFiles(r.MultipartForm.File["inventory"])
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}
	selected, err := decodeFiles(r.MultipartForm.File["selected"])
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	in := core.Inputs{Product: product, Inventory: inventory}
	switch len(selected) {
	case 0:
		// Inputs validation reports the missing role
	case 1:
		in.Selected = selected[0]
	default:
		s.respondError(w, r, fmt.Errorf("expected one selected-products file, got %d", len(selected)), http.StatusBadRequest)
		return
	}

	status, err := s.service.StartRun(r.Context(), in, threshold)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("run accepted",
		"run_id", status.ID,
		"phase", status.Phase,
		"product_files", len(product),
		"inventory_files", len(inventory),
	)

	writeJSON(w, http.StatusCreated, status)
}

// handleRunStatus returns the current state of a run, including its
// unresolved conflicts when awaiting resolutions.
func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.Status(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSubmitResolutions settles a suspended run. The body is a JSON
// object mapping each conflicted title to a chosen candidate title or
// "skip"; omitted conflicts are skipped.
func (s *Server) handleSubmitResolutions(w http.ResponseWriter, r *http.Request) {
	var decisions map[string]string
	if err := json.NewDecoder(r.Body).Decode(&decisions); err != nil {
		s.respondError(w, r, fmt.Errorf("decode resolutions body: %w", err), http.StatusBadRequest)
		return
	}

	status, err := s.service.SubmitResolutions(r.Context(), chi.URLParam(r, "runID"), decisions)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleDownloadInventory serves the filtered inventory CSV of a
// completed run.
func (s *Server) handleDownloadInventory(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.FilteredInventory(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	serveCSV(w, "filtered_inventory.csv", t)
}

// handleDownloadProduct serves the filtered product CSV. Runs that
// skipped the Handle join respond with the skip reason instead.
func (s *Server) handleDownloadProduct(w http.ResponseWriter, r *http.Request) {
	t, err := s.service.FilteredProduct(chi.URLParam(r, "runID"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	serveCSV(w, "filtered_product.csv", t)
}

// handleHistory returns recent run-history entries. Available only when
// DATABASE_URL is configured.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.respondError(w, r, fmt.Errorf("limit %q is not a non-negative number", raw), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.service.History(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": records})
}

// decodeFiles reads and decodes every uploaded file for one form field.
// CSV and XLSX are supported; decoding failures name the offending file.
func decodeFiles(headers []*multipart.FileHeader) ([]*table.Table, error) {
	tables := make([]*table.Table, 0, len(headers))
	for _, header := range headers {
		t, err := decodeFile(header)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func decodeFile(header *multipart.FileHeader) (*table.Table, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", header.Filename, err)
	}
	return table.Decode(header.Filename, data)
}

// serveCSV writes a table as a CSV attachment.
func serveCSV(w http.ResponseWriter, filename string, t *table.Table) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := t.WriteCSV(w); err != nil {
		// Headers are already sent; nothing useful to return
		slog.Error("csv write error", "file", filename, "error", err)
	}
}
