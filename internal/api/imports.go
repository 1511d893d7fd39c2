package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/meterdock/ediel-core/internal/ingest"
)

// handleListImports returns the import history, most recent first.
//
// Query parameters:
//   - family: filter by family (mig, twowire)
//   - status: filter by status (ok, failed)
//   - limit, offset: pagination
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	filter := ingest.Filter{
		Family: r.URL.Query().Get("family"),
		Status: r.URL.Query().Get("status"),
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	result, err := s.repo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing imports failed", "error", err)
		writeInternalError(w, "failed to list imports")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetImport returns one import by ID.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	imp, err := s.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ingest.ErrImportNotFound) {
			writeNotFound(w, "import not found")
			return
		}
		s.logger.Error("fetching import failed", "id", id, "error", err)
		writeInternalError(w, "failed to fetch import")
		return
	}

	writeJSON(w, http.StatusOK, imp)
}

// handleListImportDevices returns the device summaries of one import.
func (s *Server) handleListImportDevices(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	devices, err := s.repo.ListDevices(r.Context(), id)
	if err != nil {
		if errors.Is(err, ingest.ErrImportNotFound) {
			writeNotFound(w, "import not found")
			return
		}
		s.logger.Error("fetching import devices failed", "id", id, "error", err)
		writeInternalError(w, "failed to fetch import devices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"import_id": id,
		"devices":   devices,
	})
}

// handleScan requests an immediate inbox scan. The scan itself runs in
// the poll loop; this only wakes it.
func (s *Server) handleScan(w http.ResponseWriter, _ *http.Request) {
	if s.scanner == nil {
		writeUnavailable(w, "import service not running")
		return
	}

	s.scanner.TriggerScan()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "scan requested",
	})
}
