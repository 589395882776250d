package api

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/nerrad567/gatehouse/internal/audit"
	"github.com/nerrad567/gatehouse/internal/device"
)

// handleStats returns the inside/outside occupancy counts together with a
// per-status breakdown.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.ListDevices(r.Context())
	if err != nil {
		s.writeDeviceError(w, err, "failed to compute stats")
		return
	}

	occ := device.ComputeStats(devices)
	writeJSON(w, http.StatusOK, map[string]any{
		"inside":    occ.Inside,
		"outside":   occ.Outside,
		"total":     occ.Total,
		"by_status": device.CountByStatus(devices),
	})
}

// handleHistory returns every device, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.History(r.Context())
	if err != nil {
		s.writeDeviceError(w, err, "failed to load history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": newDeviceViews(devices),
		"count":   len(devices),
	})
}

// handleExportCSV streams the history as a CSV attachment.
// The document is rendered into memory first so a write failure still
// produces a clean error response instead of a truncated file.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	devices, err := s.registry.History(r.Context())
	if err != nil {
		s.writeDeviceError(w, err, "failed to load history")
		return
	}

	var buf bytes.Buffer
	if err := device.WriteCSV(&buf, devices, s.location); err != nil {
		s.logger.Error("rendering csv export failed", "error", err)
		writeInternalError(w, "failed to export devices")
		return
	}

	s.auditLog(audit.ActionExport, audit.EntityHistory, "", operatorFromContext(r.Context()), map[string]any{
		"rows": len(devices),
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", device.ExportFilename))
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(buf.Bytes())
}
