package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gatehouse/internal/device"
)

// deviceView is a device as returned by the API: the stored record plus the
// statuses it may move to next, so clients never hard-code the transition table.
type deviceView struct {
	device.Device
	AllowedTransitions []device.Status `json:"allowed_transitions"`
}

func newDeviceView(d device.Device) deviceView {
	return deviceView{Device: d, AllowedTransitions: device.AllowedTransitions(&d)}
}

func newDeviceViews(devices []device.Device) []deviceView {
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, newDeviceView(d))
	}
	return views
}

// transitionRequest is the request body for PUT/PATCH /devices/{id}.
type transitionRequest struct {
	Status string `json:"status"`
}

// handleListDevices returns devices newest first.
//
// Query parameters:
//   - status: todos (default), pendiente, validado, entregado
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	filter, err := device.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}

	devices, err := s.registry.History(r.Context())
	if err != nil {
		s.writeDeviceError(w, err, "failed to list devices")
		return
	}

	devices = device.FilterByStatus(devices, filter)
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": newDeviceViews(devices),
		"count":   len(devices),
	})
}

// handleListDeviceTypes returns the device type catalogue offered when registering.
func (s *Server) handleListDeviceTypes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"types": device.KnownDeviceTypes(),
		"other": device.DeviceTypeOther,
	})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, newDeviceView(*dev))
}

// handleCreateDevice registers a new device in pendiente.
// Any id, status or timestamp in the body is ignored.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var in device.CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		if errors.Is(err, device.ErrInvalidMovementType) {
			writeValidationError(w, err.Error())
			return
		}
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.CreateDevice(r.Context(), in)
	if err != nil {
		s.writeDeviceError(w, err, "failed to create device")
		return
	}

	s.afterMutation(r.Context(), eventCreated, *dev, operatorFromContext(r.Context()))
	writeJSON(w, http.StatusCreated, newDeviceView(*dev))
}

// handleTransitionDevice moves a device to the status named in the body.
func (s *Server) handleTransitionDevice(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	// Unknown targets go through the registry so a missing device still
	// reports 404 and an existing one reports an illegal transition.
	to, err := device.ParseStatus(req.Status)
	if err != nil {
		to = device.Status(strings.TrimSpace(req.Status))
	}

	s.transition(w, r, to)
}

// handleTransitionTo returns a handler that moves the device to a fixed status.
// It backs the validate and deliver action shortcuts.
func (s *Server) handleTransitionTo(to device.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.transition(w, r, to)
	}
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, to device.Status) {
	dev, err := s.registry.TransitionDevice(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		s.writeDeviceError(w, err, "failed to update device")
		return
	}

	s.afterMutation(r.Context(), eventForStatus(dev.Status), *dev, operatorFromContext(r.Context()))
	writeJSON(w, http.StatusOK, newDeviceView(*dev))
}

// handleGetTransitions returns the statuses a device may move to next.
func (s *Server) handleGetTransitions(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":           dev.ID,
		"status":              dev.Status,
		"allowed_transitions": device.AllowedTransitions(dev),
	})
}

// handleDeleteDevice removes a device in any status.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.DeleteDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDeviceError(w, err, "failed to delete device")
		return
	}

	s.afterMutation(r.Context(), eventDeleted, *dev, operatorFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}
