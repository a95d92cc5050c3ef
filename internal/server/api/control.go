package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/mudra/internal/app"
	"github.com/ayusman/mudra/internal/gesture"
)

// Controller is the runtime surface driven by the control endpoints.
// *app.App implements it.
type Controller interface {
	Status() app.Status
	ToggleClickMode() (gesture.Mode, error)
	SetClickMode(m gesture.Mode) error
	SetEnabled(enabled bool) error
	Recalibrate() error
	ActivateCalibration(id string) error
}

// ControlHandler serves status and the runtime toggles.
type ControlHandler struct {
	ctl Controller
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(ctl Controller) *ControlHandler {
	return &ControlHandler{ctl: ctl}
}

// Register mounts the control endpoints on mux.
func (h *ControlHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", h.status)
	mux.HandleFunc("/api/mode", h.mode)
	mux.HandleFunc("/api/enabled", h.enabled)
	mux.HandleFunc("/api/calibrate", h.calibrate)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

type modeResponse struct {
	Mode gesture.Mode `json:"mode"`
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

// status handles GET /api/status.
func (h *ControlHandler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, h.ctl.Status())
}

// mode handles GET and POST /api/mode. A POST without a body toggles
// between pinch and fist.
func (h *ControlHandler) mode(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, modeResponse{Mode: h.ctl.Status().Mode})
	case http.MethodPost:
		var req modeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}

		if req.Mode == "" {
			m, err := h.ctl.ToggleClickMode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to toggle click mode")
				return
			}
			writeJSON(w, http.StatusOK, modeResponse{Mode: m})
			return
		}

		m, err := gesture.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid click mode")
			return
		}
		if err := h.ctl.SetClickMode(m); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to set click mode")
			return
		}
		writeJSON(w, http.StatusOK, modeResponse{Mode: m})
	default:
		methodNotAllowed(w)
	}
}

// enabled handles GET and POST /api/enabled.
func (h *ControlHandler) enabled(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.ctl.Status().Enabled})
	case http.MethodPost:
		var req enabledRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "enabled is required")
			return
		}
		if err := h.ctl.SetEnabled(*req.Enabled); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to change enabled state")
			return
		}
		writeJSON(w, http.StatusOK, enabledResponse{Enabled: *req.Enabled})
	default:
		methodNotAllowed(w)
	}
}

// calibrate handles POST /api/calibrate. The next two click gestures record
// the calibration anchors.
func (h *ControlHandler) calibrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := h.ctl.Recalibrate(); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to start calibration")
		return
	}
	writeJSON(w, http.StatusAccepted, h.ctl.Status())
}
