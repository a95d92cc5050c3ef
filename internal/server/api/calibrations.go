package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/ayusman/mudra/internal/store"
)

// Activator loads a stored calibration into the running engine.
type Activator interface {
	ActivateCalibration(id string) error
}

// CalibrationHandler handles HTTP requests for calibration profiles.
type CalibrationHandler struct {
	store     *store.Store
	activator Activator
}

// NewCalibrationHandler creates a CalibrationHandler. activator may be nil,
// in which case activation only updates the store.
func NewCalibrationHandler(s *store.Store, activator Activator) *CalibrationHandler {
	return &CalibrationHandler{store: s, activator: activator}
}

// ServeHTTP routes /api/calibrations, /api/calibrations/{id} and
// /api/calibrations/{id}/activate.
func (h *CalibrationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/calibrations")
	path = strings.Trim(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if id, ok := strings.CutSuffix(path, "/activate"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h.activate(w, r, id)
		return
	}
	if strings.Contains(path, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, path)
	case http.MethodDelete:
		h.delete(w, r, path)
	default:
		methodNotAllowed(w)
	}
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p point) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

func (p point) valid() bool {
	return p.X >= 0 && p.X <= 1 && p.Y >= 0 && p.Y <= 1 &&
		!math.IsNaN(p.X) && !math.IsNaN(p.Y)
}

type createCalibrationRequest struct {
	Name string `json:"name"`
	A    *point `json:"a"`
	B    *point `json:"b"`
}

type calibrationResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	A         point  `json:"a"`
	B         point  `json:"b"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type listCalibrationsResponse struct {
	Calibrations []calibrationResponse `json:"calibrations"`
}

func toCalibrationResponse(c *store.Calibration) calibrationResponse {
	return calibrationResponse{
		ID:        c.ID,
		Name:      c.Name,
		A:         point{X: c.A.X, Y: c.A.Y},
		B:         point{X: c.B.X, Y: c.B.Y},
		Active:    c.Active,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/calibrations.
func (h *CalibrationHandler) list(w http.ResponseWriter, r *http.Request) {
	cals, err := h.store.Calibrations().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list calibrations")
		return
	}

	response := listCalibrationsResponse{
		Calibrations: make([]calibrationResponse, 0, len(cals)),
	}
	for _, c := range cals {
		response.Calibrations = append(response.Calibrations, toCalibrationResponse(c))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/calibrations/{id}.
func (h *CalibrationHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	c, err := h.store.Calibrations().Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get calibration")
		return
	}
	writeJSON(w, http.StatusOK, toCalibrationResponse(c))
}

// create handles POST /api/calibrations. Anchors are normalized camera
// coordinates and must differ on both axes.
func (h *CalibrationHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createCalibrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if req.A == nil || req.B == nil {
		writeError(w, http.StatusBadRequest, "Both anchors are required")
		return
	}
	if !req.A.valid() || !req.B.valid() {
		writeError(w, http.StatusBadRequest, "Anchors must be within [0,1]")
		return
	}
	if req.A.X == req.B.X || req.A.Y == req.B.Y {
		writeError(w, http.StatusBadRequest, "Anchors must differ on both axes")
		return
	}

	c := &store.Calibration{Name: req.Name, A: req.A.vec(), B: req.B.vec()}
	if err := h.store.Calibrations().Create(c); err != nil {
		writeError(w, http.StatusConflict, "Failed to create calibration")
		return
	}
	writeJSON(w, http.StatusCreated, toCalibrationResponse(c))
}

// activate handles POST /api/calibrations/{id}/activate.
func (h *CalibrationHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	var err error
	if h.activator != nil {
		err = h.activator.ActivateCalibration(id)
	} else {
		err = h.store.Calibrations().Activate(id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to activate calibration")
		return
	}
	h.get(w, r, id)
}

// delete handles DELETE /api/calibrations/{id}.
func (h *CalibrationHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Calibrations().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Calibration not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete calibration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
