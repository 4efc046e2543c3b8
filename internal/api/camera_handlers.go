package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/technosupport/ts-vms-es/internal/cameras"
	"github.com/technosupport/ts-vms-es/internal/eventstore"
)

type CameraHandler struct {
	Service *cameras.Service
}

func NewCameraHandler(svc *cameras.Service) *CameraHandler {
	return &CameraHandler{Service: svc}
}

// POST /cameras
func (h *CameraHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Location  *string `json:"location"`
		Model     *string `json:"model"`
		IPAddress *string `json:"ipAddress"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Location == nil || req.Model == nil || req.IPAddress == nil {
		respondError(w, http.StatusBadRequest, "location, model and ipAddress are required")
		return
	}

	res := h.Service.Register(r.Context(), cameras.RegisterInput{
		Location:  *req.Location,
		Model:     *req.Model,
		IPAddress: *req.IPAddress,
	})
	if res.Kind == cameras.ResultCreated {
		w.Header().Set("Location", "/cameras/"+res.Camera.ID.String())
	}
	respondResult(w, res)
}

// GET /cameras/{id}
// GET /cameras/{id}?revision=k folds only revisions 0..k.
func (h *CameraHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraID(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("revision")
	if raw == "" {
		respondResult(w, h.Service.GetState(r.Context(), id))
		return
	}
	rev, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || rev < 0 {
		respondError(w, http.StatusBadRequest, "Invalid revision")
		return
	}
	respondResult(w, h.Service.GetStateAt(r.Context(), id, rev))
}

// GET /cameras/{id}/events
func (h *CameraHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraID(w, r)
	if !ok {
		return
	}
	respondResult(w, h.Service.Events(r.Context(), id))
}

// PUT /cameras/{id}
func (h *CameraHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraID(w, r)
	if !ok {
		return
	}

	var req struct {
		Location  *string `json:"location"`
		Model     *string `json:"model"`
		IPAddress *string `json:"ipAddress"`
		IsActive  *bool   `json:"isActive"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	respondResult(w, h.Service.Update(r.Context(), id, cameras.UpdateInput{
		Location:  req.Location,
		Model:     req.Model,
		IPAddress: req.IPAddress,
		IsActive:  req.IsActive,
	}))
}

// DELETE /cameras/{id}
func (h *CameraHandler) Decommission(w http.ResponseWriter, r *http.Request) {
	id, ok := cameraID(w, r)
	if !ok {
		return
	}
	respondResult(w, h.Service.Decommission(r.Context(), id))
}

type eventView struct {
	Revision  int64           `json:"revision"`
	EventID   uuid.UUID       `json:"eventId"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	Created   time.Time       `json:"created"`
}

func historyView(recs []eventstore.RecordedEvent) []eventView {
	out := make([]eventView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, eventView{
			Revision:  rec.Revision,
			EventID:   rec.EventID,
			EventType: rec.EventType,
			Payload:   rec.Payload,
			Metadata:  rec.Metadata,
			Created:   rec.Created,
		})
	}
	return out
}
