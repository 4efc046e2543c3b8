package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/technosupport/ts-vms-es/internal/cameras"
)

const RevisionHeader = "X-Stream-Revision"

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps a command result to its HTTP status. The mapping is 1:1.
func statusFor(k cameras.ResultKind) int {
	switch k {
	case cameras.ResultCreated:
		return http.StatusCreated
	case cameras.ResultOK:
		return http.StatusOK
	case cameras.ResultNoContent:
		return http.StatusNoContent
	case cameras.ResultConflict:
		return http.StatusConflict
	case cameras.ResultNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// respondResult writes res. Successful results carry the stream revision
// in X-Stream-Revision.
func respondResult(w http.ResponseWriter, res cameras.Result) {
	status := statusFor(res.Kind)
	switch res.Kind {
	case cameras.ResultConflict, cameras.ResultNotFound, cameras.ResultFailure:
		respondError(w, status, res.Message)
		return
	}

	w.Header().Set(RevisionHeader, strconv.FormatInt(res.Revision, 10))
	switch {
	case res.Kind == cameras.ResultNoContent:
		w.WriteHeader(status)
	case res.Camera != nil:
		respondJSON(w, status, res.Camera)
	case res.History != nil:
		respondJSON(w, status, historyView(res.History))
	default:
		respondJSON(w, status, map[string]int64{"revision": res.Revision})
	}
}

func cameraID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid camera ID")
		return uuid.Nil, false
	}
	return id, true
}

const maxBodyBytes = 1 << 20

// decodeBody rejects a malformed (400) or oversized (413) body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}
