package response

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// JobAccepted is the body returned when an asynchronous job is started.
type JobAccepted struct {
	JobID string `json:"job_id"`
}

// WriteJobAccepted acknowledges an accepted background job.
func WriteJobAccepted(w http.ResponseWriter, jobID string) {
	WriteJSON(w, http.StatusAccepted, JobAccepted{JobID: jobID})
}
