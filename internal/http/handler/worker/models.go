package worker

import (
	"github.com/bornholm/trainyard/internal/store"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Job Status Models
type JobStatusResponse struct {
	JobID  uint            `json:"jobId"`
	Status store.JobStatus `json:"status"`
}

// Model Version Models
type ModelVersionRequest struct {
	Path string `json:"path"`
}
