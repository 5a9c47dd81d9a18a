package store

import (
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// ExitCodeKilled follows the POSIX convention for a process killed by SIGKILL.
const ExitCodeKilled = 137

func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Intent records which model version a job works toward. It is stored with
// the job so that a restarted job does not depend on the live model registry
// to know its own goal.
type Intent struct {
	ModelID   uint   `json:"targetModelId"`
	ModelName string `json:"targetModelName"`
	Version   int    `json:"targetVersion"`
}

type Job struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Status    JobStatus `gorm:"index" json:"status"`
	ScriptID  uint      `gorm:"index" json:"scriptId"`
	DatasetID uint      `gorm:"index" json:"datasetId"`
	RuntimeID uint      `gorm:"index" json:"runtimeId"`

	// User supplied hyperparameters, without any controller-owned key
	Params map[string]any `gorm:"serializer:json" json:"hyperparameters"`
	Intent Intent         `gorm:"embedded;embeddedPrefix:target_" json:"intent"`

	ContainerID  string `gorm:"index" json:"containerId,omitempty"`
	LogPath      string `json:"logPath,omitempty"`
	ExitCode     *int   `json:"exitCode,omitempty"`
	ErrorMessage string `gorm:"type:text" json:"errorMessage,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	RestartedFromID *uint `gorm:"index" json:"restartedFromId,omitempty"`

	ProducedModelVersion *ModelVersion `gorm:"foreignKey:JobID" json:"producedModelVersion,omitempty"`
}
