// Package queue carries job messages to the external worker pool and log
// messages back from it, over Redis lists and pub/sub channels.
package queue

import (
	"strconv"
	"strings"

	"github.com/bornholm/trainyard/internal/store"
)

// Hyperparameter keys owned by the control plane. Workers read the job's
// target from them, callers may never set them.
const (
	ReservedTargetModelID   = "_target_model_id"
	ReservedTargetModelName = "_target_model_name"
	ReservedTargetVersion   = "_target_version"
)

var reservedKeys = []string{
	ReservedTargetModelID,
	ReservedTargetModelName,
	ReservedTargetVersion,
}

const logChannelPrefix = "logs:"

type JobMessage struct {
	JobID           uint           `json:"jobId"`
	ScriptID        uint           `json:"scriptId"`
	DatasetID       uint           `json:"datasetId"`
	RuntimeID       uint           `json:"runtimeId"`
	TargetModelID   uint           `json:"targetModelId"`
	TargetVersion   int            `json:"targetVersion"`
	Hyperparameters map[string]any `json:"hyperparameters"`
}

// NewJobMessage builds the message for a persisted job. The job's intent is
// written back into the hyperparameters under the reserved keys.
func NewJobMessage(job *store.Job) *JobMessage {
	hyperparameters := StripReserved(job.Params)
	hyperparameters[ReservedTargetModelID] = job.Intent.ModelID
	hyperparameters[ReservedTargetModelName] = job.Intent.ModelName
	hyperparameters[ReservedTargetVersion] = job.Intent.Version

	return &JobMessage{
		JobID:           job.ID,
		ScriptID:        job.ScriptID,
		DatasetID:       job.DatasetID,
		RuntimeID:       job.RuntimeID,
		TargetModelID:   job.Intent.ModelID,
		TargetVersion:   job.Intent.Version,
		Hyperparameters: hyperparameters,
	}
}

// StripReserved returns a copy of params without the reserved keys.
func StripReserved(params map[string]any) map[string]any {
	stripped := make(map[string]any, len(params))
	for k, v := range params {
		stripped[k] = v
	}

	for _, k := range reservedKeys {
		delete(stripped, k)
	}

	return stripped
}

type LogMessage struct {
	Channel string
	Payload string
}

func LogChannel(jobID uint) string {
	return logChannelPrefix + strconv.FormatUint(uint64(jobID), 10)
}

// JobIDFromChannel extracts the job id of a log channel name.
func JobIDFromChannel(channel string) (uint, bool) {
	raw, found := strings.CutPrefix(channel, logChannelPrefix)
	if !found || raw == "" {
		return 0, false
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}

	return uint(id), true
}
