package queue

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bornholm/trainyard/internal/store"
)

func TestNewJobMessage(t *testing.T) {
	job := &store.Job{
		ID:        7,
		ScriptID:  1,
		DatasetID: 2,
		RuntimeID: 3,
		Params: map[string]any{
			"lr":                  0.01,
			ReservedTargetVersion: 99,
		},
		Intent: store.Intent{ModelID: 4, ModelName: "resnet", Version: 5},
	}

	message := NewJobMessage(job)

	require.Equal(t, uint(7), message.JobID)
	require.Equal(t, uint(4), message.TargetModelID)
	require.Equal(t, 5, message.TargetVersion)
	require.Equal(t, 0.01, message.Hyperparameters["lr"])
	require.Equal(t, uint(4), message.Hyperparameters[ReservedTargetModelID])
	require.Equal(t, "resnet", message.Hyperparameters[ReservedTargetModelName])
	require.Equal(t, 5, message.Hyperparameters[ReservedTargetVersion])

	// The job's own params are left untouched
	require.Equal(t, 99, job.Params[ReservedTargetVersion])
	require.NotContains(t, job.Params, ReservedTargetModelID)
}

func TestStripReserved(t *testing.T) {
	stripped := StripReserved(map[string]any{
		"epochs":                10,
		ReservedTargetModelID:   1,
		ReservedTargetModelName: "x",
		ReservedTargetVersion:   2,
	})

	require.Equal(t, map[string]any{"epochs": 10}, stripped)
	require.Empty(t, StripReserved(nil))
}

func TestJobIDFromChannel(t *testing.T) {
	type testCase struct {
		Channel    string
		ExpectedID uint
		ExpectedOK bool
	}

	testCases := []testCase{
		{Channel: LogChannel(42), ExpectedID: 42, ExpectedOK: true},
		{Channel: "logs:", ExpectedOK: false},
		{Channel: "logs:abc", ExpectedOK: false},
		{Channel: "logs:0", ExpectedOK: false},
		{Channel: "events:42", ExpectedOK: false},
	}

	for _, tc := range testCases {
		t.Run(tc.Channel, func(t *testing.T) {
			id, ok := JobIDFromChannel(tc.Channel)
			require.Equal(t, tc.ExpectedOK, ok)
			require.Equal(t, tc.ExpectedID, id)
		})
	}
}
