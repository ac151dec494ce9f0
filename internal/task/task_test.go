package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMessageBody(t *testing.T) {
	body := []byte(`{
		"task_id": "T1",
		"session_id": "S1",
		"parent_session_id": "S1",
		"task_definition": "cGF5bG9hZA==",
		"worker_arguments": ["a", "b", "c"],
		"stats": {}
	}`)

	tsk, err := FromMessageBody(body)
	require.NoError(t, err)
	assert.Equal(t, "T1", tsk.TaskID)
	assert.Equal(t, "S1", tsk.SessionID)
	assert.Equal(t, []string{"a", "b", "c"}, tsk.WorkerArguments)
	assert.NotNil(t, tsk.Stats)
}

func TestFromMessageBody_InvalidJSON(t *testing.T) {
	_, err := FromMessageBody([]byte("not json"))
	assert.Error(t, err)
}

func TestFromMessageBody_NilStats(t *testing.T) {
	body := []byte(`{"task_id": "T1"}`)
	tsk, err := FromMessageBody(body)
	require.NoError(t, err)
	assert.NotNil(t, tsk.Stats)
}

func TestTask_Stamp(t *testing.T) {
	tsk := &Task{}
	tsk.Stamp(StageAcquiredFromQueue, 1000)
	tsk.Stamp(StageAcquiredInStore, 1010)

	v, ok := tsk.StatAt(StageAcquiredFromQueue)
	assert.True(t, ok)
	assert.Equal(t, int64(1000), v)

	v, ok = tsk.StatAt(StageAcquiredInStore)
	assert.True(t, ok)
	assert.Equal(t, int64(1010), v)

	_, ok = tsk.StatAt("missing")
	assert.False(t, ok)
}

func TestTask_Stamp_OrderedCausally(t *testing.T) {
	tsk := &Task{}
	stages := []string{
		StageAcquiredFromQueue,
		StageAcquiredInStore,
		StageUserCodeFinished,
		StageArtifactDelivered,
	}
	for i, s := range stages {
		tsk.Stamp(s, int64(i))
	}

	var last int64 = -1
	for _, s := range stages {
		v, ok := tsk.StatAt(s)
		require.True(t, ok)
		assert.Greater(t, v, last)
		last = v
	}
}
