// Package task defines the unit of work the agent pulls off the queue and
// carries through a single execution.
package task

import (
	"encoding/json"
	"fmt"
)

// Stage names stamped into a Task's Stats map. The order here is the
// causal order the stamps must be observed in.
const (
	StageAcquiredFromQueue = "stage3_agent_01_acquired_from_queue"
	StageAcquiredInStore   = "stage3_agent_02_acquired_in_store"
	StageUserCodeFinished  = "stage4_agent_01_user_code_finished"
	StageArtifactDelivered = "stage4_agent_02_artifact_delivered"
)

// Task is the unit of work decoded from a queue message body.
type Task struct {
	TaskID          string           `json:"task_id"`
	SessionID       string           `json:"session_id"`
	ParentSessionID string           `json:"parent_session_id"`
	TaskDefinition  json.RawMessage  `json:"task_definition"`
	WorkerArguments []string         `json:"worker_arguments"`
	SQSHandleID     string           `json:"sqs_handle_id,omitempty"`
	Stats           map[string]int64 `json:"stats"`
}

// FromMessageBody decodes a Task from a raw queue message body.
func FromMessageBody(body []byte) (*Task, error) {
	var t Task
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode task message: %w", err)
	}
	if t.Stats == nil {
		t.Stats = make(map[string]int64)
	}
	return &t, nil
}

// Stamp records the current time (in epoch milliseconds, supplied by the
// caller so tests stay deterministic) against a named stage. Mutates the
// task's Stats map in place, as spec'd.
func (t *Task) Stamp(stage string, nowMS int64) {
	if t.Stats == nil {
		t.Stats = make(map[string]int64)
	}
	t.Stats[stage] = nowMS
}

// StatAt returns the stamped timestamp for a stage and whether it was set.
func (t *Task) StatAt(stage string) (int64, bool) {
	v, ok := t.Stats[stage]
	return v, ok
}
