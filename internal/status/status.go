// Package status models the task-status row held in the metadata store:
// the shared ownership record a claim, a renewal, and a completion all
// mutate under conditional writes.
package status

import "strings"

// State is the task_status column's value. Processing carries the owning
// pod's id as a shard suffix ("processing-<pod>"), so it is represented as
// a string column rather than a closed enum.
type State string

const (
	Pending  State = "pending"
	Finished State = "finished"
	Failed   State = "failed"

	processingPrefix = "processing-"
	cancelledPrefix  = "cancelled"
)

// Processing returns the processing-<owner> state value for an owner.
func Processing(owner string) State {
	return State(processingPrefix + owner)
}

// IsProcessing reports whether the state is a processing-<owner> value.
func (s State) IsProcessing() bool {
	return strings.HasPrefix(string(s), processingPrefix)
}

// IsCancelled reports whether the state is a cancelled-* value. Per spec
// I5, a cancelled row is terminal from the agent's perspective.
func (s State) IsCancelled() bool {
	return strings.HasPrefix(string(s), cancelledPrefix)
}

// NoOwner is the sentinel task_owner value meaning no agent currently
// holds the row.
const NoOwner = "none"

// Row is the task-status row as read from the metadata store.
type Row struct {
	TaskID                       string `dynamodbav:"task_id"`
	TaskStatus                   State  `dynamodbav:"task_status"`
	TaskOwner                    string `dynamodbav:"task_owner"`
	HeartbeatExpirationTimestamp int64  `dynamodbav:"heartbeat_expiration_timestamp"`
	Retries                      int64  `dynamodbav:"retries"`
	SQSHandlerID                 string `dynamodbav:"sqs_handler_id"`
	TaskCompletionTimestamp      int64  `dynamodbav:"task_completion_timestamp"`
}

// OwnedBy reports whether self currently owns this row according to the
// last read. Claim/Renew/Finish still re-verify this with a conditional
// write server-side; this is a local, advisory check only.
func (r *Row) OwnedBy(self string) bool {
	return r.TaskOwner == self && r.TaskStatus.IsProcessing()
}
