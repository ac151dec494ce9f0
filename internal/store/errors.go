package store

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConditionFailed is returned when a conditional write's predicate did
// not hold: the claim was already taken, or ownership had lapsed before a
// renewal/finish write landed.
var ErrConditionFailed = errors.New("store: conditional check failed")

// ErrThrottled is returned when DynamoDB rejected the request for capacity
// reasons. Callers in the Lease Renewer and Completion Committer retry
// these indefinitely per spec.
var ErrThrottled = errors.New("store: throttled")

// classify maps a DynamoDB error into one of ErrConditionFailed,
// ErrThrottled, or the original error (fatal).
func classify(err error) error {
	if err == nil {
		return nil
	}

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConditionFailed
	}

	var throttled *types.ProvisionedThroughputExceededException
	if errors.As(err, &throttled) {
		return ErrThrottled
	}

	var apiErr interface{ ErrorCode() string }
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ProvisionedThroughputExceededException":
			return ErrThrottled
		case "ConditionalCheckFailedException":
			return ErrConditionFailed
		}
	}

	return err
}
