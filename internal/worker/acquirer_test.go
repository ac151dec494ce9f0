package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aws-samples/htc-grid-agent/internal/queue"
	"github.com/aws-samples/htc-grid-agent/internal/status"
	"github.com/aws-samples/htc-grid-agent/internal/store"
)

type fakeQueue struct {
	receiveMsg *queue.Message
	receiveErr error

	extendErr        error
	lastExtendHandle string

	deleteErr        error
	lastDeleteHandle string
}

func (f *fakeQueue) Receive(ctx context.Context) (*queue.Message, error) {
	return f.receiveMsg, f.receiveErr
}

func (f *fakeQueue) ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	f.lastExtendHandle = receiptHandle
	return f.extendErr
}

func (f *fakeQueue) Delete(ctx context.Context, receiptHandle string) error {
	f.lastDeleteHandle = receiptHandle
	return f.deleteErr
}

type fakeClaimStore struct {
	claimErr error

	readRow *status.Row
	readErr error
}

func (f *fakeClaimStore) Claim(ctx context.Context, taskID, owner string, heartbeatExpiration int64) error {
	return f.claimErr
}

func (f *fakeClaimStore) Read(ctx context.Context, taskID string) (*status.Row, error) {
	return f.readRow, f.readErr
}

func newTestAcquirer(q queueClient, s claimStore) *Acquirer {
	a := NewAcquirer(q, s, "pod-1", 30*time.Second, NewTTLGenerator(20*time.Second, 60*time.Second))
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	a.contentionSleep = func() time.Duration { return 0 }
	return a
}

func TestAcquirer_TryAcquire_NoMessage(t *testing.T) {
	fq := &fakeQueue{receiveErr: queue.ErrNoMessage}
	a := newTestAcquirer(fq, &fakeClaimStore{})

	task, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestAcquirer_TryAcquire_Success(t *testing.T) {
	fq := &fakeQueue{receiveMsg: &queue.Message{Body: []byte(`{"task_id":"T1"}`), ReceiptHandle: "rh-1"}}
	fs := &fakeClaimStore{}
	a := newTestAcquirer(fq, fs)

	got, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "T1", got.TaskID)
	assert.Equal(t, "rh-1", fq.lastExtendHandle)
	_, ok := got.StatAt("stage3_agent_02_acquired_in_store")
	assert.True(t, ok)
}

func TestAcquirer_TryAcquire_LostClaim_NotCancelled(t *testing.T) {
	fq := &fakeQueue{receiveMsg: &queue.Message{Body: []byte(`{"task_id":"T1"}`), ReceiptHandle: "rh-1"}}
	fs := &fakeClaimStore{
		claimErr: store.ErrConditionFailed,
		readRow:  &status.Row{TaskStatus: status.Processing("other-pod")},
	}
	a := newTestAcquirer(fq, fs)

	got, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, fq.lastDeleteHandle)
}

func TestAcquirer_TryAcquire_LostClaim_Cancelled(t *testing.T) {
	fq := &fakeQueue{receiveMsg: &queue.Message{Body: []byte(`{"task_id":"T1"}`), ReceiptHandle: "rh-1"}}
	fs := &fakeClaimStore{
		claimErr: store.ErrConditionFailed,
		readRow:  &status.Row{TaskStatus: status.State("cancelled-by-user")},
	}
	a := newTestAcquirer(fq, fs)

	got, err := a.TryAcquire(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, "rh-1", fq.lastDeleteHandle)
}

func TestAcquirer_TryAcquire_FatalStoreError(t *testing.T) {
	fq := &fakeQueue{receiveMsg: &queue.Message{Body: []byte(`{"task_id":"T1"}`), ReceiptHandle: "rh-1"}}
	fs := &fakeClaimStore{claimErr: errors.New("ddb unreachable")}
	a := newTestAcquirer(fq, fs)

	got, err := a.TryAcquire(context.Background())
	assert.Error(t, err)
	assert.Nil(t, got)
}
