// Package queue wraps the SQS operations the Task Acquirer and Completion
// Committer need: receive one message with a long poll, extend visibility
// after a successful claim, and delete on a committed completion.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/aws-samples/htc-grid-agent/internal/config"
)

// receiveWaitTime is the long-poll duration for a single receive call, per
// spec's fixed 10s poll.
const receiveWaitTime = 10 * time.Second

// ErrNoMessage is returned by Receive when the long poll timed out without
// a message arriving.
var ErrNoMessage = errors.New("queue: no message available")

// Message is a single received queue message.
type Message struct {
	Body          []byte
	ReceiptHandle string
}

// API is the subset of the SQS client the queue package depends on, so
// tests can substitute a fake.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Client is a thin wrapper around an SQS queue URL.
type Client struct {
	api      API
	queueURL string
}

// NewClient resolves the queue URL for cfg.SQSQueue and returns a Client
// ready to receive, extend, and delete messages against it.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("queue: load aws config: %w", err)
	}

	api := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.SQSEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.SQSEndpoint)
		}
	})

	out, err := api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(cfg.SQSQueue)})
	if err != nil {
		return nil, fmt.Errorf("queue: resolve queue url for %q: %w", cfg.SQSQueue, err)
	}

	return &Client{api: api, queueURL: aws.ToString(out.QueueUrl)}, nil
}

// NewClientWithAPI builds a Client against a pre-resolved queue URL and an
// arbitrary API implementation, for tests and for callers that already know
// the URL.
func NewClientWithAPI(api API, queueURL string) *Client {
	return &Client{api: api, queueURL: queueURL}
}

// Receive polls for at most one message with a 10s long poll. Returns
// ErrNoMessage if the poll times out empty.
func (c *Client) Receive(ctx context.Context) (*Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     int32(receiveWaitTime.Seconds()),
	})
	if err != nil {
		return nil, fmt.Errorf("queue: receive: %w", err)
	}
	if len(out.Messages) == 0 {
		return nil, ErrNoMessage
	}

	msg := out.Messages[0]
	return &Message{
		Body:          []byte(aws.ToString(msg.Body)),
		ReceiptHandle: aws.ToString(msg.ReceiptHandle),
	}, nil
}

// ExtendVisibility sets the message's visibility timeout, used right after
// a successful claim so other consumers don't see it again while this agent
// owns it.
func (c *Client) ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	_, err := c.api.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: int32(timeout.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("queue: extend visibility: %w", err)
	}
	return nil
}

// Delete removes the message from the queue by receipt handle. Must only be
// called after a committed completion, or after confirming the underlying
// row was already cancelled.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("queue: delete: %w", err)
	}
	return nil
}
