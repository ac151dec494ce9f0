// Package store wraps the DynamoDB task-status row: the claim/renew/finish
// conditional writes that encode the protocol's ownership invariants
// (spec §3 I1-I5). One exported client holds two underlying DynamoDB
// clients differing only in retry mode - standard for the claim path,
// adaptive for renew/finish under congestion - selected per call-site per
// the design note in spec §9, rather than exposing two store types.
package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/aws-samples/htc-grid-agent/internal/config"
	"github.com/aws-samples/htc-grid-agent/internal/status"
)

// API is the subset of the DynamoDB client the store package depends on.
type API interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// Client is the metadata-store client. Claim uses the standard-retry API;
// Renew and Finish use the adaptive-retry API (congestion control).
type Client struct {
	standard API
	adaptive API
	table    string
}

// NewClient builds a Client against cfg.DDBStatusTable, with a
// standard-mode client for claims and an adaptive-mode client for
// renewals/finishes, unconditionally (spec §9). cfg.UseCongestionControl is
// not read here; it mirrors the source's own unused USE_CC flag.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	standardCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load standard aws config: %w", err)
	}

	adaptiveMode := retry.NewAdaptiveMode(func(o *retry.AdaptiveModeOptions) {
		o.StandardOptions = append(o.StandardOptions, func(so *retry.StandardOptions) {
			so.MaxAttempts = 10
		})
	})
	adaptiveCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() aws.Retryer { return adaptiveMode }),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load adaptive aws config: %w", err)
	}

	return &Client{
		standard: dynamodb.NewFromConfig(standardCfg),
		adaptive: dynamodb.NewFromConfig(adaptiveCfg),
		table:    cfg.DDBStatusTable,
	}, nil
}

// NewClientWithAPIs builds a Client directly from API implementations, for
// tests.
func NewClientWithAPIs(standard, adaptive API, table string) *Client {
	return &Client{standard: standard, adaptive: adaptive, table: table}
}

// Claim attempts the I1 conditional write: pending -> processing-<owner>.
// retries is incremented unconditionally, including on a task's first
// successful claim (spec §9 open question, resolved: preserve this).
func (c *Client) Claim(ctx context.Context, taskID, owner string, heartbeatExpiration int64) error {
	_, err := c.standard.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
		UpdateExpression: aws.String(
			"SET task_owner = :owner, task_status = :processing, " +
				"heartbeat_expiration_timestamp = :expiry, retries = if_not_exists(retries, :zero) + :incr",
		),
		ConditionExpression: aws.String("task_owner = :none AND task_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner":      &types.AttributeValueMemberS{Value: owner},
			":processing": &types.AttributeValueMemberS{Value: string(status.Processing(owner))},
			":expiry":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", heartbeatExpiration)},
			":zero":       &types.AttributeValueMemberN{Value: "0"},
			":incr":       &types.AttributeValueMemberN{Value: "1"},
			":none":       &types.AttributeValueMemberS{Value: status.NoOwner},
			":pending":    &types.AttributeValueMemberS{Value: string(status.Pending)},
		},
	})
	return classify(err)
}

// Renew attempts the lease-renewal conditional write: owner must still be
// self. Returns ErrThrottled / ErrConditionFailed classified for the
// caller's retry loop.
func (c *Client) Renew(ctx context.Context, taskID, owner string, heartbeatExpiration int64) error {
	_, err := c.adaptive.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
		UpdateExpression:    aws.String("SET heartbeat_expiration_timestamp = :expiry"),
		ConditionExpression: aws.String("task_owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expiry": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", heartbeatExpiration)},
			":owner":  &types.AttributeValueMemberS{Value: owner},
		},
	})
	return classify(err)
}

// Finish attempts the I2 conditional write: processing-<owner> -> finished.
func (c *Client) Finish(ctx context.Context, taskID, owner string, completedAt int64) error {
	_, err := c.adaptive.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
		UpdateExpression:    aws.String("SET task_status = :finished, task_completion_timestamp = :completed"),
		ConditionExpression: aws.String("task_owner = :owner"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":finished":  &types.AttributeValueMemberS{Value: string(status.Finished)},
			":completed": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", completedAt)},
			":owner":     &types.AttributeValueMemberS{Value: owner},
		},
	})
	return classify(err)
}

// Read fetches the current row, used by the Acquirer's cancellation probe
// after a lost claim.
func (c *Client) Read(ctx context.Context, taskID string) (*status.Row, error) {
	out, err := c.standard.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.table),
		Key: map[string]types.AttributeValue{
			"task_id": &types.AttributeValueMemberS{Value: taskID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", taskID, err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("store: row %q not found", taskID)
	}

	var row status.Row
	if err := attributevalue.UnmarshalMap(out.Item, &row); err != nil {
		return nil, fmt.Errorf("store: decode row %q: %w", taskID, err)
	}
	return &row, nil
}
