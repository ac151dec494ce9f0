// Package runtime wraps the remote function runtime the C2 Execution
// Driver variant invokes: a synchronous request-response Lambda invoke,
// plus the bootstrap runtime's bespoke stop endpoint called at shutdown.
package runtime

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"

	"github.com/aws-samples/htc-grid-agent/internal/config"
)

// bootstrapFailureMarker is the literal sentinel the mock bootstrap runtime
// embeds in a response payload when the user function failed to start.
const bootstrapFailureMarker = "BOOTSTRAP ERROR"

// API is the subset of the Lambda client runtime depends on.
type API interface {
	Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error)
}

// InvokeResult is the decoded result of a synchronous remote invocation.
type InvokeResult struct {
	// BootstrapFailed is set when the payload contained the bootstrap
	// failure marker - the caller must not commit a normal completion.
	BootstrapFailed bool
	// Payload is the decoded response body, used as the stdout artifact.
	// Only meaningful when !BootstrapFailed. The remote variant never
	// carries a stderr stream (spec §9, preserved asymmetry).
	Payload []byte
}

// Client invokes the remote function runtime and issues its shutdown stop
// call.
type Client struct {
	api          API
	functionName string
	endpointURL  string
	httpClient   *http.Client
}

// NewClient builds a Client from cfg's LambdaEndpointURL/LambdaFunctionName.
func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("runtime: load aws config: %w", err)
	}

	api := lambda.NewFromConfig(awsCfg, func(o *lambda.Options) {
		if cfg.LambdaEndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.LambdaEndpointURL)
		}
	})

	return &Client{
		api:          api,
		functionName: cfg.LambdaFunctionName,
		endpointURL:  cfg.LambdaEndpointURL,
		httpClient:   &http.Client{Timeout: 5 * time.Second},
	}, nil
}

// NewClientWithAPI builds a Client against an arbitrary API implementation,
// for tests.
func NewClientWithAPI(api API, functionName, endpointURL string) *Client {
	return &Client{api: api, functionName: functionName, endpointURL: endpointURL, httpClient: &http.Client{Timeout: 5 * time.Second}}
}

// Invoke submits taskDefinition as a synchronous RequestResponse
// invocation and decodes the result, detecting the bootstrap-failure
// sentinel.
func (c *Client) Invoke(ctx context.Context, taskDefinition []byte) (*InvokeResult, error) {
	out, err := c.api.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(c.functionName),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        taskDefinition,
		LogType:        lambdatypes.LogTypeTail,
	})
	if err != nil {
		return nil, fmt.Errorf("runtime: invoke %q: %w", c.functionName, err)
	}

	payload := out.Payload
	if strings.Contains(string(payload), bootstrapFailureMarker) {
		return &InvokeResult{BootstrapFailed: true}, nil
	}
	return &InvokeResult{Payload: payload}, nil
}

// Stop issues the best-effort POST {endpoint}/2018-06-01/stop call the
// bootstrap runtime exposes, at agent shutdown. Errors are not fatal to
// the caller - this is advisory cleanup, not part of the task protocol.
func (c *Client) Stop(ctx context.Context) error {
	url := fmt.Sprintf("%s/2018-06-01/stop", strings.TrimSuffix(c.endpointURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("runtime: build stop request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("runtime: stop request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("runtime: stop request returned status %d", resp.StatusCode)
	}
	return nil
}
