package runtime

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLambdaAPI struct {
	out *lambda.InvokeOutput
	err error
}

func (f *fakeLambdaAPI) Invoke(ctx context.Context, params *lambda.InvokeInput, optFns ...func(*lambda.Options)) (*lambda.InvokeOutput, error) {
	return f.out, f.err
}

func TestClient_Invoke_Success(t *testing.T) {
	fake := &fakeLambdaAPI{out: &lambda.InvokeOutput{Payload: []byte(`{"result":"ok"}`)}}
	c := NewClientWithAPI(fake, "compute", "http://localhost:9001")

	res, err := c.Invoke(context.Background(), []byte(`{"task_id":"T1"}`))
	require.NoError(t, err)
	assert.False(t, res.BootstrapFailed)
	assert.Equal(t, `{"result":"ok"}`, string(res.Payload))
}

func TestClient_Invoke_BootstrapFailure(t *testing.T) {
	fake := &fakeLambdaAPI{out: &lambda.InvokeOutput{Payload: []byte("BOOTSTRAP ERROR: could not start")}}
	c := NewClientWithAPI(fake, "compute", "http://localhost:9001")

	res, err := c.Invoke(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.BootstrapFailed)
	assert.Nil(t, res.Payload)
}

func TestClient_Invoke_Error(t *testing.T) {
	fake := &fakeLambdaAPI{err: errors.New("boom")}
	c := NewClientWithAPI(fake, "compute", "http://localhost:9001")

	_, err := c.Invoke(context.Background(), []byte(`{}`))
	assert.Error(t, err)
}

func TestClient_Stop_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2018-06-01/stop", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithAPI(&fakeLambdaAPI{}, "compute", srv.URL)
	err := c.Stop(context.Background())
	require.NoError(t, err)
}

func TestClient_Stop_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClientWithAPI(&fakeLambdaAPI{}, "compute", srv.URL)
	err := c.Stop(context.Background())
	assert.Error(t, err)
}
