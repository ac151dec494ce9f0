package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3API struct {
	putErr       error
	lastPutInput *s3.PutObjectInput

	getBody string
	getErr  error
}

func (f *fakeS3API) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.lastPutInput = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3API) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.getBody))}, nil
}

func TestS3Store_Put(t *testing.T) {
	fake := &fakeS3API{}
	s := &s3Store{api: fake, bucket: "stdout-bucket"}

	err := s.Put(context.Background(), "T1", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "T1", *fake.lastPutInput.Key)
	assert.Equal(t, "stdout-bucket", *fake.lastPutInput.Bucket)
}

func TestS3Store_Put_Error(t *testing.T) {
	fake := &fakeS3API{putErr: errors.New("boom")}
	s := &s3Store{api: fake, bucket: "stdout-bucket"}

	err := s.Put(context.Background(), "T1", []byte("hello"))
	assert.Error(t, err)
}

func TestS3Store_Get(t *testing.T) {
	fake := &fakeS3API{getBody: "hello-world"}
	s := &s3Store{api: fake, bucket: "stdout-bucket"}

	data, err := s.Get(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, "hello-world", string(data))
}

func TestS3Store_PutFile(t *testing.T) {
	fake := &fakeS3API{}
	s := &s3Store{api: fake, bucket: "stdout-bucket"}

	dir := t.TempDir()
	path := dir + "/stdout-T1.log"
	require.NoError(t, os.WriteFile(path, []byte("stdout contents"), 0o644))

	err := s.PutFile(context.Background(), "T1", path)
	require.NoError(t, err)
	assert.Equal(t, "T1", *fake.lastPutInput.Key)
}
