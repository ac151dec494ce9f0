package artifact

import (
	"testing"

	"github.com/aws-samples/htc-grid-agent/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKey(t *testing.T) {
	assert.Equal(t, "artifact:stdout:T1", artifactKey("T1"))
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := newRedisStore(&config.Config{RedisURL: "not-a-url://:::"})
	assert.Error(t, err)
}

func TestNewRedisStore_ValidURL(t *testing.T) {
	s, err := newRedisStore(&config.Config{RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestNewStore_SelectsBackend(t *testing.T) {
	_, err := NewStore(nil, &config.Config{GridStorageService: "redis", RedisURL: "redis://localhost:6379/0"})
	require.NoError(t, err)

	_, err = NewStore(nil, &config.Config{GridStorageService: "unknown"})
	assert.Error(t, err)
}
