// Package config loads the agent's JSON configuration document, following
// the same viper-defaults-then-override shape the rest of the dependency
// pack uses, adapted to the document this agent actually reads: a single
// JSON file named by AGENT_CONFIG_FILE.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	configFileEnvVar  = "AGENT_CONFIG_FILE"
	defaultConfigPath = "/etc/agent/Agent_config.tfvars.json"
)

// Config is the agent's full runtime configuration, as loaded from the
// AGENT_CONFIG_FILE document plus AGENT_-prefixed environment overrides.
type Config struct {
	EmptyTaskQueueBackoff       time.Duration
	WorkProcStatusPullInterval  time.Duration
	TaskTTLExpirationOffset     time.Duration
	TaskTTLRefreshInterval      time.Duration
	TaskInputViaExternalStorage bool
	AgentSQSVisibilityTimeout   time.Duration
	UseCongestionControl        bool
	EnableXRay                  bool

	Region             string
	SQSEndpoint        string
	SQSQueue           string
	DDBStatusTable     string
	S3Bucket           string
	RedisURL           string
	GridStorageService string

	MetricsEnabled          bool
	MetricsConnectionString string
	MetricsGrafanaPrivateIP string

	PodID               string
	LambdaEndpointURL   string
	LambdaFunctionName  string
	ExecutionMode       string // "local" or "remote"
	StartupJitterMaxSec int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("empty_task_queue_backoff_timeout_sec", 5)
	v.SetDefault("work_proc_status_pull_interval_sec", 5)
	v.SetDefault("task_ttl_expiration_offset_sec", 60)
	v.SetDefault("task_ttl_refresh_interval_sec", 20)
	v.SetDefault("task_input_passed_via_external_storage", 0)
	v.SetDefault("agent_sqs_visibility_timeout_sec", 30)
	v.SetDefault("agent_use_congestion_control", false)
	v.SetDefault("enable_xray", "0")

	v.SetDefault("region", "us-east-1")
	v.SetDefault("sqs_endpoint", "")
	v.SetDefault("sqs_queue", "")
	v.SetDefault("ddb_status_table", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("redis_url", "")
	v.SetDefault("grid_storage_service", "s3")

	v.SetDefault("metrics_are_enabled", true)
	v.SetDefault("metrics_post_agent_connection_string", "")
	v.SetDefault("metrics_grafana_private_ip", "")

	v.SetDefault("execution_mode", "local")
	v.SetDefault("startup_jitter_max_sec", 15)
}

// Load reads the JSON document named by AGENT_CONFIG_FILE (or the default
// path if unset), applies defaults for any key left unset, and honors
// AGENT_-prefixed environment variable overrides.
func Load() (*Config, error) {
	path := os.Getenv(configFileEnvVar)
	if path == "" {
		path = defaultConfigPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	v.SetEnvPrefix("AGENT")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, err
		}
		// No file on disk at all: fall back to defaults + env. Lets tests
		// and local runs skip shipping a config file.
	}

	cfg := &Config{
		EmptyTaskQueueBackoff:       time.Duration(v.GetInt("empty_task_queue_backoff_timeout_sec")) * time.Second,
		WorkProcStatusPullInterval:  time.Duration(v.GetInt("work_proc_status_pull_interval_sec")) * time.Second,
		TaskTTLExpirationOffset:     time.Duration(v.GetInt("task_ttl_expiration_offset_sec")) * time.Second,
		TaskTTLRefreshInterval:      time.Duration(v.GetInt("task_ttl_refresh_interval_sec")) * time.Second,
		TaskInputViaExternalStorage: v.GetInt("task_input_passed_via_external_storage") == 1,
		AgentSQSVisibilityTimeout:   time.Duration(v.GetInt("agent_sqs_visibility_timeout_sec")) * time.Second,
		UseCongestionControl:        v.GetBool("agent_use_congestion_control"),
		EnableXRay:                  v.GetString("enable_xray") == "1",

		Region:             v.GetString("region"),
		SQSEndpoint:        v.GetString("sqs_endpoint"),
		SQSQueue:           v.GetString("sqs_queue"),
		DDBStatusTable:     v.GetString("ddb_status_table"),
		S3Bucket:           v.GetString("s3_bucket"),
		RedisURL:           v.GetString("redis_url"),
		GridStorageService: v.GetString("grid_storage_service"),

		MetricsEnabled:          v.GetBool("metrics_are_enabled"),
		MetricsConnectionString: v.GetString("metrics_post_agent_connection_string"),
		MetricsGrafanaPrivateIP: v.GetString("metrics_grafana_private_ip"),

		PodID:               podID(),
		LambdaEndpointURL:   os.Getenv("LAMBDA_ENDPOINT_URL"),
		LambdaFunctionName:  os.Getenv("LAMBDA_FONCTION_NAME"),
		ExecutionMode:       v.GetString("execution_mode"),
		StartupJitterMaxSec: v.GetInt("startup_jitter_max_sec"),
	}

	if cfg.TaskTTLRefreshInterval >= cfg.TaskTTLExpirationOffset {
		return nil, fmt.Errorf("config: task_ttl_refresh_interval_sec (%s) must be less than task_ttl_expiration_offset_sec (%s)",
			cfg.TaskTTLRefreshInterval, cfg.TaskTTLExpirationOffset)
	}

	return cfg, nil
}

func podID() string {
	if id := os.Getenv("MY_POD_NAME"); id != "" {
		return id
	}
	return "1234"
}
