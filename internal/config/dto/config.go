package dto

import (
	"fmt"
	"time"

	"github.com/streamhaus/csvrowstore/pkg/rowtype"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	CSV           CSVConfig           `mapstructure:"csv"`
	Sink          SinkConfig          `mapstructure:"sink"`
	Rotation      RotationConfig      `mapstructure:"rotation"`
	Processing    ProcessingConfig    `mapstructure:"processing"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	AWSRegion        string         `mapstructure:"aws_region"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
}

// SchemaConfig describes the logical row type of incoming payloads
type SchemaConfig struct {
	Fields []FieldConfig `mapstructure:"fields"`
}

// FieldConfig is one named, typed column of the row type
type FieldConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"`
}

// RowType builds the runtime row type from the configured fields.
// Type strings use the canonical form, e.g. "BIGINT", "DECIMAL(10,2)",
// "ARRAY<STRING>", "ROW<x INT, y INT>".
func (c *SchemaConfig) RowType() (*rowtype.RowType, error) {
	fields := make([]rowtype.Field, len(c.Fields))
	for i, f := range c.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema field %d has no name", i)
		}
		t, err := rowtype.ParseType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("schema field %q: %w", f.Name, err)
		}
		fields[i] = rowtype.Field{Name: f.Name, Type: t}
	}
	return rowtype.New(fields...), nil
}

// CSVConfig contains CSV format options
type CSVConfig struct {
	Format                string `mapstructure:"format"`
	FieldDelimiter        string `mapstructure:"field_delimiter"`
	ArrayElementDelimiter string `mapstructure:"array_element_delimiter"`
	DisableQuote          bool   `mapstructure:"disable_quote"`
	QuoteCharacter        string `mapstructure:"quote_character"`
	EscapeCharacter       string `mapstructure:"escape_character"`
	NullLiteral           string `mapstructure:"null_literal"`
	ScientificNotation    bool   `mapstructure:"scientific_notation"`
	IncludeHeader         bool   `mapstructure:"include_header"`
}

// SinkConfig contains sink backend configuration
type SinkConfig struct {
	Backend  string      `mapstructure:"backend"`
	BasePath string      `mapstructure:"base_path"`
	S3       S3Config    `mapstructure:"s3"`
	Azure    AzureConfig `mapstructure:"azure"`
	GCS      GCSConfig   `mapstructure:"gcs"`
	File     FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	Container   string `mapstructure:"container"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RotationConfig contains batch rotation settings
type RotationConfig struct {
	MaxBatchSizeMB     int64 `mapstructure:"max_batch_size_mb"`
	MaxRecordsPerBatch int   `mapstructure:"max_records_per_batch"`
	MaxBatchAgeSeconds int   `mapstructure:"max_batch_age_seconds"`
}

// ProcessingConfig contains processing settings
type ProcessingConfig struct {
	BufferSizeMB         int `mapstructure:"buffer_size_mb"`
	FlushIntervalSeconds int `mapstructure:"flush_interval_seconds"`
	MaxBufferedRecords   int `mapstructure:"max_buffered_records"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  time.Duration `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds time.Duration `mapstructure:"force_timeout_seconds"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if c.Kafka.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	if len(c.Schema.Fields) == 0 {
		return fmt.Errorf("schema fields are required")
	}
	if c.Sink.Backend == "" {
		return fmt.Errorf("sink backend is required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
