package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/streamhaus/csvrowstore/internal/config/dto"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Expand ${VAR} references in config values
	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	// Application defaults
	l.v.SetDefault("application.name", "csvrowstore")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Kafka defaults
	l.v.SetDefault("kafka.security_protocol", "SASL_SSL")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")

	// CSV defaults
	l.v.SetDefault("csv.format", "csv")
	l.v.SetDefault("csv.field_delimiter", ",")
	l.v.SetDefault("csv.array_element_delimiter", ";")
	l.v.SetDefault("csv.disable_quote", false)
	l.v.SetDefault("csv.quote_character", `"`)
	l.v.SetDefault("csv.null_literal", "")
	l.v.SetDefault("csv.scientific_notation", false)
	l.v.SetDefault("csv.include_header", false)

	// Sink defaults
	l.v.SetDefault("sink.backend", "file")
	l.v.SetDefault("sink.base_path", "csv-rows")
	l.v.SetDefault("sink.s3.use_path_style", false)
	l.v.SetDefault("sink.s3.sse_enabled", true)

	// Rotation defaults
	l.v.SetDefault("rotation.max_batch_size_mb", 64)
	l.v.SetDefault("rotation.max_records_per_batch", 100000)
	l.v.SetDefault("rotation.max_batch_age_seconds", 300)

	// Processing defaults
	l.v.SetDefault("processing.buffer_size_mb", 128)
	l.v.SetDefault("processing.flush_interval_seconds", 60)
	l.v.SetDefault("processing.max_buffered_records", 0)

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	// Kafka validation
	if len(config.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(config.Kafka.Consumer.Topics) == 0 {
		return errors.New("kafka.consumer.topics is required")
	}
	if config.Kafka.Consumer.GroupID == "" {
		return errors.New("kafka.consumer.group_id is required")
	}

	// Schema validation: every field must parse into a logical type
	if len(config.Schema.Fields) == 0 {
		return errors.New("schema.fields is required")
	}
	if _, err := config.Schema.RowType(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	// Format validation
	if config.CSV.Format != "csv" && config.CSV.Format != "tsv" {
		return fmt.Errorf("unsupported csv format: %s", config.CSV.Format)
	}
	if config.CSV.FieldDelimiter != "" && len([]rune(config.CSV.FieldDelimiter)) != 1 {
		return fmt.Errorf("csv.field_delimiter must be a single character: %q", config.CSV.FieldDelimiter)
	}
	if len([]rune(config.CSV.QuoteCharacter)) > 1 {
		return fmt.Errorf("csv.quote_character must be a single character: %q", config.CSV.QuoteCharacter)
	}
	if len([]rune(config.CSV.EscapeCharacter)) > 1 {
		return fmt.Errorf("csv.escape_character must be a single character: %q", config.CSV.EscapeCharacter)
	}

	// Sink validation
	switch config.Sink.Backend {
	case "s3":
		if config.Sink.S3.Bucket == "" {
			return errors.New("sink.s3.bucket is required for S3 backend")
		}
		if config.Sink.S3.Region == "" {
			return errors.New("sink.s3.region is required for S3 backend")
		}
	case "azure":
		if config.Sink.Azure.AccountName == "" {
			return errors.New("sink.azure.account_name is required for Azure backend")
		}
		if config.Sink.Azure.Container == "" {
			return errors.New("sink.azure.container is required for Azure backend")
		}
	case "gcs":
		if config.Sink.GCS.Bucket == "" {
			return errors.New("sink.gcs.bucket is required for GCS backend")
		}
	case "file":
		if config.Sink.File.BasePath == "" {
			return errors.New("sink.file.base_path is required for file backend")
		}
	default:
		return fmt.Errorf("unsupported sink backend: %s", config.Sink.Backend)
	}

	// Port validation
	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}
