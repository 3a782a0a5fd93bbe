package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/streamhaus/csvrowstore/internal/config/dto"
)

func validTestConfig() *dto.ApplicationConfig {
	return &dto.ApplicationConfig{
		Application: dto.ApplicationInfo{Name: "test-app"},
		Kafka: dto.KafkaConfig{
			BootstrapServers: []string{"localhost:9092"},
			Consumer: dto.ConsumerConfig{
				GroupID: "test-group",
				Topics:  []string{"rows"},
			},
		},
		Schema: dto.SchemaConfig{
			Fields: []dto.FieldConfig{
				{Name: "id", Type: "BIGINT"},
				{Name: "name", Type: "STRING"},
			},
		},
		CSV: dto.CSVConfig{Format: "csv", QuoteCharacter: `"`},
		Sink: dto.SinkConfig{
			Backend: "file",
			File:    dto.FileConfig{BasePath: "/tmp/rows"},
		},
		Observability: dto.ObservabilityConfig{
			Metrics: dto.MetricsConfig{Port: 9090},
			Health:  dto.HealthConfig{Port: 8080},
		},
	}
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader()
	if loader == nil {
		t.Fatal("expected non-nil loader")
	}
	if loader.v == nil {
		t.Fatal("expected non-nil viper instance")
	}
}

func TestLoader_LoadWithValidConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "test-config.yaml")

	configContent := `
application:
  name: test-app

kafka:
  bootstrap_servers:
    - localhost:9092
  consumer:
    group_id: test-group
    topics:
      - rows

schema:
  fields:
    - name: id
      type: BIGINT
    - name: price
      type: DECIMAL(10,2)
    - name: tags
      type: ARRAY<STRING>

csv:
  format: tsv
  include_header: true

sink:
  backend: file
  file:
    base_path: /tmp/rows
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config file: %v", err)
	}

	loader := NewLoader()
	config, err := loader.Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if config.Application.Name != "test-app" {
		t.Errorf("Application.Name = %s, want test-app", config.Application.Name)
	}
	if config.Kafka.Consumer.GroupID != "test-group" {
		t.Errorf("Kafka.Consumer.GroupID = %s", config.Kafka.Consumer.GroupID)
	}
	if config.CSV.Format != "tsv" || !config.CSV.IncludeHeader {
		t.Errorf("CSV config = %+v", config.CSV)
	}

	// Defaults fill unspecified sections.
	if config.Kafka.DLQ.TopicSuffix != "-dlq" {
		t.Errorf("DLQ.TopicSuffix = %q, want -dlq default", config.Kafka.DLQ.TopicSuffix)
	}
	if config.Rotation.MaxBatchAgeSeconds != 300 {
		t.Errorf("Rotation.MaxBatchAgeSeconds = %d, want 300 default", config.Rotation.MaxBatchAgeSeconds)
	}

	// Schema fields parse into a usable row type.
	rt, err := config.Schema.RowType()
	if err != nil {
		t.Fatalf("Schema.RowType() error = %v", err)
	}
	if rt.Len() != 3 || rt.Field(1).Type.String() != "DECIMAL(10,2)" {
		t.Errorf("row type = %s", rt)
	}
}

func TestLoader_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*dto.ApplicationConfig)
		wantErr string
	}{
		{"valid", func(c *dto.ApplicationConfig) {}, ""},
		{
			"missing bootstrap servers",
			func(c *dto.ApplicationConfig) { c.Kafka.BootstrapServers = nil },
			"bootstrap_servers",
		},
		{
			"missing topics",
			func(c *dto.ApplicationConfig) { c.Kafka.Consumer.Topics = nil },
			"topics",
		},
		{
			"missing group id",
			func(c *dto.ApplicationConfig) { c.Kafka.Consumer.GroupID = "" },
			"group_id",
		},
		{
			"no schema fields",
			func(c *dto.ApplicationConfig) { c.Schema.Fields = nil },
			"schema.fields",
		},
		{
			"bad field type",
			func(c *dto.ApplicationConfig) { c.Schema.Fields[0].Type = "WAT" },
			"invalid schema",
		},
		{
			"unsupported format",
			func(c *dto.ApplicationConfig) { c.CSV.Format = "psv" },
			"unsupported csv format",
		},
		{
			"multi-rune delimiter",
			func(c *dto.ApplicationConfig) { c.CSV.FieldDelimiter = "||" },
			"field_delimiter",
		},
		{
			"s3 without bucket",
			func(c *dto.ApplicationConfig) { c.Sink.Backend = "s3" },
			"sink.s3.bucket",
		},
		{
			"gcs without bucket",
			func(c *dto.ApplicationConfig) { c.Sink.Backend = "gcs" },
			"sink.gcs.bucket",
		},
		{
			"unknown backend",
			func(c *dto.ApplicationConfig) { c.Sink.Backend = "ftp" },
			"unsupported sink backend",
		},
		{
			"invalid metrics port",
			func(c *dto.ApplicationConfig) { c.Observability.Metrics.Port = 0 },
			"metrics port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validTestConfig()
			tt.mutate(config)

			err := NewLoader().Validate(config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoader_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SASL_PASSWORD", "sekret")

	configFile := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
application:
  name: test-app
kafka:
  bootstrap_servers: [localhost:9092]
  sasl_password: ${TEST_SASL_PASSWORD}
  consumer:
    group_id: g
    topics: [rows]
schema:
  fields:
    - name: id
      type: BIGINT
sink:
  backend: file
  file:
    base_path: /tmp/rows
`
	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := NewLoader().Load(configFile)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if config.Kafka.SASLPassword != "sekret" {
		t.Errorf("SASLPassword = %q, want expanded env value", config.Kafka.SASLPassword)
	}
}
