package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/streamhaus/csvrowstore/internal/buffer"
	"github.com/streamhaus/csvrowstore/internal/config"
	"github.com/streamhaus/csvrowstore/internal/config/dto"
	"github.com/streamhaus/csvrowstore/internal/csv"
	"github.com/streamhaus/csvrowstore/internal/ingest"
	"github.com/streamhaus/csvrowstore/internal/kafka"
	"github.com/streamhaus/csvrowstore/internal/observability"
	"github.com/streamhaus/csvrowstore/internal/processor"
	"github.com/streamhaus/csvrowstore/internal/server"
	"github.com/streamhaus/csvrowstore/internal/sink"
	"github.com/streamhaus/csvrowstore/internal/validator"
	"github.com/streamhaus/csvrowstore/pkg/rowtype"
	"github.com/streamhaus/csvrowstore/pkg/serializer"
	pkgsink "github.com/streamhaus/csvrowstore/pkg/sink"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Load configuration
	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	})
	logger.Info("starting csv row store",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Track cleanup functions
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, fn)
		logger.Debug("registered cleanup", "component", name)
	}
	runCleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			if err := cleanupFuncs[i](); err != nil {
				logger.Error("cleanup failed", "error", err)
			}
		}
	}
	defer runCleanup()

	// Build the row type and the stages that depend on it
	rowType, err := cfg.Schema.RowType()
	if err != nil {
		return fmt.Errorf("failed to build row type: %w", err)
	}

	decoder, err := ingest.NewDecoder(rowType)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	rowValidator, err := validator.NewRowValidator(rowType)
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}

	rowSerializer, err := buildSerializer(cfg, rowType)
	if err != nil {
		return fmt.Errorf("failed to create serializer: %w", err)
	}

	// Initialize partition router
	protocol := getSinkProtocol(cfg.Sink.Backend)
	bucket := getSinkBucket(cfg)
	router := sink.NewRouter(protocol, bucket, cfg.Sink.BasePath)

	// Initialize rotation policy
	policy := sink.NewPolicy(sink.PolicyConfig{
		MaxBatchSizeMB:     cfg.Rotation.MaxBatchSizeMB,
		MaxRecordsPerBatch: cfg.Rotation.MaxRecordsPerBatch,
		MaxBatchAgeSeconds: cfg.Rotation.MaxBatchAgeSeconds,
	})

	// Initialize infrastructure
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		AWSRegion:           cfg.Kafka.AWSRegion,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}
	kafkaConsumer, err := kafka.NewSaramaConsumer(consumerConfig, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", kafkaConsumer.Close)

	dlqConfig := kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
	}
	dlqPublisher, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, consumerConfig, dlqConfig, logger, cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	uploader, err := buildUploader(cfg, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("sink-uploader", uploader.Close)

	// Initialize buffer manager
	bufferSizeBytes := int64(cfg.Processing.BufferSizeMB) * 1024 * 1024
	bufferMgr := buffer.NewManager(bufferSizeBytes, cfg.Processing.MaxBufferedRecords)

	pipeline, err := processor.New(context.Background(), processor.Options{
		Decoder:    decoder,
		Validator:  rowValidator,
		Serializer: rowSerializer,
		Buffers:    bufferMgr,
		Policy:     policy,
		Router:     router,
		Uploader:   uploader,
		DLQ:        dlqPublisher,
		Config: processor.Config{
			IncludeHeader: cfg.CSV.IncludeHeader,
			FlushInterval: time.Duration(cfg.Processing.FlushIntervalSeconds) * time.Second,
		},
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create processor: %w", err)
	}

	// Create simple health checker
	healthChecker := &simpleHealthChecker{isHealthy: true}

	// Start HTTP server
	httpServer := server.NewServer(
		cfg.Observability.Health.Port,
		cfg.Observability.Metrics.Port,
		healthChecker,
		registry,
		logger,
	)

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	logger.Info("application started successfully")

	// Subscribe to topics
	if err := kafkaConsumer.Subscribe(context.Background(), cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start consuming
	rowChan, errorChan, err := kafkaConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	// Start processing loop in background
	runErrChan := make(chan error, 1)
	go func() {
		runErrChan <- pipeline.Run(ctx, rowChan, errorChan)
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("received termination signal")
	case err := <-runErrChan:
		if err != nil {
			logger.Error("processing error", "error", err)
			return err
		}
	}

	// Graceful shutdown: cancel the loop and wait for its final flush
	logger.Info("initiating graceful shutdown")
	cancel()

	gracePeriod := cfg.Shutdown.GracePeriodSeconds * time.Second
	select {
	case err := <-runErrChan:
		if err != nil {
			logger.Error("final flush failed", "error", err)
		}
	case <-time.After(gracePeriod):
		logger.Warn("grace period expired before processing loop stopped")
	}

	logger.Info("application stopped successfully")
	return nil
}

// buildSerializer assembles the CSV schema from the configured format
// options and creates an unopened serializer through the factory.
func buildSerializer(cfg *dto.ApplicationConfig, rowType *rowtype.RowType) (serializer.Serializer, error) {
	format := serializer.Format(cfg.CSV.Format)

	builder, err := csv.NewSchemaBuilder(rowType)
	if err != nil {
		return nil, err
	}

	delimiter := csv.DefaultFieldDelimiter(format)
	if cfg.CSV.FieldDelimiter != "" {
		delimiter = []rune(cfg.CSV.FieldDelimiter)[0]
	}
	builder.SetFieldDelimiter(delimiter)

	if cfg.CSV.ArrayElementDelimiter != "" {
		builder.SetArrayElementDelimiter(cfg.CSV.ArrayElementDelimiter)
	}
	if cfg.CSV.DisableQuote {
		builder.DisableQuoteCharacter()
	} else if cfg.CSV.QuoteCharacter != "" {
		builder.SetQuoteCharacter([]rune(cfg.CSV.QuoteCharacter)[0])
	}
	if cfg.CSV.EscapeCharacter != "" {
		builder.SetEscapeCharacter([]rune(cfg.CSV.EscapeCharacter)[0])
	}
	builder.SetNullLiteral(cfg.CSV.NullLiteral)
	builder.SetScientificNotation(cfg.CSV.ScientificNotation)

	schema, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return csv.NewFactory(format).CreateSerializer(schema)
}

func getSinkProtocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

func getSinkBucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Sink.Backend {
	case "s3":
		return cfg.Sink.S3.Bucket
	case "azure":
		return cfg.Sink.Azure.Container
	case "gcs":
		return cfg.Sink.GCS.Bucket
	default:
		// File backend has no bucket; the uploader prepends its base path.
		return ""
	}
}

// contentTypeFor returns the MIME type sent with uploaded batches.
func contentTypeFor(format serializer.Format) string {
	if format == serializer.FormatTSV {
		return "text/tab-separated-values"
	}
	return "text/csv"
}

// buildUploader creates the sink backend named by the configuration.
func buildUploader(cfg *dto.ApplicationConfig, logger *slog.Logger, metrics *observability.Metrics) (pkgsink.Uploader, error) {
	format := serializer.Format(cfg.CSV.Format)
	extension := csv.FileExtension(format)
	contentType := contentTypeFor(format)

	switch cfg.Sink.Backend {
	case "file":
		return sink.NewFileUploader(sink.FileConfig{
			BasePath: cfg.Sink.File.BasePath,
		}, extension, logger, metrics)
	case "s3":
		return sink.NewS3Uploader(sink.S3Config{
			Bucket:       cfg.Sink.S3.Bucket,
			Region:       cfg.Sink.S3.Region,
			Endpoint:     cfg.Sink.S3.Endpoint,
			UsePathStyle: cfg.Sink.S3.UsePathStyle,
			SSEEnabled:   cfg.Sink.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Sink.S3.SSEKMSKeyID,
		}, extension, contentType, logger, metrics)
	case "azure":
		return sink.NewAzureUploader(sink.AzureConfig{
			AccountName:   cfg.Sink.Azure.AccountName,
			AccountKey:    os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
			ContainerName: cfg.Sink.Azure.Container,
		}, extension, logger, metrics)
	case "gcs":
		return sink.NewGCSUploader(sink.GCSConfig{
			Bucket:               cfg.Sink.GCS.Bucket,
			ProjectID:            cfg.Sink.GCS.ProjectID,
			CredentialsFile:      cfg.Sink.GCS.CredentialsFile,
			CredentialsJSON:      os.Getenv("GCP_CREDENTIALS_JSON"),
			UseDefaultCredential: cfg.Sink.GCS.UseDefaultCredential,
		}, extension, contentType, logger, metrics)
	default:
		return nil, fmt.Errorf("unsupported sink backend: %s (supported: file, s3, azure, gcs)", cfg.Sink.Backend)
	}
}

// simpleHealthChecker implements server.HealthChecker
type simpleHealthChecker struct {
	isHealthy bool
}

func (h *simpleHealthChecker) Liveness() bool {
	return h.isHealthy
}

func (h *simpleHealthChecker) Readiness(ctx context.Context) bool {
	return h.isHealthy
}

func (h *simpleHealthChecker) GetStatus() map[string]string {
	return map[string]string{
		"status": "healthy",
	}
}
