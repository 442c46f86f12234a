package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mahirjain10/object-pipeline/config"
	"github.com/mahirjain10/object-pipeline/internal/aws"
	"github.com/mahirjain10/object-pipeline/internal/chaos"
	"github.com/mahirjain10/object-pipeline/internal/pipeline"
	"github.com/mahirjain10/object-pipeline/internal/queue"
	"github.com/mahirjain10/object-pipeline/internal/telemetry"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

type App struct {
	config         *config.Config
	tracerProvider *sdktrace.TracerProvider
	store          pipeline.BlobStore
	publisher      pipeline.Publisher
	injector       chaos.Injector
	closers        []func() error
}

// NewApp creates and initializes a new App instance with all dependencies
func NewApp(ctx context.Context) (*App, error) {
	// Load environment configuration
	envConfig := config.InitializeEnvs()
	logger.SetLevel(envConfig.LogLevel)

	// Initialize AWS configuration
	awsConfig, err := config.InitializeAws(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AWS config: %w", err)
	}

	tp, err := telemetry.NewTracerProvider(ctx, envConfig.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	app := &App{
		config:         envConfig,
		tracerProvider: tp,
		store:          aws.NewS3Service(aws.NewS3Client(awsConfig), envConfig.ListPageSize),
		injector:       chaos.Never,
	}

	switch envConfig.QueueBackend {
	case config.QueueBackendRabbitMQ:
		publisher := queue.NewRabbitMqPublisher(envConfig.RabbitMqURL)
		app.publisher = publisher
		app.closers = append(app.closers, publisher.Close)
	case config.QueueBackendSQS:
		app.publisher = aws.NewSQSService(aws.NewSQSClient(awsConfig))
	default:
		return nil, fmt.Errorf("unknown queue backend %q", envConfig.QueueBackend)
	}

	if envConfig.ChaosEnabled {
		app.injector = chaos.NewTimeSeededInjector()
	}

	logger.Log.Info().
		Str("service", envConfig.ServiceName).
		Str("queue_backend", envConfig.QueueBackend).
		Bool("chaos", envConfig.ChaosEnabled).
		Msg("Application initialized successfully")
	return app, nil
}

func (a *App) recorder(stage types.Stage) *telemetry.Recorder {
	return telemetry.NewRecorder(a.tracerProvider, a.config.ServiceName, stage)
}

func (a *App) createStage() *pipeline.CreateStage {
	return pipeline.NewCreateStage(a.config, a.store, a.injector, a.recorder(types.StageCreate))
}

func (a *App) updateStage() *pipeline.UpdateStage {
	return pipeline.NewUpdateStage(a.config, a.store, a.publisher, a.injector, a.recorder(types.StageUpdate))
}

func (a *App) checkStage() *pipeline.CheckStage {
	return pipeline.NewCheckStage(a.config, a.store, a.injector, a.recorder(types.StageCheck))
}

func (a *App) deleteStage() *pipeline.DeleteStage {
	return pipeline.NewDeleteStage(a.config, a.store, a.injector, a.recorder(types.StageDelete))
}

// Close flushes pending spans and releases queue connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to shut down tracer provider: %w", err))
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Log.Error().Err(err).Msg("command failed")
		}
		os.Exit(1)
	}
}
