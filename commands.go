package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mahirjain10/object-pipeline/internal/httpapi"
	"github.com/mahirjain10/object-pipeline/internal/lambda"
	"github.com/mahirjain10/object-pipeline/internal/queue"
	"github.com/mahirjain10/object-pipeline/internal/types"
	"github.com/mahirjain10/object-pipeline/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "object-pipeline",
		Short:         "Four stage object pipeline over S3 and a message queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newLambdaCommand())
	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newConsumeCommand())
	rootCmd.AddCommand(newPurgeCommand())
	return rootCmd
}

func closeApp(app *App) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Error closing application")
	}
}

func lambdaHandler(app *App, stage types.Stage) any {
	switch stage {
	case types.StageCreate:
		return lambda.CreateHandler(app.createStage())
	case types.StageUpdate:
		return lambda.UpdateHandler(app.updateStage())
	case types.StageCheck:
		return lambda.CheckHandler(app.checkStage())
	default:
		return lambda.DeleteHandler(app.deleteStage())
	}
}

func newLambdaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda [create|update|check|delete]",
		Short: "Serve one stage on the AWS Lambda runtime",
		Long:  "Serve one stage on the AWS Lambda runtime. Without an argument the stage is read from PIPELINE_STAGE.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}

			name := app.config.Stage
			if len(args) == 1 {
				name = args[0]
			}
			stage, err := types.ParseStage(name)
			if err != nil {
				closeApp(app)
				return err
			}

			logger.Log.Info().Str("stage", stage.String()).Msg("starting lambda handler")
			lambda.Start(lambdaHandler(app, stage), func() { closeApp(app) })
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve Create and Delete over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			srv := &http.Server{
				Addr: ":" + app.config.HTTPPort,
				Handler: httpapi.NewRouter(httpapi.Stages{
					Create: app.createStage(),
					Delete: app.deleteStage(),
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Log.Info().Str("port", app.config.HTTPPort).Msg("Starting server")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			logger.Log.Info().Msg("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			logger.Log.Info().Msg("Server exiting")
			return nil
		},
	}
}

func newConsumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Run Check for every message on the RabbitMQ queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := NewApp(ctx)
			if err != nil {
				return err
			}
			defer closeApp(app)

			consumer := queue.NewConsumer(app.config.RabbitMqURL, app.config.RabbitMqQueue, app.config.ConsumerWorkers, app.checkStage().Handle)
			return consumer.Start(ctx)
		},
	}
}

func newPurgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Run Delete once against the input bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := NewApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(app)

			outcome := app.deleteStage().Handle(cmd.Context())
			if !outcome.Success {
				return fmt.Errorf("purge of %s failed: %w", outcome.Bucket, outcome.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", outcome.Bucket)
			return nil
		},
	}
}
