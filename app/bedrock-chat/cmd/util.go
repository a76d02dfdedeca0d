package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/cchalm/bedrock-chat/internal/apperr"
	"github.com/cchalm/bedrock-chat/internal/awsauth"
	"github.com/cchalm/bedrock-chat/internal/chat"
	"github.com/cchalm/bedrock-chat/internal/config"
	"github.com/cchalm/bedrock-chat/internal/model"
	"github.com/cchalm/bedrock-chat/internal/telemetry"
	"github.com/cchalm/bedrock-chat/internal/transport"
)

func setupContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	// Setup graceful shutdown
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		log.Println("Interrupt signal detected, shutting down gracefully...")
		cancel()
		<-interrupt
		log.Fatal("Forcing shutdown")
	}()

	return ctx
}

// dependencies are the collaborators runChat needs beyond configuration
type dependencies struct {
	resolver     *awsauth.Resolver
	modelOptions []model.Option
	in           io.Reader
	out          io.Writer
}

// runChat resolves credentials, initializes the model and runs the chat loop. Setup failures are printed with their
// remediation hint before being returned.
func runChat(ctx context.Context, cfg config.Config, deps dependencies) error {
	telemetryProvider, err := createTelemetryProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryProvider.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shut down telemetry: %v", err)
		}
	}()

	sessionID := telemetry.NewSessionID()
	log.Printf("Starting session %s with profile '%s' in %s", sessionID, cfg.Profile, cfg.Region)

	sess, err := deps.resolver.Resolve(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		printSetupError(deps.out, err)
		return err
	}

	modelOptions := []model.Option{
		model.WithHTTPClient(transport.NewClient(log.Default())),
		model.WithTracer(telemetryProvider.Tracer()),
	}
	if cfg.VerifyAccess {
		modelOptions = append(modelOptions, model.WithAccessCheck())
	}
	modelOptions = append(modelOptions, deps.modelOptions...)

	chatModel, err := model.New(ctx, sess, cfg.ModelSettings(), modelOptions...)
	if err != nil {
		printSetupError(deps.out, err)
		return err
	}

	loop := chat.New(chatModel, deps.in, deps.out, chat.Options{
		ReplayHistory: !cfg.NoContext,
		TurnTimeout:   cfg.TurnTimeout,
		SessionID:     sessionID,
		Tracer:        telemetryProvider.Tracer(),
	})
	return loop.Run(ctx)
}

func createTelemetryProvider(ctx context.Context, cfg config.Config) (*telemetry.Provider, error) {
	telemetryConfig := telemetry.TelemetryConfig{
		Enabled:        cfg.TelemetryEnabled,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		ServiceVersion: versionInfo.Version,
	}
	return telemetry.NewProvider(ctx, telemetryConfig)
}

func printSetupError(w io.Writer, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		fmt.Fprintf(w, "Error: %s\nDetails: %v\n", ae.Hint, ae.Err)
		return
	}
	fmt.Fprintf(w, "Unexpected error: %v\n", err)
}
