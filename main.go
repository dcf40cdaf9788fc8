package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/unigen/internal/capability"
	"github.com/dmorgan81/unigen/internal/config"
	"github.com/dmorgan81/unigen/internal/handle"
	"github.com/dmorgan81/unigen/internal/image"
	"github.com/dmorgan81/unigen/internal/inject"
	"github.com/dmorgan81/unigen/internal/log"
	"github.com/samber/do"
)

const shutdownTimeout = 10 * time.Second

type smokeReport struct {
	Features       capability.Features `json:"features"`
	TextBackend    bool                `json:"text_backend"`
	TextModel      string              `json:"text_model"`
	ImageModel     string              `json:"image_model"`
	Device         string              `json:"device"`
	DType          string              `json:"dtype"`
	StorageEnabled bool                `json:"storage_enabled"`
}

func main() {
	settings, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, settings.LogLevel)
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx, settings)

	caps := do.MustInvoke[capability.Set](injector)
	logger.Info("local image generation", "available", caps.Image, "model", settings.ImageModel)

	if len(os.Args) > 1 && os.Args[1] == "smoke" {
		device := image.SelectDevice(settings.ImageDevice)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(smokeReport{
			Features:       caps.Features(),
			TextBackend:    caps.TextBackend,
			TextModel:      settings.TextModel,
			ImageModel:     settings.ImageModel,
			Device:         device.Name,
			DType:          device.DType,
			StorageEnabled: settings.StorageConfigured(),
		})
		return
	}

	routes := do.MustInvoke[*handle.API](injector).Routes(ctx)

	if os.Getenv("AWS_LAMBDA_RUNTIME_API") != "" {
		adapter := &handle.LambdaAdapter{Handler: routes}
		lambda.StartWithOptions(adapter.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", settings.Port),
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	_ = injector.Shutdown()
}
