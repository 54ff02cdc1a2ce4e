package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/caseflow/caseflow"
	"github.com/caseflow/caseflow/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config, err := caseflow.LoadConfig(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	options := []caseflow.Option{caseflow.WithConfig(config)}
	if config.TraceFile != "" {
		traceFile := config.TraceFile
		if traceFile == "-" {
			traceFile = ""
		}
		options = append(options, caseflow.WithTracing("caseflow", "1.0.0", traceFile))
	}

	svc, err := caseflow.New(options...)
	if err != nil {
		log.Fatalf("failed to initialise service: %v", err)
	}
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("failed to start engine: %v", err)
	}
	defer func() {
		if err := svc.Shutdown(context.Background()); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	}()

	// Not Fatalf: the deferred shutdown must still drain in-flight cases.
	if err := server.New(svc).ListenAndServe(ctx); err != nil {
		log.Printf("server error: %v", err)
	}
}
