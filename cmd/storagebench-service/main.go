// Command storagebench-service is the remote benchmark protocol service
// entrypoint (spec.md §4.6): it exposes the HTTP endpoints a
// storagebench coordinator drives, running local workers on this host on
// the coordinator's behalf. Daemonization and signal-driven shutdown
// beyond SIGINT/SIGTERM are out of scope (spec.md §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TheEntropyCollective/storagebench/internal/httpservice"
	"github.com/TheEntropyCollective/storagebench/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("storagebench-service", flag.ContinueOnError)
	port := fs.Int("port", 1570, "TCP port to listen on")
	logLevel := fs.String("loglevel", "info", "debug|info|warn|error")
	logFormat := fs.String("logformat", "text", "text|json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level, err := logging.ParseLogLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench-service: %v\n", err)
		return 2
	}
	format, err := logging.ParseLogFormat(*logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "storagebench-service: %v\n", err)
		return 2
	}
	logger := logging.New(&logging.Config{Level: level, Format: format, Output: os.Stderr, Component: "httpservice"})

	svc := httpservice.New(logger)
	defer svc.Close()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: svc.Router(),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info(fmt.Sprintf("listening on %s", srv.Addr), nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("storagebench-service: %v", err)
		return 1
	}
	return 0
}
