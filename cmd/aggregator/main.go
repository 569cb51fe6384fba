// Package main is the entry point for the orderbook aggregator server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/fd1az/book-aggregator/business/marketdata"
	marketdataDomain "github.com/fd1az/book-aggregator/business/marketdata/domain"
	"github.com/fd1az/book-aggregator/business/serving"
	servingDI "github.com/fd1az/book-aggregator/business/serving/di"
	"github.com/fd1az/book-aggregator/internal/apm"
	"github.com/fd1az/book-aggregator/internal/apperror"
	"github.com/fd1az/book-aggregator/internal/bookrpc"
	"github.com/fd1az/book-aggregator/internal/config"
	"github.com/fd1az/book-aggregator/internal/health"
	"github.com/fd1az/book-aggregator/internal/logger"
	"github.com/fd1az/book-aggregator/internal/metrics"
	"github.com/fd1az/book-aggregator/internal/monolith"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	// Parse flags
	configPath := flag.String("config", "", "Path to configuration file")
	symbol := flag.String("symbol", "", "Trading pair in venue-accepted lowercase form, e.g. ethbtc")
	maxDepth := flag.Int("max-depth", 0, "Per-side depth of the merged book")
	exchanges := flag.String("exchanges", "", "Comma-separated venue names, e.g. binance,bitstamp")
	port := flag.Int("port", 0, "gRPC listen port")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("book-aggregator %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "received shutdown signal: %v\n", sig)
		cancel()
	}()

	if err := run(ctx, *configPath, flagOverrides{
		symbol:    *symbol,
		maxDepth:  *maxDepth,
		exchanges: *exchanges,
		port:      *port,
	}); err != nil {
		exitCode := 1
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			switch appErr.Code {
			case apperror.CodeDepthNotPositive, apperror.CodeUnknownVenue:
				// Usage errors, not runtime failures.
				fmt.Fprintln(os.Stderr, appErr.Message)
				os.Exit(2)
			}
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode)
	}
}

// flagOverrides carries CLI values that take precedence over file and
// environment configuration.
type flagOverrides struct {
	symbol    string
	maxDepth  int
	exchanges string
	port      int
}

func run(ctx context.Context, configPath string, flags flagOverrides) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if flags.symbol != "" {
		cfg.Book.Symbol = flags.symbol
	}
	if flags.maxDepth != 0 {
		cfg.Book.MaxDepth = flags.maxDepth
	}
	if flags.exchanges != "" {
		cfg.Book.Exchanges = config.ParseExchangeList(flags.exchanges)
	}
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}

	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := marketdataDomain.ParseVenues(cfg.Book.Exchanges); err != nil {
		return err
	}

	// Setup logger
	log := logger.New(os.Stderr, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, nil)
	log.Info(ctx, "starting orderbook aggregator",
		"version", version,
		"environment", cfg.App.Environment,
		"symbol", cfg.Book.Symbol,
		"depth", cfg.Book.MaxDepth,
	)

	// Initialize observability if enabled
	var traceProvider apm.TraceProvider
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName != "" {
			os.Setenv("OTEL_SERVICE_NAME", cfg.Telemetry.ServiceName)
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			os.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.OTLPEndpoint)
		}

		traceProvider = apm.NewTraceProvider(log, apm.WithProvider(apm.ZipkinProvider, log))
		log.Info(ctx, "tracing initialized", "provider", "zipkin", "endpoint", cfg.Telemetry.OTLPEndpoint)

		metrics.NewMetricProvider(
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.ProviderCfg{
				Provider: metrics.PrometheusProvider,
			}),
		)

		go metrics.ServePrometheusMetrics(metrics.WithPort(strconv.Itoa(cfg.Telemetry.PrometheusPort)))
		log.Info(ctx, "prometheus metrics server started", "port", cfg.Telemetry.PrometheusPort)
	}
	defer func() {
		if traceProvider != nil {
			traceProvider.Stop()
		}
	}()

	// Start health check server
	healthServer := health.NewServer(cfg.Server.HealthPort, version)
	healthServer.RegisterCheck("venues", func(ctx context.Context) (bool, string) {
		if _, err := marketdataDomain.ParseVenues(cfg.Book.Exchanges); err != nil {
			return false, err.Error()
		}
		return true, ""
	})
	if err := healthServer.Start(); err != nil {
		log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		log.Info(ctx, "health server started", "port", cfg.Server.HealthPort)
	}
	defer healthServer.Stop(ctx)

	// Create monolith (application container)
	mono, err := monolith.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	defer mono.Close()

	// Define modules in dependency order
	modules := []monolith.Module{
		&marketdata.Module{}, // Must be first - provides venue adapters
		&serving.Module{},    // Depends on marketdata for the adapter factory
	}

	if err := mono.RegisterModules(modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	if err := mono.StartModules(ctx, modules...); err != nil {
		return err
	}

	return serveGRPC(ctx, mono, log)
}

func serveGRPC(ctx context.Context, mono monolith.Monolith, log logger.LoggerInterface) error {
	cfg := mono.Config()

	listener, err := net.Listen("tcp", fmt.Sprintf("[::]:%d", cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
	}

	server := grpc.NewServer()
	bookrpc.RegisterOrderbookAggregatorServer(server, servingDI.GetBookService(mono.Services()))

	go func() {
		<-ctx.Done()
		log.Info(context.Background(), "shutting down grpc server")
		server.GracefulStop()
	}()

	log.Info(ctx, "grpc server listening", "addr", listener.Addr().String())
	return server.Serve(listener)
}
