// Command replypipe runs the customer support pipeline behind an HTTP
// boundary. Configuration comes from an optional YAML file (-config) layered
// with REPLYPIPE_ environment variables; a .env file is loaded first when
// present.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/joho/godotenv"
	replypipe "github.com/replypipe/replypipe"
	"github.com/replypipe/replypipe/analytics"
	"github.com/replypipe/replypipe/config"
	"github.com/replypipe/replypipe/core"
	"github.com/replypipe/replypipe/gateway"
	"github.com/replypipe/replypipe/logging"
	providerAnthropic "github.com/replypipe/replypipe/provider/anthropic"
	providerOpenAI "github.com/replypipe/replypipe/provider/openai"
	"github.com/replypipe/replypipe/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := logging.NewSlogLogger(parseLevel(cfg.Logging.Level), cfg.Logging.Format, false).
		WithContext("service", "replypipe")
	startupDone := logger.StartTimer("startup")

	shutdownTracer, err := analytics.InitTracer("replypipe", logger)
	if err != nil {
		logger.Error("tracer init failed", "error", err.Error())
		os.Exit(1)
	}

	metrics := analytics.NewMetrics()
	sink := analytics.MultiSink{analytics.NewPromSink(metrics)}
	tracer := analytics.NewTracer()

	threshold, err := core.ParseMoney(cfg.Escalation.HighValueThreshold)
	if err != nil {
		logger.Error("invalid high value threshold", "value", cfg.Escalation.HighValueThreshold, "error", err.Error())
		os.Exit(1)
	}

	pipe := replypipe.New(func(o *replypipe.Options) {
		o.Provider = buildProvider(cfg, logger)
		o.HighValueThreshold = threshold
		o.ConfidenceFloor = cfg.Escalation.ConfidenceFloor
		o.TurnTimeout = cfg.Pipeline.TurnTimeout
		o.GlobalRate = cfg.Router.GlobalRate
		o.TopicRate = cfg.Router.TopicRate
		o.MaxDepth = cfg.Router.MaxDepth
		o.IdleTimeout = cfg.Router.IdleTimeout
		o.Logger = logger
		o.Sink = sink
		o.Tracer = tracer
		o.Metrics = metrics
		o.GatewayOptions = []func(g *gateway.Options){func(g *gateway.Options) {
			g.PoolSize = cfg.Gateway.PoolSize
			g.FailureThreshold = cfg.Gateway.FailureThreshold
			g.FailureWindow = cfg.Gateway.FailureWindow
			g.CoolDown = cfg.Gateway.CoolDown
			g.MaxCoolDown = cfg.Gateway.MaxCoolDown
			g.MaxAttempts = cfg.Gateway.MaxAttempts
			g.CallTimeout = cfg.Gateway.CallTimeout
		}}
	})

	srv := server.New(pipe, func(o *server.Options) {
		o.Port = cfg.Server.Port
		o.Logger = logger
	})
	startupDone()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err.Error())
		}
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("http shutdown", "error", err.Error())
	}
	pipe.Close()
	if err := shutdownTracer(ctx); err != nil {
		logger.Warn("tracer shutdown", "error", err.Error())
	}
}

// buildProvider selects the model vendor from configuration. Unknown types
// fall back to the deterministic mock so local runs never need credentials.
func buildProvider(cfg *config.Config, logger logging.Logger) gateway.Provider {
	switch cfg.Provider.Type {
	case "openai":
		return providerOpenAI.New(func(o *providerOpenAI.Options) {
			if cfg.Provider.Model != "" {
				o.Model = cfg.Provider.Model
			}
		})
	case "anthropic":
		return providerAnthropic.New(func(o *providerAnthropic.Options) {
			if cfg.Provider.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Provider.Model)
			}
			if cfg.Provider.APIKey != "" {
				o.APIKey = cfg.Provider.APIKey
			}
		})
	default:
		logger.Info("using deterministic mock provider", "type", cfg.Provider.Type)
		return gateway.NewMockProvider("mock")
	}
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
