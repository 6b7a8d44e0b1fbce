// bridged bridges a REST API to a browser extension.
//
// HTTP callers hit the gateway; each call becomes a length-prefixed JSON
// frame on the extension channel, and the matching response frame completes
// the HTTP request. The channel is either the native-messaging pipe on
// stdin/stdout (the browser launches us) or a local WebSocket endpoint the
// extension dials (sandboxed browsers that cannot spawn a host process).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"browser-bridge/bridge"
	"browser-bridge/config"
	"browser-bridge/gateway"
	"browser-bridge/metrics"
	"browser-bridge/transport"
)

func main() {
	var (
		configPath    = flag.String("config", "", "Path to YAML config file")
		httpAddr      = flag.String("http", "", "REST listen address (overrides config)")
		transportMode = flag.String("transport", "", "Extension channel: stdio or ws (overrides config)")
		wsAddr        = flag.String("ws", "", "WebSocket listen address (overrides config)")
		logLevel      = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config", err)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *transportMode != "" {
		cfg.Transport = *transportMode
	}
	if *wsAddr != "" {
		cfg.WSAddr = *wsAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fatal("invalid config", err)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("browser-bridge starting",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("transport", cfg.Transport))

	m := metrics.New()

	var channel transport.Channel
	switch cfg.Transport {
	case config.TransportWS:
		ws, err := transport.ListenWS(cfg.WSAddr, logger)
		if err != nil {
			fatal("start websocket listener", err)
		}
		logger.Info("waiting for extension", zap.String("url", "ws://"+ws.Addr()+"/ws"))
		channel = ws
	default:
		channel = transport.Stdio()
	}

	b := bridge.New(channel, bridge.Options{
		CallTimeout:    cfg.CallTimeout.Std(),
		ReconnectDelay: cfg.ReconnectDelay.Std(),
		Logger:         logger,
		Metrics:        m,
	})
	b.Start()

	gw := gateway.New(b, gateway.Options{
		Logger:    logger,
		Metrics:   m,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      gw.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped", zap.Error(err))
		}
	}()
	logger.Info("gateway listening", zap.String("addr", cfg.HTTPAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", zap.Error(err))
	}
	if err := b.Stop(); err != nil {
		logger.Error("bridge shutdown", zap.Error(err))
	}
	logger.Info("browser-bridge stopped")
}

// newLogger builds a stderr logger. Stdout belongs to the native-messaging
// channel in stdio mode, so nothing human-readable may ever go there.
func newLogger(level string) *zap.Logger {
	zapLevel := zapcore.InfoLevel
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(os.Stderr),
		zapLevel,
	)
	return zap.New(core)
}

func fatal(msg string, err error) {
	os.Stderr.WriteString(msg + ": " + err.Error() + "\n")
	os.Exit(1)
}
