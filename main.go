package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/agromon/agrinode-go/pkg/hal"
	"github.com/agromon/agrinode-go/pkg/sensors"
	"github.com/agromon/agrinode-go/pkg/station"
	"github.com/agromon/agrinode-go/pkg/thingspeak"
)

var (
	ssid            string
	passphrase      string
	apiKey          string
	baseURL         string
	period          time.Duration
	compensateDrift bool
	metricsAddr     string
	simSeed         int64
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var cyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "agrinode_cycles_total",
	Help: "Completed sampling cycles by outcome.",
}, []string{"outcome"})

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	defaults := station.DefaultConfig()

	// Parse command line flags
	pflag.StringVar(&ssid, "ssid", defaults.SSID, "Wireless network SSID")
	pflag.StringVar(&passphrase, "passphrase", defaults.Passphrase, "Wireless network passphrase")
	pflag.StringVar(&apiKey, "api-key", defaults.APIKey, "Ingestion endpoint API key")
	pflag.StringVar(&baseURL, "endpoint", defaults.BaseURL, "Ingestion endpoint base URL")
	pflag.DurationVar(&period, "period", defaults.Period, "Sampling cycle period (15s minimum)")
	pflag.BoolVar(&compensateDrift, "compensate-drift", false, "Schedule cycles against a fixed-rate ticker")
	pflag.StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address")
	pflag.Int64Var(&simSeed, "sim-seed", time.Now().UnixNano(), "Seed for the simulated sensor panel")
	for flag, env := range map[string]string{
		"ssid":       "AGRINODE_SSID",
		"passphrase": "AGRINODE_PASSPHRASE",
		"api-key":    "AGRINODE_API_KEY",
		"endpoint":   "AGRINODE_ENDPOINT",
	} {
		if v := os.Getenv(env); v != "" {
			pflag.Lookup(flag).Value.Set(v)
		}
	}
	pflag.Parse()

	// Setup Otel
	shutdown, err := setupOTelSDK(ctx)
	defer shutdown(ctx)
	if err != nil {
		panic(err)
	}

	// Initialize logger
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(os.Stdout), zapcore.DebugLevel),
		otelzap.NewCore("github.com/agromon/agrinode-go", otelzap.WithLoggerProvider(global.GetLoggerProvider())),
	)
	logger := zap.New(core)
	defer logger.Sync()
	logger.Info("starting up", zap.String("version", version), zap.String("commit", commit), zap.String("buildDate", date))

	// Prometheus diagnostics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Warn("metrics listener stopped", zap.Error(err))
		}
	}()

	cfg := defaults
	cfg.SSID = ssid
	cfg.Passphrase = passphrase
	cfg.APIKey = apiKey
	cfg.BaseURL = baseURL
	cfg.Period = period
	cfg.CompensateDrift = compensateDrift

	// The default build targets the Wokwi simulation, so the panel is
	// backed by wandering simulated channels. A real board swaps in its
	// own hal implementations here.
	panel, err := sensors.NewPanel(
		sensors.WithLogger(logger),
		sensors.WithSoil(hal.NewWanderingADC(2048, 64, simSeed)),
		sensors.WithLDR(hal.NewWanderingADC(1000, 128, simSeed+1)),
		sensors.WithGas(hal.NewWanderingADC(500, 32, simSeed+2)),
		sensors.WithRain(hal.NewWanderingADC(2048, 96, simSeed+3)),
		sensors.WithDHT(hal.NewSimDHT(25.0, 60.0)),
	)
	if err != nil {
		log.Fatal("cannot create sensor panel", zap.Error(err))
	}

	publisher, err := thingspeak.NewClient(
		thingspeak.WithLogger(logger),
		thingspeak.WithAPIKey(cfg.APIKey),
		thingspeak.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		log.Fatal("cannot create publisher", zap.Error(err))
	}

	node, err := station.New(cfg,
		station.WithLogger(logger),
		station.WithRadio(hal.NewSimRadio(2)),
		station.WithPanel(panel),
		station.WithPublisher(publisher),
		station.WithObserver(func(o station.Outcome, _ sensors.Reading) {
			cyclesTotal.WithLabelValues(o.String()).Inc()
		}),
	)
	if err != nil {
		log.Fatal("cannot create station", zap.Error(err))
	}

	if err := node.Bootstrap(ctx); err != nil {
		logger.Error("bootstrap aborted", zap.Error(err))
		return
	}

	if err := node.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("station loop exited", zap.Error(err))
	}
}
