package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/absmach/fedcoord"
	"github.com/absmach/fedcoord/coordinator"
	"github.com/absmach/fedcoord/coordinator/api"
	"github.com/absmach/fedcoord/coordinator/middleware"
	"github.com/absmach/fedcoord/dispatcher"
	"github.com/absmach/fedcoord/pkg/codec"
	"github.com/absmach/fedcoord/pkg/fl"
	"github.com/absmach/fedcoord/pkg/mqtt"
	"github.com/absmach/fedcoord/pkg/storage"
	"github.com/absmach/fedcoord/pkg/transport/ws"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "coordinator"
	defHTTPPort   = "7080"
	envPrefixHTTP = "COORDINATOR_HTTP_"
	pathEnv       = ".env"

	aggregatorFedAvg = "fedavg"
	aggregatorMean   = "mean"
	aggregatorWasm   = "wasm"
	updateModeDeltas = "deltas"
)

type envConfig struct {
	LogLevel        string `env:"COORDINATOR_LOG_LEVEL"        envDefault:"info"`
	InstanceID      string `env:"COORDINATOR_INSTANCE_ID"`
	HyperparamsFile string `env:"COORDINATOR_HYPERPARAMS_FILE"`
	// InitialModel is a JSON list of tensors, inline or as a file path.
	InitialModel   string  `env:"COORDINATOR_INITIAL_MODEL"`
	ModelDir       string  `env:"COORDINATOR_MODEL_DIR"       envDefault:"./data/models"`
	Aggregator     string  `env:"COORDINATOR_AGGREGATOR"      envDefault:"fedavg"`
	UpdateMode     string  `env:"COORDINATOR_UPDATE_MODE"     envDefault:"weights"`
	WasmAggregator string  `env:"COORDINATOR_WASM_AGGREGATOR"`
	OTELURL        url.URL `env:"COORDINATOR_OTEL_URL"`
	TraceRatio     float64 `env:"COORDINATOR_TRACE_RATIO"     envDefault:"0"`
	Coordinator    coordinator.Config
	Dispatcher     dispatcher.Config
	WS             ws.Config
	MQTT           mqtt.Config
	Storage        storage.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var hyperparams map[string]any
	if cfg.HyperparamsFile != "" {
		fileCfg, err := fedcoord.LoadConfig(cfg.HyperparamsFile)
		if err != nil {
			logger.Error("failed to load coordinator file", slog.String("error", err.Error()))

			return
		}
		applyFileConfig(&cfg, fileCfg)
		hyperparams = fileCfg.Hyperparams
	}

	if err := cfg.Dispatcher.Validate(); err != nil {
		logger.Error("invalid dispatcher configuration", slog.String("error", err.Error()))

		return
	}

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer func() {
			if err := repos.Closer.Close(); err != nil {
				logger.Error("failed to close storage", slog.String("error", err.Error()))
			}
		}()
	}

	models, err := fl.NewPersistentStorage(cfg.ModelDir)
	if err != nil {
		logger.Error("failed to initialize model store", slog.String("error", err.Error()))

		return
	}

	vars, err := loadInitialModel(cfg.InitialModel)
	if err != nil {
		logger.Error("failed to load initial model", slog.String("error", err.Error()))

		return
	}
	initial, err := coordinator.InitialSnapshot(models, vars)
	if err != nil {
		logger.Error("failed to restore model", slog.String("error", err.Error()))

		return
	}

	aggregator, closeAggregator, err := newAggregator(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize aggregator", slog.String("error", err.Error()))

		return
	}
	defer closeAggregator()

	var svc coordinator.Service
	svc = coordinator.NewService(cfg.Coordinator, aggregator, repos.Telemetry, models, initial, hyperparams, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	opts := []dispatcher.Option{
		dispatcher.WithTerminate(cancel),
		dispatcher.WithMetrics(dispatcher.NewMetrics(svcName, "dispatcher")),
	}

	var pubsub mqtt.PubSub
	if cfg.MQTT.Address != "" {
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = svcName + "-" + cfg.InstanceID
		}
		pubsub, err = mqtt.NewPubSub(cfg.MQTT, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Error("failed to disconnect mqtt pubsub", slog.String("error", err.Error()))
			}
		}()
		opts = append(opts, dispatcher.WithNotifier(dispatcher.NewMQTTNotifier(pubsub, cfg.MQTT.BaseTopic)))
	}

	d := dispatcher.New(ctx, cfg.Dispatcher, svc, logger, opts...)

	if pubsub != nil {
		unsubscribe, err := d.SubscribeControl(ctx, pubsub, cfg.MQTT.BaseTopic)
		if err != nil {
			logger.Error("failed to subscribe to control topic", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := unsubscribe(context.Background()); err != nil {
				logger.Error("failed to unsubscribe from control topic", slog.String("error", err.Error()))
			}
		}()
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	wsHandler := ws.NewHandler(d, cfg.WS, logger)
	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, d, wsHandler, logger, cfg.InstanceID), logger)

	logger.Info("coordinator starting",
		slog.Uint64("model_version", initial.Version),
		slog.Int("min_updates", cfg.Coordinator.MinUpdatesPerVersion),
		slog.String("aggregator", cfg.Aggregator),
		slog.String("storage", cfg.Storage.Type),
	)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		<-ctx.Done()

		return d.Close()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func applyFileConfig(cfg *envConfig, file *fedcoord.Config) {
	c := file.Coordinator
	if c.MinUpdates > 0 {
		cfg.Coordinator.MinUpdatesPerVersion = c.MinUpdates
	}
	if c.RetainedVersions > 0 {
		cfg.Coordinator.RetainedVersions = c.RetainedVersions
	}
	if c.Aggregator != "" {
		cfg.Aggregator = c.Aggregator
	}
	if c.UpdateMode != "" {
		cfg.UpdateMode = c.UpdateMode
	}
	if c.WasmAggregator != "" {
		cfg.WasmAggregator = c.WasmAggregator
	}
}

func newAggregator(ctx context.Context, cfg envConfig) (fl.Aggregator, func(), error) {
	deltas := strings.EqualFold(cfg.UpdateMode, updateModeDeltas)
	nop := func() {}

	switch strings.ToLower(cfg.Aggregator) {
	case aggregatorFedAvg:
		return fl.NewFedAvgAggregator(deltas), nop, nil
	case aggregatorMean:
		return fl.NewMeanAggregator(deltas), nop, nil
	case aggregatorWasm:
		if cfg.WasmAggregator == "" {
			return nil, nil, errors.New("wasm aggregator selected without COORDINATOR_WASM_AGGREGATOR")
		}
		wa, err := fl.NewWasmAggregator(ctx, cfg.WasmAggregator)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = wa.Close(closeCtx)
		}

		return wa, closer, nil
	default:
		return nil, nil, fmt.Errorf("unknown aggregator %q", cfg.Aggregator)
	}
}

func loadInitialModel(value string) (fl.WeightSet, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fl.WeightSet{}, nil
	}

	data := []byte(value)
	if !strings.HasPrefix(value, "[") {
		var err error
		if data, err = os.ReadFile(value); err != nil {
			return nil, err
		}
	}

	var tjs []codec.TensorJSON
	if err := json.Unmarshal(data, &tjs); err != nil {
		return nil, err
	}

	return codec.FromJSONAll(tjs)
}
