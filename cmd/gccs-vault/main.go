package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GlintPay/gccs-vault/api"
	"github.com/GlintPay/gccs-vault/backend"
	"github.com/GlintPay/gccs-vault/backend/setup"
	"github.com/GlintPay/gccs-vault/config"
	"github.com/GlintPay/gccs-vault/environment"
	"github.com/GlintPay/gccs-vault/health"
	"github.com/GlintPay/gccs-vault/logging"
	"github.com/GlintPay/gccs-vault/resolver/k8s"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

const serviceName = "gccs-vault"

const maxGoroutines = 2000

var envConfig = config.Configuration{}

func main() {
	if err := env.Parse(&envConfig); err != nil {
		log.Fatal().Msgf("Configuration loading failed: %+v", err)
	}

	appConfig := config.ApplicationConfiguration{}
	readConfig(envConfig.ApplicationConfigFileYmlPath, &appConfig)

	requestLogging := httplog.RequestLogger(httplog.NewLogger(serviceName, httplog.Options{JSON: true, Concise: true}))
	logging.Setup(os.Stdout, appConfig.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	////////////////////////////////////////////

	backends, err := setup.Init(ctx, appConfig)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("Backend init failed")
	}
	if len(backends) == 0 {
		log.Fatal().Msg("No backend is enabled")
	}
	defer func() {
		for _, each := range backends {
			each.Close()
		}
	}()

	placeholders, err := setupPlaceholders(appConfig.K8s)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("K8s setup failed")
	}

	////////////////////////////////////////////

	traceShutdown, e := setupTracing(ctx, appConfig)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Trace setup failed")
	}
	defer traceShutdown()

	repository := environment.NewRepository(backends[0], appConfig.Vault, environment.DefaultWatch{}, appConfig.Tracing.Enabled)

	router := setupRouter(appConfig, repository, placeholders, requestLogging)
	setupHealthCheck(router, backends)

	////////////////////////////////////////////

	if appConfig.Server.Port == 0 {
		appConfig.Server.Port = 80
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", appConfig.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Stack().Err(err).Msg("server failed")
	}
}

func readConfig(filePath string, config *config.ApplicationConfiguration) {
	yamlFile, err := os.ReadFile(filePath)
	if err == nil {
		log.Debug().Msgf("Loading YAML config from %s", filePath)
		err = yaml.Unmarshal(yamlFile, config)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Unmarshal")
		}
	} else {
		log.Printf("No config file found: %s", filePath)
	}
}

func setupPlaceholders(cfg config.K8sConfig) (api.PlaceholderSource, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := k8s.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("K8s placeholders are enabled")
	return k8s.NewResolver(client, cfg), nil
}

var emptyShutdown = func() {}

func setupTracing(ctx context.Context, config config.ApplicationConfiguration) (func(), error) {
	if !config.Tracing.Enabled {
		return emptyShutdown, nil
	}

	if config.Tracing.Endpoint == "" {
		return emptyShutdown, fmt.Errorf("missing tracing endpoint")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(config.Tracing.Endpoint),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.Tracing.SamplerFraction)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info().Msgf("OpenTelemetry export is enabled, to: %s", config.Tracing.Endpoint)

	return func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error().Stack().Err(err).Msg("failed to shutdown TracerProvider")
		}
	}, nil
}

func setupRouter(config config.ApplicationConfiguration, repository *environment.Repository, placeholders api.PlaceholderSource, requestLogging func(http.Handler) http.Handler) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(requestLogging)

	routing := api.Routing{
		ServerName:   serviceName,
		ParentRouter: router,

		AppConfig:    config,
		Repository:   repository,
		Placeholders: placeholders,
	}

	router.Route("/", func(r chi.Router) {
		if e := routing.SetupFunctionalRoutes(r); e != nil {
			log.Fatal().Stack().Err(e).Msg("route setup failed")
		}
	})

	if len(config.Prometheus.Path) > 0 {
		log.Info().Msgf("Registering metrics endpoint at: %s", config.Prometheus.Path)
		router.Handle(config.Prometheus.Path, promhttp.Handler())
	}

	return router
}

type healthReporter interface {
	Healthy() error
}

func setupHealthCheck(router *chi.Mux, backends backend.Backends) {
	opts := []health.Opt{
		health.WithChiMux(router),
		health.WithLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines)),
	}
	for _, each := range backends {
		if reporter, ok := each.(healthReporter); ok {
			opts = append(opts, health.WithReadinessCheck(fmt.Sprintf("backend-%d", each.Order()), reporter.Healthy))
		}
	}

	health.New(opts...).StartListening()
}
