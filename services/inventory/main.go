package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// CreateItemRequest representa a requisição para cadastrar um item
type CreateItemRequest struct {
	Name     string   `json:"name" binding:"required"`
	Category string   `json:"category" binding:"required"`
	Quantity *FlexInt `json:"quantity" binding:"required"`
	Barcode  string   `json:"barcode" binding:"required"`
}

// UpdateItemRequest representa o ajuste manual de estoque
type UpdateItemRequest struct {
	Quantity      *FlexInt `json:"quantity" binding:"required"`
	OriginalStock *FlexInt `json:"originalStock"`
}

// ScanRequest representa um evento de scan; RequestID torna retentativas idempotentes
type ScanRequest struct {
	Barcode   string `json:"barcode" binding:"required"`
	RequestID string `json:"requestId,omitempty"`
}

// ScannerModeRequest representa a troca de modo do scanner
type ScannerModeRequest struct {
	Mode     Mode     `json:"mode" binding:"required"`
	Quantity *FlexInt `json:"quantity"`
}

func main() {
	cfg := LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize OpenTelemetry
	tp, err := initTracer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	mp, err := initMetrics(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Printf("Error shutting down meter: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	repository, feed, closeStore, err := initStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	// Initialize dependencies
	tracer := tp.Tracer(cfg.ServiceName)
	useCase := NewInventoryUseCase(repository, tracer)
	handler := NewInventoryHandler(useCase, tracer)
	broadcaster := NewBroadcaster(cfg.WSSendBuffer)
	relay := NewChangeRelay(useCase, broadcaster)

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		if err := relay.Run(ctx, feed); err != nil {
			log.Printf("❌ [CHANGE FEED] stopped: %v", err)
		}
	}()

	r := NewRouter(cfg.ServiceName, handler, broadcaster)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		log.Printf("🚀 Inventory Service (%s store) listening on port %s", cfg.StoreDriver, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Shutting down inventory service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	broadcaster.Close()
	<-relayDone
}

// initStore abre o store configurado e devolve o feed de mudanças correspondente
func initStore(ctx context.Context, cfg *Config) (InventoryRepository, ChangeFeed, func(), error) {
	switch cfg.StoreDriver {
	case StoreDriverBadger:
		db, err := OpenBadger(BadgerConfig{Path: cfg.BadgerPath, SyncWrites: true})
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("✅ Opened badger store (path=%q)", cfg.BadgerPath)
		return NewBadgerInventoryRepository(db), NewBadgerChangeFeed(db), func() { closeBadger(db) }, nil

	default:
		pool, err := initDB(ctx, cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return NewInventoryRepository(pool), NewPostgresChangeFeed(cfg.ListenerDSN()), pool.Close, nil
	}
}

func initDB(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.PoolDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	// Configure connection pool
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Wait for database to be ready
	for i := 0; i < 30; i++ {
		if err := pool.Ping(ctx); err == nil {
			log.Println("✅ Connected to inventory database with connection pool")
			return pool, nil
		}
		log.Printf("⏳ Waiting for database... (%d/30)", i+1)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}

	pool.Close()
	return nil, fmt.Errorf("failed to connect to database after 30 attempts")
}

func newResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	return resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
}

func initTracer(cfg *Config) (*sdktrace.TracerProvider, error) {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	otel.SetTracerProvider(tp)

	return tp, nil
}

func initMetrics(cfg *Config) (*sdkmetric.MeterProvider, error) {
	ctx := context.Background()

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	return mp, nil
}
