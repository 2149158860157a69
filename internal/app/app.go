// Package app wires fern's components from configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Gobusters/ectoinject/ectocontainer"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/db"
	"github.com/Ramsey-B/fern/internal/repositories/entity"
	"github.com/Ramsey-B/fern/internal/repositories/mergeaudit"
	"github.com/Ramsey-B/fern/internal/repositories/rankeditem"
	"github.com/Ramsey-B/fern/internal/repositories/relation"
	"github.com/Ramsey-B/fern/internal/repositories/schema"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/scope"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// Dependency names, usable in DependsOn.
const (
	DepTracing  = "tracing"
	DepDatabase = "database"
	DepQueue    = "queue"
	DepEvents   = "events"
	DepGraph    = "graph"
	DepEngine   = "engine"
)

// App holds the long-lived components of one fern process.
type App struct {
	Config *config.Config
	Logger ectologger.Logger

	DB       database.DB
	Plans    merging.Plans
	Queue    queue.Enqueuer
	Redis    *redis.Client
	Engine   *merging.Engine
	Audits   *mergeaudit.Repository
	Schema   *schema.Repository
	Producer *kafka.Producer
	Graph    *graph.Client

	// Container serves the route handlers; built once the engine exists.
	Container ectocontainer.DIContainer

	hooks   []merging.AfterMergeHook
	tracer  *sdktrace.TracerProvider
	startup *startup.Startup
}

// New loads the merge plans and registers the core dependencies. Nothing
// connects until Start.
func New(cfg *config.Config, logger ectologger.Logger) (*App, error) {
	plans, err := LoadPlans(cfg.PlansPath)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Plans:   plans,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	a.startup.AddDependency(&startup.Dependency{Name: DepTracing, OnStart: a.startTracing, OnStop: a.stopTracing})
	a.startup.AddDependency(&startup.Dependency{Name: DepDatabase, OnStart: a.startDatabase, OnStop: a.stopDatabase})
	a.startup.AddDependency(&startup.Dependency{Name: DepQueue, OnStart: a.startQueue, OnStop: a.stopQueue})
	a.startup.AddDependency(&startup.Dependency{Name: DepEvents, OnStart: a.startEvents, OnStop: a.stopEvents})
	a.startup.AddDependency(&startup.Dependency{Name: DepGraph, OnStart: a.startGraph, OnStop: a.stopGraph})
	a.startup.AddDependency(&startup.Dependency{
		Name:     DepEngine,
		Requires: []string{DepDatabase, DepQueue, DepEvents, DepGraph},
		OnStart:  a.startEngine,
	})

	return a, nil
}

// LoadPlans returns the embedded plans, or the plans in dir when set.
func LoadPlans(dir string) (merging.Plans, error) {
	if dir == "" {
		return merging.DefaultPlans()
	}
	return merging.LoadPlans(os.DirFS(dir), ".")
}

// AddDependency registers an extra component, such as the HTTP server.
func (a *App) AddDependency(dep startup.StartupDependency) {
	a.startup.AddDependency(dep)
}

func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

func (a *App) startTracing(ctx context.Context) error {
	if !a.Config.OTLPEnabled {
		return nil
	}
	tp, err := exporters.NewTracerProvider(ctx, exporters.OTLPConfig{
		Endpoint: a.Config.OTLPEndpoint,
		Protocol: a.Config.OTLPProtocol,
		Insecure: a.Config.OTLPInsecure,
		Headers:  a.Config.OTLPHeaders,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return err
	}
	a.tracer = tp
	tracing.SetTracer(otel.Tracer(a.Config.AppName))
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.tracer == nil {
		return nil
	}
	return a.tracer.Shutdown(ctx)
}

// ConnectionConfig translates DB_* settings.
func ConnectionConfig(cfg *config.Config) database.ConnectionConfig {
	return database.ConnectionConfig{
		Driver:          cfg.DatabaseDriver,
		Host:            cfg.DatabaseHost,
		Port:            cfg.DatabasePort,
		User:            cfg.DatabaseUserName,
		Password:        cfg.DatabasePassword,
		Name:            cfg.DatabaseName,
		SSLMode:         cfg.DatabaseSSLMode,
		Path:            cfg.DatabasePath,
		MaxOpenConns:    cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
	}
}

// MigrationConfig returns the embedded migrations for the configured driver,
// or the folder in DB_MIGRATION_FOLDER_PATH when set.
func MigrationConfig(cfg *config.Config) *database.MigrationConfig {
	mc := &database.MigrationConfig{
		MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
		Version:             uint(cfg.DatabaseMigrationVersion),
		Force:               cfg.DatabaseMigrationForce,
		AutoRollback:        cfg.DatabaseMigrationAutoRollback,
	}
	if mc.MigrationFolderPath == "" {
		mc.FS, mc.MigrationFolderPath = db.Migrations(cfg.DatabaseDriver)
	}
	return mc
}

func (a *App) startDatabase(ctx context.Context) error {
	conn, err := database.Open(ctx, ConnectionConfig(a.Config), a.Logger)
	if err != nil {
		return err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if a.Config.DatabaseMigrateOnStart {
		if err := database.NewMigrationService(a.Logger, MigrationConfig(a.Config)).MigrateDB(conn); err != nil {
			_ = conn.Close()
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	a.DB = conn
	a.Audits = mergeaudit.NewRepository(conn, a.Logger)
	a.Schema = schema.NewRepository(conn, a.Logger)
	return nil
}

func (a *App) stopDatabase(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

func (a *App) startQueue(ctx context.Context) error {
	if !a.Config.RedisEnabled {
		a.Logger.WithContext(ctx).Warn("Redis is disabled, downstream jobs will only be logged")
		a.Queue = queue.NewLogQueue(a.Logger)
		return nil
	}

	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.Config.RedisHost,
		Port:     a.Config.RedisPort,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Redis = client
	a.Queue = queue.NewRedisQueue(client, a.Config.JobStream, a.Logger)
	return nil
}

func (a *App) stopQueue(ctx context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}

func (a *App) startEvents(ctx context.Context) error {
	if !a.Config.EventsEnabled {
		return nil
	}
	a.Producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.Config.KafkaBrokers,
		Topic:        a.Config.KafkaOutputTopic,
		BatchSize:    a.Config.KafkaBatchSize,
		BatchTimeout: time.Duration(a.Config.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.Config.KafkaRequiredAcks,
		Compression:  a.Config.KafkaCompression,
	}, a.Logger)
	a.hooks = append(a.hooks, events.NewEmitter(a.Producer, a.Logger))
	return nil
}

func (a *App) stopEvents(ctx context.Context) error {
	if a.Producer == nil {
		return nil
	}
	return a.Producer.Close()
}

func (a *App) startGraph(ctx context.Context) error {
	if !a.Config.GraphProjectionEnabled {
		return nil
	}
	client, err := graph.NewClient(graph.Config{
		Host:     a.Config.GraphDBHost,
		Port:     a.Config.GraphDBPort,
		Username: a.Config.GraphDBUser,
		Password: a.Config.GraphDBPassword,
		Database: a.Config.GraphDBName,
	}, a.Logger)
	if err != nil {
		return err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return fmt.Errorf("failed to reach graph database: %w", err)
	}
	a.Graph = client
	a.hooks = append(a.hooks, graph.NewProjector(client, a.Logger))
	return nil
}

func (a *App) stopGraph(ctx context.Context) error {
	if a.Graph == nil {
		return nil
	}
	return a.Graph.Close(ctx)
}

func (a *App) startEngine(ctx context.Context) error {
	a.Engine = NewEngine(a.DB, a.Plans, a.Queue, a.Config.RecalculationDelay, a.Logger, a.hooks...)

	container, err := a.newContainer()
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}
	a.Container = container
	return nil
}

// NewEngine assembles a merge engine over db. Tests use it with a SQLite
// database and a recording queue.
func NewEngine(conn database.DB, plans merging.Plans, q queue.Enqueuer, delay time.Duration, logger ectologger.Logger, hooks ...merging.AfterMergeHook) *merging.Engine {
	return merging.NewEngine(conn, plans, merging.Dependencies{
		Relations: relation.NewRepository(conn, logger),
		Entities:  entity.NewRepository(conn, logger),
		Collector: scope.NewCollector(rankeditem.NewRepository(conn, logger)),
		Scheduler: scope.NewScheduler(q, delay, logger),
		Audits:    mergeaudit.NewRepository(conn, logger),
		Hooks:     hooks,
	}, logger)
}

// OpenDatabase connects the catalog store without starting anything else.
func (a *App) OpenDatabase(ctx context.Context) error {
	return a.startDatabase(ctx)
}

// CloseDatabase releases the connection opened by OpenDatabase.
func (a *App) CloseDatabase(ctx context.Context) error {
	return a.stopDatabase(ctx)
}

// Migrate applies the schema migrations regardless of DB_MIGRATE_ON_START.
func (a *App) Migrate(ctx context.Context) error {
	conn, err := database.Open(ctx, ConnectionConfig(a.Config), a.Logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	return database.NewMigrationService(a.Logger, MigrationConfig(a.Config)).MigrateDB(conn)
}
