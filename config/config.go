package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName                       string        `env:"APP_NAME" env-default:"fern-api"`
	Version                       string        `env:"APP_VERSION" env-default:"dev"`
	Port                          int           `env:"PORT" env-default:"3005"`
	LogLevel                      string        `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool          `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int           `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"30"`
	HttpServerReadTimeoutSeconds  int           `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int           `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"60"`
	MaxHeaderBytes                int           `env:"HTTP_SERVER_MAX_HEADER_BYTES" env-default:"64000"`
	ReadHeaderTimeoutSeconds      int           `env:"HTTP_SERVER_READ_HEADER_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string      `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	AllowMethods                  []string      `env:"HTTP_SERVER_ALLOW_METHODS" env-default:"GET,POST"`
	StartupMaxAttempts            int           `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`
	ShutdownTimeout               time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	// Catalog database: postgres or sqlite3
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"fern"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabasePath                  string        `env:"DB_PATH" env-default:"fern.db"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:""`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`
	DatabaseMigrateOnStart        bool          `env:"DB_MIGRATE_ON_START" env-default:"false"`

	// Work queue
	RedisEnabled           bool          `env:"REDIS_ENABLED" env-default:"true"`
	RedisHost              string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort              int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword          string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB                int           `env:"REDIS_DB" env-default:"0"`
	JobStream              string        `env:"JOB_STREAM" env-default:"fern:jobs"`
	RecalculationDelay     time.Duration `env:"RECALCULATION_DELAY" env-default:"1m"`
	DelayedJobPollInterval time.Duration `env:"DELAYED_JOB_POLL_INTERVAL" env-default:"1s"`

	// Merge plans
	PlansPath          string `env:"PLANS_PATH" env-default:""`
	PlanCoverageStrict bool   `env:"PLAN_COVERAGE_STRICT" env-default:"false"`

	// Domain events
	EventsEnabled     bool     `env:"EVENTS_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"entity-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Graph mirror (Memgraph)
	GraphProjectionEnabled bool   `env:"GRAPH_PROJECTION_ENABLED" env-default:"false"`
	GraphDBHost            string `env:"GRAPH_DB_HOST" env-default:"localhost"`
	GraphDBPort            int    `env:"GRAPH_DB_PORT" env-default:"7687"`
	GraphDBUser            string `env:"GRAPH_DB_USER" env-default:""`
	GraphDBPassword        string `env:"GRAPH_DB_PASSWORD" env-default:""`
	GraphDBName            string `env:"GRAPH_DB_NAME" env-default:""`

	// Auth
	AuthEnabled   bool   `env:"AUTH_ENABLED" env-default:"false"`
	AuthIssuerURL string `env:"AUTH_ISSUER_URL" env-default:""`
	AuthClientID  string `env:"AUTH_CLIENT_ID" env-default:""`
	AuthMergeRole string `env:"AUTH_MERGE_ROLE" env-default:"catalog-admin"`

	// Tracing
	OTLPEnabled  bool              `env:"OTLP_ENABLED" env-default:"false"`
	OTLPEndpoint string            `env:"OTLP_ENDPOINT" env-default:"localhost:4317"`
	OTLPProtocol string            `env:"OTLP_PROTOCOL" env-default:"grpc"`
	OTLPInsecure bool              `env:"OTLP_INSECURE" env-default:"true"`
	OTLPHeaders  map[string]string `env:"OTLP_HEADERS"`
}

// Load reads an optional .env file and then the environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DatabaseDriver)
	}
	if c.AuthEnabled && (c.AuthIssuerURL == "" || c.AuthClientID == "") {
		return errors.New("AUTH_ISSUER_URL and AUTH_CLIENT_ID are required when AUTH_ENABLED")
	}
	if c.PlansPath != "" {
		if _, err := os.Stat(c.PlansPath); err != nil {
			return fmt.Errorf("PLANS_PATH: %w", err)
		}
	}
	return nil
}
