// Package bootstrap wires every adapter and service built across the
// rest of the module into one running process: config loading, connection
// lifecycles, the outbox dispatcher and queue worker as supervised
// components, and the operator-facing health/metrics surface. Grounded on
// components/consumer's and components/audit's bootstrap/config.go.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libCircuitBreaker "github.com/LerianStudio/lib-commons/v2/commons/circuitbreaker"
	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	libMongo "github.com/LerianStudio/lib-commons/v2/commons/mongo"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"
	libRabbitmq "github.com/LerianStudio/lib-commons/v2/commons/rabbitmq"
	libZap "github.com/LerianStudio/lib-commons/v2/commons/zap"

	mongoaudit "github.com/meridianhq/eventcore/internal/adapters/mongodb/audit"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/actionrepo"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/eventstore"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/ledger"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/outbox"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/policyrepo"
	"github.com/meridianhq/eventcore/internal/adapters/rabbitmq"
	redisadapter "github.com/meridianhq/eventcore/internal/adapters/redis"
	"github.com/meridianhq/eventcore/internal/services/audit"
	"github.com/meridianhq/eventcore/internal/services/command"
	"github.com/meridianhq/eventcore/internal/services/dispatcher"
	ledgersvc "github.com/meridianhq/eventcore/internal/services/ledger"
	"github.com/meridianhq/eventcore/internal/services/worker"
	"github.com/meridianhq/eventcore/pkg/mratelimit"
)

const ApplicationName = "eventcore"

// Config is the top level configuration struct for the entire process,
// mirroring components/consumer/internal/bootstrap/config.go field-for-
// field in shape, plus the eventcore-specific outbox/worker/audit knobs.
type Config struct {
	EnvName  string `env:"ENV_NAME"`
	LogLevel string `env:"LOG_LEVEL"`

	PrimaryDBHost      string `env:"DB_HOST"`
	PrimaryDBUser      string `env:"DB_USER"`
	PrimaryDBPassword  string `env:"DB_PASSWORD"`
	PrimaryDBName      string `env:"DB_NAME"`
	PrimaryDBPort      string `env:"DB_PORT"`
	ReplicaDBHost      string `env:"DB_REPLICA_HOST"`
	ReplicaDBUser      string `env:"DB_REPLICA_USER"`
	ReplicaDBPassword  string `env:"DB_REPLICA_PASSWORD"`
	ReplicaDBName      string `env:"DB_REPLICA_NAME"`
	ReplicaDBPort      string `env:"DB_REPLICA_PORT"`
	MaxOpenConnections int    `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConnections int    `env:"DB_MAX_IDLE_CONNS"`

	MongoURI          string `env:"MONGO_URI"`
	MongoDBHost       string `env:"MONGO_HOST"`
	MongoDBName       string `env:"MONGO_NAME"`
	MongoDBUser       string `env:"MONGO_USER"`
	MongoDBPassword   string `env:"MONGO_PASSWORD"`
	MongoDBPort       string `env:"MONGO_PORT"`
	MongoMaxPoolSize  int    `env:"MONGO_MAX_POOL_SIZE"`

	RabbitMQHost           string `env:"RABBITMQ_HOST"`
	RabbitMQPortHost       string `env:"RABBITMQ_PORT_HOST"`
	RabbitMQPortAMQP       string `env:"RABBITMQ_PORT_AMQP"`
	RabbitMQUser           string `env:"RABBITMQ_DEFAULT_USER"`
	RabbitMQPass           string `env:"RABBITMQ_DEFAULT_PASS"`
	RabbitMQQueue          string `env:"RABBITMQ_QUEUE"`
	RabbitMQHealthCheckURL string `env:"RABBITMQ_HEALTH_CHECK_URL"`

	RedisURI                  string        `env:"REDIS_URI" envDefault:"redis://localhost:6379/0"`
	HandlerRateLimitPerSecond int           `env:"HANDLER_RATE_LIMIT_PER_SECOND" envDefault:"50"`
	HandlerRateLimitWindow    time.Duration `env:"HANDLER_RATE_LIMIT_WINDOW" envDefault:"1s"`

	OtelServiceName         string `env:"OTEL_RESOURCE_SERVICE_NAME"`
	OtelLibraryName         string `env:"OTEL_LIBRARY_NAME"`
	OtelServiceVersion      string `env:"OTEL_RESOURCE_SERVICE_VERSION"`
	OtelDeploymentEnv       string `env:"OTEL_RESOURCE_DEPLOYMENT_ENVIRONMENT"`
	OtelColExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	EnableTelemetry         bool   `env:"ENABLE_TELEMETRY"`

	HealthAddress string `env:"HEALTH_ADDRESS" envDefault:":8080"`

	OutboxPollInterval      time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize         int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxWorkers        int           `env:"OUTBOX_MAX_WORKERS" envDefault:"5"`
	OutboxMaxRetries        int           `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`
	WorkerConcurrency       int           `env:"WORKER_CONCURRENCY" envDefault:"10"`
	WorkerVisibilityTimeout time.Duration `env:"WORKER_VISIBILITY_TIMEOUT" envDefault:"30s"`
	AuditSimulateFailure    bool          `env:"AUDIT_SIMULATE_FAILURE" envDefault:"false"`
}

// Service is the application glue: every supervised component plus the
// shared logger, run by Launcher.
type Service struct {
	logger     libLog.Logger
	dispatcher *dispatcher.Dispatcher
	worker     *worker.Worker
	health     *HealthServer

	// Commands is the synchronous command entrypoint (executeCommand).
	// Nothing in this process calls it yet -- spec.md places transport
	// and controllers out of scope -- but it is wired here so an
	// embedding caller (e.g. a future HTTP/gRPC front door) can reach it
	// without re-doing this file's construction.
	Commands *command.Service
}

// Run starts every supervised component and blocks until all of them
// return, mirroring components/crm and components/consumer's
// libCommons.NewLauncher(...).Run() composition.
func (s *Service) Run() {
	libCommons.NewLauncher(
		libCommons.WithLogger(s.logger),
		libCommons.RunApp("Outbox Dispatcher", &dispatcherRunner{d: s.dispatcher}),
		libCommons.RunApp("Queue Worker", &workerRunner{w: s.worker}),
		libCommons.RunApp("Health Server", s.health),
	).Run()
}

// InitService loads Config from the environment and wires every adapter,
// service, and supervised component into a Service. It panics on any
// unrecoverable wiring failure, matching the teacher's fail-fast
// construction style.
func InitService() *Service {
	cfg := &Config{}

	if err := libCommons.SetConfigFromEnvVars(cfg); err != nil {
		panic(err)
	}

	logger, err := libZap.InitializeLoggerWithError()
	if err != nil {
		panic(err)
	}

	telemetry, err := libOpentelemetry.InitializeTelemetryWithError(&libOpentelemetry.TelemetryConfig{
		LibraryName:               cfg.OtelLibraryName,
		ServiceName:               cfg.OtelServiceName,
		ServiceVersion:            cfg.OtelServiceVersion,
		DeploymentEnv:             cfg.OtelDeploymentEnv,
		CollectorExporterEndpoint: cfg.OtelColExporterEndpoint,
		EnableTelemetry:           cfg.EnableTelemetry,
		Logger:                    logger,
	})
	if err != nil {
		panic(err)
	}

	_ = telemetry

	postgresPrimary := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.PrimaryDBHost, cfg.PrimaryDBUser, cfg.PrimaryDBPassword, cfg.PrimaryDBName, cfg.PrimaryDBPort)
	postgresReplica := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		cfg.ReplicaDBHost, cfg.ReplicaDBUser, cfg.ReplicaDBPassword, cfg.ReplicaDBName, cfg.ReplicaDBPort)

	postgresConnection := &libPostgres.PostgresConnection{
		ConnectionStringPrimary: postgresPrimary,
		ConnectionStringReplica: postgresReplica,
		PrimaryDBName:           cfg.PrimaryDBName,
		ReplicaDBName:           cfg.ReplicaDBName,
		Component:               ApplicationName,
		Logger:                  logger,
		MaxOpenConnections:      cfg.MaxOpenConnections,
		MaxIdleConnections:      cfg.MaxIdleConnections,
	}

	mongoSource := fmt.Sprintf("%s://%s:%s@%s:%s",
		cfg.MongoURI, cfg.MongoDBUser, cfg.MongoDBPassword, cfg.MongoDBHost, cfg.MongoDBPort)

	if cfg.MongoMaxPoolSize <= 0 {
		cfg.MongoMaxPoolSize = 100
	}

	mongoConnection := &libMongo.MongoConnection{
		ConnectionStringSource: mongoSource,
		Database:               cfg.MongoDBName,
		Logger:                 logger,
		MaxPoolSize:            uint64(cfg.MongoMaxPoolSize),
	}

	rabbitSource := fmt.Sprintf("amqp://%s:%s@%s:%s",
		cfg.RabbitMQUser, cfg.RabbitMQPass, cfg.RabbitMQHost, cfg.RabbitMQPortHost)

	rabbitConnection := &libRabbitmq.RabbitMQConnection{
		ConnectionStringSource: rabbitSource,
		HealthCheckURL:         cfg.RabbitMQHealthCheckURL,
		Host:                   cfg.RabbitMQHost,
		Port:                   cfg.RabbitMQPortAMQP,
		User:                   cfg.RabbitMQUser,
		Pass:                   cfg.RabbitMQPass,
		Queue:                  cfg.RabbitMQQueue,
		Logger:                 logger,
	}

	actionRepo := actionrepo.NewActionPostgreSQLRepository(postgresConnection)
	policyRepo := policyrepo.NewPolicyPostgreSQLRepository(postgresConnection)
	store := eventstore.NewStore(postgresConnection)
	outboxRepo := outbox.NewOutboxPostgreSQLRepository(postgresConnection)
	ledgerRepo := ledger.NewLedgerPostgreSQLRepository(postgresConnection)
	ledgerService := ledgersvc.NewPostgresService(ledgerRepo, postgresConnection)

	baseProducer := rabbitmq.NewProducerRabbitMQ(rabbitConnection)
	cbManager := libCircuitBreaker.NewManager(logger)
	cb := cbManager.GetOrCreate("rabbitmq-producer", libCircuitBreaker.DefaultConfig())
	producer := rabbitmq.NewProducerCircuitBreaker(baseProducer, cb)

	consumer := rabbitmq.NewConsumerRabbitMQ(rabbitConnection)

	auditRepo := mongoaudit.NewAuditMongoDBRepository(mongoConnection)
	auditHandler := audit.NewHandler(auditRepo, cfg.AuditSimulateFailure)

	registry := worker.NewRegistry()
	registry.Register(auditHandler)

	commands := command.NewService(store, actionRepo, policyRepo)

	redisConnection := &redisadapter.Connection{ConnectionStringSource: cfg.RedisURI, Logger: logger}

	redisClient, err := redisConnection.GetClient(context.Background())
	if err != nil {
		panic(err)
	}

	rateLimiter := mratelimit.NewLimiter(redisClient, cfg.HandlerRateLimitPerSecond, cfg.HandlerRateLimitWindow)

	d := dispatcher.NewDispatcher(logger, outboxRepo, producer, cfg.OutboxMaxWorkers, cfg.OutboxBatchSize, cfg.OutboxPollInterval)
	w := worker.NewWorker(logger, consumer, registry, ledgerService, cfg.WorkerConcurrency).WithRateLimiter(rateLimiter)

	health := NewHealthServer(cfg.HealthAddress, logger, producer, consumer).WithMetrics(outboxRepo, d.Trigger)

	return &Service{
		logger:     logger,
		dispatcher: d,
		worker:     w,
		health:     health,
		Commands:   commands,
	}
}
