package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	"tableflow/internal/audit"
	"tableflow/internal/config"
	"tableflow/internal/constants"
	"tableflow/internal/deduplication"
	"tableflow/internal/engine"
	"tableflow/internal/logger"
	"tableflow/internal/management"
	"tableflow/internal/notification"
	"tableflow/internal/realtime"
	"tableflow/internal/rules"
	"tableflow/internal/tables"
	appbootstrap "tableflow/pkg/bootstrap"
	"tableflow/pkg/cel"
	"tableflow/pkg/health"
	"tableflow/pkg/metrics"
	"tableflow/pkg/middleware"
	"tableflow/pkg/migrations"
	"tableflow/pkg/ratelimit"
	"tableflow/pkg/tracing"
)

const serviceName = "tableflow"

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *appbootstrap.DatabaseConnector
	dbs            *appbootstrap.Databases
	brokers        *appbootstrap.Brokers
	tracerProvider *tracing.TracerProvider

	clock    clock.Clock
	location *time.Location

	guards   *cel.Evaluator
	hub      *realtime.Hub
	relay    *realtime.Relay
	engine   *engine.Engine
	consumer *engine.Consumer
	monitor  *engine.SessionMonitor
	rulesSvc management.Service

	router *gin.Engine
	server *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: appbootstrap.NewDatabaseConnector(cfg, log),
		clock:       clock.New(),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	loc, err := a.config.Engine.Location()
	if err != nil {
		return fmt.Errorf("invalid engine timezone: %w", err)
	}
	a.location = loc

	tp, err := tracing.Init(a.config.Tracing, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAll()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	brokers, err := appbootstrap.InitBroker(a.config.Broker, serviceName+"-engine", a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}
	a.brokers = brokers

	a.initRealtime()

	if a.guards, err = cel.NewEvaluator(); err != nil {
		return fmt.Errorf("failed to create guard evaluator: %w", err)
	}

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := a.initManagement(); err != nil {
		return fmt.Errorf("failed to initialize management: %w", err)
	}

	a.initRouter(ctx)
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeoutSeconds * time.Second,
		WriteTimeout: a.config.Server.WriteTimeoutSeconds * time.Second,
	}
	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	dbs, err := a.dbConnector.Connect(initCtx)
	if err != nil {
		return err
	}
	a.dbs = dbs

	if err := migrations.EnsureMongoIndexes(initCtx, dbs.MongoDB); err != nil {
		return fmt.Errorf("failed to ensure mongo indexes: %w", err)
	}

	if a.config.Database.RunMigrations && dbs.Postgres != nil {
		if err := migrations.RunPostgres(dbs.Postgres); err != nil {
			return fmt.Errorf("failed to run postgres migrations: %w", err)
		}
		a.logger.InfowCtx(ctx, "PostgreSQL migrations applied")
	}
	return nil
}

// initRealtime picks the broadcaster. With Redis every replica publishes to
// a shared channel and a relay fans frames into the local hub.
func (a *App) initRealtime() {
	if !a.config.Realtime.Enabled {
		return
	}
	a.hub = realtime.NewHub(a.logger)
	if a.dbs.Redis != nil && a.config.Realtime.RedisChannel != "" {
		a.relay = realtime.NewRelay(a.dbs.Redis, a.config.Realtime.RedisChannel, a.hub, a.logger)
	}
}

func (a *App) broadcaster() realtime.Broadcaster {
	switch {
	case a.hub == nil:
		return realtime.NopBroadcaster()
	case a.relay != nil:
		return realtime.NewRedisBroadcaster(a.dbs.Redis, a.config.Realtime.RedisChannel)
	default:
		return realtime.NewLocalBroadcaster(a.hub)
	}
}

func (a *App) initEngine() error {
	db := a.dbs.MongoDB
	broadcaster := a.broadcaster()

	dispatcher := notification.NewDispatcherFromConfig(a.config.Notification, a.config.CircuitBreaker, broadcaster, a.logger)

	recorder := audit.NewRecorder(a.logger)
	if a.config.Engine.Audit.Postgres && a.dbs.Postgres != nil {
		recorder.Add("postgres", audit.NewRepository(a.dbs.Postgres))
	}
	if a.config.Engine.Audit.Kafka && a.brokers.Enabled() {
		recorder.Add("kafka", audit.NewPublisher(a.brokers.Producer, topicOr(a.config.Broker.Kafka.AuditTopic, constants.DefaultAuditTopic)))
	}

	opts := []engine.Option{
		engine.WithSavePolicy(engine.DefaultSavePolicy().Override(a.config.Engine.StatusSave)),
		engine.WithGuardEvaluator(a.guards),
	}
	if recorder.Len() > 0 {
		opts = append(opts, engine.WithRecorder(recorder))
	}

	eng, err := engine.New(engine.Dependencies{
		Rules:       rules.NewRepository(db),
		Tables:      tables.NewStore(db),
		Orders:      tables.NewOrderStore(db),
		Activity:    tables.NewActivityStore(db),
		Notifier:    dispatcher,
		Broadcaster: broadcaster,
		Clock:       a.clock,
		Location:    a.location,
		Logger:      a.logger,
	}, opts...)
	if err != nil {
		return err
	}
	a.engine = eng

	if a.brokers.Enabled() {
		var claimer engine.Claimer
		if a.config.Deduplication.Enabled && a.dbs.Redis != nil {
			repo := deduplication.NewRepository(a.dbs.Redis)
			if a.config.CircuitBreaker.Enabled {
				repo = deduplication.NewCircuitBreakerRepository(repo, a.config.CircuitBreaker)
			}
			claimer = deduplication.NewService(repo, a.config.Deduplication, a.logger)
		}
		a.consumer = engine.NewConsumer(eng, claimer, a.logger)
	}

	if a.config.Engine.SessionMonitor.Enabled {
		a.monitor = engine.NewSessionMonitor(eng, tables.NewStore(db), a.clock, a.config.Engine.SessionMonitor.Interval(), a.logger)
	}
	return nil
}

func (a *App) initManagement() error {
	svc, err := newRuleService(a.dbs, a.brokers, a.config, a.clock, a.location, a.logger,
		management.WithGuardEvaluator(a.guards))
	if err != nil {
		return err
	}
	a.rulesSvc = svc
	return nil
}

// newRuleService wires rule administration. Versioning and execution history
// need PostgreSQL; rule change events need a broker.
func newRuleService(dbs *appbootstrap.Databases, brokers *appbootstrap.Brokers, cfg *config.Config, clk clock.Clock, loc *time.Location, log logger.Logger, extra ...management.ServiceOption) (management.Service, error) {
	opts := append([]management.ServiceOption{
		management.WithTables(tables.NewStore(dbs.MongoDB), tables.NewOrderStore(dbs.MongoDB)),
		management.WithClock(clk, loc),
	}, extra...)
	if dbs.Postgres != nil {
		opts = append(opts,
			management.WithVersioning(management.NewVersioningRepository(dbs.Postgres)),
			management.WithExecutions(audit.NewRepository(dbs.Postgres)),
		)
	}
	if brokers.Enabled() {
		topic := topicOr(cfg.Broker.Kafka.RuleUpdateTopic, constants.DefaultRuleUpdateTopic)
		opts = append(opts, management.WithRuleEvents(management.NewRuleEventPublisher(brokers.Producer, topic)))
	}
	return management.NewService(rules.NewRepository(dbs.MongoDB), log, opts...)
}

func (a *App) initRouter(ctx context.Context) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(serviceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.RequestIDMiddleware())

	engine.NewHandler(a.engine, tables.NewActivityStore(a.dbs.MongoDB), a.logger).RegisterRoutes(router)

	var adminMiddleware []gin.HandlerFunc
	if a.config.Management.RateLimit.Enabled {
		rl := ratelimit.FromConfig(a.config.Management.RateLimit)
		adminMiddleware = append(adminMiddleware, ratelimit.RateLimitMiddleware(ctx, rl))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}
	management.NewHandler(a.rulesSvc, a.logger).RegisterRoutes(router, adminMiddleware...)

	if a.hub != nil {
		prefix := a.config.Realtime.SockJSPrefix
		if prefix == "" {
			prefix = "/realtime"
		}
		realtime.NewServer(a.hub, prefix, a.logger).RegisterRoutes(router)
	}

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.dbs.Mongo))
	if a.dbs.Postgres != nil {
		healthRegistry.RegisterOptional(health.NewPostgreSQLChecker(a.dbs.Postgres))
	}
	if a.dbs.Redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.dbs.Redis))
	}
	if a.brokers.Enabled() {
		healthRegistry.RegisterOptional(health.NewKafkaChecker(a.config.Broker.Kafka.Brokers))
	}
	router.GET("/health", healthRegistry.Handler())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerSwagger(router)

	a.router = router
}

func registerSwagger(router gin.IRoutes) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Run blocks until ctx is done or a component fails, then shuts down.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "HTTP server starting", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.consumer != nil {
		topic := topicOr(a.config.Broker.Kafka.TriggerTopic, constants.DefaultTriggerTopic)
		g.Go(func() error {
			a.logger.InfowCtx(gCtx, "Starting trigger consumer", "topic", topic)
			return ignoreCanceled(a.brokers.Consumer.Consume(gCtx, topic, a.consumer.Handler()))
		})
	}

	if a.monitor != nil {
		g.Go(func() error {
			return a.monitor.Start(gCtx)
		})
	}

	if a.relay != nil {
		g.Go(func() error {
			return a.relay.Run(gCtx)
		})
	}

	g.Go(func() error {
		<-gCtx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, constants.ShutdownTimeout)
	defer cancel()

	var errs []error

	if a.server != nil {
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown error: %w", err))
		}
	}

	if a.monitor != nil {
		a.monitor.Stop()
	}
	if a.engine != nil {
		a.engine.Stop()
	}

	errs = append(errs, a.brokers.Close()...)

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.Shutdown(shutdownCtx, a.dbs)...)

	if len(errs) > 0 {
		for _, err := range errs {
			a.logger.ErrorwCtx(ctx, "Shutdown error", "error", err)
		}
		return fmt.Errorf("shutdown completed with %d errors", len(errs))
	}

	a.logger.InfowCtx(ctx, "Shutdown complete")
	return nil
}

func runMigrations(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	connector := appbootstrap.NewDatabaseConnector(cfg, log)
	dbs, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer connector.Shutdown(context.Background(), dbs)

	if err := migrations.EnsureMongoIndexes(ctx, dbs.MongoDB); err != nil {
		return fmt.Errorf("failed to ensure mongo indexes: %w", err)
	}
	log.InfowCtx(ctx, "MongoDB indexes ensured")

	if dbs.Postgres == nil {
		log.WarnwCtx(ctx, "PostgreSQL not configured; skipping SQL migrations")
		return nil
	}
	if err := migrations.RunPostgres(dbs.Postgres); err != nil {
		return fmt.Errorf("failed to run postgres migrations: %w", err)
	}
	version, dirty, err := migrations.PostgresVersion(dbs.Postgres)
	if err != nil {
		return err
	}
	log.InfowCtx(ctx, "PostgreSQL migrations applied", "version", version, "dirty", dirty)
	return nil
}

func seedDefaults(ctx context.Context, cfg *config.Config, log logger.Logger, tenantID string) error {
	connector := appbootstrap.NewDatabaseConnector(cfg, log)
	dbs, err := connector.Connect(ctx)
	if err != nil {
		return err
	}
	defer connector.Shutdown(context.Background(), dbs)

	// Rule events are skipped here; running engines reload rules per event.
	loc, err := cfg.Engine.Location()
	if err != nil {
		return err
	}
	svc, err := newRuleService(dbs, &appbootstrap.Brokers{}, cfg, clock.New(), loc, log)
	if err != nil {
		return err
	}

	ctx = management.WithChangedBy(ctx, "cli", "")
	result, err := svc.SeedDefaults(ctx, tenantID)
	if err != nil {
		return err
	}
	log.InfowCtx(ctx, "Default rules seeded",
		"tenant_id", tenantID,
		"created", len(result.Created),
		"skipped", len(result.Skipped),
	)
	return nil
}

func topicOr(topic, fallback string) string {
	if topic == "" {
		return fallback
	}
	return topic
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
