package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
	"github.com/pot-code/course-catalog/internal/infrastructure/logging"
	"github.com/pot-code/course-catalog/internal/infrastructure/uuid"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/interfaces/rest"
	"github.com/pot-code/course-catalog/internal/participant"
	"github.com/pot-code/course-catalog/internal/progress"
	"github.com/pot-code/course-catalog/internal/remote"
	"github.com/pot-code/course-catalog/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const (
	hydrateTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	participantCode = 6
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	var dbConn driver.ITransactionalDB
	if option.RemoteAvailable() {
		dbConn, err = driver.GetDBConnection(&driver.DBConfig{
			User:     option.Remote.User,
			Password: option.Remote.Password,
			MaxConn:  option.Remote.MaxConn,
			Protocol: option.Remote.Protocol,
			Driver:   option.Remote.Driver,
			Host:     option.Remote.Host,
			Port:     option.Remote.Port,
			Query:    option.Remote.Query,
			Schema:   option.Remote.Schema,
		})
		if err != nil {
			log.Fatalf("Failed to create DB connection: %s\n", err)
		}
		defer dbConn.Close(context.Background())
		logger.Debug("Create remote connection instance", zap.String("db.driver", option.Remote.Driver),
			zap.String("db.schema", option.Remote.Schema),
			zap.String("db.host", option.Remote.Host),
		)
	} else {
		logger.Info("No remote backend configured, running local only")
	}

	var kv *driver.RedisClient
	if option.Progress.Backend == infra.ProgressBackendKV {
		kv = driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)
		defer kv.Close()
	}

	var (
		registry  = prometheus.NewRegistry()
		metrics   = remote.NewMetrics(registry)
		validator = validate.NewValidator()
		worker    = remote.NewWorker(option.Remote.QueueSize, hydrateTimeout, logger, metrics)
		catalog   = store.NewCatalog(store.WithLogger(logger))
	)
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var backend remote.Backend
	if dbConn != nil {
		backend = remote.NewSQLBackend(dbConn)
	}
	bridge := remote.NewBridge(catalog, backend, worker, metrics, logger)
	if bridge.IsBackendAvailable() {
		ctx, cancel := context.WithTimeout(logging.SetLoggerInContext(context.Background(), logger), hydrateTimeout)
		if err := bridge.Hydrate(ctx); err != nil {
			logger.Warn("Initial hydration failed, starting with an empty catalog", zap.Error(err))
		}
		cancel()
		bridge.StartHydrateLoop(option.Remote.HydrateInterval)
	}

	HierarchyService := hierarchy.NewHierarchyService(catalog, bridge, uuid.NewRandomGenerator(option.Security.IDLength), validator)

	var progressBackend progress.ProgressBackend
	switch option.Progress.Backend {
	case infra.ProgressBackendSQL:
		progressBackend = progress.NewSQLProgressBackend(dbConn)
	case infra.ProgressBackendKV:
		progressBackend = progress.NewKVProgressBackend(kv)
	}
	ProgressService := progress.NewProgressService(progressBackend, worker, metrics, validator, logger)

	var ParticipantUseCase participant.ParticipantUseCase
	if dbConn != nil {
		ParticipantRepo := participant.NewParticipantRepository(dbConn)
		ParticipantUseCase = participant.NewParticipantUseCase(ParticipantRepo,
			uuid.NewCodeGenerator(participantCode), validator, logger)
	}

	deps := &rest.Dependencies{
		Conn:               dbConn,
		Gatherer:           registry,
		HierarchyService:   HierarchyService,
		ProgressService:    ProgressService,
		ParticipantUseCase: ParticipantUseCase,
		Policy: progress.Policy{
			PollInterval:     option.Progress.PollInterval,
			SaveInterval:     option.Progress.SaveInterval,
			CompletionRatio:  option.Progress.CompletionRatio,
			CompletionMargin: option.Progress.CompletionMargin,
			SkipAhead:        option.Progress.SkipAhead,
		},
	}
	if kv != nil {
		deps.KV = kv
	}
	app := rest.NewServer(option, deps, logger)

	go func() {
		if err := rest.Serve(app, option, logger); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown server", zap.Error(err))
	}
	bridge.Close()
	// drains pending mirror jobs
	worker.Close()
	catalog.Close()
}
