package rest

import (
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/course-catalog/internal/hierarchy"
	infra "github.com/pot-code/course-catalog/internal/infrastructure"
	"github.com/pot-code/course-catalog/internal/infrastructure/driver"
	"github.com/pot-code/course-catalog/internal/infrastructure/validate"
	"github.com/pot-code/course-catalog/internal/interfaces/rest/handler"
	"github.com/pot-code/course-catalog/internal/interfaces/rest/middleware"
	"github.com/pot-code/course-catalog/internal/participant"
	"github.com/pot-code/course-catalog/internal/progress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// Dependencies of the http transport, Conn, KV and ParticipantUseCase may
// be nil when the matching store is not configured
type Dependencies struct {
	Conn               driver.ITransactionalDB
	KV                 driver.KeyValueDB
	Gatherer           prometheus.Gatherer
	HierarchyService   hierarchy.HierarchyService
	ProgressService    progress.ProgressService
	ParticipantUseCase participant.ParticipantUseCase
	ScriptLoader       *progress.ScriptLoader
	Policy             progress.Policy
}

// NewServer create the echo app with every route registered
func NewServer(option *infra.AppConfig, deps *Dependencies, logger *zap.Logger) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator()
	)
	app.HideBanner = true

	registerLivenessProbe(app, deps.Conn, deps.KV)
	registerMetricsEndpoint(app, deps.Gatherer)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)

		app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
			Skipper: func(e echo.Context) bool {
				uri := e.Request().RequestURI
				return strings.HasPrefix(uri, "/healthz") || strings.HasPrefix(uri, "/metrics")
			},
		}))
	}
	app.Use(middleware.ErrorHandling(
		&middleware.ErrorHandlingOption{
			Handler: func(c echo.Context, err error) {
				traceID := c.Response().Header().Get(echo.HeaderXRequestID)
				code, body := handler.ErrorResponse(err, traceID)
				c.JSON(code, body)
				if code >= http.StatusInternalServerError {
					logger.Error(err.Error(), zap.String("trace.id", traceID))
				} else {
					logger.Debug(err.Error(), zap.String("trace.id", traceID), zap.Int("http.response.status_code", code))
				}
			},
		},
	))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())
	app.Use(middleware.AbortRequest(&middleware.AbortRequestOption{
		Skipper: func(e echo.Context) bool {
			return strings.Contains(e.Request().RequestURI, "/ws/")
		},
		Timeout: option.RequestTimeout,
	}))

	var (
		CatalogHandler  = handler.NewCatalogHandler(deps.HierarchyService, validator)
		ProgressHandler = handler.NewProgressHandler(deps.ProgressService, deps.HierarchyService,
			deps.ScriptLoader, deps.Policy, validator)
		StreamHandler = handler.NewStreamHandler(deps.HierarchyService, deps.ProgressService)
	)

	groups := []*apiGroup{
		{
			prefix: "/catalog",
			mode:   bindMode(hierarchy.ModeBrowse),
			routes: catalogReadRoutes(CatalogHandler),
		},
		{
			prefix: "/admin",
			mode:   bindMode(hierarchy.ModeAdmin),
			routes: append(catalogReadRoutes(CatalogHandler),
				post("/topics", CatalogHandler.HandleCreateTopic),
				put("/topics/order", CatalogHandler.HandleReorderTopics),
				patch("/topics/:id", CatalogHandler.HandleUpdateTopic),
				remove("/topics/:id", CatalogHandler.HandleDeleteTopic),
				post("/contents", CatalogHandler.HandleCreateContent),
				put("/contents/order", CatalogHandler.HandleReorderContents),
				patch("/contents/:id", CatalogHandler.HandleUpdateContent),
				remove("/contents/:id", CatalogHandler.HandleDeleteContent),
				post("/lessons", CatalogHandler.HandleCreateLesson),
				put("/lessons/order", CatalogHandler.HandleReorderLessons),
				patch("/lessons/:id", CatalogHandler.HandleUpdateLesson),
				remove("/lessons/:id", CatalogHandler.HandleDeleteLesson),
			),
		},
		{
			prefix: "/progress",
			routes: []*route{
				post("", ProgressHandler.HandleSaveProgress),
				get("/:participant_id", ProgressHandler.HandleListProgress),
				get("/:participant_id/:lesson_id", ProgressHandler.HandleGetProgress),
			},
		},
		{
			prefix: "/ws",
			routes: []*route{
				stream("/topics", StreamHandler.HandleTopicStream),
				stream("/topics/:id/contents", StreamHandler.HandleContentStream),
				stream("/contents/:id/lessons", StreamHandler.HandleLessonStream),
				stream("/progress/:participant_id", StreamHandler.HandleProgressStream),
				stream("/playback/:participant_id", ProgressHandler.HandlePlayback),
			},
		},
	}
	if deps.ParticipantUseCase != nil {
		ParticipantHandler := handler.NewParticipantHandler(deps.ParticipantUseCase)
		groups = append(groups, &apiGroup{
			prefix: "/participants",
			routes: []*route{
				post("", ParticipantHandler.HandleRegister),
				post("/enter", ParticipantHandler.HandleEnter),
			},
		})
	}

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{echo_middleware.RequestID(), middleware.SetTraceLogger(logger)},
			groups:      groups,
		})
	return app
}

// Serve start the server, blocks until it stops
func Serve(app *echo.Echo, option *infra.AppConfig, logger *zap.Logger) error {
	printRoutes(app, logger)
	return app.Start(fmt.Sprintf("%s:%d", option.Host, option.Port))
}

func catalogReadRoutes(ch *handler.CatalogHandler) []*route {
	return []*route{
		get("/topics", ch.HandleListTopics),
		get("/topics/:id", ch.HandleGetTopic),
		get("/topics/:id/contents", ch.HandleListContents),
		get("/contents/:id", ch.HandleGetContent),
		get("/contents/:id/lessons", ch.HandleListLessons),
		get("/lessons/:id", ch.HandleGetLesson),
	}
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Info("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, db driver.ITransactionalDB, rdb driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if db != nil && db.Ping() != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		if rdb != nil && rdb.Ping() != nil {
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusOK)
	})
}

func registerMetricsEndpoint(app *echo.Echo, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	app.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
