// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"vr-datastreamer/internal/config"
	"vr-datastreamer/internal/database"
	"vr-datastreamer/internal/events"
	"vr-datastreamer/internal/handler"
	"vr-datastreamer/internal/middleware"
	"vr-datastreamer/internal/service"
	"vr-datastreamer/internal/utils"
)

// Services bundles the services the routes expose
type Services struct {
	Motor     *service.MotorService
	Headset   *service.HeadsetService
	Recording *service.RecordingService
	Discovery *service.DiscoveryService
	Status    *service.StatusService
}

// Router holds all dependencies for routing
type Router struct {
	config    *config.Config
	logger    *zap.Logger
	db        *database.DB
	bus       *events.Bus
	services  Services
	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db is nil when the catalog is disabled.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	bus *events.Bus,
	services Services,
) *Router {
	return &Router{
		config:   config,
		logger:   logger,
		db:       db,
		bus:      bus,
		services: services,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if r.config.IsDebugEnabled() {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger, "/health", "/ready", "/live", "/ws/", "/swagger/"))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Debug("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	s := r.services

	healthHandler := handler.NewHealthHandler(r.db, s.Status, r.config, r.logger)
	discoveryHandler := handler.NewDiscoveryHandler(s.Discovery, s.Status, r.logger)
	motorHandler := handler.NewMotorHandler(s.Motor, r.logger)
	headsetHandler := handler.NewHeadsetHandler(s.Headset, r.config.Discovery.ManualTimeout, r.logger)
	recordingHandler := handler.NewRecordingHandler(s.Recording, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(
		r.bus,
		s.Status,
		handler.ServiceCommands(s.Motor, s.Discovery, s.Recording, s.Status),
		r.config.Security.AllowedOrigins,
		r.logger,
	)

	r.addHealthRoutes(router, healthHandler)

	apiV1 := router.Group("/api/v1")
	r.addDiscoveryRoutes(apiV1, discoveryHandler)
	r.addMotorRoutes(apiV1, motorHandler)
	r.addHeadsetRoutes(apiV1, headsetHandler)
	r.addRecordingRoutes(apiV1, recordingHandler)
	apiV1.GET("/ws/stats", func(c *gin.Context) {
		utils.SuccessResponse(c, http.StatusOK, "WebSocket connections", r.wsHandler.GetConnectionStats())
	})

	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addHealthRoutes sets up health check routes
func (r *Router) addHealthRoutes(router *gin.Engine, handler *handler.HealthHandler) {
	health := router.Group("")
	{
		health.GET("/health", handler.HealthCheck)
		health.GET("/ready", handler.ReadinessCheck)
		health.GET("/live", handler.LivenessCheck)
	}
}

// addDiscoveryRoutes sets up status and discovery pass routes
func (r *Router) addDiscoveryRoutes(api *gin.RouterGroup, handler *handler.DiscoveryHandler) {
	api.GET("/status", handler.GetStatus)

	discovery := api.Group("/discovery")
	{
		discovery.GET("", handler.GetDiscovery)
		discovery.POST("/run", handler.RunDiscovery)
	}
}

// addMotorRoutes sets up motor controller routes
func (r *Router) addMotorRoutes(api *gin.RouterGroup, handler *handler.MotorHandler) {
	motor := api.Group("/motor")
	{
		motor.POST("/connect", handler.ConnectMotor)
		motor.POST("/disconnect", handler.DisconnectMotor)
		motor.POST("/test", handler.TestMotor)
		motor.GET("/candidates", handler.ListCandidates)
	}
}

// addHeadsetRoutes sets up headset stream routes
func (r *Router) addHeadsetRoutes(api *gin.RouterGroup, handler *handler.HeadsetHandler) {
	headset := api.Group("/headset")
	{
		headset.POST("/discover", handler.DiscoverHeadset)
		headset.POST("/connect", handler.ConnectHeadset)
		headset.POST("/disconnect", handler.DisconnectHeadset)
	}
}

// addRecordingRoutes sets up recording and catalog routes
func (r *Router) addRecordingRoutes(api *gin.RouterGroup, handler *handler.RecordingHandler) {
	recording := api.Group("/recording")
	{
		recording.GET("", handler.GetCurrentRecording)
		recording.POST("/start", handler.StartRecording)
		recording.POST("/stop", handler.StopRecording)
	}

	recordings := api.Group("/recordings")
	{
		recordings.GET("", handler.ListRecordings)
		recordings.GET("/:id", handler.GetRecording)
		recordings.GET("/:id/stats", handler.GetRecordingStats)
	}
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}

// Close disconnects WebSocket clients. Call it before stopping the bus.
func (r *Router) Close() {
	if r.wsHandler != nil {
		r.wsHandler.Close()
	}
}
