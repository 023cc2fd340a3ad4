package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "live-poll/internal/handler/http"
	wsHandler "live-poll/internal/handler/websocket"
	"live-poll/internal/hub"
	gormpersistence "live-poll/internal/infra/persistence/gorm"
	"live-poll/internal/infra/setup"
	redisstate "live-poll/internal/infra/state/redis"
	"live-poll/internal/middleware"
	"live-poll/internal/service"
	"live-poll/internal/session"
	"live-poll/internal/tasks"
	"live-poll/internal/worker"
)

// App holds every long-lived component of the process.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	Registry    *session.Registry
	Sweeper     *session.Sweeper
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
	cancel         context.CancelFunc
}

// NewLogger builds the process logger: JSON in production, text otherwise.
func NewLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	return log
}

// NewApp loads config and wires every component.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := NewLogger(cfg)
	logrus.SetLevel(log.GetLevel())
	logrus.SetFormatter(log.Formatter)
	log.WithFields(logrus.Fields{"env": cfg.AppEnv, "level": log.GetLevel().String()}).Info("Configuration loaded")

	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Redis and task queue clients initialized")

	roomRepo := gormpersistence.NewGormRoomRepository(db)
	pollRepo := gormpersistence.NewGormPollRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)

	clock := session.SystemClock()
	hubInstance := hub.NewHub(log)
	recorder := tasks.NewRecorder(asynqClient, log)
	registry := session.NewRegistry(clock, hubInstance, recorder, log)
	sweeper := session.NewSweeper(registry, clock, cfg.SweepInterval, log)

	roomService := service.NewRoomService(roomRepo, registry, recorder)
	pollService := service.NewPollService(roomRepo, pollRepo, registry)
	resultService := service.NewResultService(pollService, pollRepo, stateRepo, cfg.ResultCacheTTL)

	roomHandler := httpHandler.NewRoomHandler(roomService, pollService)
	pollHandler := httpHandler.NewPollHandler(pollService, resultService)
	socketHandler := wsHandler.NewWebSocketHandler(hubInstance, roomService, pollService, wsHandler.Config{
		QueueSize:     cfg.SubscriberQueueSize,
		HostPolicy:    cfg.HostPolicy,
		AllowedOrigin: cfg.CORSOrigin,
	})

	workerServer := worker.NewWorkerServer(redisClientOpt, cfg.WorkerConcurrency, worker.Handlers{
		History:    worker.NewPollHistoryHandler(pollRepo, stateRepo, cfg.ResultCacheTTL),
		RoomClosed: worker.NewRoomClosedHandler(stateRepo),
		Reaper:     worker.NewRoomReapHandler(registry, hubInstance, roomRepo, roomService, clock, cfg.RoomIdleTTL),
	}, log)

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORS(cfg.CORSOrigin))

	auth := middleware.Auth(cfg.JWTSecret)
	api := router.Group("/api", auth, middleware.RateLimit(stateRepo, "api", cfg.RateLimitMax, cfg.RateLimitWindow))
	{
		api.POST("/rooms", roomHandler.CreateRoom)
		api.GET("/rooms/:roomId", roomHandler.GetRoom)
		api.DELETE("/rooms/:roomId", roomHandler.DeactivateRoom)
		api.GET("/rooms/:roomId/state", pollHandler.State)
		api.POST("/rooms/:roomId/polls", pollHandler.StartPoll)
		api.POST("/rooms/:roomId/polls/:pollId/votes",
			middleware.RateLimit(stateRepo, "vote", cfg.VoteRateLimitMax, cfg.VoteRateLimitWindow),
			pollHandler.SubmitVote)
		api.GET("/rooms/:roomId/polls/:pollId/results", pollHandler.Results)
	}
	router.GET("/ws/room/:roomId", auth, socketHandler.HandleConnection)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Application assembled")
	return &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		Registry:       registry,
		Sweeper:        sweeper,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}, nil
}

// Start launches the sweeper, the worker, the scheduler and the HTTP server.
func (a *App) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	go func() {
		_ = a.Sweeper.Run(ctx)
	}()

	go a.AsynqServer.Start()
	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	scheduler := asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   a.Log,
	})

	payload, err := tasks.NewRoomReapTask()
	if err != nil {
		a.Log.Errorf("Failed to create room reap task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeRoomReap, payload)

	schedule := a.Config.ReapSchedule
	entryID, err := scheduler.Register(schedule, task, asynq.Queue(tasks.QueueLow), asynq.Unique(30*time.Second))
	if err != nil {
		a.Log.Errorf("Could not register periodic room reap task: %v", err)
		return
	}
	a.Log.Infof("Periodic room reap task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	a.scheduler = scheduler
	go func() {
		if err := scheduler.Run(); err != nil {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown stops components in reverse dependency order.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.cancel != nil {
		a.cancel()
	}
	// Closing the sessions ends voting polls and enqueues their records
	// before the task client goes away.
	for _, s := range a.Registry.Active() {
		a.Registry.Evict(s.RoomID())
	}

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}
	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}
	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}
	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Log.Errorf("Error closing database connection: %v", err)
			}
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + redactQuery(c.Request.URL.Query())
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})
		if user, ok := c.Get("user_id"); ok {
			entry = entry.WithField("user_id", user)
		}

		switch {
		case errorMessage != "":
			entry.Error(errorMessage)
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}

// redactQuery hides the websocket token parameter so bearer tokens never
// reach the logs.
func redactQuery(q url.Values) string {
	if q.Has("token") {
		q.Set("token", "REDACTED")
	}
	return q.Encode()
}

// CORS allows allowedOrigin and short-circuits preflight requests.
func CORS(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
