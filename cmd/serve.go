package cmd

import (
	"database/sql"
	"fmt"
	"net"

	"github.com/vibast-solutions/ms-go-tasks/app/controller"
	"github.com/vibast-solutions/ms-go-tasks/app/entity"
	"github.com/vibast-solutions/ms-go-tasks/app/middleware"
	"github.com/vibast-solutions/ms-go-tasks/app/repository"
	"github.com/vibast-solutions/ms-go-tasks/app/service"
	"github.com/vibast-solutions/ms-go-tasks/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server for the task-management service.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	revocationStore := newRevocationStore(cfg)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	hasher := service.NewPasswordHasher()
	tokens := service.NewTokenService(cfg)
	revocation := service.NewRevocationRegistry(revocationStore)
	authService := service.NewAuthService(userRepo, hasher, tokens, revocation, cfg)
	taskService := service.NewTaskService(taskRepo, cfg)

	startHTTPServer(cfg, db, authService, taskService)
}

// newRevocationStore selects Redis when configured, otherwise the in-process
// fallback. The fallback has no cross-instance visibility: a token revoked on
// this instance stays valid on every other one.
func newRevocationStore(cfg *config.Config) service.RevocationStore {
	if cfg.RedisAddr == "" {
		logrus.Warn("REDIS_ADDR not set; using in-memory token revocation (single-instance only)")
		return service.NewMemoryRevocationStore()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	logrus.WithField("addr", cfg.RedisAddr).Info("Using Redis token revocation store")
	return repository.NewRedisRevocationStore(client)
}

func startHTTPServer(cfg *config.Config, db *sql.DB, authService *service.AuthService, taskService *service.TaskService) {
	e := echo.New()
	defer e.Close()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authController := controller.NewAuthController(authService)
	taskController := controller.NewTaskController(taskService)
	healthController := controller.NewHealthController(db)
	authMiddleware := middleware.NewAuthMiddleware(authService)

	e.GET("/health", healthController.Health)

	auth := e.Group("/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/refresh-token", authController.RefreshToken)

	authProtected := auth.Group("")
	authProtected.Use(authMiddleware.RequireAuth)
	authProtected.POST("/logout", authController.Logout)
	authProtected.POST("/logout-all", authController.LogoutAll)
	authProtected.POST("/change-password", authController.ChangePassword)

	users := e.Group("/users")
	users.Use(authMiddleware.RequireAuth)
	users.POST("/:id/deactivate", authController.DeactivateUser, authMiddleware.RequireRole(entity.RoleAdmin))
	users.POST("/:id/activate", authController.ActivateUser, authMiddleware.RequireRole(entity.RoleAdmin))

	tasks := e.Group("/tasks")
	tasks.Use(authMiddleware.RequireAuth)
	tasks.POST("", taskController.Create)
	tasks.GET("", taskController.List)
	tasks.GET("/:id", taskController.Get)
	tasks.PUT("/:id", taskController.Update)
	tasks.PATCH("/:id", taskController.Patch)
	tasks.PATCH("/:id/complete", taskController.Complete)
	tasks.DELETE("/:id", taskController.Delete)

	httpAddr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)
	logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
	if err := e.Start(httpAddr); err != nil {
		logrus.WithError(err).Fatal("Failed to start HTTP server")
	}
}

func configureLogging(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
	}
	logrus.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", cfg.LogFormat)
	}
	return nil
}
