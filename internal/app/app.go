package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"bugtracker-service/internal/ai"
	"bugtracker-service/internal/auth"
	"bugtracker-service/internal/bug"
	"bugtracker-service/internal/config"
	"bugtracker-service/internal/db"
	"bugtracker-service/internal/health"
	"bugtracker-service/internal/logger"
	"bugtracker-service/internal/mailer"
	"bugtracker-service/internal/messaging"
	"bugtracker-service/internal/metrics"
	appmiddleware "bugtracker-service/internal/middleware"
	"bugtracker-service/internal/notification"
	"bugtracker-service/internal/project"
	"bugtracker-service/internal/upload"
	"bugtracker-service/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

type App struct {
	config *config.Config
	router chi.Router
	server *http.Server
	logger *slog.Logger
}

func New() *App {
	slogLogger := logger.NewWithServiceContext("bug-tracker", Version)

	// Set as default logger so slog.Info() uses JSON format
	slog.SetDefault(slogLogger)

	slogLogger.Info("initializing application")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slogLogger.Info("config loaded", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: slogLogger,
	}

	database := db.New(cfg.Database)

	ctx := context.Background()
	if err := db.RunMigrations(ctx, database,
		(*user.User)(nil),
		(*auth.RefreshToken)(nil),
		(*project.Project)(nil),
		(*project.ProjectMember)(nil),
		(*bug.Bug)(nil),
		(*notification.Notification)(nil),
	); err != nil {
		log.Fatal("failed to run migrations:", err)
	}

	m, err := metrics.New(ctx, "bug-tracker", slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize metrics", "error", err)
		m = metrics.NewMock()
	}

	app.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	app.router.Use(appmiddleware.Metrics(m.HTTP))

	// Health endpoints (no auth required)
	healthHandler := health.NewHandler()
	healthHandler.RegisterRoutes(app.router)

	// Mail delivery, used by the notification dispatcher
	var mail mailer.Mailer
	if cfg.SMTP.Enabled {
		mail = mailer.NewSMTP(cfg.SMTP)
		slogLogger.Info("SMTP mailer initialized", "host", cfg.SMTP.Host)
	} else {
		mail = mailer.NewNoop(slogLogger)
	}

	// NATS producer setup
	natsProducer, err := messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, slogLogger)
	if err != nil {
		slogLogger.Warn("failed to initialize NATS producer", "error", err)
		natsProducer = nil
	} else {
		slogLogger.Info("NATS producer initialized successfully")
	}

	// Repositories
	userRepo := user.NewRepository(database, m)
	authRepo := auth.NewRepository(database, m)
	projectRepo := project.NewRepository(database, m)
	bugRepo := bug.NewRepository(database, m)
	notificationRepo := notification.NewRepository(database, m)

	dispatcher := notification.NewDispatcher(notificationRepo, mail, natsProducer, slogLogger)

	// Auth setup
	tokens := auth.NewTokenManager(
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.AccessTTLMinutes)*time.Minute,
		time.Duration(cfg.Auth.RefreshTTLHours)*time.Hour,
	)
	authService := auth.NewService(authRepo, userRepo, tokens)
	authHandler := auth.NewHandler(authService, slogLogger)
	authHandler.RegisterRoutes(app.router)

	// Feature services
	userService := user.NewService(userRepo, dispatcher, cfg.Media.BaseURL)
	userHandler := user.NewHandler(userService, notificationRepo, slogLogger)
	userHandler.RegisterPublicRoutes(app.router)

	projectService := project.NewService(projectRepo, userRepo, dispatcher)
	projectHandler := project.NewHandler(projectService, slogLogger)

	bugService := bug.NewService(bugRepo, projectRepo, userRepo, dispatcher)
	bugHandler := bug.NewHandler(bugService, slogLogger)

	notificationHandler := notification.NewHandler(notificationRepo, slogLogger)

	uploadHandler := upload.NewHandler(upload.NewStorage(cfg.Media.Root), slogLogger)

	aiClient := ai.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	aiHandler := ai.NewHandler(aiClient, slogLogger)

	// Create protected routes group for /api endpoints
	app.router.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(tokens, userRepo, slogLogger))
		userHandler.RegisterRoutes(r)
		projectHandler.RegisterRoutes(r)
		bugHandler.RegisterRoutes(r)
		notificationHandler.RegisterRoutes(r)
		uploadHandler.RegisterRoutes(r)
		aiHandler.RegisterRoutes(r)
	})

	// Uploaded assets are served at a stable public prefix mirroring the
	// stored relative paths.
	app.router.Handle(cfg.Media.URLPrefix+"*",
		http.StripPrefix(cfg.Media.URLPrefix, http.FileServer(http.Dir(cfg.Media.Root))))

	slogLogger.Info("application initialized successfully")

	return app
}

func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%s", a.config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  time.Duration(a.config.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(a.config.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(a.config.Server.IdleTimeout) * time.Second,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	return a.server.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")
	return a.server.Shutdown(ctx)
}
