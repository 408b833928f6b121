package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth-backend/internal/config"
	"hearth-backend/internal/couplestore"
	"hearth-backend/internal/handlers"
	"hearth-backend/internal/middleware"
	"hearth-backend/internal/notify"
	"hearth-backend/internal/repository"
	"hearth-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	path := os.Getenv("HEARTH_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.App.Timezone).Msg("Failed to load timezone")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	coupleRepo := repository.NewCoupleRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	checkinRepo := repository.NewCheckinRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	surpriseRepo := repository.NewSurpriseRepository(db)
	ritualRepo := repository.NewRitualRepository(db)
	memoryRepo := repository.NewMemoryRepository(db)

	// Couple cache and realtime fan-out
	wsHub := services.NewWSHub()

	var (
		cache couplestore.Cache
		rdb   *redis.Client
	)
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to ping redis")
		}
		cache = couplestore.NewRedisCache(rdb, cfg.Redis.KeyPrefix)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connection established")
	} else {
		cache = couplestore.NewMemoryCache()
		log.Warn().Msg("Redis not configured, using in-process cache and fan-out")
	}
	coupleStore := couplestore.NewStore(cache, coupleRepo)
	deliverer := services.NewDeliverer(coupleStore, wsHub)

	var publisher services.Publisher
	if rdb != nil {
		redisPub := services.NewRedisPublisher(rdb, cfg.Redis.KeyPrefix)
		publisher = redisPub
		go func() {
			if err := redisPub.Run(ctx, deliverer); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Realtime subscription stopped")
			}
		}()
	} else {
		publisher = services.NewLocalPublisher(deliverer)
	}

	// Push notifications
	var notifier notify.Notifier = notify.LogNotifier{}
	if cfg.APNs.KeyFile != "" {
		apns, err := notify.NewAPNsNotifier(cfg.APNs, profileRepo)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs notifier")
		}
		notifier = apns
	}

	presigner, err := services.NewS3Presigner(ctx, cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 presigner")
	}

	// Initialize services
	userService := services.NewUserService(profileRepo, cfg.JWT.Secret)
	pairingService := services.NewPairingService(coupleRepo, coupleStore, publisher, notifier, cfg.Pairing)
	negotiationService := services.NewNegotiationService(coupleRepo, coupleStore, publisher)
	presenceService := services.NewPresenceService(profileRepo, coupleStore, publisher, cfg.Presence)
	moodService := services.NewMoodService(cfg.Mood, loc, coupleStore, publisher)
	checkinService := services.NewCheckinService(checkinRepo, publisher, notifier, loc)
	coupleService := services.NewCoupleService(coupleRepo, coupleStore, publisher, checkinService, moodService, presenceService, loc)
	messageService := services.NewMessageService(messageRepo, coupleRepo, coupleStore, publisher, moodService, notifier)
	surpriseService := services.NewSurpriseService(surpriseRepo, coupleRepo, coupleStore, publisher, moodService, notifier)
	ritualService := services.NewRitualService(ritualRepo, profileRepo, coupleRepo, coupleStore, publisher, notifier, loc)
	memoryService := services.NewMemoryService(memoryRepo, coupleRepo, coupleStore, presigner, cfg.AWS.S3Bucket)

	// Background jobs
	go moodService.Run(ctx, services.ConnectedCouples(wsHub, coupleStore))
	cancelReminders := notify.ScheduleDaily(ctx, cfg.Notifications.DailyReminderHour, loc, ritualService.SendDailyReminders)
	defer cancelReminders()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	pairHandler := handlers.NewPairHandler(pairingService)
	coupleHandler := handlers.NewCoupleHandler(coupleService)
	creatureHandler := handlers.NewCreatureHandler(negotiationService)
	messageHandler := handlers.NewMessageHandler(messageService)
	surpriseHandler := handlers.NewSurpriseHandler(surpriseService)
	ritualHandler := handlers.NewRitualHandler(ritualService)
	memoryHandler := handlers.NewMemoryHandler(memoryService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService, coupleStore, coupleService, presenceService)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.CreateUser)
		r.Get("/catalog", handlers.Catalog)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/users/me", userHandler.GetMe)
			r.Put("/users/me/push-token", userHandler.UpdatePushToken)

			r.Route("/couple", func(r chi.Router) {
				r.Post("/", pairHandler.CreateHome)
				r.Get("/", coupleHandler.GetCouple)
				r.Post("/join", pairHandler.JoinHome)
				r.Get("/wait", pairHandler.WaitForPartner)
				r.Get("/status", coupleHandler.GetStatus)
				r.Post("/pet", coupleHandler.Pet)
				r.Put("/accessories", coupleHandler.SetAccessories)
				r.Put("/accessories/{accessory_id}/color", coupleHandler.SetAccessoryColor)
				r.Put("/room", coupleHandler.SetRoom)

				r.Get("/creature", creatureHandler.GetState)
				r.Post("/creature/propose", creatureHandler.Propose)
				r.Post("/creature/accept", creatureHandler.Accept)
				r.Post("/creature/finalize", creatureHandler.Finalize)
				r.Post("/creature/reset", creatureHandler.Reset)
			})

			r.Post("/messages", messageHandler.SendMessage)
			r.Get("/messages", messageHandler.GetMessages)
			r.Post("/surprises", surpriseHandler.SendSurprise)
			r.Get("/surprises", surpriseHandler.GetUnopened)
			r.Post("/surprises/{surprise_id}/open", surpriseHandler.OpenSurprise)
			r.Get("/rituals/today", ritualHandler.GetToday)
			r.Post("/rituals/today/answer", ritualHandler.AnswerToday)
			r.Get("/memories", memoryHandler.GetMemories)
			r.Post("/memories/upload", memoryHandler.UploadMemory)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// The pairing wait holds requests longer than a normal write
	writeTimeout := 15 * time.Second
	if w := cfg.Pairing.WaitTimeout + 5*time.Second; w > writeTimeout {
		writeTimeout = w
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("timezone", loc.String()).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop background jobs and heartbeats
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
