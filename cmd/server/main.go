package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/yourname/fixyoursleep/internal"
	"github.com/yourname/fixyoursleep/internal/api"
	"github.com/yourname/fixyoursleep/internal/auth"
	"github.com/yourname/fixyoursleep/internal/config"
	"github.com/yourname/fixyoursleep/internal/events"
	"github.com/yourname/fixyoursleep/internal/kv"
	"github.com/yourname/fixyoursleep/internal/motion"
	"github.com/yourname/fixyoursleep/internal/notify"
	"github.com/yourname/fixyoursleep/internal/service"
	"github.com/yourname/fixyoursleep/internal/storage"
	"github.com/yourname/fixyoursleep/internal/tracker"
	"github.com/yourname/fixyoursleep/internal/vision"
)

func main() {
	cfg := config.Load()

	logger, err := internal.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, path := range localDataPaths(cfg) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			logger.Fatalf("failed to create data dir for %s: %v", path, err)
		}
	}

	store, err := storage.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init storage: %v", err)
	}
	defer store.Close()

	var (
		redisClient *redis.Client
		state       kv.Store = kv.NewMemory()
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis connection failed: %v", err)
		}
		defer redisClient.Close()
		state = kv.NewRedis(redisClient)
		logger.Infof("redis connected, device events fan out across instances")
	}

	hub := events.NewHub(redisClient, logger)
	feed := motion.NewFeed(hub, logger)
	hub.SetSampleSink(feed)

	reminders := notify.NewReminders(hub, clockwork.NewRealClock(), cfg.ReminderPollInterval, logger)
	reminders.Start()
	defer reminders.Stop()

	policy, err := tracker.ParseDuplicatePolicy(cfg.DuplicateLogPolicy)
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}
	axis, err := motion.ParseAxis(cfg.MotionAxis)
	if err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	goals := tracker.NewGoals(store, state, reminders, logger)
	book := tracker.NewLogbook(store, policy, time.Local)

	var labeler vision.Labeler = vision.Disabled{}
	if cfg.VisionAPIKey != "" {
		g, err := vision.NewGoogleLabeler(ctx, cfg.VisionAPIKey)
		if err != nil {
			logger.Fatalf("vision client initialization failed: %v", err)
		}
		labeler = g
	} else {
		logger.Warnf("VISION_API_KEY not set, relax photo verification is disabled")
	}

	opts := tracker.Options{
		PickupThreshold:     cfg.PickupThreshold,
		PickupDebounce:      cfg.PickupDebounce,
		SampleInterval:      cfg.SampleInterval,
		Axis:                axis,
		RecordInterruptions: cfg.RecordInterruptions,
	}
	clock := clockwork.NewRealClock()
	sessions := service.NewSessions(func(userID string) *tracker.Tracker {
		return tracker.New(userID, tracker.Deps{
			Goals:    goals,
			Logbook:  book,
			KV:       state,
			Sensor:   feed.ForUser(userID),
			Notifier: reminders,
			Events:   hub,
			Presence: hub,
			Clock:    clock,
			Logger:   logger.With("user_id", userID),
			OnResolved: func(res tracker.Result) {
				logger.Infof("sleep attempt %d for %s resolved: %s", res.Attempt, userID, res.Outcome)
			},
		}, opts)
	}, state, labeler, cfg.WindDownSeconds, logger)
	defer sessions.Close()

	provider, err := auth.NewProvider(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init auth: %v", err)
	}

	app := &api.Services{
		Log:         logger,
		Store:       store,
		Book:        book,
		GoalTracker: goals,
		State:       state,
		Sess:        sessions,
		Perms:       reminders,
		Hub:         hub,
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(app, provider),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Infof("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("shutdown: %v", err)
		}
	}()

	logger.Infof("server running on %s (storage=%s, auth=%s)", cfg.HTTPAddr, cfg.DBType, cfg.AuthMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("server error: %v", err)
	}
}

func localDataPaths(cfg *config.Config) []string {
	switch cfg.DBType {
	case "file":
		return []string{cfg.FileProfiles, cfg.FileSleep}
	case "sqlite":
		return []string{cfg.SQLitePath}
	}
	return nil
}
