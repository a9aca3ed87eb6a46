// cmd/offline-worker/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"offline-worker/internal/cache"
	"offline-worker/internal/channel"
	"offline-worker/internal/common/config"
	"offline-worker/internal/common/database"
	"offline-worker/internal/common/logger"
	"offline-worker/internal/common/observability"
	"offline-worker/internal/connectivity"
	"offline-worker/internal/dispatch"
	"offline-worker/internal/lifecycle"
	"offline-worker/internal/models"
	"offline-worker/internal/notification"
	"offline-worker/internal/push"
	"offline-worker/internal/queue"
	"offline-worker/internal/store"
	"offline-worker/internal/syncer"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("config load failed: %v", err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting offline worker...",
		zap.String("version", cfg.App.Version),
		zap.String("cacheGeneration", cfg.Cache.CacheName()),
	)

	obs := observability.New("offline-worker")
	defer obs.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Init persistent store, degrading to memory on failure ---
	var st store.Store
	err = retryWithBackoff(func() error {
		var err error
		st, err = store.Open(cfg.Store, store.DefaultUpgrade, log)
		return err
	}, 5, 1*time.Second, zapLog, "Persistent store open")

	if err != nil {
		zapLog.Warn("Persistent store unavailable, degrading to in-memory operation", zap.Error(err))
		st = store.NewMemory()
	}
	defer st.Close()
	zapLog.Info("Store ready", zap.Bool("durable", st.Durable()))

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init notification display backend ---
	notifier, err := push.NewNotifier(ctx, cfg.Push, log)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}

	// --- Assemble components ---
	cacheManager := cache.NewManager(cfg.Cache, redis, log)
	life := lifecycle.NewManager(cacheManager, cfg.Cache, log)
	prompt := lifecycle.NewInstallPrompt()

	requestQueue := queue.New(st, log)
	scheduler := syncer.NewRedisScheduler(redis)
	coordinator := syncer.NewCoordinator(requestQueue, scheduler, notifier, obs, cfg.Sync, cfg.Server.BaseURL, log)

	notifications := notification.NewStore(st, log)
	monitor := connectivity.NewMonitor(cfg.Connectivity, cfg.Server.HealthURL(), log)
	reconciler := notification.NewReconciler(
		notifications,
		cfg.Server.ReceiptsURL(),
		config.GetDuration(cfg.Server.RequestTimeout),
		config.GetDuration(cfg.Channel.SyncTimeout),
		monitor.Online,
		log,
	)

	windows := push.NewLogWindowClient(log)
	pushHandler, err := push.NewHandler(notifications, notifier, windows, reconciler, log)
	if err != nil {
		zapLog.Fatal("push handler init failed", zap.Error(err))
	}

	subscriptions := push.NewSubscriptionManager(st, cfg.Server.SubscriptionURL(), config.GetDuration(cfg.Server.RequestTimeout), log)

	// --- Install / activate this worker version ---
	if err := life.Install(ctx); err != nil {
		// An old generation stays in service; the failed build never does.
		zapLog.Error("Install failed, keeping previous cache generation", zap.Error(err))
	} else {
		if err := life.Activate(ctx); err != nil {
			zapLog.Error("Activation failed", zap.Error(err))
		}
		prompt.MarkAvailable()
	}

	// --- Event routing ---
	events := dispatch.NewTable(log)
	events.Register(dispatch.EventFetch, func(ctx context.Context, payload []byte) (interface{}, error) {
		var req cache.FetchRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		return cacheManager.Intercept(ctx, req)
	})
	events.Register(dispatch.EventPush, func(ctx context.Context, payload []byte) (interface{}, error) {
		return nil, pushHandler.HandlePush(ctx, payload)
	})
	events.Register(dispatch.EventSync, func(ctx context.Context, payload []byte) (interface{}, error) {
		tag := models.OperationTag(payload)
		if tag == models.TagNotification {
			return nil, reconciler.ScheduleSync(ctx)
		}
		return nil, coordinator.Drain(ctx, tag)
	})
	events.Register(dispatch.EventOnline, func(ctx context.Context, payload []byte) (interface{}, error) {
		coordinator.DrainAll(ctx)
		if err := reconciler.ScheduleSync(ctx); err != nil {
			log.Warn("Receipt resync on reconnect failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, nil
	})

	monitor.OnTransition(func(online bool) {
		if online {
			if _, err := events.Dispatch(ctx, dispatch.EventOnline, nil); err != nil {
				log.Error("Reconnect handling failed", map[string]interface{}{"error": err.Error()})
			}
		}
	})

	go monitor.Start(ctx)

	// --- Resume durable state from before the restart ---
	if err := subscriptions.Resume(ctx); err != nil {
		zapLog.Warn("Push subscription resume failed", zap.Error(err))
	}
	if tags, err := scheduler.Registered(ctx); err == nil {
		for _, tag := range tags {
			if _, err := events.Dispatch(ctx, dispatch.EventSync, []byte(tag)); err != nil {
				zapLog.Warn("Resumed drain failed", zap.String("tag", string(tag)), zap.Error(err))
			}
		}
	}

	// --- Page-facing channel server ---
	server := channel.NewServer(cfg.Channel, notifications, reconciler, pushHandler, cacheManager, requestQueue, coordinator, subscriptions, cfg.Server.BaseURL, log)
	serverErr := make(chan error, 1)
	go func() {
		zapLog.Info("Channel server listening", zap.String("address", cfg.Channel.ListenAddress))
		serverErr <- server.ListenAndServe(ctx)
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		zapLog.Info("Shutdown signal received, stopping...")
		cancel()
		<-serverErr
	case err := <-serverErr:
		if err != nil {
			zapLog.Error("Channel server failed", zap.Error(err))
		}
	}

	zapLog.Info("Offline worker stopped gracefully")
}
