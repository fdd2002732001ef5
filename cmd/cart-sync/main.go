package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/cart_sync/internal/authevents"
	"github.com/fjod/cart_sync/internal/engine"
	"github.com/fjod/cart_sync/internal/persist"
	"github.com/fjod/cart_sync/internal/reconcile"
	"github.com/fjod/cart_sync/internal/remote"
	"github.com/fjod/cart_sync/internal/scheduler"
	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	CartAPIURL    string        `envconfig:"CART_API_URL" default:"http://localhost:8080/api/v1"`
	CartAPIToken  string        `envconfig:"CART_API_TOKEN"`
	Backend       string        `envconfig:"BACKEND" default:"sqlite"` // sqlite | redis
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"cart-sync.db"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	StorageKey    string        `envconfig:"STORAGE_KEY" default:"default"`
	SyncInterval  time.Duration `envconfig:"SYNC_INTERVAL" default:"30s"`
	KafkaBrokers  []string      `envconfig:"KAFKA_BROKERS"`
	LocalWins     bool          `envconfig:"LOGIN_MERGE_LOCAL_WINS"`
}

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	var cfg Config
	if err := envconfig.Process("CART_SYNC", &cfg); err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	persister, cleanup := buildPersister(&cfg)
	defer cleanup()

	client := remote.NewClient(cfg.CartAPIURL, func(context.Context) (string, error) {
		return cfg.CartAPIToken, nil
	})

	opts := []engine.Option{}
	if cfg.LocalWins {
		opts = append(opts, engine.WithOverlapPolicy(reconcile.LocalWins))
	}
	eng := engine.New(client, persister, opts...)

	if err := eng.Load(ctx); err != nil {
		log.WithError(err).Fatal("failed to restore cart state")
	}
	log.WithFields(log.Fields{"items": len(eng.Items()), "queued": eng.QueueLen()}).
		Info("cart state restored")

	// A configured token means the session is already authenticated; run the
	// merge now so isSynced is derived from a real fetch.
	if cfg.CartAPIToken != "" {
		if err := eng.MergeOnLogin(ctx); err != nil {
			log.WithError(err).Warn("initial cart merge failed, staying local-only")
		}
	}

	sched := scheduler.New(eng, scheduler.WithInterval(cfg.SyncInterval))
	sched.Start(ctx)

	var listener *authevents.Listener
	if len(cfg.KafkaBrokers) > 0 {
		listener = authevents.NewListener(eng, cfg.KafkaBrokers...)
		go listener.Run(ctx)
		log.WithField("brokers", cfg.KafkaBrokers).Info("session event listener started")
	}

	log.WithField("interval", cfg.SyncInterval.String()).Info("cart sync engine running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down cart sync engine...")
	cancel()
	sched.Stop()
	if listener != nil {
		listener.Close()
	}
	log.Info("cart sync engine stopped")
}

func buildPersister(cfg *Config) (persist.Persister, func()) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("redis connection failed")
		}
		log.Info("redis ping succeeded")
		return persist.NewRedisPersister(client, cfg.StorageKey), func() { client.Close() }
	case "sqlite":
		db, err := persist.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.WithError(err).Fatal("failed to open sqlite store")
		}
		log.WithField("path", cfg.SQLitePath).Info("sqlite store opened")
		return persist.NewSQLitePersister(db, cfg.StorageKey), func() { db.Close() }
	default:
		log.WithField("backend", cfg.Backend).Fatal("unknown persistence backend")
		return nil, nil
	}
}
