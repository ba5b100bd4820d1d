package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/restaurant-floor/internal/config"
	"github.com/iliyamo/restaurant-floor/internal/database"
	"github.com/iliyamo/restaurant-floor/internal/feed"
	"github.com/iliyamo/restaurant-floor/internal/handler"
	"github.com/iliyamo/restaurant-floor/internal/middleware"
	"github.com/iliyamo/restaurant-floor/internal/queue"
	"github.com/iliyamo/restaurant-floor/internal/repository"
	"github.com/iliyamo/restaurant-floor/internal/router"
	"github.com/iliyamo/restaurant-floor/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	store := repository.NewStore(db, repository.Dialect(cfg.DBDriver))

	// every committed change goes to the in-process hub and, when
	// configured, to RabbitMQ for external observers
	hub := feed.NewHub(0)
	pubs := service.MultiPublisher{hub}
	pingers := []handler.Pinger{db}
	var async *service.AsyncPublisher
	if cfg.RabbitMQURL != "" {
		amqpPub := queue.NewPublisher(cfg.RabbitMQURL, cfg.FeedExchange)
		if err := amqpPub.Connect(); err != nil {
			log.Printf("rabbitmq: publisher offline, will reconnect on demand: %v", err)
		}
		defer amqpPub.Close()
		async = service.NewAsyncPublisher(amqpPub, cfg.PublishBuffer, cfg.PublishTimeout)
		pubs = append(pubs, async)
		pingers = append(pingers, amqpPub)
	}
	floor := service.NewFloor(store,
		service.WithPublisher(pubs),
		service.WithPublishTimeout(cfg.PublishTimeout),
	)

	// the server follows its own hub so kitchen reads come from a replica
	projector := feed.NewProjector()
	go func() { _ = projector.Run(ctx) }()
	follower := &feed.Follower{
		Projector:  projector,
		Subscriber: hub,
		Snapshots:  feed.SnapshotFunc(floor.Snapshot),
	}
	go func() { _ = follower.Run(ctx) }()

	limit, cache := redisMiddleware()

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Logger(), echomw.Recover())
	router.RegisterRoutes(e, handler.Health(pingers...))
	router.RegisterFloor(e, handler.NewFloorHandler(floor, projector), router.Options{
		JWTSecret: cfg.JWTSecret,
		RateLimit: limit,
		Cache:     cache,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if async != nil {
		async.Close()
	}
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err = database.OpenSQLite(cfg.SQLitePath)
	default:
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// redisMiddleware builds the rate limiter and kitchen queue cache.  Both
// degrade to no-ops when Redis is unreachable.
func redisMiddleware() (limit, cache echo.MiddlewareFunc) {
	rcfg, err := config.LoadRedisConfig()
	if err != nil {
		log.Printf("redis config: %v", err)
		return nil, nil
	}
	rdb := config.NewRedisClient(rcfg)
	if rdb == nil {
		log.Printf("redis unavailable at %s; rate limiting and caching disabled", rcfg.Address())
		return nil, nil
	}
	rl, err := config.LoadRateLimitConfig()
	if err != nil {
		log.Printf("rate limit config: %v", err)
	} else {
		limit = middleware.NewTokenBucket(rl, rdb)
	}
	cc, err := config.LoadCacheConfig()
	if err != nil {
		log.Printf("cache config: %v", err)
	} else {
		cache = middleware.NewRedisCache(cc, rdb)
	}
	return limit, cache
}
