package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/storefront-api/internal/config"
	"github.com/iliyamo/storefront-api/internal/database"
	"github.com/iliyamo/storefront-api/internal/handler"
	"github.com/iliyamo/storefront-api/internal/middleware"
	"github.com/iliyamo/storefront-api/internal/notify"
	"github.com/iliyamo/storefront-api/internal/payment"
	"github.com/iliyamo/storefront-api/internal/queue"
	"github.com/iliyamo/storefront-api/internal/repository"
	"github.com/iliyamo/storefront-api/internal/router"
	"github.com/iliyamo/storefront-api/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	log := logrus.StandardLogger()
	if cfg.Env == "prod" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	db, err := database.Open(cfg.DSNParts())
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; cache, rate limit and capture lock disabled")
	} else {
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := repository.NewUserRepo(db)
	addresses := repository.NewAddressRepo(db)
	products := repository.NewProductRepo(db)
	categories := repository.NewCategoryRepo(db)
	orders := repository.NewOrderRepo(db)

	hub := notify.NewHub(cfg.CORSOrigins, log.WithField("component", "order-feed"))
	events := service.Fanout{hub}
	evCfg := config.LoadEventsConfig()
	if evCfg.Enabled {
		events = append(events, service.NewQueuePublisher(evCfg))
		go func() {
			if err := queue.StartOrderConsumer(ctx, evCfg, log); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("order consumer stopped")
			}
		}()
	}

	checkout := &service.Checkout{
		DB:          db,
		Addresses:   addresses,
		Products:    products,
		Orders:      orders,
		Events:      events,
		FrontendURL: cfg.FrontendURL,
		Log:         log.WithField("component", "checkout"),
	}
	if pp := config.LoadPayPalConfig(); pp.Configured() {
		checkout.Gateway = payment.NewClient(pp)
	} else {
		log.Warn("PAYPAL_CLIENT_ID/PAYPAL_SECRET not set; paypal checkout disabled")
	}
	if rdb != nil {
		checkout.Locker = service.RedisLocker{RDB: rdb, Prefix: "storefront:lock"}
	}

	sweepCfg := config.LoadSweepConfig()
	sweeper := &service.Sweeper{
		Orders: orders,
		MaxAge: sweepCfg.MaxAge,
		Events: events,
		Log:    log.WithField("component", "sweeper"),
	}
	var sched *cron.Cron
	if sweepCfg.Enabled {
		sched = cron.New()
		if _, err := sched.AddFunc(sweepCfg.Schedule, sweeper.Run); err != nil {
			log.WithError(err).WithField("schedule", sweepCfg.Schedule).Fatal("invalid SWEEP_SCHEDULE")
		}
		sched.Start()
	}

	cacheCfg := config.LoadCacheConfig()
	purge := func(ctx context.Context) error { return middleware.PurgeCache(ctx, rdb, cacheCfg.Prefix) }
	checkout.Purge = purge

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))
	e.Use(middleware.Metrics())

	router.Register(e, router.Deps{
		JWTSecret:    cfg.JWTSecret,
		Users:        users,
		Auth:         handler.NewAuthHandler(cfg, users),
		Products:     handler.NewProductHandler(products, purge),
		Categories:   handler.NewCategoryHandler(categories),
		Addresses:    handler.NewAddressHandler(addresses),
		Orders:       handler.NewOrderHandler(orders, users, checkout, sweeper),
		Hub:          hub,
		Ready:        handler.Ready(db, rdb),
		ProductCache: middleware.NewRedisCache(cacheCfg, rdb),
		RateLimit:    middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	if sched != nil {
		<-sched.Stop().Done()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}
