package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/campusops/lostfound/config"
	"github.com/campusops/lostfound/internal/matching"
	"github.com/campusops/lostfound/internal/notify"
	"github.com/campusops/lostfound/internal/runtime"
	"github.com/campusops/lostfound/internal/search"
	"github.com/campusops/lostfound/internal/social"
	"github.com/campusops/lostfound/internal/store"
	"github.com/campusops/lostfound/internal/telemetry"
)

// Run wires the whole service and blocks serving HTTP.
func Run(cfg *config.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	httpMetrics := telemetry.NewHTTPMetrics(nil)
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			path := c.Path()
			httpMetrics.Duration.WithLabelValues(c.Request().Method, path).Observe(time.Since(start).Seconds())
			httpMetrics.Requests.WithLabelValues(c.Request().Method, path, strconv.Itoa(c.Response().Status)).Inc()
			return err
		}
	})

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()
	dsn := cfg.Storage.Postgres.DSN()
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Storage.Redis.Addr(), err)
	}
	bus := notify.NewBus(rdb)

	idx, err := search.NewIndex()
	if err != nil {
		return err
	}
	if err := warmSearchIndex(ctx, st, idx); err != nil {
		return fmt.Errorf("warm search index: %w", err)
	}

	matchLogger := log.New(log.Writer(), "[MATCH] ", log.LstdFlags)
	engine := &matching.Engine{
		Source:    &matchSource{Store: st},
		Sink:      &matchSink{Store: st},
		Notifier:  &matchNotifier{Store: st, Bus: bus, Logger: matchLogger},
		Logger:    matchLogger,
		Metrics:   telemetry.NewMatchingMetrics(nil),
		PoolLimit: cfg.Matching.PoolLimit,
	}

	secret, err := runtime.LoadJWTSecret(cfg)
	if err != nil {
		return err
	}

	uploads := &Uploads{
		Dir:        cfg.Uploads.Dir,
		MaxBytes:   cfg.Uploads.MaxBytes,
		PublicBase: cfg.Uploads.PublicBase,
	}
	e.Static(cfg.Uploads.PublicBase, cfg.Uploads.Dir)

	api := e.Group("/api/v1")

	auth := &AuthHandler{Store: st, Secret: secret, TTL: cfg.Server.JWTTTL}
	auth.Register(api.Group("/auth"))

	// public poster endpoints and site stats need no token
	qr := &QRCodesHandler{Store: st, FrontendBaseURL: cfg.Public.FrontendBaseURL}
	qr.RegisterPublic(api.Group("/qr"))
	(&PublicHandler{Store: st}).Register(api.Group("/public"))

	protected := api.Group("")
	protected.Use(runtime.EchoAuthMiddleware(secret))
	auth.RegisterProtected(protected.Group("/auth"))

	itemsLogger := log.New(log.Writer(), "[ITEMS] ", log.LstdFlags)
	(&ItemsHandler{
		Store:     st,
		Engine:    engine,
		Uploads:   uploads,
		Index:     idx,
		Logger:    itemsLogger,
		Threshold: cfg.Matching.Threshold,
		AutoLimit: cfg.Matching.AutoMatchLimit,
	}).Register(protected.Group("/items"))

	(&MatchesHandler{Store: st, Engine: engine, Threshold: cfg.Matching.Threshold}).Register(protected.Group("/matches"))
	(&SearchHandler{Store: st, Engine: engine, Index: idx}).Register(protected.Group("/search"))
	(&ClaimsHandler{Store: st, Bus: bus, Logger: itemsLogger}).Register(protected.Group("/claims"))
	(&NotificationsHandler{Store: st, Bus: bus}).Register(protected.Group("/notifications"))
	qr.Register(protected.Group("/qrcodes"))
	(&SocialHandler{
		Store:   st,
		Enabled: cfg.Social.Enabled,
		PageID:  cfg.Social.FacebookPageID,
		Token:   cfg.Social.FacebookToken,
		BaseURL: cfg.Social.FacebookBaseURL,
	}).Register(protected.Group("/social"))
	(&UsersHandler{Store: st}).Register(protected.Group("/users"))
	(&AdminHandler{Store: st, Bus: bus}).Register(protected.Group("/admin"))

	if cfg.Social.Enabled {
		dispatcher := &social.Dispatcher{
			Store:     st,
			Publisher: social.NewFacebookClient(cfg.Social.FacebookPageID, cfg.Social.FacebookToken, cfg.Social.FacebookBaseURL),
			Rdb:       rdb,
			Schedule:  cfg.Social.Schedule,
			Logger:    log.New(log.Writer(), "[SOCIAL] ", log.LstdFlags),
			Stop:      make(chan struct{}),
		}
		dispatcher.Start()
	}

	addr := cfg.Server.Address
	if addr == "" {
		addr = ":8080"
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// warmSearchIndex loads existing items into the in-memory keyword index.
func warmSearchIndex(ctx context.Context, st *store.Store, idx *search.Index) error {
	items, err := st.ListItems(ctx, store.ItemFilter{Limit: 10000})
	if err != nil {
		return err
	}
	for _, it := range items {
		if err := idx.IndexItem(it.ID, search.Doc{
			Type:        it.Type,
			Title:       it.Title,
			Description: it.Description,
			Location:    it.Location,
			Status:      it.Status,
		}); err != nil {
			return err
		}
	}
	return nil
}
