package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/teller_backend/batchapi"
	"github.com/mmdatafocus/teller_backend/config"
	"github.com/mmdatafocus/teller_backend/middlewares"
	"github.com/mmdatafocus/teller_backend/models"
	"github.com/mmdatafocus/teller_backend/realtime"
	"github.com/mmdatafocus/teller_backend/utils"
	"github.com/mmdatafocus/teller_backend/workflow"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const defaultPort = "8080"

var tracer = otel.Tracer("teller-backend")

type outboxReplayRequest struct {
	RecordId int `json:"record_id"`
}

func newBatchWorkflow() *workflow.BatchWorkflow {
	repos := workflow.NewGormRepositories()
	catalog := models.NewCachedDenominationCatalog(models.NewGormRepository[models.BillsAndCoins](nil))
	return &workflow.BatchWorkflow{
		Repos:      repos,
		Tx:         models.NewGormTransactor(nil),
		Catalog:    catalog,
		Events:     &workflow.OutboxPublisher{Records: models.NewGormRepository[models.BatchEventRecord](nil)},
		Confirmer:  &workflow.PasswordConfirmer{Employees: models.NewGormRepository[models.Employee](nil)},
		Locker:     workflow.RedisLocker{},
		Signatures: workflow.GCSSignatureStore{},
		Session:    workflow.TellerSession{},
		Tracer:     tracer,
	}
}

func outboxReplayHandler(dispatcher *workflow.OutboxDispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := workflow.ActorFromContext(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if actor.Role != models.EmployeeRoleApprover {
			c.JSON(http.StatusForbidden, gin.H{"error": workflow.ErrApproverRequired.Error()})
			return
		}

		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.RecordId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
			return
		}
		if err := dispatcher.Replay(c.Request.Context(), actor.BranchId, req.RecordId); err != nil {
			var nf *models.NotFoundError
			if errors.As(err, &nf) {
				c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":      req.RecordId,
			"publish_status": models.OutboxPublishStatusFailed,
		})
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Listen first; app endpoints answer 503 until DB and Redis are ready.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Header("x-correlation-id", cid)
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// production requires an explicit CORS_ALLOWED_ORIGINS allowlist
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "x-correlation-id")
	corsConfig.AddExposeHeaders("Content-Length", "x-correlation-id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := middlewares.NewRateLimiter(nil, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.LoaderMiddleware())
	r.Use(middlewares.RequestLogger(logger))
	r.Use(gin.Recovery())

	hub := realtime.NewHub(logger)
	batchWorkflow := newBatchWorkflow()
	handler := batchapi.NewHandler(batchWorkflow, hub, logger)
	handler.Register(r)
	// catalog changes from any instance drop this instance's cached denominations
	stopCatalogWatch := realtime.WatchCatalog(hub, batchWorkflow.Catalog.(*models.CachedDenominationCatalog), logger)
	defer stopCatalogWatch()

	sink := workflow.EventSink(config.PublishBatchEventWithResult)
	if !config.PubSubConfigured() {
		// single instance without Pub/Sub: deliver straight to the local hub
		sink = hub.Deliver
		logger.WithFields(logrus.Fields{"field": "realtime"}).Warn("Pub/Sub is not configured; batch events stay in-process")
	}
	dispatcher := workflow.NewOutboxDispatcher(nil, logger, sink)
	r.POST("/internal/ops/outbox/replay", outboxReplayHandler(dispatcher))
	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can block tables; SKIP_MIGRATIONS moves it to a separate job.
	if !config.SkipMigrations() {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	dispatcher.DB = db
	go dispatcher.Run(workerCtx)

	refresher := &workflow.CatalogRefresher{
		Repo:   models.NewGormRepository[models.BillsAndCoins](db),
		Cache:  batchWorkflow.Catalog.(*models.CachedDenominationCatalog),
		Notify: sink,
		Logger: logger,
	}
	if _, err := refresher.Sync(workerCtx); err != nil {
		config.LogError(logger, "server.go", "main", "initial catalog sync", nil, err)
	}
	scheduler, err := refresher.Start(workerCtx)
	if err != nil {
		config.LogError(logger, "server.go", "main", "schedule catalog refresh", nil, err)
	}

	if config.RealtimePullEnabled() && config.PubSubConfigured() {
		go func() {
			if err := handler.Bridge.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
				config.LogError(logger, "server.go", "main", "realtime pull receiver stopped", nil, err)
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on :", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// stop background work before draining requests
	cancelWorkers()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
