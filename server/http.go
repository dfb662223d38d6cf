package server

import (
	"captains-log/config"
	"captains-log/constant"
	"captains-log/handler"
	"captains-log/pkg/auth"
	"captains-log/pkg/cache"
	"captains-log/pkg/openai"
	"captains-log/pkg/rabbitmq"
	"captains-log/pkg/stripe"
	"captains-log/repository"
	"captains-log/service"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

// NewPipeline builds the star log service and the annotation pipeline that
// writes through it.
func NewPipeline(cfg *config.Config, repo repository.Repository) (service.AnnotationPipeline, service.StarLogService) {
	starlogs := service.NewStarLogService(repo, cache.NewRedisCache(cfg.Redis), nil)
	annotator := openai.NewClient(cfg.OpenAI, nil)
	pipeline := service.NewAnnotationPipeline(annotator, starlogs, cfg.Storage, service.AnnotationConfig{
		Timeout: cfg.Annotation.Timeout,
		UserId:  cfg.Annotation.UserId,
		Bucket:  cfg.MinIOBucket,
	})
	return pipeline, starlogs
}

// EnsureBucket creates the archive bucket when it is missing.
func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("bucket", bucket).Msg("creating bucket")
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func RunHttp(cfg *config.Config) error {
	base, logCloser := SetupLogger(cfg)
	defer logCloser.Close()
	ctx, cancel := signal.NotifyContext(base, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	isProduction := cfg.App.Environment == constant.EnvironmentProduction.String()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", isProduction).Send()
	if isProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	repo, err := repository.NewRepo(cfg.DB, cfg.App.Environment == constant.EnvironmentDevelop.String())
	if err != nil {
		return fmt.Errorf("open repository: %w", err)
	}
	if err := EnsureBucket(ctx, cfg.Storage, cfg.MinIOBucket); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("bucket", cfg.MinIOBucket).Msg("bucket check failed, recordings may not be archived")
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}

	pipeline, starlogs := NewPipeline(cfg, repo)
	sessions := service.NewSessionManager(ctx, pipeline, service.SessionOptions{})
	defer sessions.Close()

	exports := service.NewExportService(repo, starlogs, cfg.Storage, rabbitmq.NewPublisher(conn, cfg.Queue), cfg.MinIOBucket)
	donations := service.NewDonationService(repo, stripe.NewClient(cfg.Stripe), service.DonationConfig{
		Currency:      cfg.Stripe.Currency,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, nil)
	manager := auth.NewManager(cfg.Auth)

	h := &handler.Handler{
		StarLogs:       starlogs,
		Sessions:       sessions,
		Exports:        exports,
		Donations:      donations,
		Auth:           manager,
		UserId:         cfg.Annotation.UserId,
		SecureCookies:  cfg.App.Protocol == "https",
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	r := NewRouter(h, *zerolog.Ctx(ctx), AuthGate(manager))
	srv := &http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	exportConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, handler.ExportJobHandler)
	deps := handler.ServiceDependencies{ExportService: exports}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := exportConsumer.Consume(gctx, deps)
		if err != nil && !errors.Is(err, context.Canceled) {
			zerolog.Ctx(ctx).Error().Err(err).Msg("export consumer stopped")
			return err
		}
		return nil
	})
	g.Go(func() error {
		zerolog.Ctx(ctx).Info().Str("addr", srv.Addr).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zerolog.Ctx(ctx).Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
	return err
}

// NewRouter registers every route on a fresh engine. gate guards
// everything but the public paths.
func NewRouter(h *handler.Handler, logger zerolog.Logger, gate gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "Stripe-Signature")
	if len(h.AllowedOrigins) == 0 {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = h.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	if gate != nil {
		r.Use(gate)
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "captains-log"})
	})
	r.GET("/health", handler.Health)

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.GET("/login", h.Login)
	authGroup.GET("/callback", h.Callback)
	authGroup.POST("/logout", h.Logout)
	authGroup.GET("/logout", h.Logout)

	starlogs := api.Group("/starlogs")
	starlogs.GET("", h.ListStarLogs)
	starlogs.POST("", h.CreateStarLog)
	starlogs.DELETE("", h.DeleteAllStarLogs)
	starlogs.DELETE("/months/current", h.DeleteThisMonth)
	starlogs.DELETE("/months/previous", h.DeleteLastMonth)
	starlogs.DELETE("/range", h.DeleteRange)
	starlogs.GET("/:id", h.GetStarLog)
	starlogs.DELETE("/:id", h.DeleteStarLog)

	sessions := api.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.CloseSession)
	sessions.POST("/:id/attach", h.AttachSession)
	sessions.POST("/:id/start", h.StartSession)
	sessions.POST("/:id/pause", h.PauseSession)
	sessions.POST("/:id/resume", h.ResumeSession)
	sessions.POST("/:id/stop", h.StopSession)
	sessions.POST("/:id/reset", h.ResetSession)
	sessions.POST("/:id/play", h.PlaySession)
	sessions.POST("/:id/chunks", h.PushChunk)
	sessions.POST("/:id/transcript", h.SessionTranscript)
	sessions.POST("/:id/keys", h.SessionKey)
	sessions.GET("/:id/ws", h.SessionSocket)

	exports := api.Group("/exports")
	exports.POST("", h.RequestExport)
	exports.GET("/:id", h.GetExport)

	api.POST("/stripe/checkout", h.Checkout)
	api.POST("/stripe/verify-payment", h.VerifyPayment)
	api.POST("/webhooks/checkout", h.CheckoutWebhook)

	return r
}
