package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	auditapp "github.com/wyfcoding/amlplatform/internal/audit/application"
	auditmysql "github.com/wyfcoding/amlplatform/internal/audit/infrastructure/persistence/mysql"
	audithttp "github.com/wyfcoding/amlplatform/internal/audit/interfaces/http"
	caseapp "github.com/wyfcoding/amlplatform/internal/casemanagement/application"
	"github.com/wyfcoding/amlplatform/internal/casemanagement/infrastructure/goaml"
	caselookup "github.com/wyfcoding/amlplatform/internal/casemanagement/infrastructure/monitoring"
	casemysql "github.com/wyfcoding/amlplatform/internal/casemanagement/infrastructure/persistence/mysql"
	casehttp "github.com/wyfcoding/amlplatform/internal/casemanagement/interfaces/http"
	casekafka "github.com/wyfcoding/amlplatform/internal/casemanagement/interfaces/kafka"
	monitoringapp "github.com/wyfcoding/amlplatform/internal/monitoring/application"
	monitoringdomain "github.com/wyfcoding/amlplatform/internal/monitoring/domain"
	monitoringmysql "github.com/wyfcoding/amlplatform/internal/monitoring/infrastructure/persistence/mysql"
	monitoringredis "github.com/wyfcoding/amlplatform/internal/monitoring/infrastructure/persistence/redis"
	monitoringscreening "github.com/wyfcoding/amlplatform/internal/monitoring/infrastructure/screening"
	monitoringhttp "github.com/wyfcoding/amlplatform/internal/monitoring/interfaces/http"
	monitoringkafka "github.com/wyfcoding/amlplatform/internal/monitoring/interfaces/kafka"
	notificationapp "github.com/wyfcoding/amlplatform/internal/notification/application"
	notificationmysql "github.com/wyfcoding/amlplatform/internal/notification/infrastructure/persistence/mysql"
	"github.com/wyfcoding/amlplatform/internal/notification/infrastructure/sender"
	notificationhttp "github.com/wyfcoding/amlplatform/internal/notification/interfaces/http"
	notificationkafka "github.com/wyfcoding/amlplatform/internal/notification/interfaces/kafka"
	"github.com/wyfcoding/amlplatform/internal/notification/interfaces/ws"
	screeningapp "github.com/wyfcoding/amlplatform/internal/screening/application"
	screeningdomain "github.com/wyfcoding/amlplatform/internal/screening/domain"
	screeningmysql "github.com/wyfcoding/amlplatform/internal/screening/infrastructure/persistence/mysql"
	screeningredis "github.com/wyfcoding/amlplatform/internal/screening/infrastructure/persistence/redis"
	screeninghttp "github.com/wyfcoding/amlplatform/internal/screening/interfaces/http"
	"github.com/wyfcoding/amlplatform/pkg/cache"
	"github.com/wyfcoding/amlplatform/pkg/config"
	"github.com/wyfcoding/amlplatform/pkg/db"
	"github.com/wyfcoding/amlplatform/pkg/logger"
	"github.com/wyfcoding/amlplatform/pkg/metrics"
	"github.com/wyfcoding/amlplatform/pkg/middleware"
	"github.com/wyfcoding/amlplatform/pkg/mq"
	"github.com/wyfcoding/amlplatform/pkg/ratelimit"
	"github.com/wyfcoding/amlplatform/pkg/scheduler"
)

const (
	sweepBatch = 100
	pollBatch  = 50
)

var configPath = flag.String("config", "configs/aml/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. 配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 日志
	log, err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	log = log.With("service", cfg.ServiceName, "version", cfg.Version)

	if err := run(cfg, log); err != nil {
		log.Error("service exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("service stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	// 3. 指标
	m := metrics.New(cfg.ServiceName)
	if err := m.Register(); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	// 4. 数据库
	database, err := db.Init(db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}, log)
	if err != nil {
		return err
	}
	defer database.Close()

	if cfg.Database.AutoMigrate {
		var models []any
		models = append(models, monitoringmysql.Models()...)
		models = append(models, screeningmysql.Models()...)
		models = append(models, casemysql.Models()...)
		models = append(models, notificationmysql.Models()...)
		models = append(models, auditmysql.Models()...)
		if err := database.AutoMigrate(models...); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	// 5. Redis，不可用时冷却闸门、名单缓存与限流降级关闭
	redisCache, err := cache.New(cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Warn("redis unavailable, running without cache", "error", err)
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// 6. Kafka
	kafkaCfg := mq.Config{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     cfg.Kafka.MaxRetries,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}
	producer := mq.NewProducer(kafkaCfg, log)
	defer producer.Close()
	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.Topics.DeadLetter)

	// 7. 审计
	auditSvc := auditapp.NewAuditService(auditmysql.NewRepository(database.DB), log.With("module", "audit"))

	// 8. 名单筛查
	screeningOpts := screeningapp.Options{Audit: auditSvc, Metrics: m}
	if redisCache != nil {
		screeningOpts.Cache = screeningredis.NewEntryCache(redisCache, time.Duration(cfg.Screening.CacheTTL)*time.Second)
	}
	screeningSvc := screeningapp.NewScreeningService(
		screeningmysql.NewEntryRepository(database.DB),
		screeningmysql.NewMatchRepository(database.DB),
		screeningdomain.NewMatcher(cfg.Screening.MatchThreshold),
		producer,
		log.With("module", "screening"),
		screeningOpts,
	)

	// 9. 交易监控
	txnRepo := monitoringmysql.NewTransactionRepository(database.DB)
	ruleRepo := monitoringmysql.NewRuleRepository(database.DB)
	alertRepo := monitoringmysql.NewAlertRepository(database.DB)
	monitoringOpts := monitoringapp.Options{Audit: auditSvc, Metrics: m}
	if redisCache != nil {
		monitoringOpts.Cooldown = monitoringredis.NewCooldownGate(redisCache)
	}
	if cfg.Screening.Enabled {
		monitoringOpts.Screener = monitoringscreening.NewScreener(screeningSvc)
	}
	monitoringLog := log.With("module", "monitoring")

	riskSvc := monitoringapp.NewRiskService(
		alertRepo,
		monitoringmysql.NewRiskProfileRepository(database.DB),
		monitoringdomain.RiskThresholds{High: cfg.Monitoring.HighRiskThreshold, Medium: cfg.Monitoring.MediumRiskThreshold},
		time.Duration(cfg.Monitoring.RiskLookbackDays)*24*time.Hour,
		producer, monitoringLog, monitoringOpts,
	)
	ruleSvc := monitoringapp.NewRuleService(ruleRepo, producer, monitoringLog, monitoringOpts)
	alertSvc := monitoringapp.NewAlertService(alertRepo, riskSvc, cfg.Monitoring.EscalationSLA(), producer, monitoringLog, monitoringOpts)
	monitorSvc := monitoringapp.NewMonitoringService(
		txnRepo, ruleRepo, alertRepo, riskSvc,
		monitoringdomain.PatternConfig{
			StructuringThreshold:   decimal.NewFromFloat(cfg.Monitoring.StructuringThreshold),
			RapidMovementThreshold: cfg.Monitoring.RapidMovementThreshold,
			Lookback:               cfg.Monitoring.PatternLookback(),
			RapidMovementWindow:    cfg.Monitoring.RapidMovementWindow(),
		},
		producer, monitoringLog, monitoringOpts,
	)

	// 10. 案件管理
	caseSvc := caseapp.NewCaseService(
		casemysql.NewCaseRepository(database.DB),
		casemysql.NewReportRepository(database.DB),
		caselookup.NewTransactionLookup(txnRepo),
		goaml.NewClient(goaml.Config{
			BaseURL:  cfg.GoAML.BaseURL,
			OrgID:    cfg.GoAML.OrgID,
			Username: cfg.GoAML.Username,
			Password: cfg.GoAML.Password,
			Timeout:  time.Duration(cfg.GoAML.Timeout) * time.Second,
		}, log.With("module", "goaml")),
		decimal.NewFromFloat(cfg.Monitoring.STRThresholdAED),
		producer,
		log.With("module", "casemanagement"),
		caseapp.Options{Audit: auditSvc, Metrics: m},
	)

	// 11. 通知
	notificationLog := log.With("module", "notification")
	notificationOpts := notificationapp.Options{Metrics: m}
	if cfg.Notification.WebhookURL != "" {
		notificationOpts.Webhook = sender.NewWebhookSender(cfg.Notification.WebhookURL, 10*time.Second, notificationLog)
	}
	notificationSvc := notificationapp.NewNotificationService(
		notificationmysql.NewNotificationRepository(database.DB),
		cfg.Notification.RecipientGroup,
		notificationLog,
		notificationOpts,
	)
	hub := ws.NewHub(notificationSvc, cfg.Notification.RecipientGroup, cfg.Notification.PendingOnConnect, m, notificationLog)
	notificationSvc.SetPusher(hub)
	defer hub.Close()

	// 12. 种子数据
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	seed(ctx, log, cfg.Monitoring.RulesSeedFile, func(f *os.File) (int, error) { return ruleSvc.ImportRules(ctx, f) })
	seed(ctx, log, cfg.Screening.WatchlistSeedFile, func(f *os.File) (int, error) { return screeningSvc.ImportEntries(ctx, f, "seed") })
	if n, err := screeningSvc.RefreshCache(ctx); err != nil {
		log.Warn("initial watchlist cache load failed", "error", err)
	} else {
		log.Info("watchlist cache loaded", "entries", n)
	}

	// 13. Kafka 消费者
	consumers := []struct {
		name    string
		topics  []string
		handler mq.HandlerFunc
	}{
		{"monitoring", []string{cfg.Kafka.Topics.Transactions},
			monitoringkafka.NewTransactionConsumer(monitorSvc, m, monitoringLog).Handle},
		{"casemanagement", []string{monitoringdomain.EventAlertEscalated},
			casekafka.NewEscalationConsumer(caseSvc, cfg.Monitoring.AutoCaseCreation, m, log.With("module", "casemanagement")).Handle},
		{"notification", notificationkafka.Topics,
			notificationkafka.NewEventConsumer(notificationSvc, m, notificationLog).Handle},
	}

	// 14. 定时任务
	sched := scheduler.New(2*time.Minute, log.With("module", "scheduler"))
	if cfg.Scheduler.Enabled {
		jobs := []struct {
			name, spec string
			job        scheduler.Job
		}{
			{"alert_escalation_sweep", cfg.Scheduler.EscalationSweep, func(ctx context.Context) (int, error) {
				return alertSvc.SweepEscalations(ctx, sweepBatch)
			}},
			{"watchlist_refresh", cfg.Scheduler.WatchlistRefresh, screeningSvc.RefreshCache},
			{"sar_status_poll", cfg.Scheduler.SARStatusPoll, func(ctx context.Context) (int, error) {
				return caseSvc.PollSubmitted(ctx, pollBatch)
			}},
		}
		for _, j := range jobs {
			if err := sched.Register(j.name, j.spec, j.job); err != nil {
				return err
			}
		}
	}

	// 15. HTTP
	if cfg.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.GinRecovery(log), middleware.GinLogging(log), middleware.GinCORS(), middleware.GinMetrics(m))

	r.GET("/sys/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": cfg.ServiceName})
	})
	r.GET("/sys/ready", func(c *gin.Context) {
		status := gin.H{"database": "ok", "redis": "disabled"}
		code := http.StatusOK
		if err := database.Ping(c.Request.Context()); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if redisCache != nil {
			status["redis"] = "ok"
			if err := redisCache.Ping(c.Request.Context()); err != nil {
				status["redis"] = err.Error()
			}
		}
		c.JSON(code, status)
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	api := r.Group("/api/v1")
	if cfg.RateLimit.Enabled && redisCache != nil {
		api.Use(middleware.GinRateLimit(ratelimit.NewRedisRateLimiter(redisCache.GetClient()), cfg.RateLimit, log))
	}
	monitoringhttp.NewHandler(monitorSvc, ruleSvc, alertSvc, riskSvc).RegisterRoutes(api)
	screeninghttp.NewHandler(screeningSvc).RegisterRoutes(api)
	casehttp.NewHandler(caseSvc).RegisterRoutes(api)
	notificationhttp.NewHandler(notificationSvc, hub).RegisterRoutes(api)
	audithttp.NewHandler(auditSvc).RegisterRoutes(api)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 16. gRPC 健康检查
	grpcSrv := grpc.NewServer(
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
		grpc.ChainUnaryInterceptor(middleware.GRPCRecovery(log), middleware.GRPCLogging(log)),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)
	healthSrv.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcSrv)

	// 17. 启动
	g, gctx := errgroup.WithContext(ctx)

	for _, c := range consumers {
		consumerCfg := kafkaCfg
		consumerCfg.GroupID = cfg.Kafka.GroupID + "-" + c.name
		consumer := mq.NewConsumer(consumerCfg, c.topics, dlq, log.With("consumer", c.name))
		handler := c.handler
		g.Go(func() error {
			defer consumer.Close()
			return consumer.Run(gctx, handler)
		})
	}

	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sched.Stop(stopCtx)
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		log.Info("gRPC server starting", "addr", addr)
		return grpcSrv.Serve(lis)
	})

	g.Go(func() error {
		log.Info("HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 18. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers...")
		healthSrv.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		return nil
	})

	return g.Wait()
}

func seed(ctx context.Context, log *slog.Logger, path string, load func(*os.File) (int, error)) {
	if path == "" {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WarnContext(ctx, "seed file not found", "path", path)
			return
		}
		log.ErrorContext(ctx, "failed to open seed file", "path", path, "error", err)
		return
	}
	defer f.Close()

	n, err := load(f)
	if err != nil {
		log.ErrorContext(ctx, "failed to import seed file", "path", path, "error", err)
		return
	}
	log.InfoContext(ctx, "seed file imported", "path", path, "created", n)
}
