package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/d60-Lab/content-factory/config"
	"github.com/d60-Lab/content-factory/internal/api"
	"github.com/d60-Lab/content-factory/internal/api/handler"
	"github.com/d60-Lab/content-factory/internal/igclient"
	"github.com/d60-Lab/content-factory/internal/proxypool"
	"github.com/d60-Lab/content-factory/internal/publisher"
	"github.com/d60-Lab/content-factory/internal/repository"
	"github.com/d60-Lab/content-factory/internal/scheduler"
	"github.com/d60-Lab/content-factory/internal/service"
	"github.com/d60-Lab/content-factory/internal/session"
	"github.com/d60-Lab/content-factory/internal/tracker"
	"github.com/d60-Lab/content-factory/internal/translate"
	"github.com/d60-Lab/content-factory/pkg/database"
	"github.com/d60-Lab/content-factory/pkg/logger"
	"github.com/d60-Lab/content-factory/pkg/telemetry"
)

// @title Content Factory API
// @version 1.0
// @description 多账号内容发布编排服务
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		panic(err)
	}
	defer logger.Sync()

	shutdownTelemetry, err := telemetry.Init(cfg)
	if err != nil {
		logger.Error("telemetry init", zap.Error(err))
		os.Exit(1)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init", zap.Error(err))
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("database migrate", zap.Error(err))
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("redis unreachable, translation hot cache disabled", zap.Error(err))
		rdb = nil
	}

	accounts := repository.NewAccountRepository(db)
	groups := repository.NewGroupRepository(db)
	proxies := repository.NewProxyRepository(db)
	posts := repository.NewPostRepository(db)
	execs := repository.NewExecutionRepository(db)
	activity := repository.NewActivityLogRepository(db)
	operators := repository.NewOperatorRepository(db)
	translations := repository.NewTranslationCacheRepository(db)

	client := igclient.NewHTTPClient("", cfg.Publisher.OutboundTimeout, cfg.Publisher.OutboundRate)
	prober := proxypool.NewHTTPProber(cfg.Proxy.ProbeURL, cfg.Proxy.ProbeTimeout)
	pool := proxypool.New(proxies, accounts, prober, cfg.Proxy)

	sessions := session.NewManager(accounts, groups, proxies, pool, client, cfg.Account.DefaultPostsLimitPerDay)
	track := tracker.New(execs)

	trans := translate.NewCachedTranslator(
		translate.NewDeepSeekTranslator(cfg.Translate),
		translations, rdb, cfg.Translate.CacheTTL, "deepseek")

	recorder := service.NewActivityRecorder(activity, 4096)
	stopRecorder := recorder.Start(2)

	pub := publisher.New(posts, accounts, proxies, track, sessions, pool, client, trans, recorder, cfg.Publisher)

	auth := service.NewAuthService(operators, cfg.JWT)
	if err := auth.EnsureOperator(context.Background(), "admin", "admin"); err != nil {
		logger.Error("ensure default operator", zap.Error(err))
		os.Exit(1)
	}

	reset := scheduler.NewDailyReset(accounts)
	stopReset := reset.Start()

	gin.SetMode(ginMode(cfg.Server.Mode))
	h := handler.New(handler.Deps{
		Cfg:      cfg,
		Auth:     auth,
		Sessions: sessions,
		Pool:     pool,
		Pub:      pub,
		Track:    track,
		Trans:    trans,
		Client:   client,
		Recorder: recorder,
		Accounts: accounts,
		Groups:   groups,
		Proxies:  proxies,
		Posts:    posts,
		Activity: activity,
	})
	router := api.NewRouter(h, auth, cfg.Telemetry.ServiceName)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	_ = stopReset(ctx)
	_ = stopRecorder(ctx)
	_ = shutdownTelemetry(ctx)
}

func ginMode(mode string) string {
	if mode == "release" {
		return gin.ReleaseMode
	}
	return gin.DebugMode
}
