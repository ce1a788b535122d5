package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/trashinator/internal/cache"
	"github.com/trashinator/internal/config"
	"github.com/trashinator/internal/db"
	"github.com/trashinator/internal/handler"
	"github.com/trashinator/internal/metrics"
	"github.com/trashinator/internal/router"
	"github.com/trashinator/internal/service"
	"github.com/trashinator/internal/task"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("failed to load .env: %v", err)
	}
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	if err := db.EnsureUser(cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		log.Fatalf("failed to ensure super root user: %v", err)
	}

	m := metrics.New()
	trashes := service.NewTrashService(db.DB, cfg.MaxTrackingSplit).WithMetrics(m)
	periods := service.NewPeriodService(db.DB, cfg.MaxTrackingSplit).WithMetrics(m)
	stats := service.NewStatsService(db.DB).WithMetrics(m)

	// 配置了 Redis 时使用分布式锁与快照缓存
	if cfg.RedisAddr != "" {
		redisService := cache.NewRedisService(cfg.RedisAddr, cfg.RedisDB)
		if err := redisService.Ping(); err != nil {
			log.Fatalf("failed to connect to redis at %s: %v", cfg.RedisAddr, err)
		}
		defer redisService.Close()
		trashes.WithLocker(redisService)
		stats.WithCache(redisService)
		log.Printf("using redis at %s for household locks and stats snapshot", cfg.RedisAddr)
	}

	api := handler.NewAPI(handler.Services{
		Trashes:  trashes,
		Periods:  periods,
		Stats:    stats,
		Profiles: service.NewProfileService(db.DB),
		Auth:     service.NewAuthService(db.DB, service.NewTokenService(cfg.JWTSecret, cfg.JWTTTL)),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go task.RunPeriodCloser(ctx, periods, stats, cfg.PeriodCloseInterval, &wg)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, m, cfg.SessionSecret, "web/template/*.html")
	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to run server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	wg.Wait()
}
