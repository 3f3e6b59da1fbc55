package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Blb3D/filaops-sub000/internal/config"
	"github.com/Blb3D/filaops-sub000/internal/middleware"
	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/handler"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/mrp/service"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting filaops planning service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	// 迁移计划服务数据表
	if err := entity.AutoMigrate(db); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// 初始化Redis（运行互斥锁用，未配置时退化为仅数据库兜底）
	rdb := initRedis(cfg.Redis)
	if rdb != nil {
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			zapLogger.Warn("Redis unreachable, run lock degraded to DB check", zap.Error(err))
		}
	}

	// 组装仓库、服务与处理器
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, db, rdb, cfg, zapLogger)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"code": 40400, "message": "Not found"})
	})

	// API v1
	v1 := r.Group("/api/v1")
	planning := v1.Group("/planning")
	planning.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// BOM版本管理
		planning.POST("/boms", h.BOM.Create)
		planning.GET("/boms/:id", h.BOM.Get)
		planning.PUT("/boms/:id", h.BOM.Update)
		planning.DELETE("/boms/:id", h.BOM.Delete)
		planning.POST("/boms/:id/lines", h.BOM.AddLine)
		planning.PUT("/boms/:id/lines/:lineId", h.BOM.UpdateLine)
		planning.DELETE("/boms/:id/lines/:lineId", h.BOM.DeleteLine)
		planning.POST("/boms/:id/activate", h.BOM.Activate)
		planning.POST("/boms/:id/deactivate", h.BOM.Deactivate)

		// 产品视角的BOM结构查询
		planning.GET("/products/:productId/boms", h.BOM.ListVersions)
		planning.GET("/products/:productId/explode", h.BOM.Explode)
		planning.GET("/products/:productId/where-used", h.BOM.WhereUsed)
		planning.GET("/products/:productId/cost", h.BOM.Cost)

		// 需求预测
		planning.GET("/forecasts", h.Forecast.List)
		planning.POST("/forecasts", h.Forecast.Create)
		planning.PUT("/forecasts/:id", h.Forecast.Update)
		planning.DELETE("/forecasts/:id", h.Forecast.Delete)
		planning.POST("/forecasts/import", h.Forecast.Import)

		// MRP运行
		planning.POST("/runs", middleware.RequireRole("planner"), h.MRP.Run)
		planning.GET("/runs", h.MRP.ListRuns)
		planning.GET("/runs/latest", h.MRP.LatestRun)
		planning.GET("/runs/:id", h.MRP.GetRun)
		planning.GET("/runs/:id/orders", h.MRP.RunOrders)
		planning.GET("/runs/:id/export", h.MRP.ExportRun)

		// 计划订单生命周期
		planning.GET("/planned-orders", h.PlannedOrder.List)
		planning.GET("/planned-orders/:id", h.PlannedOrder.Get)
		planning.POST("/planned-orders/:id/firm", h.PlannedOrder.Firm)
		planning.POST("/planned-orders/:id/release", middleware.RequireRole("planner"), h.PlannedOrder.Release)
		planning.POST("/planned-orders/:id/cancel", h.PlannedOrder.Cancel)
	}
}
