package service

import (
	"errors"

	"github.com/bsm/redislock"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/config"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/shared/feishu"
)

// 服务层错误，由handler映射为HTTP状态
var (
	ErrRunInProgress          = errors.New("已有MRP运行在进行中，请等待其完成")
	ErrConcurrentModification = errors.New("计划订单已被其他人修改，请刷新后重试")
	ErrInvalidTransition      = errors.New("当前状态不允许该操作")
)

// Services 服务集合
type Services struct {
	BOM          *BOMService
	Forecast     *ForecastService
	MRP          *MRPService
	PlannedOrder *PlannedOrderService
}

// NewServices 创建服务集合
func NewServices(repos *repository.Repositories, db *gorm.DB, rdb *redis.Client, cfg *config.Config, logger *zap.Logger) *Services {
	// 初始化飞书客户端
	var feishuClient *feishu.FeishuClient
	if cfg.Feishu.AppID != "" && cfg.Feishu.AppSecret != "" {
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret)
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Endpoint != "" {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("MinIO初始化失败，报表归档不可用", zap.Error(err))
			minioClient = nil
		}
	}

	// 运行互斥锁
	var locker *redislock.Client
	if rdb != nil {
		locker = redislock.New(rdb)
	}

	bomSvc := NewBOMService(repos, logger)
	return &Services{
		BOM:          bomSvc,
		Forecast:     NewForecastService(repos.Forecast, repos.Product),
		MRP:          NewMRPService(repos, db, locker, minioClient, feishuClient, cfg, logger),
		PlannedOrder: NewPlannedOrderService(repos.PlannedOrder, db, logger),
	}
}
