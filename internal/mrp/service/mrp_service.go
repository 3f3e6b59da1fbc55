package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Blb3D/filaops-sub000/internal/config"
	"github.com/Blb3D/filaops-sub000/internal/mrp/engine"
	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
	"github.com/Blb3D/filaops-sub000/internal/shared/feishu"
)

// 运行互斥锁的Redis键
const runLockKey = "mrp:run"

// MRPService MRP运行编排：加锁、快照、计算、落库、报表归档与通知
type MRPService struct {
	repos  *repository.Repositories
	db     *gorm.DB
	locker *redislock.Client
	minio  *minio.Client
	feishu *feishu.FeishuClient
	cfg    *config.Config
	logger *zap.Logger
}

func NewMRPService(repos *repository.Repositories, db *gorm.DB, locker *redislock.Client, minioClient *minio.Client, feishuClient *feishu.FeishuClient, cfg *config.Config, logger *zap.Logger) *MRPService {
	return &MRPService{
		repos:  repos,
		db:     db,
		locker: locker,
		minio:  minioClient,
		feishu: feishuClient,
		cfg:    cfg,
		logger: logger,
	}
}

// RunMRPRequest 发起运行请求，零值字段取配置默认
type RunMRPRequest struct {
	HorizonDays int    `json:"horizon_days"`
	BucketMode  string `json:"bucket_mode"`
}

// Run 执行一次完整的MRP运行。
// 参数校验在创建运行记录之前完成，非法参数不留下失败记录；
// 运行互斥依赖Redis锁，数据库running状态做兜底。
func (s *MRPService) Run(ctx context.Context, req RunMRPRequest, userID string) (*entity.MRPRun, error) {
	horizonDays := req.HorizonDays
	if horizonDays == 0 {
		horizonDays = s.cfg.Planning.DefaultHorizonDays
	}
	if horizonDays <= 0 {
		return nil, fmt.Errorf("计划期天数必须大于0: %d", horizonDays)
	}
	bucket := req.BucketMode
	if bucket == "" {
		bucket = s.cfg.Planning.DefaultBucket
	}
	if bucket != string(engine.BucketDay) && bucket != string(engine.BucketWeek) {
		return nil, fmt.Errorf("无效的时间桶粒度: %s", bucket)
	}

	if s.locker != nil {
		lock, err := s.locker.Obtain(ctx, runLockKey, s.cfg.Planning.RunLockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrRunInProgress
		}
		if err != nil {
			return nil, fmt.Errorf("获取运行锁失败: %w", err)
		}
		defer lock.Release(ctx)
	}

	active, err := s.repos.Run.HasActiveRun(ctx)
	if err != nil {
		return nil, fmt.Errorf("检查运行状态失败: %w", err)
	}
	if active {
		return nil, ErrRunInProgress
	}

	now := time.Now()
	run := &entity.MRPRun{
		ID:          uuid.New().String()[:32],
		RunCode:     fmt.Sprintf("MRP-%s%04d", now.Format("20060102"), now.UnixNano()%10000),
		HorizonDays: horizonDays,
		BucketMode:  bucket,
		Status:      entity.RunStatusRunning,
		StartedAt:   now,
		CreatedBy:   userID,
	}
	if err := s.repos.Run.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("创建运行记录失败: %w", err)
	}
	s.logger.Info("MRP运行开始",
		zap.String("run_code", run.RunCode),
		zap.Int("horizon_days", horizonDays),
		zap.String("bucket", bucket))

	snap, err := s.buildSnapshot(ctx, now, horizonDays, engine.Bucket(bucket))
	if err != nil {
		s.failRun(ctx, run, err)
		return nil, err
	}

	result := engine.Plan(snap)

	if err := s.commitResult(ctx, run, result); err != nil {
		s.failRun(ctx, run, err)
		return nil, err
	}
	s.logger.Info("MRP运行完成",
		zap.String("run_code", run.RunCode),
		zap.Int("orders_processed", run.OrdersProcessed),
		zap.Int("shortages_found", run.ShortagesFound),
		zap.Int("planned_orders_created", run.PlannedOrdersCreated),
		zap.Int("exceptions", len(result.Exceptions)))

	// 报表归档与通知尽力而为，失败不影响运行结果
	s.archiveReport(ctx, run)
	s.notifyCompleted(ctx, run, len(result.Exceptions))

	return s.repos.Run.FindByID(ctx, run.ID)
}

// buildSnapshot 运行开始时一次性读入全部计划数据，之后整个计算不再访问数据库
func (s *MRPService) buildSnapshot(ctx context.Context, today time.Time, horizonDays int, bucket engine.Bucket) (*engine.Snapshot, error) {
	snap := &engine.Snapshot{
		Today:       today,
		HorizonDays: horizonDays,
		Bucket:      bucket,
		Products:    map[string]*entity.Product{},
		BOMs:        map[string][]*entity.BillOfMaterials{},
		OnHand:      map[string]decimal.Decimal{},
		Routings:    map[string]engine.RoutingCost{},
	}
	horizon := snap.HorizonEnd()

	products, err := s.repos.Product.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载产品失败: %w", err)
	}
	for i := range products {
		snap.Products[products[i].ID] = &products[i]
	}

	boms, err := s.repos.BOM.ListActiveWithLines(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载BOM失败: %w", err)
	}
	for i := range boms {
		b := &boms[i]
		snap.BOMs[b.ProductID] = append(snap.BOMs[b.ProductID], b)
	}

	// 毛需求：未交付完的销售订单行 + 需求预测
	sales, err := s.repos.Sales.ListOpenDue(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("加载销售订单失败: %w", err)
	}
	for _, line := range sales {
		remaining := line.Quantity.Sub(line.ShippedQty)
		if remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		snap.Demands = append(snap.Demands, engine.Demand{
			ProductID:  line.ProductID,
			Quantity:   remaining,
			DueDate:    line.DueDate,
			SourceType: entity.SourceTypeSalesLine,
			SourceID:   line.ID,
		})
	}
	forecasts, err := s.repos.Forecast.ListDue(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("加载需求预测失败: %w", err)
	}
	for _, f := range forecasts {
		snap.Demands = append(snap.Demands, engine.Demand{
			ProductID:  f.ProductID,
			Quantity:   f.Quantity,
			DueDate:    f.DueDate,
			SourceType: entity.SourceTypeForecast,
			SourceID:   f.ID,
		})
	}

	onHand, err := s.repos.Inventory.OnHandTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载库存失败: %w", err)
	}
	snap.OnHand = onHand

	// 计划内到货：在途采购、在制工单、已确认的计划订单。
	// 已下达的计划订单不再单独计入，其供给由下达时创建的真实订单承载。
	purchases, err := s.repos.Purchase.ListOpen(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("加载采购订单失败: %w", err)
	}
	for _, po := range purchases {
		remaining := po.Quantity.Sub(po.ReceivedQty)
		if remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		snap.Receipts = append(snap.Receipts, engine.Receipt{
			ProductID: po.ProductID,
			Quantity:  remaining,
			DueDate:   po.ExpectedDate,
		})
	}
	workOrders, err := s.repos.WorkOrder.ListOpen(ctx, horizon)
	if err != nil {
		return nil, fmt.Errorf("加载工单失败: %w", err)
	}
	for _, wo := range workOrders {
		remaining := wo.PlannedQty.Sub(wo.CompletedQty)
		if remaining.LessThanOrEqual(decimal.Zero) {
			continue
		}
		snap.Receipts = append(snap.Receipts, engine.Receipt{
			ProductID: wo.ProductID,
			Quantity:  remaining,
			DueDate:   wo.DueDate,
		})
	}
	firmed, err := s.repos.PlannedOrder.ListOpenFirmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载已确认计划订单失败: %w", err)
	}
	for _, po := range firmed {
		snap.Receipts = append(snap.Receipts, engine.Receipt{
			ProductID: po.ProductID,
			Quantity:  po.Quantity,
			DueDate:   po.DueDate,
		})
	}

	routings, err := s.repos.Product.ListRoutings(ctx)
	if err != nil {
		return nil, fmt.Errorf("加载工艺路线失败: %w", err)
	}
	for _, rt := range routings {
		if !rt.IsActive {
			continue
		}
		snap.Routings[rt.ProductID] = engine.RoutingCost{
			Labor:        rt.LaborCost,
			Machine:      rt.MachineCost,
			LeadTimeDays: rt.LeadTimeDays,
		}
	}
	return snap, nil
}

// commitResult 一个事务内完成：清除上次运行遗留的planned订单、写入本次
// 建议与异常、收尾运行记录。firmed及之后状态的订单不受重算影响。
func (s *MRPService) commitResult(ctx context.Context, run *entity.MRPRun, result *engine.PlanResult) error {
	orders := make([]entity.PlannedOrder, 0, len(result.Orders))
	for _, p := range result.Orders {
		orders = append(orders, entity.PlannedOrder{
			ID:          p.ID,
			RunID:       run.ID,
			OrderType:   p.OrderType,
			ProductID:   p.ProductID,
			ProductSKU:  p.SKU,
			ProductName: p.Name,
			Quantity:    p.Quantity,
			Unit:        p.Unit,
			DueDate:     p.DueDate,
			StartDate:   p.StartDate,
			SourceType:  p.SourceType,
			SourceID:    p.SourceID,
			Status:      entity.PlannedStatusPlanned,
		})
	}
	exceptions := make([]entity.MRPRunException, 0, len(result.Exceptions))
	for _, e := range result.Exceptions {
		exceptions = append(exceptions, entity.MRPRunException{
			ID:         uuid.New().String()[:32],
			RunID:      run.ID,
			ProductID:  e.ProductID,
			ProductSKU: e.SKU,
			Code:       e.Code,
			Message:    e.Message,
		})
	}

	now := time.Now()
	run.Status = entity.RunStatusCompleted
	run.OrdersProcessed = result.Counters.OrdersProcessed
	run.ComponentsAnalyzed = result.Counters.ComponentsAnalyzed
	run.ShortagesFound = result.Counters.ShortagesFound
	run.PlannedOrdersCreated = result.Counters.PlannedOrdersCreated
	run.CompletedAt = &now

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("status = ?", entity.PlannedStatusPlanned).
			Delete(&entity.PlannedOrder{}).Error; err != nil {
			return fmt.Errorf("清理旧计划订单失败: %w", err)
		}
		if len(orders) > 0 {
			if err := tx.CreateInBatches(orders, 200).Error; err != nil {
				return fmt.Errorf("写入计划订单失败: %w", err)
			}
		}
		if len(exceptions) > 0 {
			if err := tx.CreateInBatches(exceptions, 200).Error; err != nil {
				return fmt.Errorf("写入运行异常失败: %w", err)
			}
		}
		if err := tx.Save(run).Error; err != nil {
			return fmt.Errorf("更新运行记录失败: %w", err)
		}
		return nil
	})
}

// failRun 把运行标记为失败并记录原因
func (s *MRPService) failRun(ctx context.Context, run *entity.MRPRun, cause error) {
	now := time.Now()
	run.Status = entity.RunStatusFailed
	run.ErrorMessage = cause.Error()
	run.CompletedAt = &now
	if err := s.repos.Run.Update(ctx, run); err != nil {
		s.logger.Error("标记运行失败状态出错",
			zap.String("run_code", run.RunCode), zap.Error(err))
	}
	s.logger.Error("MRP运行失败",
		zap.String("run_code", run.RunCode), zap.Error(cause))
	s.notifyFailed(ctx, run)
}

// GetRun 查询运行详情（含异常列表）
func (s *MRPService) GetRun(ctx context.Context, id string) (*entity.MRPRun, error) {
	return s.repos.Run.FindByID(ctx, id)
}

// ListRuns 分页查询运行历史
func (s *MRPService) ListRuns(ctx context.Context, status string, page, size int) ([]entity.MRPRun, int64, error) {
	return s.repos.Run.List(ctx, status, page, size)
}

// LatestCompleted 最近一次成功完成的运行
func (s *MRPService) LatestCompleted(ctx context.Context) (*entity.MRPRun, error) {
	return s.repos.Run.GetLatestCompleted(ctx)
}

var runExportHeaders = []string{"订单类型", "产品SKU", "产品名称", "数量", "单位", "开工日期", "到期日期", "需求来源", "状态"}

var runExceptionHeaders = []string{"产品SKU", "异常代码", "说明"}

// ExportRunExcel 导出运行结果工作簿：计划订单 + 运行异常两个工作表
func (s *MRPService) ExportRunExcel(ctx context.Context, runID string) (*excelize.File, string, error) {
	run, err := s.repos.Run.FindByID(ctx, runID)
	if err != nil {
		return nil, "", fmt.Errorf("运行记录不存在: %w", err)
	}
	orders, err := s.repos.PlannedOrder.ListByRun(ctx, runID)
	if err != nil {
		return nil, "", fmt.Errorf("加载计划订单失败: %w", err)
	}

	f := excelize.NewFile()
	sheet := "计划订单"
	f.SetSheetName("Sheet1", sheet)

	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, h := range runExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}
	typeNames := map[string]string{
		entity.OrderTypePurchase:   "采购",
		entity.OrderTypeProduction: "生产",
	}
	for rowIdx, o := range orders {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), typeNames[o.OrderType])
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), o.ProductSKU)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), o.ProductName)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), o.Quantity.InexactFloat64())
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), o.Unit)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), o.StartDate.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), o.DueDate.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), o.SourceType)
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), o.Status)
	}
	summaryRow := len(orders) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "汇总")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("计划订单数: %d", len(orders)))
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("I%d", summaryRow), summaryStyle)
	colWidths := []float64{8, 16, 20, 10, 6, 12, 12, 16, 10}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	excSheet := "运行异常"
	f.NewSheet(excSheet)
	for i, h := range runExceptionHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(excSheet, cell, h)
		f.SetCellStyle(excSheet, cell, cell, boldStyle)
	}
	for rowIdx, e := range run.Exceptions {
		row := rowIdx + 2
		f.SetCellValue(excSheet, fmt.Sprintf("A%d", row), e.ProductSKU)
		f.SetCellValue(excSheet, fmt.Sprintf("B%d", row), e.Code)
		f.SetCellValue(excSheet, fmt.Sprintf("C%d", row), e.Message)
	}
	f.SetColWidth(excSheet, "A", "A", 16)
	f.SetColWidth(excSheet, "B", "B", 18)
	f.SetColWidth(excSheet, "C", "C", 60)

	filename := fmt.Sprintf("MRP_%s.xlsx", run.RunCode)
	return f, filename, nil
}

// archiveReport 生成报表并归档到对象存储，成功后把路径写回运行记录
func (s *MRPService) archiveReport(ctx context.Context, run *entity.MRPRun) {
	if s.minio == nil || s.cfg.MinIO.Bucket == "" {
		return
	}
	f, _, err := s.ExportRunExcel(ctx, run.ID)
	if err != nil {
		s.logger.Warn("生成运行报表失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		s.logger.Warn("序列化运行报表失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
		return
	}
	objectName := fmt.Sprintf("reports/%s/%s.xlsx", run.StartedAt.Format("2006/01"), run.RunCode)
	_, err = s.minio.PutObject(ctx, s.cfg.MinIO.Bucket, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	})
	if err != nil {
		s.logger.Warn("归档运行报表失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
		return
	}
	run.ReportPath = objectName
	if err := s.repos.Run.Update(ctx, run); err != nil {
		s.logger.Warn("写入报表路径失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
	}
}

// notifyCompleted 向计划群发送运行完成卡片
func (s *MRPService) notifyCompleted(ctx context.Context, run *entity.MRPRun, exceptionCount int) {
	if s.feishu == nil || s.cfg.Feishu.ChatID == "" {
		return
	}
	card := feishu.NewMRPRunCompletedCard(run.RunCode, run.HorizonDays,
		run.OrdersProcessed, run.ShortagesFound, run.PlannedOrdersCreated, exceptionCount)
	if err := s.feishu.SendCard(ctx, s.cfg.Feishu.ChatID, card); err != nil {
		s.logger.Warn("发送运行完成通知失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
	}
}

// notifyFailed 向计划群发送运行失败卡片
func (s *MRPService) notifyFailed(ctx context.Context, run *entity.MRPRun) {
	if s.feishu == nil || s.cfg.Feishu.ChatID == "" {
		return
	}
	card := feishu.NewMRPRunFailedCard(run.RunCode, run.ErrorMessage)
	if err := s.feishu.SendCard(ctx, s.cfg.Feishu.ChatID, card); err != nil {
		s.logger.Warn("发送运行失败通知失败",
			zap.String("run_code", run.RunCode), zap.Error(err))
	}
}
