package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"github.com/Blb3D/filaops-sub000/internal/mrp/engine"
	"github.com/Blb3D/filaops-sub000/internal/mrp/entity"
	"github.com/Blb3D/filaops-sub000/internal/mrp/repository"
)

// ForecastService 需求预测维护与导入
type ForecastService struct {
	repo        *repository.ForecastRepository
	productRepo *repository.ProductRepository
}

func NewForecastService(repo *repository.ForecastRepository, productRepo *repository.ProductRepository) *ForecastService {
	return &ForecastService{repo: repo, productRepo: productRepo}
}

// ForecastRequest 创建/更新预测请求
type ForecastRequest struct {
	ProductID string          `json:"product_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	DueDate   time.Time       `json:"due_date" binding:"required"`
	Notes     string          `json:"notes"`
}

// Create 创建需求预测
func (s *ForecastService) Create(ctx context.Context, req ForecastRequest, userID string) (*entity.DemandForecast, error) {
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("预测数量: %w", engine.ErrInvalidQuantity)
	}
	product, err := s.productRepo.FindByID(ctx, req.ProductID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("产品不存在: %s", req.ProductID)
		}
		return nil, fmt.Errorf("查询产品失败: %w", err)
	}
	f := &entity.DemandForecast{
		ID:         uuid.New().String()[:32],
		ProductID:  product.ID,
		ProductSKU: product.SKU,
		Quantity:   req.Quantity,
		DueDate:    req.DueDate,
		Source:     entity.ForecastSourceManual,
		Notes:      req.Notes,
		CreatedBy:  userID,
	}
	if err := s.repo.Create(ctx, f); err != nil {
		return nil, fmt.Errorf("创建预测失败: %w", err)
	}
	return f, nil
}

// Update 更新需求预测
func (s *ForecastService) Update(ctx context.Context, id string, req ForecastRequest) (*entity.DemandForecast, error) {
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("预测数量: %w", engine.ErrInvalidQuantity)
	}
	f, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ProductID != "" && req.ProductID != f.ProductID {
		product, err := s.productRepo.FindByID(ctx, req.ProductID)
		if err != nil {
			return nil, fmt.Errorf("产品不存在: %s", req.ProductID)
		}
		f.ProductID = product.ID
		f.ProductSKU = product.SKU
	}
	f.Quantity = req.Quantity
	f.DueDate = req.DueDate
	f.Notes = req.Notes
	if err := s.repo.Update(ctx, f); err != nil {
		return nil, fmt.Errorf("更新预测失败: %w", err)
	}
	return f, nil
}

// Delete 删除需求预测
func (s *ForecastService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// List 分页查询需求预测
func (s *ForecastService) List(ctx context.Context, params repository.ForecastListParams) ([]entity.DemandForecast, int64, error) {
	return s.repo.List(ctx, params)
}

// ImportResult CSV导入结果
type ImportResult struct {
	Created int      `json:"created"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportCSV 从CSV导入需求预测。表头固定为 sku,quantity,due_date，
// 日期格式2006-01-02。非UTF-8内容按GBK解码。
// 单行出错只记入错误列表，不中断整个导入。
func (s *ForecastService) ImportCSV(ctx context.Context, reader io.Reader, userID string) (*ImportResult, error) {
	buffered := bufio.NewReader(reader)
	head, _ := buffered.Peek(1024)
	var src io.Reader = buffered
	if !utf8.Valid(head) {
		// GBK → UTF-8
		src = transform.NewReader(buffered, simplifiedchinese.GBK.NewDecoder())
	}

	result := &ImportResult{}
	var forecasts []entity.DemandForecast

	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if lineNo == 1 {
			if err := validateImportHeader(line); err != nil {
				return nil, err
			}
			continue
		}

		f, err := s.parseImportRow(ctx, line, userID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("第%d行: %v", lineNo, err))
			continue
		}
		forecasts = append(forecasts, *f)
		result.Created++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取导入文件失败: %w", err)
	}

	if err := s.repo.BatchCreate(ctx, forecasts); err != nil {
		return nil, fmt.Errorf("批量写入预测失败: %w", err)
	}
	return result, nil
}

func validateImportHeader(line string) error {
	cols := strings.Split(line, ",")
	if len(cols) < 3 ||
		!strings.EqualFold(strings.TrimSpace(cols[0]), "sku") ||
		!strings.EqualFold(strings.TrimSpace(cols[1]), "quantity") ||
		!strings.EqualFold(strings.TrimSpace(cols[2]), "due_date") {
		return fmt.Errorf("表头格式错误，应为 sku,quantity,due_date")
	}
	return nil
}

func (s *ForecastService) parseImportRow(ctx context.Context, line, userID string) (*entity.DemandForecast, error) {
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(fields[i]), "\"")
	}
	if len(fields) < 3 {
		return nil, fmt.Errorf("列数不足")
	}

	product, err := s.productRepo.FindBySKU(ctx, fields[0])
	if err != nil {
		return nil, fmt.Errorf("SKU不存在: %s", fields[0])
	}
	qty, err := decimal.NewFromString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("数量格式错误: %s", fields[1])
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, engine.ErrInvalidQuantity
	}
	due, err := time.Parse("2006-01-02", fields[2])
	if err != nil {
		return nil, fmt.Errorf("日期格式错误: %s", fields[2])
	}

	notes := ""
	if len(fields) > 3 {
		notes = fields[3]
	}
	return &entity.DemandForecast{
		ID:         uuid.New().String()[:32],
		ProductID:  product.ID,
		ProductSKU: product.SKU,
		Quantity:   qty,
		DueDate:    due,
		Source:     entity.ForecastSourceImport,
		Notes:      notes,
		CreatedBy:  userID,
	}, nil
}
