// internal/service/import_service.go
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ImportConfig はスプレッドシート取り込みの設定です。
// 列は "A", "B" のような列記号で指定します。タイトル列は複数指定でき、
// 値は半角スペースで連結されます。メモ列は改行で連結されます。
type ImportConfig struct {
	FilePath        string
	SheetName       string // 未指定なら先頭シート
	TitleColumns    []string
	NotesColumns    []string
	HoursColumn     string
	ProgressColumn  string
	TheoryColumn    string
	PracticalColumn string
	DataStartRow    int // 1始まり。デフォルトは2 (ヘッダ行をスキップ)
}

// ImportResult は取り込み結果のサマリです
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

type ImportService interface {
	ImportItems(ctx context.Context, cfg ImportConfig) (*ImportResult, error)
}

type importService struct {
	db       *gorm.DB
	itemRepo repository.ItemRepository
}

func NewImportService(db *gorm.DB, itemRepo repository.ItemRepository) ImportService {
	return &importService{
		db:       db,
		itemRepo: itemRepo,
	}
}

// ImportItems はExcelファイルの行を学習項目として取り込みます。
// 数値セルのパース失敗は既定値0で継続し、行単位のエラーとして結果に記録します。
// 挿入は全行分を単一トランザクションで行い、途中失敗で部分的な取り込みは残りません。
func (s *importService) ImportItems(ctx context.Context, cfg ImportConfig) (*ImportResult, error) {
	logger := middleware.GetLogger(ctx)

	f, err := excelize.OpenFile(cfg.FilePath)
	if err != nil {
		return nil, model.NewAppError("INVALID_IMPORT_FILE", "Excelファイルを開けませんでした。", "file", model.ErrInvalidInput)
	}
	defer f.Close()

	sheet := cfg.SheetName
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, model.NewAppError("INVALID_IMPORT_FILE", "シートが見つかりません。", "sheet_name", model.ErrInvalidInput)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, model.NewAppError("INVALID_IMPORT_FILE", "指定されたシートを読み取れませんでした。", "sheet_name", model.ErrInvalidInput)
	}

	startRow := cfg.DataStartRow
	if startRow <= 0 {
		startRow = 2
	}

	titleIndices := columnsToIndices(cfg.TitleColumns)
	notesIndices := columnsToIndices(cfg.NotesColumns)
	hoursIndex := columnToIndex(cfg.HoursColumn)
	progressIndex := columnToIndex(cfg.ProgressColumn)
	theoryIndex := columnToIndex(cfg.TheoryColumn)
	practicalIndex := columnToIndex(cfg.PracticalColumn)

	result := &ImportResult{Errors: make([]string, 0)}
	now := time.Now().UTC()
	items := make([]*model.StudyItem, 0, len(rows))

	for i, row := range rows {
		rowNum := i + 1
		if rowNum < startRow {
			continue
		}

		title := joinCells(row, titleIndices, " ")
		if strings.TrimSpace(title) == "" {
			result.Skipped++
			continue
		}
		notes := joinCells(row, notesIndices, "\n")

		hours, err := parseFloatCell(row, hoursIndex)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
		if hours < 0 {
			hours = 0
		}
		progress, err := parseIntCell(row, progressIndex)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
		theory, err := parseIntCell(row, theoryIndex)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
		practical, err := parseIntCell(row, practicalIndex)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}

		items = append(items, &model.StudyItem{
			ItemID:              uuid.New(),
			Title:               title,
			Notes:               notes,
			HoursSpent:          hours,
			Progress:            model.ClampProgress(progress),
			TheoryConfidence:    model.ClampConfidence(theory),
			PracticalConfidence: model.ClampConfidence(practical),
			LastModified:        now,
			OperationType:       model.OperationCreated,
		})
	}

	// 全行を単一トランザクションで挿入する。途中で失敗した場合は1行も残さない。
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			if err := s.itemRepo.Create(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Transaction failed for ImportItems", "error", err)
		return nil, model.ErrInternalServer
	}

	result.Imported = len(items)
	logger.Info("Spreadsheet import completed",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"row_errors", len(result.Errors),
	)
	return result, nil
}

// columnToIndex は列記号 ("A", "AB" など) を0始まりの列番号に変換します。
// 空文字は -1 を返します。
func columnToIndex(column string) int {
	column = strings.ToUpper(strings.TrimSpace(column))
	if column == "" {
		return -1
	}
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}

func columnsToIndices(columns []string) []int {
	indices := make([]int, 0, len(columns))
	for _, col := range columns {
		if idx := columnToIndex(col); idx >= 0 {
			indices = append(indices, idx)
		}
	}
	return indices
}

func cellAt(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

func joinCells(row []string, indices []int, sep string) string {
	parts := make([]string, 0, len(indices))
	for _, idx := range indices {
		if v := cellAt(row, idx); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}

// parseFloatCell はセルを実数としてパースします。空セルは0。
// パース失敗も0にフォールバックし、エラーを返して行単位で記録させます。
func parseFloatCell(row []string, index int) (float64, error) {
	v := cellAt(row, index)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", v)
	}
	return f, nil
}

func parseIntCell(row []string, index int) (int, error) {
	f, err := parseFloatCell(row, index)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
