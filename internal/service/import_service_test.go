// internal/service/import_service_test.go
package service

import (
	"context"
	"path/filepath"
	"testing"

	"study_tracker/internal/config"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// writeTestWorkbook はテスト用のxlsxファイルを作成します。
// rows は2行目 (データ開始行) からシートに書き込まれます。
func writeTestWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := []interface{}{"Title", "Subtitle", "Notes", "Hours", "Progress", "Theory", "Practical"}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "import.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func newImportServiceForTest(t *testing.T) (ImportService, ItemService) {
	t.Helper()

	db := setupTestDB(t)
	itemRepo := repository.NewGormItemRepository()
	historyRepo := repository.NewGormHistoryRepository()
	keyDateRepo := repository.NewGormKeyDateRepository()

	cfg := &config.Config{}
	cfg.App.UpcomingKeyDateLimit = 5
	itemSvc := NewItemService(db, itemRepo, historyRepo, keyDateRepo, NewDeltaEngine(historyRepo), cfg)
	return NewImportService(db, itemRepo), itemSvc
}

func TestImportService_ImportItems(t *testing.T) {
	ctx := context.Background()

	baseConfig := func(path string) ImportConfig {
		return ImportConfig{
			FilePath:        path,
			TitleColumns:    []string{"A", "B"},
			NotesColumns:    []string{"C"},
			HoursColumn:     "D",
			ProgressColumn:  "E",
			TheoryColumn:    "F",
			PracticalColumn: "G",
		}
	}

	t.Run("正常系: 複数行の取り込みとタイトル列の連結", func(t *testing.T) {
		svc, itemSvc := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"TCP/IP", "基礎", "章末まで読了", 2.5, 40, 3, 2},
			{"DNS", "", "", 1.0, 10, 1, 0},
		})

		result, err := svc.ImportItems(ctx, baseConfig(path))
		require.NoError(t, err)

		assert.Equal(t, 2, result.Imported)
		assert.Equal(t, 0, result.Skipped)
		assert.Empty(t, result.Errors)

		resp, err := itemSvc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)
		require.Equal(t, 2, resp.TotalItems)

		byTitle := make(map[string]*model.StudyItem)
		for _, item := range resp.Items {
			byTitle[item.Title] = item
		}
		joined, ok := byTitle["TCP/IP 基礎"]
		require.True(t, ok, "title columns should be joined with a space")
		assert.Equal(t, "章末まで読了", joined.Notes)
		assert.InDelta(t, 2.5, joined.HoursSpent, 0.001)
		assert.Equal(t, 40, joined.Progress)
		assert.Equal(t, model.OperationCreated, joined.OperationType)
	})

	t.Run("正常系: タイトルが空の行はスキップ", func(t *testing.T) {
		svc, itemSvc := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"", "", "notes only", 1.0, 10, 1, 1},
			{"Valid", "", "", 1.0, 10, 1, 1},
		})

		result, err := svc.ImportItems(ctx, baseConfig(path))
		require.NoError(t, err)

		assert.Equal(t, 1, result.Imported)
		assert.Equal(t, 1, result.Skipped)

		resp, err := itemSvc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)
		assert.Equal(t, 1, resp.TotalItems)
	})

	t.Run("正常系: 数値セルのパース失敗は0にして継続", func(t *testing.T) {
		svc, itemSvc := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"Broken hours", "", "", "二時間", 40, 1, 1},
			{"Fine", "", "", 1.0, 10, 1, 1},
		})

		result, err := svc.ImportItems(ctx, baseConfig(path))
		require.NoError(t, err)

		// 行は捨てずに取り込み、エラーとして記録される
		assert.Equal(t, 2, result.Imported)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "Row 2")

		resp, err := itemSvc.ListItems(ctx, model.ListQuery{Search: "Broken"})
		require.NoError(t, err)
		require.Equal(t, 1, resp.TotalItems)
		assert.InDelta(t, 0.0, resp.Items[0].HoursSpent, 0.001)
		assert.Equal(t, 40, resp.Items[0].Progress)
	})

	t.Run("正常系: 範囲外の値はクランプされる", func(t *testing.T) {
		svc, itemSvc := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"Clamped", "", "", 1.0, 150, 9, -1},
		})

		_, err := svc.ImportItems(ctx, baseConfig(path))
		require.NoError(t, err)

		resp, err := itemSvc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, resp.TotalItems)
		assert.Equal(t, 100, resp.Items[0].Progress)
		assert.Equal(t, 5, resp.Items[0].TheoryConfidence)
		assert.Equal(t, 0, resp.Items[0].PracticalConfidence)
	})

	t.Run("正常系: データ開始行の指定", func(t *testing.T) {
		svc, itemSvc := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"Skipped as header", "", "", 1.0, 10, 1, 1},
			{"Imported", "", "", 1.0, 10, 1, 1},
		})

		cfg := baseConfig(path)
		cfg.DataStartRow = 3 // 1行目のヘッダに加えて2行目も読み飛ばす

		result, err := svc.ImportItems(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Imported)

		resp, err := itemSvc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, resp.TotalItems)
		assert.Equal(t, "Imported", resp.Items[0].Title)
	})

	t.Run("異常系: ファイルが開けない", func(t *testing.T) {
		svc, _ := newImportServiceForTest(t)

		_, err := svc.ImportItems(ctx, baseConfig(filepath.Join(t.TempDir(), "missing.xlsx")))
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 存在しないシート名", func(t *testing.T) {
		svc, _ := newImportServiceForTest(t)

		path := writeTestWorkbook(t, [][]interface{}{
			{"Row", "", "", 1.0, 10, 1, 1},
		})
		cfg := baseConfig(path)
		cfg.SheetName = "no_such_sheet"

		_, err := svc.ImportItems(ctx, cfg)
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}

func TestColumnToIndex(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"A", 0},
		{"B", 1},
		{"Z", 25},
		{"AA", 26},
		{"AB", 27},
		{" c ", 2}, // 前後の空白と小文字は許容
		{"", -1},
		{"1", -1},
		{"A1", -1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, columnToIndex(tt.input), "columnToIndex(%q)", tt.input)
	}
}
