// internal/handlers/import_handler.go
package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"study_tracker/internal/model"
	"study_tracker/internal/service"
	"study_tracker/internal/webutil"
)

type ImportHandler struct {
	service  service.ImportService
	maxBytes int64
	logger   *slog.Logger
}

func NewImportHandler(s service.ImportService, maxBytes int64, logger *slog.Logger) *ImportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportHandler{
		service:  s,
		maxBytes: maxBytes,
		logger:   logger,
	}
}

// PostImport はExcelファイルからの一括取り込みを行うハンドラ。
// multipart/form-data で file と列マッピング (title_columns, notes_columns,
// hours_column, progress_column, theory_column, practical_column, sheet_name,
// data_start_row) を受け取ります。
func (h *ImportHandler) PostImport(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostImport"))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		logger.Warn("Failed to parse multipart form", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "アップロードの形式が正しくないか、サイズが大きすぎます。", "file", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.Warn("No file in import request", slog.String("error", err.Error()))
		appErr := model.NewAppError("VALIDATION_ERROR", "ファイルが選択されていません。", "file", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".xls" {
		logger.Warn("Unsupported import file type", slog.String("filename", header.Filename))
		appErr := model.NewAppError("VALIDATION_ERROR", "Excelファイル (.xlsx または .xls) をアップロードしてください。", "file", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	// 一時ファイルに保存して取り込み後に削除する
	tmp, err := os.CreateTemp("", "study-import-*"+ext)
	if err != nil {
		logger.Error("Failed to create temp file for import", slog.Any("error", err))
		webutil.HandleError(w, logger, model.ErrInternalServer)
		return
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		logger.Error("Failed to save uploaded file", slog.Any("error", err))
		webutil.HandleError(w, logger, model.ErrInternalServer)
		return
	}
	tmp.Close()

	cfg := service.ImportConfig{
		FilePath:        tmpPath,
		SheetName:       r.FormValue("sheet_name"),
		TitleColumns:    formValues(r, "title_columns"),
		NotesColumns:    formValues(r, "notes_columns"),
		HoursColumn:     r.FormValue("hours_column"),
		ProgressColumn:  r.FormValue("progress_column"),
		TheoryColumn:    r.FormValue("theory_column"),
		PracticalColumn: r.FormValue("practical_column"),
	}
	if v := r.FormValue("data_start_row"); v != "" {
		startRow, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("Invalid data_start_row value", slog.String("value", v))
			appErr := model.NewAppError("VALIDATION_ERROR", "data_start_rowの形式が正しくありません。", "data_start_row", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		cfg.DataStartRow = startRow
	}

	result, err := h.service.ImportItems(r.Context(), cfg)
	if err != nil {
		logger.Error("Error importing items in service", slog.Any("error", err), slog.String("filename", header.Filename))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Import completed",
		slog.String("filename", header.Filename),
		slog.Int("imported", result.Imported),
		slog.Int("skipped", result.Skipped),
	)
	webutil.RespondWithJSON(w, http.StatusOK, result, logger)
}

// formValues は同名で複数指定されたフォーム値を返します
func formValues(r *http.Request, key string) []string {
	if r.MultipartForm == nil {
		return nil
	}
	return r.MultipartForm.Value[key]
}
