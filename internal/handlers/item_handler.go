// internal/handlers/item_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"study_tracker/internal/model"
	"study_tracker/internal/service"
	"study_tracker/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type ItemHandler struct {
	service         service.ItemService
	calendarService service.CalendarService
	logger          *slog.Logger
}

func NewItemHandler(s service.ItemService, cs service.CalendarService, logger *slog.Logger) *ItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ItemHandler{
		service:         s,
		calendarService: cs,
		logger:          logger,
	}
}

// PostItem は新しい学習項目を作成するためのハンドラ
func (h *ItemHandler) PostItem(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostItem"))

	var req model.PostItemRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		handleValidationError(w, logger, err, req)
		return
	}

	item, err := h.service.PostItem(r.Context(), &req)
	if err != nil {
		logger.Error("Error posting item in service", slog.Any("error", err), slog.Any("request", req))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Item posted successfully", slog.String("item_id", item.ItemID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, item, logger)
}

// GetItems は学習項目の一覧と集計値を取得するためのハンドラ。
// ソート・検索条件はクエリパラメータでリクエストごとに明示的に渡します。
func (h *ItemHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetItems"))

	q := model.ListQuery{
		SortBy:    r.URL.Query().Get("sort"),
		SortOrder: r.URL.Query().Get("order"),
		Search:    r.URL.Query().Get("search"),
	}

	resp, err := h.service.ListItems(r.Context(), q)
	if err != nil {
		logger.Error("Error listing items in service", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Items listed successfully", slog.Int("count", resp.TotalItems))
	webutil.RespondWithJSON(w, http.StatusOK, resp, logger)
}

// GetItem は特定の学習項目を取得するためのハンドラ
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetItem"))

	itemID, ok := parseItemID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("item_id", itemID.String()))

	item, err := h.service.GetItem(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Item not found in service", slog.Any("error", err))
		} else {
			logger.Error("Error getting item from service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, item, logger)
}

// PutItem は学習項目を更新するためのハンドラ。effective_date を指定すると
// 変更履歴がその日付に遡及して記録されます。
func (h *ItemHandler) PutItem(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PutItem"))

	itemID, ok := parseItemID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("item_id", itemID.String()))

	var req model.PutItemRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode PutItem request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		handleValidationError(w, logger, err, req)
		return
	}

	item, err := h.service.PutItem(r.Context(), itemID, &req)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || errors.Is(err, model.ErrInvalidInput) || errors.Is(err, model.ErrOrderingConflict) {
			logger.Warn("PutItem rejected", slog.Any("error", err))
		} else {
			logger.Error("Error putting item in service", slog.Any("error", err), slog.Any("request", req))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Item put successfully")
	webutil.RespondWithJSON(w, http.StatusOK, item, logger)
}

// DeleteItem は学習項目とその履歴を削除するためのハンドラ
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "DeleteItem"))

	itemID, ok := parseItemID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("item_id", itemID.String()))

	if err := h.service.DeleteItem(r.Context(), itemID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Item not found for deletion", slog.Any("error", err))
		} else {
			logger.Error("Error deleting item in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Item deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}

// BulkDelete は全件または選択した学習項目を一括削除するためのハンドラ
func (h *ItemHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "BulkDelete"))

	var req model.BulkDeleteRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode BulkDelete request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		handleValidationError(w, logger, err, req)
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), &req)
	if err != nil {
		logger.Error("Error bulk deleting items in service", slog.Any("error", err), slog.Any("request", req))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Bulk delete completed", slog.Int64("deleted", deleted))
	webutil.RespondWithJSON(w, http.StatusOK, model.BulkDeleteResponse{DeletedCount: deleted}, logger)
}

// GetItemHistory は1項目のチャート用時系列を取得するためのハンドラ
func (h *ItemHandler) GetItemHistory(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetItemHistory"))

	itemID, ok := parseItemID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("item_id", itemID.String()))

	points, err := h.calendarService.ItemSeries(r.Context(), itemID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Item not found for history series", slog.Any("error", err))
		} else {
			logger.Error("Error building item history series", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, points, logger)
}

// parseItemID はURLパラメータから item_id を取り出します。失敗時はレスポンス済み。
func parseItemID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	itemIDStr := chi.URLParam(r, "item_id")
	itemID, err := uuid.Parse(itemIDStr)
	if err != nil {
		logger.Warn("Invalid item ID format in URL", slog.String("item_id_str", itemIDStr), slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_URL_PARAM", "item_idの形式が正しくありません。", "item_id", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return uuid.Nil, false
	}
	return itemID, true
}

// handleValidationError はバリデーション結果をAppErrorに変換して返します
func handleValidationError(w http.ResponseWriter, logger *slog.Logger, err error, req interface{}) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		logger.Warn("Validation failed", slog.Any("errors", validationErrors.Error()), slog.Any("request", req))

		// 最初のエラーを代表としてクライアントに返す
		firstErr := validationErrors[0]
		translatedMsg := firstErr.Translate(webutil.Trans)

		appErr := model.NewAppError(
			"VALIDATION_ERROR",
			translatedMsg,
			firstErr.Field(),
			model.ErrInvalidInput,
		)
		webutil.HandleError(w, logger, appErr)
		return
	}

	logger.Error("Unexpected error during validation", slog.Any("error", err))
	webutil.HandleError(w, logger, err)
}
