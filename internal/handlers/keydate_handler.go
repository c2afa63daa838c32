// internal/handlers/keydate_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"study_tracker/internal/model"
	"study_tracker/internal/service"
	"study_tracker/internal/webutil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type KeyDateHandler struct {
	service service.KeyDateService
	logger  *slog.Logger
}

func NewKeyDateHandler(s service.KeyDateService, logger *slog.Logger) *KeyDateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyDateHandler{
		service: s,
		logger:  logger,
	}
}

// PostKeyDate は重要日付を作成するためのハンドラ
func (h *KeyDateHandler) PostKeyDate(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PostKeyDate"))

	var req model.PostKeyDateRequest
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

	keyDate, err := h.service.PostKeyDate(r.Context(), &req)
	if err != nil {
		logger.Error("Error posting key date in service", slog.Any("error", err), slog.Any("request", req))
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Key date posted successfully", slog.String("key_date_id", keyDate.KeyDateID.String()))
	webutil.RespondWithJSON(w, http.StatusCreated, keyDate.ToResponse(time.Now().UTC()), logger)
}

// GetKeyDates は重要日付の一覧を取得するためのハンドラ
func (h *KeyDateHandler) GetKeyDates(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetKeyDates"))

	keyDates, err := h.service.ListKeyDates(r.Context())
	if err != nil {
		logger.Error("Error listing key dates in service", slog.Any("error", err))
		webutil.HandleError(w, logger, err)
		return
	}

	now := time.Now().UTC()
	responses := make([]model.KeyDateResponse, 0, len(keyDates))
	for _, k := range keyDates {
		responses = append(responses, k.ToResponse(now))
	}

	webutil.RespondWithJSON(w, http.StatusOK, responses, logger)
}

// PutKeyDate は重要日付を更新するためのハンドラ
func (h *KeyDateHandler) PutKeyDate(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "PutKeyDate"))

	keyDateID, ok := parseKeyDateID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("key_date_id", keyDateID.String()))

	var req model.PutKeyDateRequest
	if err := webutil.DecodeJSONBody(r, &req); err != nil {
		logger.Warn("Failed to decode PutKeyDate request body", slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_REQUEST_BODY", "リクエストボディの形式が正しくありません。", "", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}

	if err := webutil.Validator.Struct(req); err != nil {
		handleValidationError(w, logger, err, req)
		return
	}

	keyDate, err := h.service.PutKeyDate(r.Context(), keyDateID, &req)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Key date not found in service", slog.Any("error", err))
		} else {
			logger.Error("Error putting key date in service", slog.Any("error", err), slog.Any("request", req))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Key date put successfully")
	webutil.RespondWithJSON(w, http.StatusOK, keyDate.ToResponse(time.Now().UTC()), logger)
}

// DeleteKeyDate は重要日付を削除するためのハンドラ
func (h *KeyDateHandler) DeleteKeyDate(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "DeleteKeyDate"))

	keyDateID, ok := parseKeyDateID(w, r, logger)
	if !ok {
		return
	}
	logger = logger.With(slog.String("key_date_id", keyDateID.String()))

	if err := h.service.DeleteKeyDate(r.Context(), keyDateID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Info("Key date not found for deletion", slog.Any("error", err))
		} else {
			logger.Error("Error deleting key date in service", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	logger.Info("Key date deleted successfully")
	w.WriteHeader(http.StatusNoContent)
}

func parseKeyDateID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	keyDateIDStr := chi.URLParam(r, "key_date_id")
	keyDateID, err := uuid.Parse(keyDateIDStr)
	if err != nil {
		logger.Warn("Invalid key date ID format in URL", slog.String("key_date_id_str", keyDateIDStr), slog.String("error", err.Error()))
		appErr := model.NewAppError("INVALID_URL_PARAM", "key_date_idの形式が正しくありません。", "key_date_id", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return uuid.Nil, false
	}
	return keyDateID, true
}
