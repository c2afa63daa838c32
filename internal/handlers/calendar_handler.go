// internal/handlers/calendar_handler.go
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"study_tracker/internal/model"
	"study_tracker/internal/service"
	"study_tracker/internal/webutil"

	"github.com/go-chi/chi/v5"
)

type CalendarHandler struct {
	service service.CalendarService
	logger  *slog.Logger
}

func NewCalendarHandler(s service.CalendarService, logger *slog.Logger) *CalendarHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalendarHandler{
		service: s,
		logger:  logger,
	}
}

// GetMonth は月間カレンダーを取得するためのハンドラ。year/month 未指定なら当月。
func (h *CalendarHandler) GetMonth(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetMonth"))

	now := time.Now().UTC()
	year := now.Year()
	month := int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("Invalid year query parameter", slog.String("year", v))
			appErr := model.NewAppError("INVALID_QUERY_PARAM", "yearの形式が正しくありません。", "year", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		year = parsed
	}
	if v := r.URL.Query().Get("month"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			logger.Warn("Invalid month query parameter", slog.String("month", v))
			appErr := model.NewAppError("INVALID_QUERY_PARAM", "monthの形式が正しくありません。", "month", model.ErrInvalidInput)
			webutil.HandleError(w, logger, appErr)
			return
		}
		month = parsed
	}

	resp, err := h.service.MonthView(r.Context(), year, month)
	if err != nil {
		logger.Error("Error building month view", slog.Any("error", err), slog.Int("year", year), slog.Int("month", month))
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, resp, logger)
}

// GetDay は特定日の更新項目・履歴・重要日付を取得するためのハンドラ
func (h *CalendarHandler) GetDay(w http.ResponseWriter, r *http.Request) {
	logger := h.logger.With(slog.String("handler", "GetDay"))

	dateStr := chi.URLParam(r, "date_str")
	day, err := time.Parse(model.DateLayout, dateStr)
	if err != nil {
		logger.Warn("Invalid date format in URL", slog.String("date_str", dateStr))
		appErr := model.NewAppError("INVALID_DATE_FORMAT", "日付の形式が正しくありません。", "date_str", model.ErrInvalidInput)
		webutil.HandleError(w, logger, appErr)
		return
	}
	logger = logger.With(slog.String("date", dateStr))

	resp, err := h.service.DayView(r.Context(), day)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			logger.Warn("Day view rejected", slog.Any("error", err))
		} else {
			logger.Error("Error building day view", slog.Any("error", err))
		}
		webutil.HandleError(w, logger, err)
		return
	}

	webutil.RespondWithJSON(w, http.StatusOK, resp, logger)
}
