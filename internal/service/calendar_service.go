// internal/service/calendar_service.go
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"study_tracker/internal/middleware"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CalendarService は項目の更新タイムスタンプと履歴レコードを集約し、
// カレンダー表示とチャート用の時系列を生成します。
type CalendarService interface {
	MonthView(ctx context.Context, year, month int) (*model.CalendarMonthResponse, error)
	DayView(ctx context.Context, day time.Time) (*model.CalendarDayResponse, error)
	ItemSeries(ctx context.Context, itemID uuid.UUID) ([]model.SeriesPoint, error)
}

type calendarService struct {
	db          *gorm.DB
	itemRepo    repository.ItemRepository
	historyRepo repository.HistoryRepository
	keyDateRepo repository.KeyDateRepository
}

func NewCalendarService(db *gorm.DB, itemRepo repository.ItemRepository, historyRepo repository.HistoryRepository, keyDateRepo repository.KeyDateRepository) CalendarService {
	return &calendarService{
		db:          db,
		itemRepo:    itemRepo,
		historyRepo: historyRepo,
		keyDateRepo: keyDateRepo,
	}
}

// MonthView は指定月の週単位グリッド (月曜始まり) を生成します。
// ある日に「活動あり」となるのは、項目の最終更新日がその日に当たるか、
// その日を対象とする履歴レコードが存在する場合です。後者は遡及記録
// (更新タイムスタンプは編集時刻のまま) をカレンダー上で拾うためのものです。
func (s *calendarService) MonthView(ctx context.Context, year, month int) (*model.CalendarMonthResponse, error) {
	logger := middleware.GetLogger(ctx)

	if month < 1 || month > 12 || year < 1 {
		return nil, model.NewAppError("VALIDATION_ERROR", "年月の指定が正しくありません。", "month", model.ErrInvalidInput)
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	nextMonthStart := monthStart.AddDate(0, 1, 0)
	monthEnd := nextMonthStart.AddDate(0, 0, -1)

	// 活動日 = 項目の最終更新日 ∪ 履歴レコードの対象日
	activeDays := make(map[time.Time]bool)

	items, err := s.itemRepo.FindModifiedBetween(ctx, s.db, monthStart, nextMonthStart)
	if err != nil {
		logger.Error("Error finding modified items for month view", "error", err)
		return nil, model.ErrInternalServer
	}
	for _, item := range items {
		activeDays[model.DayOf(item.LastModified)] = true
	}

	histories, err := s.historyRepo.FindInRange(ctx, s.db, monthStart, monthEnd)
	if err != nil {
		logger.Error("Error finding history records for month view", "error", err)
		return nil, model.ErrInternalServer
	}
	for _, rec := range histories {
		activeDays[model.DayOf(rec.Day)] = true
	}

	now := time.Now().UTC()
	today := model.DayOf(now)

	keyDates, err := s.keyDateRepo.FindAll(ctx, s.db)
	if err != nil {
		logger.Error("Error finding key dates for month view", "error", err)
		return nil, model.ErrInternalServer
	}
	keyDateByDay := make(map[time.Time]*model.KeyDate, len(keyDates))
	keyDateResponses := make([]model.KeyDateResponse, 0, len(keyDates))
	for _, k := range keyDates {
		keyDateByDay[model.DayOf(k.Date)] = k
		keyDateResponses = append(keyDateResponses, k.ToResponse(now))
	}

	// 月曜始まりの週単位グリッド。月初までの空きと月末以降はnullセルで埋める。
	daysInMonth := monthEnd.Day()
	leadingBlanks := (int(monthStart.Weekday()) + 6) % 7
	totalCells := leadingBlanks + daysInMonth
	if rem := totalCells % 7; rem != 0 {
		totalCells += 7 - rem
	}

	weeks := make([][]*model.CalendarDayCell, 0, totalCells/7)
	var week []*model.CalendarDayCell
	for cell := 0; cell < totalCells; cell++ {
		if cell%7 == 0 {
			week = make([]*model.CalendarDayCell, 0, 7)
		}

		dayNum := cell - leadingBlanks + 1
		if dayNum < 1 || dayNum > daysInMonth {
			week = append(week, nil)
		} else {
			dayDate := time.Date(year, time.Month(month), dayNum, 0, 0, 0, 0, time.UTC)
			dayCell := &model.CalendarDayCell{
				Day:        dayNum,
				Date:       dayDate.Format(model.DateLayout),
				HasUpdates: activeDays[dayDate],
				IsToday:    dayDate.Equal(today),
			}
			if k, ok := keyDateByDay[dayDate]; ok {
				resp := k.ToResponse(now)
				dayCell.KeyDate = &resp
			}
			week = append(week, dayCell)
		}

		if cell%7 == 6 {
			weeks = append(weeks, week)
		}
	}

	prevYear, prevMonth := year, month-1
	if prevMonth < 1 {
		prevYear, prevMonth = year-1, 12
	}
	nextYear, nextMonth := year, month+1
	if nextMonth > 12 {
		nextYear, nextMonth = year+1, 1
	}

	return &model.CalendarMonthResponse{
		Year:      year,
		Month:     month,
		MonthName: monthStart.Month().String(),
		Weeks:     weeks,
		KeyDates:  keyDateResponses,
		PrevYear:  prevYear,
		PrevMonth: prevMonth,
		NextYear:  nextYear,
		NextMonth: nextMonth,
	}, nil
}

// DayView は指定日の24時間に更新された項目と、その日を対象とする履歴レコードを
// マージして返します。履歴レコード経由でのみ現れる項目 (その後さらに編集されて
// 最終更新日がこの日ではなくなったもの) も文脈として含めます。
func (s *calendarService) DayView(ctx context.Context, day time.Time) (*model.CalendarDayResponse, error) {
	logger := middleware.GetLogger(ctx)

	dayStart := model.DayOf(day)
	dayEnd := dayStart.AddDate(0, 0, 1)

	items, err := s.itemRepo.FindModifiedBetween(ctx, s.db, dayStart, dayEnd)
	if err != nil {
		logger.Error("Error finding modified items for day view", "error", err)
		return nil, model.ErrInternalServer
	}

	histories, err := s.historyRepo.FindByDay(ctx, s.db, dayStart)
	if err != nil {
		logger.Error("Error finding history records for day view", "error", err)
		return nil, model.ErrInternalServer
	}
	historyByItem := make(map[uuid.UUID]*model.HistoryRecord, len(histories))
	for _, rec := range histories {
		historyByItem[rec.ItemID] = rec
	}

	entries := make([]model.CalendarDayEntry, 0, len(items)+len(histories))
	seen := make(map[uuid.UUID]bool, len(items))

	for _, item := range items {
		entry := model.CalendarDayEntry{Item: item, ModifiedInDay: true}
		if rec, ok := historyByItem[item.ItemID]; ok {
			resp := rec.ToResponse()
			entry.History = &resp
		}
		entries = append(entries, entry)
		seen[item.ItemID] = true
	}

	for _, rec := range histories {
		if seen[rec.ItemID] {
			continue
		}
		item, err := s.itemRepo.FindByID(ctx, s.db, rec.ItemID)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			logger.Error("Error loading item for history record in day view", "error", err)
			return nil, model.ErrInternalServer
		}
		resp := rec.ToResponse()
		entries = append(entries, model.CalendarDayEntry{
			Item:          item,
			History:       &resp,
			ModifiedInDay: false,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Item.LastModified.After(entries[j].Item.LastModified)
	})

	resp := &model.CalendarDayResponse{
		Date:    dayStart.Format(model.DateLayout),
		Entries: entries,
	}

	keyDate, err := s.keyDateRepo.FindByDate(ctx, s.db, dayStart)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		logger.Error("Error finding key date for day view", "error", err)
		return nil, model.ErrInternalServer
	}
	if keyDate != nil {
		k := keyDate.ToResponse(time.Now().UTC())
		resp.KeyDate = &k
	}

	return resp, nil
}

// ItemSeries は1項目の履歴を日付昇順の時系列に変換します。各点の値は、その日の
// delta に含まれるフィールドは delta の new、含まれないフィールドは項目の現在値です
// (既知の近似。deltaに現れない日の真の過去値は保持していない)。
// 履歴が1件もなければ、今日の日付で現在値の1点のみを返します。
func (s *calendarService) ItemSeries(ctx context.Context, itemID uuid.UUID) ([]model.SeriesPoint, error) {
	logger := middleware.GetLogger(ctx).With("item_id", itemID.String())

	item, err := s.itemRepo.FindByID(ctx, s.db, itemID)
	if err != nil {
		return nil, err
	}

	recs, err := s.historyRepo.FindByItem(ctx, s.db, itemID)
	if err != nil {
		logger.Error("Error finding history records for series", "error", err)
		return nil, model.ErrInternalServer
	}

	if len(recs) == 0 {
		return []model.SeriesPoint{{
			Day:                 model.DayOf(time.Now().UTC()).Format(model.DateLayout),
			HoursSpent:          item.HoursSpent,
			Progress:            item.Progress,
			TheoryConfidence:    item.TheoryConfidence,
			PracticalConfidence: item.PracticalConfidence,
		}}, nil
	}

	points := make([]model.SeriesPoint, 0, len(recs))
	for _, rec := range recs {
		point := model.SeriesPoint{
			Day:                 rec.Day.Format(model.DateLayout),
			HoursSpent:          item.HoursSpent,
			Progress:            item.Progress,
			TheoryConfidence:    item.TheoryConfidence,
			PracticalConfidence: item.PracticalConfidence,
		}
		delta := rec.Delta.Data()
		if change, ok := delta[model.FieldHoursSpent]; ok {
			point.HoursSpent = change.New
		}
		if change, ok := delta[model.FieldProgress]; ok {
			point.Progress = int(change.New)
		}
		if change, ok := delta[model.FieldTheoryConfidence]; ok {
			point.TheoryConfidence = int(change.New)
		}
		if change, ok := delta[model.FieldPracticalConfidence]; ok {
			point.PracticalConfidence = int(change.New)
		}
		points = append(points, point)
	}

	return points, nil
}
