// internal/model/calendar.go
package model

// CalendarDayCell は月間カレンダーの1マス分です。
// 月外のマスはセル自体が null になります (週は常に7要素)。
type CalendarDayCell struct {
	Day        int              `json:"day"`
	Date       string           `json:"date"` // YYYY-MM-DD
	HasUpdates bool             `json:"has_updates"`
	IsToday    bool             `json:"is_today"`
	KeyDate    *KeyDateResponse `json:"key_date,omitempty"`
}

// CalendarMonthResponse は月表示のレスポンスです。Weeks は月曜始まりの週単位グリッド。
type CalendarMonthResponse struct {
	Year      int                  `json:"year"`
	Month     int                  `json:"month"`
	MonthName string               `json:"month_name"`
	Weeks     [][]*CalendarDayCell `json:"weeks"`
	KeyDates  []KeyDateResponse    `json:"key_dates"`
	PrevYear  int                  `json:"prev_year"`
	PrevMonth int                  `json:"prev_month"`
	NextYear  int                  `json:"next_year"`
	NextMonth int                  `json:"next_month"`
}

// CalendarDayEntry は日表示の1エントリです。
// History が付くのはその日の履歴レコードを持つ項目。ModifiedInDay が false の項目は
// 履歴レコード経由でのみ現れたもの (その後さらに編集された項目) を意味します。
type CalendarDayEntry struct {
	Item          *StudyItem             `json:"item"`
	History       *HistoryRecordResponse `json:"history,omitempty"`
	ModifiedInDay bool                   `json:"modified_in_day"`
}

// CalendarDayResponse は日表示のレスポンスです
type CalendarDayResponse struct {
	Date    string             `json:"date"` // YYYY-MM-DD
	Entries []CalendarDayEntry `json:"entries"`
	KeyDate *KeyDateResponse   `json:"key_date,omitempty"`
}
