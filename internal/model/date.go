// internal/model/date.go
package model

import "time"

// 日付文字列のレイアウト。"2025.04.01" 形式の入力も受け付けます。
const (
	DateLayout    = "2006-01-02"
	DateLayoutDot = "2006.01.02"
)

// ParseFlexibleDate は YYYY-MM-DD または YYYY.MM.DD 形式の日付文字列をパースします。
// 結果は UTC の0時に正規化されます。
func ParseFlexibleDate(s string) (time.Time, error) {
	layout := DateLayout
	if hasDot(s) {
		layout = DateLayoutDot
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t), nil
}

func hasDot(s string) bool {
	for _, r := range s {
		if r == '.' {
			return true
		}
	}
	return false
}

// DayOf はタイムスタンプをUTCの暦日 (0時) に切り詰めます
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
