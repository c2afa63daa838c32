// internal/model/keydate.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// KeyDate は試験日・締切などのユーザー定義の重要日付を表します
type KeyDate struct {
	KeyDateID uuid.UUID `gorm:"type:uuid;primaryKey" json:"key_date_id"`
	Name      string    `gorm:"not null" json:"name"`
	Date      time.Time `gorm:"type:date;not null;index" json:"-"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

func (KeyDate) TableName() string {
	return "key_dates"
}

// DaysRemaining は今日から対象日までの残日数を返します (過去は負)
func (k *KeyDate) DaysRemaining(today time.Time) int {
	return int(k.Date.Sub(DayOf(today)).Hours() / 24)
}

// 重要日付作成・更新リクエストDTO。Date は YYYY-MM-DD / YYYY.MM.DD のどちらでも可。
type PostKeyDateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Date  string `json:"date" validate:"required"`
	Notes string `json:"notes" validate:"omitempty"`
}

type PutKeyDateRequest struct {
	Name  string `json:"name" validate:"required,min=1,max=200"`
	Date  string `json:"date" validate:"required"`
	Notes string `json:"notes" validate:"omitempty"`
}

// KeyDateResponse は残日数などの導出値を含むレスポンスDTOです
type KeyDateResponse struct {
	KeyDateID     uuid.UUID `json:"key_date_id"`
	Name          string    `json:"name"`
	Date          string    `json:"date"` // YYYY-MM-DD
	Notes         string    `json:"notes"`
	DaysRemaining int       `json:"days_remaining"`
	IsPast        bool      `json:"is_past"`
	IsToday       bool      `json:"is_today"`
	CreatedAt     time.Time `json:"created_at"`
}

func (k *KeyDate) ToResponse(today time.Time) KeyDateResponse {
	remaining := k.DaysRemaining(today)
	return KeyDateResponse{
		KeyDateID:     k.KeyDateID,
		Name:          k.Name,
		Date:          k.Date.Format(DateLayout),
		Notes:         k.Notes,
		DaysRemaining: remaining,
		IsPast:        remaining < 0,
		IsToday:       remaining == 0,
		CreatedAt:     k.CreatedAt,
	}
}
