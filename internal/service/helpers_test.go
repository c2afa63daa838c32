// helpers_test.go
package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"study_tracker/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB はテストごとに独立したインメモリDBを作成し、マイグレーションを適用します。
// DSNにテスト名を含めることで、テスト間でデータベースが共有されないようにします。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect database for testing")

	err = db.AutoMigrate(&model.StudyItem{}, &model.HistoryRecord{}, &model.KeyDate{})
	require.NoError(t, err, "failed to migrate database for testing")

	return db
}

// createTestItem は追跡対象値を指定して項目をDBに直接挿入します
func createTestItem(t *testing.T, db *gorm.DB, title string, vals model.TrackedValues, lastModified time.Time) *model.StudyItem {
	t.Helper()

	item := &model.StudyItem{
		ItemID:              uuid.New(),
		Title:               title,
		HoursSpent:          vals.HoursSpent,
		Progress:            vals.Progress,
		TheoryConfidence:    vals.TheoryConfidence,
		PracticalConfidence: vals.PracticalConfidence,
		LastModified:        lastModified,
		OperationType:       model.OperationCreated,
	}
	require.NoError(t, db.Create(item).Error)
	return item
}

func countRows(t *testing.T, db *gorm.DB, modelInstance interface{}) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(modelInstance).Count(&count).Error)
	return count
}
