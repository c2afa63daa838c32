// internal/service/item_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"study_tracker/internal/config"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newItemServiceForTest(t *testing.T) (ItemService, *testDeps) {
	t.Helper()

	db := setupTestDB(t)
	itemRepo := repository.NewGormItemRepository()
	historyRepo := repository.NewGormHistoryRepository()
	keyDateRepo := repository.NewGormKeyDateRepository()
	engine := NewDeltaEngine(historyRepo)

	cfg := &config.Config{}
	cfg.App.UpcomingKeyDateLimit = 5

	svc := NewItemService(db, itemRepo, historyRepo, keyDateRepo, engine, cfg)
	return svc, &testDeps{db: db, itemRepo: itemRepo, historyRepo: historyRepo, keyDateRepo: keyDateRepo}
}

type testDeps struct {
	db          *gorm.DB
	itemRepo    repository.ItemRepository
	historyRepo repository.HistoryRepository
	keyDateRepo repository.KeyDateRepository
}

func TestItemService_PostItem(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		req          *model.PostItemRequest
		wantErr      error
		wantProgress int
		wantTheory   int
	}{
		{
			name: "正常系: 範囲内の値はそのまま保存される",
			req: &model.PostItemRequest{
				Title:            "TCP/IP",
				HoursSpent:       2.5,
				Progress:         40,
				TheoryConfidence: 3,
			},
			wantProgress: 40,
			wantTheory:   3,
		},
		{
			name: "正常系: 範囲外の値はクランプされる",
			req: &model.PostItemRequest{
				Title:               "DNS",
				Progress:            150,
				TheoryConfidence:    10,
				PracticalConfidence: -2,
			},
			wantProgress: 100,
			wantTheory:   5,
		},
		{
			name:    "異常系: タイトルが空白のみ",
			req:     &model.PostItemRequest{Title: "   "},
			wantErr: model.ErrInvalidInput,
		},
		{
			name:    "異常系: 学習時間が負",
			req:     &model.PostItemRequest{Title: "HTTP", HoursSpent: -1},
			wantErr: model.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newItemServiceForTest(t)

			item, err := svc.PostItem(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, item)
			assert.NotEqual(t, uuid.Nil, item.ItemID)
			assert.Equal(t, tt.wantProgress, item.Progress)
			assert.Equal(t, tt.wantTheory, item.TheoryConfidence)
			assert.Equal(t, model.OperationCreated, item.OperationType)
			assert.WithinDuration(t, time.Now().UTC(), item.LastModified, 5*time.Second)
		})
	}
}

func TestItemService_PutItem(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: 値の変更で履歴レコードが作成される", func(t *testing.T) {
		svc, deps := newItemServiceForTest(t)
		db := deps.db

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Routing", Progress: 10})
		require.NoError(t, err)

		updated, err := svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:      "Routing",
			HoursSpent: 4.0,
			Progress:   60,
		})
		require.NoError(t, err)
		assert.Equal(t, 60, updated.Progress)
		assert.Equal(t, model.OperationModified, updated.OperationType)

		rec, err := deps.historyRepo.FindByItemAndDay(ctx, db, item.ItemID, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 10, rec.PreviousValues.Data().Progress)
		assert.Contains(t, rec.Delta.Data(), model.FieldProgress)
		assert.Contains(t, rec.Delta.Data(), model.FieldHoursSpent)
	})

	t.Run("正常系: 更新時も範囲外の値はクランプされる", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Clamp", Progress: 10})
		require.NoError(t, err)

		updated, err := svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:               "Clamp",
			Progress:            150,
			TheoryConfidence:    -3,
			PracticalConfidence: 9,
		})
		require.NoError(t, err)
		assert.Equal(t, 100, updated.Progress)
		assert.Equal(t, 0, updated.TheoryConfidence)
		assert.Equal(t, 5, updated.PracticalConfidence)
	})

	t.Run("正常系: タイトルのみの変更では履歴は作られない", func(t *testing.T) {
		svc, deps := newItemServiceForTest(t)
		db := deps.db

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Old title", Progress: 10})
		require.NoError(t, err)

		updated, err := svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:    "New title",
			Progress: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, "New title", updated.Title)

		_, err = deps.historyRepo.FindLatestByItem(ctx, db, item.ItemID)
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("正常系: 遡及日付を指定した更新", func(t *testing.T) {
		svc, deps := newItemServiceForTest(t)
		db := deps.db

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Subnetting", Progress: 10})
		require.NoError(t, err)

		backDay := model.DayOf(time.Now().UTC()).AddDate(0, 0, -2)
		_, err = svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:         "Subnetting",
			Progress:      30,
			EffectiveDate: backDay.Format(model.DateLayout),
		})
		require.NoError(t, err)

		rec, err := deps.historyRepo.FindByItemAndDay(ctx, db, item.ItemID, backDay)
		require.NoError(t, err)
		assert.True(t, rec.Retrospective())
	})

	t.Run("異常系: 日付形式が不正", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "NAT"})
		require.NoError(t, err)

		_, err = svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:         "NAT",
			Progress:      10,
			EffectiveDate: "04/01/2025",
		})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 遡及の単調性違反で項目本体も更新されない", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "BGP", Progress: 10})
		require.NoError(t, err)

		// 今日の履歴を作る
		_, err = svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{Title: "BGP", Progress: 20})
		require.NoError(t, err)

		// それより前の日付への遡及は拒否され、トランザクション全体が巻き戻る
		backDay := model.DayOf(time.Now().UTC()).AddDate(0, 0, -1)
		_, err = svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{
			Title:         "BGP updated",
			Progress:      50,
			EffectiveDate: backDay.Format(model.DateLayout),
		})
		assert.ErrorIs(t, err, model.ErrOrderingConflict)

		current, err := svc.GetItem(ctx, item.ItemID)
		require.NoError(t, err)
		assert.Equal(t, "BGP", current.Title)
		assert.Equal(t, 20, current.Progress)
	})

	t.Run("異常系: 存在しない項目", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		_, err := svc.PutItem(ctx, uuid.New(), &model.PutItemRequest{Title: "x", Progress: 1})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestItemService_ListItems(t *testing.T) {
	ctx := context.Background()
	svc, _ := newItemServiceForTest(t)

	_, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Alpha", HoursSpent: 1.5, Progress: 20})
	require.NoError(t, err)
	_, err = svc.PostItem(ctx, &model.PostItemRequest{Title: "Beta", HoursSpent: 2.0, Progress: 50})
	require.NoError(t, err)
	_, err = svc.PostItem(ctx, &model.PostItemRequest{Title: "Gamma feature", HoursSpent: 0.5, Progress: 80})
	require.NoError(t, err)

	t.Run("正常系: 集計値", func(t *testing.T) {
		resp, err := svc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)

		assert.Equal(t, 3, resp.TotalItems)
		assert.InDelta(t, 4.0, resp.TotalHours, 0.001)
		assert.InDelta(t, 50.0, resp.AvgProgress, 0.001)
	})

	t.Run("正常系: タイトル検索 (大文字小文字を区別しない)", func(t *testing.T) {
		resp, err := svc.ListItems(ctx, model.ListQuery{Search: "GAMMA"})
		require.NoError(t, err)

		require.Equal(t, 1, resp.TotalItems)
		assert.Equal(t, "Gamma feature", resp.Items[0].Title)
	})

	t.Run("正常系: タイトル昇順ソート", func(t *testing.T) {
		resp, err := svc.ListItems(ctx, model.ListQuery{SortBy: "title", SortOrder: "asc"})
		require.NoError(t, err)

		require.Equal(t, 3, resp.TotalItems)
		assert.Equal(t, "Alpha", resp.Items[0].Title)
		assert.Equal(t, "Gamma feature", resp.Items[2].Title)
	})
}

func TestItemService_DeleteItem(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: 項目と履歴がまとめて削除される", func(t *testing.T) {
		svc, deps := newItemServiceForTest(t)
		db := deps.db

		item, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Doomed", Progress: 10})
		require.NoError(t, err)
		_, err = svc.PutItem(ctx, item.ItemID, &model.PutItemRequest{Title: "Doomed", Progress: 20})
		require.NoError(t, err)

		require.NoError(t, svc.DeleteItem(ctx, item.ItemID))

		_, err = svc.GetItem(ctx, item.ItemID)
		assert.ErrorIs(t, err, model.ErrNotFound)

		recs, err := deps.historyRepo.FindByItem(ctx, db, item.ItemID)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("異常系: 存在しない項目", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)
		err := svc.DeleteItem(ctx, uuid.New())
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestItemService_BulkDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: selected で指定分のみ削除", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		a, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Keep"})
		require.NoError(t, err)
		b, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Drop 1"})
		require.NoError(t, err)
		c, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "Drop 2"})
		require.NoError(t, err)

		deleted, err := svc.BulkDelete(ctx, &model.BulkDeleteRequest{
			Action:  "selected",
			ItemIDs: []uuid.UUID{b.ItemID, c.ItemID},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)

		_, err = svc.GetItem(ctx, a.ItemID)
		assert.NoError(t, err)
	})

	t.Run("正常系: all + 検索条件で絞り込み削除", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)

		_, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "golang basics"})
		require.NoError(t, err)
		_, err = svc.PostItem(ctx, &model.PostItemRequest{Title: "golang advanced"})
		require.NoError(t, err)
		keep, err := svc.PostItem(ctx, &model.PostItemRequest{Title: "SQL"})
		require.NoError(t, err)

		deleted, err := svc.BulkDelete(ctx, &model.BulkDeleteRequest{Action: "all", Search: "golang"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)

		resp, err := svc.ListItems(ctx, model.ListQuery{})
		require.NoError(t, err)
		require.Equal(t, 1, resp.TotalItems)
		assert.Equal(t, keep.ItemID, resp.Items[0].ItemID)
	})

	t.Run("異常系: selected でIDが空", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)
		_, err := svc.BulkDelete(ctx, &model.BulkDeleteRequest{Action: "selected"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("異常系: 不正なaction", func(t *testing.T) {
		svc, _ := newItemServiceForTest(t)
		_, err := svc.BulkDelete(ctx, &model.BulkDeleteRequest{Action: "everything"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})
}
