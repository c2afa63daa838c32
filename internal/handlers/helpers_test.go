// helpers_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"study_tracker/internal/config"
	"study_tracker/internal/handlers"
	"study_tracker/internal/model"
	"study_tracker/internal/repository"
	"study_tracker/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestServer はインメモリDB上にAPI全体を組み立てたテストサーバーを返します
func setupTestServer(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to connect database for testing")
	require.NoError(t, db.AutoMigrate(&model.StudyItem{}, &model.HistoryRecord{}, &model.KeyDate{}))

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	itemRepo := repository.NewGormItemRepository()
	historyRepo := repository.NewGormHistoryRepository()
	keyDateRepo := repository.NewGormKeyDateRepository()

	cfg := &config.Config{}
	cfg.App.UpcomingKeyDateLimit = 5
	cfg.App.ImportMaxBytes = 16 << 20

	deltaEngine := service.NewDeltaEngine(historyRepo)
	itemService := service.NewItemService(db, itemRepo, historyRepo, keyDateRepo, deltaEngine, cfg)
	calendarService := service.NewCalendarService(db, itemRepo, historyRepo, keyDateRepo)
	keyDateService := service.NewKeyDateService(db, keyDateRepo)
	importService := service.NewImportService(db, itemRepo)

	itemHandler := handlers.NewItemHandler(itemService, calendarService, testLogger)
	calendarHandler := handlers.NewCalendarHandler(calendarService, testLogger)
	keyDateHandler := handlers.NewKeyDateHandler(keyDateService, testLogger)
	importHandler := handlers.NewImportHandler(importService, cfg.App.ImportMaxBytes, testLogger)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			r.Post("/", itemHandler.PostItem)
			r.Get("/", itemHandler.GetItems)
			r.Post("/bulk-delete", itemHandler.BulkDelete)
			r.Get("/{item_id}", itemHandler.GetItem)
			r.Put("/{item_id}", itemHandler.PutItem)
			r.Delete("/{item_id}", itemHandler.DeleteItem)
			r.Get("/{item_id}/history", itemHandler.GetItemHistory)
		})
		r.Route("/calendar", func(r chi.Router) {
			r.Get("/", calendarHandler.GetMonth)
			r.Get("/{date_str}", calendarHandler.GetDay)
		})
		r.Route("/key-dates", func(r chi.Router) {
			r.Post("/", keyDateHandler.PostKeyDate)
			r.Get("/", keyDateHandler.GetKeyDates)
			r.Put("/{key_date_id}", keyDateHandler.PutKeyDate)
			r.Delete("/{key_date_id}", keyDateHandler.DeleteKeyDate)
		})
		r.Post("/import", importHandler.PostImport)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, db
}

// sendRequest はHTTPリクエストを送信し、ステータスコードを検証してボディを返します
func sendRequest(t *testing.T, server *httptest.Server, method, path string, body interface{}, wantCode int) []byte {
	t.Helper()

	var reqBodyReader io.Reader
	if body != nil {
		if strPayload, ok := body.(string); ok {
			reqBodyReader = strings.NewReader(strPayload)
		} else {
			reqBodyBytes, err := json.Marshal(body)
			require.NoError(t, err, "Failed to marshal request body")
			reqBodyReader = bytes.NewBuffer(reqBodyBytes)
		}
	}

	req, err := http.NewRequest(method, server.URL+path, reqBodyReader)
	require.NoError(t, err, "Failed to create request")
	if reqBodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err, "Failed to execute request")
	defer resp.Body.Close()

	respBodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "Failed to read response body")

	assert.Equal(t, wantCode, resp.StatusCode, "Status code mismatch. Body: %s", string(respBodyBytes))
	return respBodyBytes
}

// decodeBody はレスポンスボディを指定の型にデコードします
func decodeBody(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(body, out), "Failed to unmarshal response body: %s", string(body))
}

// verifyErrorCode はエラーレスポンスのエラーコードを検証します
func verifyErrorCode(t *testing.T, body []byte, wantCode string) {
	t.Helper()
	var errResp model.APIErrorResponse
	decodeBody(t, body, &errResp)
	assert.Equal(t, wantCode, errResp.Error.Code)
}
