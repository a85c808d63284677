package eventstore

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestServer はテスト用のサーバーをインメモリSQLiteで構築するヘルパー関数。
// 各テストケースで独立したデータベースを使用するため、テスト間の干渉が発生しない。
func setupTestServer(t *testing.T) *Server {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリSQLiteの接続に失敗: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	s := &Server{
		router: gin.New(),
		port:   "0",
		db:     sqlDB,
	}
	s.setupRoutes()

	return s
}

// doRequest はテスト用のHTTPリクエストを実行し、レスポンスを返すヘルパー関数。
func doRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reqBody *bytes.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// parseJSON はレスポンスボディをmapにデコードするヘルパー関数。
func parseJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var res map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("JSONのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return res
}

// appendTestEvent はイベントを追記して追記結果のdataを返すヘルパー関数。
func appendTestEvent(t *testing.T, s *Server, aggregateID, eventType string) map[string]any {
	t.Helper()

	w := doRequest(s.router, http.MethodPost, "/api/v1/events", gin.H{
		"aggregate_id":   aggregateID,
		"aggregate_type": "User",
		"event_type":     eventType,
		"data":           gin.H{"account": "alice"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("イベント追記に失敗: status=%d, body=%s", w.Code, w.Body.String())
	}
	return parseJSON(t, w)["data"].(map[string]any)
}

// TestEventStoreHealthCheck はヘルスチェックエンドポイントを検証する。
func TestEventStoreHealthCheck(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)

	w := doRequest(s.router, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}
	res := parseJSON(t, w)
	if res["service"] != "eventstore" {
		t.Errorf("service = %v, want %q", res["service"], "eventstore")
	}
}

// TestHandleAppendEvent はイベントの追記とバージョン採番を検証する。
func TestHandleAppendEvent(t *testing.T) {
	t.Parallel()

	t.Run("最初のイベントにバージョン1が採番されること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		data := appendTestEvent(t, s, "user-1", "UserLoggedIn")

		if data["version"].(float64) != 1 {
			t.Errorf("version = %v, want 1", data["version"])
		}
		if data["id"] == "" {
			t.Error("イベントIDが空")
		}
		if data["aggregate_id"] != "user-1" {
			t.Errorf("aggregate_id = %v, want %q", data["aggregate_id"], "user-1")
		}
	})

	t.Run("同一Aggregateのバージョンが単調増加すること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		appendTestEvent(t, s, "user-1", "UserLoggedIn")
		second := appendTestEvent(t, s, "user-1", "TokenRefreshed")

		if second["version"].(float64) != 2 {
			t.Errorf("version = %v, want 2", second["version"])
		}

		// 別Aggregateは独立して1から採番される
		other := appendTestEvent(t, s, "user-2", "UserLoggedIn")
		if other["version"].(float64) != 1 {
			t.Errorf("version = %v, want 1", other["version"])
		}
	})

	t.Run("必須フィールド欠落で400が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.router, http.MethodPost, "/api/v1/events", gin.H{
			"aggregate_id": "user-1",
			"event_type":   "UserLoggedIn",
		})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
		res := parseJSON(t, w)
		if res["code"].(float64) != 50010 {
			t.Errorf("code = %v, want 50010", res["code"])
		}
	})
}

// TestHandleGetEventsByAggregateID はAggregateIDによるイベント取得を検証する。
func TestHandleGetEventsByAggregateID(t *testing.T) {
	t.Parallel()

	t.Run("対象Aggregateのイベントのみがバージョン順で返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		appendTestEvent(t, s, "user-1", "UserLoggedIn")
		appendTestEvent(t, s, "user-1", "TokenRefreshed")
		appendTestEvent(t, s, "user-2", "UserLoggedIn")

		w := doRequest(s.router, http.MethodGet, "/api/v1/events/aggregate/user-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}

		events := parseJSON(t, w)["data"].([]any)
		if len(events) != 2 {
			t.Fatalf("イベント数 = %d, want 2", len(events))
		}
		first := events[0].(map[string]any)
		second := events[1].(map[string]any)
		if first["version"].(float64) != 1 || second["version"].(float64) != 2 {
			t.Errorf("バージョン順でない: %v, %v", first["version"], second["version"])
		}
		if second["event_type"] != "TokenRefreshed" {
			t.Errorf("event_type = %v, want %q", second["event_type"], "TokenRefreshed")
		}
	})

	t.Run("イベントが存在しない場合は空配列が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/aggregate/unknown", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		events := parseJSON(t, w)["data"].([]any)
		if len(events) != 0 {
			t.Errorf("イベント数 = %d, want 0", len(events))
		}
	})
}

// TestHandleGetEventsByType はイベントタイプによるイベント取得を検証する。
func TestHandleGetEventsByType(t *testing.T) {
	t.Parallel()

	s := setupTestServer(t)
	appendTestEvent(t, s, "user-1", "UserLoggedIn")
	appendTestEvent(t, s, "user-2", "UserLoggedIn")
	appendTestEvent(t, s, "user-1", "UserLoggedOut")

	w := doRequest(s.router, http.MethodGet, "/api/v1/events/type/UserLoggedIn", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
	}

	events := parseJSON(t, w)["data"].([]any)
	if len(events) != 2 {
		t.Fatalf("イベント数 = %d, want 2", len(events))
	}
	for _, e := range events {
		if e.(map[string]any)["event_type"] != "UserLoggedIn" {
			t.Errorf("異なるタイプのイベントが含まれる: %v", e)
		}
	}
}

// TestHandleGetEventsSince は日時指定によるイベント取得を検証する。
func TestHandleGetEventsSince(t *testing.T) {
	t.Parallel()

	t.Run("指定日時以降のイベントが返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		appendTestEvent(t, s, "user-1", "UserLoggedIn")

		past := time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/since?since="+past, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		events := parseJSON(t, w)["data"].([]any)
		if len(events) != 1 {
			t.Errorf("イベント数 = %d, want 1", len(events))
		}
	})

	t.Run("未来日時の指定で空配列が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		appendTestEvent(t, s, "user-1", "UserLoggedIn")

		future := time.Now().UTC().Add(1 * time.Hour).Format(time.RFC3339)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/since?since="+future, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		events := parseJSON(t, w)["data"].([]any)
		if len(events) != 0 {
			t.Errorf("イベント数 = %d, want 0", len(events))
		}
	})

	t.Run("sinceパラメータなしで400が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/since", nil)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("不正な日時形式で400が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/since?since=yesterday", nil)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleGetLatestVersion は最新バージョン取得を検証する。
func TestHandleGetLatestVersion(t *testing.T) {
	t.Parallel()

	t.Run("イベントが存在しない場合は0が返ること", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		w := doRequest(s.router, http.MethodGet, "/api/v1/events/aggregate/user-1/version", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		data := parseJSON(t, w)["data"].(map[string]any)
		if data["version"].(float64) != 0 {
			t.Errorf("version = %v, want 0", data["version"])
		}
	})

	t.Run("追記のたびにバージョンが進むこと", func(t *testing.T) {
		t.Parallel()

		s := setupTestServer(t)
		appendTestEvent(t, s, "user-1", "UserLoggedIn")
		appendTestEvent(t, s, "user-1", "TokenRefreshed")
		appendTestEvent(t, s, "user-1", "UserLoggedOut")

		w := doRequest(s.router, http.MethodGet, "/api/v1/events/aggregate/user-1/version", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		data := parseJSON(t, w)["data"].(map[string]any)
		if data["version"].(float64) != 3 {
			t.Errorf("version = %v, want 3", data["version"])
		}
	})
}
