package eventstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/authhub/pkg/event"
	"github.com/nao1215/authhub/pkg/middleware"
	"github.com/nao1215/authhub/pkg/result"
)

// Server はイベントストアサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はイベント永続化用のデータベース接続。
	db *sql.DB
}

// NewServer は新しいイベントストアサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("EVENTSTORE_DB_PATH", "/data/eventstore.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router: router,
		port:   port,
		db:     sqlDB,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		events := api.Group("/events")
		{
			// イベントの追記
			events.POST("", s.handleAppendEvent())
			// AggregateIDによるイベント取得
			events.GET("/aggregate/:aggregate_id", s.handleGetEventsByAggregateID())
			// イベントタイプによるイベント取得
			events.GET("/type/:event_type", s.handleGetEventsByType())
			// 日時指定によるイベント取得（クエリパラメータ: since）
			events.GET("/since", s.handleGetEventsSince())
			// AggregateIDの最新バージョン取得
			events.GET("/aggregate/:aggregate_id/version", s.handleGetLatestVersion())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "eventstore"})
	})
}

// appendEventRequest はイベント追記リクエストのJSON構造。
// バージョンはサーバー側でAggregateごとに採番する。
type appendEventRequest struct {
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id" binding:"required"`
	// AggregateType は対象エンティティの種類。
	AggregateType string `json:"aggregate_type" binding:"required"`
	// EventType はイベントの種類。
	EventType string `json:"event_type" binding:"required"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data" binding:"required"`
}

// handleAppendEvent はイベントの追記を処理するハンドラを返す。
// 同一Aggregateの既存最大バージョン+1を採番して永続化する。
func (s *Server) handleAppendEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appendEventRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		tx, err := s.db.BeginTx(c.Request.Context(), nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("トランザクション開始エラー: %v", err)
			return
		}
		defer func() { _ = tx.Rollback() }()

		var latest int64
		err = tx.QueryRowContext(c.Request.Context(),
			"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?", req.AggregateID).Scan(&latest)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("バージョン採番エラー: %v", err)
			return
		}

		e, err := event.New(req.AggregateID, event.AggregateType(req.AggregateType), event.Type(req.EventType), latest+1, req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		_, err = tx.ExecContext(c.Request.Context(),
			"INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			e.ID, e.AggregateID, string(e.AggregateType), string(e.EventType), string(e.Data), e.Version, e.CreatedAt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("イベント追記エラー: %v", err)
			return
		}

		if err := tx.Commit(); err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("コミットエラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(e))
	}
}

// handleGetEventsByAggregateID はAggregateIDによるイベント取得を処理するハンドラを返す。
// イベントはバージョン昇順で返される。
func (s *Server) handleGetEventsByAggregateID() gin.HandlerFunc {
	return func(c *gin.Context) {
		aggregateID := c.Param("aggregate_id")

		events, err := s.queryEvents(c,
			"SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events WHERE aggregate_id = ? ORDER BY version ASC",
			aggregateID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("イベント取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(events))
	}
}

// handleGetEventsByType はイベントタイプによるイベント取得を処理するハンドラを返す。
func (s *Server) handleGetEventsByType() gin.HandlerFunc {
	return func(c *gin.Context) {
		eventType := c.Param("event_type")

		events, err := s.queryEvents(c,
			"SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events WHERE event_type = ? ORDER BY created_at ASC",
			eventType)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("イベント取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(events))
	}
}

// handleGetEventsSince は日時指定によるイベント取得を処理するハンドラを返す。
// sinceクエリパラメータはRFC3339形式で指定する。
func (s *Server) handleGetEventsSince() gin.HandlerFunc {
	return func(c *gin.Context) {
		sinceStr := c.Query("since")
		if sinceStr == "" {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		events, err := s.queryEvents(c,
			"SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at FROM events WHERE created_at >= ? ORDER BY created_at ASC",
			since.UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("イベント取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(events))
	}
}

// handleGetLatestVersion はAggregateIDの最新バージョン取得を処理するハンドラを返す。
// イベントが存在しない場合はバージョン0を返す。
func (s *Server) handleGetLatestVersion() gin.HandlerFunc {
	return func(c *gin.Context) {
		aggregateID := c.Param("aggregate_id")

		var latest int64
		err := s.db.QueryRowContext(c.Request.Context(),
			"SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?", aggregateID).Scan(&latest)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("バージョン取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(gin.H{
			"aggregate_id": aggregateID,
			"version":      latest,
		}))
	}
}

// queryEvents は指定されたクエリでイベント一覧を取得する。
func (s *Server) queryEvents(c *gin.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.db.QueryContext(c.Request.Context(), query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	events := make([]event.Event, 0)
	for rows.Next() {
		var (
			e             event.Event
			aggregateType string
			eventType     string
			data          string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &aggregateType, &eventType, &data, &e.Version, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.AggregateType = event.AggregateType(aggregateType)
		e.EventType = event.Type(eventType)
		e.Data = json.RawMessage(data)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// getEnvOr は環境変数の値を返す。未設定の場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
