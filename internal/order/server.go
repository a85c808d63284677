package order

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nao1215/authhub/pkg/event"
	"github.com/nao1215/authhub/pkg/httpclient"
	"github.com/nao1215/authhub/pkg/middleware"
	"github.com/nao1215/authhub/pkg/result"
	"github.com/nao1215/authhub/pkg/token"
)

// Server は注文サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// codec はトークンのローカル検証器。
	codec *token.Codec
	// header はトークンを読み取るHTTPヘッダー名。
	header string
	// userClient はユーザーサービスの内部APIへのHTTPクライアント。
	userClient *httpclient.Client
	// eventClient はイベントストアへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer は新しい注文サーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("ORDER_DB_PATH", "/data/order.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	cfg := token.LoadConfig()
	userURL := getEnvOr("USER_URL", "http://localhost:8081")
	eventstoreURL := getEnvOr("EVENTSTORE_URL", "http://localhost:8084")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:      router,
		port:        port,
		db:          sqlDB,
		codec:       token.NewCodec(cfg),
		header:      cfg.Header,
		userClient:  httpclient.New(userURL),
		eventClient: httpclient.New(eventstoreURL),
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 全ての業務エンドポイントをトークン検証ミドルウェアで保護する。
// gatewayを経由した場合もサービス単体でアクセスされた場合も同じ検証が走る。
func (s *Server) setupRoutes() {
	api := s.router.Group("/")
	api.Use(middleware.TokenAuth(s.codec, s.header))
	{
		api.GET("/orders", s.handleListOrders())
		api.POST("/orders", s.handleCreateOrder())
		api.GET("/user", s.handleGetUser())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "order"})
	})
}

// createOrderRequest は注文作成リクエストのJSON構造。
type createOrderRequest struct {
	// Name は商品名。
	Name string `json:"name" binding:"required"`
	// Price は注文金額（最小通貨単位）。
	Price int64 `json:"price" binding:"required"`
}

// orderResponse は注文のJSONレスポンス構造。
type orderResponse struct {
	// ID は注文の一意識別子。
	ID string `json:"id"`
	// UserID は注文を作成したユーザーのID。
	UserID string `json:"user_id"`
	// Name は商品名。
	Name string `json:"name"`
	// Price は注文金額。
	Price int64 `json:"price"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
}

// handleListOrders は認証済みユーザーの注文一覧取得を処理するハンドラを返す。
func (s *Server) handleListOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, result.Error(result.CodeTokenInvalid))
			return
		}

		rows, err := s.db.QueryContext(c.Request.Context(),
			"SELECT id, user_id, name, price, created_at FROM orders WHERE user_id = ? ORDER BY created_at DESC", userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("注文一覧取得エラー: %v", err)
			return
		}
		defer func() { _ = rows.Close() }()

		orders := make([]orderResponse, 0)
		for rows.Next() {
			var (
				o         orderResponse
				createdAt time.Time
			)
			if err := rows.Scan(&o.ID, &o.UserID, &o.Name, &o.Price, &createdAt); err != nil {
				c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
				log.Printf("注文行の読み取りエラー: %v", err)
				return
			}
			o.CreatedAt = createdAt.Format("2006-01-02T15:04:05Z")
			orders = append(orders, o)
		}
		if err := rows.Err(); err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("注文一覧の走査エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(orders))
	}
}

// handleCreateOrder は注文作成を処理するハンドラを返す。
// ユーザーサービスの内部APIで注文者の存在を確認してから永続化する。
func (s *Server) handleCreateOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, result.Error(result.CodeTokenInvalid))
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		if _, err := s.lookupUser(c, userID); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			log.Printf("注文者の確認に失敗: %v", err)
			return
		}

		orderID := uuid.New().String()
		_, err := s.db.ExecContext(c.Request.Context(),
			"INSERT INTO orders (id, user_id, name, price) VALUES (?, ?, ?, ?)",
			orderID, userID, req.Name, req.Price)
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("注文作成エラー: %v", err)
			return
		}

		s.emitEvent(c, orderID, event.OrderCreatedData{
			UserID: userID,
			Name:   req.Name,
			Price:  req.Price,
		})

		c.JSON(http.StatusOK, result.Success(orderResponse{
			ID:     orderID,
			UserID: userID,
			Name:   req.Name,
			Price:  req.Price,
		}))
	}
}

// handleGetUser は指定されたユーザーの情報をユーザーサービス経由で取得する
// ハンドラを返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		userData, err := s.lookupUser(c, userID)
		if err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			log.Printf("ユーザー参照に失敗: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(userData))
	}
}

// lookupUser はユーザーサービスの内部APIでユーザーを参照する。
// 認証トークンとユーザーIDを下流リクエストに伝播する。
func (s *Server) lookupUser(c *gin.Context, userID string) (map[string]any, error) {
	ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
	ctx = httpclient.WithAuthToken(ctx, c.GetHeader(s.header))

	var res struct {
		Code int            `json:"code"`
		Data map[string]any `json:"data"`
	}
	if err := s.userClient.GetJSON(ctx, "/inner/users/"+userID, &res); err != nil {
		return nil, err
	}
	if res.Data == nil {
		return nil, errors.New("ユーザーが存在しません")
	}
	return res.Data, nil
}

// emitEvent はイベントストアにOrderCreatedイベントを送信する。
// 送信に失敗した場合はログに記録するが、呼び出し元にはエラーを返さない。
func (s *Server) emitEvent(c *gin.Context, orderID string, data event.OrderCreatedData) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗: %v", err)
		return
	}

	reqBody := map[string]any{
		"aggregate_id":   "order-" + orderID,
		"aggregate_type": string(event.AggregateTypeOrder),
		"event_type":     string(event.TypeOrderCreated),
		"data":           json.RawMessage(jsonData),
	}

	ctx := httpclient.WithUserID(c.Request.Context(), middleware.GetUserID(c))
	if err := s.eventClient.PostJSON(ctx, "/api/v1/events", reqBody, nil); err != nil {
		log.Printf("イベント送信に失敗: %v", err)
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
