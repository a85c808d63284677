package user

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/nao1215/authhub/pkg/event"
	"github.com/nao1215/authhub/pkg/httpclient"
	"github.com/nao1215/authhub/pkg/middleware"
	"github.com/nao1215/authhub/pkg/migration"
	"github.com/nao1215/authhub/pkg/result"
	"github.com/nao1215/authhub/pkg/token"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Server はユーザーサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はusersテーブルへのクエリ実行オブジェクト。
	queries *Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// tokens はトークンの発行・リフレッシュ・ログアウトを行うサービス。
	tokens *token.Service
	// header はトークンを読み取るHTTPヘッダー名。
	header string
	// eventClient はイベントストアへのHTTPクライアント。
	eventClient *httpclient.Client
}

// NewServer は新しいユーザーサーバーを生成する。
// SQLiteデータベースのマイグレーションとRedis接続の初期化を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("USER_DB_PATH", "/data/user.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := migration.Run(sqlDB, migrationsFS, "migrations"); err != nil {
		return nil, fmt.Errorf("マイグレーションに失敗: %w", err)
	}

	cfg := token.LoadConfig()
	rdb := redis.NewClient(&redis.Options{
		Addr:         getEnvOr("REDIS_ADDR", "localhost:6379"),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	codec := token.NewCodec(cfg)
	cache := token.NewCache(rdb, cfg.KeyPrefix, cfg.RefreshTTL())

	eventstoreURL := getEnvOr("EVENTSTORE_URL", "http://localhost:8084")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:      router,
		port:        port,
		queries:     NewQueries(sqlDB),
		db:          sqlDB,
		tokens:      token.NewService(codec, cache, cfg),
		header:      cfg.Header,
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
// 認証フローのエンドポイントはgateway側のフィルタで保護方針が決まるため、
// サービス側ではミドルウェアを適用しない。
func (s *Server) setupRoutes() {
	// 認証フロー
	s.router.POST("/login", s.handleLogin())
	s.router.POST("/token/refresh", s.handleRefresh())
	s.router.POST("/logout", s.handleLogout())

	// メッセージ送信（イベント発行のデモ）
	s.router.POST("/message", s.handleSendMessage())

	// 他サービス向け内部API
	inner := s.router.Group("/inner")
	{
		inner.GET("/users/:id", s.handleInnerGetUser())
		inner.POST("/token/validate", s.handleInnerValidateToken())
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "user"})
	})
}

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	// Account はアカウント名。
	Account string `json:"account" binding:"required"`
	// Password はパスワード。
	Password string `json:"password" binding:"required"`
}

// messageRequest はメッセージ送信リクエストのJSON構造。
type messageRequest struct {
	// Message は送信するメッセージ本文。
	Message string `json:"message" binding:"required"`
}

// validateTokenRequest はトークン検証リクエストのJSON構造。
type validateTokenRequest struct {
	// Token は検証対象のアクセストークン。
	Token string `json:"token" binding:"required"`
	// UserID はトークンの発行対象であるべきユーザーID。
	UserID string `json:"user_id" binding:"required"`
}

// userResponse はユーザー情報のJSONレスポンス構造。パスワードは含めない。
type userResponse struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Account はアカウント名。
	Account string `json:"account"`
	// Role はユーザーのロール。
	Role string `json:"role"`
	// CreatedAt は作成日時。
	CreatedAt string `json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt string `json:"updated_at"`
}

// toUserResponse はDB行をJSONレスポンスに変換する。
func toUserResponse(u User) userResponse {
	return userResponse{
		ID:        u.ID,
		Account:   u.Account,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt: u.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// handleLogin はログインを処理するハンドラを返す。
// 資格情報が一致した場合にトークンペアを発行してRedisに保存する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		u, err := s.queries.GetUserByCredentials(c.Request.Context(), req.Account, req.Password)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, result.Error(result.CodeParamsError))
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("ユーザー検索エラー: %v", err)
			return
		}

		pair, err := s.tokens.Issue(c.Request.Context(), u.ID, u.Account, map[string]string{"role": u.Role})
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("トークン発行エラー: %v", err)
			return
		}

		s.emitEvent(c, u.ID, event.TypeUserLoggedIn, event.UserLoggedInData{Account: u.Account})

		c.JSON(http.StatusOK, result.Success(pair))
	}
}

// handleRefresh はトークンリフレッシュを処理するハンドラを返す。
// リフレッシュトークンは設定されたヘッダーから読み取る。
// 保存値と一致した場合のみ新しいペアを発行し、保存値を置き換える。
func (s *Server) handleRefresh() gin.HandlerFunc {
	return func(c *gin.Context) {
		pair, err := s.tokens.Refresh(c.Request.Context(), tokenFromHeader(c, s.header))
		switch {
		case errors.Is(err, token.ErrTokenMissing):
			c.JSON(http.StatusUnauthorized, result.Error(result.CodeTokenMissing))
			return
		case errors.Is(err, token.ErrTokenInvalid):
			c.JSON(http.StatusUnauthorized, result.Error(result.CodeTokenInvalid))
			return
		case errors.Is(err, token.ErrCacheUnavailable):
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("トークンキャッシュエラー: %v", err)
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeSystemError))
			log.Printf("トークンリフレッシュエラー: %v", err)
			return
		}

		s.emitEvent(c, "", event.TypeTokenRefreshed, event.TokenRefreshedData{ExpireIn: pair.ExpireIn})

		c.JSON(http.StatusOK, result.Success(pair))
	}
}

// handleLogout はログアウトを処理するハンドラを返す。
// Redisからセッションを削除する。削除対象が存在しない場合はエラーを返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("userId")
		if userID == "" {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		err := s.tokens.Logout(c.Request.Context(), userID)
		switch {
		case errors.Is(err, token.ErrSessionNotFound):
			c.JSON(http.StatusBadRequest, result.Error(result.CodeLogoutError))
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("ログアウトエラー: %v", err)
			return
		}

		s.emitEvent(c, userID, event.TypeUserLoggedOut, event.UserLoggedOutData{})

		c.JSON(http.StatusOK, result.Success(true))
	}
}

// handleSendMessage はユーザー宛メッセージの送信を処理するハンドラを返す。
// メッセージはイベントとして発行するのみで、送信失敗はログに記録する。
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		s.emitEvent(c, c.GetHeader("X-User-ID"), event.TypeUserMessageSent, event.UserMessageSentData{
			Message: req.Message,
		})

		c.JSON(http.StatusOK, result.Success(true))
	}
}

// handleInnerGetUser は他サービス向けのユーザー参照を処理するハンドラを返す。
func (s *Server) handleInnerGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := s.queries.GetUserByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, result.Error(result.CodeParamsError))
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, result.Error(result.CodeDatabaseError))
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, result.Success(toUserResponse(u)))
	}
}

// handleInnerValidateToken は他サービス向けのトークン検証を処理するハンドラを返す。
// 署名・期限・ユーザーID一致をローカルで検証した結果を返す。
func (s *Server) handleInnerValidateToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validateTokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, result.Error(result.CodeParamsError))
			return
		}

		c.JSON(http.StatusOK, result.Success(gin.H{
			"valid": s.tokens.Validate(req.Token, req.UserID),
		}))
	}
}

// emitEvent はイベントストアにイベントを送信する。
// 送信に失敗した場合はログに記録するが、呼び出し元にはエラーを返さない。
func (s *Server) emitEvent(c *gin.Context, userID string, eventType event.Type, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("イベントデータのシリアライズに失敗: %v", err)
		return
	}

	aggregateID := "user-" + userID
	if userID == "" {
		aggregateID = "user-unknown"
	}

	reqBody := map[string]any{
		"aggregate_id":   aggregateID,
		"aggregate_type": string(event.AggregateTypeUser),
		"event_type":     string(eventType),
		"data":           json.RawMessage(jsonData),
	}

	ctx := httpclient.WithUserID(c.Request.Context(), userID)
	if err := s.eventClient.PostJSON(ctx, "/api/v1/events", reqBody, nil); err != nil {
		log.Printf("イベント送信に失敗: %v", err)
	}
}

// tokenFromHeader は指定されたヘッダーからトークンを取り出す。
// "Bearer "プレフィックスは付いていれば除去する。
func tokenFromHeader(c *gin.Context, headerName string) string {
	raw := c.GetHeader(headerName)
	if tokenStr, found := strings.CutPrefix(raw, "Bearer "); found {
		return strings.TrimSpace(tokenStr)
	}
	return strings.TrimSpace(raw)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
