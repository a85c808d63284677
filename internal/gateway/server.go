package gateway

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/authhub/pkg/middleware"
	"github.com/nao1215/authhub/pkg/result"
	"github.com/nao1215/authhub/pkg/token"
)

// Server はAPI GatewayサービスのHTTPサーバー。
// 全ルートにトークン検証フィルタを適用し、検証済みリクエストを
// 各サービスへプロキシする。トークンの検証はローカルの署名・期限
// チェックのみで、Redisには問い合わせない。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// header はトークンを読み取るHTTPヘッダー名。
	header string
	// serviceURLs は内部サービスのURL。
	serviceURLs serviceURLConfig
	// httpClient はプロキシ転送に使用するHTTPクライアント。
	httpClient *http.Client
}

// serviceURLConfig は内部サービスのURL設定。
type serviceURLConfig struct {
	User  string
	Order string
}

// skipPaths はトークン検証を行わずに通過させるパス。
// ログインとリフレッシュは認証前のユーザーが到達する必要がある。
var skipPaths = []string{
	"/api/user/login",
	"/api/user/token/refresh",
	"/health",
}

// NewServer は新しいGatewayサーバーを生成する。
func NewServer(port string) (*Server, error) {
	cfg := token.LoadConfig()

	urls := serviceURLConfig{
		User:  getEnvOr("USER_URL", "http://localhost:8081"),
		Order: getEnvOr("ORDER_URL", "http://localhost:8082"),
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))
	router.Use(middleware.TokenFilter(token.NewCodec(cfg), cfg.Header, skipPaths))

	s := &Server{
		router:      router,
		port:        port,
		header:      cfg.Header,
		serviceURLs: urls,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// ゲートウェイのパスプレフィックスを取り除いて各サービスへ転送する。
func (s *Server) setupRoutes() {
	// ユーザーサービス（/api/user/login → /login のようにプレフィックスを除去）
	s.router.Any("/api/user/*path", s.handleProxy(func(c *gin.Context) string {
		return s.serviceURLs.User + c.Param("path")
	}))

	// 注文サービス
	s.router.Any("/api/order/*path", s.handleProxy(func(c *gin.Context) string {
		return s.serviceURLs.Order + c.Param("path")
	}))

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "gateway"})
	})
}

// handleProxy は転送先URLを組み立ててリクエストをプロキシするハンドラを返す。
func (s *Server) handleProxy(target func(c *gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		proxyURL := target(c)
		if c.Request.URL.RawQuery != "" {
			proxyURL += "?" + c.Request.URL.RawQuery
		}
		s.doProxy(c, c.Request.Method, proxyURL)
	}
}

// doProxy はリクエストを内部サービスにプロキシする共通処理。
// トークンヘッダーとユーザーIDヘッダーを転送する。
func (s *Server) doProxy(c *gin.Context, method, url string) {
	req, err := http.NewRequestWithContext(c.Request.Context(), method, url, c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, result.Error(result.CodeSystemError))
		return
	}

	// 元のリクエストヘッダーを転送
	req.Header.Set("Content-Type", c.GetHeader("Content-Type"))
	req.Header.Set(s.header, c.GetHeader(s.header))
	req.Header.Set("X-User-ID", middleware.GetUserID(c))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, result.Error(result.CodeSystemError))
		log.Printf("プロキシエラー: url=%s, error=%v", url, err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, result.Error(result.CodeSystemError))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(resp.StatusCode, contentType, body)
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
