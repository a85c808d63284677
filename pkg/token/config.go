package token

import (
	"os"
	"strconv"
	"time"
)

// デフォルト設定値。環境変数で上書きできる。
const (
	defaultSecret    = "dev-secret-key"
	defaultExpireMS  = 30 * 60 * 1000
	defaultHeader    = "Authorization"
	defaultIssuer    = "authhub-user"
	defaultKeyPrefix = "jwt:userId"
)

// Config はトークン署名とキャッシュに関する不変の設定。
// 起動時に一度だけ構築し、各コンポーネントへ値渡しする。
type Config struct {
	// Secret はJWT署名用の共有シークレット。
	Secret string
	// AccessTTL はアクセストークンの有効期間。
	AccessTTL time.Duration
	// Header はトークンを運ぶHTTPヘッダー名。
	Header string
	// Issuer はトークンのiss要求に設定される発行者名。
	Issuer string
	// KeyPrefix はキャッシュエントリのキー接頭辞。
	KeyPrefix string
}

// RefreshTTL はリフレッシュトークンとキャッシュエントリの有効期間を返す。
// アクセストークンの2倍に固定される。
func (c Config) RefreshTTL() time.Duration {
	return c.AccessTTL * 2
}

// LoadConfig は環境変数から設定を構築する。
// 未設定の項目にはデフォルト値を使用する。
//
//	JWT_SECRET     署名シークレット
//	JWT_EXPIRE_MS  アクセストークン有効期間（ミリ秒）
//	JWT_HEADER     トークンヘッダー名
//	JWT_ISSUER     発行者名
//	JWT_KEY_PREFIX キャッシュキー接頭辞
func LoadConfig() Config {
	expireMS := int64(defaultExpireMS)
	if v := os.Getenv("JWT_EXPIRE_MS"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			expireMS = parsed
		}
	}

	return Config{
		Secret:    getEnvOr("JWT_SECRET", defaultSecret),
		AccessTTL: time.Duration(expireMS) * time.Millisecond,
		Header:    getEnvOr("JWT_HEADER", defaultHeader),
		Issuer:    getEnvOr("JWT_ISSUER", defaultIssuer),
		KeyPrefix: getEnvOr("JWT_KEY_PREFIX", defaultKeyPrefix),
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
