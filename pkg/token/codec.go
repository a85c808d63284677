package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid はトークンの検証失敗を表す。
// 改ざん・形式不正・アルゴリズム不一致・期限切れはすべてこのエラーに collapse し、
// 失敗理由を外部に漏らさない。
var ErrTokenInvalid = errors.New("トークンが無効です")

// Claims はトークンに署名されるクレームセット。
// 必須フィールドに加えて任意のキー/値ペアをExtraで運べる。
// 一度署名されたクレームセットは不変である。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Username はユーザーのアカウント名。
	Username string `json:"username"`
	// Extra は呼び出し側が追加した任意のキー/値ペア。
	Extra map[string]string `json:"extra,omitempty"`
}

// Codec はクレームセットと署名済みトークン文字列を相互変換する。
// 入出力を持たない純粋な変換器であり、並行利用できる。
type Codec struct {
	// secret は署名・検証に使用する共有シークレット。
	secret []byte
	// issuer はiss要求に設定する発行者名。
	issuer string
}

// signingMethod は署名アルゴリズム。全トークンで固定される。
var signingMethod = jwt.SigningMethodHS512

// NewCodec は新しいCodecを生成する。
func NewCodec(cfg Config) *Codec {
	return &Codec{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// Sign はクレームセットに発行時刻と有効期限を設定し、署名済みトークンを返す。
// アクセストークンとリフレッシュトークンは同じクレームセットから
// 異なるttlで独立に署名される。
func (c *Codec) Sign(userID, username string, extra map[string]string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
		},
		UserID:   userID,
		Username: username,
		Extra:    extra,
	}
	return jwt.NewWithClaims(signingMethod, claims).SignedString(c.secret)
}

// Parse はトークンの署名と構造を検証し、クレームセットを返す。
// あらゆる検証失敗はErrTokenInvalidにまとめられる。
// 有効期限切れのトークンもErrTokenInvalidとなる。
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{signingMethod.Alg()}))
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// IsExpired はトークンが期限切れかどうかを返す。
// パースに失敗したトークンは期限切れとして扱う（フェイルクローズ）。
func (c *Codec) IsExpired(tokenStr string) bool {
	claims, err := c.Parse(tokenStr)
	if err != nil {
		return true
	}
	// Parseが有効期限を検証済みだが、exp要求の欠落は拒否する
	if claims.ExpiresAt == nil {
		return true
	}
	return !claims.ExpiresAt.Time.After(time.Now())
}
