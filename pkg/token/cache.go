package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable はキャッシュストアに到達できないことを表す。
// ローカルフォールバックは行わない。トークンの存在確認は
// 権威あるストアに対してのみ意味を持つ。
var ErrCacheUnavailable = errors.New("トークンキャッシュにアクセスできません")

// キャッシュエントリのハッシュフィールド名。
const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
)

// Cache はユーザー単位の現行トークンペアを保持するRedisキャッシュ。
// エントリはログイン・リフレッシュ時に上書きされ、ログアウトで削除され、
// TTL（アクセストークン有効期間の2倍）で自然消滅する。
type Cache struct {
	// rdb はRedisクライアント。
	rdb redis.UniversalClient
	// prefix はキーの接頭辞。キーは "<prefix>:<userID>" となる。
	prefix string
	// ttl はエントリの有効期間。書き込みごとに延長される。
	ttl time.Duration
}

// NewCache は新しいトークンキャッシュを生成する。
// ttlにはリフレッシュトークンの有効期間（アクセストークンの2倍）を渡す。
func NewCache(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		rdb:    rdb,
		prefix: prefix,
		ttl:    ttl,
	}
}

// key はユーザーIDからキャッシュキーを組み立てる。
func (c *Cache) key(userID string) string {
	return c.prefix + ":" + userID
}

// Put はアクセストークンとリフレッシュトークンのペアを書き込み、
// エントリのTTLを設定し直す。両フィールドは同一のトランザクション
// パイプラインで書き込まれる。
func (c *Cache) Put(ctx context.Context, userID, accessToken, refreshToken string) error {
	key := c.key(userID)
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldAccessToken, accessToken, fieldRefreshToken, refreshToken)
		pipe.PExpire(ctx, key, c.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// GetAccessToken は保存されている現行アクセストークンを返す。
// エントリまたはフィールドが存在しない場合は空文字列を返す。
func (c *Cache) GetAccessToken(ctx context.Context, userID string) (string, error) {
	return c.getField(ctx, userID, fieldAccessToken)
}

// GetRefreshToken は保存されている現行リフレッシュトークンを返す。
// エントリまたはフィールドが存在しない場合は空文字列を返す。
func (c *Cache) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	return c.getField(ctx, userID, fieldRefreshToken)
}

// getField はハッシュフィールドを1つ読み取る共通処理。
func (c *Cache) getField(ctx context.Context, userID, field string) (string, error) {
	value, err := c.rdb.HGet(ctx, c.key(userID), field).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return value, nil
}

// Delete はユーザーのキャッシュエントリを削除する。
// エントリが実際に削除された場合にtrueを返す。冪等であり、
// 存在しないエントリの削除はエラーにならない。
func (c *Cache) Delete(ctx context.Context, userID string) (bool, error) {
	removed, err := c.rdb.Del(ctx, c.key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return removed > 0, nil
}
