package token

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTokenMissing はリクエストにトークンが含まれていないことを表す。
	ErrTokenMissing = errors.New("トークンがありません")
	// ErrSessionNotFound はログアウト対象のセッションが存在しないことを表す。
	ErrSessionNotFound = errors.New("セッションが存在しません")
)

// Pair は発行されたトークンペアのレスポンス構造。
type Pair struct {
	// AccessToken は短命のアクセストークン。
	AccessToken string `json:"access_token"`
	// RefreshToken はアクセストークンの2倍の有効期間を持つリフレッシュトークン。
	RefreshToken string `json:"refresh_token"`
	// ExpireIn はアクセストークンの有効期間（ミリ秒）。
	ExpireIn int64 `json:"expire_in"`
}

// Service はCodecとCacheを組み合わせてセッションライフサイクルを実装する。
// ユーザーごとのセッションは Anonymous（エントリなし）→ Active →
// AccessExpired → Anonymous（ログアウトまたはTTL消滅）と遷移する。
type Service struct {
	// codec はトークンの署名・検証器。
	codec *Codec
	// cache はユーザー単位の現行トークンペア。リフレッシュ有効性の唯一の正。
	cache *Cache
	// accessTTL はアクセストークンの有効期間。
	accessTTL time.Duration
}

// NewService は新しいトークンサービスを生成する。
func NewService(codec *Codec, cache *Cache, cfg Config) *Service {
	return &Service{
		codec:     codec,
		cache:     cache,
		accessTTL: cfg.AccessTTL,
	}
}

// Issue は指定ユーザーに新しいトークンペアを発行し、キャッシュに保存する。
// アクセストークンとリフレッシュトークンは同じクレームセットから
// それぞれ1倍・2倍のTTLで独立に署名される。extraはロール等の追加クレーム。
// 認証情報の検証は呼び出し側（ユーザーストア）の責務である。
func (s *Service) Issue(ctx context.Context, userID, username string, extra map[string]string) (*Pair, error) {
	accessToken, err := s.codec.Sign(userID, username, extra, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.Sign(userID, username, extra, s.accessTTL*2)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Put(ctx, userID, accessToken, refreshToken); err != nil {
		return nil, err
	}

	return &Pair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpireIn:     s.accessTTL.Milliseconds(),
	}, nil
}

// Refresh はリフレッシュトークンと引き換えに新しいトークンペアを発行する。
// 提示されたトークンはキャッシュ内の現行リフレッシュトークンと完全一致
// しなければならない。再発行によって保存値が置き換わるため、同じ
// リフレッシュトークンは一度しか使用できない（発行単位の単回使用）。
//
// 読み取り・比較・書き込みの一連の処理はロックしない。同一の有効な
// リフレッシュトークンを使った並行リフレッシュは双方成功しうるが、
// 最後の書き込みが正となり、どちらのペアも独立に有効なトークンである。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Pair, error) {
	if refreshToken == "" {
		return nil, ErrTokenMissing
	}

	claims, err := s.codec.Parse(refreshToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	cached, err := s.cache.GetRefreshToken(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	// 消費済み・旧セッション・ログアウト済みはすべてここで不一致になる
	if cached == "" || cached != refreshToken {
		return nil, ErrTokenInvalid
	}

	if _, err := s.cache.Delete(ctx, claims.UserID); err != nil {
		return nil, err
	}

	return s.Issue(ctx, claims.UserID, claims.Username, claims.Extra)
}

// Logout はユーザーのキャッシュエントリを削除してセッションを終了する。
// 削除対象が存在しない場合はErrSessionNotFoundを返す。
func (s *Service) Logout(ctx context.Context, userID string) error {
	removed, err := s.cache.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrSessionNotFound
	}
	return nil
}

// Validate はトークンが指定ユーザーのもので、かつ期限内であることを検証する。
// パースに失敗したトークンは常に無効として扱う。
func (s *Service) Validate(tokenStr, expectedUserID string) bool {
	claims, err := s.codec.Parse(tokenStr)
	if err != nil {
		return false
	}
	return claims.UserID == expectedUserID
}

// Codec はサービスが使用するCodecを返す。
// ゲートウェイ等がローカル検証のみ行いたい場合に使用する。
func (s *Service) Codec() *Codec {
	return s.codec
}
