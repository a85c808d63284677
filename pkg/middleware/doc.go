// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// ゲートウェイの全体トークンフィルタ（TokenFilter）、サービス側の
// トークン検証ガード（TokenAuth）、パニックリカバリ、CORS設定など、
// 全サービスで共通して使用するミドルウェアを含む。
package middleware
