// Package user はユーザーサービスを実装する。
//
// ログイン・トークンリフレッシュ・ログアウトの認証フローと、
// 他サービス向けの内部API（ユーザー参照・トークン検証）を提供する。
// 発行済みトークンペアはRedisに保存し、リフレッシュの正当性は
// Redis上の保存値との一致で判定する。
package user
