// Package token は署名付きトークンの発行・検証・キャッシュ・更新・失効を提供する。
//
// Codecは入出力を持たない純粋なJWT署名/検証器、CacheはRedisに保存される
// ユーザー単位の現行トークンペア、Serviceは両者を組み合わせた
// セッションライフサイクル（発行・リフレッシュ・検証・ログアウト）を担当する。
// リフレッシュトークンの有効性はCacheが唯一の正とする。
package token
