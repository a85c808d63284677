// Package order は注文サービスを実装する。
//
// トークン検証ミドルウェアで保護された業務APIのサンプルであり、
// 注文の作成・一覧と、ユーザーサービスの内部APIを経由した
// ユーザー参照を提供する。
package order
