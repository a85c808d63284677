// Package result は全サービス共通のエラーコード体系とレスポンスエンベロープを提供する。
//
// HTTPレスポンスは常に {code, data, message} の形式で返される。
// エラーコードは固定の列挙であり、拡張は追加のみ許可される。
package result
