// Package eventstore はイベントストアサービスの内部実装を提供する。
//
// 認証・注文の各サービスから送信されるドメインイベントを監査ログとして
// 永続化する。イベントは不変（immutable）であり、追記のみ（append-only）で
// 運用される。
//
// 主な機能:
//   - イベントの追記（Append、Aggregateごとのバージョン採番付き）
//   - AggregateIDによるイベント取得（履歴追跡用）
//   - イベントタイプによるイベント取得（監査・集計用）
//   - 日時指定によるイベント取得（増分エクスポート用）
package eventstore
