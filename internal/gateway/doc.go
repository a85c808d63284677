// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 全ルートに適用されるトークン検証フィルタとリクエストルーティングを
// 担当する。外部からアクセス可能な唯一のサービスであり、セキュリティの
// 境界線として機能する。検証済みリクエストにユーザーIDヘッダーを付与し、
// 内部サービスに転送する。
package gateway
