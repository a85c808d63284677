// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// 各サービスが他のサービスのAPIを呼び出す際に使用する。
// orderサービスからuserサービスの内部APIを呼び出す場合など、
// サービス間の通信パターンを統一する。
package httpclient
