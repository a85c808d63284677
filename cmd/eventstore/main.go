// イベントストアサービスのエントリポイント。
// 各サービスから送信されるドメインイベントを監査ログとして永続化し、
// 履歴照会APIを提供する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/authhub/internal/eventstore"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	server, err := eventstore.NewServer(port)
	if err != nil {
		log.Fatalf("イベントストアサーバーの初期化に失敗: %v", err)
	}

	log.Printf("イベントストアサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("イベントストアサービスの起動に失敗: %v", err)
	}
}
