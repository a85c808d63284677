// 注文サービスのエントリポイント。
// トークン検証ガードの背後で注文の作成・一覧と、
// ユーザーサービスへの内部API呼び出しを担当する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/authhub/internal/order"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8082"
	}

	server, err := order.NewServer(port)
	if err != nil {
		log.Fatalf("Orderサーバーの初期化に失敗: %v", err)
	}

	log.Printf("Orderサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("Orderサービスの起動に失敗: %v", err)
	}
}
