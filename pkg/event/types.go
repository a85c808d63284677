package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeUser はユーザーエンティティを表す。
	AggregateTypeUser AggregateType = "User"
	// AggregateTypeOrder は注文エンティティを表す。
	AggregateTypeOrder AggregateType = "Order"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeUserLoggedIn はユーザーがログインしてトークンペアが発行されたことを表す。
	TypeUserLoggedIn Type = "UserLoggedIn"
	// TypeUserLoggedOut はユーザーがログアウトしてセッションが破棄されたことを表す。
	TypeUserLoggedOut Type = "UserLoggedOut"
	// TypeTokenRefreshed はリフレッシュトークンの引き換えでペアが再発行されたことを表す。
	TypeTokenRefreshed Type = "TokenRefreshed"
	// TypeUserMessageSent はユーザー宛のメッセージが送信されたことを表す。
	TypeUserMessageSent Type = "UserMessageSent"

	// TypeOrderCreated は注文が作成されたことを表す。
	TypeOrderCreated Type = "OrderCreated"
)

// Event はサービス間で授受する不変のイベントレコードを表す。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// UserLoggedInData はUserLoggedInイベントのデータ。
type UserLoggedInData struct {
	// Account はログインに使用されたアカウント名。
	Account string `json:"account"`
}

// UserLoggedOutData はUserLoggedOutイベントのデータ。
type UserLoggedOutData struct {
	// Account はログアウトしたユーザーのアカウント名。
	Account string `json:"account,omitempty"`
}

// TokenRefreshedData はTokenRefreshedイベントのデータ。
type TokenRefreshedData struct {
	// ExpireIn は新しいアクセストークンの有効期間（ミリ秒）。
	ExpireIn int64 `json:"expire_in"`
}

// UserMessageSentData はUserMessageSentイベントのデータ。
type UserMessageSentData struct {
	// Message は送信されたメッセージ本文。
	Message string `json:"message"`
}

// OrderCreatedData はOrderCreatedイベントのデータ。
type OrderCreatedData struct {
	// UserID は注文を作成したユーザーのID。
	UserID string `json:"user_id"`
	// Name は注文された商品名。
	Name string `json:"name"`
	// Price は注文金額（最小通貨単位）。
	Price int64 `json:"price"`
}
