package result

// Code はAPIレスポンスで使用するエラーコードを表す。
// コード体系は追加のみ許可され、既存の値は変更しない。
type Code int

const (
	// CodeSuccess は処理が成功したことを表す。
	CodeSuccess Code = 200
	// CodeSystemError はシステム内部の予期しない異常を表す。
	CodeSystemError Code = 50000
	// CodeParamsError はリクエストパラメータの不備（認証情報の不一致を含む）を表す。
	CodeParamsError Code = 50010
	// CodeDatabaseError はデータベースまたはキャッシュストアの操作失敗を表す。
	CodeDatabaseError Code = 50020
	// CodeLogoutError はログアウト処理の失敗（セッションが存在しない等）を表す。
	CodeLogoutError Code = 50030
	// CodeTokenMissing はリクエストにトークンが含まれていないことを表す。
	CodeTokenMissing Code = 40010
	// CodeTokenInvalid はトークンが無効または期限切れであることを表す。
	CodeTokenInvalid Code = 40020
)

// Message はエラーコードに対応するメッセージを返す。
func (c Code) Message() string {
	switch c {
	case CodeSuccess:
		return "成功"
	case CodeSystemError:
		return "システム内部エラー"
	case CodeParamsError:
		return "パラメータが不正です"
	case CodeDatabaseError:
		return "ストレージ操作に失敗しました"
	case CodeLogoutError:
		return "ログアウトに失敗しました"
	case CodeTokenMissing:
		return "トークンがありません"
	case CodeTokenInvalid:
		return "トークンが無効です"
	}
	return "不明なエラー"
}

// Result はすべてのAPIレスポンスを包む共通エンベロープ。
// 成功時はDataにペイロードを格納し、失敗時はCodeとMessageのみを返す。
type Result struct {
	// Code はエラーコード。成功時は200。
	Code int `json:"code"`
	// Data はレスポンスペイロード。失敗時は省略される。
	Data any `json:"data,omitempty"`
	// Message は人間が読めるメッセージ。
	Message string `json:"message"`
}

// Success は成功レスポンスを生成する。
func Success(data any) Result {
	return Result{
		Code:    int(CodeSuccess),
		Data:    data,
		Message: CodeSuccess.Message(),
	}
}

// Error はエラーコードからエラーレスポンスを生成する。
func Error(code Code) Result {
	return Result{
		Code:    int(code),
		Message: code.Message(),
	}
}

// ErrorWithMessage はエラーコードと独自メッセージからエラーレスポンスを生成する。
// 内部の失敗詳細はメッセージに含めず、呼び出し側でログに記録すること。
func ErrorWithMessage(code Code, message string) Result {
	return Result{
		Code:    int(code),
		Message: message,
	}
}
