package result

import (
	"encoding/json"
	"testing"
)

// TestCodeMessage はエラーコードとメッセージの対応を検証する。
func TestCodeMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		code Code
		want string
	}{
		{"成功コード", CodeSuccess, "成功"},
		{"システムエラー", CodeSystemError, "システム内部エラー"},
		{"パラメータエラー", CodeParamsError, "パラメータが不正です"},
		{"ストレージエラー", CodeDatabaseError, "ストレージ操作に失敗しました"},
		{"ログアウトエラー", CodeLogoutError, "ログアウトに失敗しました"},
		{"トークン欠落", CodeTokenMissing, "トークンがありません"},
		{"トークン無効", CodeTokenInvalid, "トークンが無効です"},
		{"未知のコード", Code(99999), "不明なエラー"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.code.Message(); got != tt.want {
				t.Errorf("Message() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestCodeValues はエラーコードの数値が安定していることを検証する。
// コード体系は外部契約であり、値の変更は互換性を壊す。
func TestCodeValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code Code
		want int
	}{
		{CodeSuccess, 200},
		{CodeSystemError, 50000},
		{CodeParamsError, 50010},
		{CodeDatabaseError, 50020},
		{CodeLogoutError, 50030},
		{CodeTokenMissing, 40010},
		{CodeTokenInvalid, 40020},
	}

	for _, tt := range tests {
		tt := tt
		if int(tt.code) != tt.want {
			t.Errorf("code = %d, want %d", int(tt.code), tt.want)
		}
	}
}

// TestSuccess は成功レスポンスの構造を検証する。
func TestSuccess(t *testing.T) {
	t.Parallel()

	r := Success(map[string]string{"key": "value"})
	if r.Code != 200 {
		t.Errorf("Code = %d, want 200", r.Code)
	}
	if r.Message != "成功" {
		t.Errorf("Message = %q, want %q", r.Message, "成功")
	}
	if r.Data == nil {
		t.Error("Dataがnil")
	}
}

// TestError はエラーレスポンスのJSONにdataフィールドが含まれないことを検証する。
func TestError(t *testing.T) {
	t.Parallel()

	r := Error(CodeTokenMissing)
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("JSONシリアライズに失敗: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("JSONデコードに失敗: %v", err)
	}
	if _, ok := m["data"]; ok {
		t.Error("エラーレスポンスにdataフィールドが含まれている")
	}
	if m["code"].(float64) != 40010 {
		t.Errorf("code = %v, want 40010", m["code"])
	}
}

// TestErrorWithMessage は独自メッセージ付きエラーレスポンスを検証する。
func TestErrorWithMessage(t *testing.T) {
	t.Parallel()

	r := ErrorWithMessage(CodeParamsError, "アカウントまたはパスワードが違います")
	if r.Code != 50010 {
		t.Errorf("Code = %d, want 50010", r.Code)
	}
	if r.Message != "アカウントまたはパスワードが違います" {
		t.Errorf("Message = %q", r.Message)
	}
}
