package user

import (
	"context"
	"database/sql"
	"time"
)

// User はusersテーブルの1行を表す。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Account はログインに使用するアカウント名。
	Account string
	// Password はログインパスワード。
	Password string
	// Role はユーザーのロール。クレームに載せるだけで権限制御には使用しない。
	Role string
	// CreatedAt は作成日時。
	CreatedAt time.Time
	// UpdatedAt は更新日時。
	UpdatedAt time.Time
	// IsDelete は論理削除フラグ。trueの行は全ての検索から除外される。
	IsDelete bool
}

// Queries はusersテーブルへのクエリ実行オブジェクト。
type Queries struct {
	db *sql.DB
}

// NewQueries は新しいクエリ実行オブジェクトを生成する。
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// CreateUserParams はCreateUserのパラメータ。
type CreateUserParams struct {
	// ID はユーザーの一意識別子。
	ID string
	// Account はアカウント名。
	Account string
	// Password はパスワード。
	Password string
	// Role はロール。
	Role string
}

const createUser = `
INSERT INTO users (id, account, password, role)
VALUES (?, ?, ?, ?)
`

// CreateUser は新しいユーザーを作成する。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Account, arg.Password, arg.Role)
	return err
}

const getUserByCredentials = `
SELECT id, account, password, role, created_at, updated_at, is_delete
FROM users
WHERE account = ? AND password = ? AND is_delete = 0
`

// GetUserByCredentials はアカウント名とパスワードが一致するユーザーを取得する。
// 論理削除済みの行は一致しない。該当なしの場合はsql.ErrNoRowsを返す。
func (q *Queries) GetUserByCredentials(ctx context.Context, account, password string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByCredentials, account, password)
	return scanUser(row)
}

const getUserByID = `
SELECT id, account, password, role, created_at, updated_at, is_delete
FROM users
WHERE id = ? AND is_delete = 0
`

// GetUserByID は指定されたIDのユーザーを取得する。
// 論理削除済みの行は一致しない。該当なしの場合はsql.ErrNoRowsを返す。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	return scanUser(row)
}

const deleteUser = `
UPDATE users SET is_delete = 1, updated_at = datetime('now')
WHERE id = ? AND is_delete = 0
`

// DeleteUser はユーザーを論理削除する。行は物理的には残る。
func (q *Queries) DeleteUser(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteUser, id)
	return err
}

// scanUser は1行をUser構造体に読み取る。
func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Account, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.IsDelete)
	return u, err
}
