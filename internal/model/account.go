// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの権限ロールを表す。
// 文字列比較を各所に散らさず、閉じた列挙として扱う。
type Role string

const (
	// RoleStudent は受講者ロール。
	RoleStudent Role = "STUDENT"
	// RoleTeacher は講師ロール。
	RoleTeacher Role = "TEACHER"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "ADMIN"
)

// IsValid はロールが定義済みのいずれかであることを検証する。
func (r Role) IsValid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole は文字列をRoleに変換する。
// 未定義のロール文字列の場合は第2戻り値がfalseになる。
func ParseRole(s string) (Role, bool) {
	role := Role(s)
	return role, role.IsValid()
}

// AllRoles は定義済みの全ロールを返す。
func AllRoles() []Role {
	return []Role{RoleStudent, RoleTeacher, RoleAdmin}
}

// Account はサービス利用アカウントを表す。
// Emailは小文字に正規化して保存する（大文字小文字を区別しない一意制約）。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	FirstName    string
	LastName     string
	Phone        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName は表示用の氏名を返す。
func (a *Account) FullName() string {
	switch {
	case a.FirstName == "":
		return a.LastName
	case a.LastName == "":
		return a.FirstName
	default:
		return a.FirstName + " " + a.LastName
	}
}

// SetupToken はアカウント有効化用のワンタイムトークンを表す。
// 同一のトークン文字列が同時に複数の有効なレコードを指すことはない。
// 消費または期限切れ検出時にレコードごと削除され、更新されることはない。
type SetupToken struct {
	Token     string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired は指定時刻においてトークンが期限切れかどうかを返す。
func (t *SetupToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Invitee はセットアップトークン検証時に返す招待対象者の情報。
type Invitee struct {
	AccountID string
	Email     string
	FirstName string
	LastName  string
}
