// Package model はドメインモデルを定義する。
package model

import "time"

// Principal はリクエストごとに解決された識別情報を表す。
// セッションCookieから毎リクエスト導出され、永続化はしない。
type Principal struct {
	AccountID     string
	Email         string
	Authenticated bool
}

// Session はログインセッションを表す。
// CookieのセッションIDをキーにDBの行を参照する。発行はIdP側の責務。
type Session struct {
	ID        string
	AccountID string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Role はアカウントの役割を表すタグ付き型。
// boolean旗の組み合わせではなく、単一の解決済みロールとして扱う。
type Role string

const (
	RoleReader     Role = "reader"
	RoleWriter     Role = "writer"
	RoleModerator  Role = "moderator"
	RoleSuperAdmin Role = "super_admin"
)

// IsAdmin はモデレーター以上の権限を持つかを返す。
func (r Role) IsAdmin() bool {
	return r == RoleModerator || r == RoleSuperAdmin
}

// IsValid は定義済みロールのいずれかであるかを返す。
func (r Role) IsValid() bool {
	switch r {
	case RoleReader, RoleWriter, RoleModerator, RoleSuperAdmin:
		return true
	default:
		return false
	}
}
