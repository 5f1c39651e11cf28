// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザー。新規ユーザーのデフォルト。
	RoleUser Role = "user"
	// RoleSME は講座レビューを担当する専門家（SME）。
	RoleSME Role = "sme"
	// RoleAdmin は管理者。
	RoleAdmin Role = "admin"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSME, RoleAdmin:
		return true
	default:
		return false
	}
}

// User はサービス利用ユーザーを表す。
// OpenIDはプロバイダー接頭辞付きの安定した識別子で、主キーとして扱う。
type User struct {
	OpenID       string    `json:"openId"`
	Name         string    `json:"name"`
	Email        *string   `json:"email"`
	LoginMethod  string    `json:"loginMethod"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	LastSignedIn time.Time `json:"lastSignedIn"`
}

// UpsertUser はユーザーのUPSERT入力を表す。
// 既存ユーザーの場合はName, Email, LoginMethod, LastSignedInを上書きする（last-write-wins）。
// Roleが空の場合、新規作成時はRoleUserとなり、既存ユーザーのロールは変更しない。
type UpsertUser struct {
	OpenID       string
	Name         string
	Email        *string
	LoginMethod  string
	Role         Role
	LastSignedIn time.Time
}
