// Package model はドメインモデルを定義する。
package model

import "time"

// ロールの定義。
const (
	// RoleUser は一般ユーザーのロール。
	RoleUser = "ROLE_USER"
	// RoleAdmin は管理者のロール。
	RoleAdmin = "ROLE_ADMIN"
)

// ProviderLocal はメールアドレス+パスワードで登録したユーザーのprovider値。
const ProviderLocal = "local"

// User はサービス利用ユーザーを表す。
// (Email, Provider) の組は一意。ProviderIDとPasswordHashは
// ローカル/ソーシャルのどちらで登録されたかに応じて片方のみ持つ。
type User struct {
	ID           string
	Email        string
	Provider     string // "local", "google", "kakao", "naver"
	ProviderID   string // 外部IdPのユーザーID。ローカルユーザーでは空
	Nickname     string
	PasswordHash string // ソーシャルユーザーでは空
	Role         string
	ProfileImage string
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsLocal はローカル（メール+パスワード）登録ユーザーかを返す。
func (u *User) IsLocal() bool {
	return u.Provider == ProviderLocal
}
