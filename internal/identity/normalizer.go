// Package identity はソーシャルログイン連携とプロバイダー別の
// ユーザー属性正規化を提供する。
//
// 各プロバイダー（Google, Kakao, Naver）が返すユーザー属性の形は
// バラバラであり、Normalize が共通のIdentity形式に変換する。
package identity

import (
	"errors"
	"fmt"
)

// プロバイダー識別子。usersテーブルのprovider列の値と一致する。
const (
	ProviderGoogle = "google"
	ProviderKakao  = "kakao"
	ProviderNaver  = "naver"
)

// ErrUnsupportedProvider は未対応のプロバイダーが指定された場合のエラー。
var ErrUnsupportedProvider = errors.New("unsupported provider")

// ErrMissingAttribute は必須属性が取得できなかった場合のエラー。
var ErrMissingAttribute = errors.New("missing required attribute")

// Identity はプロバイダーから取得したユーザー情報の正規化結果。
type Identity struct {
	// Email はプロバイダー上のメールアドレス。ユーザー照合キーの一部。
	Email string
	// Provider はプロバイダー識別子（google/kakao/naver）。
	Provider string
	// ProviderID はプロバイダー内でのユーザーID。
	ProviderID string
	// Nickname はプロバイダー上の表示名。空の場合がある。
	Nickname string
	// AvatarURL はプロフィール画像URL。空の場合がある。
	AvatarURL string
}

// Normalize はプロバイダーが返した生の属性マップを共通のIdentityに変換する。
// 未対応のプロバイダーにはErrUnsupportedProviderを返す。
// メールアドレスまたはプロバイダー内IDが取得できない場合はErrMissingAttributeを返す。
func Normalize(provider string, attrs map[string]any) (*Identity, error) {
	var id *Identity
	switch provider {
	case ProviderGoogle:
		id = normalizeGoogle(attrs)
	case ProviderKakao:
		id = normalizeKakao(attrs)
	case ProviderNaver:
		id = normalizeNaver(attrs)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}

	if id.ProviderID == "" {
		return nil, fmt.Errorf("%w: provider user id (provider=%s)", ErrMissingAttribute, provider)
	}
	if id.Email == "" {
		return nil, fmt.Errorf("%w: email (provider=%s)", ErrMissingAttribute, provider)
	}
	return id, nil
}

// normalizeGoogle はGoogleのuserinfo応答を正規化する。
// 属性はトップレベルのフラットな形: sub, email, name, picture。
func normalizeGoogle(attrs map[string]any) *Identity {
	return &Identity{
		Provider:   ProviderGoogle,
		ProviderID: stringAttr(attrs, "sub"),
		Email:      stringAttr(attrs, "email"),
		Nickname:   stringAttr(attrs, "name"),
		AvatarURL:  stringAttr(attrs, "picture"),
	}
}

// normalizeKakao はKakaoの/v2/user/me応答を正規化する。
// ユーザーIDはトップレベルのid（数値）、メールはkakao_account.email、
// 表示名と画像はkakao_account.profile配下にある。
// 古いアプリ設定ではproperties配下に入るため、そちらもフォールバックで見る。
func normalizeKakao(attrs map[string]any) *Identity {
	account := nestedMap(attrs, "kakao_account")
	profile := nestedMap(account, "profile")
	properties := nestedMap(attrs, "properties")

	nickname := stringAttr(profile, "nickname")
	if nickname == "" {
		nickname = stringAttr(properties, "nickname")
	}
	avatar := stringAttr(profile, "profile_image_url")
	if avatar == "" {
		avatar = stringAttr(properties, "profile_image")
	}

	return &Identity{
		Provider:   ProviderKakao,
		ProviderID: stringAttr(attrs, "id"),
		Email:      stringAttr(account, "email"),
		Nickname:   nickname,
		AvatarURL:  avatar,
	}
}

// normalizeNaver はNaverの/v1/nid/me応答を正規化する。
// 属性は全てresponseオブジェクトの配下にある。
func normalizeNaver(attrs map[string]any) *Identity {
	response := nestedMap(attrs, "response")

	return &Identity{
		Provider:   ProviderNaver,
		ProviderID: stringAttr(response, "id"),
		Email:      stringAttr(response, "email"),
		Nickname:   stringAttr(response, "nickname"),
		AvatarURL:  stringAttr(response, "profile_image"),
	}
}

// stringAttr は属性マップから文字列値を取り出す。
// JSONデコード結果の数値（float64）はそのまま文字列化する。
// 存在しないキーや未対応の型には空文字列を返す。
func stringAttr(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		// KakaoのユーザーIDは数値で返る
		return fmt.Sprintf("%.0f", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// nestedMap は属性マップからネストしたオブジェクトを取り出す。
// 存在しない場合や型が異なる場合はnilを返す。
func nestedMap(attrs map[string]any, key string) map[string]any {
	if attrs == nil {
		return nil
	}
	if m, ok := attrs[key].(map[string]any); ok {
		return m
	}
	return nil
}
