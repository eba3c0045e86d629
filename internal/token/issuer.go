// Package token はJWTアクセストークン/リフレッシュトークンの発行と検証を提供する。
//
// トークンは共有秘密鍵によるHS256署名の自己完結型で、アクセストークンの検証に
// ストア参照は不要。検証失敗の内訳（署名不正・期限切れ・発行者不一致）は
// 内部でのみ区別し、APIの呼び出し元には「認証失敗」以上の情報を返さないこと。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken は署名不正・構造不正など暗号学的に検証できないトークンのエラー。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpired は有効期限切れトークンのエラー。
	ErrExpired = errors.New("token expired")
	// ErrIssuerMismatch は発行者が一致しないトークンのエラー。
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrWrongTokenType はアクセス/リフレッシュの種別が一致しないトークンのエラー。
	ErrWrongTokenType = errors.New("wrong token type")
)

// トークン種別。
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Config はIssuerの設定。
// 署名鍵はプロセス起動時に1回読み込み、以後変更しない。
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Claims はトークンに埋め込むクレームセット。
// subjectにはユーザーIDを格納する。roleはアクセストークンのみ持つ。
type Claims struct {
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Issuer はトークンの発行と検証を行う。
// ストアへの参照や副作用を持たない。
type Issuer struct {
	config Config
}

// NewIssuer はIssuerを生成する。
func NewIssuer(config Config) *Issuer {
	return &Issuer{config: config}
}

// IssueAccessToken は指定ユーザーのアクセストークンを発行する。
// クレームにはsubject（ユーザーID）、role、発行者、発行時刻、有効期限を含む。
func (i *Issuer) IssueAccessToken(subjectID, role string) (string, error) {
	return i.sign(subjectID, role, TypeAccess, i.config.AccessTTL)
}

// IssueRefreshToken は指定ユーザーのリフレッシュトークンを発行する。
// roleクレームは持たず、アクセストークンより長いTTLを使用する。
func (i *Issuer) IssueRefreshToken(subjectID string) (string, error) {
	return i.sign(subjectID, "", TypeRefresh, i.config.RefreshTTL)
}

func (i *Issuer) sign(subjectID, role, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:      role,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			// jtiにより同一秒内の再発行でもトークンが一意になる。
			// 古いセッションの無効化はトークン文字列の突合に依存している。
			ID:        uuid.NewString(),
			Issuer:    i.config.Issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(i.config.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify はトークンの署名・有効期限・発行者を検証し、クレームを返す。
// 検証失敗はErrExpired、ErrIssuerMismatch、ErrInvalidTokenのいずれかを返す。
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(i.config.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != i.config.Issuer {
		return nil, ErrIssuerMismatch
	}

	return claims, nil
}

// VerifyAccess はアクセストークンとして検証する。
// リフレッシュトークンが渡された場合はErrWrongTokenTypeを返す。
func (i *Issuer) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// VerifyRefresh はリフレッシュトークンとして検証する。
// アクセストークンが渡された場合はErrWrongTokenTypeを返す。
func (i *Issuer) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// RefreshTTL は設定されたリフレッシュトークンのTTLを返す。
// セッションストアのTTLと揃えるために使用する。
func (i *Issuer) RefreshTTL() time.Duration {
	return i.config.RefreshTTL
}
