// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/token"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// roleContextKey はリクエストコンテキストにロールを格納するためのキー。
	roleContextKey = contextKey("role")
)

// AccessVerifier はアクセストークンの検証に必要なインターフェース。
// token.Issuerの部分集合として定義する。
type AccessVerifier interface {
	VerifyAccess(tokenString string) (*token.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーIDとロールをリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダー欠落・署名不正・期限切れ・トークン種別不一致はすべて
// 401 UNAUTHENTICATEDに集約し、失敗理由の内訳は開示しない。
func NewAuthMiddleware(verifier AccessVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. AuthorizationヘッダーからBearerトークンを取得
			tokenString, ok := bearerToken(r)
			if !ok {
				WriteAPIError(w, model.NewUnauthenticatedError())
				return
			}

			// 2. アクセストークンとして検証
			claims, err := verifier.VerifyAccess(tokenString)
			if err != nil {
				WriteAPIError(w, model.NewUnauthenticatedError())
				return
			}

			// 3. 認証済みユーザーIDとロールをコンテキストに注入
			ctx := ContextWithUserID(r.Context(), claims.Subject)
			ctx = ContextWithRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware は有効なBearerトークンがあればユーザーIDと
// ロールをコンテキストに注入し、なければ未認証のままリクエストを通す
// ミドルウェアを返す。Cookieフォールバックを持つエンドポイント用。
func NewOptionalAuthMiddleware(verifier AccessVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString, ok := bearerToken(r); ok {
				if claims, err := verifier.VerifyAccess(tokenString); err == nil {
					ctx := ContextWithUserID(r.Context(), claims.Subject)
					ctx = ContextWithRole(ctx, claims.Role)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからBearerトークンを取り出す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || value == "" {
		return "", false
	}
	return value, true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// RoleFromContext はリクエストコンテキストからロールを取得する。
// 未設定の場合は空文字列を返す。
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleContextKey).(string)
	return role
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithRole はコンテキストにロールを注入する。
func ContextWithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey, role)
}
