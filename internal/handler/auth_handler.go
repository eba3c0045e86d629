// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/thejoa703/sns/internal/auth"
	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/token"
)

// refreshCookieName はリフレッシュトークンを保持するHTTP Only Cookieの名前。
const refreshCookieName = "refreshToken"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はローカルユーザーの認証とセッション発行を行う。
	Login(ctx context.Context, email, password string) (*auth.TokenPair, *model.User, error)
	// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
	Refresh(ctx context.Context, refreshToken string) (string, error)
	// Logout はリフレッシュトークンを検証し、主体のセッションを失効させる。
	Logout(ctx context.Context, refreshToken string) error
	// CurrentUser は認証済みユーザーの情報を返す。
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
	// CurrentUserFromRefresh はリフレッシュトークンからセッションを検証し、
	// 持ち主のユーザー情報を返す。アクセストークンがない場合のフォールバック。
	CurrentUserFromRefresh(ctx context.Context, refreshToken string) (*model.User, error)
}

// SignupServiceInterface はサインアップに必要なサービスインターフェース。
type SignupServiceInterface interface {
	Signup(ctx context.Context, email, password, nickname string) (*model.User, error)
}

// AuthMetrics は認証系メトリクスの記録インターフェース。
type AuthMetrics interface {
	RecordLoginSuccess(provider string)
	RecordLoginFailure(provider string, reason string)
	RecordTokenRefresh()
	RecordSessionRevoked()
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	RefreshMaxAge int // リフレッシュCookieの有効期間（秒）
}

// AuthHandler はログイン・トークン再発行・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	signup  SignupServiceInterface
	metrics AuthMetrics
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, signup SignupServiceInterface, metrics AuthMetrics, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		signup:  signup,
		metrics: metrics,
		config:  config,
	}
}

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Nickname     string `json:"nickname"`
	Provider     string `json:"provider"`
	Role         string `json:"role"`
	ProfileImage string `json:"profileImage,omitempty"`
}

// loginResponse はログイン成功時のレスポンス。
// リフレッシュトークンはボディに含めず、HTTP Only Cookieで返す。
type loginResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

// Signup はローカルユーザーの新規登録を処理する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	user, err := h.signup.Signup(r.Context(), req.Email, req.Password, req.Nickname)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login はローカルユーザーのログインを処理する。
// POST /api/auth/login
// 成功時はアクセストークンをボディで、リフレッシュトークンを
// HTTP Only Cookieで返す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	pair, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.metrics.RecordLoginFailure(model.ProviderLocal, "invalid_credentials")
			middleware.WriteAPIError(w, model.NewInvalidCredentialsError())
			return
		}
		slog.Error("login failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	h.metrics.RecordLoginSuccess(model.ProviderLocal)
	h.setRefreshCookie(w, pair.RefreshToken)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: pair.AccessToken,
		User:        toUserResponse(user),
	})
}

// Refresh はリフレッシュトークンCookieから新しいアクセストークンを発行する。
// POST /api/auth/refresh
// Cookieの欠落・トークン不正・セッション不一致はすべて401に集約する。
// セッションストア障害は認証失敗と区別し、503を返す。
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	accessToken, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if isAuthFailure(err) {
			h.clearRefreshCookie(w)
			middleware.WriteAPIError(w, model.NewUnauthenticatedError())
			return
		}
		slog.Error("token refresh failed", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, model.NewServiceUnavailableError())
		return
	}

	h.metrics.RecordTokenRefresh()
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": accessToken})
}

// Logout はリフレッシュトークンCookieからセッションを失効させ、
// リフレッシュCookieをクリアする。
// POST /api/auth/logout
//
// 認証はCookieのリフレッシュトークンだけで行う。アクセストークンが
// 期限切れのクライアントでもセッションを破棄できる。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
		if isAuthFailure(err) {
			h.clearRefreshCookie(w)
			middleware.WriteAPIError(w, model.NewUnauthenticatedError())
			return
		}
		slog.Error("failed to logout", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, model.NewServiceUnavailableError())
		return
	}

	h.metrics.RecordSessionRevoked()
	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
//
// アクセストークンを優先し、なければリフレッシュCookieにフォールバックする。
// どちらでも認証できない場合は401を返す。
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.resolveCurrentUser(r)
	if err != nil {
		if isAuthFailure(err) {
			middleware.WriteAPIError(w, model.NewUnauthenticatedError())
			return
		}
		slog.Error("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// resolveCurrentUser はアクセストークン由来のコンテキスト、次に
// リフレッシュCookieの順でユーザーを解決する。
func (h *AuthHandler) resolveCurrentUser(r *http.Request) (*model.User, error) {
	if userID, err := middleware.UserIDFromContext(r.Context()); err == nil {
		return h.service.CurrentUser(r.Context(), userID)
	}

	cookie, err := r.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return nil, auth.ErrSessionNotFound
	}
	return h.service.CurrentUserFromRefresh(r.Context(), cookie.Value)
}

// setRefreshCookie はリフレッシュトークンをHTTP Only Cookieに設定する。
func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// clearRefreshCookie はリフレッシュトークンCookieを削除する。
func (h *AuthHandler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// isAuthFailure は認証失敗として扱うべきエラーかを判定する。
// ストア障害などのインフラエラーは認証失敗に含めない。
func isAuthFailure(err error) bool {
	return errors.Is(err, auth.ErrInvalidCredentials) ||
		errors.Is(err, auth.ErrSessionNotFound) ||
		errors.Is(err, auth.ErrTokenMismatch) ||
		errors.Is(err, token.ErrInvalidToken) ||
		errors.Is(err, token.ErrExpired) ||
		errors.Is(err, token.ErrIssuerMismatch) ||
		errors.Is(err, token.ErrWrongTokenType)
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:           user.ID,
		Email:        user.Email,
		Nickname:     user.Nickname,
		Provider:     user.Provider,
		Role:         user.Role,
		ProfileImage: user.ProfileImage,
	}
}
