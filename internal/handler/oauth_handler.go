package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/thejoa703/sns/internal/auth"
	"github.com/thejoa703/sns/internal/identity"
	"github.com/thejoa703/sns/internal/model"
)

const oauthStateCookie = "oauth_state"

// SocialUserService はソーシャルログインユーザーの解決インターフェース。
type SocialUserService interface {
	// EnsureSocialUser は外部IdPのユーザー情報からローカルユーザーを取得または作成する。
	EnsureSocialUser(ctx context.Context, ident *identity.Identity) (*model.User, error)
}

// SessionIssuer はセッション発行のインターフェース。
type SessionIssuer interface {
	IssueSession(ctx context.Context, user *model.User) (*auth.TokenPair, error)
}

// OAuthHandler はソーシャルログイン（google/kakao/naver）のHTTPハンドラー。
type OAuthHandler struct {
	providers map[string]identity.OAuthProvider
	users     SocialUserService
	sessions  SessionIssuer
	metrics   AuthMetrics
	config    AuthHandlerConfig
}

// NewOAuthHandler はOAuthHandlerを生成する。
// providersのキーはプロバイダー名（"google"など）。
func NewOAuthHandler(
	providers map[string]identity.OAuthProvider,
	users SocialUserService,
	sessions SessionIssuer,
	metrics AuthMetrics,
	config AuthHandlerConfig,
) *OAuthHandler {
	return &OAuthHandler{
		providers: providers,
		users:     users,
		sessions:  sessions,
		metrics:   metrics,
		config:    config,
	}
}

// Login はソーシャルログインの認可フローを開始する。
// GET /oauth2/login/{provider}
func (h *OAuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		writeUnknownProvider(w)
		return
	}

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はIdPからの認可コールバックを処理する。
// GET /oauth2/callback/{provider}?code=xxx&state=yyy
// 成功時はリフレッシュCookieを設定し、アクセストークンを
// クエリパラメータに付けてフロントエンドへリダイレクトする。
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, ok := h.providers[providerName]
	if !ok {
		writeUnknownProvider(w)
		return
	}

	// 1. stateの検証（CSRF対策）
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch",
			slog.String("provider", providerName),
		)
		http.Error(w, "invalid state parameter", http.StatusBadRequest)
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードの取得
	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	// 3. コードをIdPのユーザー情報に交換
	ident, err := provider.ExchangeCode(r.Context(), code)
	if err != nil {
		h.metrics.RecordLoginFailure(providerName, "exchange_failed")
		slog.Error("oauth code exchange failed",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusBadGateway)
		return
	}

	// 4. ローカルユーザーの取得または作成
	user, err := h.users.EnsureSocialUser(r.Context(), ident)
	if err != nil {
		h.metrics.RecordLoginFailure(providerName, "user_resolution_failed")
		slog.Error("failed to resolve social user",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	// 5. セッション発行
	pair, err := h.sessions.IssueSession(r.Context(), user)
	if err != nil {
		h.metrics.RecordLoginFailure(providerName, "session_issue_failed")
		slog.Error("failed to issue session",
			slog.String("provider", providerName),
			slog.String("error", err.Error()),
		)
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.metrics.RecordLoginSuccess(providerName)

	// 6. リフレッシュCookieを設定し、アクセストークン付きでリダイレクト
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    pair.RefreshToken,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.RefreshMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	redirectURL := h.config.BaseURL + "/oauth/redirect?accessToken=" + url.QueryEscape(pair.AccessToken)
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

// writeUnknownProvider は未対応プロバイダーの404レスポンスを書き込む。
func writeUnknownProvider(w http.ResponseWriter) {
	http.Error(w, "unknown provider", http.StatusNotFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
