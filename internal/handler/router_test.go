package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/thejoa703/sns/internal/identity"
	"github.com/thejoa703/sns/internal/logger"
	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/token"
)

// newRouterTestDeps は実トークン発行機とモックサービスでルーター依存を組み立てる。
func newRouterTestDeps(t *testing.T) (*RouterDeps, *token.Issuer) {
	t.Helper()

	issuer := token.NewIssuer(token.Config{
		Secret:     "router-test-secret-0123456789abcd",
		Issuer:     "sns-api",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
	})

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rateLimiter.Stop)

	deps := &RouterDeps{
		AccessVerifier:    issuer,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rateLimiter,
		Logger:            logger.Setup(io.Discard),
		AuthService: &mockAuthService{
			currentUserFn: func(ctx context.Context, userID string) (*model.User, error) {
				return testUser(), nil
			},
		},
		SignupService: &mockSignupService{},
		UserService: &mockUserService{
			countFn: func(ctx context.Context) (int64, error) { return 3, nil },
		},
		SocialUsers:    &mockSocialUserService{},
		SessionIssuer:  &mockSessionIssuer{},
		PostService:    &mockPostService{},
		CommentService: &mockCommentService{},
		FeedService: &mockFeedService{
			getFn: func(ctx context.Context, userID string, page, pageSize int) ([]model.FeedItem, error) {
				return nil, nil
			},
		},
		OAuthProviders: map[string]identity.OAuthProvider{},
		AuthMetrics:    &recordingMetrics{},
		PostMetrics:    &recordingMetrics{},
		CommentMetrics: &recordingMetrics{},
		FeedMetrics:    &recordingMetrics{},
		AuthConfig:     testAuthConfig(),
	}
	return deps, issuer
}

// TestRouter_Healthz はヘルスチェックが認証なしで200を返すことを検証する。
func TestRouter_Healthz(t *testing.T) {
	deps, _ := newRouterTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestRouter_ProtectedRoute_RequiresToken は保護ルートがトークンなしで
// 401を返し、有効なトークンで通過することを検証する。
func TestRouter_ProtectedRoute_RequiresToken(t *testing.T) {
	deps, issuer := newRouterTestDeps(t)
	router := NewRouter(deps)

	t.Run("no token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
		}
	})

	t.Run("valid token", func(t *testing.T) {
		accessToken, err := issuer.IssueAccessToken("user-1", model.RoleUser)
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+accessToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
		}
	})

	t.Run("refresh token rejected", func(t *testing.T) {
		refreshToken, err := issuer.IssueRefreshToken("user-1")
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+refreshToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Result().StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
		}
	})
}

// TestRouter_PublicRoutes_NoAuth は公開ルートが認証なしで利用できることを検証する。
func TestRouter_PublicRoutes_NoAuth(t *testing.T) {
	deps, _ := newRouterTestDeps(t)
	router := NewRouter(deps)

	tests := []struct {
		name string
		path string
		want int
	}{
		{name: "csrf token", path: "/api/csrf-token", want: http.StatusOK},
		{name: "user count", path: "/api/users/count", want: http.StatusOK},
		{name: "unknown oauth provider", path: "/oauth2/login/github", want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Result().StatusCode != tt.want {
				t.Errorf("status = %d, want %d", w.Result().StatusCode, tt.want)
			}
		})
	}
}

// TestRouter_SecurityHeaders は全レスポンスにセキュリティヘッダが付与されることを検証する。
func TestRouter_SecurityHeaders(t *testing.T) {
	deps, _ := newRouterTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want %q", got, "nosniff")
	}
	if got := w.Result().Header.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got, "DENY")
	}
}

// TestRouter_Feed_WithToken はフィード取得がトークン認証経由で
// 空配列を返すことを検証する。
func TestRouter_Feed_WithToken(t *testing.T) {
	deps, issuer := newRouterTestDeps(t)
	router := NewRouter(deps)

	accessToken, err := issuer.IssueAccessToken("user-1", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "[]\n" && string(body) != "[]" {
		t.Errorf("body = %q, want empty JSON array", string(body))
	}
}

// TestRouter_Logout_WithExpiredAccessToken はアクセストークンが期限切れでも
// 有効なリフレッシュCookieだけでログアウトできることを検証する。
// ログアウトはBearer認証ではなくCookie認証のルートに属する。
func TestRouter_Logout_WithExpiredAccessToken(t *testing.T) {
	deps, _ := newRouterTestDeps(t)

	var loggedOut string
	deps.AuthService = &mockAuthService{
		logoutFn: func(ctx context.Context, refreshToken string) error {
			loggedOut = refreshToken
			return nil
		},
	}
	router := NewRouter(deps)

	// 期限切れのアクセストークンを用意する
	expiredIssuer := token.NewIssuer(token.Config{
		Secret:     "router-test-secret-0123456789abcd",
		Issuer:     "sns-api",
		AccessTTL:  -time.Minute,
		RefreshTTL: 24 * time.Hour,
	})
	expiredAccess, err := expiredIssuer.IssueAccessToken("user-1", model.RoleUser)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+expiredAccess)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "valid-refresh-token"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "csrf-value"})
	req.Header.Set("X-CSRF-Token", "csrf-value")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if loggedOut != "valid-refresh-token" {
		t.Errorf("logged out with token = %q, want %q", loggedOut, "valid-refresh-token")
	}
}

// TestRouter_Logout_RequiresCSRFToken はCookie認証のログアウトが
// CSRFトークンなしでは403になることを検証する。
func TestRouter_Logout_RequiresCSRFToken(t *testing.T) {
	deps, _ := newRouterTestDeps(t)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: "valid-refresh-token"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}
