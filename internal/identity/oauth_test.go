package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestNewProvider_Unsupported(t *testing.T) {
	_, err := NewProvider("twitter", OAuthConfig{})
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("NewProvider(twitter) error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestGetLoginURL(t *testing.T) {
	provider, err := NewProvider(ProviderGoogle, OAuthConfig{
		ClientID:    "client-123",
		RedirectURL: "https://api.example.com/oauth2/callback/google",
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	loginURL := provider.GetLoginURL("state-abc")

	parsed, err := url.Parse(loginURL)
	if err != nil {
		t.Fatalf("生成されたURLのパースに失敗: %v", err)
	}
	q := parsed.Query()

	if q.Get("client_id") != "client-123" {
		t.Errorf("client_id = %q, want %q", q.Get("client_id"), "client-123")
	}
	if q.Get("response_type") != "code" {
		t.Errorf("response_type = %q, want %q", q.Get("response_type"), "code")
	}
	if q.Get("state") != "state-abc" {
		t.Errorf("state = %q, want %q", q.Get("state"), "state-abc")
	}
	if !strings.Contains(q.Get("scope"), "email") {
		t.Errorf("scope = %q, want contains email", q.Get("scope"))
	}
}

func TestGetLoginURL_NaverHasNoScope(t *testing.T) {
	provider, err := NewProvider(ProviderNaver, OAuthConfig{ClientID: "c"})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	parsed, err := url.Parse(provider.GetLoginURL("s"))
	if err != nil {
		t.Fatalf("生成されたURLのパースに失敗: %v", err)
	}
	if parsed.Query().Has("scope") {
		t.Errorf("Naverの認証URLにscopeパラメータは不要: %q", parsed.String())
	}
}

// newOAuthTestServers はトークン交換とユーザー情報取得のモックサーバーを起動する。
func newOAuthTestServers(t *testing.T, userInfoJSON string) (tokenURL, userInfoURL string) {
	t.Helper()

	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("token request method = %s, want POST", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("トークンリクエストのパースに失敗: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code") != "auth-code-1" {
			t.Errorf("code = %q, want auth-code-1", r.PostForm.Get("code"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"provider-at","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(tokenServer.Close)

	userInfoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer provider-at" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer provider-at")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(userInfoJSON))
	}))
	t.Cleanup(userInfoServer.Close)

	return tokenServer.URL, userInfoServer.URL
}

func TestExchangeCode_Google(t *testing.T) {
	tokenURL, userInfoURL := newOAuthTestServers(t,
		`{"sub":"g-123","email":"u@gmail.com","name":"User","picture":"https://example.com/p.png"}`)

	provider, err := NewProvider(ProviderGoogle, OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "https://api.example.com/cb",
		TokenURL:     tokenURL,
		UserInfoURL:  userInfoURL,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	id, err := provider.ExchangeCode(context.Background(), "auth-code-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	if id.Provider != "google" || id.ProviderID != "g-123" || id.Email != "u@gmail.com" {
		t.Errorf("ExchangeCode() = %+v", id)
	}
}

func TestExchangeCode_Kakao(t *testing.T) {
	tokenURL, userInfoURL := newOAuthTestServers(t,
		`{"id":777,"kakao_account":{"email":"u@kakao.com","profile":{"nickname":"카카오"}}}`)

	provider, err := NewProvider(ProviderKakao, OAuthConfig{
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	id, err := provider.ExchangeCode(context.Background(), "auth-code-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if id.Provider != "kakao" || id.ProviderID != "777" || id.Email != "u@kakao.com" {
		t.Errorf("ExchangeCode() = %+v", id)
	}
}

func TestExchangeCode_TokenExchangeFails(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer tokenServer.Close()

	provider, err := NewProvider(ProviderGoogle, OAuthConfig{TokenURL: tokenServer.URL})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	if _, err := provider.ExchangeCode(context.Background(), "bad-code"); err == nil {
		t.Error("ExchangeCode() = nil, want error for failed token exchange")
	}
}

func TestExchangeCode_MissingEmail(t *testing.T) {
	// メール同意のないKakaoアカウントはIdentityを作れない
	tokenURL, userInfoURL := newOAuthTestServers(t, `{"id":777,"kakao_account":{}}`)

	provider, err := NewProvider(ProviderKakao, OAuthConfig{
		TokenURL:    tokenURL,
		UserInfoURL: userInfoURL,
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	_, err = provider.ExchangeCode(context.Background(), "auth-code-1")
	if !errors.Is(err, ErrMissingAttribute) {
		t.Errorf("ExchangeCode() error = %v, want ErrMissingAttribute", err)
	}
}
