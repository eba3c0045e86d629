package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// プロバイダーごとのデフォルトエンドポイント。
const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	defaultKakaoAuthURL     = "https://kauth.kakao.com/oauth/authorize"
	defaultKakaoTokenURL    = "https://kauth.kakao.com/oauth/token"
	defaultKakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"

	defaultNaverAuthURL     = "https://nid.naver.com/oauth2.0/authorize"
	defaultNaverTokenURL    = "https://nid.naver.com/oauth2.0/token"
	defaultNaverUserInfoURL = "https://openapi.naver.com/v1/nid/me"
)

// OAuthProvider はOAuth 2.0認可コードフローによるソーシャルログインを提供する。
type OAuthProvider interface {
	// Name はプロバイダー識別子（google/kakao/naver）を返す。
	Name() string

	// GetLoginURL はプロバイダーの認証画面URLを生成する。
	// stateはCSRF防止用のランダム文字列で、コールバック時に検証される。
	GetLoginURL(state string) string

	// ExchangeCode は認可コードをアクセストークンに交換し、
	// ユーザー情報を正規化済みのIdentityとして返す。
	ExchangeCode(ctx context.Context, code string) (*Identity, error)
}

// OAuthConfig はOAuthプロバイダーの設定。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// oauthClient はOAuthProviderの共通実装。
// トークン交換とユーザー情報取得のHTTPフローは3プロバイダーで共通であり、
// 認証URLのスコープと属性の形だけがプロバイダーごとに異なる。
type oauthClient struct {
	name   string
	scope  string
	config OAuthConfig
}

// NewProvider は指定されたプロバイダーのOAuthProviderを生成する。
// 未対応のプロバイダー名にはErrUnsupportedProviderを返す。
func NewProvider(name string, config OAuthConfig) (OAuthProvider, error) {
	switch name {
	case ProviderGoogle:
		applyDefaults(&config, defaultGoogleAuthURL, defaultGoogleTokenURL, defaultGoogleUserInfoURL)
		return &oauthClient{name: ProviderGoogle, scope: "openid email profile", config: config}, nil
	case ProviderKakao:
		applyDefaults(&config, defaultKakaoAuthURL, defaultKakaoTokenURL, defaultKakaoUserInfoURL)
		return &oauthClient{name: ProviderKakao, scope: "account_email profile_nickname profile_image", config: config}, nil
	case ProviderNaver:
		applyDefaults(&config, defaultNaverAuthURL, defaultNaverTokenURL, defaultNaverUserInfoURL)
		return &oauthClient{name: ProviderNaver, scope: "", config: config}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, name)
	}
}

// applyDefaults は未設定のエンドポイントURLにデフォルト値を適用する。
func applyDefaults(config *OAuthConfig, authURL, tokenURL, userInfoURL string) {
	if config.AuthURL == "" {
		config.AuthURL = authURL
	}
	if config.TokenURL == "" {
		config.TokenURL = tokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = userInfoURL
	}
}

// Name はプロバイダー識別子を返す。
func (c *oauthClient) Name() string {
	return c.name
}

// GetLoginURL はプロバイダーの認証画面URLを生成する。
func (c *oauthClient) GetLoginURL(state string) string {
	params := url.Values{
		"client_id":     {c.config.ClientID},
		"redirect_uri":  {c.config.RedirectURL},
		"response_type": {"code"},
		"state":         {state},
	}
	if c.scope != "" {
		params.Set("scope", c.scope)
	}
	return c.config.AuthURL + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
// 3プロバイダーともRFC 6749準拠の形で返す。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをアクセストークンに交換し、ユーザー情報を取得する。
func (c *oauthClient) ExchangeCode(ctx context.Context, code string) (*Identity, error) {
	// 1. 認可コードをアクセストークンに交換
	tokenResp, err := c.exchangeToken(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	// 2. アクセストークンでユーザー属性を取得
	attrs, err := c.fetchUserAttributes(ctx, tokenResp.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}

	// 3. プロバイダー固有の属性形式を共通のIdentityに正規化
	return Normalize(c.name, attrs)
}

// exchangeToken は認可コードをアクセストークンに交換する。
func (c *oauthClient) exchangeToken(ctx context.Context, code string) (*tokenResponse, error) {
	data := url.Values{
		"code":          {code},
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"redirect_uri":  {c.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token exchange failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &tokenResp, nil
}

// fetchUserAttributes はアクセストークンでユーザー情報を取得し、
// 生の属性マップとして返す。
func (c *oauthClient) fetchUserAttributes(ctx context.Context, accessToken string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("user info fetch failed with status %d: %s", resp.StatusCode, string(body))
	}

	var attrs map[string]any
	if err := json.Unmarshal(body, &attrs); err != nil {
		return nil, fmt.Errorf("failed to parse user info response: %w", err)
	}

	return attrs, nil
}

// compile-time interface check
var _ OAuthProvider = (*oauthClient)(nil)
