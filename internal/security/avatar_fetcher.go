package security

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// maxAvatarSize はプロフィール画像の最大サイズ（2MB）。
const maxAvatarSize = 2 * 1024 * 1024

// avatarTimeout はプロフィール画像取得のタイムアウト。
const avatarTimeout = 5 * time.Second

// AvatarFetcherService は外部プロバイダのプロフィール画像取得のインターフェース。
// ソーシャルログイン時、プロバイダが返す画像URLからの取得に使用される。
type AvatarFetcherService interface {
	// FetchAvatar は指定URLからプロフィール画像を取得する。
	// 取得失敗時はnilデータと空MIMEを返す（エラーは返さない）。
	// プロフィール画像はあくまで付加情報であり、取得失敗でログインを妨げない。
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// AvatarFetcher はプロフィール画像取得機能の実装。
type AvatarFetcher struct {
	ssrfGuard SSRFGuardService
}

// NewAvatarFetcher はAvatarFetcherの新しいインスタンスを生成する。
func NewAvatarFetcher(ssrfGuard SSRFGuardService) *AvatarFetcher {
	return &AvatarFetcher{
		ssrfGuard: ssrfGuard,
	}
}

// FetchAvatar は指定URLからプロフィール画像を取得する。
// 取得失敗時はnilデータと空MIMEを返す。
func (f *AvatarFetcher) FetchAvatar(ctx context.Context, avatarURL string) ([]byte, string, error) {
	if avatarURL == "" {
		return nil, "", nil
	}

	// SSRF検証
	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(avatarURL); err != nil {
			slog.Warn("プロフィール画像取得: SSRFブロック", "url", avatarURL, "error", err)
			return nil, "", nil
		}
	}

	client := f.getHTTPClient()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, avatarURL, nil)
	if err != nil {
		slog.Warn("プロフィール画像取得: リクエスト作成失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}
	req.Header.Set("User-Agent", "SNS/1.0")

	resp, err := client.Do(req)
	if err != nil {
		slog.Warn("プロフィール画像取得: HTTPリクエスト失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}
	defer resp.Body.Close()

	// 2xx以外は取得失敗として扱う
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("プロフィール画像取得: HTTPステータス異常", "url", avatarURL, "status", resp.StatusCode)
		return nil, "", nil
	}

	// レスポンスボディを読み込み（最大2MB）
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAvatarSize+1))
	if err != nil {
		slog.Warn("プロフィール画像取得: レスポンス読み取り失敗", "url", avatarURL, "error", err)
		return nil, "", nil
	}

	if int64(len(body)) > maxAvatarSize {
		slog.Warn("プロフィール画像取得: サイズ超過", "url", avatarURL, "size", len(body))
		return nil, "", nil
	}

	contentType := resp.Header.Get("Content-Type")
	mimeType := extractMimeType(contentType)

	// 画像でない場合はnilを返す
	if !isImageMime(mimeType) {
		slog.Warn("プロフィール画像取得: 画像以外のContent-Type", "url", avatarURL, "contentType", contentType)
		return nil, "", nil
	}

	return body, mimeType, nil
}

// getHTTPClient はHTTPクライアントを取得する。
func (f *AvatarFetcher) getHTTPClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(avatarTimeout)
	}
	return &http.Client{Timeout: avatarTimeout}
}

// extractMimeType はContent-Typeヘッダーからメディアタイプを抽出する。
func extractMimeType(contentType string) string {
	if contentType == "" {
		return ""
	}
	// セミコロンの前の部分（charset等を除去）
	parts := strings.SplitN(contentType, ";", 2)
	return strings.TrimSpace(strings.ToLower(parts[0]))
}

// isImageMime はMIMEタイプが画像かどうかを判定する。
func isImageMime(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

// compile-time interface check
var _ AvatarFetcherService = (*AvatarFetcher)(nil)
var _ SSRFGuardService = (*ssrfGuard)(nil)
