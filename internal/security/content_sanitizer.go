// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ContentSanitizerService は投稿本文をサニタイズし、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグのみを通過させる。
package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は投稿本文のサニタイズ機能のインターフェースを定義する。
// 投稿の作成・更新時、保存前に使用される。
type ContentSanitizerService interface {
	// Sanitize は投稿本文をサニタイズして安全なテキストを返す。
	// 最小限の装飾タグ（br, strong, em, code, a）のみを通過させ、
	// script, iframe, img, styleタグおよびon*イベント属性を除去する。
	// aタグのhref属性はhttpsスキームのみ許可される。
	// 前後の空白は除去される。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: br, strong, em, code, a
//   - 禁止タグ: script, iframe, img, style および全てのon*イベント属性
//   - aタグのhref属性: httpsスキームのみ許可、rel="noopener noreferrer"を強制付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	// 投稿本文はほぼプレーンテキスト。装飾は最小限のタグに限定し、
	// 許可リストに含めないタグは自動的に除去される。
	// on*イベント属性はbluemondayのデフォルトで許可されないため除去される。
	p.AllowElements("br", "strong", "em", "code")

	// リンクはhttpsのみ。相対URLは投稿本文には不適切なため不許可。
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		policy: p,
	}
}

// Sanitize は投稿本文をサニタイズして安全なテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
