// Package session はリフレッシュトークンのサーバーサイドストアを提供する。
//
// ユーザーごとに現在有効なリフレッシュトークンを1つだけ保持する。
// 新しいログインは前のトークンを上書きし、同一ユーザーの同時セッションは
// 常に1つに制限される（仕様であり不具合ではない）。
package session

import (
	"context"
	"time"
)

// Store はリフレッシュトークンストアのインターフェース。
// Putはキー単位でアトミックであること。ストア障害はエラーとして返し、
// 認証失敗と混同してはならない。
type Store interface {
	// Put はユーザーのリフレッシュトークンを保存する。
	// 既存のレコードは上書きされ、有効期限は now + ttl となる。
	Put(ctx context.Context, userID, refreshToken string, ttl time.Duration) error

	// Get はユーザーの保存済みリフレッシュトークンを返す。
	// レコードが存在しない（または期限切れの）場合は空文字列とnilを返す。
	Get(ctx context.Context, userID string) (string, error)

	// Delete はユーザーのレコードを削除する。冪等であり、
	// レコードが存在しない場合もエラーを返さない。
	Delete(ctx context.Context, userID string) error
}
