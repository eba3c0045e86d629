// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/thejoa703/sns/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	// 退会済み（deleted = true）のユーザーも返さない。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmailAndProvider は(email, provider)でユーザーを検索する。
	// 見つからない場合はnilを返す。
	FindByEmailAndProvider(ctx context.Context, email, provider string) (*model.User, error)

	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// UpdateNickname はユーザーのニックネームを更新する。
	UpdateNickname(ctx context.Context, id, nickname string) error

	// UpdateProfileImage はユーザーのプロフィール画像パスを更新する。
	UpdateProfileImage(ctx context.Context, id, imagePath string) error

	// CountByEmail は指定メールアドレスのユーザー数を返す。
	CountByEmail(ctx context.Context, email string) (int, error)

	// CountByNickname は指定ニックネームのユーザー数を返す。
	CountByNickname(ctx context.Context, nickname string) (int, error)

	// Count は全ユーザー数を返す。
	Count(ctx context.Context) (int64, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 所有するposts、retweets、post_likes、commentsはFKのCASCADEで
	// 同一トランザクション内に削除される。
	DeleteByID(ctx context.Context, id string) error
}

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDの投稿をハッシュタグ付きで取得する。
	// 見つからない場合・ソフトデリート済みの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// Create は投稿とハッシュタグを同一トランザクションで作成する。
	Create(ctx context.Context, post *model.Post) error

	// Update は投稿の本文とハッシュタグを更新する。
	Update(ctx context.Context, post *model.Post) error

	// SoftDelete は投稿をソフトデリートする。行は監査用に残る。
	SoftDelete(ctx context.Context, id string) error

	// ListPaged は削除されていない投稿をcreated_at降順（同時刻はid降順）で
	// ページング取得する。
	ListPaged(ctx context.Context, limit, offset int) ([]*model.Post, error)

	// ListLikedPaged は指定ユーザーがいいねした投稿をページング取得する。
	ListLikedPaged(ctx context.Context, userID string, limit, offset int) ([]*model.Post, error)

	// ListOwnedAndRetweeted は指定ユーザーの投稿と、そのユーザーが
	// リツイートした投稿をマージしてページング取得する。
	// マージ後の集合全体をcreated_at降順（同時刻はid降順）に整列してから
	// スライスする。ソース別に個別ページングして連結してはならない。
	ListOwnedAndRetweeted(ctx context.Context, userID string, limit, offset int) ([]model.FeedItem, error)

	// Count は削除されていない投稿の総数を返す。
	Count(ctx context.Context) (int64, error)
}

// RetweetRepository はリツイートデータの永続化インターフェース。
type RetweetRepository interface {
	// Create はリツイートを作成する。(user_id, original_post_id)の
	// 一意制約違反はエラーとして返る。
	Create(ctx context.Context, retweet *model.Retweet) error

	// FindByUserAndPost はユーザーIDと元投稿IDでリツイートを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndPost(ctx context.Context, userID, originalPostID string) (*model.Retweet, error)

	// Delete はユーザーの指定投稿に対するリツイートを削除する。冪等。
	Delete(ctx context.Context, userID, originalPostID string) error

	// CountByOriginalPostID は指定投稿のリツイート数を返す。
	CountByOriginalPostID(ctx context.Context, originalPostID string) (int, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// FindByID は指定IDのコメントを取得する。
	// 見つからない場合・ソフトデリート済みの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Comment, error)

	// Create はコメントを作成する。
	Create(ctx context.Context, comment *model.Comment) error

	// UpdateContent はコメントの本文を更新する。
	UpdateContent(ctx context.Context, id, content string) error

	// SoftDelete はコメントをソフトデリートする。行は監査用に残る。
	SoftDelete(ctx context.Context, id string) error

	// ListByPostID は指定投稿の削除されていないコメントを
	// 作成者ニックネーム付きでcreated_at昇順に取得する。
	ListByPostID(ctx context.Context, postID string) ([]model.CommentItem, error)

	// CountByPostID は指定投稿の削除されていないコメント数を返す。
	CountByPostID(ctx context.Context, postID string) (int64, error)
}

// LikeRepository はいいねデータの永続化インターフェース。
type LikeRepository interface {
	// Create はいいねを作成する。(user_id, post_id)の一意制約違反は
	// エラーとして返る。
	Create(ctx context.Context, like *model.PostLike) error

	// FindByUserAndPost はユーザーIDと投稿IDでいいねを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndPost(ctx context.Context, userID, postID string) (*model.PostLike, error)

	// Delete はユーザーの指定投稿に対するいいねを削除する。冪等。
	Delete(ctx context.Context, userID, postID string) error

	// CountByPostID は指定投稿のいいね数を返す。
	CountByPostID(ctx context.Context, postID string) (int, error)
}
