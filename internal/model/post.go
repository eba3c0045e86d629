// Package model はドメインモデルを定義する。
package model

import "time"

// Post はユーザーの投稿を表す。
// 削除はソフトデリート（Deleted = true）で行い、行自体は監査用に残す。
type Post struct {
	ID        string
	UserID    string
	Content   string // サニタイズ済みHTML
	Hashtags  []string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Retweet はユーザーによる投稿の再共有を表す。
// 本文はコピーせず、元投稿への参照のみを持つ。
// (UserID, OriginalPostID) の組は一意。
type Retweet struct {
	ID             string
	UserID         string
	OriginalPostID string
	CreatedAt      time.Time
}

// PostLike はユーザーによる投稿への「いいね」を表す。
// (UserID, PostID) の組は一意。
type PostLike struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// Comment は投稿へのコメントを表す。
// 投稿と同様にソフトデリート（Deleted = true）で削除する。
type Comment struct {
	ID        string
	UserID    string
	PostID    string
	Content   string
	Deleted   bool
	CreatedAt time.Time
}

// CommentItem はコメント一覧用の読み取りモデル。
// 作成者のニックネームを結合済みで保持する。
type CommentItem struct {
	ID             string
	PostID         string
	AuthorID       string
	AuthorNickname string
	Content        string
	CreatedAt      time.Time
}
