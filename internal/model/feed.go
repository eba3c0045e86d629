// Package model はドメインモデルを定義する。
package model

import "time"

// FeedItem はフィードの1項目を表す読み取り専用プロジェクション。
// 所有権は元のPostにあり、ここではデータを複製保存しない。
// IsReshareは自分の投稿（false）かリツイートした投稿（true）かを示す。
type FeedItem struct {
	PostID         string
	AuthorID       string
	AuthorNickname string
	Content        string
	CreatedAt      time.Time
	IsReshare      bool
}
