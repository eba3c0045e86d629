package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
)

// PostgresRetweetRepo はPostgreSQLを使用したリツイートリポジトリ。
type PostgresRetweetRepo struct {
	db *sql.DB
}

// NewPostgresRetweetRepo はPostgresRetweetRepoを生成する。
func NewPostgresRetweetRepo(db *sql.DB) *PostgresRetweetRepo {
	return &PostgresRetweetRepo{db: db}
}

// Create はリツイートを作成する。
func (r *PostgresRetweetRepo) Create(ctx context.Context, retweet *model.Retweet) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO retweets (id, user_id, original_post_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		retweet.ID, retweet.UserID, retweet.OriginalPostID, retweet.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert retweet: %w", err)
	}
	return nil
}

// FindByUserAndPost はユーザーIDと元投稿IDでリツイートを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresRetweetRepo) FindByUserAndPost(ctx context.Context, userID, originalPostID string) (*model.Retweet, error) {
	retweet := &model.Retweet{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, original_post_id, created_at
		 FROM retweets WHERE user_id = $1 AND original_post_id = $2`,
		userID, originalPostID,
	).Scan(&retweet.ID, &retweet.UserID, &retweet.OriginalPostID, &retweet.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find retweet: %w", err)
	}
	return retweet, nil
}

// Delete はユーザーの指定投稿に対するリツイートを削除する。冪等。
func (r *PostgresRetweetRepo) Delete(ctx context.Context, userID, originalPostID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM retweets WHERE user_id = $1 AND original_post_id = $2`,
		userID, originalPostID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete retweet: %w", err)
	}
	return nil
}

// CountByOriginalPostID は指定投稿のリツイート数を返す。
func (r *PostgresRetweetRepo) CountByOriginalPostID(ctx context.Context, originalPostID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM retweets WHERE original_post_id = $1`,
		originalPostID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count retweets: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ RetweetRepository = (*PostgresRetweetRepo)(nil)
