package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
)

// PostgresLikeRepo はPostgreSQLを使用したいいねリポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// Create はいいねを作成する。
func (r *PostgresLikeRepo) Create(ctx context.Context, like *model.PostLike) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO post_likes (id, user_id, post_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		like.ID, like.UserID, like.PostID, like.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert like: %w", err)
	}
	return nil
}

// FindByUserAndPost はユーザーIDと投稿IDでいいねを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresLikeRepo) FindByUserAndPost(ctx context.Context, userID, postID string) (*model.PostLike, error) {
	like := &model.PostLike{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, post_id, created_at
		 FROM post_likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	).Scan(&like.ID, &like.UserID, &like.PostID, &like.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find like: %w", err)
	}
	return like, nil
}

// Delete はユーザーの指定投稿に対するいいねを削除する。冪等。
func (r *PostgresLikeRepo) Delete(ctx context.Context, userID, postID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM post_likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete like: %w", err)
	}
	return nil
}

// CountByPostID は指定投稿のいいね数を返す。
func (r *PostgresLikeRepo) CountByPostID(ctx context.Context, postID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM post_likes WHERE post_id = $1`,
		postID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count likes: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ LikeRepository = (*PostgresLikeRepo)(nil)
