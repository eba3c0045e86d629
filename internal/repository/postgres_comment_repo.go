package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// FindByID は指定IDのコメントを取得する。
// 見つからない場合・ソフトデリート済みの場合はnilを返す。
func (r *PostgresCommentRepo) FindByID(ctx context.Context, id string) (*model.Comment, error) {
	c := &model.Comment{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, post_id, content, deleted, created_at
		 FROM comments WHERE id = $1 AND deleted = FALSE`,
		id,
	).Scan(&c.ID, &c.UserID, &c.PostID, &c.Content, &c.Deleted, &c.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find comment: %w", err)
	}
	return c, nil
}

// Create はコメントを作成する。
func (r *PostgresCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO comments (id, user_id, post_id, content, deleted, created_at)
		 VALUES ($1, $2, $3, $4, FALSE, $5)`,
		comment.ID, comment.UserID, comment.PostID, comment.Content, comment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert comment: %w", err)
	}
	return nil
}

// UpdateContent はコメントの本文を更新する。
func (r *PostgresCommentRepo) UpdateContent(ctx context.Context, id, content string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE comments SET content = $1 WHERE id = $2 AND deleted = FALSE`,
		content, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("comment not found: %s", id)
	}
	return nil
}

// SoftDelete はコメントをソフトデリートする。
func (r *PostgresCommentRepo) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE comments SET deleted = TRUE WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft delete comment: %w", err)
	}
	return nil
}

// ListByPostID は指定投稿の削除されていないコメントを
// 作成者ニックネーム付きでcreated_at昇順に取得する。
func (r *PostgresCommentRepo) ListByPostID(ctx context.Context, postID string) ([]model.CommentItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.post_id, c.user_id, u.nickname, c.content, c.created_at
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.post_id = $1 AND c.deleted = FALSE
		 ORDER BY c.created_at ASC, c.id ASC`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var items []model.CommentItem
	for rows.Next() {
		var item model.CommentItem
		if err := rows.Scan(&item.ID, &item.PostID, &item.AuthorID,
			&item.AuthorNickname, &item.Content, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return items, nil
}

// CountByPostID は指定投稿の削除されていないコメント数を返す。
func (r *PostgresCommentRepo) CountByPostID(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE post_id = $1 AND deleted = FALSE`,
		postID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count comments: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ CommentRepository = (*PostgresCommentRepo)(nil)
