package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// FindByID は指定IDの投稿をハッシュタグ付きで取得する。
// 見つからない場合・ソフトデリート済みの場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	post := &model.Post{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, deleted, created_at, updated_at
		 FROM posts WHERE id = $1 AND deleted = FALSE`,
		id,
	).Scan(&post.ID, &post.UserID, &post.Content, &post.Deleted, &post.CreatedAt, &post.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	hashtags, err := r.listHashtags(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	post.Hashtags = hashtags

	return post, nil
}

// listHashtags は投稿のハッシュタグ一覧を取得する。
func (r *PostgresPostRepo) listHashtags(ctx context.Context, postID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM post_hashtags WHERE post_id = $1 ORDER BY name`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list hashtags: %w", err)
	}
	defer rows.Close()

	var hashtags []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan hashtag: %w", err)
		}
		hashtags = append(hashtags, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hashtags: %w", err)
	}
	return hashtags, nil
}

// Create は投稿とハッシュタグを同一トランザクションで作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO posts (id, user_id, content, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, FALSE, $4, $5)`,
		post.ID, post.UserID, post.Content, post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	for _, tag := range post.Hashtags {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO post_hashtags (post_id, name) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			post.ID, tag,
		)
		if err != nil {
			return fmt.Errorf("failed to insert hashtag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Update は投稿の本文とハッシュタグを更新する。
// ハッシュタグは全削除してから再挿入する。
func (r *PostgresPostRepo) Update(ctx context.Context, post *model.Post) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE posts SET content = $2, updated_at = now()
		 WHERE id = $1 AND deleted = FALSE`,
		post.ID, post.Content,
	)
	if err != nil {
		return fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", post.ID)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM post_hashtags WHERE post_id = $1`, post.ID,
	); err != nil {
		return fmt.Errorf("failed to clear hashtags: %w", err)
	}
	for _, tag := range post.Hashtags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO post_hashtags (post_id, name) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			post.ID, tag,
		); err != nil {
			return fmt.Errorf("failed to insert hashtag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// SoftDelete は投稿をソフトデリートする。
func (r *PostgresPostRepo) SoftDelete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET deleted = TRUE, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to soft-delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("post not found: %s", id)
	}
	return nil
}

// scanPosts は複数行をmodel.Postのスライスに読み込む。
func scanPosts(rows *sql.Rows) ([]*model.Post, error) {
	defer rows.Close()

	posts := []*model.Post{}
	for rows.Next() {
		post := &model.Post{}
		if err := rows.Scan(&post.ID, &post.UserID, &post.Content,
			&post.Deleted, &post.CreatedAt, &post.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}
	return posts, nil
}

// ListPaged は削除されていない投稿をcreated_at降順でページング取得する。
// 同時刻の投稿はid降順で順序を固定する。
func (r *PostgresPostRepo) ListPaged(ctx context.Context, limit, offset int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, content, deleted, created_at, updated_at
		 FROM posts
		 WHERE deleted = FALSE
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return scanPosts(rows)
}

// ListLikedPaged は指定ユーザーがいいねした投稿をページング取得する。
func (r *PostgresPostRepo) ListLikedPaged(ctx context.Context, userID string, limit, offset int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.user_id, p.content, p.deleted, p.created_at, p.updated_at
		 FROM posts p
		 WHERE p.deleted = FALSE
		   AND p.id IN (SELECT pl.post_id FROM post_likes pl WHERE pl.user_id = $1)
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list liked posts: %w", err)
	}
	return scanPosts(rows)
}

// ListOwnedAndRetweeted は指定ユーザーの投稿とリツイートした投稿を
// マージしてページング取得する。
//
// UNION ALLで両ソースを結合した集合全体に対してORDER BYとLIMIT/OFFSETを
// 適用する。ソース別に個別ページングして連結すると、ページ境界をまたぐ
// 順序が壊れるため行わない。自分の投稿を自分でリツイートした場合は
// 両方の行が返る（重複排除しない）。
func (r *PostgresPostRepo) ListOwnedAndRetweeted(ctx context.Context, userID string, limit, offset int) ([]model.FeedItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT * FROM (
		     SELECT p.id, p.user_id, u.nickname, p.content, p.created_at, FALSE AS is_reshare
		     FROM posts p
		     JOIN users u ON u.id = p.user_id
		     WHERE p.user_id = $1 AND p.deleted = FALSE
		     UNION ALL
		     SELECT p.id, p.user_id, u.nickname, p.content, p.created_at, TRUE AS is_reshare
		     FROM posts p
		     JOIN users u ON u.id = p.user_id
		     WHERE p.deleted = FALSE
		       AND p.id IN (SELECT rt.original_post_id FROM retweets rt WHERE rt.user_id = $1)
		 ) merged
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed items: %w", err)
	}
	defer rows.Close()

	items := []model.FeedItem{}
	for rows.Next() {
		var item model.FeedItem
		if err := rows.Scan(&item.PostID, &item.AuthorID, &item.AuthorNickname,
			&item.Content, &item.CreatedAt, &item.IsReshare); err != nil {
			return nil, fmt.Errorf("failed to scan feed item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feed items: %w", err)
	}
	return items, nil
}

// Count は削除されていない投稿の総数を返す。
func (r *PostgresPostRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM posts WHERE deleted = FALSE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
