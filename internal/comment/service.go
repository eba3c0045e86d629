// Package comment は投稿へのコメントのドメインロジックを提供する。
package comment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/repository"
)

// contentMaxLen はコメント本文の最大文字数。
const contentMaxLen = 300

// ContentSanitizer はコメント本文のサニタイズインターフェース。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// Service はコメント管理のサービス層。
type Service struct {
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
	sanitizer   ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	sanitizer ContentSanitizer,
) *Service {
	return &Service{
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
		sanitizer:   sanitizer,
	}
}

// Create は投稿に新しいコメントを作成する。
// 本文はサニタイズされ、存在しない投稿へのコメントはPOST_NOT_FOUNDになる。
func (s *Service) Create(ctx context.Context, userID, postID, content string) (*model.CommentItem, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	sanitized, err := s.prepareContent(content)
	if err != nil {
		return nil, err
	}

	c := &model.Comment{
		ID:        uuid.NewString(),
		UserID:    userID,
		PostID:    postID,
		Content:   sanitized,
		CreatedAt: time.Now(),
	}
	if err := s.commentRepo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	return &model.CommentItem{
		ID:             c.ID,
		PostID:         c.PostID,
		AuthorID:       userID,
		AuthorNickname: user.Nickname,
		Content:        c.Content,
		CreatedAt:      c.CreatedAt,
	}, nil
}

// ListByPost は指定投稿のコメントを作成日時昇順で取得する。
// コメントがない場合は空スライスを返す。
func (s *Service) ListByPost(ctx context.Context, postID string) ([]model.CommentItem, error) {
	items, err := s.commentRepo.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// Update はコメントの本文を更新する。
// 所有者以外による更新はNOT_COMMENT_OWNERエラーになる。
func (s *Service) Update(ctx context.Context, userID, commentID, content string) (*model.CommentItem, error) {
	c, err := s.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, model.NewNotCommentOwnerError()
	}

	sanitized, err := s.prepareContent(content)
	if err != nil {
		return nil, err
	}

	if err := s.commentRepo.UpdateContent(ctx, commentID, sanitized); err != nil {
		return nil, fmt.Errorf("コメントの更新に失敗しました: %w", err)
	}

	user, err := s.userRepo.FindByID(ctx, c.UserID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	nickname := ""
	if user != nil {
		nickname = user.Nickname
	}

	return &model.CommentItem{
		ID:             c.ID,
		PostID:         c.PostID,
		AuthorID:       c.UserID,
		AuthorNickname: nickname,
		Content:        sanitized,
		CreatedAt:      c.CreatedAt,
	}, nil
}

// Delete はコメントをソフトデリートする。
// 所有者以外による削除はNOT_COMMENT_OWNERエラーになる。
func (s *Service) Delete(ctx context.Context, userID, commentID string) error {
	c, err := s.findComment(ctx, commentID)
	if err != nil {
		return err
	}
	if c.UserID != userID {
		return model.NewNotCommentOwnerError()
	}

	if err := s.commentRepo.SoftDelete(ctx, commentID); err != nil {
		return fmt.Errorf("コメントの削除に失敗しました: %w", err)
	}
	return nil
}

// CountByPost は指定投稿の削除されていないコメント数を返す。
func (s *Service) CountByPost(ctx context.Context, postID string) (int64, error) {
	count, err := s.commentRepo.CountByPostID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("コメント数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// findComment はコメントを取得する。見つからない場合はCOMMENT_NOT_FOUNDエラーを返す。
func (s *Service) findComment(ctx context.Context, commentID string) (*model.Comment, error) {
	c, err := s.commentRepo.FindByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("コメントの取得に失敗しました: %w", err)
	}
	if c == nil {
		return nil, model.NewCommentNotFoundError()
	}
	return c, nil
}

// prepareContent は本文をサニタイズし、空・超過を検証する。
func (s *Service) prepareContent(content string) (string, error) {
	sanitized := content
	if s.sanitizer != nil {
		sanitized = s.sanitizer.Sanitize(content)
	} else {
		sanitized = strings.TrimSpace(content)
	}

	if sanitized == "" {
		return "", model.NewInvalidInputError("コメント本文を入力してください")
	}
	if len([]rune(sanitized)) > contentMaxLen {
		return "", model.NewInvalidInputError(fmt.Sprintf("コメントは%d文字以内で入力してください", contentMaxLen))
	}
	return sanitized, nil
}
