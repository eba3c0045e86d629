// Package post は投稿・リツイート・いいねのドメインロジックを提供する。
package post

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/repository"
)

// contentMaxLen は投稿本文の最大文字数。
const contentMaxLen = 500

// ContentSanitizer は投稿本文のサニタイズインターフェース。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// Detail は投稿と付随するカウントをまとめた読み取りモデル。
type Detail struct {
	Post         *model.Post
	LikeCount    int
	RetweetCount int
}

// Service は投稿管理のサービス層。
type Service struct {
	postRepo    repository.PostRepository
	retweetRepo repository.RetweetRepository
	likeRepo    repository.LikeRepository
	sanitizer   ContentSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	postRepo repository.PostRepository,
	retweetRepo repository.RetweetRepository,
	likeRepo repository.LikeRepository,
	sanitizer ContentSanitizer,
) *Service {
	return &Service{
		postRepo:    postRepo,
		retweetRepo: retweetRepo,
		likeRepo:    likeRepo,
		sanitizer:   sanitizer,
	}
}

// Create は新しい投稿を作成する。
// 本文はサニタイズされ、ハッシュタグは正規化・重複排除して保存される。
func (s *Service) Create(ctx context.Context, userID, content string, hashtags []string) (*Detail, error) {
	sanitized, err := s.prepareContent(content)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newPost := &model.Post{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   sanitized,
		Hashtags:  normalizeHashtags(hashtags),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.postRepo.Create(ctx, newPost); err != nil {
		return nil, fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}

	return &Detail{Post: newPost}, nil
}

// Get は投稿をいいね数・リツイート数付きで取得する。
func (s *Service) Get(ctx context.Context, postID string) (*Detail, error) {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.attachCounts(ctx, p)
}

// ListPaged は投稿の一覧をページング取得する。
func (s *Service) ListPaged(ctx context.Context, page, pageSize int) ([]*Detail, error) {
	limit, offset, err := pagingBounds(page, pageSize)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListPaged(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return s.attachCountsAll(ctx, posts)
}

// ListLikedPaged は指定ユーザーがいいねした投稿をページング取得する。
func (s *Service) ListLikedPaged(ctx context.Context, userID string, page, pageSize int) ([]*Detail, error) {
	limit, offset, err := pagingBounds(page, pageSize)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.ListLikedPaged(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("いいね一覧の取得に失敗しました: %w", err)
	}
	return s.attachCountsAll(ctx, posts)
}

// Update は投稿の本文とハッシュタグを更新する。
// 所有者以外による更新はNOT_POST_OWNERエラーになる。
func (s *Service) Update(ctx context.Context, userID, postID, content string, hashtags []string) (*Detail, error) {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, model.NewNotPostOwnerError()
	}

	sanitized, err := s.prepareContent(content)
	if err != nil {
		return nil, err
	}

	p.Content = sanitized
	p.Hashtags = normalizeHashtags(hashtags)
	p.UpdatedAt = time.Now()

	if err := s.postRepo.Update(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return s.attachCounts(ctx, p)
}

// Delete は投稿をソフトデリートする。
// 行は残るが、一覧・フィード・取得には現れなくなる。
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	p, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.UserID != userID {
		return model.NewNotPostOwnerError()
	}

	if err := s.postRepo.SoftDelete(ctx, postID); err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return nil
}

// Count は削除されていない投稿の総数を返す。
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.postRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("投稿数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Like は投稿にいいねを付け、最新のいいね数を返す。
// 既にいいね済みの場合はエラーにせず現在の数を返す（冪等）。
func (s *Service) Like(ctx context.Context, userID, postID string) (int, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return 0, err
	}

	existing, err := s.likeRepo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		return 0, fmt.Errorf("いいねの確認に失敗しました: %w", err)
	}
	if existing == nil {
		like := &model.PostLike{
			ID:        uuid.NewString(),
			UserID:    userID,
			PostID:    postID,
			CreatedAt: time.Now(),
		}
		if err := s.likeRepo.Create(ctx, like); err != nil {
			return 0, fmt.Errorf("いいねの作成に失敗しました: %w", err)
		}
	}

	return s.likeCount(ctx, postID)
}

// Unlike は投稿のいいねを取り消し、最新のいいね数を返す。
// いいねしていない場合もエラーにしない（冪等）。
func (s *Service) Unlike(ctx context.Context, userID, postID string) (int, error) {
	if err := s.likeRepo.Delete(ctx, userID, postID); err != nil {
		return 0, fmt.Errorf("いいねの取り消しに失敗しました: %w", err)
	}
	return s.likeCount(ctx, postID)
}

// HasLiked は指定ユーザーが投稿にいいね済みかを返す。
func (s *Service) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	existing, err := s.likeRepo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("いいねの確認に失敗しました: %w", err)
	}
	return existing != nil, nil
}

// Retweet は投稿をリツイートし、作成されたリツイートと最新のリツイート数を返す。
// 既にリツイート済みの場合はALREADY_RETWEETEDエラーになる。
// 自分の投稿のリツイートは許可される。
func (s *Service) Retweet(ctx context.Context, userID, postID string) (*model.Retweet, int, error) {
	if _, err := s.findPost(ctx, postID); err != nil {
		return nil, 0, err
	}

	existing, err := s.retweetRepo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		return nil, 0, fmt.Errorf("リツイートの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, 0, model.NewAlreadyRetweetedError()
	}

	rt := &model.Retweet{
		ID:             uuid.NewString(),
		UserID:         userID,
		OriginalPostID: postID,
		CreatedAt:      time.Now(),
	}
	if err := s.retweetRepo.Create(ctx, rt); err != nil {
		return nil, 0, fmt.Errorf("リツイートの作成に失敗しました: %w", err)
	}

	count, err := s.retweetCount(ctx, postID)
	if err != nil {
		return nil, 0, err
	}
	return rt, count, nil
}

// Unretweet はリツイートを取り消し、最新のリツイート数を返す。
// リツイートしていない場合はRETWEET_NOT_FOUNDエラーになる。
func (s *Service) Unretweet(ctx context.Context, userID, postID string) (int, error) {
	existing, err := s.retweetRepo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		return 0, fmt.Errorf("リツイートの確認に失敗しました: %w", err)
	}
	if existing == nil {
		return 0, model.NewRetweetNotFoundError()
	}

	if err := s.retweetRepo.Delete(ctx, userID, postID); err != nil {
		return 0, fmt.Errorf("リツイートの取り消しに失敗しました: %w", err)
	}
	return s.retweetCount(ctx, postID)
}

// HasRetweeted は指定ユーザーが投稿をリツイート済みかを返す。
func (s *Service) HasRetweeted(ctx context.Context, userID, postID string) (bool, error) {
	existing, err := s.retweetRepo.FindByUserAndPost(ctx, userID, postID)
	if err != nil {
		return false, fmt.Errorf("リツイートの確認に失敗しました: %w", err)
	}
	return existing != nil, nil
}

// --- 内部ヘルパー ---

// findPost は投稿を取得する。見つからない場合はPOST_NOT_FOUNDエラーを返す。
func (s *Service) findPost(ctx context.Context, postID string) (*model.Post, error) {
	p, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	return p, nil
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
		return "", model.NewInvalidInputError("本文を入力してください")
	}
	if len([]rune(sanitized)) > contentMaxLen {
		return "", model.NewInvalidInputError(fmt.Sprintf("本文は%d文字以内で入力してください", contentMaxLen))
	}
	return sanitized, nil
}

func (s *Service) likeCount(ctx context.Context, postID string) (int, error) {
	count, err := s.likeRepo.CountByPostID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("いいね数の取得に失敗しました: %w", err)
	}
	return count, nil
}

func (s *Service) retweetCount(ctx context.Context, postID string) (int, error) {
	count, err := s.retweetRepo.CountByOriginalPostID(ctx, postID)
	if err != nil {
		return 0, fmt.Errorf("リツイート数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// attachCounts は投稿にいいね数・リツイート数を付与する。
func (s *Service) attachCounts(ctx context.Context, p *model.Post) (*Detail, error) {
	likes, err := s.likeCount(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	retweets, err := s.retweetCount(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Post: p, LikeCount: likes, RetweetCount: retweets}, nil
}

func (s *Service) attachCountsAll(ctx context.Context, posts []*model.Post) ([]*Detail, error) {
	details := make([]*Detail, 0, len(posts))
	for _, p := range posts {
		d, err := s.attachCounts(ctx, p)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, nil
}

// pagingBounds はページングパラメータを検証してLIMIT/OFFSETに変換する。
// pageとpageSizeは1以上でなければならない。
func pagingBounds(page, pageSize int) (limit, offset int, err error) {
	if page < 1 {
		return 0, 0, model.NewInvalidPaginationError(fmt.Sprintf("page = %d", page))
	}
	if pageSize < 1 {
		return 0, 0, model.NewInvalidPaginationError(fmt.Sprintf("pageSize = %d", pageSize))
	}
	return pageSize, (page - 1) * pageSize, nil
}

// normalizeHashtags はハッシュタグを正規化する。
// 前後空白と先頭の#を除去して小文字化し、空要素と重複を除く。
// 順序は入力順を保つ。
func normalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		normalized = append(normalized, t)
	}
	return normalized
}
