// Package feed はユーザーの投稿とリツイートを統合したフィードを提供する。
//
// フィードは「本人の投稿」と「本人がリツイートした投稿」の2つのソースを
// マージした単一のタイムラインであり、元投稿の作成時刻の降順で全順序を持つ。
// ページングはマージ後の集合に対して行われ、ソース別に別々に
// ページングして連結することはない。
package feed

import (
	"context"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/repository"
)

// ページングのデフォルト値。パラメータ省略時に適用される。
const (
	DefaultPage     = 1
	DefaultPageSize = 10
	maxPageSize     = 100
)

// Service はフィード取得のサービス層。
type Service struct {
	postRepo repository.PostRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(postRepo repository.PostRepository) *Service {
	return &Service{postRepo: postRepo}
}

// GetOwnedAndReshared は指定ユーザーの投稿とリツイートを統合した
// フィードの1ページを返す。
//
// pageまたはpageSizeに0を渡すとデフォルト値（1, 10）が適用される。
// 負の値は無効としてINVALID_PAGINATIONエラーになる。
// 範囲外のページは空スライスを返す。存在しないユーザーも空スライスになる。
//
// 並び順は元投稿のcreated_at降順で、リツイートの時刻は順序に影響しない。
// 同時刻の投稿はidの降順で順序が安定する。
func (s *Service) GetOwnedAndReshared(ctx context.Context, userID string, page, pageSize int) ([]model.FeedItem, error) {
	page, pageSize, err := normalizePaging(page, pageSize)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize
	items, err := s.postRepo.ListOwnedAndRetweeted(ctx, userID, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	if items == nil {
		items = []model.FeedItem{}
	}
	return items, nil
}

// normalizePaging はページングパラメータを検証し、デフォルト値を適用する。
func normalizePaging(page, pageSize int) (int, int, error) {
	if page < 0 {
		return 0, 0, model.NewInvalidPaginationError(fmt.Sprintf("page = %d", page))
	}
	if pageSize < 0 {
		return 0, 0, model.NewInvalidPaginationError(fmt.Sprintf("pageSize = %d", pageSize))
	}
	if page == 0 {
		page = DefaultPage
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		return 0, 0, model.NewInvalidPaginationError(fmt.Sprintf("pageSizeの上限は%dです: %d", maxPageSize, pageSize))
	}
	return page, pageSize, nil
}
