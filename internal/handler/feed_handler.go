package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
)

// FeedServiceInterface はフィードハンドラーが必要とするサービスインターフェース。
type FeedServiceInterface interface {
	// GetOwnedAndReshared は自分の投稿とリツイートを1本のタイムラインとして返す。
	GetOwnedAndReshared(ctx context.Context, userID string, page, pageSize int) ([]model.FeedItem, error)
}

// FeedMetrics はフィード系メトリクスの記録インターフェース。
type FeedMetrics interface {
	RecordRequestLatency(path string, duration time.Duration)
}

// FeedHandler はフィード取得のHTTPハンドラー。
type FeedHandler struct {
	service FeedServiceInterface
	metrics FeedMetrics
}

// NewFeedHandler はFeedHandlerを生成する。
func NewFeedHandler(service FeedServiceInterface, metrics FeedMetrics) *FeedHandler {
	return &FeedHandler{
		service: service,
		metrics: metrics,
	}
}

// feedItemResponse はフィード1項目のAPIレスポンス。
type feedItemResponse struct {
	PostID         string    `json:"postId"`
	AuthorID       string    `json:"authorId"`
	AuthorNickname string    `json:"authorNickname"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	IsReshare      bool      `json:"isReshare"`
}

// GetFeed は現在のユーザーのフィードをページングで取得する。
// GET /api/feed?page=1&pageSize=10
// page/pageSize未指定時はデフォルト（1ページ目・10件）を適用する。
func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	page, pageSize, ok := pagingParams(w, r)
	if !ok {
		return
	}

	items, err := h.service.GetOwnedAndReshared(r.Context(), userID, page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordRequestLatency("/api/feed", time.Since(start))

	results := make([]feedItemResponse, len(items))
	for i, item := range items {
		results[i] = feedItemResponse{
			PostID:         item.PostID,
			AuthorID:       item.AuthorID,
			AuthorNickname: item.AuthorNickname,
			Content:        item.Content,
			CreatedAt:      item.CreatedAt,
			IsReshare:      item.IsReshare,
		}
	}
	writeJSON(w, http.StatusOK, results)
}
