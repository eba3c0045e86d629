package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	Create(ctx context.Context, userID, content string, hashtags []string) (*post.Detail, error)
	Get(ctx context.Context, postID string) (*post.Detail, error)
	ListPaged(ctx context.Context, page, pageSize int) ([]*post.Detail, error)
	ListLikedPaged(ctx context.Context, userID string, page, pageSize int) ([]*post.Detail, error)
	Update(ctx context.Context, userID, postID, content string, hashtags []string) (*post.Detail, error)
	Delete(ctx context.Context, userID, postID string) error
	Count(ctx context.Context) (int64, error)
	Like(ctx context.Context, userID, postID string) (int, error)
	Unlike(ctx context.Context, userID, postID string) (int, error)
	HasLiked(ctx context.Context, userID, postID string) (bool, error)
	Retweet(ctx context.Context, userID, postID string) (*model.Retweet, int, error)
	Unretweet(ctx context.Context, userID, postID string) (int, error)
	HasRetweeted(ctx context.Context, userID, postID string) (bool, error)
}

// PostMetrics は投稿系メトリクスの記録インターフェース。
type PostMetrics interface {
	RecordPostsCreated(count int)
}

// PostHandler は投稿・いいね・リツイートのHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
	metrics PostMetrics
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface, metrics PostMetrics) *PostHandler {
	return &PostHandler{
		service: service,
		metrics: metrics,
	}
}

// postRequest は投稿の作成・更新リクエストのボディ。
type postRequest struct {
	Content  string   `json:"content"`
	Hashtags []string `json:"hashtags"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Content      string    `json:"content"`
	Hashtags     []string  `json:"hashtags"`
	LikeCount    int       `json:"likeCount"`
	RetweetCount int       `json:"retweetCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// CreatePost は投稿を作成する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	detail, err := h.service.Create(r.Context(), userID, req.Content, req.Hashtags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordPostsCreated(1)
	writeJSON(w, http.StatusCreated, toPostResponse(detail))
}

// GetPost は投稿詳細を取得する。
// GET /api/posts/{id}
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(detail))
}

// ListPosts は投稿の一覧をページングで取得する。
// GET /api/posts?page=1&pageSize=10
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagingParams(w, r)
	if !ok {
		return
	}

	details, err := h.service.ListPaged(r.Context(), page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponses(details))
}

// ListLikedPosts は現在のユーザーがいいねした投稿の一覧を取得する。
// GET /api/posts/liked?page=1&pageSize=10
func (h *PostHandler) ListLikedPosts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	page, pageSize, ok := pagingParams(w, r)
	if !ok {
		return
	}

	details, err := h.service.ListLikedPaged(r.Context(), userID, page, pageSize)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponses(details))
}

// CountPosts は投稿の総数を返す。
// GET /api/posts/count
func (h *PostHandler) CountPosts(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// UpdatePost は自分の投稿を更新する。
// PUT /api/posts/{id}
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	detail, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Content, req.Hashtags)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toPostResponse(detail))
}

// DeletePost は自分の投稿を削除する。
// DELETE /api/posts/{id}
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// LikePost は投稿にいいねを付ける。冪等で、常に最新のいいね数を返す。
// POST /api/posts/{id}/like
func (h *PostHandler) LikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	count, err := h.service.Like(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"liked": true, "likeCount": count})
}

// UnlikePost は投稿のいいねを取り消す。冪等。
// DELETE /api/posts/{id}/like
func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	count, err := h.service.Unlike(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"liked": false, "likeCount": count})
}

// GetLikeStatus は現在のユーザーが投稿にいいね済みかを返す。
// GET /api/posts/{id}/like
func (h *PostHandler) GetLikeStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	liked, err := h.service.HasLiked(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
}

// RetweetPost は投稿をリツイートする。重複リツイートは409を返す。
// POST /api/posts/{id}/retweet
func (h *PostHandler) RetweetPost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	rt, count, err := h.service.Retweet(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           rt.ID,
		"retweeted":    true,
		"retweetCount": count,
	})
}

// UnretweetPost はリツイートを取り消す。未リツイートの場合は404を返す。
// DELETE /api/posts/{id}/retweet
func (h *PostHandler) UnretweetPost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	count, err := h.service.Unretweet(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"retweeted": false, "retweetCount": count})
}

// GetRetweetStatus は現在のユーザーが投稿をリツイート済みかを返す。
// GET /api/posts/{id}/retweet
func (h *PostHandler) GetRetweetStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	retweeted, err := h.service.HasRetweeted(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"retweeted": retweeted})
}

// --- ヘルパー関数 ---

// pagingParams はクエリからpage/pageSizeを取り出す。
// パラメータ未指定は0として扱い、デフォルト適用はサービス層に委ねる。
// 整数として解析できない値は400を返す。
func pagingParams(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	page, ok = intQueryParam(w, r, "page")
	if !ok {
		return 0, 0, false
	}
	pageSize, ok = intQueryParam(w, r, "pageSize")
	if !ok {
		return 0, 0, false
	}
	return page, pageSize, true
}

// intQueryParam は整数クエリパラメータを解析する。未指定は0を返す。
func intQueryParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidPaginationError(name+"は整数で指定してください"))
		return 0, false
	}
	return v, true
}

// toPostResponse はpost.DetailからAPIレスポンスに変換する。
func toPostResponse(d *post.Detail) postResponse {
	hashtags := d.Post.Hashtags
	if hashtags == nil {
		hashtags = []string{}
	}
	return postResponse{
		ID:           d.Post.ID,
		UserID:       d.Post.UserID,
		Content:      d.Post.Content,
		Hashtags:     hashtags,
		LikeCount:    d.LikeCount,
		RetweetCount: d.RetweetCount,
		CreatedAt:    d.Post.CreatedAt,
		UpdatedAt:    d.Post.UpdatedAt,
	}
}

// toPostResponses は空スライスをnilでなく[]として返す。
func toPostResponses(details []*post.Detail) []postResponse {
	results := make([]postResponse, len(details))
	for i, d := range details {
		results[i] = toPostResponse(d)
	}
	return results
}
