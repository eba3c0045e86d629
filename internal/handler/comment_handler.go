package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
)

// CommentServiceInterface はコメントハンドラーが必要とするサービスインターフェース。
type CommentServiceInterface interface {
	Create(ctx context.Context, userID, postID, content string) (*model.CommentItem, error)
	ListByPost(ctx context.Context, postID string) ([]model.CommentItem, error)
	Update(ctx context.Context, userID, commentID, content string) (*model.CommentItem, error)
	Delete(ctx context.Context, userID, commentID string) error
	CountByPost(ctx context.Context, postID string) (int64, error)
}

// CommentMetrics はコメント系メトリクスの記録インターフェース。
type CommentMetrics interface {
	RecordCommentsCreated(count int)
}

// CommentHandler はコメントのHTTPハンドラー。
type CommentHandler struct {
	service CommentServiceInterface
	metrics CommentMetrics
}

// NewCommentHandler はCommentHandlerを生成する。
func NewCommentHandler(service CommentServiceInterface, metrics CommentMetrics) *CommentHandler {
	return &CommentHandler{
		service: service,
		metrics: metrics,
	}
}

// commentRequest はコメントの作成・更新リクエストのボディ。
type commentRequest struct {
	Content string `json:"content"`
}

// commentResponse はコメントのAPIレスポンス。
type commentResponse struct {
	ID             string    `json:"id"`
	PostID         string    `json:"postId"`
	AuthorID       string    `json:"authorId"`
	AuthorNickname string    `json:"authorNickname"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateComment は投稿にコメントを作成する。
// POST /api/posts/{id}/comments
func (h *CommentHandler) CreateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	item, err := h.service.Create(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordCommentsCreated(1)
	writeJSON(w, http.StatusCreated, toCommentResponse(item))
}

// ListComments は投稿のコメント一覧を作成日時昇順で取得する。
// GET /api/posts/{id}/comments
func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListByPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]commentResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toCommentResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, responses)
}

// CountComments は投稿のコメント数を取得する。
// GET /api/posts/{id}/comments/count
func (h *CommentHandler) CountComments(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.CountByPost(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// UpdateComment はコメントの本文を更新する。
// PUT /api/comments/{id}
func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	item, err := h.service.Update(r.Context(), userID, chi.URLParam(r, "id"), req.Content)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toCommentResponse(item))
}

// DeleteComment はコメントを削除する。
// DELETE /api/comments/{id}
func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
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

// toCommentResponse はmodel.CommentItemからAPIレスポンスに変換する。
func toCommentResponse(item *model.CommentItem) commentResponse {
	return commentResponse{
		ID:             item.ID,
		PostID:         item.PostID,
		AuthorID:       item.AuthorID,
		AuthorNickname: item.AuthorNickname,
		Content:        item.Content,
		CreatedAt:      item.CreatedAt,
	}
}
