package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/post"
)

// mockPostService はPostServiceInterfaceのモック実装。
type mockPostService struct {
	createFn       func(ctx context.Context, userID, content string, hashtags []string) (*post.Detail, error)
	getFn          func(ctx context.Context, postID string) (*post.Detail, error)
	listPagedFn    func(ctx context.Context, page, pageSize int) ([]*post.Detail, error)
	listLikedFn    func(ctx context.Context, userID string, page, pageSize int) ([]*post.Detail, error)
	updateFn       func(ctx context.Context, userID, postID, content string, hashtags []string) (*post.Detail, error)
	deleteFn       func(ctx context.Context, userID, postID string) error
	countFn        func(ctx context.Context) (int64, error)
	likeFn         func(ctx context.Context, userID, postID string) (int, error)
	unlikeFn       func(ctx context.Context, userID, postID string) (int, error)
	hasLikedFn     func(ctx context.Context, userID, postID string) (bool, error)
	retweetFn      func(ctx context.Context, userID, postID string) (*model.Retweet, int, error)
	unretweetFn    func(ctx context.Context, userID, postID string) (int, error)
	hasRetweetedFn func(ctx context.Context, userID, postID string) (bool, error)
}

func (m *mockPostService) Create(ctx context.Context, userID, content string, hashtags []string) (*post.Detail, error) {
	return m.createFn(ctx, userID, content, hashtags)
}

func (m *mockPostService) Get(ctx context.Context, postID string) (*post.Detail, error) {
	return m.getFn(ctx, postID)
}

func (m *mockPostService) ListPaged(ctx context.Context, page, pageSize int) ([]*post.Detail, error) {
	return m.listPagedFn(ctx, page, pageSize)
}

func (m *mockPostService) ListLikedPaged(ctx context.Context, userID string, page, pageSize int) ([]*post.Detail, error) {
	return m.listLikedFn(ctx, userID, page, pageSize)
}

func (m *mockPostService) Update(ctx context.Context, userID, postID, content string, hashtags []string) (*post.Detail, error) {
	return m.updateFn(ctx, userID, postID, content, hashtags)
}

func (m *mockPostService) Delete(ctx context.Context, userID, postID string) error {
	return m.deleteFn(ctx, userID, postID)
}

func (m *mockPostService) Count(ctx context.Context) (int64, error) {
	return m.countFn(ctx)
}

func (m *mockPostService) Like(ctx context.Context, userID, postID string) (int, error) {
	return m.likeFn(ctx, userID, postID)
}

func (m *mockPostService) Unlike(ctx context.Context, userID, postID string) (int, error) {
	return m.unlikeFn(ctx, userID, postID)
}

func (m *mockPostService) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	return m.hasLikedFn(ctx, userID, postID)
}

func (m *mockPostService) Retweet(ctx context.Context, userID, postID string) (*model.Retweet, int, error) {
	return m.retweetFn(ctx, userID, postID)
}

func (m *mockPostService) Unretweet(ctx context.Context, userID, postID string) (int, error) {
	return m.unretweetFn(ctx, userID, postID)
}

func (m *mockPostService) HasRetweeted(ctx context.Context, userID, postID string) (bool, error) {
	return m.hasRetweetedFn(ctx, userID, postID)
}

// newPostTestRouter はPostHandlerをchi.Routerにマウントして返す。
func newPostTestRouter(h *PostHandler) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/posts", func(r chi.Router) {
		r.Post("/", h.CreatePost)
		r.Get("/", h.ListPosts)
		r.Get("/count", h.CountPosts)
		r.Get("/liked", h.ListLikedPosts)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetPost)
			r.Put("/", h.UpdatePost)
			r.Delete("/", h.DeletePost)
			r.Post("/like", h.LikePost)
			r.Delete("/like", h.UnlikePost)
			r.Post("/retweet", h.RetweetPost)
			r.Delete("/retweet", h.UnretweetPost)
		})
	})
	return r
}

// testDetail はテスト用の投稿詳細を返す。
func testDetail(id string) *post.Detail {
	return &post.Detail{
		Post: &model.Post{
			ID:        id,
			UserID:    "user-1",
			Content:   "hello world",
			Hashtags:  []string{"go"},
			CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
		LikeCount:    2,
		RetweetCount: 1,
	}
}

// authedJSONRequest は認証済みコンテキストを持つJSONリクエストを生成する。
func authedJSONRequest(method, path, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return req.WithContext(middleware.ContextWithUserID(req.Context(), "user-1"))
}

// TestCreatePost_Success は投稿作成で201が返り、メトリクスが記録されることを検証する。
func TestCreatePost_Success(t *testing.T) {
	service := &mockPostService{
		createFn: func(ctx context.Context, userID, content string, hashtags []string) (*post.Detail, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			return testDetail("post-1"), nil
		},
	}
	metrics := &recordingMetrics{}
	router := newPostTestRouter(NewPostHandler(service, metrics))

	req := authedJSONRequest(http.MethodPost, "/api/posts", `{"content":"hello world","hashtags":["Go"]}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got postResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.ID != "post-1" {
		t.Errorf("id = %q, want %q", got.ID, "post-1")
	}
	if got.LikeCount != 2 || got.RetweetCount != 1 {
		t.Errorf("counts = (%d, %d), want (2, 1)", got.LikeCount, got.RetweetCount)
	}
	if metrics.postsCreated != 1 {
		t.Errorf("postsCreated = %d, want 1", metrics.postsCreated)
	}
}

// TestCreatePost_NoAuth_Returns401 は未認証の投稿作成が401になることを検証する。
func TestCreatePost_NoAuth_Returns401(t *testing.T) {
	router := newPostTestRouter(NewPostHandler(&mockPostService{}, &recordingMetrics{}))

	req := httptest.NewRequest(http.MethodPost, "/api/posts", strings.NewReader(`{"content":"x"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestCreatePost_EmptyContent_Returns400 は本文が空の投稿で400が返ることを検証する。
func TestCreatePost_EmptyContent_Returns400(t *testing.T) {
	service := &mockPostService{
		createFn: func(ctx context.Context, userID, content string, hashtags []string) (*post.Detail, error) {
			return nil, model.NewInvalidInputError("本文が空です")
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodPost, "/api/posts", `{"content":""}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

// TestGetPost_NotFound_Returns404 は存在しない投稿で404が返ることを検証する。
func TestGetPost_NotFound_Returns404(t *testing.T) {
	service := &mockPostService{
		getFn: func(ctx context.Context, postID string) (*post.Detail, error) {
			return nil, model.NewPostNotFoundError(postID)
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodGet, "/api/posts/missing", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}

	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if got["code"] != model.ErrCodePostNotFound {
		t.Errorf("code = %q, want %q", got["code"], model.ErrCodePostNotFound)
	}
}

// TestListPosts_PassesPagingParams はpage/pageSizeクエリがサービスに
// 渡されることを検証する。
func TestListPosts_PassesPagingParams(t *testing.T) {
	var gotPage, gotPageSize int
	service := &mockPostService{
		listPagedFn: func(ctx context.Context, page, pageSize int) ([]*post.Detail, error) {
			gotPage, gotPageSize = page, pageSize
			return []*post.Detail{testDetail("post-1")}, nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodGet, "/api/posts?page=3&pageSize=20", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if gotPage != 3 || gotPageSize != 20 {
		t.Errorf("paging = (%d, %d), want (3, 20)", gotPage, gotPageSize)
	}
}

// TestListPosts_NonIntegerPage_Returns400 は整数でないpageで400が返ることを検証する。
func TestListPosts_NonIntegerPage_Returns400(t *testing.T) {
	router := newPostTestRouter(NewPostHandler(&mockPostService{}, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodGet, "/api/posts?page=abc", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var got map[string]string
	json.NewDecoder(resp.Body).Decode(&got)
	if got["code"] != model.ErrCodeInvalidPagination {
		t.Errorf("code = %q, want %q", got["code"], model.ErrCodeInvalidPagination)
	}
}

// TestListPosts_Empty_ReturnsEmptyArray は結果が空のときJSON配列が
// nullでなく[]になることを検証する。
func TestListPosts_Empty_ReturnsEmptyArray(t *testing.T) {
	service := &mockPostService{
		listPagedFn: func(ctx context.Context, page, pageSize int) ([]*post.Detail, error) {
			return nil, nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodGet, "/api/posts", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	body := strings.TrimSpace(w.Body.String())
	if body != "[]" {
		t.Errorf("body = %q, want %q", body, "[]")
	}
}

// TestUpdatePost_NotOwner_Returns403 は所有者以外の更新で403が返ることを検証する。
func TestUpdatePost_NotOwner_Returns403(t *testing.T) {
	service := &mockPostService{
		updateFn: func(ctx context.Context, userID, postID, content string, hashtags []string) (*post.Detail, error) {
			return nil, model.NewNotPostOwnerError()
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodPut, "/api/posts/post-1", `{"content":"edited"}`)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestDeletePost_Success_Returns204 は投稿削除で204が返ることを検証する。
func TestDeletePost_Success_Returns204(t *testing.T) {
	var deleted string
	service := &mockPostService{
		deleteFn: func(ctx context.Context, userID, postID string) error {
			deleted = postID
			return nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodDelete, "/api/posts/post-9", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if deleted != "post-9" {
		t.Errorf("deleted = %q, want %q", deleted, "post-9")
	}
}

// TestLikePost_ReturnsLatestCount はいいね成功時に最新カウントが返ることを検証する。
func TestLikePost_ReturnsLatestCount(t *testing.T) {
	service := &mockPostService{
		likeFn: func(ctx context.Context, userID, postID string) (int, error) {
			return 5, nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodPost, "/api/posts/post-1/like", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got struct {
		Liked     bool `json:"liked"`
		LikeCount int  `json:"likeCount"`
	}
	json.NewDecoder(resp.Body).Decode(&got)
	if !got.Liked || got.LikeCount != 5 {
		t.Errorf("response = %+v, want liked=true likeCount=5", got)
	}
}

// TestRetweetPost_Duplicate_Returns409 は重複リツイートで409が返ることを検証する。
func TestRetweetPost_Duplicate_Returns409(t *testing.T) {
	service := &mockPostService{
		retweetFn: func(ctx context.Context, userID, postID string) (*model.Retweet, int, error) {
			return nil, 0, model.NewAlreadyRetweetedError()
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodPost, "/api/posts/post-1/retweet", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

// TestRetweetPost_Success_Returns201 はリツイート成功で201とカウントが返ることを検証する。
func TestRetweetPost_Success_Returns201(t *testing.T) {
	service := &mockPostService{
		retweetFn: func(ctx context.Context, userID, postID string) (*model.Retweet, int, error) {
			return &model.Retweet{ID: "rt-1", UserID: userID, OriginalPostID: postID}, 3, nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodPost, "/api/posts/post-1/retweet", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var got struct {
		ID           string `json:"id"`
		Retweeted    bool   `json:"retweeted"`
		RetweetCount int    `json:"retweetCount"`
	}
	json.NewDecoder(resp.Body).Decode(&got)
	if got.ID != "rt-1" || !got.Retweeted || got.RetweetCount != 3 {
		t.Errorf("response = %+v, want id=rt-1 retweeted=true retweetCount=3", got)
	}
}

// TestUnretweetPost_NotRetweeted_Returns404 は未リツイートの取り消しで
// 404が返ることを検証する。
func TestUnretweetPost_NotRetweeted_Returns404(t *testing.T) {
	service := &mockPostService{
		unretweetFn: func(ctx context.Context, userID, postID string) (int, error) {
			return 0, model.NewRetweetNotFoundError()
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodDelete, "/api/posts/post-1/retweet", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNotFound)
	}
}

// TestCountPosts_ReturnsTotal は投稿総数が返ることを検証する。
func TestCountPosts_ReturnsTotal(t *testing.T) {
	service := &mockPostService{
		countFn: func(ctx context.Context) (int64, error) {
			return 42, nil
		},
	}
	router := newPostTestRouter(NewPostHandler(service, &recordingMetrics{}))

	req := authedJSONRequest(http.MethodGet, "/api/posts/count", "")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	var got map[string]int64
	json.NewDecoder(w.Result().Body).Decode(&got)
	if got["count"] != 42 {
		t.Errorf("count = %d, want 42", got["count"])
	}
}
