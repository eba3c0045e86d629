package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/thejoa703/sns/internal/middleware"
	"github.com/thejoa703/sns/internal/model"
)

// maxProfileImageSize はプロフィール画像アップロードの上限サイズ。
const maxProfileImageSize = 5 << 20 // 5MB

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	UpdateNickname(ctx context.Context, userID, nickname string) error
	UpdateProfileImage(ctx context.Context, userID, originalName string, data []byte) (string, error)
	CheckEmailAvailable(ctx context.Context, email string) (bool, error)
	CheckNicknameAvailable(ctx context.Context, nickname string) (bool, error)
	Count(ctx context.Context) (int64, error)
	// Withdraw はユーザーの退会処理を実行する。
	// 投稿・いいね・リツイートはDBのカスケードで一括削除され、
	// セッションも失効する。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はプロフィール管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	metrics AuthMetrics
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, metrics AuthMetrics, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{
		service: service,
		metrics: metrics,
		config:  config,
	}
}

// updateNicknameRequest はニックネーム変更リクエストのボディ。
type updateNicknameRequest struct {
	Nickname string `json:"nickname"`
}

// UpdateNickname はニックネームを変更する。
// PUT /api/users/me/nickname
func (h *UserHandler) UpdateNickname(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	var req updateNicknameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if err := h.service.UpdateNickname(r.Context(), userID, req.Nickname); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"nickname": req.Nickname})
}

// UpdateProfileImage はプロフィール画像を差し替える。
// PUT /api/users/me/profile-image（multipart/form-data、フィールド名 "image"）
func (h *UserHandler) UpdateProfileImage(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := r.ParseMultipartForm(maxProfileImageSize); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidInputError("multipart形式のリクエストが必要です"))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		middleware.WriteAPIError(w, model.NewInvalidInputError("imageフィールドが必要です"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxProfileImageSize+1))
	if err != nil {
		middleware.WriteInternalServerError(w)
		return
	}
	if len(data) > maxProfileImageSize {
		middleware.WriteAPIError(w, model.NewInvalidInputError("画像サイズが上限を超えています"))
		return
	}

	storedPath, err := h.service.UpdateProfileImage(r.Context(), userID, header.Filename, data)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"profileImage": storedPath})
}

// CheckEmail はメールアドレスの利用可否を返す。
// GET /api/users/check-email?email=xxx
func (h *UserHandler) CheckEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		middleware.WriteAPIError(w, model.NewInvalidInputError("emailパラメータが必要です"))
		return
	}

	available, err := h.service.CheckEmailAvailable(r.Context(), email)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// CheckNickname はニックネームの利用可否を返す。
// GET /api/users/check-nickname?nickname=xxx
func (h *UserHandler) CheckNickname(w http.ResponseWriter, r *http.Request) {
	nickname := r.URL.Query().Get("nickname")
	if nickname == "" {
		middleware.WriteAPIError(w, model.NewInvalidInputError("nicknameパラメータが必要です"))
		return
	}

	available, err := h.service.CheckNicknameAvailable(r.Context(), nickname)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// CountUsers は登録ユーザーの総数を返す。
// GET /api/users/count
func (h *UserHandler) CountUsers(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.Count(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Withdraw はユーザーの退会処理を実行する。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthenticatedError())
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	h.metrics.RecordSessionRevoked()

	// 退会後はリフレッシュCookieもクリアする
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	w.WriteHeader(http.StatusNoContent)
}
