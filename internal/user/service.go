// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thejoa703/sns/internal/identity"
	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/repository"
	"github.com/thejoa703/sns/internal/session"
)

// nicknameMaxLen はニックネームの最大文字数。
const nicknameMaxLen = 30

// passwordMinLen はパスワードの最小文字数。
const passwordMinLen = 8

// PasswordHasher はパスワードハッシュ化のインターフェース。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// AvatarFetcher は外部プロバイダのプロフィール画像取得インターフェース。
type AvatarFetcher interface {
	FetchAvatar(ctx context.Context, avatarURL string) (data []byte, mimeType string, err error)
}

// FileStore はアップロードファイル保存のインターフェース。
type FileStore interface {
	Save(originalName string, data []byte) (string, error)
	Remove(storedPath string) error
}

// Service はユーザー管理のサービス層。
// 会員登録、ソーシャルユーザーの自動作成、プロフィール更新、退会処理を提供する。
type Service struct {
	userRepo      repository.UserRepository
	sessionStore  session.Store
	hasher        PasswordHasher
	avatarFetcher AvatarFetcher
	fileStore     FileStore
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionStore session.Store,
	hasher PasswordHasher,
	avatarFetcher AvatarFetcher,
	fileStore FileStore,
) *Service {
	return &Service{
		userRepo:      userRepo,
		sessionStore:  sessionStore,
		hasher:        hasher,
		avatarFetcher: avatarFetcher,
		fileStore:     fileStore,
	}
}

// Signup はローカルアカウントの会員登録を行う。
// メールアドレスとニックネームの重複を事前に確認し、
// パスワードはbcryptハッシュで保存する。
func (s *Service) Signup(ctx context.Context, email, password, nickname string) (*model.User, error) {
	email = strings.TrimSpace(email)
	nickname = strings.TrimSpace(nickname)

	if err := validateSignupInput(email, password, nickname); err != nil {
		return nil, err
	}

	emailCount, err := s.userRepo.CountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの重複確認に失敗しました: %w", err)
	}
	if emailCount > 0 {
		return nil, model.NewDuplicateEmailError()
	}

	nicknameCount, err := s.userRepo.CountByNickname(ctx, nickname)
	if err != nil {
		return nil, fmt.Errorf("ニックネームの重複確認に失敗しました: %w", err)
	}
	if nicknameCount > 0 {
		return nil, model.NewDuplicateNicknameError(nickname)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Provider:     model.ProviderLocal,
		Nickname:     nickname,
		PasswordHash: hash,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new user signed up",
		slog.String("user_id", newUser.ID),
		slog.String("provider", newUser.Provider),
	)
	return newUser, nil
}

// EnsureSocialUser はソーシャルログインのIdentityに対応するユーザーを返す。
// (email, provider)で既存ユーザーを検索し、未登録の場合は自動作成する。
// プロフィール画像はプロバイダのURLから取得してローカルに保存する。
// 画像の取得失敗はログイン自体を妨げない。
func (s *Service) EnsureSocialUser(ctx context.Context, ident *identity.Identity) (*model.User, error) {
	existing, err := s.userRepo.FindByEmailAndProvider(ctx, ident.Email, ident.Provider)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	nickname, err := s.resolveNickname(ctx, ident)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.NewString(),
		Email:        ident.Email,
		Provider:     ident.Provider,
		ProviderID:   ident.ProviderID,
		Nickname:     nickname,
		Role:         model.RoleUser,
		ProfileImage: s.storeAvatar(ctx, ident.AvatarURL),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		return nil, fmt.Errorf("ソーシャルユーザーの作成に失敗しました: %w", err)
	}

	slog.Info("new social user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", ident.Provider),
	)
	return newUser, nil
}

// resolveNickname はソーシャルユーザーの初期ニックネームを決定する。
// プロバイダの表示名が空、または既に使われている場合は
// ランダムなサフィックスを付けて一意にする。
func (s *Service) resolveNickname(ctx context.Context, ident *identity.Identity) (string, error) {
	base := strings.TrimSpace(ident.Nickname)
	if base == "" {
		base = ident.Provider + "-user"
	}
	if len([]rune(base)) > nicknameMaxLen-7 {
		base = string([]rune(base)[:nicknameMaxLen-7])
	}

	count, err := s.userRepo.CountByNickname(ctx, base)
	if err != nil {
		return "", fmt.Errorf("ニックネームの重複確認に失敗しました: %w", err)
	}
	if count == 0 {
		return base, nil
	}
	return base + "-" + uuid.NewString()[:6], nil
}

// storeAvatar はプロバイダの画像URLから画像を取得してローカルに保存する。
// 取得・保存に失敗した場合は空文字列を返し、ログインは継続する。
func (s *Service) storeAvatar(ctx context.Context, avatarURL string) string {
	if avatarURL == "" || s.avatarFetcher == nil || s.fileStore == nil {
		return ""
	}

	data, mimeType, err := s.avatarFetcher.FetchAvatar(ctx, avatarURL)
	if err != nil || data == nil {
		return ""
	}

	stored, err := s.fileStore.Save("avatar"+extensionForMime(mimeType), data)
	if err != nil {
		slog.Warn("プロフィール画像の保存に失敗しました",
			slog.String("url", avatarURL),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return stored
}

// extensionForMime はMIMEタイプから保存用の拡張子を決める。
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// UpdateNickname はユーザーのニックネームを変更する。
func (s *Service) UpdateNickname(ctx context.Context, userID, nickname string) error {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return model.NewInvalidInputError("ニックネームを入力してください")
	}
	if len([]rune(nickname)) > nicknameMaxLen {
		return model.NewInvalidInputError(fmt.Sprintf("ニックネームは%d文字以内で入力してください", nicknameMaxLen))
	}

	current, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if current == nil {
		return model.NewUserNotFoundError()
	}
	if current.Nickname == nickname {
		return nil
	}

	count, err := s.userRepo.CountByNickname(ctx, nickname)
	if err != nil {
		return fmt.Errorf("ニックネームの重複確認に失敗しました: %w", err)
	}
	if count > 0 {
		return model.NewDuplicateNicknameError(nickname)
	}

	if err := s.userRepo.UpdateNickname(ctx, userID, nickname); err != nil {
		return fmt.Errorf("ニックネームの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateProfileImage はアップロードされた画像を保存し、
// ユーザーのプロフィール画像パスを更新する。
// 以前の画像ファイルはベストエフォートで削除する。
func (s *Service) UpdateProfileImage(ctx context.Context, userID, originalName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", model.NewInvalidInputError("画像ファイルが空です")
	}

	current, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if current == nil {
		return "", model.NewUserNotFoundError()
	}

	stored, err := s.fileStore.Save(path.Base(originalName), data)
	if err != nil {
		return "", fmt.Errorf("画像の保存に失敗しました: %w", err)
	}

	if err := s.userRepo.UpdateProfileImage(ctx, userID, stored); err != nil {
		return "", fmt.Errorf("プロフィール画像の更新に失敗しました: %w", err)
	}

	if current.ProfileImage != "" {
		if err := s.fileStore.Remove(current.ProfileImage); err != nil {
			slog.Warn("旧プロフィール画像の削除に失敗しました",
				slog.String("user_id", userID),
				slog.String("path", current.ProfileImage),
			)
		}
	}

	return stored, nil
}

// CheckEmailAvailable はメールアドレスが未使用かを返す。
func (s *Service) CheckEmailAvailable(ctx context.Context, email string) (bool, error) {
	count, err := s.userRepo.CountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return false, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	return count == 0, nil
}

// CheckNicknameAvailable はニックネームが未使用かを返す。
func (s *Service) CheckNicknameAvailable(ctx context.Context, nickname string) (bool, error) {
	count, err := s.userRepo.CountByNickname(ctx, strings.TrimSpace(nickname))
	if err != nil {
		return false, fmt.Errorf("ニックネームの確認に失敗しました: %w", err)
	}
	return count == 0, nil
}

// Count は登録ユーザーの総数を返す。
func (s *Service) Count(ctx context.Context) (int64, error) {
	count, err := s.userRepo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("ユーザー数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// Withdraw はユーザーの退会処理を実行する。
// ユーザー行の削除でposts、retweets、post_likes、commentsは
// FKのCASCADEにより同一トランザクションで削除される。
// セッションの破棄はDB削除成功後にベストエフォートで行う。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	// セッション削除の失敗は退会を巻き戻さない。残ったセッションは
	// トークン再発行時のユーザー再取得で無効化される。
	if s.sessionStore != nil {
		if err := s.sessionStore.Delete(ctx, userID); err != nil {
			slog.Warn("退会ユーザーのセッション削除に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	if user.ProfileImage != "" && s.fileStore != nil {
		if err := s.fileStore.Remove(user.ProfileImage); err != nil {
			slog.Warn("退会ユーザーのプロフィール画像削除に失敗しました",
				slog.String("user_id", userID),
			)
		}
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}

// validateSignupInput は会員登録の入力値を検証する。
func validateSignupInput(email, password, nickname string) error {
	if email == "" || !strings.Contains(email, "@") {
		return model.NewInvalidInputError("メールアドレスの形式が正しくありません")
	}
	if len(password) < passwordMinLen {
		return model.NewInvalidInputError(fmt.Sprintf("パスワードは%d文字以上で入力してください", passwordMinLen))
	}
	if nickname == "" {
		return model.NewInvalidInputError("ニックネームを入力してください")
	}
	if len([]rune(nickname)) > nicknameMaxLen {
		return model.NewInvalidInputError(fmt.Sprintf("ニックネームは%d文字以内で入力してください", nicknameMaxLen))
	}
	return nil
}
