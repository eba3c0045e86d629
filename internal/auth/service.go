// Package auth はログイン、トークン再発行、ログアウトの
// セッション管理ロジックを提供する。
//
// セッションの実体はサーバー側に保存されたリフレッシュトークンであり、
// ユーザーごとに同時に1つだけ有効になる。新しいログインは以前の
// セッションを上書きし、古いリフレッシュトークンを無効化する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/thejoa703/sns/internal/model"
	"github.com/thejoa703/sns/internal/repository"
	"github.com/thejoa703/sns/internal/session"
	"github.com/thejoa703/sns/internal/token"
)

// ErrInvalidCredentials はメールアドレスまたはパスワードが誤っている場合のエラー。
// ユーザー不存在とパスワード不一致は呼び出し側から区別できない。
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrSessionNotFound は有効なセッションが存在しない場合のエラー。
// ログアウト済み、セッション期限切れ、ユーザー削除済みの場合に返る。
var ErrSessionNotFound = errors.New("session not found")

// ErrTokenMismatch は提示されたリフレッシュトークンが保存済みのものと
// 一致しない場合のエラー。別のログインでセッションが上書きされた場合に返る。
var ErrTokenMismatch = errors.New("refresh token mismatch")

// TokenPair はログイン時に発行されるトークンの組。
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service は認証セッションに関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	store    session.Store
	issuer   *token.Issuer
	hasher   PasswordHasherService
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	store session.Store,
	issuer *token.Issuer,
	hasher PasswordHasherService,
) *Service {
	return &Service{
		userRepo: userRepo,
		store:    store,
		issuer:   issuer,
		hasher:   hasher,
	}
}

// Login はメールアドレスとパスワードでローカルユーザーを認証し、
// トークンの組を発行する。
// 認証失敗時はErrInvalidCredentialsを返し、ユーザー不存在と
// パスワード不一致を区別しない。
func (s *Service) Login(ctx context.Context, email, password string) (*TokenPair, *model.User, error) {
	user, err := s.userRepo.FindByEmailAndProvider(ctx, email, model.ProviderLocal)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidCredentials
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.IssueSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", user.Provider),
	)
	return pair, user, nil
}

// IssueSession はユーザーに新しいトークンの組を発行し、
// リフレッシュトークンをセッションストアに保存する。
// 既存のセッションは上書きされ、以前のリフレッシュトークンは無効になる。
// ローカルログインとソーシャルログインの両方から使用される。
func (s *Service) IssueSession(ctx context.Context, user *model.User) (*TokenPair, error) {
	access, err := s.issuer.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}

	refresh, err := s.issuer.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.store.Put(ctx, user.ID, refresh, s.issuer.RefreshTTL()); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// リフレッシュトークン自体は再発行しない。
//
// 検証は3段階で行われる:
//  1. トークン署名・有効期限・種別の検証（tokenパッケージのエラーが返る）
//  2. セッションストアの保存済みトークンとの突合
//     （不在ならErrSessionNotFound、不一致ならErrTokenMismatch）
//  3. ユーザー行の再取得。削除済みユーザーのセッションは残骸として破棄し、
//     ErrSessionNotFoundを返す。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, error) {
	user, err := s.validateSession(ctx, refreshToken)
	if err != nil {
		return "", err
	}

	access, err := s.issuer.IssueAccessToken(user.ID, user.Role)
	if err != nil {
		return "", fmt.Errorf("failed to issue access token: %w", err)
	}

	slog.Info("access token refreshed", slog.String("user_id", user.ID))
	return access, nil
}

// CurrentUserFromRefresh はリフレッシュトークンからセッションを検証し、
// 現在のユーザーを返す。アクセストークンを持たないクライアントが
// Cookieだけでユーザー情報を取得するためのフォールバック経路。
func (s *Service) CurrentUserFromRefresh(ctx context.Context, refreshToken string) (*model.User, error) {
	return s.validateSession(ctx, refreshToken)
}

// validateSession はリフレッシュトークンの署名・種別・保存済みトークンとの
// 突合を検証し、セッションの持ち主を返す。
func (s *Service) validateSession(ctx context.Context, refreshToken string) (*model.User, error) {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}
	userID := claims.Subject

	stored, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if stored == "" {
		return nil, ErrSessionNotFound
	}
	if stored != refreshToken {
		return nil, ErrTokenMismatch
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// ユーザー削除後に残ったセッションは破棄する
		if delErr := s.store.Delete(ctx, userID); delErr != nil {
			slog.Warn("failed to delete dangling session",
				slog.String("user_id", userID),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, ErrSessionNotFound
	}

	return user, nil
}

// Logout はリフレッシュトークンを検証し、その主体のセッションを破棄する。
// トークンの検証に成功すれば、セッションの有無にかかわらず成功する（冪等）。
// アクセストークンが期限切れでも、有効なリフレッシュトークンさえあれば
// ログアウトできる。発行済みのアクセストークンは有効期限まで使えるが、
// 以降のトークン再発行はできなくなる。
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}
	userID := claims.Subject

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("user_id", userID))
	return nil
}

// CurrentUser はアクセストークンの主体から現在のユーザーを取得する。
// 削除済みまたは存在しないユーザーにはErrSessionNotFoundを返す。
func (s *Service) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	return user, nil
}
