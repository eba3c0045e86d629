package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thejoa703/sns/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, provider, provider_id, nickname, password_hash,
	        role, profile_image, deleted, created_at, updated_at`

// scanUser は1行をmodel.Userに読み込む。
func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	var providerID, passwordHash sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &user.Provider, &providerID, &user.Nickname,
		&passwordHash, &user.Role, &user.ProfileImage, &user.Deleted,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.ProviderID = providerID.String
	user.PasswordHash = passwordHash.String
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND deleted = FALSE`,
		id,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmailAndProvider は(email, provider)でユーザーを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmailAndProvider(ctx context.Context, email, provider string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 AND provider = $2 AND deleted = FALSE`,
		email, provider,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email and provider: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, provider, provider_id, nickname, password_hash,
		                    role, profile_image, deleted, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, FALSE, $9, $10)`,
		user.ID, user.Email, user.Provider, user.ProviderID, user.Nickname,
		user.PasswordHash, user.Role, user.ProfileImage, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// UpdateNickname はユーザーのニックネームを更新する。
func (r *PostgresUserRepo) UpdateNickname(ctx context.Context, id, nickname string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET nickname = $2, updated_at = now() WHERE id = $1 AND deleted = FALSE`,
		id, nickname,
	)
	if err != nil {
		return fmt.Errorf("failed to update nickname: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// UpdateProfileImage はユーザーのプロフィール画像パスを更新する。
func (r *PostgresUserRepo) UpdateProfileImage(ctx context.Context, id, imagePath string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET profile_image = $2, updated_at = now() WHERE id = $1 AND deleted = FALSE`,
		id, imagePath,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile image: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// CountByEmail は指定メールアドレスのユーザー数を返す。
func (r *PostgresUserRepo) CountByEmail(ctx context.Context, email string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = $1 AND deleted = FALSE`,
		email,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users by email: %w", err)
	}
	return count, nil
}

// CountByNickname は指定ニックネームのユーザー数を返す。
func (r *PostgresUserRepo) CountByNickname(ctx context.Context, nickname string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE nickname = $1 AND deleted = FALSE`,
		nickname,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users by nickname: %w", err)
	}
	return count, nil
}

// Count は全ユーザー数を返す。
func (r *PostgresUserRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE deleted = FALSE`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// posts、retweets、post_likes、commentsはFKのON DELETE CASCADEにより
// 同一トランザクション内で削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
