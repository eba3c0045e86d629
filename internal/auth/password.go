package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultBcryptCost はbcryptハッシュのコスト。
// 12はセキュリティとハッシュ時間のバランスが取れた値。
const defaultBcryptCost = 12

// PasswordHasherService はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasherService interface {
	// Hash は平文パスワードのbcryptハッシュを生成する。
	Hash(password string) (string, error)
	// Verify は平文パスワードがハッシュと一致するかを検証する。
	Verify(password, hash string) bool
}

// PasswordHasher はbcryptによるPasswordHasherServiceの実装。
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher はデフォルトコストのPasswordHasherを生成する。
func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{cost: defaultBcryptCost}
}

// Hash は平文パスワードのbcryptハッシュを生成する。
// bcryptの仕様上、72バイトを超えるパスワードにはエラーを返す。
func (h *PasswordHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// Verify は平文パスワードがハッシュと一致するかを検証する。
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// compile-time interface check
var _ PasswordHasherService = (*PasswordHasher)(nil)
