// Package storage はアップロードファイルの保存機能を提供する。
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStoreService はファイル保存のインターフェースを定義する。
// プロフィール画像のアップロードに使用される。
type FileStoreService interface {
	// Save はファイルデータを保存し、公開用の相対パスを返す。
	// ファイル名はUUIDを前置して衝突を防ぐ。
	Save(originalName string, data []byte) (string, error)

	// Remove は保存済みファイルを削除する。
	// 存在しないパスに対してはエラーを返さない（冪等）。
	Remove(storedPath string) error
}

// LocalFileStore はローカルディスクに保存するFileStoreServiceの実装。
type LocalFileStore struct {
	// baseDir は保存先ディレクトリ。相対パスの場合は実行ディレクトリ基準。
	baseDir string
}

// NewLocalFileStore はLocalFileStoreの新しいインスタンスを生成する。
func NewLocalFileStore(baseDir string) *LocalFileStore {
	return &LocalFileStore{baseDir: baseDir}
}

// Save はファイルデータを保存し、公開用の相対パスを返す。
// 保存先ディレクトリが存在しない場合は作成する。
// 返り値のパスは "uploads/<uuid>_<name>" 形式で、そのままURLパスとして使える。
func (s *LocalFileStore) Save(originalName string, data []byte) (string, error) {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	// パストラバーサル防止: ディレクトリ成分を落とし、ベース名のみを使う
	name := sanitizeFilename(originalName)
	filename := uuid.NewString() + "_" + name
	target := filepath.Join(s.baseDir, filename)

	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filepath.ToSlash(filepath.Join(filepath.Base(s.baseDir), filename)), nil
}

// Remove は保存済みファイルを削除する。
// Saveが返した相対パスを受け取る。存在しないファイルは成功扱い。
func (s *LocalFileStore) Remove(storedPath string) error {
	if storedPath == "" {
		return nil
	}

	// Saveの返すパスはベースディレクトリ名を含むため、ファイル名部分のみを取り出す
	filename := filepath.Base(filepath.FromSlash(storedPath))
	target := filepath.Join(s.baseDir, filename)

	if err := os.Remove(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// sanitizeFilename はファイル名からディレクトリ成分と危険な文字を除去する。
func sanitizeFilename(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "file"
	}
	// NULバイトや制御文字を除去
	base = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, base)
	if base == "" {
		return "file"
	}
	return base
}

// compile-time interface check
var _ FileStoreService = (*LocalFileStore)(nil)
